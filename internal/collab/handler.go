package collab

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Authorizer resolves the user joining posterID. It returns errors wrapping
// ErrUnauthorized or ErrForbidden for rejected requests.
type Authorizer func(r *http.Request, posterID string) (userID, displayName string, err error)

// ServeWS upgrades GET /ws/poster/{posterId} and runs the client until the
// connection ends. The playground room accepts anonymous users.
func ServeWS(hub *Hub, authorize Authorizer, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posterID := mux.Vars(r)["posterId"]

		var userID, displayName string
		if posterID == PlaygroundPosterID {
			userID = "anon-" + uuid.New().String()[:8]
			displayName = "Anonymous"
		} else {
			var err error
			userID, displayName, err = authorize(r, posterID)
			switch {
			case errors.Is(err, ErrUnauthorized):
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			case errors.Is(err, ErrForbidden):
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			case err != nil:
				slog.Error("authorize websocket", "error", err, "poster", posterID)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			slog.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, userID, displayName, posterID, uuid.New().String())
		hub.Register(client)

		ctx := r.Context()
		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}
}
