package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/SbTchR/TimelineGenerator/internal/auth"
	"github.com/SbTchR/TimelineGenerator/internal/document"
	"github.com/SbTchR/TimelineGenerator/internal/engine"
	"github.com/SbTchR/TimelineGenerator/internal/pagination"
	"github.com/SbTchR/TimelineGenerator/internal/typeid"
)

const maxDocumentSize = 20 << 20 // 20MB, images may be inlined

// DocumentSource loads the stored document of a poster the user can read.
type DocumentSource interface {
	PosterDocument(ctx context.Context, posterID, userID string) (*document.Document, error)
}

// StatusMapper maps a DocumentSource error to an HTTP status.
type StatusMapper func(error) int

type Handler struct {
	exporter *Exporter
	opts     engine.Options
	source   DocumentSource
	status   StatusMapper
}

func NewHandler(exporter *Exporter, opts engine.Options, source DocumentSource, status StatusMapper) *Handler {
	return &Handler{exporter: exporter, opts: opts, source: source, status: status}
}

// ExportDocument exports a poster document posted as the request body.
func (h *Handler) ExportDocument(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		http.Error(w, "invalid format: must be png, pdf, html or layout", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentSize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "request too large", http.StatusBadRequest)
		return
	}
	doc, err := document.Load(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.export(w, r, typeid.NewExportID(), doc, format)
}

// ExportPoster exports the latest stored version of a poster.
func (h *Handler) ExportPoster(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	format, err := ParseFormat(vars["format"])
	if err != nil {
		http.Error(w, "invalid format: must be png, pdf, html or layout", http.StatusBadRequest)
		return
	}
	posterID := vars["posterId"]
	doc, err := h.source.PosterDocument(r.Context(), posterID, auth.UserIDFromContext(r.Context()))
	if err != nil {
		status := http.StatusInternalServerError
		if h.status != nil {
			status = h.status(err)
		}
		if status >= 500 {
			slog.Error("load poster for export", "poster", posterID, "error", err)
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	h.export(w, r, posterID, doc, format)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, surfaceID string, doc *document.Document, format Format) {
	req, err := NewRequest(surfaceID, doc, h.opts, format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	q := r.URL.Query()
	if s, err := strconv.ParseFloat(q.Get("scale"), 64); err == nil && s > 0 && s <= 16 {
		req.Scale = s
	}
	switch o := pagination.Orientation(q.Get("orientation")); o {
	case pagination.Portrait, pagination.Landscape:
		req.Orientation = o
	}
	req.Background = q.Get("background")
	req.Title = q.Get("name")
	name := sanitizeName(req.Title)

	slog.Info("export started", "surface", surfaceID, "format", format, "scale", req.Scale)

	var buf bytes.Buffer
	if err := h.exporter.Export(r.Context(), req, &buf); err != nil {
		switch {
		case errors.Is(err, ErrExportInProgress):
			http.Error(w, "an export of this poster is already running", http.StatusConflict)
		case errors.Is(err, pagination.ErrTooManyTiles), errors.Is(err, pagination.ErrInvalidPageSize):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			slog.Error("export failed", "surface", surfaceID, "format", format, "error", err)
			http.Error(w, fmt.Sprintf("export failed: %v", err), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if format != FormatLayout {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, format.Extension()))
	}
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)
}

// PlanHandler answers the page plan of a posted document without
// capturing it, so the editor can show the page count.
func (h *Handler) PlanHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentSize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "request too large", http.StatusBadRequest)
		return
	}
	doc, err := document.Load(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := NewRequest("", doc, h.opts, FormatPDF)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	plan, err := h.exporter.Plan(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"pages": plan.Pages(), "plan": plan})
}

func sanitizeName(name string) string {
	if name == "" {
		return "frise"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
