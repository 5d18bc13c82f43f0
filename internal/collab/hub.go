// Package collab runs the live editing rooms: one authoritative document per
// poster, shared by every connected client over a websocket.
package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/SbTchR/TimelineGenerator/internal/document"
)

// PlaygroundPosterID is an anonymous room seeded with the sample poster.
// It is never loaded from or saved to the store.
const PlaygroundPosterID = "poster_playground"

const (
	loadTimeout  = 10 * time.Second
	saveTimeout  = 10 * time.Second
	saveInterval = 30 * time.Second
)

type DocumentLoader func(ctx context.Context, posterID string) (*document.Document, error)

type DocumentSaver func(ctx context.Context, posterID string, doc *document.Document) error

type Room struct {
	posterID string
	clients  map[string]*Client // clientID -> client
	presence *PresenceManager
	state    *DocumentState

	// opMu keeps apply and fan-out of one operation together so every client
	// sees operations in server sequence order.
	opMu      sync.Mutex
	ephemeral bool
}

func NewRoom(posterID string, doc *document.Document) *Room {
	return &Room{
		posterID: posterID,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
		state:    NewDocumentState(doc),
	}
}

type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // posterID -> room
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once

	loader DocumentLoader
	saver  DocumentSaver
}

func NewHub(loader DocumentLoader, saver DocumentSaver) *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		loader:     loader,
		saver:      saver,
	}
}

func (h *Hub) Run() {
	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ticker.C:
			h.saveAll()
		case <-h.stop:
			h.saveAll()
			close(h.done)
			return
		}
	}
}

// Stop saves every dirty room and ends Run. It returns once the saves are
// done.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) room(posterID string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[posterID]
	return room, ok
}

// joined reports whether client is still a member of room and room is
// still the open room for its poster.
func (h *Hub) joined(room *Room, client *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[client.PosterID] == room && room.clients[client.ClientID] == client
}

func (h *Hub) openRoom(posterID string) (*Room, error) {
	if room, ok := h.room(posterID); ok {
		return room, nil
	}

	var room *Room
	if posterID == PlaygroundPosterID {
		room = NewRoom(posterID, document.NewSampleDocument())
		room.ephemeral = true
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		doc, err := h.loader(ctx, posterID)
		if err != nil {
			return nil, err
		}
		room = NewRoom(posterID, doc)
	}

	h.mu.Lock()
	h.rooms[posterID] = room
	h.mu.Unlock()
	return room, nil
}

func (h *Hub) addClient(client *Client) {
	room, err := h.openRoom(client.PosterID)
	if err != nil {
		slog.Error("open room", "error", err, "poster", client.PosterID)
		client.Send(errorMessage("could not load poster"))
		client.close()
		return
	}

	// Joining under opMu puts the sync exactly between the operations it
	// contains and the broadcasts that follow it.
	room.opMu.Lock()
	h.mu.Lock()
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	welcome, _ := json.Marshal(WelcomePayload{ClientID: client.ClientID, UserID: client.UserID})
	client.Send(&Message{Type: TypeWelcome, Payload: welcome})
	h.sendSync(room, client)
	room.opMu.Unlock()

	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	h.broadcastToRoom(room, &Message{
		Type:    TypePresenceJoin,
		UserID:  client.UserID,
		Payload: joinPayload,
	}, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "poster", client.PosterID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.PosterID]
	if !ok || room.clients[client.ClientID] != client {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	client.close()
	room.presence.Remove(client.UserID)

	empty := len(room.clients) == 0
	if empty {
		delete(h.rooms, client.PosterID)
	}
	h.mu.Unlock()

	if empty {
		// Operations in flight finish before the final save.
		room.opMu.Lock()
		h.saveRoom(room)
		room.opMu.Unlock()
	} else {
		leavePayload, _ := json.Marshal(PresenceLeavePayload{UserID: client.UserID})
		h.broadcastToRoom(room, &Message{
			Type:    TypePresenceLeave,
			UserID:  client.UserID,
			Payload: leavePayload,
		}, "")
	}

	slog.Info("client left", "user", client.UserID, "poster", client.PosterID)
}

func (h *Hub) saveAll() {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		h.saveRoom(r)
	}
}

func (h *Hub) saveRoom(room *Room) {
	if room.ephemeral || h.saver == nil {
		return
	}
	doc, dirty := room.state.TakeDirty()
	if !dirty {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := h.saver(ctx, room.posterID, doc); err != nil {
		slog.Error("save poster", "error", err, "poster", room.posterID)
		room.state.MarkDirty()
		return
	}
	slog.Info("poster saved", "poster", room.posterID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(sender, msg)
	case TypeOpSubmit:
		h.handleOpSubmit(sender, msg)
	case TypeDocRequest:
		if room, ok := h.room(sender.PosterID); ok {
			h.sendSync(room, sender)
		}
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
		sender.Send(errorMessage("unknown message type " + msg.Type))
	}
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}
	presence.DisplayName = sender.DisplayName

	room, ok := h.room(sender.PosterID)
	if !ok {
		return
	}
	room.presence.Update(sender.UserID, &presence)
	h.broadcastPresence(room, sender, &presence)
}

func (h *Hub) broadcastPresence(room *Room, sender *Client, presence *PresencePayload) {
	payload, _ := json.Marshal(presence)
	h.broadcastToRoom(room, &Message{
		Type:    TypePresenceUpdate,
		UserID:  sender.UserID,
		Payload: payload,
	}, sender.ClientID)
}

func (h *Hub) handleOpSubmit(sender *Client, msg *Message) {
	var submit OperationSubmitPayload
	if err := json.Unmarshal(msg.Payload, &submit); err != nil {
		sender.Send(nackMessage("", "invalid operation payload"))
		return
	}
	op := submit.Operation

	room, ok := h.room(sender.PosterID)
	if !ok {
		sender.Send(nackMessage(op.ID, "not in a room"))
		return
	}

	room.opMu.Lock()
	defer room.opMu.Unlock()

	// The sender may have left, and the room been dropped and saved, while
	// this operation waited for the lock.
	if !h.joined(room, sender) {
		sender.Send(nackMessage(op.ID, "not in a room"))
		return
	}

	seq, err := room.state.ApplyOperation(&op)
	if err != nil {
		slog.Debug("operation rejected", "error", err, "op", op.Type, "user", sender.UserID)
		sender.Send(nackMessage(op.ID, err.Error()))
		return
	}

	now := time.Now().UnixMilli()
	ack, _ := json.Marshal(OperationAckPayload{
		OperationID:     op.ID,
		ItemID:          op.ItemID,
		ServerSeq:       seq,
		ServerTimestamp: now,
	})
	sender.Send(&Message{Type: TypeOpAck, Seq: seq, Payload: ack})

	op.Timestamp = now
	out, _ := json.Marshal(OperationBroadcastPayload{
		Operation: op,
		UserID:    sender.UserID,
		ServerSeq: seq,
	})
	h.broadcastToRoom(room, &Message{
		Type:    TypeOpBroadcast,
		UserID:  sender.UserID,
		Seq:     seq,
		Payload: out,
	}, sender.ClientID)

	if op.Type == OpItemOffset {
		if presence, ended := room.presence.EndDrag(sender.UserID); ended {
			h.broadcastPresence(room, sender, presence)
		}
	}
}

func (h *Hub) sendSync(room *Room, client *Client) {
	doc, seq := room.state.Snapshot()
	payload, err := json.Marshal(DocSyncPayload{Document: doc, ServerSeq: seq})
	if err != nil {
		slog.Error("marshal document sync", "error", err)
		return
	}
	client.Send(&Message{Type: TypeDocSync, PosterID: room.posterID, Seq: seq, Payload: payload})
}

func (h *Hub) broadcastToRoom(room *Room, msg *Message, excludeClientID string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

func errorMessage(text string) *Message {
	payload, _ := json.Marshal(ErrorPayload{Message: text})
	return &Message{Type: TypeError, Payload: payload}
}

func nackMessage(opID, reason string) *Message {
	payload, _ := json.Marshal(OperationNackPayload{OperationID: opID, Reason: reason})
	return &Message{Type: TypeOpNack, Payload: payload}
}
