package collab

import (
	"encoding/json"

	"github.com/SbTchR/TimelineGenerator/internal/document"
)

type Message struct {
	Type     string          `json:"type"`
	PosterID string          `json:"posterId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// PresencePayload is what a client shares about itself. Dragging names the
// item under an active drag; it is never persisted.
type PresencePayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Dragging    string     `json:"dragging,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

type WelcomePayload struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// DocSyncPayload carries the full document and the sequence it reflects.
type DocSyncPayload struct {
	Document  *document.Document `json:"document"`
	ServerSeq int64              `json:"serverSeq"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Document sync
	TypeDocSync    = "doc.sync"
	TypeDocRequest = "doc.request"

	// Operation message types
	TypeOpSubmit    = "op.submit"
	TypeOpAck       = "op.ack"
	TypeOpNack      = "op.nack"
	TypeOpBroadcast = "op.broadcast"
)

// Operation types.
const (
	OpEventCreate    = "event.create"
	OpEventUpdate    = "event.update"
	OpEventDelete    = "event.delete"
	OpEventToggle    = "event.toggle"
	OpPeriodCreate   = "period.create"
	OpPeriodUpdate   = "period.update"
	OpPeriodDelete   = "period.delete"
	OpPeriodToggle   = "period.toggle"
	OpEventsClear    = "events.clear"
	OpPeriodsClear   = "periods.clear"
	OpItemOffset     = "item.offset"
	OpSettingsUpdate = "settings.update"
	OpSettingsReset  = "settings.reset"
)

// Operation is one document mutation submitted by a client.
type Operation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	ClientSeq int64  `json:"clientSeq"`

	// ItemID names the event or period. The server fills it in for creates.
	ItemID string `json:"itemId,omitempty"`

	// For event.create / event.update
	Event *document.EventInput `json:"event,omitempty"`

	// For period.create / period.update
	Period *document.PeriodInput `json:"period,omitempty"`

	// For item.offset. Periods only take OffsetY.
	OffsetX *float64 `json:"offsetX,omitempty"`
	OffsetY *float64 `json:"offsetY,omitempty"`

	// For settings.update
	Settings json.RawMessage `json:"settings,omitempty"`

	// Set by the server for toggles.
	Visible *bool `json:"visible,omitempty"`
}

type OperationSubmitPayload struct {
	Operation Operation `json:"operation"`
}

type OperationAckPayload struct {
	OperationID     string `json:"operationId"`
	ItemID          string `json:"itemId,omitempty"`
	ServerSeq       int64  `json:"serverSeq"`
	ServerTimestamp int64  `json:"serverTimestamp"`
}

type OperationNackPayload struct {
	OperationID string `json:"operationId"`
	Reason      string `json:"reason"`
}

type OperationBroadcastPayload struct {
	Operation Operation `json:"operation"`
	UserID    string    `json:"userId"`
	ServerSeq int64     `json:"serverSeq"`
}
