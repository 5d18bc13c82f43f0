package collab

import (
	"errors"
	"fmt"
	"sync"

	"github.com/SbTchR/TimelineGenerator/internal/document"
)

var ErrInvalidOperation = errors.New("invalid operation")

// DocumentState holds the authoritative document of a room. Every mutation
// goes through ApplyOperation under one lock.
type DocumentState struct {
	mu        sync.Mutex
	doc       *document.Document
	serverSeq int64
	dirty     bool
}

func NewDocumentState(doc *document.Document) *DocumentState {
	return &DocumentState{doc: doc}
}

// Snapshot returns a copy of the document and the sequence it reflects.
func (ds *DocumentState) Snapshot() (*document.Document, int64) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.doc.Clone(), ds.serverSeq
}

// TakeDirty returns a copy of the document when it changed since the last
// call, and clears the flag.
func (ds *DocumentState) TakeDirty() (*document.Document, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if !ds.dirty {
		return nil, false
	}
	ds.dirty = false
	return ds.doc.Clone(), true
}

// MarkDirty flags the document for the next save, after a failed one.
func (ds *DocumentState) MarkDirty() {
	ds.mu.Lock()
	ds.dirty = true
	ds.mu.Unlock()
}

// ApplyOperation applies op and returns the new server sequence. Server
// assigned fields (ids of created items, toggle results) are written back
// into op so the broadcast carries them. On error the document is unchanged.
func (ds *DocumentState) ApplyOperation(op *Operation) (int64, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.applyLocked(op); err != nil {
		return 0, err
	}
	ds.serverSeq++
	ds.dirty = true
	return ds.serverSeq, nil
}

func (ds *DocumentState) applyLocked(op *Operation) error {
	d := ds.doc
	switch op.Type {
	case OpEventCreate:
		if op.Event == nil {
			return fmt.Errorf("%w: %s without event", ErrInvalidOperation, op.Type)
		}
		op.ItemID = d.AddEvent(*op.Event).ID
	case OpEventUpdate:
		if op.Event == nil {
			return fmt.Errorf("%w: %s without event", ErrInvalidOperation, op.Type)
		}
		_, err := d.UpdateEvent(op.ItemID, *op.Event)
		return err
	case OpEventDelete:
		return d.DeleteEvent(op.ItemID)
	case OpEventToggle:
		visible, err := d.ToggleEvent(op.ItemID)
		if err != nil {
			return err
		}
		op.Visible = &visible
	case OpPeriodCreate:
		if op.Period == nil {
			return fmt.Errorf("%w: %s without period", ErrInvalidOperation, op.Type)
		}
		op.ItemID = d.AddPeriod(*op.Period).ID
	case OpPeriodUpdate:
		if op.Period == nil {
			return fmt.Errorf("%w: %s without period", ErrInvalidOperation, op.Type)
		}
		_, err := d.UpdatePeriod(op.ItemID, *op.Period)
		return err
	case OpPeriodDelete:
		return d.DeletePeriod(op.ItemID)
	case OpPeriodToggle:
		visible, err := d.TogglePeriod(op.ItemID)
		if err != nil {
			return err
		}
		op.Visible = &visible
	case OpEventsClear:
		d.ClearEvents()
	case OpPeriodsClear:
		d.ClearPeriods()
	case OpItemOffset:
		return ds.applyOffset(op)
	case OpSettingsUpdate:
		if len(op.Settings) == 0 {
			return fmt.Errorf("%w: %s without settings", ErrInvalidOperation, op.Type)
		}
		return d.ApplySettings(op.Settings)
	case OpSettingsReset:
		d.ResetSettings()
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOperation, op.Type)
	}
	return nil
}

func (ds *DocumentState) applyOffset(op *Operation) error {
	if op.OffsetY == nil {
		return fmt.Errorf("%w: %s without offsetY", ErrInvalidOperation, op.Type)
	}
	if ev, ok := ds.doc.Event(op.ItemID); ok {
		x := ev.OffsetX
		if op.OffsetX != nil {
			x = *op.OffsetX
		}
		return ds.doc.SetEventOffset(op.ItemID, x, *op.OffsetY)
	}
	if _, ok := ds.doc.Period(op.ItemID); ok {
		op.OffsetX = nil
		return ds.doc.SetPeriodOffset(op.ItemID, *op.OffsetY)
	}
	return fmt.Errorf("%w: %s", document.ErrItemNotFound, op.ItemID)
}
