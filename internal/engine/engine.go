package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/SbTchR/TimelineGenerator/internal/document"
	"github.com/SbTchR/TimelineGenerator/internal/pagination"
)

// Engine owns one poster document and its current layout. It processes
// commands from the front end and answers queries. Every mutation is
// followed by a full relayout; there is no incremental update.
// An Engine is not safe for concurrent use.
type Engine struct {
	doc  *document.Document
	opts Options

	// Layout of the current document, or the configuration error that
	// prevented it.
	layout    *Layout
	layoutErr error

	drag Drag

	// view maps surface coordinates to screen coordinates. Pointer input
	// arrives in screen coordinates.
	view Matrix2D
}

// ErrInvalidView is returned for a zoom that is not a positive finite
// number or a non-finite scroll offset.
var ErrInvalidView = errors.New("invalid view")

// NewEngine creates an engine holding the default poster.
func NewEngine(opts Options) *Engine {
	doc := document.Defaults()
	e := &Engine{doc: &doc, opts: opts, view: Identity()}
	e.relayout()
	return e
}

func (e *Engine) relayout() {
	e.layout, e.layoutErr = ComputeLayout(e.doc, e.opts)
}

// DragCommit is the result of a finished drag: the offsets written to the
// item.
type DragCommit struct {
	ItemID  string   `json:"itemId"`
	Kind    ItemKind `json:"kind"`
	OffsetX float64  `json:"offsetX"`
	OffsetY float64  `json:"offsetY"`
}

// --- Commands (frontend → backend) ---

// LoadDocument replaces the document with a saved one. On error the
// current document is kept.
func (e *Engine) LoadDocument(data []byte) error {
	doc, err := document.Load(data)
	if err != nil {
		return err
	}
	e.setDocument(doc)
	return nil
}

// LoadYAMLDocument is LoadDocument for YAML input.
func (e *Engine) LoadYAMLDocument(data []byte) error {
	doc, err := document.LoadYAML(data)
	if err != nil {
		return err
	}
	e.setDocument(doc)
	return nil
}

// LoadSampleDocument loads the built-in sample poster.
func (e *Engine) LoadSampleDocument() {
	e.setDocument(document.NewSampleDocument())
}

func (e *Engine) setDocument(doc *document.Document) {
	e.doc = doc
	e.drag.Done()
	e.relayout()
}

func (e *Engine) AddEvent(in document.EventInput) document.Event {
	ev := e.doc.AddEvent(in)
	e.relayout()
	return ev
}

func (e *Engine) UpdateEvent(id string, in document.EventInput) (document.Event, error) {
	ev, err := e.doc.UpdateEvent(id, in)
	if err != nil {
		return document.Event{}, err
	}
	e.relayout()
	return ev, nil
}

func (e *Engine) DeleteEvent(id string) error {
	if err := e.doc.DeleteEvent(id); err != nil {
		return err
	}
	e.relayout()
	return nil
}

func (e *Engine) ToggleEvent(id string) (bool, error) {
	visible, err := e.doc.ToggleEvent(id)
	if err != nil {
		return false, err
	}
	e.relayout()
	return visible, nil
}

func (e *Engine) ClearEvents() {
	e.doc.ClearEvents()
	e.relayout()
}

func (e *Engine) AddPeriod(in document.PeriodInput) document.Period {
	p := e.doc.AddPeriod(in)
	e.relayout()
	return p
}

func (e *Engine) UpdatePeriod(id string, in document.PeriodInput) (document.Period, error) {
	p, err := e.doc.UpdatePeriod(id, in)
	if err != nil {
		return document.Period{}, err
	}
	e.relayout()
	return p, nil
}

func (e *Engine) DeletePeriod(id string) error {
	if err := e.doc.DeletePeriod(id); err != nil {
		return err
	}
	e.relayout()
	return nil
}

func (e *Engine) TogglePeriod(id string) (bool, error) {
	visible, err := e.doc.TogglePeriod(id)
	if err != nil {
		return false, err
	}
	e.relayout()
	return visible, nil
}

func (e *Engine) ClearPeriods() {
	e.doc.ClearPeriods()
	e.relayout()
}

// ApplySettings merges a JSON settings patch. A main step of zero or less
// is stored; the layout then reports ErrNonPositiveStep until it is fixed.
func (e *Engine) ApplySettings(patch []byte) error {
	if err := e.doc.ApplySettings(patch); err != nil {
		return err
	}
	e.relayout()
	return nil
}

func (e *Engine) ResetSettings() {
	e.doc.ResetSettings()
	e.relayout()
}

// SetView sets the editor zoom and scroll: the surface point
// (scrollX, scrollY) is drawn at the screen origin, scaled by zoom.
func (e *Engine) SetView(zoom, scrollX, scrollY float64) error {
	if !(zoom > 0) || math.IsInf(zoom, 0) || math.IsNaN(scrollX) || math.IsInf(scrollX, 0) ||
		math.IsNaN(scrollY) || math.IsInf(scrollY, 0) {
		return fmt.Errorf("%w: zoom %v scroll (%v, %v)", ErrInvalidView, zoom, scrollX, scrollY)
	}
	e.view = ViewTransform(zoom, scrollX, scrollY)
	return nil
}

// ScreenToSurface maps a pointer position to surface coordinates.
func (e *Engine) ScreenToSurface(x, y float64) Point {
	sx, sy := e.view.Invert().TransformPoint(x, y)
	return Point{X: sx, Y: sy}
}

// BeginDrag grabs a visible item at the pointer position, given in screen
// coordinates.
func (e *Engine) BeginDrag(itemID string, x, y float64) error {
	if e.layoutErr != nil {
		return e.layoutErr
	}
	t := DragTarget{ID: itemID}
	if c, ok := e.layout.EventByID(itemID); ok {
		t.Kind, t.Rect = KindEvent, c.Rect
	} else if p, ok := e.layout.PeriodByID(itemID); ok {
		t.Kind, t.Rect = KindPeriod, p.Rect
	} else {
		return fmt.Errorf("drag %s: %w", itemID, document.ErrItemNotFound)
	}
	return e.drag.Begin(t, e.ScreenToSurface(x, y))
}

// MoveDrag updates the provisional position and returns it in surface
// coordinates. The document is not touched.
func (e *Engine) MoveDrag(x, y float64) (Point, error) {
	return e.drag.Move(e.ScreenToSurface(x, y))
}

// EndDrag converts the dragged position into offsets relative to the
// item's computed anchor, stores them and relays out.
func (e *Engine) EndDrag(x, y float64) (DragCommit, error) {
	t, pos, err := e.drag.End(e.ScreenToSurface(x, y))
	if err != nil {
		return DragCommit{}, err
	}
	defer e.drag.Done()

	ctx, err := NewContext(e.doc)
	if err != nil {
		return DragCommit{}, err
	}

	commit := DragCommit{ItemID: t.ID, Kind: t.Kind}
	switch t.Kind {
	case KindEvent:
		ev, ok := e.doc.Event(t.ID)
		if !ok {
			return DragCommit{}, fmt.Errorf("commit drag %s: %w", t.ID, document.ErrItemNotFound)
		}
		commit.OffsetX, commit.OffsetY = ctx.EventOffsets(ev, pos.X+t.Rect.Width/2, pos.Y)
		err = e.doc.SetEventOffset(t.ID, commit.OffsetX, commit.OffsetY)
	case KindPeriod:
		commit.OffsetY = ctx.PeriodOffsetY(pos.Y)
		err = e.doc.SetPeriodOffset(t.ID, commit.OffsetY)
	}
	if err != nil {
		return DragCommit{}, fmt.Errorf("commit drag %s: %w", t.ID, err)
	}

	e.relayout()
	return commit, nil
}

// --- Queries (frontend ← backend) ---

// Document returns a copy of the current document.
func (e *Engine) Document() *document.Document {
	return e.doc.Clone()
}

// DocumentJSON returns the document in the saved-file format.
func (e *Engine) DocumentJSON() ([]byte, error) {
	return document.Marshal(e.doc)
}

// Layout returns the current layout. While a drag is active the grabbed
// item is shown at its provisional position.
func (e *Engine) Layout() (*Layout, error) {
	if e.layoutErr != nil {
		return nil, e.layoutErr
	}
	if t, ok := e.drag.Target(); ok {
		return e.layout.WithItemAt(t.ID, e.drag.Position()), nil
	}
	return e.layout, nil
}

// DrawCommands compiles the current layout.
func (e *Engine) DrawCommands() ([]DrawCommand, error) {
	l, err := e.Layout()
	if err != nil {
		return nil, err
	}
	return CompileDrawCommands(l, e.opts.Measurer), nil
}

// Guides returns the page boundaries over the surface.
func (e *Engine) Guides() (pagination.Guides, error) {
	if e.layoutErr != nil {
		return pagination.Guides{}, e.layoutErr
	}
	return e.layout.Guides, nil
}

// HitTest returns the topmost item under a pointer position given in
// screen coordinates. The result carries surface coordinates.
func (e *Engine) HitTest(x, y float64) (HitTestResult, bool) {
	if e.layoutErr != nil {
		return HitTestResult{}, false
	}
	p := e.ScreenToSurface(x, y)
	return HitTest(e.layout, p.X, p.Y)
}

// ViewMatrix returns the current view transform.
func (e *Engine) ViewMatrix() Matrix2D {
	return e.view
}

// DragPhase reports the state of the drag state machine.
func (e *Engine) DragPhase() DragPhase {
	return e.drag.Phase()
}
