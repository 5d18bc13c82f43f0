package engine

import "errors"

var (
	ErrDragActive  = errors.New("a drag is already in progress")
	ErrNotDragging = errors.New("no drag in progress")
)

// DragPhase is the state of the pointer drag state machine:
// Idle -> Dragging on Begin, Dragging -> Committing on End, and back to
// Idle once the commit is applied.
type DragPhase int

const (
	DragIdle DragPhase = iota
	DragDragging
	DragCommitting
)

func (p DragPhase) String() string {
	switch p {
	case DragDragging:
		return "dragging"
	case DragCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// DragTarget is the item grabbed by a drag and its box before the drag.
type DragTarget struct {
	ID   string
	Kind ItemKind
	Rect Rect
}

// Drag tracks one pointer drag. Moves are visual only; nothing is written
// to the document until the commit. There is no cancel: every drag ends in
// a commit, and dragged items are not clamped to the surface.
type Drag struct {
	phase   DragPhase
	target  DragTarget
	pointer Point
	pos     Point
}

func (d *Drag) Phase() DragPhase { return d.phase }

// Target returns the grabbed item while a drag is active.
func (d *Drag) Target() (DragTarget, bool) {
	if d.phase == DragIdle {
		return DragTarget{}, false
	}
	return d.target, true
}

// Position is the provisional top-left of the grabbed item.
func (d *Drag) Position() Point { return d.pos }

// Begin snapshots the pointer and the item's top-left.
func (d *Drag) Begin(t DragTarget, pointer Point) error {
	if d.phase != DragIdle {
		return ErrDragActive
	}
	d.phase = DragDragging
	d.target = t
	d.pointer = pointer
	d.pos = t.Rect.TopLeft()
	return nil
}

// Move returns the provisional top-left for the pointer. Periods follow
// the vertical delta only.
func (d *Drag) Move(pointer Point) (Point, error) {
	if d.phase != DragDragging {
		return Point{}, ErrNotDragging
	}
	d.pos = d.follow(pointer)
	return d.pos, nil
}

// End fixes the final top-left and enters the commit phase. The caller
// applies the commit and then calls Done.
func (d *Drag) End(pointer Point) (DragTarget, Point, error) {
	if d.phase != DragDragging {
		return DragTarget{}, Point{}, ErrNotDragging
	}
	d.pos = d.follow(pointer)
	d.phase = DragCommitting
	return d.target, d.pos, nil
}

// Done returns the machine to Idle.
func (d *Drag) Done() {
	*d = Drag{}
}

func (d *Drag) follow(pointer Point) Point {
	origin := d.target.Rect.TopLeft()
	dy := pointer.Y - d.pointer.Y
	if d.target.Kind == KindPeriod {
		return Point{X: origin.X, Y: origin.Y + dy}
	}
	return Point{X: origin.X + pointer.X - d.pointer.X, Y: origin.Y + dy}
}
