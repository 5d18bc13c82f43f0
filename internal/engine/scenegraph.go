package engine

import (
	"github.com/SbTchR/TimelineGenerator/internal/document"
	"github.com/SbTchR/TimelineGenerator/internal/pagination"
)

// Layout is the render-ready state of a poster: every box, line and text
// block with absolute surface coordinates. It is rebuilt from the document
// after each change and never edited in place.
type Layout struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	BaselineY  float64 `json:"baselineY"`
	Background string  `json:"background"`

	Axis       Axis        `json:"axis"`
	Periods    []PeriodBox `json:"periods"`
	Events     []EventCard `json:"events"`
	Connectors []Connector `json:"connectors"`

	// Page is the guide page at scale 1.
	Page   pagination.PageGeometry `json:"page"`
	Guides pagination.Guides       `json:"guides"`
}

// ItemKind tags the two kinds of placed item.
type ItemKind string

const (
	KindEvent  ItemKind = "event"
	KindPeriod ItemKind = "period"
)

type Axis struct {
	Baseline Segment     `json:"baseline"`
	Ticks    []Tick      `json:"ticks"`
	Labels   []TextBlock `json:"labels"`
}

type Tick struct {
	Value float64 `json:"value"`
	Main  bool    `json:"main"`
	Rect  Rect    `json:"rect"`
	Color string  `json:"color"`
}

// Segment is a straight stroked line.
type Segment struct {
	X1      float64 `json:"x1"`
	Y1      float64 `json:"y1"`
	X2      float64 `json:"x2"`
	Y2      float64 `json:"y2"`
	Width   float64 `json:"width"`
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
}

type TextAlign string

const TextCenter TextAlign = "center"

// TextBlock is wrapped text inside a box. Lines are already broken; each
// line box is LineHeight tall.
type TextBlock struct {
	Lines      []string  `json:"lines"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Width      float64   `json:"width"`
	Height     float64   `json:"height"`
	FontSize   float64   `json:"fontSize"`
	LineHeight float64   `json:"lineHeight"`
	Font       string    `json:"font"`
	Bold       bool      `json:"bold,omitempty"`
	Color      string    `json:"color"`
	Opacity    float64   `json:"opacity"`
	Align      TextAlign `json:"align"`
}

type ImageSlot struct {
	Src  string `json:"src"`
	Alt  string `json:"alt"`
	Rect Rect   `json:"rect"`
}

// EventCard is a laid-out event. Rect is the card; AnchorX is the axis
// position of the event value.
type EventCard struct {
	ID                string     `json:"id"`
	Rect              Rect       `json:"rect"`
	AnchorX           float64    `json:"anchorX"`
	Background        string     `json:"background"`
	BackgroundOpacity float64    `json:"backgroundOpacity"`
	Title             TextBlock  `json:"title"`
	Date              *TextBlock `json:"date,omitempty"`
	Detail            *TextBlock `json:"detail,omitempty"`
	Image             *ImageSlot `json:"image,omitempty"`
}

// PeriodBox is a laid-out period. Rect is its layout box; the centred
// label of a line period sits outside it (Overlay) and is not part of hit
// testing.
type PeriodBox struct {
	ID        string                  `json:"id"`
	Style     document.PeriodStyle    `json:"style"`
	Alignment document.TitleAlignment `json:"alignment"`
	Rect      Rect                    `json:"rect"`

	// rect style
	Fill          string  `json:"fill,omitempty"`
	FillOpacity   float64 `json:"fillOpacity,omitempty"`
	Stroke        string  `json:"stroke,omitempty"`
	StrokeOpacity float64 `json:"strokeOpacity,omitempty"`
	BorderWidth   float64 `json:"borderWidth,omitempty"`

	// line style
	Bar        Rect    `json:"bar"`
	BarColor   string  `json:"barColor,omitempty"`
	BarOpacity float64 `json:"barOpacity,omitempty"`
	Caps       []Rect  `json:"caps,omitempty"`
	CapOpacity float64 `json:"capOpacity,omitempty"`
	Overlay    bool    `json:"overlay,omitempty"`

	LabelArea Rect       `json:"labelArea"`
	Label     TextBlock  `json:"label"`
	Detail    *TextBlock `json:"detail,omitempty"`
	Image     *ImageSlot `json:"image,omitempty"`
}

type Connector struct {
	ItemID string `json:"itemId"`
	Segment
}

// Rect represents an axis-aligned bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a position on the surface.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Contains checks if a point is inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}

	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.X+r.Width, other.X+other.Width)
	maxY := max(r.Y+r.Height, other.Y+other.Height)

	return Rect{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// Center returns the center point of the rect.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

func (r Rect) TopLeft() Point {
	return Point{X: r.X, Y: r.Y}
}

// Bounds returns the smallest rect containing every item box, the overlay
// labels included.
func (l *Layout) Bounds() Rect {
	var b Rect
	for _, p := range l.Periods {
		b = b.Union(p.Rect)
		if p.Overlay {
			b = b.Union(p.LabelArea)
		}
	}
	for _, c := range l.Events {
		b = b.Union(c.Rect)
	}
	return b
}

// EventByID returns the card of a visible event.
func (l *Layout) EventByID(id string) (EventCard, bool) {
	for _, c := range l.Events {
		if c.ID == id {
			return c, true
		}
	}
	return EventCard{}, false
}

// PeriodByID returns the box of a visible period.
func (l *Layout) PeriodByID(id string) (PeriodBox, bool) {
	for _, p := range l.Periods {
		if p.ID == id {
			return p, true
		}
	}
	return PeriodBox{}, false
}
