package engine

import (
	"strconv"

	"github.com/SbTchR/TimelineGenerator/internal/document"
)

// MinPeriodWidth keeps very short periods visible and grabbable.
const MinPeriodWidth = 12

// Context is everything placement needs from the document settings. It is
// passed explicitly so placement stays a pure function of its inputs.
type Context struct {
	Mapper           Mapper
	BaselineY        float64
	EventBaseOffset  float64
	PeriodBaseOffset float64
}

func NewContext(doc *document.Document) (Context, error) {
	m, err := NewMapper(doc)
	if err != nil {
		return Context{}, err
	}
	return Context{
		Mapper:           m,
		BaselineY:        doc.TimelineHeight / 2,
		EventBaseOffset:  doc.EventBaseOffset,
		PeriodBaseOffset: doc.PeriodBaseOffset,
	}, nil
}

// EventAnchor returns the card's horizontal centre and top edge.
func (c Context) EventAnchor(ev document.Event) (centerX, top float64) {
	return c.Mapper.ValueToX(ev.Value) + ev.OffsetX, c.BaselineY + c.EventBaseOffset + ev.OffsetY
}

// EventOffsets is the inverse of EventAnchor: the offsets that put the
// card's centre at centerX and its top at top.
func (c Context) EventOffsets(ev document.Event, centerX, top float64) (offsetX, offsetY float64) {
	return centerX - c.Mapper.ValueToX(ev.Value), top - (c.BaselineY + c.EventBaseOffset)
}

// PeriodAnchor returns the period's top-left corner and width.
func (c Context) PeriodAnchor(p document.Period) (x, y, width float64) {
	startX := c.Mapper.ValueToX(p.Start)
	endX := c.Mapper.ValueToX(p.End)
	return startX + p.OffsetX, c.BaselineY + c.PeriodBaseOffset + p.OffsetY, max(MinPeriodWidth, endX-startX)
}

// PeriodOffsetY is the vertical offset that puts the period's top at top.
func (c Context) PeriodOffsetY(top float64) float64 {
	return top - (c.BaselineY + c.PeriodBaseOffset)
}

// Connector joins a card to the axis: from the card edge nearest the
// baseline at anchorX down (or up) to the event value on the baseline.
func (c Context) Connector(ev document.Event, anchorX float64, card Rect) Connector {
	y1 := card.Y
	if card.Y+card.Height/2 < c.BaselineY {
		y1 = card.Y + card.Height
	}
	return Connector{
		ItemID: ev.ID,
		Segment: Segment{
			X1:      anchorX,
			Y1:      y1,
			X2:      c.Mapper.ValueToX(ev.Value),
			Y2:      c.BaselineY,
			Width:   connectorWidth,
			Color:   ev.ConnectorColor,
			Opacity: 1,
		},
	}
}

// PeriodLabel is the title, followed by the range when ShowDate is set.
func PeriodLabel(p document.Period) string {
	if !p.ShowDate {
		return p.Title
	}
	return p.Title + " (" + FormatValue(p.Start) + " – " + FormatValue(p.End) + ")"
}

// FormatValue prints an axis value with the fewest digits that read back
// to the same number.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
