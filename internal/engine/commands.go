package engine

import "github.com/SbTchR/TimelineGenerator/internal/document"

// Draw operations.
const (
	OpRect  = "rect"
	OpLine  = "line"
	OpText  = "text"
	OpImage = "image"
)

// DrawCommand represents a single drawing operation.
// The wasm front end executes these on a Canvas2D context and the software
// rasteriser replays them onto an image.
//
// rect: X, Y, Width, Height; filled with Fill, then stroked inside its
// edges with StrokeWidth.
// line: X, Y to X2, Y2 with Stroke and StrokeWidth.
// text: one line of Text with its alphabetic baseline at Y, starting at X.
// image: Src scaled to fit X, Y, Width, Height keeping its aspect ratio.
type DrawCommand struct {
	Op            string  `json:"op"`
	ItemID        string  `json:"itemId,omitempty"` // For hit correlation
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	X2            float64 `json:"x2,omitempty"`
	Y2            float64 `json:"y2,omitempty"`
	Width         float64 `json:"width,omitempty"`
	Height        float64 `json:"height,omitempty"`
	Fill          string  `json:"fill,omitempty"`
	FillOpacity   float64 `json:"fillOpacity,omitempty"`
	Stroke        string  `json:"stroke,omitempty"`
	StrokeWidth   float64 `json:"strokeWidth,omitempty"`
	StrokeOpacity float64 `json:"strokeOpacity,omitempty"`
	Text          string  `json:"text,omitempty"`
	Font          string  `json:"font,omitempty"`
	FontSize      float64 `json:"fontSize,omitempty"`
	Bold          bool    `json:"bold,omitempty"`
	Src           string  `json:"src,omitempty"`
}

// CompileDrawCommands generates a draw command buffer from a layout.
// Commands are in painter's order (back to front): background, axis,
// periods, event cards, connectors.
func CompileDrawCommands(l *Layout, m *Measurer) []DrawCommand {
	if l == nil {
		return nil
	}
	if m == nil {
		m = DefaultMeasurer()
	}

	c := &compiler{m: m}
	c.add(DrawCommand{Op: OpRect, Width: l.Width, Height: l.Height, Fill: l.Background, FillOpacity: 1})

	c.segment("", l.Axis.Baseline)
	for _, t := range l.Axis.Ticks {
		c.add(DrawCommand{Op: OpRect, X: t.Rect.X, Y: t.Rect.Y, Width: t.Rect.Width, Height: t.Rect.Height, Fill: t.Color, FillOpacity: 1})
	}
	for _, t := range l.Axis.Labels {
		c.text("", t)
	}

	for _, p := range l.Periods {
		c.period(p)
	}
	for _, e := range l.Events {
		c.event(e)
	}
	for _, k := range l.Connectors {
		c.segment(k.ItemID, k.Segment)
	}
	return c.cmds
}

type compiler struct {
	m    *Measurer
	cmds []DrawCommand
}

func (c *compiler) add(cmd DrawCommand) {
	c.cmds = append(c.cmds, cmd)
}

func (c *compiler) segment(itemID string, s Segment) {
	c.add(DrawCommand{
		Op:            OpLine,
		ItemID:        itemID,
		X:             s.X1,
		Y:             s.Y1,
		X2:            s.X2,
		Y2:            s.Y2,
		Stroke:        s.Color,
		StrokeWidth:   s.Width,
		StrokeOpacity: s.Opacity,
	})
}

// text emits one command per line, aligned within the block and placed on
// the line's baseline.
func (c *compiler) text(itemID string, t TextBlock) {
	if len(t.Lines) == 0 {
		return
	}
	ascent, descent := c.m.Metrics(t.FontSize, t.Bold)
	for i, line := range t.Lines {
		top := t.Y + float64(i)*t.LineHeight
		x := t.X
		if t.Align == TextCenter {
			x += (t.Width - c.m.TextWidth(line, t.FontSize, t.Bold)) / 2
		}
		c.add(DrawCommand{
			Op:          OpText,
			ItemID:      itemID,
			X:           x,
			Y:           top + (t.LineHeight-(ascent+descent))/2 + ascent,
			Text:        line,
			Font:        t.Font,
			FontSize:    t.FontSize,
			Bold:        t.Bold,
			Fill:        t.Color,
			FillOpacity: t.Opacity,
		})
	}
}

func (c *compiler) image(itemID string, img *ImageSlot) {
	if img == nil {
		return
	}
	c.add(DrawCommand{
		Op:     OpImage,
		ItemID: itemID,
		X:      img.Rect.X,
		Y:      img.Rect.Y,
		Width:  img.Rect.Width,
		Height: img.Rect.Height,
		Src:    img.Src,
	})
}

func (c *compiler) period(p PeriodBox) {
	if p.Style == document.PeriodStyleLine {
		c.add(DrawCommand{Op: OpRect, ItemID: p.ID, X: p.Bar.X, Y: p.Bar.Y, Width: p.Bar.Width, Height: p.Bar.Height, Fill: p.BarColor, FillOpacity: p.BarOpacity})
		for _, r := range p.Caps {
			c.add(DrawCommand{Op: OpRect, ItemID: p.ID, X: r.X, Y: r.Y, Width: r.Width, Height: r.Height, Fill: p.BarColor, FillOpacity: p.CapOpacity})
		}
	} else {
		c.add(DrawCommand{
			Op:            OpRect,
			ItemID:        p.ID,
			X:             p.Rect.X,
			Y:             p.Rect.Y,
			Width:         p.Rect.Width,
			Height:        p.Rect.Height,
			Fill:          p.Fill,
			FillOpacity:   p.FillOpacity,
			Stroke:        p.Stroke,
			StrokeWidth:   p.BorderWidth,
			StrokeOpacity: p.StrokeOpacity,
		})
	}
	c.text(p.ID, p.Label)
	if p.Detail != nil {
		c.text(p.ID, *p.Detail)
	}
	c.image(p.ID, p.Image)
}

func (c *compiler) event(e EventCard) {
	c.add(DrawCommand{
		Op:          OpRect,
		ItemID:      e.ID,
		X:           e.Rect.X,
		Y:           e.Rect.Y,
		Width:       e.Rect.Width,
		Height:      e.Rect.Height,
		Fill:        e.Background,
		FillOpacity: e.BackgroundOpacity,
	})
	c.text(e.ID, e.Title)
	if e.Date != nil {
		c.text(e.ID, *e.Date)
	}
	if e.Detail != nil {
		c.text(e.ID, *e.Detail)
	}
	c.image(e.ID, e.Image)
}

// HitTestResult contains information about a hit test.
type HitTestResult struct {
	ItemID string   `json:"itemId"`
	Kind   ItemKind `json:"kind"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
}

// HitTest returns the topmost visible item under the point. Events are
// above periods and later items above earlier ones. Only layout boxes are
// tested; a centred line-period label is not grabbable.
func HitTest(l *Layout, x, y float64) (HitTestResult, bool) {
	if l == nil {
		return HitTestResult{}, false
	}
	for i := len(l.Events) - 1; i >= 0; i-- {
		if l.Events[i].Rect.Contains(x, y) {
			return HitTestResult{ItemID: l.Events[i].ID, Kind: KindEvent, X: x, Y: y}, true
		}
	}
	for i := len(l.Periods) - 1; i >= 0; i-- {
		if l.Periods[i].Rect.Contains(x, y) {
			return HitTestResult{ItemID: l.Periods[i].ID, Kind: KindPeriod, X: x, Y: y}, true
		}
	}
	return HitTestResult{}, false
}
