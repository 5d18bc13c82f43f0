package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/SbTchR/TimelineGenerator/internal/document"
	"github.com/SbTchR/TimelineGenerator/internal/pagination"
)

var ErrTooManyTicks = errors.New("too many ticks")

const (
	// MaxMainTicks bounds the main ticks of one axis.
	MaxMainTicks = 10000
	// MaxTicks bounds main and secondary ticks together.
	MaxTicks = 200000

	tickEpsilon = 1e-6
)

// Box metrics shared by every renderer.
const (
	cardPadding        = 8
	titleScale         = 1.15
	eventDetailScale   = 0.9
	periodDetailScale  = 0.85
	detailGap          = 4
	imageGap           = 4
	imageSlotHeight    = 80
	periodImageWidth   = 120
	rectImageRatio     = 0.9
	lineLabelGap       = 6
	overlayMinWidth    = 200
	overlayExtraWidth  = 100
	overlayMinPadding  = 8
	mainTickWidth      = 2
	secondaryTickWidth = 1
	baselineThickness  = 2
	connectorWidth     = 1
	capWidth           = 3
	capMinHeight       = 10
	detailOpacity      = 0.9
)

// Options tune ComputeLayout. The zero value measures with the default
// measurer and draws A4 guides.
type Options struct {
	Measurer *Measurer
	Paper    pagination.Paper
}

// ComputeLayout lays out the whole poster. It does not modify doc.
// Hidden items get no box and no connector.
func ComputeLayout(doc *document.Document, opts Options) (*Layout, error) {
	d := doc.Clone()
	d.Normalize()

	ctx, err := NewContext(d)
	if err != nil {
		return nil, err
	}
	m := opts.Measurer
	if m == nil {
		m = DefaultMeasurer()
	}
	paper := opts.Paper
	if paper.WidthMm <= 0 || paper.HeightMm <= 0 {
		paper = pagination.A4
	}

	b := &builder{doc: d, ctx: ctx, m: m}
	l := &Layout{
		Width:      ctx.Mapper.TimelineWidth(),
		Height:     d.TimelineHeight,
		BaselineY:  ctx.BaselineY,
		Background: d.BackgroundColor,
		Periods:    []PeriodBox{},
		Events:     []EventCard{},
		Connectors: []Connector{},
	}

	if l.Axis, err = b.axis(l.Width); err != nil {
		return nil, err
	}

	for _, p := range d.Periods {
		if !p.Visible {
			continue
		}
		l.Periods = append(l.Periods, b.period(p))
	}
	for _, ev := range d.Events {
		if !ev.Visible {
			continue
		}
		card, anchorX := b.event(ev)
		l.Events = append(l.Events, card)
		l.Connectors = append(l.Connectors, ctx.Connector(ev, anchorX, card.Rect))
	}

	l.Page = paper.Geometry(pagination.Orientation(d.Orientation), 1)
	if l.Guides, err = pagination.ComputeGuides(l.Width, l.Height, l.BaselineY, l.Page); err != nil {
		return nil, fmt.Errorf("compute guides: %w", err)
	}
	return l, nil
}

type builder struct {
	doc *document.Document
	ctx Context
	m   *Measurer
}

func (b *builder) axis(width float64) (Axis, error) {
	d := b.doc
	mp := b.ctx.Mapper
	base := b.ctx.BaselineY

	mainCount := math.Floor((mp.End-mp.Start+tickEpsilon)/mp.MainStep) + 1
	if mainCount > MaxMainTicks {
		return Axis{}, fmt.Errorf("%w: %.0f main ticks", ErrTooManyTicks, mainCount)
	}
	perMain := 0.0
	if d.SecondaryPerMain > 0 {
		perMain = math.Ceil(d.SecondaryPerMain) - 1
	}
	if mainCount*(1+perMain) > MaxTicks {
		return Axis{}, fmt.Errorf("%w: %.0f ticks", ErrTooManyTicks, mainCount*(1+perMain))
	}

	axis := Axis{
		Baseline: Segment{
			X1: 0, Y1: base, X2: width, Y2: base,
			Width:   baselineThickness,
			Color:   d.BaselineColor,
			Opacity: 1,
		},
		Ticks:  []Tick{},
		Labels: []TextBlock{},
	}

	secondaryFont := d.SecondaryLabelFont
	if secondaryFont == "" {
		secondaryFont = d.LabelFont
	}

	for i := 0; ; i++ {
		v := mp.Start + float64(i)*mp.MainStep
		if v > mp.End+tickEpsilon {
			break
		}
		x := mp.ValueToX(v)
		axis.Ticks = append(axis.Ticks, Tick{
			Value: v,
			Main:  true,
			Rect:  Rect{X: x - mainTickWidth/2.0, Y: base - d.MainTickHeight, Width: mainTickWidth, Height: d.MainTickHeight},
			Color: d.MainTickColor,
		})
		axis.Labels = append(axis.Labels, b.tickLabel(v, x, base+d.LabelOffset, d.LabelSize, d.LabelFont, d.LabelColor))

		if d.SecondaryPerMain > 0 && v+mp.MainStep <= mp.End+tickEpsilon {
			for j := 1; float64(j) < d.SecondaryPerMain; j++ {
				sv := v + float64(j)/d.SecondaryPerMain*mp.MainStep
				sx := mp.ValueToX(sv)
				axis.Ticks = append(axis.Ticks, Tick{
					Value: sv,
					Rect:  Rect{X: sx - secondaryTickWidth/2.0, Y: base - d.SecondaryTickHeight, Width: secondaryTickWidth, Height: d.SecondaryTickHeight},
					Color: d.SecondaryTickColor,
				})
				if d.ShowSecondaryLabels {
					axis.Labels = append(axis.Labels, b.tickLabel(sv, sx, base+d.SecondaryLabelOffset, d.SecondaryLabelSize, secondaryFont, d.SecondaryLabelColor))
				}
			}
		}
	}
	return axis, nil
}

// tickLabel centres a single-line value label on x.
func (b *builder) tickLabel(v, x, top, size float64, font, color string) TextBlock {
	text := FormatValue(math.Round(v*1e9) / 1e9)
	w := b.m.TextWidth(text, size, false)
	return TextBlock{
		Lines:      []string{text},
		X:          x - w/2,
		Y:          top,
		Width:      w,
		Height:     size * LineHeightFactor,
		FontSize:   size,
		LineHeight: size * LineHeightFactor,
		Font:       font,
		Color:      color,
		Opacity:    1,
		Align:      TextCenter,
	}
}

// block wraps text to maxWidth. Position is set by the caller.
func (b *builder) block(text string, size, maxWidth float64, bold bool, font, color string) TextBlock {
	lines := b.m.Wrap(text, size, maxWidth, bold)
	if lines == nil {
		lines = []string{}
	}
	lh := size * LineHeightFactor
	return TextBlock{
		Lines:      lines,
		Width:      maxWidth,
		Height:     float64(len(lines)) * lh,
		FontSize:   size,
		LineHeight: lh,
		Font:       font,
		Bold:       bold,
		Color:      color,
		Opacity:    1,
		Align:      TextCenter,
	}
}

// event lays out a card and returns it with its anchor x.
func (b *builder) event(ev document.Event) (EventCard, float64) {
	cx, top := b.ctx.EventAnchor(ev)
	width := ev.Width
	contentW := max(1, width-2*cardPadding)
	x := cx - width/2
	left := x + cardPadding
	y := top + cardPadding

	card := EventCard{
		ID:                ev.ID,
		AnchorX:           b.ctx.Mapper.ValueToX(ev.Value),
		Background:        ev.BackgroundColor,
		BackgroundOpacity: ev.BackgroundOpacity,
	}

	card.Title = b.block(ev.Title, ev.FontSize*titleScale, contentW, true, ev.Font, ev.TextColor)
	card.Title.X, card.Title.Y = left, y
	y += card.Title.Height

	if ev.ShowDate {
		date := b.block(FormatValue(ev.Value), ev.FontSize, contentW, false, ev.Font, ev.TextColor)
		date.X, date.Y = left, y
		y += date.Height
		card.Date = &date
	}
	if ev.Detail != "" {
		y += detailGap
		detail := b.block(ev.Detail, ev.FontSize*eventDetailScale, contentW, false, ev.Font, ev.TextColor)
		detail.X, detail.Y = left, y
		y += detail.Height
		card.Detail = &detail
	}
	if ev.Image != "" {
		y += imageGap
		card.Image = &ImageSlot{
			Src:  ev.Image,
			Alt:  ev.Title,
			Rect: Rect{X: left, Y: y, Width: contentW, Height: imageSlotHeight},
		}
		y += imageSlotHeight
	}
	y += cardPadding

	card.Rect = Rect{X: x, Y: top, Width: width, Height: y - top}
	return card, cx
}

// labelStack is a period's label, detail and image stacked vertically and
// centred horizontally.
type labelStack struct {
	label  TextBlock
	detail *TextBlock
	image  *ImageSlot
	width  float64
	height float64
}

// periodStack wraps the period texts at wrapWidth. With shrink set the
// stack narrows to its widest line.
func (b *builder) periodStack(p document.Period, wrapWidth, imageWidth float64, shrink bool) labelStack {
	s := labelStack{width: wrapWidth}
	s.label = b.block(PeriodLabel(p), p.FontSize, wrapWidth, true, p.Font, p.TextColor)
	s.height = s.label.Height

	if p.Detail != "" {
		d := b.block(p.Detail, p.FontSize*periodDetailScale, wrapWidth, false, p.Font, p.TextColor)
		d.Opacity = detailOpacity
		s.detail = &d
		s.height += d.Height
	}
	if p.Image != "" {
		s.image = &ImageSlot{Src: p.Image, Alt: p.Title, Rect: Rect{Width: imageWidth, Height: imageSlotHeight}}
		s.height += imageGap + imageSlotHeight
	}

	if shrink {
		w := b.m.MaxLineWidth(s.label.Lines, s.label.FontSize, true)
		if s.detail != nil {
			w = max(w, b.m.MaxLineWidth(s.detail.Lines, s.detail.FontSize, false))
		}
		if s.image != nil {
			w = max(w, imageWidth)
		}
		s.width = w
		s.label.Width = w
		if s.detail != nil {
			s.detail.Width = w
		}
	}
	return s
}

// place puts the stack's top-left corner at (x, y).
func (s *labelStack) place(x, y float64) {
	s.label.X, s.label.Y = x, y
	y += s.label.Height
	if s.detail != nil {
		s.detail.X, s.detail.Y = x, y
		y += s.detail.Height
	}
	if s.image != nil {
		y += imageGap
		s.image.Rect.X = x + (s.width-s.image.Rect.Width)/2
		s.image.Rect.Y = y
	}
}

func (s *labelStack) area() Rect {
	return Rect{X: s.label.X, Y: s.label.Y, Width: s.width, Height: s.height}
}

func (s *labelStack) apply(box *PeriodBox) {
	box.Label = s.label
	box.Detail = s.detail
	box.Image = s.image
	box.LabelArea = s.area()
}

func (b *builder) period(p document.Period) PeriodBox {
	x, y, width := b.ctx.PeriodAnchor(p)
	box := PeriodBox{
		ID:        p.ID,
		Style:     p.Style,
		Alignment: p.TitleAlignment,
	}
	if p.Style == document.PeriodStyleLine {
		b.linePeriod(&box, p, x, y, width)
	} else {
		b.rectPeriod(&box, p, x, y, width)
	}
	return box
}

// rectPeriod lays out a filled box of fixed height. The border is drawn
// inside the box.
func (b *builder) rectPeriod(box *PeriodBox, p document.Period, x, y, width float64) {
	box.Rect = Rect{X: x, Y: y, Width: width, Height: p.RectHeight}
	box.Fill = p.FillColor
	box.FillOpacity = p.FillOpacity
	box.Stroke = p.StrokeColor
	box.StrokeOpacity = math.Min(1, p.FillOpacity+0.1)
	box.BorderWidth = p.Thickness

	inner := Rect{
		X:      x + p.Thickness,
		Y:      y + p.Thickness,
		Width:  max(1, width-2*p.Thickness),
		Height: max(0, p.RectHeight-2*p.Thickness),
	}
	s := b.periodStack(p, inner.Width, inner.Width*rectImageRatio, false)

	top := inner.Y + (inner.Height-s.height)/2
	switch p.TitleAlignment {
	case document.AlignTop:
		top = inner.Y
	case document.AlignBottom:
		top = inner.Y + inner.Height - s.height
	}
	s.place(inner.X, top)
	s.apply(box)
}

// linePeriod lays out a ruled line with end caps. A top or bottom label
// stacks with the line inside the layout box; a middle label is drawn over
// the line and leaves the box unchanged.
func (b *builder) linePeriod(box *PeriodBox, p document.Period, x, y, width float64) {
	box.BarColor = p.StrokeColor
	box.BarOpacity = p.FillOpacity
	box.CapOpacity = p.FillOpacity
	imageW := math.Min(periodImageWidth, width)

	var barY, height float64
	switch p.TitleAlignment {
	case document.AlignTop:
		s := b.periodStack(p, width, imageW, false)
		s.place(x, y)
		s.apply(box)
		barY = y + s.height + lineLabelGap
		height = s.height + lineLabelGap + p.Thickness
	case document.AlignBottom:
		s := b.periodStack(p, width, imageW, false)
		barY = y
		s.place(x, y+p.Thickness+lineLabelGap)
		s.apply(box)
		height = p.Thickness + lineLabelGap + s.height
	default:
		pad := math.Max(overlayMinPadding, p.FontSize)
		barY = y + pad
		height = 2*pad + p.Thickness

		s := b.periodStack(p, math.Max(width+overlayExtraWidth, overlayMinWidth), imageW, true)
		cx := x + width/2
		cy := barY + p.Thickness/2
		s.place(cx-s.width/2, cy-s.height/2)
		s.apply(box)
		box.Overlay = true
	}

	box.Rect = Rect{X: x, Y: y, Width: width, Height: height}
	box.Bar = Rect{X: x, Y: barY, Width: width, Height: p.Thickness}

	capH := math.Max(capMinHeight, 3*p.Thickness)
	capY := barY + p.Thickness/2 - capH/2
	box.Caps = []Rect{
		{X: x, Y: capY, Width: capWidth, Height: capH},
		{X: x + width - capWidth, Y: capY, Width: capWidth, Height: capH},
	}
}
