package document

import (
	"encoding/json"
	"math"
)

// Document is the persisted poster: axis and styling settings plus the two
// ordered item collections. Field names follow the saved-file format.
type Document struct {
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	MainStep         float64 `json:"mainStep"`
	SecondaryPerMain float64 `json:"secondaryPerMain"`
	MmPerMain        float64 `json:"mmPerMain"`

	MainTickHeight      float64 `json:"mainTickHeight"`
	SecondaryTickHeight float64 `json:"secondaryTickHeight"`

	BackgroundColor    string `json:"backgroundColor"`
	BaselineColor      string `json:"baselineColor"`
	MainTickColor      string `json:"mainTickColor"`
	SecondaryTickColor string `json:"secondaryTickColor"`

	LabelColor  string  `json:"labelColor"`
	LabelSize   float64 `json:"labelSize"`
	LabelOffset float64 `json:"labelOffset"`
	LabelFont   string  `json:"labelFont"`

	ShowSecondaryLabels  bool    `json:"showSecondaryLabels"`
	SecondaryLabelSize   float64 `json:"secondaryLabelSize"`
	SecondaryLabelColor  string  `json:"secondaryLabelColor"`
	SecondaryLabelOffset float64 `json:"secondaryLabelOffset"`
	SecondaryLabelFont   string  `json:"secondaryLabelFont"`

	TimelineHeight   float64 `json:"timelineHeight"`
	Padding          float64 `json:"padding"`
	EventBaseOffset  float64 `json:"eventBaseOffset"`
	PeriodBaseOffset float64 `json:"periodBaseOffset"`

	ExportScale float64     `json:"exportScale"`
	Orientation Orientation `json:"orientation"`

	Events  []Event  `json:"events"`
	Periods []Period `json:"periods"`
}

type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

type PeriodStyle string

const (
	PeriodStyleRect PeriodStyle = "rect"
	PeriodStyleLine PeriodStyle = "line"
)

type TitleAlignment string

const (
	AlignTop    TitleAlignment = "top"
	AlignMiddle TitleAlignment = "middle"
	AlignBottom TitleAlignment = "bottom"
)

// Placement is the part shared by events and periods: identity, the manual
// nudge relative to the computed anchor, and visibility.
type Placement struct {
	ID      string  `json:"id"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Visible bool    `json:"visible"`
}

// Event is a point item placed at Value.
type Event struct {
	Placement
	Title             string  `json:"title"`
	Value             float64 `json:"value"`
	Font              string  `json:"font"`
	FontSize          float64 `json:"fontSize"`
	Width             float64 `json:"width"`
	TextColor         string  `json:"textColor"`
	BackgroundColor   string  `json:"backgroundColor"`
	BackgroundOpacity float64 `json:"backgroundOpacity"`
	ConnectorColor    string  `json:"connectorColor"`
	ShowDate          bool    `json:"showDate"`
	Detail            string  `json:"detail"`
	Image             string  `json:"image,omitempty"`
}

// Period is a span item covering [Start, End].
type Period struct {
	Placement
	Title          string         `json:"title"`
	Start          float64        `json:"start"`
	End            float64        `json:"end"`
	Style          PeriodStyle    `json:"style"`
	Thickness      float64        `json:"thickness"`
	RectHeight     float64        `json:"rectHeight"`
	TitleAlignment TitleAlignment `json:"titleAlignment"`
	FillColor      string         `json:"fillColor"`
	FillOpacity    float64        `json:"fillOpacity"`
	TextColor      string         `json:"textColor"`
	StrokeColor    string         `json:"strokeColor"`
	Font           string         `json:"font"`
	FontSize       float64        `json:"fontSize"`
	ShowDate       bool           `json:"showDate"`
	Detail         string         `json:"detail"`
	Image          string         `json:"image,omitempty"`
}

// Defaults returns the built-in poster settings with empty collections.
func Defaults() Document {
	return Document{
		Start:                1900,
		End:                  2025,
		MainStep:             10,
		SecondaryPerMain:     4,
		MmPerMain:            15,
		MainTickHeight:       20,
		SecondaryTickHeight:  12,
		BackgroundColor:      "#f7f9fb",
		BaselineColor:        "#0f172a",
		MainTickColor:        "#0f172a",
		SecondaryTickColor:   "#94a3b8",
		LabelColor:           "#0f172a",
		LabelSize:            12,
		LabelOffset:          6,
		LabelFont:            "Space Grotesk",
		ShowSecondaryLabels:  false,
		SecondaryLabelSize:   10,
		SecondaryLabelColor:  "#6b7a90",
		SecondaryLabelOffset: 4,
		SecondaryLabelFont:   "Space Grotesk",
		TimelineHeight:       520,
		Padding:              60,
		EventBaseOffset:      -120,
		PeriodBaseOffset:     60,
		ExportScale:          4,
		Orientation:          OrientationLandscape,
		Events:               []Event{},
		Periods:              []Period{},
	}
}

// DefaultEvent returns the values an event takes for every field a form or
// an older saved file leaves out.
func DefaultEvent() Event {
	return Event{
		Placement:         Placement{Visible: true},
		Title:             "Événement",
		Font:              "Space Grotesk",
		FontSize:          14,
		Width:             120,
		TextColor:         "#0f172a",
		BackgroundColor:   "#ffffff",
		BackgroundOpacity: 1,
		ConnectorColor:    "#0f172a",
		ShowDate:          true,
	}
}

// DefaultPeriod is the period counterpart of DefaultEvent.
func DefaultPeriod() Period {
	return Period{
		Placement:      Placement{Visible: true},
		Title:          "Période",
		Style:          PeriodStyleRect,
		Thickness:      4,
		RectHeight:     44,
		TitleAlignment: AlignMiddle,
		FillColor:      "#38bdf8",
		FillOpacity:    0.45,
		TextColor:      "#0f172a",
		StrokeColor:    "#0369a1",
		Font:           "Space Grotesk",
		FontSize:       14,
		ShowDate:       true,
	}
}

// UnmarshalJSON fills keys missing from data with DefaultEvent values, so
// documents written before offsets and visibility existed still load.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	p := plain(DefaultEvent())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Event(p)
	return nil
}

// UnmarshalJSON fills keys missing from data with DefaultPeriod values.
func (p *Period) UnmarshalJSON(data []byte) error {
	type plain Period
	v := plain(DefaultPeriod())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Period(v)
	return nil
}

// Font sizes are clamped to this range, in CSS pixels.
const (
	MinFontSize = 4
	MaxFontSize = 400
)

// ClampFontSize limits size to [MinFontSize, MaxFontSize]. A non-positive
// or non-finite size becomes def.
func ClampFontSize(size, def float64) float64 {
	if !(size > 0) || math.IsInf(size, 0) {
		size = def
	}
	return min(max(size, MinFontSize), MaxFontSize)
}

// Normalize applies the clamps that keep a document renderable: a
// degenerate range becomes one unit wide, period bounds are ordered, font
// sizes are clamped, and a missing orientation or capture scale falls back
// to its default.
// A non-positive main step is left alone; layout reports it.
func (d *Document) Normalize() {
	if d.End <= d.Start {
		d.End = d.Start + 1
	}
	if d.SecondaryPerMain < 0 {
		d.SecondaryPerMain = 0
	}
	if d.Orientation != OrientationPortrait && d.Orientation != OrientationLandscape {
		d.Orientation = OrientationLandscape
	}
	def := Defaults()
	if d.ExportScale <= 0 {
		d.ExportScale = def.ExportScale
	}
	d.LabelSize = ClampFontSize(d.LabelSize, def.LabelSize)
	d.SecondaryLabelSize = ClampFontSize(d.SecondaryLabelSize, def.SecondaryLabelSize)
	for i := range d.Events {
		d.Events[i].FontSize = ClampFontSize(d.Events[i].FontSize, DefaultEvent().FontSize)
	}
	if d.Events == nil {
		d.Events = []Event{}
	}
	if d.Periods == nil {
		d.Periods = []Period{}
	}
	for i := range d.Periods {
		p := &d.Periods[i]
		if p.Start > p.End {
			p.Start, p.End = p.End, p.Start
		}
		p.FontSize = ClampFontSize(p.FontSize, DefaultPeriod().FontSize)
		if p.Style != PeriodStyleRect && p.Style != PeriodStyleLine {
			p.Style = PeriodStyleRect
		}
		switch p.TitleAlignment {
		case AlignTop, AlignMiddle, AlignBottom:
		default:
			p.TitleAlignment = AlignMiddle
		}
	}
}

// Clone returns a deep copy; the collections are not shared.
func (d *Document) Clone() *Document {
	c := *d
	c.Events = make([]Event, len(d.Events))
	copy(c.Events, d.Events)
	c.Periods = make([]Period, len(d.Periods))
	copy(c.Periods, d.Periods)
	return &c
}
