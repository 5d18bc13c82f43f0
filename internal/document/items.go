package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/SbTchR/TimelineGenerator/internal/typeid"
)

var ErrItemNotFound = errors.New("item not found")

// EventInput carries the editable fields of an event. Zero values mean
// "not provided" and fall back to the form defaults; a nil Value falls back
// to the axis start.
type EventInput struct {
	Title             string   `json:"title"`
	Value             *float64 `json:"value"`
	Font              string   `json:"font"`
	FontSize          float64  `json:"fontSize"`
	Width             float64  `json:"width"`
	TextColor         string   `json:"textColor"`
	BackgroundColor   string   `json:"backgroundColor"`
	BackgroundOpacity float64  `json:"backgroundOpacity"`
	ConnectorColor    string   `json:"connectorColor"`
	ShowDate          *bool    `json:"showDate"`
	Detail            string   `json:"detail"`
	Image             string   `json:"image"`
}

// PeriodInput carries the editable fields of a period. Nil bounds fall back
// to the axis bounds; the bounds are ordered before they are stored.
type PeriodInput struct {
	Title          string         `json:"title"`
	Start          *float64       `json:"start"`
	End            *float64       `json:"end"`
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
	ShowDate       *bool          `json:"showDate"`
	Detail         string         `json:"detail"`
	Image          string         `json:"image"`
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orPositive(v, def float64) float64 {
	if v > 0 && !math.IsInf(v, 0) {
		return v
	}
	return def
}

func orValue(v *float64, def float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return def
	}
	return *v
}

func orBool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// eventFromInput builds the stored fields of an event. base supplies the
// placement and the image kept when the input does not replace it.
func (d *Document) eventFromInput(in EventInput, base Event) Event {
	def := DefaultEvent()
	return Event{
		Placement:         base.Placement,
		Title:             orString(in.Title, def.Title),
		Value:             orValue(in.Value, d.Start),
		Font:              orString(in.Font, def.Font),
		FontSize:          ClampFontSize(in.FontSize, def.FontSize),
		Width:             orPositive(in.Width, def.Width),
		TextColor:         orString(in.TextColor, def.TextColor),
		BackgroundColor:   orString(in.BackgroundColor, def.BackgroundColor),
		BackgroundOpacity: orPositive(in.BackgroundOpacity, def.BackgroundOpacity),
		ConnectorColor:    orString(in.ConnectorColor, def.ConnectorColor),
		ShowDate:          orBool(in.ShowDate, def.ShowDate),
		Detail:            in.Detail,
		Image:             orString(in.Image, base.Image),
	}
}

func (d *Document) periodFromInput(in PeriodInput, base Period) Period {
	def := DefaultPeriod()
	start := orValue(in.Start, d.Start)
	end := orValue(in.End, d.End)
	style := in.Style
	if style != PeriodStyleRect && style != PeriodStyleLine {
		style = def.Style
	}
	align := in.TitleAlignment
	if align != AlignTop && align != AlignBottom {
		align = AlignMiddle
	}
	return Period{
		Placement:      base.Placement,
		Title:          orString(in.Title, def.Title),
		Start:          math.Min(start, end),
		End:            math.Max(start, end),
		Style:          style,
		Thickness:      orPositive(in.Thickness, def.Thickness),
		RectHeight:     orPositive(in.RectHeight, def.RectHeight),
		TitleAlignment: align,
		FillColor:      orString(in.FillColor, def.FillColor),
		FillOpacity:    orPositive(in.FillOpacity, def.FillOpacity),
		TextColor:      orString(in.TextColor, def.TextColor),
		StrokeColor:    orString(in.StrokeColor, def.StrokeColor),
		Font:           orString(in.Font, def.Font),
		FontSize:       ClampFontSize(in.FontSize, def.FontSize),
		ShowDate:       orBool(in.ShowDate, def.ShowDate),
		Detail:         in.Detail,
		Image:          orString(in.Image, base.Image),
	}
}

// --- Events ---

// AddEvent appends a new event with a fresh id and zero offsets.
func (d *Document) AddEvent(in EventInput) Event {
	ev := d.eventFromInput(in, Event{Placement: Placement{ID: typeid.NewEventID(), Visible: true}})
	d.Events = append(d.Events, ev)
	return ev
}

// UpdateEvent replaces the editable fields of an event in place. Its id,
// offsets, visibility and position in the collection are kept.
func (d *Document) UpdateEvent(id string, in EventInput) (Event, error) {
	i := d.eventIndex(id)
	if i < 0 {
		return Event{}, fmt.Errorf("event %s: %w", id, ErrItemNotFound)
	}
	d.Events[i] = d.eventFromInput(in, d.Events[i])
	return d.Events[i], nil
}

func (d *Document) DeleteEvent(id string) error {
	i := d.eventIndex(id)
	if i < 0 {
		return fmt.Errorf("event %s: %w", id, ErrItemNotFound)
	}
	d.Events = append(d.Events[:i], d.Events[i+1:]...)
	return nil
}

// ToggleEvent flips visibility and returns the new value.
func (d *Document) ToggleEvent(id string) (bool, error) {
	i := d.eventIndex(id)
	if i < 0 {
		return false, fmt.Errorf("event %s: %w", id, ErrItemNotFound)
	}
	d.Events[i].Visible = !d.Events[i].Visible
	return d.Events[i].Visible, nil
}

func (d *Document) ClearEvents() {
	d.Events = []Event{}
}

// SetEventOffset stores the manual nudge of an event relative to its anchor.
func (d *Document) SetEventOffset(id string, offsetX, offsetY float64) error {
	i := d.eventIndex(id)
	if i < 0 {
		return fmt.Errorf("event %s: %w", id, ErrItemNotFound)
	}
	d.Events[i].OffsetX = offsetX
	d.Events[i].OffsetY = offsetY
	return nil
}

// Event returns a copy of the event with the given id.
func (d *Document) Event(id string) (Event, bool) {
	i := d.eventIndex(id)
	if i < 0 {
		return Event{}, false
	}
	return d.Events[i], true
}

func (d *Document) eventIndex(id string) int {
	for i := range d.Events {
		if d.Events[i].ID == id {
			return i
		}
	}
	return -1
}

// --- Periods ---

func (d *Document) AddPeriod(in PeriodInput) Period {
	p := d.periodFromInput(in, Period{Placement: Placement{ID: typeid.NewPeriodID(), Visible: true}})
	d.Periods = append(d.Periods, p)
	return p
}

func (d *Document) UpdatePeriod(id string, in PeriodInput) (Period, error) {
	i := d.periodIndex(id)
	if i < 0 {
		return Period{}, fmt.Errorf("period %s: %w", id, ErrItemNotFound)
	}
	d.Periods[i] = d.periodFromInput(in, d.Periods[i])
	return d.Periods[i], nil
}

func (d *Document) DeletePeriod(id string) error {
	i := d.periodIndex(id)
	if i < 0 {
		return fmt.Errorf("period %s: %w", id, ErrItemNotFound)
	}
	d.Periods = append(d.Periods[:i], d.Periods[i+1:]...)
	return nil
}

func (d *Document) TogglePeriod(id string) (bool, error) {
	i := d.periodIndex(id)
	if i < 0 {
		return false, fmt.Errorf("period %s: %w", id, ErrItemNotFound)
	}
	d.Periods[i].Visible = !d.Periods[i].Visible
	return d.Periods[i].Visible, nil
}

func (d *Document) ClearPeriods() {
	d.Periods = []Period{}
}

// SetPeriodOffset stores the vertical nudge of a period. Periods never
// carry a horizontal offset: their extent comes from start and end.
func (d *Document) SetPeriodOffset(id string, offsetY float64) error {
	i := d.periodIndex(id)
	if i < 0 {
		return fmt.Errorf("period %s: %w", id, ErrItemNotFound)
	}
	d.Periods[i].OffsetX = 0
	d.Periods[i].OffsetY = offsetY
	return nil
}

func (d *Document) Period(id string) (Period, bool) {
	i := d.periodIndex(id)
	if i < 0 {
		return Period{}, false
	}
	return d.Periods[i], true
}

func (d *Document) periodIndex(id string) int {
	for i := range d.Periods {
		if d.Periods[i].ID == id {
			return i
		}
	}
	return -1
}

// --- Settings ---

// ApplySettings merges a JSON object of setting keys into the document.
// Item collections in the patch are ignored. On error nothing changes.
func (d *Document) ApplySettings(patch []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil {
		return fmt.Errorf("%w: settings: %v", ErrMalformed, err)
	}
	delete(fields, "events")
	delete(fields, "periods")

	clean, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	next := *d
	if err := json.Unmarshal(clean, &next); err != nil {
		return fmt.Errorf("%w: settings: %v", ErrMalformed, err)
	}
	next.Events = d.Events
	next.Periods = d.Periods
	next.Normalize()
	*d = next
	return nil
}

// ResetSettings restores every setting to its default and keeps the items.
func (d *Document) ResetSettings() {
	events, periods := d.Events, d.Periods
	*d = Defaults()
	d.Events = events
	d.Periods = periods
}
