package document

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoadFillsItemDefaults(t *testing.T) {
	data := []byte(`{
		"start": 1800,
		"end": 1900,
		"events": [{"title": "Old", "value": 1850}],
		"periods": [{"title": "Span", "start": 1880, "end": 1820}]
	}`)

	doc, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.MainStep != 10 || doc.Padding != 60 {
		t.Fatalf("settings not merged over defaults: mainStep=%v padding=%v", doc.MainStep, doc.Padding)
	}
	if len(doc.Events) != 1 || len(doc.Periods) != 1 {
		t.Fatalf("got %d events, %d periods", len(doc.Events), len(doc.Periods))
	}
	ev := doc.Events[0]
	if !ev.Visible || ev.OffsetX != 0 || ev.OffsetY != 0 {
		t.Errorf("event placement defaults = %+v", ev.Placement)
	}
	if ev.ID == "" {
		t.Error("event id not generated")
	}
	if ev.Width != 120 || ev.FontSize != 14 || !ev.ShowDate {
		t.Errorf("event defaults not applied: %+v", ev)
	}
	p := doc.Periods[0]
	if p.Start != 1820 || p.End != 1880 {
		t.Errorf("period bounds = [%v, %v], want [1820, 1880]", p.Start, p.End)
	}
	if p.Style != PeriodStyleRect || p.TitleAlignment != AlignMiddle {
		t.Errorf("period style defaults = %q/%q", p.Style, p.TitleAlignment)
	}
}

func TestLoadKeepsExplicitFalse(t *testing.T) {
	doc, err := Load([]byte(`{"events": [{"id": "e1", "visible": false, "showDate": false}]}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ev := doc.Events[0]
	if ev.Visible || ev.ShowDate {
		t.Fatalf("explicit false overwritten: visible=%v showDate=%v", ev.Visible, ev.ShowDate)
	}
	if ev.ID != "e1" {
		t.Fatalf("id = %q, want e1", ev.ID)
	}
}

func TestLoadClampsDegenerateRange(t *testing.T) {
	doc, err := Load([]byte(`{"start": 2000, "end": 1990}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.End != 2001 {
		t.Fatalf("end = %v, want 2001", doc.End)
	}
}

func TestLoadMalformed(t *testing.T) {
	tests := []string{
		``,
		`  `,
		`null`,
		`{`,
		`[]`,
		`42`,
		`"poster"`,
		`{"start": "soon"}`,
		`{"events": {"id": 1}}`,
	}
	for _, in := range tests {
		_, err := Load([]byte(in))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("Load(%q) error = %v, want ErrMalformed", in, err)
		}
	}
}

func TestLoadYAMLMalformed(t *testing.T) {
	tests := []string{
		``,
		"\n\n",
		`~`,
		`null`,
		`- a`,
		`frise`,
		`start: [`,
	}
	for _, in := range tests {
		_, err := LoadYAML([]byte(in))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("LoadYAML(%q) error = %v, want ErrMalformed", in, err)
		}
	}
}

func TestLoadYAML(t *testing.T) {
	data := []byte(`
start: 1950
end: 2000
mainStep: 5
orientation: portrait
events:
  - title: Lune
    value: 1969
    offsetY: -30
periods:
  - title: Trente Glorieuses
    start: 1975
    end: 1945
    style: line
`)
	doc, err := LoadYAML(data)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if doc.MainStep != 5 || doc.Orientation != OrientationPortrait {
		t.Fatalf("settings = %v/%v", doc.MainStep, doc.Orientation)
	}
	if doc.Events[0].OffsetY != -30 || !doc.Events[0].Visible {
		t.Fatalf("event = %+v", doc.Events[0])
	}
	if doc.Periods[0].Start != 1945 || doc.Periods[0].Style != PeriodStyleLine {
		t.Fatalf("period = %+v", doc.Periods[0])
	}

	if _, err := LoadYAML([]byte("- a\n- b\n")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("sequence document error = %v, want ErrMalformed", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	doc := NewSampleDocument()
	if err := doc.SetEventOffset(doc.Events[0].ID, 12.5, -40); err != nil {
		t.Fatalf("SetEventOffset: %v", err)
	}

	data, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	a, _ := json.Marshal(doc)
	b, _ := json.Marshal(back)
	if string(a) != string(b) {
		t.Fatalf("round trip changed the document\nbefore: %s\nafter:  %s", a, b)
	}
}

func TestMarshalEmptyCollections(t *testing.T) {
	doc := Defaults()
	data, err := Marshal(&doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"events": []`) {
		t.Fatalf("empty events not written as []: %s", data)
	}
}

func TestEventOperations(t *testing.T) {
	doc := Defaults()
	ev := doc.AddEvent(EventInput{Title: "A", Value: ptr(1950.0), Image: "/assets/a.png"})
	if ev.Value != 1950 || !ev.Visible || ev.Image != "/assets/a.png" {
		t.Fatalf("added event = %+v", ev)
	}
	missing := doc.AddEvent(EventInput{})
	if missing.Value != doc.Start || missing.Title != "Événement" {
		t.Fatalf("defaults for empty input = %+v", missing)
	}

	if err := doc.SetEventOffset(ev.ID, 10, 20); err != nil {
		t.Fatal(err)
	}
	updated, err := doc.UpdateEvent(ev.ID, EventInput{Title: "B", Value: ptr(1960.0)})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != ev.ID || updated.OffsetX != 10 || updated.OffsetY != 20 {
		t.Errorf("update lost placement: %+v", updated.Placement)
	}
	if updated.Image != "/assets/a.png" {
		t.Errorf("update without image dropped it: %q", updated.Image)
	}
	if doc.Events[0].ID != ev.ID {
		t.Errorf("update moved the event in the collection")
	}

	visible, err := doc.ToggleEvent(ev.ID)
	if err != nil || visible {
		t.Fatalf("ToggleEvent = %v, %v", visible, err)
	}
	if len(doc.Events) != 2 {
		t.Fatalf("hidden event removed from collection")
	}

	if err := doc.DeleteEvent(ev.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Event(ev.ID); ok {
		t.Fatal("event still present after delete")
	}
	if err := doc.DeleteEvent(ev.ID); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("second delete error = %v, want ErrItemNotFound", err)
	}

	doc.ClearEvents()
	if doc.Events == nil || len(doc.Events) != 0 {
		t.Fatalf("ClearEvents left %v", doc.Events)
	}
}

func TestPeriodOperations(t *testing.T) {
	doc := Defaults()
	p := doc.AddPeriod(PeriodInput{Start: ptr(1990.0), End: ptr(1950.0), Style: "zigzag"})
	if p.Start != 1950 || p.End != 1990 {
		t.Fatalf("bounds not ordered: [%v, %v]", p.Start, p.End)
	}
	if p.Style != PeriodStyleRect {
		t.Fatalf("unknown style kept: %q", p.Style)
	}

	open := doc.AddPeriod(PeriodInput{})
	if open.Start != doc.Start || open.End != doc.End {
		t.Fatalf("missing bounds = [%v, %v], want axis bounds", open.Start, open.End)
	}

	doc.Periods[0].OffsetX = 33
	if err := doc.SetPeriodOffset(p.ID, -15); err != nil {
		t.Fatal(err)
	}
	got, _ := doc.Period(p.ID)
	if got.OffsetX != 0 || got.OffsetY != -15 {
		t.Fatalf("period offsets = (%v, %v), want (0, -15)", got.OffsetX, got.OffsetY)
	}

	if _, err := doc.UpdatePeriod("per_missing", PeriodInput{}); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("update missing error = %v", err)
	}
	doc.ClearPeriods()
	if len(doc.Periods) != 0 {
		t.Fatal("ClearPeriods left periods")
	}
}

func TestApplySettings(t *testing.T) {
	doc := NewSampleDocument()
	n := len(doc.Events)

	err := doc.ApplySettings([]byte(`{"mainStep": 25, "labelColor": "#ff0000", "events": []}`))
	if err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}
	if doc.MainStep != 25 || doc.LabelColor != "#ff0000" {
		t.Fatalf("settings not applied: %v %v", doc.MainStep, doc.LabelColor)
	}
	if len(doc.Events) != n {
		t.Fatalf("settings patch touched events: %d, want %d", len(doc.Events), n)
	}

	before := *doc
	if err := doc.ApplySettings([]byte(`{"mainStep": "wide"}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("bad patch error = %v", err)
	}
	if doc.MainStep != before.MainStep {
		t.Fatal("failed patch changed the document")
	}

	doc.ResetSettings()
	if doc.MainStep != 10 || doc.LabelColor != "#0f172a" {
		t.Fatalf("reset settings = %v %v", doc.MainStep, doc.LabelColor)
	}
	if len(doc.Events) != n {
		t.Fatal("reset dropped events")
	}
}

func TestCloneDoesNotShareItems(t *testing.T) {
	doc := NewSampleDocument()
	c := doc.Clone()
	c.Events[0].Title = "changed"
	if doc.Events[0].Title == "changed" {
		t.Fatal("clone shares the events slice")
	}
}

func TestFontSizesAreClamped(t *testing.T) {
	doc, err := Load([]byte(`{
		"labelSize": 1e9,
		"secondaryLabelSize": -3,
		"events": [{"id": "e1", "fontSize": 100000}, {"id": "e2", "fontSize": 0.5}],
		"periods": [{"id": "p1", "start": 1900, "end": 1910, "fontSize": 5000}]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if doc.LabelSize != MaxFontSize || doc.SecondaryLabelSize != Defaults().SecondaryLabelSize {
		t.Errorf("label sizes = %v, %v", doc.LabelSize, doc.SecondaryLabelSize)
	}
	if doc.Events[0].FontSize != MaxFontSize || doc.Events[1].FontSize != MinFontSize {
		t.Errorf("event font sizes = %v, %v", doc.Events[0].FontSize, doc.Events[1].FontSize)
	}
	if doc.Periods[0].FontSize != MaxFontSize {
		t.Errorf("period font size = %v", doc.Periods[0].FontSize)
	}

	ev, err := doc.UpdateEvent("e1", EventInput{FontSize: 1e300})
	if err != nil {
		t.Fatal(err)
	}
	if ev.FontSize != MaxFontSize {
		t.Errorf("updated font size = %v", ev.FontSize)
	}
}
