package engine

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/SbTchR/TimelineGenerator/internal/document"
)

const epsilon = 1e-6

func assertNear(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func ptr[T any](v T) *T { return &v }

func mustLayout(t *testing.T, doc *document.Document) *Layout {
	t.Helper()
	l, err := ComputeLayout(doc, Options{})
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	return l
}

func TestMapperEndpoints(t *testing.T) {
	doc := document.Defaults()
	m, err := NewMapper(&doc)
	if err != nil {
		t.Fatal(err)
	}
	assertNear(t, "ValueToX(start)", m.ValueToX(doc.Start), doc.Padding)
	assertNear(t, "right padding", m.TimelineWidth()-m.ValueToX(doc.End), doc.Padding)
	assertNear(t, "px per main", m.ValueToX(doc.Start+doc.MainStep)-m.ValueToX(doc.Start), doc.MmPerMain*PxPerMm)
	assertNear(t, "XToValue", m.XToValue(m.ValueToX(1987.5)), 1987.5)
}

func TestMapperLinearity(t *testing.T) {
	doc := document.Defaults()
	doc.MainStep = 7
	doc.MmPerMain = 11
	m, err := NewMapper(&doc)
	if err != nil {
		t.Fatal(err)
	}
	pairs := [][2]float64{{1900, 2025}, {1913.3, 1977}, {-50, 3000}}
	for _, p := range pairs {
		a, b := p[0], p[1]
		assertNear(t, "midpoint", m.ValueToX((a+b)/2), (m.ValueToX(a)+m.ValueToX(b))/2)
		if m.ValueToX(a) >= m.ValueToX(b) {
			t.Errorf("ValueToX not increasing between %v and %v", a, b)
		}
	}
}

func TestMapperRejectsNonPositiveStep(t *testing.T) {
	for _, step := range []float64{0, -10, math.NaN()} {
		doc := document.Defaults()
		doc.MainStep = step
		if _, err := ComputeLayout(&doc, Options{}); !errors.Is(err, ErrNonPositiveStep) {
			t.Errorf("mainStep %v: error = %v, want ErrNonPositiveStep", step, err)
		}
	}
}

func TestMapperDegenerateRange(t *testing.T) {
	doc := document.Defaults()
	doc.Start, doc.End = 2000, 2000
	m, err := NewMapper(&doc)
	if err != nil {
		t.Fatal(err)
	}
	assertNear(t, "end", m.End, 2001)
	if w := m.TimelineWidth(); math.IsNaN(w) || w <= 2*doc.Padding {
		t.Fatalf("TimelineWidth = %v", w)
	}
}

func TestAxisTicks(t *testing.T) {
	doc := document.Defaults()
	l := mustLayout(t, &doc)

	var main, secondary int
	for _, tk := range l.Axis.Ticks {
		if tk.Main {
			main++
		} else {
			secondary++
		}
	}
	// 1900..2020 every 10; three secondary ticks between consecutive main ticks.
	if main != 13 || secondary != 36 {
		t.Fatalf("ticks = %d main, %d secondary; want 13, 36", main, secondary)
	}
	if len(l.Axis.Labels) != 13 {
		t.Fatalf("labels = %d, want 13", len(l.Axis.Labels))
	}
	if l.Axis.Labels[0].Lines[0] != "1900" {
		t.Errorf("first label = %q", l.Axis.Labels[0].Lines[0])
	}

	doc.ShowSecondaryLabels = true
	l = mustLayout(t, &doc)
	if len(l.Axis.Labels) != 49 {
		t.Fatalf("labels with secondary = %d, want 49", len(l.Axis.Labels))
	}
	if got := l.Axis.Labels[1].Lines[0]; got != "1902.5" {
		t.Errorf("first secondary label = %q, want 1902.5", got)
	}
}

func TestAxisTooManyTicks(t *testing.T) {
	doc := document.Defaults()
	doc.Start, doc.End, doc.MainStep = 0, 1e6, 1
	if _, err := ComputeLayout(&doc, Options{}); !errors.Is(err, ErrTooManyTicks) {
		t.Fatalf("error = %v, want ErrTooManyTicks", err)
	}
}

func TestEventPlacementAndConnector(t *testing.T) {
	doc := document.Defaults()
	ev := doc.AddEvent(document.EventInput{Title: "A", Value: ptr(1950.0)})
	l := mustLayout(t, &doc)

	m, _ := NewMapper(&doc)
	card := l.Events[0]
	assertNear(t, "card centre", card.Rect.X+card.Rect.Width/2, m.ValueToX(1950))
	assertNear(t, "card top", card.Rect.Y, doc.TimelineHeight/2+doc.EventBaseOffset)
	assertNear(t, "card width", card.Rect.Width, 120)

	// Card above the baseline: the connector leaves from its bottom.
	c := l.Connectors[0]
	if c.ItemID != ev.ID {
		t.Fatalf("connector item = %q", c.ItemID)
	}
	assertNear(t, "connector y1", c.Y1, card.Rect.Y+card.Rect.Height)
	assertNear(t, "connector x2", c.X2, m.ValueToX(1950))
	assertNear(t, "connector y2", c.Y2, l.BaselineY)

	// Below the baseline: from its top, at the shifted centre.
	if err := doc.SetEventOffset(ev.ID, 25, 300); err != nil {
		t.Fatal(err)
	}
	l = mustLayout(t, &doc)
	card, c = l.Events[0], l.Connectors[0]
	assertNear(t, "connector y1 below", c.Y1, card.Rect.Y)
	assertNear(t, "connector x1", c.X1, m.ValueToX(1950)+25)
	assertNear(t, "connector x2 below", c.X2, m.ValueToX(1950))
}

func TestEventCardGrowsWithContent(t *testing.T) {
	doc := document.Defaults()
	plain := doc.AddEvent(document.EventInput{Title: "A", Value: ptr(1950.0)})
	rich := doc.AddEvent(document.EventInput{
		Title:  "A much longer title that has to wrap over several lines",
		Value:  ptr(1960.0),
		Detail: "Some detail",
		Image:  "/assets/x.png",
	})
	l := mustLayout(t, &doc)
	a, _ := l.EventByID(plain.ID)
	b, _ := l.EventByID(rich.ID)
	if b.Rect.Height <= a.Rect.Height+imageSlotHeight {
		t.Fatalf("rich card height %v not larger than plain %v plus image", b.Rect.Height, a.Rect.Height)
	}
	if len(b.Title.Lines) < 2 {
		t.Fatalf("long title not wrapped: %q", b.Title.Lines)
	}
	if b.Image == nil || b.Image.Rect.Height != imageSlotHeight {
		t.Fatalf("image slot = %+v", b.Image)
	}
}

func TestHiddenItemsAreSkipped(t *testing.T) {
	doc := document.Defaults()
	ev := doc.AddEvent(document.EventInput{Value: ptr(1950.0)})
	p := doc.AddPeriod(document.PeriodInput{Start: ptr(1910.0), End: ptr(1920.0)})
	if _, err := doc.ToggleEvent(ev.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := doc.TogglePeriod(p.ID); err != nil {
		t.Fatal(err)
	}
	l := mustLayout(t, &doc)
	if len(l.Events) != 0 || len(l.Connectors) != 0 || len(l.Periods) != 0 {
		t.Fatalf("hidden items laid out: %d events, %d connectors, %d periods", len(l.Events), len(l.Connectors), len(l.Periods))
	}
	if len(doc.Events) != 1 || len(doc.Periods) != 1 {
		t.Fatal("hidden items left their collections")
	}
}

func TestPeriodMinimumWidth(t *testing.T) {
	doc := document.Defaults()
	doc.AddPeriod(document.PeriodInput{Start: ptr(1950.0), End: ptr(1950.0)})
	doc.AddPeriod(document.PeriodInput{Start: ptr(1950.0), End: ptr(1950.1), Style: document.PeriodStyleLine})
	l := mustLayout(t, &doc)
	for _, p := range l.Periods {
		assertNear(t, "period width", p.Rect.Width, MinPeriodWidth)
	}
}

func TestPeriodPlacement(t *testing.T) {
	doc := document.Defaults()
	doc.AddPeriod(document.PeriodInput{Start: ptr(1914.0), End: ptr(1918.0), RectHeight: 50})
	l := mustLayout(t, &doc)
	m, _ := NewMapper(&doc)
	p := l.Periods[0]
	assertNear(t, "x", p.Rect.X, m.ValueToX(1914))
	assertNear(t, "y", p.Rect.Y, doc.TimelineHeight/2+doc.PeriodBaseOffset)
	assertNear(t, "width", p.Rect.Width, m.ValueToX(1918)-m.ValueToX(1914))
	assertNear(t, "height", p.Rect.Height, 50)
	if got := p.Label.Lines; len(got) == 0 || !strings.HasPrefix(strings.Join(got, " "), "Période (1914 – 1918)") {
		t.Fatalf("label = %q", got)
	}
}

func TestPeriodLabel(t *testing.T) {
	p := document.DefaultPeriod()
	p.Title, p.Start, p.End = "Guerre", 1939, 1945.5
	if got := PeriodLabel(p); got != "Guerre (1939 – 1945.5)" {
		t.Errorf("PeriodLabel = %q", got)
	}
	p.ShowDate = false
	if got := PeriodLabel(p); got != "Guerre" {
		t.Errorf("PeriodLabel without date = %q", got)
	}
}

func TestLinePeriodAlignment(t *testing.T) {
	doc := document.Defaults()
	mid := doc.AddPeriod(document.PeriodInput{Start: ptr(1920.0), End: ptr(1960.0), Style: document.PeriodStyleLine, FontSize: 14, Thickness: 4})
	midDetail := doc.AddPeriod(document.PeriodInput{Start: ptr(1920.0), End: ptr(1960.0), Style: document.PeriodStyleLine, FontSize: 14, Thickness: 4, Detail: "a detail line"})
	top := doc.AddPeriod(document.PeriodInput{Start: ptr(1920.0), End: ptr(1960.0), Style: document.PeriodStyleLine, TitleAlignment: document.AlignTop, Thickness: 4})
	bottom := doc.AddPeriod(document.PeriodInput{Start: ptr(1920.0), End: ptr(1960.0), Style: document.PeriodStyleLine, TitleAlignment: document.AlignBottom, Thickness: 4})
	l := mustLayout(t, &doc)

	m1, _ := l.PeriodByID(mid.ID)
	m2, _ := l.PeriodByID(midDetail.ID)
	assertNear(t, "middle height", m1.Rect.Height, 2*14+4)
	assertNear(t, "middle height with detail", m2.Rect.Height, m1.Rect.Height)
	if !m1.Overlay {
		t.Error("middle label not an overlay")
	}
	_, barCentre := m1.Bar.Center()
	_, labelCentre := m1.LabelArea.Center()
	assertNear(t, "overlay centred on line", labelCentre, barCentre)

	tp, _ := l.PeriodByID(top.ID)
	assertNear(t, "top: bar below label", tp.Bar.Y, tp.Label.Y+tp.LabelArea.Height+lineLabelGap)
	assertNear(t, "top height", tp.Rect.Height, tp.LabelArea.Height+lineLabelGap+4)

	bt, _ := l.PeriodByID(bottom.ID)
	assertNear(t, "bottom: bar at top", bt.Bar.Y, bt.Rect.Y)
	assertNear(t, "bottom: label under bar", bt.Label.Y, bt.Rect.Y+4+lineLabelGap)
	if len(bt.Caps) != 2 {
		t.Fatalf("caps = %d", len(bt.Caps))
	}
}

func TestRectPeriodAlignment(t *testing.T) {
	doc := document.Defaults()
	top := doc.AddPeriod(document.PeriodInput{TitleAlignment: document.AlignTop, RectHeight: 100, Thickness: 4})
	bottom := doc.AddPeriod(document.PeriodInput{TitleAlignment: document.AlignBottom, RectHeight: 100, Thickness: 4})
	l := mustLayout(t, &doc)

	tp, _ := l.PeriodByID(top.ID)
	assertNear(t, "top label y", tp.Label.Y, tp.Rect.Y+4)
	bt, _ := l.PeriodByID(bottom.ID)
	assertNear(t, "bottom label end", bt.LabelArea.Y+bt.LabelArea.Height, bt.Rect.Y+100-4)
	assertNear(t, "stroke opacity", bt.StrokeOpacity, 0.55)
}

func TestSaveLoadKeepsPositions(t *testing.T) {
	doc := document.NewSampleDocument()
	if err := doc.SetEventOffset(doc.Events[1].ID, -40, 210); err != nil {
		t.Fatal(err)
	}
	if err := doc.SetPeriodOffset(doc.Periods[2].ID, -33); err != nil {
		t.Fatal(err)
	}
	before := mustLayout(t, doc)

	data, err := document.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := document.Load(data)
	if err != nil {
		t.Fatal(err)
	}
	after := mustLayout(t, loaded)

	if len(before.Events) != len(after.Events) || len(before.Periods) != len(after.Periods) {
		t.Fatal("item counts changed")
	}
	for i := range before.Events {
		if before.Events[i].Rect != after.Events[i].Rect {
			t.Errorf("event %d moved: %v -> %v", i, before.Events[i].Rect, after.Events[i].Rect)
		}
	}
	for i := range before.Periods {
		if before.Periods[i].Rect != after.Periods[i].Rect {
			t.Errorf("period %d moved: %v -> %v", i, before.Periods[i].Rect, after.Periods[i].Rect)
		}
	}
}

func TestHitTestOrder(t *testing.T) {
	doc := document.Defaults()
	doc.PeriodBaseOffset = doc.EventBaseOffset
	p := doc.AddPeriod(document.PeriodInput{Start: ptr(1940.0), End: ptr(1960.0), RectHeight: 200})
	first := doc.AddEvent(document.EventInput{Value: ptr(1950.0)})
	second := doc.AddEvent(document.EventInput{Value: ptr(1951.0)})
	l := mustLayout(t, &doc)

	c1, _ := l.EventByID(first.ID)
	c2, _ := l.EventByID(second.ID)
	// A point inside both cards and the period.
	x := (c1.Rect.X + c1.Rect.Width + c2.Rect.X) / 2
	y := c1.Rect.Y + 2

	hit, ok := HitTest(l, x, y)
	if !ok || hit.ItemID != second.ID || hit.Kind != KindEvent {
		t.Fatalf("hit = %+v, %v; want later event", hit, ok)
	}

	pb, _ := l.PeriodByID(p.ID)
	// Below the cards, still inside the period.
	hit, ok = HitTest(l, pb.Rect.X+1, pb.Rect.Y+pb.Rect.Height-1)
	if !ok || hit.ItemID != p.ID || hit.Kind != KindPeriod {
		t.Fatalf("hit = %+v, %v; want period", hit, ok)
	}

	if _, ok := HitTest(l, -100, -100); ok {
		t.Fatal("hit outside every item")
	}
}

func TestDrawCommandsOrder(t *testing.T) {
	doc := document.Defaults()
	doc.AddPeriod(document.PeriodInput{Start: ptr(1940.0), End: ptr(1960.0)})
	ev := doc.AddEvent(document.EventInput{Title: "A", Value: ptr(1950.0)})
	l := mustLayout(t, &doc)
	cmds := CompileDrawCommands(l, nil)

	if cmds[0].Op != OpRect || cmds[0].Width != l.Width || cmds[0].Fill != doc.BackgroundColor {
		t.Fatalf("first command = %+v, want background", cmds[0])
	}
	last := cmds[len(cmds)-1]
	if last.Op != OpLine || last.ItemID != ev.ID {
		t.Fatalf("last command = %+v, want connector", last)
	}

	var titles int
	for _, c := range cmds {
		if c.Op == OpText && c.ItemID == ev.ID && c.Text == "A" {
			titles++
			if c.Y <= l.Events[0].Rect.Y || c.Y >= l.Events[0].Rect.Y+l.Events[0].Rect.Height {
				t.Errorf("title baseline %v outside card %v", c.Y, l.Events[0].Rect)
			}
		}
	}
	if titles != 1 {
		t.Fatalf("title commands = %d, want 1", titles)
	}
}

func TestMeasurerWrap(t *testing.T) {
	m := DefaultMeasurer()
	text := "the quick brown fox jumps over the lazy dog"
	lines := m.Wrap(text, 14, 80, false)
	if len(lines) < 3 {
		t.Fatalf("lines = %q", lines)
	}
	for _, l := range lines {
		if strings.Contains(l, " ") && m.TextWidth(l, 14, false) > 80 {
			t.Errorf("line %q wider than 80", l)
		}
	}
	if strings.Join(lines, " ") != text {
		t.Errorf("wrapping lost words: %q", lines)
	}
	if got := m.Wrap("   ", 14, 80, false); len(got) != 0 {
		t.Errorf("blank text wrapped to %q", got)
	}
	if got := m.Wrap("un\ndeux", 14, 500, false); len(got) != 2 {
		t.Errorf("explicit newline ignored: %q", got)
	}
	if m.TextWidth("WWW", 14, true) <= m.TextWidth("iii", 14, true) {
		t.Error("text width does not depend on glyphs")
	}
}

func TestMeasurerFaceCacheBounded(t *testing.T) {
	m, err := NewMeasurer()
	if err != nil {
		t.Fatal(err)
	}
	for i := range 3 * maxCachedFaces {
		m.TextWidth("frise", 4+float64(i)/10, i%2 == 0)
	}
	if n := len(m.faces); n == 0 || n > maxCachedFaces {
		t.Fatalf("cached faces = %d, want 1..%d", n, maxCachedFaces)
	}
}

func TestHugeFontSizeIsClamped(t *testing.T) {
	doc := document.Defaults()
	ev := doc.AddEvent(document.EventInput{Title: "Un titre assez long pour passer à la ligne", Value: ptr(1950.0), FontSize: 1e7})
	if ev.FontSize != document.MaxFontSize {
		t.Fatalf("font size = %v, want %v", ev.FontSize, document.MaxFontSize)
	}
	l := mustLayout(t, &doc)
	card, _ := l.EventByID(ev.ID)
	if len(card.Title.Lines) < 2 {
		t.Fatalf("title lines = %q", card.Title.Lines)
	}
	if math.IsInf(card.Rect.Height, 0) || card.Rect.Height <= 0 || card.Rect.Height > 1e5 {
		t.Fatalf("card height = %v", card.Rect.Height)
	}
}
