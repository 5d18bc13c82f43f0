package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/SbTchR/TimelineGenerator/internal/document"
	"github.com/SbTchR/TimelineGenerator/internal/engine"
	"github.com/SbTchR/TimelineGenerator/internal/export"
)

func ptr[T any](v T) *T { return &v }

func layoutOf(t *testing.T, doc *document.Document) *engine.Layout {
	t.Helper()
	l, err := engine.ComputeLayout(doc, engine.Options{})
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	return l
}

func rgbaAt(img image.Image, x, y float64) color.RGBA {
	return color.RGBAModel.Convert(img.At(int(x), int(y))).(color.RGBA)
}

func TestCaptureSize(t *testing.T) {
	doc := document.Defaults()
	l := layoutOf(t, &doc)
	tests := []struct {
		scale, want float64
	}{
		{1, 1},
		{2, 2},
		{0.1, export.MinScale},
	}
	for _, tt := range tests {
		img, err := New(nil, nil).Capture(context.Background(), l, export.CaptureOptions{Scale: tt.scale})
		if err != nil {
			t.Fatal(err)
		}
		b := img.Bounds()
		if b.Min != (image.Point{}) {
			t.Fatalf("origin = %v", b.Min)
		}
		if b.Dx() != int(math.Ceil(l.Width*tt.want)) || b.Dy() != int(math.Ceil(l.Height*tt.want)) {
			t.Errorf("scale %v: size %dx%d", tt.scale, b.Dx(), b.Dy())
		}
	}
}

func TestCaptureColours(t *testing.T) {
	doc := document.Defaults()
	ev := doc.AddEvent(document.EventInput{Title: "A", Value: ptr(1950.0), BackgroundColor: "#ff0000", BackgroundOpacity: 1})
	l := layoutOf(t, &doc)
	card, _ := l.EventByID(ev.ID)

	img, err := New(nil, nil).Capture(context.Background(), l, export.CaptureOptions{Scale: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := rgbaAt(img, 1, 1); got != (color.RGBA{0xf7, 0xf9, 0xfb, 0xff}) {
		t.Errorf("background = %v", got)
	}
	if got := rgbaAt(img, card.Rect.X+2, card.Rect.Y+2); got != (color.RGBA{0xff, 0, 0, 0xff}) {
		t.Errorf("card = %v", got)
	}

	img, err = New(nil, nil).Capture(context.Background(), l, export.CaptureOptions{Scale: 1, Background: "#000000"})
	if err != nil {
		t.Fatal(err)
	}
	if got := rgbaAt(img, 1, 1); got != (color.RGBA{0, 0, 0, 0xff}) {
		t.Errorf("overridden background = %v", got)
	}
}

func TestCaptureScalesGeometry(t *testing.T) {
	doc := document.Defaults()
	ev := doc.AddEvent(document.EventInput{Title: "A", Value: ptr(1950.0), BackgroundColor: "#00ff00", BackgroundOpacity: 1})
	l := layoutOf(t, &doc)
	card, _ := l.EventByID(ev.ID)

	img, err := New(nil, nil).Capture(context.Background(), l, export.CaptureOptions{Scale: 3})
	if err != nil {
		t.Fatal(err)
	}
	if got := rgbaAt(img, (card.Rect.X+card.Rect.Width)*3-3, (card.Rect.Y+card.Rect.Height)*3-3); got != (color.RGBA{0, 0xff, 0, 0xff}) {
		t.Errorf("scaled card corner = %v", got)
	}
	if got := rgbaAt(img, (card.Rect.X+card.Rect.Width)*3+6, card.Rect.Y*3-6); got == (color.RGBA{0, 0xff, 0, 0xff}) {
		t.Error("card drawn outside its scaled box")
	}
}

func bluePNG(t *testing.T) string {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := range 10 {
		for x := range 10 {
			src.Set(x, y, color.RGBA{0, 0, 0xff, 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestCaptureDrawsDataURIImages(t *testing.T) {
	doc := document.Defaults()
	ev := doc.AddEvent(document.EventInput{Title: "A", Value: ptr(1950.0), Image: bluePNG(t)})
	l := layoutOf(t, &doc)
	card, _ := l.EventByID(ev.ID)
	if card.Image == nil {
		t.Fatal("no image slot")
	}

	img, err := New(nil, nil).Capture(context.Background(), l, export.CaptureOptions{Scale: 1})
	if err != nil {
		t.Fatal(err)
	}
	cx, cy := card.Image.Rect.Center()
	got := rgbaAt(img, cx, cy)
	if got.B < 200 || got.R > 50 || got.G > 50 {
		t.Fatalf("image centre = %v", got)
	}
}

func TestCaptureHonoursCancellation(t *testing.T) {
	doc := document.Defaults()
	l := layoutOf(t, &doc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(nil, nil).Capture(ctx, l, export.CaptureOptions{Scale: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v", err)
	}
}

func TestCaptureFarDraggedConnector(t *testing.T) {
	doc := document.Defaults()
	ev := doc.AddEvent(document.EventInput{Title: "Loin", Value: ptr(1956.0)})
	if err := doc.SetEventOffset(ev.ID, 37, 1e9); err != nil {
		t.Fatal(err)
	}
	l := layoutOf(t, &doc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	img, err := New(nil, nil).Capture(ctx, l, export.CaptureOptions{Scale: 1})
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("capture took %v", elapsed)
	}

	var conn engine.Connector
	for _, c := range l.Connectors {
		if c.ItemID == ev.ID {
			conn = c
		}
	}
	// The visible stretch below the baseline is still drawn.
	y := l.BaselineY + 60
	tt := (y - conn.Y1) / (conn.Y2 - conn.Y1)
	x := conn.X1 + tt*(conn.X2-conn.X1)
	if got := rgbaAt(img, x, y); got != (color.RGBA{0x0f, 0x17, 0x2a, 0xff}) {
		t.Fatalf("connector pixel at (%.1f, %.1f) = %v", x, y, got)
	}
}

func TestClipSegment(t *testing.T) {
	box := engine.Rect{X: 0, Y: 0, Width: 10, Height: 10}
	tests := []struct {
		name           string
		x1, y1, x2, y2 float64
		t0, t1         float64
		ok             bool
	}{
		{"inside", 1, 1, 9, 9, 0, 1, true},
		{"crosses", -10, 5, 20, 5, 1.0 / 3, 2.0 / 3, true},
		{"outside", -10, -10, -1, 20, 0, 0, false},
		{"far vertical", 5, -1e9, 5, 1e9, 0.5, 0.5 + 5e-9, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t0, t1, ok := clipSegment(tt.x1, tt.y1, tt.x2, tt.y2, box)
			if ok != tt.ok {
				t.Fatalf("ok = %v", ok)
			}
			if ok && (math.Abs(t0-tt.t0) > 1e-9 || math.Abs(t1-tt.t1) > 1e-9) {
				t.Fatalf("range = [%v, %v], want [%v, %v]", t0, t1, tt.t0, tt.t1)
			}
		})
	}
}

func TestDecodeDataURI(t *testing.T) {
	img, err := DecodeDataURI(bluePNG(t))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 10 {
		t.Fatalf("width = %d", img.Bounds().Dx())
	}
	if _, err := DecodeDataURI("data:text/plain,hello"); err == nil {
		t.Fatal("plain data uri decoded")
	}
}
