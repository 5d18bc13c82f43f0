package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/SbTchR/TimelineGenerator/internal/engine"
	"github.com/SbTchR/TimelineGenerator/internal/pagination"
	"github.com/SbTchR/TimelineGenerator/internal/render"
)

var (
	ErrExportInProgress = errors.New("export already in progress")
	ErrUnknownFormat    = errors.New("unknown export format")
)

type Format string

const (
	FormatPNG    Format = "png"
	FormatPDF    Format = "pdf"
	FormatHTML   Format = "html"
	FormatLayout Format = "layout"
)

// ParseFormat accepts a format name or a file extension without its dot.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "png":
		return FormatPNG, nil
	case "pdf":
		return FormatPDF, nil
	case "html", "htm":
		return FormatHTML, nil
	case "layout", "json":
		return FormatLayout, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownFormat)
}

func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatPDF:
		return "application/pdf"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

func (f Format) Extension() string {
	if f == FormatLayout {
		return "json"
	}
	return string(f)
}

// Request is one export of a laid-out poster.
type Request struct {
	// SurfaceID keys the in-flight guard: one export per surface at a time.
	SurfaceID   string
	Layout      *engine.Layout
	Format      Format
	Scale       float64
	Orientation pagination.Orientation
	Background  string
	Title       string
}

// Exporter runs capture, tiling and composition.
type Exporter struct {
	capturer    Capturer
	newComposer ComposerFactory
	paper       pagination.Paper
	resolve     render.ImageResolver

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewExporter(c Capturer, paper pagination.Paper, resolve render.ImageResolver) *Exporter {
	return &Exporter{
		capturer:    c,
		newComposer: NewPDFComposer,
		paper:       paper,
		resolve:     resolve,
		inFlight:    make(map[string]struct{}),
	}
}

// WithComposer replaces the document composer factory.
func (e *Exporter) WithComposer(f ComposerFactory) *Exporter {
	e.newComposer = f
	return e
}

func (e *Exporter) acquire(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[id]; busy {
		return fmt.Errorf("surface %s: %w", id, ErrExportInProgress)
	}
	e.inFlight[id] = struct{}{}
	return nil
}

func (e *Exporter) release(id string) {
	e.mu.Lock()
	delete(e.inFlight, id)
	e.mu.Unlock()
}

// Busy reports whether an export of the surface is running.
func (e *Exporter) Busy(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, busy := e.inFlight[id]
	return busy
}

// Export writes req.Layout to w in req.Format. A second export of the same
// surface fails with ErrExportInProgress until the first returns.
func (e *Exporter) Export(ctx context.Context, req Request, w io.Writer) error {
	if req.Layout == nil {
		return errors.New("export: nil layout")
	}
	if err := e.acquire(req.SurfaceID); err != nil {
		return err
	}
	defer e.release(req.SurfaceID)

	start := time.Now()
	var err error
	switch req.Format {
	case FormatPNG:
		err = e.png(ctx, req, w)
	case FormatPDF:
		err = e.pdf(ctx, req, w)
	case FormatHTML:
		err = e.html(req, w)
	case FormatLayout:
		err = json.NewEncoder(w).Encode(req.Layout)
	default:
		err = fmt.Errorf("%q: %w", req.Format, ErrUnknownFormat)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", req.Format, err)
	}
	slog.Info("export complete", "surface", req.SurfaceID, "format", req.Format, "elapsed", time.Since(start))
	return nil
}

func (e *Exporter) captureOptions(req Request) (CaptureOptions, error) {
	if e.capturer == nil {
		return CaptureOptions{}, errors.New("no capture backend configured")
	}
	return CaptureOptions{Scale: req.Scale, Background: req.Background}, nil
}

func (e *Exporter) png(ctx context.Context, req Request, w io.Writer) error {
	opts, err := e.captureOptions(req)
	if err != nil {
		return err
	}
	img, err := e.capturer.Capture(ctx, req.Layout, opts)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Plan returns the page plan a PDF export of req would use for an image of
// the layout's size at the request scale.
func (e *Exporter) Plan(req Request) (pagination.Plan, error) {
	opts := CaptureOptions{Scale: req.Scale}
	s := opts.EffectiveScale()
	page := e.paper.Geometry(orientationOr(req.Orientation), s)
	b := imageBounds(req.Layout, s)
	return pagination.PlanTiles(b, page)
}

func (e *Exporter) pdf(ctx context.Context, req Request, w io.Writer) error {
	opts, err := e.captureOptions(req)
	if err != nil {
		return err
	}
	img, err := e.capturer.Capture(ctx, req.Layout, opts)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	page := e.paper.Geometry(orientationOr(req.Orientation), opts.EffectiveScale())
	plan, err := pagination.PlanTiles(img.Bounds(), page)
	if err != nil {
		return fmt.Errorf("plan pages: %w", err)
	}
	c, err := e.newComposer(page)
	if err != nil {
		return err
	}
	if err := ComposePages(c, img, plan); err != nil {
		return fmt.Errorf("compose: %w", err)
	}

	// Nothing reaches w unless composition succeeded.
	var buf bytes.Buffer
	if err := c.Write(&buf); err != nil {
		return err
	}
	slog.Debug("pdf composed", "pages", plan.Pages(), "single", plan.SinglePage)
	_, err = buf.WriteTo(w)
	return err
}

func (e *Exporter) html(req Request, w io.Writer) error {
	l := req.Layout
	if req.Background != "" {
		cp := *l
		cp.Background = req.Background
		l = &cp
	}
	doc, err := render.StaticHTML(l, render.Options{Title: req.Title, Resolve: e.resolve, SkipMissing: true})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, doc)
	return err
}

func imageBounds(l *engine.Layout, scale float64) image.Rectangle {
	return image.Rect(0, 0, int(math.Ceil(l.Width*scale)), int(math.Ceil(l.Height*scale)))
}

func orientationOr(o pagination.Orientation) pagination.Orientation {
	if o == pagination.Portrait {
		return o
	}
	return pagination.Landscape
}
