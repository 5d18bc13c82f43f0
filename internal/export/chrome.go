package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/SbTchR/TimelineGenerator/internal/engine"
	"github.com/SbTchR/TimelineGenerator/internal/render"
)

// ChromeCapturer loads the static poster document into headless Chrome
// and screenshots the surface element at the capture scale.
type ChromeCapturer struct {
	// ExecPath is the browser binary. Empty lets chromedp search for it.
	ExecPath string
	// Resolve inlines images so the page needs no network access.
	Resolve render.ImageResolver
	Timeout time.Duration
}

var _ Capturer = (*ChromeCapturer)(nil)

func (c *ChromeCapturer) Capture(ctx context.Context, l *engine.Layout, opts CaptureOptions) (image.Image, error) {
	if l == nil {
		return nil, errors.New("capture: nil layout")
	}
	if opts.Background != "" {
		cp := *l
		cp.Background = opts.Background
		l = &cp
	}
	doc, err := render.StaticHTML(l, render.Options{Resolve: c.Resolve, SkipMissing: true})
	if err != nil {
		return nil, fmt.Errorf("render static document: %w", err)
	}
	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(doc))

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
	)
	if c.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	scale := opts.EffectiveScale()
	var buf []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(math.Ceil(l.Width)), int64(math.Ceil(l.Height)), chromedp.EmulateScale(scale)),
		chromedp.Navigate(dataURI),
		chromedp.WaitVisible("#"+render.SpaceID, chromedp.ByQuery),
		chromedp.Screenshot("#"+render.SpaceID, &buf, chromedp.NodeVisible, chromedp.ByQuery),
	}
	start := time.Now()
	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return nil, fmt.Errorf("chrome capture: %w", err)
	}
	if len(buf) == 0 {
		return nil, errors.New("chrome capture: empty screenshot")
	}

	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	slog.Debug("chrome capture", "width", img.Bounds().Dx(), "height", img.Bounds().Dy(), "scale", scale, "elapsed", time.Since(start))
	return img, nil
}
