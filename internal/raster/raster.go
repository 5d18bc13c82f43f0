// Package raster is a pure-Go capture backend. It replays the layout's
// display list onto an RGBA image with the same fonts the layout was
// measured with.
package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/SbTchR/TimelineGenerator/internal/engine"
	"github.com/SbTchR/TimelineGenerator/internal/export"
	"github.com/SbTchR/TimelineGenerator/internal/render"
)

// MaxPixels bounds the size of one capture.
const MaxPixels = 400_000_000

var ErrTooLarge = errors.New("capture too large")

// Capturer draws layouts in software.
type Capturer struct {
	Measurer *engine.Measurer
	// Resolve turns image sources into data URIs. Nil draws only images
	// that already are data URIs.
	Resolve render.ImageResolver
}

var _ export.Capturer = (*Capturer)(nil)

func New(m *engine.Measurer, resolve render.ImageResolver) *Capturer {
	return &Capturer{Measurer: m, Resolve: resolve}
}

// Capture rasterises l at opts.EffectiveScale().
func (c *Capturer) Capture(ctx context.Context, l *engine.Layout, opts export.CaptureOptions) (image.Image, error) {
	if l == nil {
		return nil, errors.New("capture: nil layout")
	}
	m := c.Measurer
	if m == nil {
		m = engine.DefaultMeasurer()
	}
	s := opts.EffectiveScale()
	w, h := int(math.Ceil(l.Width*s)), int(math.Ceil(l.Height*s))
	if w <= 0 || h <= 0 || float64(w)*float64(h) > MaxPixels {
		return nil, fmt.Errorf("capture %dx%d: %w", w, h, ErrTooLarge)
	}

	p := &painter{
		img:     image.NewRGBA(image.Rect(0, 0, w, h)),
		xf:      engine.Scale(s, s),
		scale:   s,
		m:       m,
		faces:   make(map[faceKey]font.Face),
		resolve: c.Resolve,
		images:  make(map[string]image.Image),
	}
	defer p.close()

	cmds := engine.CompileDrawCommands(l, m)
	if opts.Background != "" && len(cmds) > 0 && cmds[0].Op == engine.OpRect {
		cmds[0].Fill = opts.Background
	}
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		if err := p.draw(cmd); err != nil {
			return nil, fmt.Errorf("capture %s %s: %w", cmd.Op, cmd.ItemID, err)
		}
	}
	return p.img, nil
}

type faceKey struct {
	size float64
	bold bool
}

type painter struct {
	img   *image.RGBA
	xf    engine.Matrix2D
	scale float64
	m     *engine.Measurer
	faces map[faceKey]font.Face

	resolve render.ImageResolver
	images  map[string]image.Image
}

func (p *painter) close() {
	for _, f := range p.faces {
		f.Close()
	}
}

func (p *painter) draw(cmd engine.DrawCommand) error {
	switch cmd.Op {
	case engine.OpRect:
		p.rect(cmd)
	case engine.OpLine:
		p.line(cmd)
	case engine.OpText:
		p.text(cmd)
	case engine.OpImage:
		return p.image(cmd)
	}
	return nil
}

func (p *painter) pixelRect(r engine.Rect) image.Rectangle {
	r = p.xf.TransformRect(r)
	return image.Rect(
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.X+r.Width)), int(math.Round(r.Y+r.Height)),
	)
}

func (p *painter) fill(r image.Rectangle, c color.NRGBA) {
	if c.A == 0 || r.Empty() {
		return
	}
	draw.Draw(p.img, r.Intersect(p.img.Bounds()), image.NewUniform(c), image.Point{}, draw.Over)
}

// rect fills the box, then strokes inside its edges.
func (p *painter) rect(cmd engine.DrawCommand) {
	box := engine.Rect{X: cmd.X, Y: cmd.Y, Width: cmd.Width, Height: cmd.Height}
	outer := p.pixelRect(box)
	sw := 0
	if cmd.Stroke != "" && cmd.StrokeWidth > 0 {
		sw = max(1, int(math.Round(cmd.StrokeWidth*p.scale)))
	}
	if cmd.Fill != "" {
		p.fill(outer.Inset(sw), render.WithOpacity(render.ColorOrBlack(cmd.Fill), cmd.FillOpacity))
	}
	if sw == 0 {
		return
	}
	c := render.WithOpacity(render.ColorOrBlack(cmd.Stroke), cmd.StrokeOpacity)
	if outer.Dx() <= 2*sw || outer.Dy() <= 2*sw {
		p.fill(outer, c)
		return
	}
	p.fill(image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, outer.Min.Y+sw), c)
	p.fill(image.Rect(outer.Min.X, outer.Max.Y-sw, outer.Max.X, outer.Max.Y), c)
	p.fill(image.Rect(outer.Min.X, outer.Min.Y+sw, outer.Min.X+sw, outer.Max.Y-sw), c)
	p.fill(image.Rect(outer.Max.X-sw, outer.Min.Y+sw, outer.Max.X, outer.Max.Y-sw), c)
}

// line stamps a square pen along the segment into a mask and composites
// the mask once, so overlapping stamps do not darken translucent strokes.
func (p *painter) line(cmd engine.DrawCommand) {
	c := render.WithOpacity(render.ColorOrBlack(cmd.Stroke), cmd.StrokeOpacity)
	if c.A == 0 {
		return
	}
	x1, y1 := p.xf.TransformPoint(cmd.X, cmd.Y)
	x2, y2 := p.xf.TransformPoint(cmd.X2, cmd.Y2)
	pen := max(1, cmd.StrokeWidth*p.scale)

	if x1 == x2 || y1 == y2 {
		r := engine.Rect{X: min(x1, x2), Y: min(y1, y2), Width: math.Abs(x2 - x1), Height: math.Abs(y2 - y1)}
		if r.Width == 0 {
			r.X -= pen / 2
			r.Width = pen
		} else {
			r.Y -= pen / 2
			r.Height = pen
		}
		p.fill(image.Rect(int(math.Round(r.X)), int(math.Round(r.Y)),
			int(math.Round(r.X+r.Width)), int(math.Round(r.Y+r.Height))), c)
		return
	}

	half := pen / 2
	bounds := image.Rect(
		int(math.Floor(min(x1, x2)-half)), int(math.Floor(min(y1, y2)-half)),
		int(math.Ceil(max(x1, x2)+half)), int(math.Ceil(max(y1, y2)+half)),
	).Intersect(p.img.Bounds())
	if bounds.Empty() {
		return
	}
	// Only the part of the segment whose pen can touch the image is stamped.
	clip := engine.Rect{
		X: float64(bounds.Min.X) - half, Y: float64(bounds.Min.Y) - half,
		Width: float64(bounds.Dx()) + pen, Height: float64(bounds.Dy()) + pen,
	}
	t0, t1, ok := clipSegment(x1, y1, x2, y2, clip)
	if !ok {
		return
	}
	x1, y1, x2, y2 = x1+t0*(x2-x1), y1+t0*(y2-y1), x1+t1*(x2-x1), y1+t1*(y2-y1)

	mask := image.NewAlpha(bounds)
	steps := max(1, int(math.Ceil(math.Hypot(x2-x1, y2-y1))))
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		cx, cy := x1+t*(x2-x1), y1+t*(y2-y1)
		stamp := image.Rect(
			int(math.Round(cx-half)), int(math.Round(cy-half)),
			int(math.Round(cx+half)), int(math.Round(cy+half)),
		)
		draw.Draw(mask, stamp.Intersect(bounds), image.Opaque, image.Point{}, draw.Src)
	}
	draw.DrawMask(p.img, bounds, image.NewUniform(c), image.Point{}, mask, bounds.Min, draw.Over)
}

// clipSegment returns the parameter range [t0, t1] of the segment from
// (x1, y1) to (x2, y2) that lies inside r (Liang-Barsky).
func clipSegment(x1, y1, x2, y2 float64, r engine.Rect) (t0, t1 float64, ok bool) {
	dx, dy := x2-x1, y2-y1
	t0, t1 = 0, 1
	edges := [4][2]float64{
		{-dx, x1 - r.X},
		{dx, r.X + r.Width - x1},
		{-dy, y1 - r.Y},
		{dy, r.Y + r.Height - y1},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			t0 = max(t0, t)
		} else {
			t1 = min(t1, t)
		}
		if t0 > t1 {
			return 0, 0, false
		}
	}
	return t0, t1, true
}

func (p *painter) face(size float64, bold bool) font.Face {
	k := faceKey{size: size, bold: bold}
	f, ok := p.faces[k]
	if !ok {
		f = p.m.NewFace(size, bold)
		p.faces[k] = f
	}
	return f
}

func (p *painter) text(cmd engine.DrawCommand) {
	c := render.WithOpacity(render.ColorOrBlack(cmd.Fill), cmd.FillOpacity)
	if c.A == 0 || strings.TrimSpace(cmd.Text) == "" {
		return
	}
	x, y := p.xf.TransformPoint(cmd.X, cmd.Y)
	size := cmd.FontSize * p.scale
	b := p.img.Bounds()
	if y < float64(b.Min.Y)-2*size || y > float64(b.Max.Y)+2*size ||
		x > float64(b.Max.X) || x < float64(b.Min.X)-float64(len(cmd.Text))*size {
		return
	}
	d := font.Drawer{
		Dst:  p.img,
		Src:  image.NewUniform(c),
		Face: p.face(size, cmd.Bold),
		Dot:  fixed.Point26_6{X: fixed.Int26_6(math.Round(x * 64)), Y: fixed.Int26_6(math.Round(y * 64))},
	}
	d.DrawString(cmd.Text)
}

// image scales the source to fit the slot keeping its aspect ratio, centred
// like CSS object-fit: contain.
func (p *painter) image(cmd engine.DrawCommand) error {
	src, err := p.load(cmd.Src)
	if errors.Is(err, render.ErrImageNotFound) {
		slog.Warn("skip missing image", "src", cmd.Src, "item", cmd.ItemID)
		return nil
	}
	if err != nil {
		return err
	}
	if src == nil {
		return nil
	}

	slot := p.xf.TransformRect(engine.Rect{X: cmd.X, Y: cmd.Y, Width: cmd.Width, Height: cmd.Height})
	sb := src.Bounds()
	if sb.Empty() || slot.IsEmpty() {
		return nil
	}
	k := min(slot.Width/float64(sb.Dx()), slot.Height/float64(sb.Dy()))
	w, h := float64(sb.Dx())*k, float64(sb.Dy())*k
	x, y := slot.X+(slot.Width-w)/2, slot.Y+(slot.Height-h)/2
	dst := image.Rect(int(math.Round(x)), int(math.Round(y)), int(math.Round(x+w)), int(math.Round(y+h)))
	if !dst.Overlaps(p.img.Bounds()) {
		return nil
	}
	draw.CatmullRom.Scale(p.img, dst, src, sb, draw.Over, nil)
	return nil
}

func (p *painter) load(src string) (image.Image, error) {
	if img, ok := p.images[src]; ok {
		return img, nil
	}
	uri := src
	if p.resolve != nil {
		var err error
		if uri, err = p.resolve(src); err != nil {
			return nil, err
		}
	}
	var img image.Image
	if strings.HasPrefix(uri, "data:") {
		var err error
		if img, err = DecodeDataURI(uri); err != nil {
			return nil, err
		}
	} else {
		slog.Warn("skip remote image", "src", src)
	}
	p.images[src] = img
	return img, nil
}

// DecodeDataURI decodes a base64 image data URI.
func DecodeDataURI(uri string) (image.Image, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("decode data uri: not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
