// Package render produces the static, self-contained HTML document of a
// poster layout. The document is what a browser capture screenshots and
// what the html export format returns.
package render

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/SbTchR/TimelineGenerator/internal/document"
	"github.com/SbTchR/TimelineGenerator/internal/engine"
)

// SpaceID is the element id of the poster surface. Captures screenshot it.
const SpaceID = "timeline-space"

// ErrImageNotFound is returned by resolvers for sources they cannot read.
var ErrImageNotFound = errors.New("image not found")

// ImageResolver turns an image source into the src attribute written to
// the document, typically a data URI.
type ImageResolver func(src string) (string, error)

// Options control StaticHTML.
type Options struct {
	Title string
	// Resolve inlines images. Nil keeps sources unchanged.
	Resolve ImageResolver
	// SkipMissing drops images the resolver reports as ErrImageNotFound
	// instead of failing.
	SkipMissing bool
}

// StaticHTML renders a layout as one HTML document with embedded styling
// and absolutely positioned elements. Page guides and drag handles are
// never emitted.
func StaticHTML(l *engine.Layout, opts Options) (string, error) {
	if l == nil {
		return "", errors.New("render: nil layout")
	}
	title := opts.Title
	if title == "" {
		title = "Frise chronologique"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"fr\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(title))
	sb.WriteString("<style>\n")
	sb.WriteString("* { box-sizing: border-box; margin: 0; padding: 0; }\n")
	sb.WriteString("body { background: #ffffff; }\n")
	fmt.Fprintf(&sb, "#%s { position: relative; overflow: hidden; }\n", SpaceID)
	sb.WriteString(".el { position: absolute; }\n")
	sb.WriteString(".txt { position: absolute; white-space: pre; overflow: visible; }\n")
	sb.WriteString(".img { position: absolute; object-fit: contain; }\n")
	sb.WriteString(".links { position: absolute; left: 0; top: 0; pointer-events: none; }\n")
	sb.WriteString("</style>\n</head>\n<body>\n")

	fmt.Fprintf(&sb, `<div id="%s" style="width: %s; height: %s; background: %s;">`+"\n",
		SpaceID, px(l.Width), px(l.Height), CSS(l.Background, 1))

	w := &writer{sb: &sb, opts: opts}
	w.segment(l.Axis.Baseline)
	for _, t := range l.Axis.Ticks {
		w.box(t.Rect, fmt.Sprintf("background: %s;", CSS(t.Color, 1)))
	}
	for _, t := range l.Axis.Labels {
		w.text(t)
	}
	for _, p := range l.Periods {
		if err := w.period(p); err != nil {
			return "", err
		}
	}
	for _, e := range l.Events {
		if err := w.event(e); err != nil {
			return "", err
		}
	}

	if len(l.Connectors) > 0 {
		fmt.Fprintf(&sb, `<svg class="links" width="%s" height="%s" viewBox="0 0 %s %s" xmlns="http://www.w3.org/2000/svg">`+"\n",
			num(l.Width), num(l.Height), num(l.Width), num(l.Height))
		for _, c := range l.Connectors {
			fmt.Fprintf(&sb, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s"/>`+"\n",
				num(c.X1), num(c.Y1), num(c.X2), num(c.Y2),
				CSS(c.Color, c.Opacity), num(c.Width))
		}
		sb.WriteString("</svg>\n")
	}

	sb.WriteString("</div>\n</body>\n</html>\n")
	return sb.String(), nil
}

type writer struct {
	sb   *strings.Builder
	opts Options
}

func (w *writer) box(r engine.Rect, style string) {
	fmt.Fprintf(w.sb, `<div class="el" style="%s %s"></div>`+"\n", place(r), style)
}

// segment draws a horizontal or vertical line as a thin div. Diagonal
// lines only occur in the connector layer.
func (w *writer) segment(s engine.Segment) {
	r := engine.Rect{X: min(s.X1, s.X2), Y: min(s.Y1, s.Y2), Width: abs(s.X2 - s.X1), Height: abs(s.Y2 - s.Y1)}
	if r.Height == 0 {
		r.Y -= s.Width / 2
		r.Height = s.Width
	} else if r.Width == 0 {
		r.X -= s.Width / 2
		r.Width = s.Width
	}
	w.box(r, fmt.Sprintf("background: %s;", CSS(s.Color, s.Opacity)))
}

func (w *writer) text(t engine.TextBlock) {
	if len(t.Lines) == 0 {
		return
	}
	weight := "400"
	if t.Bold {
		weight = "700"
	}
	lines := make([]string, len(t.Lines))
	for i, l := range t.Lines {
		lines[i] = html.EscapeString(l)
	}
	fmt.Fprintf(w.sb, `<div class="txt" style="%s font-family: '%s', 'Go', sans-serif; font-size: %s; line-height: %s; font-weight: %s; color: %s; text-align: %s;">%s</div>`+"\n",
		place(engine.Rect{X: t.X, Y: t.Y, Width: t.Width, Height: t.Height}),
		escapeCSS(t.Font), px(t.FontSize), px(t.LineHeight), weight,
		CSS(t.Color, t.Opacity), t.Align, strings.Join(lines, "<br>"))
}

func (w *writer) image(img *engine.ImageSlot) error {
	if img == nil {
		return nil
	}
	src := img.Src
	if w.opts.Resolve != nil {
		resolved, err := w.opts.Resolve(src)
		if errors.Is(err, ErrImageNotFound) && w.opts.SkipMissing {
			return nil
		}
		if err != nil {
			return fmt.Errorf("inline image %s: %w", src, err)
		}
		src = resolved
	}
	fmt.Fprintf(w.sb, `<img class="img" src="%s" alt="%s" style="%s">`+"\n",
		html.EscapeString(src), html.EscapeString(img.Alt), place(img.Rect))
	return nil
}

func (w *writer) period(p engine.PeriodBox) error {
	w.sb.WriteString(`<div class="period">` + "\n")
	if p.Style == document.PeriodStyleLine {
		w.box(p.Bar, fmt.Sprintf("background: %s;", CSS(p.BarColor, p.BarOpacity)))
		for _, c := range p.Caps {
			w.box(c, fmt.Sprintf("background: %s;", CSS(p.BarColor, p.CapOpacity)))
		}
	} else {
		w.box(p.Rect, fmt.Sprintf("background: %s; border: %s solid %s;",
			CSS(p.Fill, p.FillOpacity), px(p.BorderWidth), CSS(p.Stroke, p.StrokeOpacity)))
	}
	w.text(p.Label)
	if p.Detail != nil {
		w.text(*p.Detail)
	}
	if err := w.image(p.Image); err != nil {
		return err
	}
	w.sb.WriteString("</div>\n")
	return nil
}

func (w *writer) event(e engine.EventCard) error {
	w.sb.WriteString(`<div class="event">` + "\n")
	w.box(e.Rect, fmt.Sprintf("background: %s; border-radius: 6px;", CSS(e.Background, e.BackgroundOpacity)))
	w.text(e.Title)
	if e.Date != nil {
		w.text(*e.Date)
	}
	if e.Detail != nil {
		w.text(*e.Detail)
	}
	if err := w.image(e.Image); err != nil {
		return err
	}
	w.sb.WriteString("</div>\n")
	return nil
}

// DirResolver inlines sources served under urlPrefix from the files in
// dir. Data URIs and absolute http(s) URLs are kept as they are.
func DirResolver(dir, urlPrefix string) ImageResolver {
	return func(src string) (string, error) {
		if src == "" || strings.HasPrefix(src, "data:") ||
			strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			return src, nil
		}
		name := strings.TrimPrefix(src, urlPrefix)
		name = filepath.Base(filepath.Clean("/" + name))
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", src, ErrImageNotFound)
		}
		if err != nil {
			return "", fmt.Errorf("read image %s: %w", src, err)
		}
		return DataURI(name, data), nil
	}
}

// DataURI encodes data as a base64 data URI, typed from the file name.
func DataURI(name string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", MimeType(name), base64.StdEncoding.EncodeToString(data))
}

// MimeType guesses an image media type from a file extension.
func MimeType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func place(r engine.Rect) string {
	return fmt.Sprintf("left: %s; top: %s; width: %s; height: %s;", px(r.X), px(r.Y), px(r.Width), px(r.Height))
}

func px(v float64) string {
	return num(v) + "px"
}

func num(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

func escapeCSS(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return html.EscapeString(s)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
