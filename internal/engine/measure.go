package engine

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// LineHeightFactor is the line box height relative to the font size.
const LineHeightFactor = 1.2

// maxCachedFaces bounds the face cache; it is emptied when full.
const maxCachedFaces = 64

type faceKey struct {
	size float64
	bold bool
}

// Measurer sizes text with the Go fonts. Card and label boxes are derived
// from it, and the software rasteriser draws with the same faces, so every
// output agrees with the layout. Safe for concurrent use.
type Measurer struct {
	regular *opentype.Font
	bold    *opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

func NewMeasurer() (*Measurer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &Measurer{
		regular: regular,
		bold:    bold,
		faces:   make(map[faceKey]font.Face),
	}, nil
}

var (
	defaultMeasurerOnce sync.Once
	defaultMeasurer     *Measurer
)

// DefaultMeasurer returns a process-wide measurer over the embedded fonts.
func DefaultMeasurer() *Measurer {
	defaultMeasurerOnce.Do(func() {
		m, err := NewMeasurer()
		if err != nil {
			// The fonts are compiled in; parsing them cannot fail at run time.
			panic(err)
		}
		defaultMeasurer = m
	})
	return defaultMeasurer
}

// NewFace returns a face owned by the caller. Faces are not safe for
// concurrent use.
func (m *Measurer) NewFace(size float64, bold bool) font.Face {
	f := m.regular
	if bold {
		f = m.bold
	}
	if size <= 0 {
		size = 1
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// face returns a cached face. Callers hold m.mu.
func (m *Measurer) face(size float64, bold bool) font.Face {
	k := faceKey{size: size, bold: bold}
	if f, ok := m.faces[k]; ok {
		return f
	}
	f := m.NewFace(size, bold)
	if len(m.faces) >= maxCachedFaces {
		clear(m.faces)
	}
	m.faces[k] = f
	return f
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// TextWidth is the advance width of s on a single line.
func (m *Measurer) TextWidth(s string, size float64, bold bool) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return toFloat(font.MeasureString(m.face(size, bold), s))
}

// Metrics returns the ascent and descent of the face at size.
func (m *Measurer) Metrics(size float64, bold bool) (ascent, descent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	met := m.face(size, bold).Metrics()
	return toFloat(met.Ascent), toFloat(met.Descent)
}

// Wrap breaks s into lines no wider than maxWidth, greedily at spaces.
// Explicit newlines start a new line; a word wider than maxWidth keeps a
// line of its own. Blank input gives no lines.
func (m *Measurer) Wrap(s string, size, maxWidth float64, bold bool) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	face := m.face(size, bold)
	space := toFloat(font.MeasureString(face, " "))

	var lines []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		line := words[0]
		w := toFloat(font.MeasureString(face, line))
		for _, word := range words[1:] {
			ww := toFloat(font.MeasureString(face, word))
			if w+space+ww <= maxWidth {
				line += " " + word
				w += space + ww
				continue
			}
			lines = append(lines, line)
			line, w = word, ww
		}
		lines = append(lines, line)
	}
	return lines
}

// MaxLineWidth is the width of the widest line.
func (m *Measurer) MaxLineWidth(lines []string, size float64, bold bool) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	face := m.face(size, bold)
	var w float64
	for _, l := range lines {
		w = max(w, toFloat(font.MeasureString(face, l)))
	}
	return w
}
