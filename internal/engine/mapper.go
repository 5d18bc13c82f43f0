package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/SbTchR/TimelineGenerator/internal/document"
	"github.com/SbTchR/TimelineGenerator/internal/pagination"
)

// PxPerMm is the CSS pixel density used for every physical conversion.
const PxPerMm = pagination.PxPerMm

// minSpan keeps the surface width finite for a collapsed range.
const minSpan = 1e-6

var ErrNonPositiveStep = errors.New("main step must be positive")

// Mapper converts axis values to horizontal pixel positions on the surface.
type Mapper struct {
	Start     float64
	End       float64
	MainStep  float64
	MmPerMain float64
	Padding   float64
}

// NewMapper reads the axis settings of doc. A range with end <= start is
// widened to one unit; a non-positive main step is an error.
func NewMapper(doc *document.Document) (Mapper, error) {
	if !(doc.MainStep > 0) || math.IsInf(doc.MainStep, 0) {
		return Mapper{}, fmt.Errorf("%w: %v", ErrNonPositiveStep, doc.MainStep)
	}
	end := doc.End
	if end <= doc.Start {
		end = doc.Start + 1
	}
	return Mapper{
		Start:     doc.Start,
		End:       end,
		MainStep:  doc.MainStep,
		MmPerMain: doc.MmPerMain,
		Padding:   doc.Padding,
	}, nil
}

// PxPerMain is the pixel distance between two main ticks.
func (m Mapper) PxPerMain() float64 {
	return m.MmPerMain * PxPerMm
}

func (m Mapper) ValueToX(v float64) float64 {
	return m.Padding + ((v-m.Start)/m.MainStep)*m.PxPerMain()
}

// XToValue is the inverse of ValueToX. It returns Start when main ticks
// have no width.
func (m Mapper) XToValue(x float64) float64 {
	px := m.PxPerMain()
	if px == 0 {
		return m.Start
	}
	return m.Start + ((x-m.Padding)/px)*m.MainStep
}

// TimelineWidth is the full surface width including padding on both sides.
func (m Mapper) TimelineWidth() float64 {
	span := math.Max(m.End-m.Start, minSpan)
	return 2*m.Padding + (span/m.MainStep)*m.PxPerMain()
}
