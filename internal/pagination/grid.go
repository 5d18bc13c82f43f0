package pagination

import (
	"errors"
	"fmt"
	"math"
)

// PxPerMm converts physical millimetres to CSS pixels at 96 dpi.
const PxPerMm = 96 / 25.4

var (
	ErrInvalidPageSize = errors.New("invalid page size")
	ErrTooManyTiles    = errors.New("too many tiles")
)

type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// Paper is a physical sheet given in portrait orientation.
type Paper struct {
	Name     string
	WidthMm  float64
	HeightMm float64
}

var (
	A4     = Paper{Name: "a4", WidthMm: 210, HeightMm: 297}
	A3     = Paper{Name: "a3", WidthMm: 297, HeightMm: 420}
	Letter = Paper{Name: "letter", WidthMm: 215.9, HeightMm: 279.4}
)

// PaperByName resolves a configured paper name. The empty name is A4.
func PaperByName(name string) (Paper, error) {
	switch name {
	case "", "a4", "A4":
		return A4, nil
	case "a3", "A3":
		return A3, nil
	case "letter":
		return Letter, nil
	default:
		return Paper{}, fmt.Errorf("unknown paper %q", name)
	}
}

// PageGeometry is one page in both physical and pixel units.
type PageGeometry struct {
	WidthMm  float64 `json:"widthMm"`
	HeightMm float64 `json:"heightMm"`
	WidthPx  float64 `json:"widthPx"`
	HeightPx float64 `json:"heightPx"`
}

// Geometry returns the page size for an orientation at a pixel scale.
// Guides use scale 1; the tiler uses the capture scale.
func (p Paper) Geometry(o Orientation, scale float64) PageGeometry {
	w, h := p.WidthMm, p.HeightMm
	if o == Landscape {
		w, h = h, w
	}
	return PageGeometry{
		WidthMm:  w,
		HeightMm: h,
		WidthPx:  w * PxPerMm * scale,
		HeightPx: h * PxPerMm * scale,
	}
}

// GridOriginY places the page grid so that one page is centred on the
// baseline.
func GridOriginY(baselineY, pageHeightPx float64) float64 {
	return baselineY - pageHeightPx/2
}

// firstRow is the lowest k for which originY + k*pageHeightPx can touch
// the surface.
func firstRow(originY, pageHeightPx float64) int {
	return int(math.Floor(-originY / pageHeightPx))
}

func validPageSize(p float64) bool {
	return p >= 1 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// Guides are the page boundaries drawn over the editing surface.
type Guides struct {
	Vertical   []float64 `json:"vertical"`
	Horizontal []float64 `json:"horizontal"`
}

// ComputeGuides returns the page boundaries for a surface of the given size.
// Vertical guides start one page from the left edge; horizontal guides
// follow the baseline-centred grid and stay within [0, height].
func ComputeGuides(width, height, baselineY float64, page PageGeometry) (Guides, error) {
	pw, ph := page.WidthPx, page.HeightPx
	if !validPageSize(pw) || !validPageSize(ph) {
		return Guides{}, fmt.Errorf("%w: %gx%g px", ErrInvalidPageSize, pw, ph)
	}

	g := Guides{Vertical: []float64{}, Horizontal: []float64{}}
	for n := 1; ; n++ {
		x := float64(n) * pw
		if x >= width {
			break
		}
		g.Vertical = append(g.Vertical, x)
	}

	origin := GridOriginY(baselineY, ph)
	for k := firstRow(origin, ph); ; k++ {
		y := origin + float64(k)*ph
		if y > height {
			break
		}
		if y >= 0 {
			g.Horizontal = append(g.Horizontal, y)
		}
	}
	return g, nil
}
