package pagination

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// MaxTiles bounds the number of pages a single export may produce.
const MaxTiles = 2000

// Tile is one page of a tiled export. Window is the page-sized region of
// the surface the page shows and may extend past its edges; Src is the
// part of Window inside the surface.
type Tile struct {
	Row    int             `json:"row"`
	Col    int             `json:"col"`
	Window image.Rectangle `json:"window"`
	Src    image.Rectangle `json:"src"`
}

// Dst is where Src lands inside the tile image.
func (t Tile) Dst() image.Point {
	return t.Src.Min.Sub(t.Window.Min)
}

// Plan describes how a captured surface is laid onto pages.
type Plan struct {
	Page PageGeometry `json:"page"`

	// SinglePage is set when the whole surface fits one page. The image is
	// then placed at (0, OffsetYMm) with size ImageWidthMm x ImageHeightMm.
	SinglePage    bool    `json:"singlePage"`
	OffsetYMm     float64 `json:"offsetYMm"`
	ImageWidthMm  float64 `json:"imageWidthMm"`
	ImageHeightMm float64 `json:"imageHeightMm"`

	// TileWidth and TileHeight are the pixel size of every tile image.
	TileWidth  int    `json:"tileWidth"`
	TileHeight int    `json:"tileHeight"`
	Tiles      []Tile `json:"tiles"`
}

// Pages is the number of document pages the plan produces.
func (p Plan) Pages() int {
	if p.SinglePage {
		return 1
	}
	return len(p.Tiles)
}

// PlanTiles slices a surface of bounds b, captured at the scale page was
// computed for, into baseline-centred pages. The baseline is the vertical
// middle of the surface. Tiles are returned row-major and every surface
// pixel belongs to exactly one of them.
func PlanTiles(b image.Rectangle, page PageGeometry) (Plan, error) {
	pw, ph := page.WidthPx, page.HeightPx
	if !validPageSize(pw) || !validPageSize(ph) || page.WidthMm <= 0 || page.HeightMm <= 0 {
		return Plan{}, fmt.Errorf("%w: %gx%g px", ErrInvalidPageSize, pw, ph)
	}

	w, h := b.Dx(), b.Dy()
	pxPerMm := pw / page.WidthMm
	plan := Plan{
		Page:          page,
		ImageWidthMm:  float64(w) / pxPerMm,
		ImageHeightMm: float64(h) / pxPerMm,
		Tiles:         []Tile{},
	}

	if plan.ImageWidthMm <= page.WidthMm && plan.ImageHeightMm <= page.HeightMm {
		plan.SinglePage = true
		plan.OffsetYMm = math.Max(0, (page.HeightMm-plan.ImageHeightMm)/2)
		return plan, nil
	}

	plan.TileWidth = int(math.Ceil(pw))
	plan.TileHeight = int(math.Ceil(ph))

	W, H := float64(w), float64(h)
	origin := GridOriginY(H/2, ph)
	surface := image.Rect(0, 0, w, h)

	for k := firstRow(origin, ph); ; k++ {
		y := origin + float64(k)*ph
		if y >= H {
			break
		}
		if y+ph <= 0 {
			continue
		}
		y0 := int(math.Floor(y))
		y1 := int(math.Floor(origin + float64(k+1)*ph))

		for c := 0; float64(c)*pw < W; c++ {
			x0 := int(math.Floor(float64(c) * pw))
			x1 := int(math.Floor(float64(c+1) * pw))
			win := image.Rect(x0, y0, x1, y1)
			src := win.Intersect(surface)
			if src.Empty() {
				continue
			}
			if len(plan.Tiles) == MaxTiles {
				return Plan{}, fmt.Errorf("%w: more than %d pages", ErrTooManyTiles, MaxTiles)
			}
			plan.Tiles = append(plan.Tiles, Tile{
				Row:    k,
				Col:    c,
				Window: win.Add(b.Min),
				Src:    src.Add(b.Min),
			})
		}
	}
	return plan, nil
}

// CropTile copies the part of img under t into a blank page-sized image.
func (p Plan) CropTile(img image.Image, t Tile) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, p.TileWidth, p.TileHeight))
	at := t.Dst()
	r := image.Rectangle{Min: at, Max: at.Add(t.Src.Size())}
	draw.Draw(dst, r, img, t.Src.Min, draw.Src)
	return dst
}
