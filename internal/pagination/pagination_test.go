package pagination

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

const epsilon = 1e-6

func assertNear(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

// fourPxPerMm is a synthetic page at 4 px/mm, 200 x 150 mm.
var fourPxPerMm = PageGeometry{WidthMm: 200, HeightMm: 150, WidthPx: 800, HeightPx: 600}

func TestGeometryOrientation(t *testing.T) {
	p := A4.Geometry(Portrait, 1)
	assertNear(t, "portrait width mm", p.WidthMm, 210)
	assertNear(t, "portrait height mm", p.HeightMm, 297)
	assertNear(t, "portrait width px", p.WidthPx, 210*PxPerMm)

	l := A4.Geometry(Landscape, 4)
	assertNear(t, "landscape width mm", l.WidthMm, 297)
	assertNear(t, "landscape height px", l.HeightPx, 210*PxPerMm*4)
}

func TestPaperByName(t *testing.T) {
	if p, err := PaperByName(""); err != nil || p != A4 {
		t.Fatalf("PaperByName(\"\") = %v, %v", p, err)
	}
	if _, err := PaperByName("tabloid"); err == nil {
		t.Fatal("unknown paper accepted")
	}
}

func TestComputeGuides(t *testing.T) {
	page := A4.Geometry(Landscape, 1)

	g, err := ComputeGuides(2000, 2000, 1000, page)
	if err != nil {
		t.Fatalf("ComputeGuides: %v", err)
	}
	if len(g.Vertical) != 1 {
		t.Fatalf("vertical guides = %v, want one", g.Vertical)
	}
	assertNear(t, "vertical[0]", g.Vertical[0], page.WidthPx)

	origin := 1000 - page.HeightPx/2
	if len(g.Horizontal) != 2 {
		t.Fatalf("horizontal guides = %v, want two", g.Horizontal)
	}
	assertNear(t, "horizontal[0]", g.Horizontal[0], origin)
	assertNear(t, "horizontal[1]", g.Horizontal[1], origin+page.HeightPx)

	// The page straddling the baseline is the only one on a short surface.
	g, err = ComputeGuides(500, 520, 260, page)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Vertical) != 0 || len(g.Horizontal) != 0 {
		t.Fatalf("short surface guides = %+v, want none", g)
	}
}

func TestGuidesAreSymmetricAboutBaseline(t *testing.T) {
	g, err := ComputeGuides(100, 3000, 1500, fourPxPerMm)
	if err != nil {
		t.Fatal(err)
	}
	n := len(g.Horizontal)
	if n == 0 {
		t.Fatal("no horizontal guides")
	}
	for i := 0; i < n/2; i++ {
		assertNear(t, "mirror", g.Horizontal[i]+g.Horizontal[n-1-i], 3000)
	}
}

func TestPlanTilesPageCount(t *testing.T) {
	// origin = 500 - 300 = 200; rows at -400, 200, 800; columns at 0, 800, 1600.
	plan, err := PlanTiles(image.Rect(0, 0, 2000, 1000), fourPxPerMm)
	if err != nil {
		t.Fatalf("PlanTiles: %v", err)
	}
	if plan.SinglePage {
		t.Fatal("oversized surface planned as a single page")
	}
	if plan.Pages() != 9 {
		t.Fatalf("pages = %d, want 9", plan.Pages())
	}

	wantRows := []int{-400, 200, 800}
	for i, tile := range plan.Tiles {
		row, col := i/3, i%3
		if tile.Window.Min.Y != wantRows[row] {
			t.Errorf("tile %d window y = %d, want %d", i, tile.Window.Min.Y, wantRows[row])
		}
		if tile.Window.Min.X != col*800 {
			t.Errorf("tile %d window x = %d, want %d", i, tile.Window.Min.X, col*800)
		}
	}

	first := plan.Tiles[0]
	if first.Src != image.Rect(0, 0, 800, 200) {
		t.Errorf("first src = %v", first.Src)
	}
	if first.Dst() != image.Pt(0, 400) {
		t.Errorf("first dst = %v, want (0,400)", first.Dst())
	}
	last := plan.Tiles[8]
	if last.Src != image.Rect(1600, 800, 2000, 1000) {
		t.Errorf("last src = %v", last.Src)
	}
}

func TestPlanTilesCoverage(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		page PageGeometry
	}{
		{"integral", 2000, 1000, fourPxPerMm},
		{"fractional", 1501, 903, PageGeometry{WidthMm: 100, HeightMm: 75, WidthPx: 333.7, HeightPx: 250.3}},
		{"a4 at scale 2", 5000, 1040, A4.Geometry(Landscape, 2)},
		{"tall", 700, 4000, A4.Geometry(Portrait, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanTiles(image.Rect(0, 0, tt.w, tt.h), tt.page)
			if err != nil {
				t.Fatalf("PlanTiles: %v", err)
			}
			owners := make([]int, tt.w*tt.h)
			for _, tile := range plan.Tiles {
				if tile.Src.Empty() {
					t.Fatalf("empty tile emitted: %+v", tile)
				}
				if tile.Window.Dx() > plan.TileWidth || tile.Window.Dy() > plan.TileHeight {
					t.Fatalf("window %v larger than tile %dx%d", tile.Window, plan.TileWidth, plan.TileHeight)
				}
				for y := tile.Src.Min.Y; y < tile.Src.Max.Y; y++ {
					for x := tile.Src.Min.X; x < tile.Src.Max.X; x++ {
						owners[y*tt.w+x]++
					}
				}
			}
			for i, n := range owners {
				if n != 1 {
					t.Fatalf("pixel (%d,%d) owned by %d tiles", i%tt.w, i/tt.w, n)
				}
			}
		})
	}
}

func TestPlanTilesSinglePage(t *testing.T) {
	plan, err := PlanTiles(image.Rect(0, 0, 400, 300), fourPxPerMm)
	if err != nil {
		t.Fatal(err)
	}
	if !plan.SinglePage || plan.Pages() != 1 {
		t.Fatalf("plan = %+v, want single page", plan)
	}
	assertNear(t, "image width mm", plan.ImageWidthMm, 100)
	assertNear(t, "image height mm", plan.ImageHeightMm, 75)
	assertNear(t, "offset y", plan.OffsetYMm, 37.5)
	if len(plan.Tiles) != 0 {
		t.Fatalf("single page plan has %d tiles", len(plan.Tiles))
	}
}

func TestPlanTilesInvalidPageSize(t *testing.T) {
	tests := []struct {
		name string
		page PageGeometry
	}{
		{"zero", PageGeometry{WidthMm: 1, HeightMm: 1}},
		{"negative", PageGeometry{WidthMm: 1, HeightMm: 1, WidthPx: -5, HeightPx: 10}},
		{"nan", PageGeometry{WidthMm: 1, HeightMm: 1, WidthPx: math.NaN(), HeightPx: 10}},
		{"inf", PageGeometry{WidthMm: 1, HeightMm: 1, WidthPx: 10, HeightPx: math.Inf(1)}},
		{"sub-pixel", PageGeometry{WidthMm: 1, HeightMm: 1, WidthPx: 0.5, HeightPx: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanTiles(image.Rect(0, 0, 100, 100), tt.page)
			if !errors.Is(err, ErrInvalidPageSize) {
				t.Fatalf("error = %v, want ErrInvalidPageSize", err)
			}
			_, err = ComputeGuides(100, 100, 50, tt.page)
			if !errors.Is(err, ErrInvalidPageSize) {
				t.Fatalf("guides error = %v, want ErrInvalidPageSize", err)
			}
		})
	}
}

func TestPlanTilesTooMany(t *testing.T) {
	page := PageGeometry{WidthMm: 1, HeightMm: 1, WidthPx: 1, HeightPx: 1}
	_, err := PlanTiles(image.Rect(0, 0, 100, 100), page)
	if !errors.Is(err, ErrTooManyTiles) {
		t.Fatalf("error = %v, want ErrTooManyTiles", err)
	}
}

func TestCropTile(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2000, 1000))
	red := color.RGBA{R: 255, A: 255}
	for i := 0; i < len(src.Pix); i += 4 {
		copy(src.Pix[i:i+4], []uint8{red.R, red.G, red.B, red.A})
	}

	plan, err := PlanTiles(src.Bounds(), fourPxPerMm)
	if err != nil {
		t.Fatal(err)
	}
	tile := plan.CropTile(src, plan.Tiles[0])
	if tile.Bounds() != image.Rect(0, 0, 800, 600) {
		t.Fatalf("tile bounds = %v", tile.Bounds())
	}
	if got := tile.RGBAAt(10, 399); got.A != 0 {
		t.Errorf("pixel above the surface = %v, want transparent", got)
	}
	if got := tile.RGBAAt(10, 400); got != red {
		t.Errorf("pixel inside the surface = %v, want red", got)
	}
}
