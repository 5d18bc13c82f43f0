package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/SbTchR/TimelineGenerator/internal/pagination"
)

// Composer builds a paged document out of raster images. A new composer
// already holds one empty page. Positions and sizes are in millimetres.
type Composer interface {
	AddPage() error
	PlaceImage(img image.Image, x, y, w, h float64) error
	Write(w io.Writer) error
}

// ComposerFactory creates a composer whose pages have the given geometry.
type ComposerFactory func(page pagination.PageGeometry) (Composer, error)

// PDFComposer writes pages with fpdf.
type PDFComposer struct {
	pdf    *fpdf.Fpdf
	images int
}

var _ Composer = (*PDFComposer)(nil)

// NewPDFComposer creates a PDF whose pages match page, without margins.
func NewPDFComposer(page pagination.PageGeometry) (Composer, error) {
	if page.WidthMm <= 0 || page.HeightMm <= 0 {
		return nil, fmt.Errorf("new pdf %vx%v mm: %w", page.WidthMm, page.HeightMm, pagination.ErrInvalidPageSize)
	}
	orientation, size := "P", fpdf.SizeType{Wd: page.WidthMm, Ht: page.HeightMm}
	if page.WidthMm > page.HeightMm {
		orientation, size = "L", fpdf.SizeType{Wd: page.HeightMm, Ht: page.WidthMm}
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "mm",
		Size:           size,
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("TimelineGenerator", true)
	pdf.AddPage()
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("new pdf: %w", err)
	}
	return &PDFComposer{pdf: pdf}, nil
}

func (c *PDFComposer) AddPage() error {
	c.pdf.AddPage()
	return c.pdf.Error()
}

// PlaceImage embeds img as a PNG so transparency survives.
func (c *PDFComposer) PlaceImage(img image.Image, x, y, w, h float64) error {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode page image: %w", err)
	}
	c.images++
	name := fmt.Sprintf("page-%d", c.images)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	c.pdf.RegisterImageOptionsReader(name, opts, &buf)
	c.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	if err := c.pdf.Error(); err != nil {
		return fmt.Errorf("place image: %w", err)
	}
	return nil
}

func (c *PDFComposer) Write(w io.Writer) error {
	if err := c.pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ComposePages lays a captured surface onto the composer following plan:
// either one image on the single page, or one tile per page in row-major
// order.
func ComposePages(c Composer, img image.Image, plan pagination.Plan) error {
	if plan.SinglePage {
		return c.PlaceImage(img, 0, plan.OffsetYMm, plan.ImageWidthMm, plan.ImageHeightMm)
	}
	for i, t := range plan.Tiles {
		if i > 0 {
			if err := c.AddPage(); err != nil {
				return fmt.Errorf("add page %d: %w", i+1, err)
			}
		}
		if err := c.PlaceImage(plan.CropTile(img, t), 0, 0, plan.Page.WidthMm, plan.Page.HeightMm); err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return nil
}
