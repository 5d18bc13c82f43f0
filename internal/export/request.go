package export

import (
	"fmt"

	"github.com/SbTchR/TimelineGenerator/internal/document"
	"github.com/SbTchR/TimelineGenerator/internal/engine"
	"github.com/SbTchR/TimelineGenerator/internal/pagination"
)

// NewRequest lays out doc and fills the capture settings from the
// document: its export scale and page orientation.
func NewRequest(surfaceID string, doc *document.Document, opts engine.Options, format Format) (Request, error) {
	l, err := engine.ComputeLayout(doc, opts)
	if err != nil {
		return Request{}, fmt.Errorf("layout: %w", err)
	}
	return Request{
		SurfaceID:   surfaceID,
		Layout:      l,
		Format:      format,
		Scale:       doc.ExportScale,
		Orientation: pagination.Orientation(doc.Orientation),
	}, nil
}
