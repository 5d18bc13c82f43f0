package export

import (
	"context"
	"image"

	"github.com/SbTchR/TimelineGenerator/internal/engine"
)

// MinScale is the smallest capture scale accepted.
const MinScale = 0.5

// CaptureOptions control a raster capture of the poster surface.
type CaptureOptions struct {
	// Scale is the device pixel ratio; values below MinScale are raised.
	Scale float64
	// Background overrides the layout background when set.
	Background string
}

// EffectiveScale returns the scale actually used for the capture.
func (o CaptureOptions) EffectiveScale() float64 {
	if o.Scale < MinScale || o.Scale != o.Scale {
		return MinScale
	}
	return o.Scale
}

// Capturer rasterises a laid-out poster. The image is
// ceil(Width*scale) x ceil(Height*scale) pixels with its origin at (0, 0).
type Capturer interface {
	Capture(ctx context.Context, l *engine.Layout, opts CaptureOptions) (image.Image, error)
}
