package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"curator/internal/model"
	"curator/internal/storage"
)

const (
	// StrokeWidth is the ellipse outline thickness in pixels.
	StrokeWidth = 2
	// StrokeWeight and SourceWeight blend the stroked copy with the source.
	StrokeWeight = 0.7
	SourceWeight = 0.3
	// FilenamePrefix is prepended to the source filename of an overlay.
	FilenamePrefix = "overlay_"
)

// StrokeColor is pure green.
var StrokeColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// Compositor draws fitted ellipses onto source images.
type Compositor struct {
	store storage.Store
}

// NewCompositor creates a Compositor that reads and writes through store.
func NewCompositor(store storage.Store) *Compositor {
	return &Compositor{store: store}
}

// OverlayFilename returns the output filename for a source filename.
func OverlayFilename(source string) string {
	return FilenamePrefix + source
}

// Compose returns a new image of the same size and type as src with the
// ellipse outline blended in. src is not modified; the caller closes the result.
func (c *Compositor) Compose(src gocv.Mat, g model.EllipseGeometry) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), fmt.Errorf("%w: empty source image", model.ErrUnreadableImage)
	}

	stroked := src.Clone()
	defer stroked.Close()

	center := image.Pt(int(g.CenterX), int(g.CenterY))
	axes := image.Pt(int(g.AxisX), int(g.AxisY))
	if err := gocv.Ellipse(&stroked, center, axes, g.Angle, 0, 360, StrokeColor, StrokeWidth); err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to draw ellipse: %w", err)
	}

	result := gocv.NewMat()
	if err := gocv.AddWeighted(stroked, StrokeWeight, src, SourceWeight, 0, &result); err != nil {
		result.Close()
		return gocv.NewMat(), fmt.Errorf("failed to blend overlay: %w", err)
	}
	return result, nil
}

// ComposeFile reads the source at srcPath, composes the overlay and writes it to dstPath.
func (c *Compositor) ComposeFile(srcPath, dstPath string, g model.EllipseGeometry) error {
	src, err := c.store.ReadImage(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	result, err := c.Compose(src, g)
	if err != nil {
		return err
	}
	defer result.Close()

	return c.store.WriteImage(dstPath, result)
}
