package annotation

import (
	"fmt"

	"gocv.io/x/gocv"

	"curator/internal/model"
	"curator/internal/storage"
)

const (
	// BinaryThreshold splits mask pixels into background and foreground.
	BinaryThreshold = 127
	// MinEllipsePoints is the fewest contour points an ellipse fit accepts.
	MinEllipsePoints = 5
)

// Extractor fits an ellipse to the foreground of an annotation mask.
type Extractor struct {
	store storage.Store
}

// NewExtractor creates an Extractor that reads masks through store.
func NewExtractor(store storage.Store) *Extractor {
	return &Extractor{store: store}
}

// FitFile reads the mask at path and fits it.
func (e *Extractor) FitFile(path string) (model.EllipseGeometry, error) {
	mask, err := e.store.ReadMask(path)
	if err != nil {
		return model.EllipseGeometry{}, err
	}
	defer mask.Close()

	return e.Fit(mask)
}

// Fit binarizes the mask, takes the external contour with the largest area
// and fits an ellipse through its points. Axes are returned as semi-axes.
func (e *Extractor) Fit(mask gocv.Mat) (model.EllipseGeometry, error) {
	if mask.Empty() {
		return model.EllipseGeometry{}, fmt.Errorf("%w: empty mask", model.ErrUnreadableImage)
	}

	gray := mask
	if mask.Channels() > 1 {
		converted := gocv.NewMat()
		defer converted.Close()
		if err := gocv.CvtColor(mask, &converted, gocv.ColorBGRToGray); err != nil {
			return model.EllipseGeometry{}, fmt.Errorf("%w: failed to convert mask to grayscale: %v", model.ErrUnreadableImage, err)
		}
		gray = converted
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, BinaryThreshold, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return model.EllipseGeometry{}, model.ErrNoContourFound
	}

	// First contour wins on equal area.
	largest := 0
	largestArea := gocv.ContourArea(contours.At(0))
	for i := 1; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > largestArea {
			largest = i
			largestArea = area
		}
	}

	contour := contours.At(largest)
	if contour.Size() < MinEllipsePoints {
		return model.EllipseGeometry{}, fmt.Errorf("%w: largest contour has %d points, need %d",
			model.ErrInsufficientContourPoints, contour.Size(), MinEllipsePoints)
	}

	// FitEllipse reports full axis lengths, rounded to whole pixels.
	rect := gocv.FitEllipse(contour)
	return model.EllipseGeometry{
		CenterX: float64(rect.Center.X),
		CenterY: float64(rect.Center.Y),
		AxisX:   float64(rect.Width) / 2,
		AxisY:   float64(rect.Height) / 2,
		Angle:   rect.Angle,
	}, nil
}
