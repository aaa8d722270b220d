package quality

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"curator/internal/config"
	"curator/internal/model"
	"curator/internal/storage"
)

// Normalization constants. A metric at or beyond its reference scores 1.
const (
	ReferencePixels    = 800 * 600
	ReferenceSharpness = 500.0
	ReferenceContrast  = 100.0
	ReferenceNoise     = 50.0
	MedianKernel       = 3
)

// Scorer rates images from pixel statistics. Scores are a relative ranking
// signal for one dataset, not an absolute measure.
type Scorer struct {
	store   storage.Store
	weights config.QualityWeights
}

// NewScorer creates a Scorer.
func NewScorer(store storage.Store, weights config.QualityWeights) *Scorer {
	return &Scorer{store: store, weights: weights}
}

// ResolutionScore is pixel count relative to 800x600, capped at 1.
func ResolutionScore(width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	return math.Min(float64(width*height)/ReferencePixels, 1)
}

// SharpnessScore maps the Laplacian variance to [0, 1].
func SharpnessScore(laplacianVariance float64) float64 {
	return unit(laplacianVariance / ReferenceSharpness)
}

// ContrastScore maps the grayscale standard deviation to [0, 1].
func ContrastScore(stdDev float64) float64 {
	return unit(stdDev / ReferenceContrast)
}

// NoiseScore maps the mean absolute deviation from a median-filtered copy to
// [0, 1]. Less deviation scores higher.
func NoiseScore(meanAbsDeviation float64) float64 {
	return 1 - unit(meanAbsDeviation/ReferenceNoise)
}

func unit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 1)
}

// Combine applies the configured weights to the component scores.
func (s *Scorer) Combine(score model.QualityScore) model.QualityScore {
	w := s.weights
	score.Total = w.Resolution*score.Resolution +
		w.Sharpness*score.Sharpness +
		w.Contrast*score.Contrast +
		w.Noise*score.Noise
	return score
}

// ScoreFile reads and scores the image at path. An unreadable image scores 0.
func (s *Scorer) ScoreFile(path string) (model.QualityScore, error) {
	img, err := s.store.ReadImage(path)
	if err != nil {
		return model.QualityScore{}, err
	}
	defer img.Close()

	return s.Score(img)
}

// Score computes every component on the grayscale image and combines them.
func (s *Scorer) Score(img gocv.Mat) (model.QualityScore, error) {
	if img.Empty() {
		return model.QualityScore{}, fmt.Errorf("%w: empty image", model.ErrUnreadableImage)
	}

	gray, err := grayscale(img)
	if err != nil {
		return model.QualityScore{}, err
	}
	defer gray.Close()

	pixels := toFloats(gray.ToBytes())

	laplacian := gocv.NewMat()
	defer laplacian.Close()
	if err := gocv.Laplacian(gray, &laplacian, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault); err != nil {
		return model.QualityScore{}, fmt.Errorf("failed to compute laplacian: %w", err)
	}

	median := gocv.NewMat()
	defer median.Close()
	if err := gocv.MedianBlur(gray, &median, MedianKernel); err != nil {
		return model.QualityScore{}, fmt.Errorf("failed to median blur: %w", err)
	}

	deviation := gocv.NewMat()
	defer deviation.Close()
	if err := gocv.AbsDiff(gray, median, &deviation); err != nil {
		return model.QualityScore{}, fmt.Errorf("failed to compute noise residual: %w", err)
	}

	return s.Combine(model.QualityScore{
		Resolution: ResolutionScore(img.Cols(), img.Rows()),
		Sharpness:  SharpnessScore(stat.PopVariance(doubles(laplacian), nil)),
		Contrast:   ContrastScore(stat.PopStdDev(pixels, nil)),
		Noise:      NoiseScore(stat.Mean(toFloats(deviation.ToBytes()), nil)),
	}), nil
}

func grayscale(img gocv.Mat) (gocv.Mat, error) {
	if img.Channels() == 1 {
		return img.Clone(), nil
	}

	gray := gocv.NewMat()
	var err error
	switch img.Channels() {
	case 4:
		err = gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		err = gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}
	if err != nil {
		gray.Close()
		return gocv.NewMat(), fmt.Errorf("%w: failed to convert to grayscale: %v", model.ErrUnreadableImage, err)
	}
	return gray, nil
}

func toFloats(b []byte) []float64 {
	out := make([]float64, len(b))
	for i, v := range b {
		out[i] = float64(v)
	}
	return out
}

func doubles(m gocv.Mat) []float64 {
	out := make([]float64, 0, m.Rows()*m.Cols())
	for r := 0; r < m.Rows(); r++ {
		for c := 0; c < m.Cols(); c++ {
			out = append(out, m.GetDoubleAt(r, c))
		}
	}
	return out
}
