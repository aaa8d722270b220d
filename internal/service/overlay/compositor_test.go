package overlay

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"curator/internal/model"
	"curator/internal/storage"
)

func newSource(t *testing.T) gocv.Mat {
	t.Helper()
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 80, 120, 0), 200, 300, gocv.MatTypeCV8UC3)
	if src.Empty() {
		t.Fatal("Failed to create source image")
	}
	return src
}

var geometry = model.EllipseGeometry{CenterX: 150, CenterY: 100, AxisX: 60, AxisY: 30, Angle: 30}

func TestOverlayFilename(t *testing.T) {
	if got := OverlayFilename("12_HC.png"); got != "overlay_12_HC.png" {
		t.Errorf("OverlayFilename = %q, expected overlay_12_HC.png", got)
	}
}

func TestCompose_SameDimensions(t *testing.T) {
	src := newSource(t)
	defer src.Close()

	out, err := NewCompositor(storage.NewFileStore()).Compose(src, geometry)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	defer out.Close()

	if out.Rows() != src.Rows() || out.Cols() != src.Cols() || out.Type() != src.Type() {
		t.Errorf("Expected %dx%d type %v, got %dx%d type %v",
			src.Rows(), src.Cols(), src.Type(), out.Rows(), out.Cols(), out.Type())
	}
}

func TestCompose_Deterministic(t *testing.T) {
	src := newSource(t)
	defer src.Close()
	compositor := NewCompositor(storage.NewFileStore())

	first, err := compositor.Compose(src, geometry)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	defer first.Close()

	second, err := compositor.Compose(src, geometry)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	defer second.Close()

	if !bytes.Equal(first.ToBytes(), second.ToBytes()) {
		t.Error("Expected byte-identical output for identical inputs")
	}
}

func TestCompose_OnlyStrokeNeighborhoodChanges(t *testing.T) {
	src := newSource(t)
	defer src.Close()
	srcBytes := src.ToBytes()

	out, err := NewCompositor(storage.NewFileStore()).Compose(src, geometry)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	defer out.Close()

	if !bytes.Equal(src.ToBytes(), srcBytes) {
		t.Fatal("Compose modified its source image")
	}

	outBytes := out.ToBytes()
	changed := 0
	rad := geometry.Angle * math.Pi / 180
	for y := 0; y < src.Rows(); y++ {
		for x := 0; x < src.Cols(); x++ {
			i := (y*src.Cols() + x) * 3
			if bytes.Equal(outBytes[i:i+3], srcBytes[i:i+3]) {
				continue
			}
			changed++

			// Distance from the ellipse boundary in normalized radius units.
			dx, dy := float64(x)-geometry.CenterX, float64(y)-geometry.CenterY
			u := dx*math.Cos(rad) + dy*math.Sin(rad)
			v := -dx*math.Sin(rad) + dy*math.Cos(rad)
			r := math.Sqrt(u*u/(geometry.AxisX*geometry.AxisX) + v*v/(geometry.AxisY*geometry.AxisY))
			if r < 0.85 || r > 1.15 {
				t.Fatalf("Pixel (%d, %d) changed at normalized radius %.2f, outside the stroke", x, y, r)
			}
		}
	}
	if changed == 0 {
		t.Error("Expected the ellipse stroke to change some pixels")
	}
}

func TestCompose_BlendWeights(t *testing.T) {
	src := newSource(t)
	defer src.Close()

	// The rightmost point of an unrotated boundary lies on the stroke.
	flat := model.EllipseGeometry{CenterX: 150, CenterY: 100, AxisX: 60, AxisY: 30}
	flatOut, err := NewCompositor(storage.NewFileStore()).Compose(src, flat)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	defer flatOut.Close()

	px := flatOut.GetVecbAt(100, 210)
	// BGR source (40, 80, 120) blended 0.3 with green (0, 255, 0) at 0.7.
	want := []uint8{12, 203, 36}
	for i := range want {
		if d := int(px[i]) - int(want[i]); d < -1 || d > 1 {
			t.Errorf("channel %d = %d, expected %d", i, px[i], want[i])
		}
	}
}

func TestCompose_EmptySource(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	if _, err := NewCompositor(storage.NewFileStore()).Compose(empty, geometry); err == nil {
		t.Error("Expected an error for an empty source")
	}
}

func TestCompose_InvalidGeometry(t *testing.T) {
	src := newSource(t)
	defer src.Close()

	bad := geometry
	bad.AxisX = -5
	out, err := NewCompositor(storage.NewFileStore()).Compose(src, bad)
	defer out.Close()
	if err == nil {
		t.Error("Expected an error for a negative axis")
	}
}

func TestComposeFile(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewFileStore()

	src := newSource(t)
	defer src.Close()
	srcPath := filepath.Join(dir, "3_HC.png")
	if err := store.WriteImage(srcPath, src); err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}

	dstPath := filepath.Join(dir, "out", OverlayFilename("3_HC.png"))
	if err := NewCompositor(store).ComposeFile(srcPath, dstPath, geometry); err != nil {
		t.Fatalf("ComposeFile failed: %v", err)
	}

	written, err := store.ReadImage(dstPath)
	if err != nil {
		t.Fatalf("Overlay not readable: %v", err)
	}
	defer written.Close()

	if written.Rows() != src.Rows() || written.Cols() != src.Cols() {
		t.Errorf("Expected %dx%d overlay, got %dx%d", src.Cols(), src.Rows(), written.Cols(), written.Rows())
	}
}
