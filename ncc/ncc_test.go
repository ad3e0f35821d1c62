package ncc

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestScoreIdenticalPatchesIsZero(t *testing.T) {
	patch := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90}
	test.That(t, Score(patch, patch), test.ShouldAlmostEqual, 0.0, 1e-9)
}

func TestScoreIsInvariantToAffineBrightness(t *testing.T) {
	a := []float64{10, 20, 30, 40, 50}
	b := make([]float64, len(a))
	for i, v := range a {
		b[i] = 2*v + 5
	}
	test.That(t, Score(a, b), test.ShouldAlmostEqual, 0.0, 1e-9)
}

func TestScoreConstantPatchIsWorstCase(t *testing.T) {
	constant := []float64{5, 5, 5, 5}
	varying := []float64{1, 2, 3, 4}
	test.That(t, Score(constant, varying), test.ShouldAlmostEqual, 2.0, 1e-9)
}

func TestScoreMismatchedLengthIsWorstCase(t *testing.T) {
	test.That(t, Score([]float64{1, 2}, []float64{1, 2, 3}), test.ShouldAlmostEqual, 2.0, 1e-9)
}

func checkerboard(size int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			g.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return g
}

func TestBilinearOutOfBoundsFails(t *testing.T) {
	g := checkerboard(8)
	_, ok := Bilinear(g, -1, -1)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestSamplePatchFailsNearEdge(t *testing.T) {
	g := checkerboard(8)
	_, ok := SamplePatch(g, 0, 0, 2)
	test.That(t, ok, test.ShouldBeFalse)

	_, ok = SamplePatch(g, 4, 4, 2)
	test.That(t, ok, test.ShouldBeTrue)
}

func TestWarpedPatchScoreIdentityHomographyMatchesSelf(t *testing.T) {
	g := checkerboard(16)
	h := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	score, ok := WarpedPatchScore(g, g, 8, 8, h, 2)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, score, test.ShouldAlmostEqual, 0.0, 1e-9)
}
