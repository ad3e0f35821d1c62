package depth

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/viamdensify/mvs-depth-core/config"
)

func newFullDepthData(w, h int, depthVal float64) *DepthData {
	dd := NewDepthData(1, nil)
	dd.DepthMap = NewScalarMap(w, h)
	dd.NormalMap = NewNormalMap(w, h)
	dd.ConfMap = NewScalarMap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dd.DepthMap.Set(x, y, depthVal)
			dd.NormalMap.Set(x, y, r3.Vector{X: 0, Y: 0, Z: -1})
			dd.ConfMap.Set(x, y, 1)
		}
	}
	return dd
}

func TestRemoveSmallSegmentsKeepsLargeComponent(t *testing.T) {
	dd := newFullDepthData(20, 20, 2.0)
	opts := config.Default()
	opts.NSpeckleSize = 16

	RemoveSmallSegments(dd, opts)
	test.That(t, dd.DepthMap.At(10, 10), test.ShouldEqual, 2.0)
}

func TestRemoveSmallSegmentsClearsSmallComponent(t *testing.T) {
	dd := NewDepthData(1, nil)
	w, h := 10, 10
	dd.DepthMap = NewScalarMap(w, h)
	dd.NormalMap = NewNormalMap(w, h)
	dd.ConfMap = NewScalarMap(w, h)

	// A 2x2 isolated island far from any other valid pixel.
	for _, p := range [][2]int{{5, 5}, {6, 5}, {5, 6}, {6, 6}} {
		dd.DepthMap.Set(p[0], p[1], 2.0)
		dd.ConfMap.Set(p[0], p[1], 1)
	}
	opts := config.Default()
	opts.NSpeckleSize = 16

	RemoveSmallSegments(dd, opts)
	test.That(t, dd.DepthMap.At(5, 5), test.ShouldEqual, 0.0)
	test.That(t, dd.ConfMap.At(5, 5), test.ShouldEqual, 0.0)
}

func TestRemoveSmallSegmentsIsIdempotent(t *testing.T) {
	dd := newFullDepthData(20, 20, 2.0)
	opts := config.Default()

	RemoveSmallSegments(dd, opts)
	snapshot := append([]float64(nil), dd.DepthMap.data...)

	RemoveSmallSegments(dd, opts)
	test.That(t, dd.DepthMap.data, test.ShouldResemble, snapshot)
}

func TestGapInterpolationFillsBoundedGap(t *testing.T) {
	dd := NewDepthData(1, nil)
	w, h := 10, 1
	dd.DepthMap = NewScalarMap(w, h)
	dd.NormalMap = NewNormalMap(w, h)
	dd.ConfMap = NewScalarMap(w, h)

	dd.DepthMap.Set(2, 0, 2.0)
	dd.NormalMap.Set(2, 0, r3.Vector{X: 0, Y: 0, Z: -1})
	dd.ConfMap.Set(2, 0, 0.8)
	dd.DepthMap.Set(6, 0, 4.0)
	dd.NormalMap.Set(6, 0, r3.Vector{X: 0, Y: 0, Z: -1})
	dd.ConfMap.Set(6, 0, 0.6)

	opts := config.Default()
	opts.NIpolGapSize = 7
	GapInterpolation(dd, opts)

	test.That(t, dd.DepthMap.At(4, 0), test.ShouldAlmostEqual, 3.0, 1e-9)
	test.That(t, dd.ConfMap.At(4, 0), test.ShouldAlmostEqual, 0.6, 1e-9)
}

func TestGapInterpolationLeavesTooLongGap(t *testing.T) {
	dd := NewDepthData(1, nil)
	w, h := 20, 1
	dd.DepthMap = NewScalarMap(w, h)
	dd.NormalMap = NewNormalMap(w, h)
	dd.ConfMap = NewScalarMap(w, h)

	dd.DepthMap.Set(0, 0, 2.0)
	dd.DepthMap.Set(19, 0, 4.0)

	opts := config.Default()
	opts.NIpolGapSize = 3 // the gap here is 18 pixels, far longer than the cap

	GapInterpolation(dd, opts)
	test.That(t, dd.DepthMap.At(10, 0), test.ShouldEqual, 0.0)
}

func TestGapInterpolationIsIdempotentOnFullyValidMap(t *testing.T) {
	dd := newFullDepthData(10, 10, 2.0)
	opts := config.Default()

	GapInterpolation(dd, opts)
	snapshot := append([]float64(nil), dd.DepthMap.data...)

	GapInterpolation(dd, opts)
	test.That(t, dd.DepthMap.data, test.ShouldResemble, snapshot)
}
