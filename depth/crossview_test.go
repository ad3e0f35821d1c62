package depth

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/rimage/transform"
	"github.com/viamdensify/mvs-depth-core/spatialmath"
)

func fronto(width, height int, cx float64) *geometry.Camera {
	intr := transform.PinholeCameraIntrinsics{Width: width, Height: height, Fx: 50, Fy: 50, Ppx: float64(width) / 2, Ppy: float64(height) / 2}
	return geometry.NewCamera(intr, spatialmath.NewIdentityRotationMatrix(), r3.Vector{X: cx, Y: 0, Z: 0})
}

func refDepthData(w, h int, depthVal float64, cam *geometry.Camera) *DepthData {
	dd := NewDepthData(1, nil)
	dd.DMin, dd.DMax = 1, 10
	dd.DepthMap = NewScalarMap(w, h)
	dd.NormalMap = NewNormalMap(w, h)
	dd.ConfMap = NewScalarMap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dd.DepthMap.Set(x, y, depthVal)
			dd.ConfMap.Set(x, y, 1)
		}
	}
	dd.Views = []ViewData{{Camera: cam}}
	return dd
}

// agreeingNeighborMap builds a neighbor depth map that, for every pixel,
// reports the same world depth as ref when ref's (x,y,depth) reprojects
// into it — i.e. a neighbor camera observing the identical fronto-parallel
// plane.
func agreeingNeighborMap(w, h int, depthVal float64) *ScalarMap {
	m := NewScalarMap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.Set(x, y, depthVal)
		}
	}
	return m
}

func TestCrossViewFilterStrictKeepsAgreeingPixel(t *testing.T) {
	w, h := 20, 20
	ref := fronto(w, h, 0)
	dd := refDepthData(w, h, 3.0, ref)

	nbr := fronto(w, h, 0.1)
	dd.Views = append(dd.Views, ViewData{Camera: nbr, Image: &Image{ID: 2}})
	dd.NeighborMaps[2] = agreeingNeighborMap(w, h, 3.0)

	opts := config.Default()
	opts.BFilterAdjust = false
	opts.NMinViewsFilter = 1

	CrossViewFilter(dd, opts)
	test.That(t, dd.DepthMap.At(10, 10), test.ShouldEqual, 3.0)
}

func TestCrossViewFilterStrictClearsDisagreeingPixel(t *testing.T) {
	w, h := 20, 20
	ref := fronto(w, h, 0)
	dd := refDepthData(w, h, 3.0, ref)

	nbr := fronto(w, h, 0.1)
	dd.Views = append(dd.Views, ViewData{Camera: nbr, Image: &Image{ID: 2}})
	dd.NeighborMaps[2] = agreeingNeighborMap(w, h, 10.0) // wildly different depth

	opts := config.Default()
	opts.BFilterAdjust = false
	opts.NMinViewsFilter = 1

	CrossViewFilter(dd, opts)
	test.That(t, dd.DepthMap.At(10, 10), test.ShouldEqual, 0.0)
}

func TestCrossViewFilterAdjustReplacesDepthWithAgreeingAverage(t *testing.T) {
	w, h := 20, 20
	ref := fronto(w, h, 0)
	dd := refDepthData(w, h, 3.0, ref)

	nbr := fronto(w, h, 0.1)
	dd.Views = append(dd.Views, ViewData{Camera: nbr, Image: &Image{ID: 2}})
	dd.NeighborMaps[2] = agreeingNeighborMap(w, h, 3.0)

	opts := config.Default()
	opts.BFilterAdjust = true
	opts.NMinViewsFilterAdjust = 1

	CrossViewFilter(dd, opts)
	test.That(t, dd.DepthMap.At(10, 10), test.ShouldEqual, 3.0)
}

func TestCrossViewFilterNoNeighborMapsIsNoOp(t *testing.T) {
	w, h := 10, 10
	ref := fronto(w, h, 0)
	dd := refDepthData(w, h, 3.0, ref)
	snapshot := append([]float64(nil), dd.DepthMap.data...)

	CrossViewFilter(dd, config.Default())
	test.That(t, dd.DepthMap.data, test.ShouldResemble, snapshot)
}
