package fusion

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/viamdensify/mvs-depth-core/depth"
	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/rimage/transform"
	"github.com/viamdensify/mvs-depth-core/spatialmath"
)

func mergeTestCamera(cx float64) *geometry.Camera {
	intr := transform.PinholeCameraIntrinsics{Width: 10, Height: 10, Fx: 50, Fy: 50, Ppx: 5, Ppy: 5}
	return geometry.NewCamera(intr, spatialmath.NewIdentityRotationMatrix(), r3.Vector{X: cx, Y: 0, Z: 0})
}

func mergeTestDepthData(imageID int, cam *geometry.Camera) *depth.DepthData {
	dd := depth.NewDepthData(imageID, nil)
	dd.DepthMap = depth.NewScalarMap(10, 10)
	dd.Views = []depth.ViewData{{Camera: cam}}
	return dd
}

func TestMergeDepthMapsUnionsValidPixelsOnly(t *testing.T) {
	dd := mergeTestDepthData(1, mergeTestCamera(0))
	dd.DepthMap.Set(2, 2, 3.0)
	dd.DepthMap.Set(4, 4, 5.0)
	// (0,0) left at 0 (invalid) and must not produce a point.

	cloud, err := MergeDepthMaps([]*depth.DepthData{dd})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 2)
	test.That(t, len(cloud.Views), test.ShouldEqual, 2)
	test.That(t, cloud.Views[0], test.ShouldResemble, []uint32{1})
	test.That(t, cloud.Weights[0], test.ShouldResemble, []float64{1})
}

func TestMergeDepthMapsTagsEachPointWithItsSourceImage(t *testing.T) {
	dd1 := mergeTestDepthData(1, mergeTestCamera(0))
	dd1.DepthMap.Set(1, 1, 2.0)

	dd2 := mergeTestDepthData(2, mergeTestCamera(1))
	dd2.DepthMap.Set(3, 3, 2.0)

	cloud, err := MergeDepthMaps([]*depth.DepthData{dd1, dd2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 2)
	test.That(t, cloud.Views[0], test.ShouldResemble, []uint32{1})
	test.That(t, cloud.Views[1], test.ShouldResemble, []uint32{2})
}

func TestMergeDepthMapsFailsWithoutReferenceCamera(t *testing.T) {
	dd := depth.NewDepthData(1, nil)
	dd.DepthMap = depth.NewScalarMap(4, 4)
	// dd.Views left empty: Reference() returns the zero ViewData, Camera == nil.

	_, err := MergeDepthMaps([]*depth.DepthData{dd})
	test.That(t, err, test.ShouldNotBeNil)
}
