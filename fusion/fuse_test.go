package fusion

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/depth"
	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/rimage/transform"
	"github.com/viamdensify/mvs-depth-core/spatialmath"
)

func fuseTestCamera(cx float64) *geometry.Camera {
	intr := transform.PinholeCameraIntrinsics{Width: 20, Height: 20, Fx: 50, Fy: 50, Ppx: 10, Ppy: 10}
	return geometry.NewCamera(intr, spatialmath.NewIdentityRotationMatrix(), r3.Vector{X: cx, Y: 0, Z: 0})
}

func fuseTestDepthData(imageID int, cam *geometry.Camera) *depth.DepthData {
	dd := depth.NewDepthData(imageID, nil)
	dd.DepthMap = depth.NewScalarMap(20, 20)
	dd.ConfMap = depth.NewScalarMap(20, 20)
	dd.Views = []depth.ViewData{{Camera: cam}}
	return dd
}

func TestFuseDepthMapsMergesAgreeingObservers(t *testing.T) {
	refCam := fuseTestCamera(0)
	otherCam := fuseTestCamera(0.5)

	ref := fuseTestDepthData(1, refCam)
	ref.DepthMap.Set(10, 10, 3.0)
	ref.ConfMap.Set(10, 10, 0.9)

	world := refCam.ImageToWorld(10.5, 10.5, 3.0)
	ox, oy, oExpected := otherCam.WorldToImage(world)
	oix, oiy := int(ox), int(oy)

	other := fuseTestDepthData(2, otherCam)
	other.DepthMap.Set(oix, oiy, oExpected)
	other.ConfMap.Set(oix, oiy, 0.9)

	opts := config.Default()
	opts.NMinViewsFuse = 2

	cloud, err := FuseDepthMaps([]*depth.DepthData{ref, other}, opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 1)
	test.That(t, len(cloud.Views[0]), test.ShouldEqual, 2)
}

func TestFuseDepthMapsDropsCandidateBelowMinViews(t *testing.T) {
	ref := fuseTestDepthData(1, fuseTestCamera(0))
	ref.DepthMap.Set(10, 10, 3.0)
	ref.ConfMap.Set(10, 10, 0.9)

	opts := config.Default()
	opts.NMinViewsFuse = 2

	cloud, err := FuseDepthMaps([]*depth.DepthData{ref}, opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 0)
}

func TestFuseDepthMapsDropsCandidateOnFreeSpaceViolation(t *testing.T) {
	refCam := fuseTestCamera(0)
	otherCam := fuseTestCamera(0.5)

	ref := fuseTestDepthData(1, refCam)
	ref.DepthMap.Set(10, 10, 3.0)
	ref.ConfMap.Set(10, 10, 0.9)

	world := refCam.ImageToWorld(10.5, 10.5, 3.0)
	ox, oy, oExpected := otherCam.WorldToImage(world)
	oix, oiy := int(ox), int(oy)

	other := fuseTestDepthData(2, otherCam)
	// Reports a much nearer surface at the reprojected pixel: other sees
	// empty space where ref's candidate claims one, a free-space violation.
	other.DepthMap.Set(oix, oiy, oExpected*0.2)
	other.ConfMap.Set(oix, oiy, 0.9)

	opts := config.Default()
	opts.NMinViewsFuse = 1

	cloud, err := FuseDepthMaps([]*depth.DepthData{ref, other}, opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 0)
}

func TestFuseDepthMapsFailsWithoutReferenceCamera(t *testing.T) {
	dd := depth.NewDepthData(1, nil)
	dd.DepthMap = depth.NewScalarMap(4, 4)
	dd.ConfMap = depth.NewScalarMap(4, 4)

	_, err := FuseDepthMaps([]*depth.DepthData{dd}, config.Default())
	test.That(t, err, test.ShouldNotBeNil)
}
