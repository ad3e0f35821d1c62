package geometry

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/viamdensify/mvs-depth-core/rimage/transform"
	"github.com/viamdensify/mvs-depth-core/spatialmath"
)

func testCamera(t *testing.T) *Camera {
	t.Helper()
	intr := transform.PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 500, Ppx: 320, Ppy: 240}
	return NewCamera(intr, spatialmath.NewIdentityRotationMatrix(), r3.Vector{X: 0, Y: 0, Z: 0})
}

func TestWorldToImageRoundTrip(t *testing.T) {
	cam := testCamera(t)
	world := r3.Vector{X: 0.2, Y: -0.1, Z: 2.5}

	x, y, depth := cam.WorldToImage(world)
	test.That(t, depth, test.ShouldAlmostEqual, 2.5, 1e-9)

	back := cam.ImageToWorld(x, y, depth)
	test.That(t, back.X, test.ShouldAlmostEqual, world.X, 1e-9)
	test.That(t, back.Y, test.ShouldAlmostEqual, world.Y, 1e-9)
	test.That(t, back.Z, test.ShouldAlmostEqual, world.Z, 1e-9)
}

func TestScaledPreservesPhysicalCamera(t *testing.T) {
	cam := testCamera(t)
	half := cam.Scaled(0.5)

	test.That(t, half.Width(), test.ShouldEqual, 320)
	test.That(t, half.Height(), test.ShouldEqual, 240)
	test.That(t, half.Intrinsics.Fx, test.ShouldAlmostEqual, 250.0, 1e-9)

	world := r3.Vector{X: 0.3, Y: 0.1, Z: 3}
	_, _, depth := cam.WorldToImage(world)
	_, _, depthHalf := half.WorldToImage(world)
	test.That(t, depthHalf, test.ShouldAlmostEqual, depth, 1e-9)
}

func TestScaledByOneReturnsSameCamera(t *testing.T) {
	cam := testCamera(t)
	test.That(t, cam.Scaled(1), test.ShouldEqual, cam)
}

func TestCheckValidRejectsMissingRotation(t *testing.T) {
	cam := testCamera(t)
	cam.R = nil
	err := cam.CheckValid()
	test.That(t, err, test.ShouldNotBeNil)
}
