package geometry

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/viamdensify/mvs-depth-core/rimage/transform"
	"github.com/viamdensify/mvs-depth-core/spatialmath"
)

func TestHomographyMapsOnPlanePointExactly(t *testing.T) {
	intr := transform.PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 500, Ppx: 320, Ppy: 240}
	identity := spatialmath.NewIdentityRotationMatrix()
	ref := NewCamera(intr, identity, r3.Vector{X: 0, Y: 0, Z: 0})
	tgt := NewCamera(intr, identity, r3.Vector{X: 0.5, Y: 0, Z: 0})

	worldPoint := r3.Vector{X: 0.1, Y: 0.05, Z: 3.0}
	pCam := ref.WorldToCamera(worldPoint)
	normal := r3.Vector{X: 0, Y: 0, Z: 1}

	h, err := Homography(ref, tgt, pCam, normal)
	test.That(t, err, test.ShouldBeNil)

	rx, ry, _ := ref.WorldToImage(worldPoint)
	wx, wy := WarpPoint(h, rx, ry)

	tx, ty, _ := tgt.WorldToImage(worldPoint)
	test.That(t, wx, test.ShouldAlmostEqual, tx, 1e-6)
	test.That(t, wy, test.ShouldAlmostEqual, ty, 1e-6)
}

func TestHomographyRejectsDegeneratePlane(t *testing.T) {
	intr := transform.PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 500, Ppx: 320, Ppy: 240}
	identity := spatialmath.NewIdentityRotationMatrix()
	ref := NewCamera(intr, identity, r3.Vector{X: 0, Y: 0, Z: 0})
	tgt := NewCamera(intr, identity, r3.Vector{X: 0.5, Y: 0, Z: 0})

	// normal perpendicular to p puts the point in its own tangent plane: n.p == 0.
	p := r3.Vector{X: 1, Y: 0, Z: 0}
	n := r3.Vector{X: 0, Y: 1, Z: 0}

	_, err := Homography(ref, tgt, p, n)
	test.That(t, err, test.ShouldNotBeNil)
}
