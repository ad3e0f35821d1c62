package geometry

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestSphericalRoundTrip(t *testing.T) {
	normals := []r3.Vector{
		{X: 0, Y: 0, Z: 1},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		r3.Vector{X: 0.3, Y: -0.5, Z: 0.8}.Normalize(),
	}
	for _, n := range normals {
		az, el := NormalToSpherical(n)
		back := SphericalToNormal(az, el)
		test.That(t, back.X, test.ShouldAlmostEqual, n.X, 1e-9)
		test.That(t, back.Y, test.ShouldAlmostEqual, n.Y, 1e-9)
		test.That(t, back.Z, test.ShouldAlmostEqual, n.Z, 1e-9)
	}
}

func TestLerpNormalEndpoints(t *testing.T) {
	n1 := r3.Vector{X: 1, Y: 0, Z: 0}
	n2 := r3.Vector{X: 0, Y: 1, Z: 0}

	start := LerpNormal(n1, n2, 0)
	test.That(t, start.X, test.ShouldAlmostEqual, n1.X, 1e-9)
	test.That(t, start.Y, test.ShouldAlmostEqual, n1.Y, 1e-9)

	end := LerpNormal(n1, n2, 1)
	test.That(t, end.X, test.ShouldAlmostEqual, n2.X, 1e-9)
	test.That(t, end.Y, test.ShouldAlmostEqual, n2.Y, 1e-9)
}

func TestLerpNormalStaysUnit(t *testing.T) {
	n1 := r3.Vector{X: 1, Y: 0, Z: 0}
	n2 := r3.Vector{X: 0, Y: 0, Z: 1}
	mid := LerpNormal(n1, n2, 0.5)
	test.That(t, mid.Norm(), test.ShouldAlmostEqual, 1.0, 1e-9)
}
