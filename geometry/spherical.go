package geometry

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/viamdensify/mvs-depth-core/utils"
)

// NormalToSpherical converts a unit normal into (azimuth, elevation)
// angles. GapInterpolation interpolates normals through this
// parameterization rather than a component-wise lerp so the result stays
// unit length without renormalizing away from the true angular midpoint.
func NormalToSpherical(n r3.Vector) (azimuth, elevation float64) {
	azimuth = math.Atan2(n.Y, n.X)
	elevation = math.Asin(utils.ClampF64(n.Z, -1, 1))
	return azimuth, elevation
}

// SphericalToNormal is the inverse of NormalToSpherical.
func SphericalToNormal(azimuth, elevation float64) r3.Vector {
	ce := math.Cos(elevation)
	return r3.Vector{
		X: ce * math.Cos(azimuth),
		Y: ce * math.Sin(azimuth),
		Z: math.Sin(elevation),
	}.Normalize()
}

// LerpNormal interpolates between two unit normals at t in [0,1] via their
// spherical angles, taking the shorter way around the azimuth wraparound.
func LerpNormal(n1, n2 r3.Vector, t float64) r3.Vector {
	az1, el1 := NormalToSpherical(n1)
	az2, el2 := NormalToSpherical(n2)
	for az2-az1 > math.Pi {
		az2 -= 2 * math.Pi
	}
	for az2-az1 < -math.Pi {
		az2 += 2 * math.Pi
	}
	return SphericalToNormal(az1+(az2-az1)*t, el1+(el2-el1)*t)
}
