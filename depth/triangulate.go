package depth

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
)

// imageSeed carries the projected image-plane position of a seed along
// with its world position and depth.
type imageSeed struct {
	x, y, depth float64
	world       r3.Vector
}

// TriangulateInit produces a dense depth and normal field by projecting
// seeds into the reference and, for every pixel, interpolating linearly
// from its three nearest seeds in the image plane (spec §4.2): per-triangle
// plane yields both depth and a surface normal.
//
// True Delaunay triangulation has no grounding in the example pack
// (vision/delaunay carries only a bare Point type, no triangulator); this
// nearest-seed barycentric interpolation is the closest available
// substitute and is noted as such in DESIGN.md. Populates dMin/dMax as the
// envelope of seed depths +/-10%.
func TriangulateInit(dd *DepthData, ref ViewData, seeds []SparseSeed) error {
	w, h := dd.DepthMap.Width(), dd.DepthMap.Height()
	projected := make([]imageSeed, 0, len(seeds))
	min, max := math.Inf(1), math.Inf(-1)
	for _, s := range seeds {
		px, py, d := ref.Camera.WorldToImage(s.Position)
		if d <= 0 || px < 0 || py < 0 || px >= float64(w) || py >= float64(h) {
			continue
		}
		projected = append(projected, imageSeed{x: px, y: py, depth: d, world: s.Position})
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	if len(projected) < 3 {
		return nil
	}
	dd.DMin = 0.9 * min
	dd.DMax = 1.1 * max

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tri := nearestThree(projected, float64(x), float64(y))
			depth, normal, ok := barycentricPlane(tri, float64(x), float64(y), ref)
			if !ok {
				continue
			}
			dd.DepthMap.Set(x, y, depth)
			dd.NormalMap.Set(x, y, normal)
			dd.ConfMap.Set(x, y, 1)
		}
	}
	return nil
}

func nearestThree(seeds []imageSeed, x, y float64) [3]imageSeed {
	type distSeed struct {
		d float64
		s imageSeed
	}
	ds := make([]distSeed, len(seeds))
	for i, s := range seeds {
		dx, dy := s.x-x, s.y-y
		ds[i] = distSeed{dx*dx + dy*dy, s}
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].d < ds[j].d })

	var out [3]imageSeed
	for i := 0; i < 3 && i < len(ds); i++ {
		out[i] = ds[i].s
	}
	return out
}

// barycentricPlane fits the plane through tri's three world points and
// evaluates it at (x,y) via the triangle's image-plane barycentric
// weights, returning the interpolated depth and the plane's front-facing
// unit normal in the reference camera frame.
func barycentricPlane(tri [3]imageSeed, x, y float64, ref ViewData) (float64, r3.Vector, bool) {
	w0, w1, w2, ok := barycentricWeights(tri, x, y)
	if !ok {
		return 0, r3.Vector{}, false
	}
	depth := w0*tri[0].depth + w1*tri[1].depth + w2*tri[2].depth
	if depth <= 0 {
		return 0, r3.Vector{}, false
	}

	c0 := ref.Camera.WorldToCamera(tri[0].world)
	c1 := ref.Camera.WorldToCamera(tri[1].world)
	c2 := ref.Camera.WorldToCamera(tri[2].world)
	normal := c1.Sub(c0).Cross(c2.Sub(c0))
	if normal.Norm() < 1e-9 {
		return 0, r3.Vector{}, false
	}
	normal = normal.Normalize()
	if normal.Z > 0 {
		normal = normal.Mul(-1)
	}
	return depth, normal, true
}

func barycentricWeights(tri [3]imageSeed, x, y float64) (float64, float64, float64, bool) {
	x0, y0 := tri[0].x, tri[0].y
	x1, y1 := tri[1].x, tri[1].y
	x2, y2 := tri[2].x, tri[2].y
	det := (x1-x0)*(y2-y0) - (x2-x0)*(y1-y0)
	if math.Abs(det) < 1e-9 {
		return 0, 0, 0, false
	}
	w1 := ((x-x0)*(y2-y0) - (x2-x0)*(y-y0)) / det
	w2 := ((x1-x0)*(y-y0) - (x-x0)*(y1-y0)) / det
	w0 := 1 - w1 - w2
	return w0, w1, w2, true
}
