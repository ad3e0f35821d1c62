package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Homography computes the 3x3 projective map induced by a scene plane
// (point p, front-facing unit normal n, both expressed in the reference
// camera's frame) between the reference camera and a target camera. This
// is the warp PatchMatch uses to synthesize the target's view of the
// reference patch around p for NCC scoring (spec §4.3):
//
//	H = K_tgt * (R_rel + t_rel*n^T/d) * K_ref^-1
//
// where R_rel = R_tgt*R_ref^T, t_rel = R_tgt*(C_ref-C_tgt), and d = n.p is
// the plane's distance along its own normal from the reference origin.
func Homography(ref, tgt *Camera, p, n r3.Vector) (*mat.Dense, error) {
	d := n.Dot(p)
	if math.Abs(d) < 1e-9 {
		return nil, errors.New("geometry: degenerate plane, point lies in its own tangent plane")
	}

	rRel := tgt.R.Mul(ref.R.Transpose())
	tRel := tgt.R.MulVec(ref.C.Sub(tgt.C))

	m := mat.NewDense(3, 3, nil)
	tComp := [3]float64{tRel.X, tRel.Y, tRel.Z}
	for r := 0; r < 3; r++ {
		row := rRel.Row(r)
		m.Set(r, 0, row.X+tComp[r]*n.X/d)
		m.Set(r, 1, row.Y+tComp[r]*n.Y/d)
		m.Set(r, 2, row.Z+tComp[r]*n.Z/d)
	}

	var kRefInv mat.Dense
	if err := kRefInv.Inverse(ref.KMatrix()); err != nil {
		return nil, errors.Wrap(err, "geometry: inverting reference intrinsics")
	}

	var h mat.Dense
	h.Mul(tgt.KMatrix(), m)
	h.Mul(&h, &kRefInv)
	return &h, nil
}

// WarpPoint applies a 3x3 homography to an image-plane point, returning
// the normalized (divide-by-w) destination pixel.
func WarpPoint(h *mat.Dense, x, y float64) (float64, float64) {
	v := mat.NewVecDense(3, []float64{x, y, 1})
	var out mat.VecDense
	out.MulVec(h, v)
	w := out.AtVec(2)
	if w == 0 {
		return math.Inf(1), math.Inf(1)
	}
	return out.AtVec(0) / w, out.AtVec(1) / w
}
