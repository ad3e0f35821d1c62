// Package ncc implements zero-mean normalized cross-correlation over
// bilinearly-sampled image patches, the photometric score PatchMatch uses
// to rank depth/normal hypotheses (spec §4.3). Patch statistics are
// computed with gonum/stat the way rimage/filters.go reaches for gonum/mat
// rather than hand-rolling matrix math.
package ncc

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/viamdensify/mvs-depth-core/geometry"
)

// Bilinear samples a grayscale image at fractional coordinates (x,y),
// returning false when any of the four surrounding pixels fall outside
// the image bounds.
func Bilinear(g *image.Gray, x, y float64) (float64, bool) {
	b := g.Bounds()
	x0, y0 := math.Floor(x), math.Floor(y)
	x1, y1 := x0+1, y0+1
	if x0 < float64(b.Min.X) || y0 < float64(b.Min.Y) ||
		x1 >= float64(b.Max.X) || y1 >= float64(b.Max.Y) {
		return 0, false
	}
	fx, fy := x-x0, y-y0

	v00 := float64(g.GrayAt(int(x0), int(y0)).Y)
	v10 := float64(g.GrayAt(int(x1), int(y0)).Y)
	v01 := float64(g.GrayAt(int(x0), int(y1)).Y)
	v11 := float64(g.GrayAt(int(x1), int(y1)).Y)

	top := v00*(1-fx) + v10*fx
	bot := v01*(1-fx) + v11*fx
	return top*(1-fy) + bot*fy, true
}

// SamplePatch gathers the (2*radius+1)^2 intensities around (cx,cy),
// returning false if any sample falls outside the image.
func SamplePatch(g *image.Gray, cx, cy float64, radius int) ([]float64, bool) {
	patch := make([]float64, 0, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			v, ok := Bilinear(g, cx+float64(dx), cy+float64(dy))
			if !ok {
				return nil, false
			}
			patch = append(patch, v)
		}
	}
	return patch, true
}

// Score returns the ZNCC distance between two equal-length patches: 0 for
// identical patches (up to an affine brightness transform), 2 for
// perfectly anti-correlated ones. This is 1 minus the Pearson correlation
// computed by gonum/stat, which is exactly zero-mean normalized
// cross-correlation when no weights are supplied.
func Score(a, b []float64) float64 {
	if len(a) < 2 || len(a) != len(b) {
		return 2
	}
	corr := stat.Correlation(a, b, nil)
	if math.IsNaN(corr) {
		// One of the patches is constant (zero variance): undefined
		// correlation, treated as the worst possible score.
		return 2
	}
	return 1 - corr
}

// WarpedPatchScore computes the ZNCC score between the reference patch
// centered at (px,py) and the corresponding patch in tgt, obtained by
// mapping every reference sample through the plane-induced homography h.
// Returns false when either patch would sample outside its image.
func WarpedPatchScore(ref, tgt *image.Gray, px, py float64, h *mat.Dense, radius int) (float64, bool) {
	refPatch := make([]float64, 0, (2*radius+1)*(2*radius+1))
	tgtPatch := make([]float64, 0, cap(refPatch))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			rx, ry := px+float64(dx), py+float64(dy)
			rv, ok := Bilinear(ref, rx, ry)
			if !ok {
				return 2, false
			}
			wx, wy := geometry.WarpPoint(h, rx, ry)
			tv, ok := Bilinear(tgt, wx, wy)
			if !ok {
				return 2, false
			}
			refPatch = append(refPatch, rv)
			tgtPatch = append(tgtPatch, tv)
		}
	}
	return Score(refPatch, tgtPatch), true
}
