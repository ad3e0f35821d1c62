package depth

import (
	"image"
	"math"
	"math/rand"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/ncc"
	"github.com/viamdensify/mvs-depth-core/utils"
)

// patchRadius is the NCC patch half-window: a 5x5 sample per comparison,
// the size rimage/filters.go's own convolution kernels default to.
const patchRadius = 2

// hypothesis is one PatchMatch plane: a depth and a front-facing unit
// normal, both expressed in the reference camera's own frame.
type hypothesis struct {
	depth  float64
	normal r3.Vector
}

// tile is a zig-zag scan order over a horizontal strip of the reference
// image: even rows left-to-right, odd rows right-to-left. Forward sweeps
// walk the order as stored and backward sweeps walk it reversed, so the
// row neighbor that propagation reads has already been visited in the
// current sweep for every row of the tile except its first.
type tile struct {
	pixels []image.Point
}

// Estimate runs the three-phase PatchMatch estimator over dd's reference
// view against its already-selected targets (spec §4.3):
//
//   - Score seeds every pixel's aggregated NCC cost from its current
//     (seeded or random) depth/normal hypothesis.
//   - Propagate & Refine alternates neighbor propagation with randomized
//     log-uniform depth / small-angle normal refinement for
//     NEstimationIters sweeps, the last NEstimationGeometricIter of which
//     add a spatial-smoothness bonus (geometric-consistency mode).
//   - Finalize discards pixels whose cost exceeds FNCCThresholdKeep and
//     inverts the survivors' cost into a confidence clamped to [0,1].
//
// dd.DepthMap/NormalMap/ConfMap are allocated if not already seeded by
// InitViews, and are mutated in place.
func Estimate(dd *DepthData, opts config.Options) error {
	ref := dd.Reference()
	targets := dd.Targets()
	if ref.Image == nil || ref.Image.Gray == nil {
		return errors.New("depth: reference view has no grayscale image loaded")
	}
	if len(targets) == 0 {
		return errors.New("depth: no target views selected")
	}
	for _, tgt := range targets {
		if tgt.Image == nil || tgt.Image.Gray == nil {
			return errors.New("depth: target view has no grayscale image loaded")
		}
	}

	w, h := ref.Image.Width(), ref.Image.Height()
	if dd.DepthMap == nil {
		dd.DepthMap = NewScalarMap(w, h)
		dd.NormalMap = NewNormalMap(w, h)
		dd.ConfMap = NewScalarMap(w, h)
	}

	rng := rand.New(rand.NewSource(int64(dd.ImageID) + 1))
	seedHypotheses(dd, ref, rng)

	tiles := zigzagTiles(w, h)
	scoreAll(dd, ref, targets, opts, tiles)

	for iter := 0; iter < opts.NEstimationIters; iter++ {
		forward := iter%2 == 0
		geometric := opts.NEstimationGeometricIter > 0 && iter >= opts.NEstimationIters-opts.NEstimationGeometricIter
		shrink := math.Pow(0.5, float64(iter))
		propagateAndRefine(dd, ref, targets, opts, tiles, rng, forward, geometric, shrink)
	}

	finalize(dd, opts)
	return nil
}

// zigzagTiles partitions a width x height image into max(64, 8*T) row
// strips, T the parallel factor, each scanned in zig-zag order. Generalizes
// utils.ParallelOverIndices's disjoint-claim scheduling to a 2D pixel grid
// (spec §4.3's pixel-partitioning requirement).
func zigzagTiles(w, h int) []tile {
	n := utils.MaxInt(64, 8*utils.ParallelFactor)
	if n > h {
		n = h
	}
	if n < 1 {
		n = 1
	}
	rowsPerTile := (h + n - 1) / n

	tiles := make([]tile, 0, n)
	for y0 := 0; y0 < h; y0 += rowsPerTile {
		y1 := utils.MinInt(y0+rowsPerTile, h)
		var pixels []image.Point
		for y := y0; y < y1; y++ {
			if (y-y0)%2 == 0 {
				for x := 0; x < w; x++ {
					pixels = append(pixels, image.Point{X: x, Y: y})
				}
			} else {
				for x := w - 1; x >= 0; x-- {
					pixels = append(pixels, image.Point{X: x, Y: y})
				}
			}
		}
		tiles = append(tiles, tile{pixels: pixels})
	}
	return tiles
}

// seedHypotheses fills every pixel that InitViews left invalid with a
// random log-uniform depth in [dMin,dMax] and a frontal (view-ray-reversed)
// normal; seeded (splatted/triangulated) pixels are left untouched. DMin/
// DMax default to a wide range if InitViews never set them (pure
// from-scratch estimation).
func seedHypotheses(dd *DepthData, ref ViewData, rng *rand.Rand) {
	w, h := ref.Image.Width(), ref.Image.Height()
	if dd.DMin <= 0 {
		dd.DMin = 0.1
	}
	if dd.DMax <= dd.DMin {
		dd.DMax = dd.DMin * 10
	}
	logMin, logMax := math.Log(dd.DMin), math.Log(dd.DMax)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if dd.DepthMap.At(x, y) > 0 {
				continue
			}
			depth := math.Exp(logMin + rng.Float64()*(logMax-logMin))
			normal := ref.Camera.ViewRay(float64(x), float64(y)).Mul(-1)
			dd.DepthMap.Set(x, y, depth)
			dd.NormalMap.Set(x, y, normal)
		}
	}
}

func scoreAll(dd *DepthData, ref ViewData, targets []ViewData, opts config.Options, tiles []tile) {
	utils.ParallelOverIndices(len(tiles), 0, func(i int) {
		for _, p := range tiles[i].pixels {
			scorePixel(dd, ref, targets, opts, p.X, p.Y)
		}
	})
}

// scorePixel evaluates (and records into ConfMap) the pixel's current
// stored hypothesis.
func scorePixel(dd *DepthData, ref ViewData, targets []ViewData, opts config.Options, x, y int) float64 {
	hyp := hypothesis{depth: dd.DepthMap.At(x, y), normal: dd.NormalMap.At(x, y)}
	score := evaluateHypothesis(dd, ref, targets, opts, x, y, hyp, false)
	dd.ConfMap.Set(x, y, score)
	return score
}

// evaluateHypothesis computes the aggregated NCC cost of hyp at (x,y)
// without mutating any stored map: an out-of-range depth, a back-facing
// normal, or a homography every target fails to sample scores 2 (worst).
// When geometric is set, a spatial-smoothness bonus is subtracted,
// standing in for full geometric-consistency reprojection against
// neighboring depth maps (spec §4.3's optional geometric-consistency
// iterations).
func evaluateHypothesis(dd *DepthData, ref ViewData, targets []ViewData, opts config.Options, x, y int, hyp hypothesis, geometric bool) float64 {
	if hyp.depth <= 0 {
		return 2
	}
	p := ref.Camera.ImageToCamera(float64(x), float64(y), hyp.depth)
	ray := ref.Camera.ViewRay(float64(x), float64(y))
	if hyp.normal.Dot(ray) >= 0 {
		return 2
	}

	scores := make([]float64, 0, len(targets))
	for _, tgt := range targets {
		h, err := geometry.Homography(ref.Camera, tgt.Camera, p, hyp.normal)
		if err != nil {
			continue
		}
		s, ok := ncc.WarpedPatchScore(ref.Image.Gray, tgt.Image.Gray, float64(x), float64(y), h, patchRadius)
		if !ok {
			continue
		}
		scores = append(scores, s)
	}
	if len(scores) == 0 {
		return 2
	}
	score := aggregateScore(scores, opts.AggregationMode)
	if geometric {
		score -= smoothnessBonus(dd, x, y, hyp)
	}
	return score
}

// aggregateScore combines per-target ZNCC distances per opts.AggregationMode.
// NthBest (the default) takes the median score, a robust stand-in for
// occlusion-tolerant matching when no explicit rank is configured;
// BottomKSum sums the 3 best (lowest) scores for the same reason.
func aggregateScore(scores []float64, mode config.AggregationMode) float64 {
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	switch mode {
	case config.AggregationMean:
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores))
	case config.AggregationMin:
		return sorted[0]
	case config.AggregationBottomKSum:
		k := utils.MinInt(3, len(sorted))
		sum := 0.0
		for i := 0; i < k; i++ {
			sum += sorted[i]
		}
		return sum
	default: // AggregationNthBest
		return sorted[len(sorted)/2]
	}
}

// smoothnessBonus rewards a hypothesis whose depth agrees (via
// geometry.DepthSimilar) with its valid 4-connected neighbors, used only
// during geometric-consistency iterations.
func smoothnessBonus(dd *DepthData, x, y int, hyp hypothesis) float64 {
	w, h := dd.DepthMap.Width(), dd.DepthMap.Height()
	neighbors := [4]image.Point{{X: x - 1, Y: y}, {X: x + 1, Y: y}, {X: x, Y: y - 1}, {X: x, Y: y + 1}}
	count := 0
	for _, n := range neighbors {
		if n.X < 0 || n.Y < 0 || n.X >= w || n.Y >= h {
			continue
		}
		nd := dd.DepthMap.At(n.X, n.Y)
		if nd <= 0 {
			continue
		}
		if geometry.DepthSimilar(hyp.depth, nd, 0.01) {
			count++
		}
	}
	return 0.02 * float64(count)
}

func propagateAndRefine(
	dd *DepthData,
	ref ViewData,
	targets []ViewData,
	opts config.Options,
	tiles []tile,
	rng *rand.Rand,
	forward, geometric bool,
	shrink float64,
) {
	w, h := ref.Image.Width(), ref.Image.Height()
	utils.ParallelOverIndices(len(tiles), 0, func(i int) {
		tileRNG := rand.New(rand.NewSource(rng.Int63() + int64(i)))
		pixels := tiles[i].pixels
		for k := range pixels {
			p := pixels[k]
			if !forward {
				p = pixels[len(pixels)-1-k]
			}
			refineAt(dd, ref, targets, opts, p.X, p.Y, w, h, tileRNG, forward, geometric, shrink)
		}
	})
}

// refineAt propagates the upstream (forward: left/up, backward: right/down)
// neighbors' hypotheses into (x,y) and tries one randomized refinement,
// keeping whichever of {current, propagated, refined} scores best.
func refineAt(
	dd *DepthData,
	ref ViewData,
	targets []ViewData,
	opts config.Options,
	x, y, w, h int,
	rng *rand.Rand,
	forward, geometric bool,
	shrink float64,
) {
	best := hypothesis{depth: dd.DepthMap.At(x, y), normal: dd.NormalMap.At(x, y)}
	bestScore := dd.ConfMap.At(x, y)
	if best.depth <= 0 {
		bestScore = 2
	}

	step := -1
	if !forward {
		step = 1
	}
	candidates := [2]image.Point{{X: x + step, Y: y}, {X: x, Y: y + step}}
	for _, c := range candidates {
		if c.X < 0 || c.Y < 0 || c.X >= w || c.Y >= h {
			continue
		}
		cand := hypothesis{depth: dd.DepthMap.At(c.X, c.Y), normal: dd.NormalMap.At(c.X, c.Y)}
		if cand.depth <= 0 {
			continue
		}
		if score := evaluateHypothesis(dd, ref, targets, opts, x, y, cand, geometric); score < bestScore {
			bestScore, best = score, cand
		}
	}

	refined := randomRefine(best, dd.DMin, dd.DMax, shrink, rng)
	if score := evaluateHypothesis(dd, ref, targets, opts, x, y, refined, geometric); score < bestScore {
		bestScore, best = score, refined
	}

	dd.DepthMap.Set(x, y, best.depth)
	dd.NormalMap.Set(x, y, best.normal)
	dd.ConfMap.Set(x, y, bestScore)
}

// randomRefine perturbs hyp with a log-uniform depth step and a
// small-angle spherical normal step, both scaled by shrink (halved every
// iteration, per spec §4.3's narrowing search radius).
func randomRefine(hyp hypothesis, dMin, dMax, shrink float64, rng *rand.Rand) hypothesis {
	if dMax <= dMin {
		dMax = dMin + 1
	}
	logMin, logMax := math.Log(math.Max(dMin, 1e-6)), math.Log(dMax)
	span := (logMax - logMin) * shrink
	logD := math.Log(math.Max(hyp.depth, 1e-6))
	newLogD := utils.ClampF64(logD+(rng.Float64()*2-1)*span, logMin, logMax)
	depth := math.Exp(newLogD)

	az, el := geometry.NormalToSpherical(hyp.normal)
	angle := (math.Pi / 6) * shrink
	az += (rng.Float64()*2 - 1) * angle
	el += (rng.Float64()*2 - 1) * angle
	normal := geometry.SphericalToNormal(az, el)

	return hypothesis{depth: depth, normal: normal}
}

// finalize discards pixels whose aggregated ZNCC cost (ConfMap, in [0,2]
// with 0 best) exceeds FNCCThresholdKeep, and inverts the survivors' cost
// into a confidence 1-cost, clamped to [0,1], where 1 is best.
func finalize(dd *DepthData, opts config.Options) {
	w, h := dd.DepthMap.Width(), dd.DepthMap.Height()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if dd.DepthMap.At(x, y) <= 0 {
				continue
			}
			cost := dd.ConfMap.At(x, y)
			if cost > opts.FNCCThresholdKeep {
				dd.DepthMap.Clear(x, y)
				dd.NormalMap.Clear(x, y)
				dd.ConfMap.Clear(x, y)
				continue
			}
			dd.ConfMap.Set(x, y, utils.ClampF64(1-cost, 0, 1))
		}
	}
}
