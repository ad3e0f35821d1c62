package depth

import (
	"image"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/geometry"
)

// RemoveSmallSegments flood-fills 4-connected components of valid depth
// pixels (two pixels connected iff geometry.DepthSimilar at
// 0.7*FDepthDiffThreshold) and invalidates every component smaller than
// NSpeckleSize (spec §4.4, the 0.7 multiplier recovered from
// original_source/SceneDensify.cpp).
func RemoveSmallSegments(dd *DepthData, opts config.Options) {
	w, h := dd.DepthMap.Width(), dd.DepthMap.Height()
	tau := opts.FDepthDiffThreshold * 0.7
	visited := make([]bool, w*h)

	var stack []image.Point
	for y0 := 0; y0 < h; y0++ {
		for x0 := 0; x0 < w; x0++ {
			if visited[y0*w+x0] || dd.DepthMap.At(x0, y0) <= 0 {
				continue
			}
			stack = stack[:0]
			stack = append(stack, image.Point{X: x0, Y: y0})
			visited[y0*w+x0] = true
			var component []image.Point

			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				component = append(component, p)
				d := dd.DepthMap.At(p.X, p.Y)

				for _, n := range [4]image.Point{{X: p.X - 1, Y: p.Y}, {X: p.X + 1, Y: p.Y}, {X: p.X, Y: p.Y - 1}, {X: p.X, Y: p.Y + 1}} {
					if n.X < 0 || n.Y < 0 || n.X >= w || n.Y >= h || visited[n.Y*w+n.X] {
						continue
					}
					nd := dd.DepthMap.At(n.X, n.Y)
					if nd <= 0 || !geometry.DepthSimilar(d, nd, tau) {
						continue
					}
					visited[n.Y*w+n.X] = true
					stack = append(stack, n)
				}
			}

			if len(component) < opts.NSpeckleSize {
				for _, p := range component {
					dd.DepthMap.Clear(p.X, p.Y)
					dd.NormalMap.Clear(p.X, p.Y)
					dd.ConfMap.Clear(p.X, p.Y)
				}
			}
		}
	}
}

// GapInterpolation fills runs of invalid pixels no longer than NIpolGapSize
// bounded by two valid pixels, first along rows then along columns (spec
// §4.4): depth is linearly interpolated, normals via geometry.LerpNormal so
// the angular interpolation stays unit length, and confidence takes the
// lower of the two bounding confidences. The two bounding depths are not
// compared with each other: any two valid pixels bound a fillable run.
func GapInterpolation(dd *DepthData, opts config.Options) {
	w, h := dd.DepthMap.Width(), dd.DepthMap.Height()

	for y := 0; y < h; y++ {
		fillRun(dd, opts.NIpolGapSize, func(i int) (int, int) { return i, y }, w)
	}
	for x := 0; x < w; x++ {
		fillRun(dd, opts.NIpolGapSize, func(i int) (int, int) { return x, i }, h)
	}
}

// fillRun scans a single row or column (coord maps an index 0..n-1 to the
// pixel at that position) for gaps bounded by valid pixels on both sides
// and no longer than maxGap, filling each by linear interpolation.
func fillRun(dd *DepthData, maxGap int, coord func(i int) (int, int), n int) {
	lastValid := -1
	for i := 0; i < n; i++ {
		x, y := coord(i)
		if dd.DepthMap.At(x, y) <= 0 {
			continue
		}
		if lastValid >= 0 && i-lastValid-1 > 0 && i-lastValid-1 <= maxGap {
			interpolateGap(dd, coord, lastValid, i)
		}
		lastValid = i
	}
}

func interpolateGap(dd *DepthData, coord func(i int) (int, int), lo, hi int) {
	x0, y0 := coord(lo)
	x1, y1 := coord(hi)
	d0, d1 := dd.DepthMap.At(x0, y0), dd.DepthMap.At(x1, y1)
	n0, n1 := dd.NormalMap.At(x0, y0), dd.NormalMap.At(x1, y1)
	c0, c1 := dd.ConfMap.At(x0, y0), dd.ConfMap.At(x1, y1)
	conf := c0
	if c1 < conf {
		conf = c1
	}

	span := float64(hi - lo)
	for i := lo + 1; i < hi; i++ {
		t := float64(i-lo) / span
		x, y := coord(i)
		dd.DepthMap.Set(x, y, d0+(d1-d0)*t)
		dd.NormalMap.Set(x, y, geometry.LerpNormal(n0, n1, t))
		dd.ConfMap.Set(x, y, conf)
	}
}
