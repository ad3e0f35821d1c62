package utils

import goutils "go.viam.com/utils"

// PanicCapturingGo re-exports go.viam.com/utils.PanicCapturingGo so callers
// in this module only ever need to import one utils package, mirroring the
// teacher's rdk/utils re-export of the same helper.
var PanicCapturingGo = goutils.PanicCapturingGo

// UncheckedErrorFunc runs f and silently drops its error, for use in defer
// statements closing files/readers where the error is not actionable.
func UncheckedErrorFunc(f func() error) {
	_ = f()
}

// Square returns x*x.
func Square(x float64) float64 { return x * x }

// SquareInt returns x*x for an int.
func SquareInt(x int) int { return x * x }

// ClampF64 clamps x to [min, max].
func ClampF64(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

// MaxInt returns the larger of a, b.
func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// MinInt returns the smaller of a, b.
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Walk visits (x,y) for every point within radius of (centerX, centerY) in
// expanding square rings, stopping early if f returns an error. Grounded on
// DepthMap.Smooth's and Image's spiral in-fill use in rimage, generalized
// from their specific call sites into a standalone ring walk.
func Walk(centerX, centerY, radius int, f func(x, y int) error) error {
	if err := f(centerX, centerY); err != nil {
		return err
	}
	for r := 1; r <= radius; r++ {
		for x := centerX - r; x <= centerX+r; x++ {
			if err := f(x, centerY-r); err != nil {
				return err
			}
			if err := f(x, centerY+r); err != nil {
				return err
			}
		}
		for y := centerY - r + 1; y <= centerY+r-1; y++ {
			if err := f(centerX-r, y); err != nil {
				return err
			}
			if err := f(centerX+r, y); err != nil {
				return err
			}
		}
	}
	return nil
}
