package depth

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/rimage/transform"
	"github.com/viamdensify/mvs-depth-core/spatialmath"
)

// texture is a smooth, richly-varying synthetic pattern: flat patches would
// give ZNCC an undefined (zero-variance) score, so every sample needs
// genuine local contrast.
func texture(x, y float64) uint8 {
	v := 128 + 60*math.Sin(x*9) + 60*math.Cos(y*7)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// renderFrontoParallel renders cam's view of a fronto-parallel plane at
// planeDepth (constant world Z, since every test camera here has zero pose
// translation along Z and identity rotation) painted with texture.
func renderFrontoParallel(cam *geometry.Camera, planeDepth float64) *image.Gray {
	w, h := cam.Width(), cam.Height()
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			world := cam.ImageToWorld(float64(x)+0.5, float64(y)+0.5, planeDepth)
			g.SetGray(x, y, color.Gray{Y: texture(world.X, world.Y)})
		}
	}
	return g
}

func stereoCamera(width, height int, cx float64) *geometry.Camera {
	intr := transform.PinholeCameraIntrinsics{Width: width, Height: height, Fx: 60, Fy: 60, Ppx: float64(width) / 2, Ppy: float64(height) / 2}
	return geometry.NewCamera(intr, spatialmath.NewIdentityRotationMatrix(), r3.Vector{X: cx, Y: 0, Z: 0})
}

func TestEstimateRecoversFrontoParallelPlaneDepth(t *testing.T) {
	const (
		w, h       = 28, 28
		trueDepth  = 3.0
	)
	refCam := stereoCamera(w, h, 0)
	tgtCam := stereoCamera(w, h, 0.3)

	refImg := &Image{ID: 1, Gray: renderFrontoParallel(refCam, trueDepth)}
	tgtImg := &Image{ID: 2, Gray: renderFrontoParallel(tgtCam, trueDepth)}

	dd := NewDepthData(1, nil)
	dd.DMin, dd.DMax = 2.5, 3.5
	dd.Views = []ViewData{
		{Image: refImg, Camera: refCam},
		{Image: tgtImg, Camera: tgtCam},
	}

	opts := config.Default()
	opts.NEstimationIters = 6
	opts.FNCCThresholdKeep = 0.9

	test.That(t, Estimate(dd, opts), test.ShouldBeNil)

	margin := patchRadius + 2
	var valid, accurate int
	for y := margin; y < h-margin; y++ {
		for x := margin; x < w-margin; x++ {
			d := dd.DepthMap.At(x, y)
			if d <= 0 {
				continue
			}
			valid++
			if math.Abs(d-trueDepth) < 0.25 {
				accurate++
			}
		}
	}
	test.That(t, valid, test.ShouldBeGreaterThan, 0)
	// PatchMatch is stochastic; require most (not necessarily every) interior
	// pixel to converge near the true depth within a handful of iterations.
	test.That(t, float64(accurate)/float64(valid), test.ShouldBeGreaterThanOrEqualTo, 0.6)
}

func TestEstimateRejectsMissingTargetImage(t *testing.T) {
	refCam := stereoCamera(16, 16, 0)
	refImg := &Image{ID: 1, Gray: renderFrontoParallel(refCam, 3)}
	dd := NewDepthData(1, nil)
	dd.Views = []ViewData{{Image: refImg, Camera: refCam}}

	err := Estimate(dd, config.Default())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestZigzagTilesCoverEveryPixelExactlyOnce(t *testing.T) {
	const w, h = 17, 23
	tiles := zigzagTiles(w, h)
	seen := make(map[image.Point]bool)
	total := 0
	for _, tl := range tiles {
		for _, p := range tl.pixels {
			test.That(t, seen[p], test.ShouldBeFalse)
			seen[p] = true
			total++
		}
	}
	test.That(t, total, test.ShouldEqual, w*h)
}

func TestAggregateScoreModes(t *testing.T) {
	scores := []float64{0.1, 0.9, 0.5, 0.2, 0.8}
	test.That(t, aggregateScore(scores, config.AggregationMin), test.ShouldAlmostEqual, 0.1, 1e-9)
	test.That(t, aggregateScore(scores, config.AggregationMean), test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, aggregateScore(scores, config.AggregationNthBest), test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, aggregateScore(scores, config.AggregationBottomKSum), test.ShouldAlmostEqual, 0.1+0.2+0.5, 1e-9)
}
