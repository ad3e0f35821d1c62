package pipeline

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/depth"
	"github.com/viamdensify/mvs-depth-core/depthfile"
	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/logging"
	"github.com/viamdensify/mvs-depth-core/rimage"
	"github.com/viamdensify/mvs-depth-core/rimage/transform"
	"github.com/viamdensify/mvs-depth-core/spatialmath"
)

type fakeRanker struct {
	candidates []depth.NeighborCandidate
	err        error
}

func (r *fakeRanker) Rank(refImageID int) ([]depth.NeighborCandidate, error) {
	return r.candidates, r.err
}

type noSeeds struct{}

func (noSeeds) SeedsVisibleFrom(imageID int) []depth.SparseSeed { return nil }

func checkerGray(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(30)
			if (x/2+y/2)%2 == 0 {
				v = 220
			}
			g.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return g
}

func driverTestCamera(width, height int, cx float64) *geometry.Camera {
	intr := transform.PinholeCameraIntrinsics{Width: width, Height: height, Fx: 60, Fy: 60, Ppx: float64(width) / 2, Ppy: float64(height) / 2}
	return geometry.NewCamera(intr, spatialmath.NewIdentityRotationMatrix(), r3.Vector{X: cx, Y: 0, Z: 0})
}

// drain runs dispatch synchronously until the queue empties, sidestepping
// Queue.Pop's blocking wait (there is no second goroutine feeding it once
// the chain ends).
func drain(t *testing.T, ctx context.Context, d *Driver, queue *Queue) {
	for queue.Len() > 0 {
		event, ok := queue.Pop()
		test.That(t, ok, test.ShouldBeTrue)
		d.dispatch(ctx, event)
	}
}

func TestDriverRunsFullEventChainAndPersistsFilteredMap(t *testing.T) {
	const w, h = 20, 20
	refCam := driverTestCamera(w, h, 0)
	tgtCam := driverTestCamera(w, h, 0.3)

	loader := &depth.FileImageLoader{
		Colors: map[int]*rimage.Image{
			1: rimage.NewImageFromStdImage(checkerGray(w, h)),
			2: rimage.NewImageFromStdImage(checkerGray(w, h)),
		},
		Cameras: map[int]*geometry.Camera{1: refCam, 2: tgtCam},
	}
	ranker := &fakeRanker{candidates: []depth.NeighborCandidate{
		{ImageID: 2, Score: 10, AreaFraction: 0.5, ParallaxDeg: 10, ScaleRatio: 1},
	}}

	opts := config.Default()
	opts.NMinViews = 2
	opts.NEstimationIters = 1
	opts.FNCCThresholdKeep = 1.5 // this test checks wiring/persistence, not match accuracy
	opts.BFilterAdjust = false
	opts.NMinViewsFilter = 1

	dmDir := t.TempDir()

	// Image 2's own depth map, as if it had already been processed --
	// handleFilter needs this on disk to load as a neighbor map.
	nbr := depth.NewDepthData(2, nil)
	nbr.DepthMap = depth.NewScalarMap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			nbr.DepthMap.Set(x, y, 3.0)
		}
	}
	nbr.Views = []depth.ViewData{{Camera: tgtCam}}
	test.That(t, depthfile.Save(filepath.Join(dmDir, "0002.dmap"), nbr, 0), test.ShouldBeNil)

	logger := logging.NewTestLogger(t)
	queue := NewQueue()
	d := NewDriver(queue, ranker, loader, noSeeds{}, dmDir, opts, logger)

	d.Submit(1)
	drain(t, context.Background(), d, queue)
	d.Wait()

	dd, ok := d.get(1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, dd.DepthMap, test.ShouldNotBeNil)

	_, err := os.Stat(filepath.Join(dmDir, "0001.dmap"))
	test.That(t, err, test.ShouldBeNil)
	_, err = os.Stat(filepath.Join(dmDir, "0001.filtered.dmap"))
	test.That(t, err, test.ShouldBeNil)
}

func TestDriverFailsGracefullyOnRankerError(t *testing.T) {
	ranker := &fakeRanker{err: errors.New("scene graph unavailable")}
	loader := &depth.FileImageLoader{Colors: map[int]*rimage.Image{}, Cameras: map[int]*geometry.Camera{}}

	dmDir := t.TempDir()
	logger := logging.NewTestLogger(t)
	queue := NewQueue()
	d := NewDriver(queue, ranker, loader, noSeeds{}, dmDir, config.Default(), logger)

	d.Submit(1)
	drain(t, context.Background(), d, queue)
	d.Wait()

	_, ok := d.get(1)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, queue.Len(), test.ShouldEqual, 0)
}
