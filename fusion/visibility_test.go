package fusion

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/logging"
	"github.com/viamdensify/mvs-depth-core/pointcloud"
	"github.com/viamdensify/mvs-depth-core/rimage/transform"
	"github.com/viamdensify/mvs-depth-core/spatialmath"
)

func visTestCamera() *geometry.Camera {
	intr := transform.PinholeCameraIntrinsics{Width: 100, Height: 100, Fx: 50, Fy: 50, Ppx: 50, Ppy: 50}
	return geometry.NewCamera(intr, spatialmath.NewIdentityRotationMatrix(), r3.Vector{})
}

func TestVisibilityFilterPrunesPointUnseenByNonObserver(t *testing.T) {
	cam := visTestCamera()
	cloud := NewCloud()

	// A: observed only by image 1, but squarely in image 2's frustum with
	// nothing else nearby to occlude it -- image 2 should have seen it.
	worldA := r3.Vector{X: 0, Y: 0, Z: 3}
	test.That(t, cloud.PointCloud.Set(worldA, pointcloud.NewBasicData()), test.ShouldBeNil)
	cloud.Views = append(cloud.Views, []uint32{1})
	cloud.Weights = append(cloud.Weights, []float64{1})

	// B: observed by both images, so neither casts a vote against it.
	worldB := r3.Vector{X: 0.5, Y: 0.5, Z: 3}
	test.That(t, cloud.PointCloud.Set(worldB, pointcloud.NewBasicData()), test.ShouldBeNil)
	cloud.Views = append(cloud.Views, []uint32{1, 2})
	cloud.Weights = append(cloud.Weights, []float64{1, 1})

	cameras := map[uint32]*geometry.Camera{1: cam, 2: cam}
	logger := logging.NewTestLogger(t)

	opts := config.Default()
	opts.NThRemoveVisibility = 1

	filtered, err := VisibilityFilter(cloud, cameras, opts, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filtered.Size(), test.ShouldEqual, 1)

	_, foundA := filtered.At(worldA.X, worldA.Y, worldA.Z)
	_, foundB := filtered.At(worldB.X, worldB.Y, worldB.Z)
	test.That(t, foundA, test.ShouldBeFalse)
	test.That(t, foundB, test.ShouldBeTrue)
}

func TestVisibilityFilterKeepsPointBelowVoteThreshold(t *testing.T) {
	cam := visTestCamera()
	cloud := NewCloud()

	worldA := r3.Vector{X: 0, Y: 0, Z: 3}
	test.That(t, cloud.PointCloud.Set(worldA, pointcloud.NewBasicData()), test.ShouldBeNil)
	cloud.Views = append(cloud.Views, []uint32{1})
	cloud.Weights = append(cloud.Weights, []float64{1})

	cameras := map[uint32]*geometry.Camera{1: cam, 2: cam}
	logger := logging.NewTestLogger(t)

	opts := config.Default()
	opts.NThRemoveVisibility = 2 // one vote from image 2 is not enough to prune

	filtered, err := VisibilityFilter(cloud, cameras, opts, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filtered.Size(), test.ShouldEqual, 1)
}

func TestVisibilityFilterOnEmptyCloudIsNoOp(t *testing.T) {
	cloud := NewCloud()
	logger := logging.NewTestLogger(t)

	filtered, err := VisibilityFilter(cloud, map[uint32]*geometry.Camera{}, config.Default(), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filtered.Size(), test.ShouldEqual, 0)
}
