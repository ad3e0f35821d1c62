package fusion

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/logging"
	"github.com/viamdensify/mvs-depth-core/octree"
	"github.com/viamdensify/mvs-depth-core/pointcloud"
	"github.com/viamdensify/mvs-depth-core/utils"
)

// nearestInCone is the closest fused point found so far inside one
// integer-pixel bucket of a camera's view: a bucket whose angular width is
// exactly FOV/width, the camera's own per-pixel angular resolution, so
// bucketing by floor(x),floor(y) realizes the cone-half-angle-FOV/width
// sweep directly.
type nearestInCone struct {
	idx      int
	depth    float64
	observed bool
}

// VisibilityFilter builds an octree over cloud's fused points and, for
// every camera that was not already among a point's observers, cone-sweeps
// the tree to find which non-observed points fall inside that camera's
// frustum with nothing else in front of them in the same pixel-sized cone.
// Such a point should have been visible to that camera but wasn't — one
// vote against it. A point accumulating NThRemoveVisibility or more such
// votes is pruned (spec §4.7), grounded on pointcloud/voxel_segmentation.go's
// parallel per-region sweep and motionplan/ik/combined.go's pattern of
// many goroutines feeding a single shared accumulator.
func VisibilityFilter(cloud *Cloud, cameras map[uint32]*geometry.Camera, opts config.Options, logger logging.Logger) (*Cloud, error) {
	n := cloud.PointCloud.Size()
	if n == 0 {
		return cloud, nil
	}

	meta := cloud.PointCloud.MetaData()
	center := r3.Vector{X: (meta.MinX + meta.MaxX) / 2, Y: (meta.MinY + meta.MaxY) / 2, Z: (meta.MinZ + meta.MaxZ) / 2}
	side := math.Max(meta.MaxX-meta.MinX, math.Max(meta.MaxY-meta.MinY, meta.MaxZ-meta.MinZ))
	if side <= 0 {
		side = 1
	}

	tree, err := octree.New(context.Background(), center, side*1.01, logger)
	if err != nil {
		return nil, errors.Wrap(err, "building visibility octree")
	}

	index := make(map[r3.Vector]int, n)
	i := 0
	cloud.PointCloud.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		index[p] = i
		i++
		if err := tree.Set(p, d); err != nil {
			logger.Debugw("skipping duplicate point in visibility octree", "error", err)
		}
		return true
	})

	violations := make([]int32, n)
	imageIDs := make([]uint32, 0, len(cameras))
	for id := range cameras {
		imageIDs = append(imageIDs, id)
	}

	utils.ParallelOverIndices(len(imageIDs), opts.NMaxThreads, func(ci int) {
		imageID := imageIDs[ci]
		cam := cameras[imageID]
		nearest := make(map[[2]int]nearestInCone)

		tree.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
			idx, ok := index[p]
			if !ok {
				return true
			}
			observed := false
			for _, v := range cloud.Views[idx] {
				if v == imageID {
					observed = true
					break
				}
			}
			x, y, depth := cam.WorldToImage(p)
			if depth <= 0 || x < 0 || y < 0 || x >= float64(cam.Width()) || y >= float64(cam.Height()) {
				return true
			}
			key := [2]int{int(math.Floor(x)), int(math.Floor(y))}
			if cur, exists := nearest[key]; !exists || depth < cur.depth {
				nearest[key] = nearestInCone{idx: idx, depth: depth, observed: observed}
			}
			return true
		})

		for _, entry := range nearest {
			if entry.observed {
				continue
			}
			atomic.AddInt32(&violations[entry.idx], 1)
		}
	})

	filtered := NewCloud()
	i = 0
	cloud.PointCloud.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		idx := i
		i++
		if int(violations[idx]) >= opts.NThRemoveVisibility {
			return true
		}
		if err := filtered.PointCloud.Set(p, d); err != nil {
			logger.Debugw("dropping point from filtered cloud", "error", err)
			return true
		}
		filtered.Views = append(filtered.Views, cloud.Views[idx])
		filtered.Weights = append(filtered.Weights, cloud.Weights[idx])
		return true
	})

	return filtered, nil
}
