// Package fusion combines per-image depth maps into a single point cloud:
// a simple union (MergeDepthMaps), visibility-weighted fusion
// (FuseDepthMaps), and an octree-backed visibility filter that prunes
// points contradicted by other cameras' lines of sight (spec §4.6-§4.7).
package fusion

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viamdensify/mvs-depth-core/depth"
	"github.com/viamdensify/mvs-depth-core/pointcloud"
)

// Cloud is a point cloud augmented with, for every point (in Iterate
// insertion order), the set of image ids that observed it and the
// per-observation fusion weight (spec §3's PointCloud extended with
// parallel pointViews/pointWeights). Index i of Views/Weights corresponds
// to the i-th point visited by a single-shard Iterate over PointCloud.
type Cloud struct {
	pointcloud.PointCloud
	Views   [][]uint32
	Weights [][]float64
}

// NewCloud allocates an empty fusion Cloud.
func NewCloud() *Cloud {
	return &Cloud{PointCloud: pointcloud.New()}
}

// addPoint sets p in the cloud and appends a new Views/Weights entry
// holding its single observation. It never merges into an existing point's
// bookkeeping: a second call with an already-present position still appends
// a fresh entry. MergeDepthMaps is its only caller; FuseDepthMaps does its
// own same-surface merging via DepthIndex claim grids and sets points
// directly.
func (c *Cloud) addPoint(p r3.Vector, d pointcloud.Data, imageID uint32, weight float64) error {
	if err := c.PointCloud.Set(p, d); err != nil {
		return err
	}
	c.Views = append(c.Views, []uint32{imageID})
	c.Weights = append(c.Weights, []float64{weight})
	return nil
}

// MergeDepthMaps unions every DepthData's valid pixels into a single
// cloud with no visibility reasoning: every pixel that survived
// estimation/filtering becomes one point, tagged with the image that
// produced it (spec §4.6's simple merge, as opposed to FuseDepthMaps'
// weighted reconciliation).
func MergeDepthMaps(maps []*depth.DepthData) (*Cloud, error) {
	cloud := NewCloud()
	for _, dd := range maps {
		ref := dd.Reference()
		if ref.Camera == nil {
			return nil, errors.Errorf("image %d: depth data has no reference camera", dd.ImageID)
		}
		w, h := dd.DepthMap.Width(), dd.DepthMap.Height()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				depthVal := dd.DepthMap.At(x, y)
				if depthVal <= 0 {
					continue
				}
				world := ref.Camera.ImageToWorld(float64(x), float64(y), depthVal)
				if err := cloud.addPoint(world, pointcloud.NewBasicData(), uint32(dd.ImageID), 1); err != nil {
					return nil, errors.Wrapf(err, "image %d pixel (%d,%d)", dd.ImageID, x, y)
				}
			}
		}
	}
	return cloud, nil
}
