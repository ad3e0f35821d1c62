package fusion

import (
	"math"

	"github.com/pkg/errors"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/depth"
	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/pointcloud"
)

// pixelKey identifies one pixel of one image's depth map.
type pixelKey struct{ x, y int }

// DepthIndex tracks which pixels of each image's depth map have already
// been folded into a fused point, so FuseDepthMaps visits every surface
// exactly once no matter how many images observe it (spec §4.6's claim
// grid).
type DepthIndex struct {
	claimed map[int]map[pixelKey]bool
}

// NewDepthIndex allocates an empty claim grid for the given image ids.
func NewDepthIndex(imageIDs []int) *DepthIndex {
	idx := &DepthIndex{claimed: make(map[int]map[pixelKey]bool, len(imageIDs))}
	for _, id := range imageIDs {
		idx.claimed[id] = make(map[pixelKey]bool)
	}
	return idx
}

func (idx *DepthIndex) isClaimed(imageID, x, y int) bool {
	m := idx.claimed[imageID]
	return m != nil && m[pixelKey{x, y}]
}

func (idx *DepthIndex) claim(imageID, x, y int) {
	m := idx.claimed[imageID]
	if m == nil {
		m = make(map[pixelKey]bool)
		idx.claimed[imageID] = m
	}
	m[pixelKey{x, y}] = true
}

// fuseWeight is the per-observation fusion weight, recovered from
// original_source/SceneDensify.cpp: confidence-scaled inverse-square
// distance falloff, confidence clamped away from 1 so a perfect score
// never divides by zero.
func fuseWeight(conf, d float64) float64 {
	c := 1 - conf
	if c < 0.03 {
		c = 0.03
	}
	return 1 / (c * d * d)
}

// FuseDepthMaps performs visibility-aware fusion of a set of depth maps
// (spec §4.6): every still-unclaimed valid pixel seeds a candidate 3D
// point; every other image is then consulted by reprojection, accumulating
// agreeing observations (weighted by fuseWeight) and claiming their
// pixels so they are not re-seeded as their own points later. A strictly
// nearer depth at the reprojected pixel in another image is a free-space
// violation — that image sees empty space where this candidate claims a
// surface — and discards the candidate outright. A candidate surviving
// fewer than NMinViewsFuse agreeing observers is also dropped.
func FuseDepthMaps(maps []*depth.DepthData, opts config.Options) (*Cloud, error) {
	ids := make([]int, len(maps))
	for i, dd := range maps {
		ids[i] = dd.ImageID
	}
	index := NewDepthIndex(ids)
	cloud := NewCloud()
	tau := opts.FDepthDiffThreshold

	for _, dd := range maps {
		ref := dd.Reference()
		if ref.Camera == nil {
			return nil, errors.Errorf("image %d: depth data has no reference camera", dd.ImageID)
		}
		w, h := dd.DepthMap.Width(), dd.DepthMap.Height()

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if index.isClaimed(dd.ImageID, x, y) {
					continue
				}
				d := dd.DepthMap.At(x, y)
				if d <= 0 {
					continue
				}
				index.claim(dd.ImageID, x, y)

				world := ref.Camera.ImageToWorld(float64(x), float64(y), d)
				conf := dd.ConfMap.At(x, y)
				totalWeight := fuseWeight(conf, d)
				weighted := world.Mul(totalWeight)
				observers := []uint32{uint32(dd.ImageID)}
				weights := []float64{totalWeight}
				violated := false

				for _, other := range maps {
					if other.ImageID == dd.ImageID {
						continue
					}
					oW, oH := other.DepthMap.Width(), other.DepthMap.Height()
					ox, oy, oExpected := other.Reference().Camera.WorldToImage(world)
					ix, iy := int(math.Round(ox)), int(math.Round(oy))
					if ix < 0 || iy < 0 || ix >= oW || iy >= oH {
						continue
					}
					od := other.DepthMap.At(ix, iy)
					if od <= 0 {
						continue
					}
					if geometry.DepthSimilar(oExpected, od, tau) {
						index.claim(other.ImageID, ix, iy)
						ow := fuseWeight(other.ConfMap.At(ix, iy), od)
						oworld := other.Reference().Camera.ImageToWorld(float64(ix), float64(iy), od)
						weighted = weighted.Add(oworld.Mul(ow))
						totalWeight += ow
						observers = append(observers, uint32(other.ImageID))
						weights = append(weights, ow)
					} else if od < oExpected {
						violated = true
						break
					}
				}

				if violated || len(observers) < opts.NMinViewsFuse {
					continue
				}

				fused := weighted.Mul(1 / totalWeight)
				if err := cloud.PointCloud.Set(fused, pointcloud.NewBasicData()); err != nil {
					return nil, errors.Wrapf(err, "image %d pixel (%d,%d)", dd.ImageID, x, y)
				}
				cloud.Views = append(cloud.Views, observers)
				cloud.Weights = append(cloud.Weights, weights)
			}
		}
	}
	return cloud, nil
}
