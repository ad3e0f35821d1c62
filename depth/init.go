package depth

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/rimage"
)

// ImageLoader decodes, grayscale-converts and resizes source images, and
// vends the camera valid for an image. An out-of-scope collaborator per
// spec §1; FileImageLoader below is the CPU path's default adapter.
type ImageLoader interface {
	LoadColor(imageID int) (*rimage.Image, error)
	Camera(imageID int) (*geometry.Camera, error)
}

// SparseSeed is a sparse 3D point visible from a reference image.
type SparseSeed struct {
	Index    int
	Position r3.Vector
}

// SparseCloudSource supplies seeds visible from a reference image; an
// out-of-scope collaborator satisfied by pointcloud.PointCloud plus
// per-point visibility bookkeeping (spec §6's SparseCloudSource).
type SparseCloudSource interface {
	SeedsVisibleFrom(imageID int) []SparseSeed
}

// DepthMapLoader loads a previously saved depth/normal/confidence map
// triple for an image, used when InitViews(loadDepthMaps=1) primes a
// reference's neighbors for the cross-view filter.
type DepthMapLoader interface {
	Load(imageID int) (depthMap *ScalarMap, normalMap *NormalMap, confMap *ScalarMap, dMin, dMax float64, err error)
}

// FileImageLoader is the default ImageLoader: images and cameras are
// registered up front (by the scene-loading collaborator) and served from
// memory; grayscale conversion and resizing happen lazily in buildView.
type FileImageLoader struct {
	Colors  map[int]*rimage.Image
	Cameras map[int]*geometry.Camera
}

// LoadColor returns the registered color image for imageID.
func (l *FileImageLoader) LoadColor(imageID int) (*rimage.Image, error) {
	img, ok := l.Colors[imageID]
	if !ok {
		return nil, errors.Errorf("no source image registered for id %d", imageID)
	}
	return img, nil
}

// Camera returns the registered camera for imageID, at scale 1.
func (l *FileImageLoader) Camera(imageID int) (*geometry.Camera, error) {
	cam, ok := l.Cameras[imageID]
	if !ok {
		return nil, errors.Errorf("no camera registered for id %d", imageID)
	}
	return cam, nil
}

// resizeGray converts img to grayscale (rimage.MakeGray) and resizes by
// factor (<=1 downsamples) with disintegration/imaging, the resampling
// library rimage/image_processing.go already depends on.
func resizeGray(img *rimage.Image, factor float64) *image.Gray {
	gray := rimage.MakeGray(img)
	if factor == 1 {
		return gray
	}
	w := int(math.Round(float64(gray.Bounds().Dx()) * factor))
	h := int(math.Round(float64(gray.Bounds().Dy()) * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	resized := imaging.Resize(gray, w, h, imaging.Lanczos)
	out := image.NewGray(resized.Bounds())
	for y := resized.Bounds().Min.Y; y < resized.Bounds().Max.Y; y++ {
		for x := resized.Bounds().Min.X; x < resized.Bounds().Max.X; x++ {
			out.Set(x, y, resized.At(x, y))
		}
	}
	return out
}

// InitViews builds DepthData.Views: slot 0 is the reference; subsequent
// slots are either a single chosen neighbor (idxNeighbor >= 0) or the
// top-scoring neighbors whose score >= max(bestScore*FViewMinScoreRatio,
// FViewMinScore), capped at numNeighbors (spec §4.1). When loadImages, each
// slot's color image is converted to grayscale and resized, rebuilding its
// camera for the resized frame. loadDepthMaps selects what happens next:
// 1 loads each neighbor's on-disk depth map (for the cross-view filter); 0
// seeds the reference's own depth/normal from the sparse cloud; any other
// value does neither (caller will estimate from scratch).
func InitViews(
	dd *DepthData,
	loader ImageLoader,
	neighbors []NeighborScore,
	idxNeighbor int,
	numNeighbors int,
	loadImages bool,
	loadDepthMaps int,
	dmLoader DepthMapLoader,
	cloud SparseCloudSource,
	opts config.Options,
) error {
	dd.Neighbors = neighbors

	var chosen []NeighborScore
	if idxNeighbor >= 0 && idxNeighbor < len(neighbors) {
		chosen = neighbors[idxNeighbor : idxNeighbor+1]
	} else {
		best := 0.0
		for _, n := range neighbors {
			if n.Score > best {
				best = n.Score
			}
		}
		floor := best * opts.FViewMinScoreRatio
		if opts.FViewMinScore > floor {
			floor = opts.FViewMinScore
		}
		for _, n := range neighbors {
			if n.Score < floor {
				continue
			}
			chosen = append(chosen, n)
			if numNeighbors > 0 && len(chosen) >= numNeighbors {
				break
			}
		}
	}

	views := make([]ViewData, 0, len(chosen)+1)
	refView, err := buildView(loader, dd.ImageID, 1, loadImages)
	if err != nil {
		return errors.Wrapf(err, "loading reference image %d", dd.ImageID)
	}
	views = append(views, refView)

	for _, n := range chosen {
		v, err := buildView(loader, n.ImageID, n.Scale, loadImages)
		if err != nil {
			return errors.Wrapf(err, "loading neighbor image %d", n.ImageID)
		}
		views = append(views, v)
	}
	dd.Views = views

	switch loadDepthMaps {
	case 1:
		if dmLoader == nil {
			return errors.New("loadDepthMaps=1 requested without a DepthMapLoader")
		}
		for _, n := range chosen {
			dm, _, _, _, _, err := dmLoader.Load(n.ImageID)
			if err != nil {
				return errors.Wrapf(err, "loading neighbor depth map %d", n.ImageID)
			}
			dd.NeighborMaps[n.ImageID] = dm
		}
	case 0:
		return seedDepth(dd, cloud, opts)
	}
	return nil
}

func buildView(loader ImageLoader, imageID int, scale float64, loadImages bool) (ViewData, error) {
	cam, err := loader.Camera(imageID)
	if err != nil {
		return ViewData{}, err
	}
	v := ViewData{Scale: scale, Camera: cam.Scaled(scale)}
	if loadImages {
		color, err := loader.LoadColor(imageID)
		if err != nil {
			return ViewData{}, err
		}
		v.Image = &Image{ID: uint32(imageID), Color: color, Gray: resizeGray(color, scale), Scale: scale}
	} else {
		// No pixels, but the view keeps its image id: CrossViewFilter looks
		// up each target's neighbor depth map by it.
		v.Image = &Image{ID: uint32(imageID), Scale: scale}
	}
	return v, nil
}

// seedDepth initializes the reference depth/normal from the sparse cloud
// (spec §4.1): splat when NMinViewsTrustPoint < 2, else triangulation-based
// dense interpolation (§4.2, triangulate.go).
func seedDepth(dd *DepthData, cloud SparseCloudSource, opts config.Options) error {
	if cloud == nil {
		return nil
	}
	seeds := cloud.SeedsVisibleFrom(dd.ImageID)
	if len(seeds) == 0 {
		return nil
	}
	ref := dd.Reference()
	w, h := ref.Camera.Width(), ref.Camera.Height()
	dd.DepthMap = NewScalarMap(w, h)
	dd.NormalMap = NewNormalMap(w, h)
	dd.ConfMap = NewScalarMap(w, h)

	for _, s := range seeds {
		dd.Seeds = append(dd.Seeds, s.Index)
	}

	if opts.NMinViewsTrustPoint < 2 {
		splatSeeds(dd, ref, seeds)
		return nil
	}
	return TriangulateInit(dd, ref, seeds)
}

// splatSeeds projects each seed into the reference and writes its depth
// over a half-window-2 pixel neighborhood, tracking dMin/dMax as a 10%
// envelope (spec §4.1).
func splatSeeds(dd *DepthData, ref ViewData, seeds []SparseSeed) {
	const halfWindow = 2
	w, h := dd.DepthMap.Width(), dd.DepthMap.Height()
	min, max := math.Inf(1), math.Inf(-1)

	for _, s := range seeds {
		px, py, d := ref.Camera.WorldToImage(s.Position)
		if d <= 0 {
			continue
		}
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
		normal := ref.Camera.ViewRay(px, py).Mul(-1)
		cx, cy := int(math.Round(px)), int(math.Round(py))
		for dy := -halfWindow; dy <= halfWindow; dy++ {
			for dx := -halfWindow; dx <= halfWindow; dx++ {
				x, y := cx+dx, cy+dy
				if x < 0 || y < 0 || x >= w || y >= h {
					continue
				}
				dd.DepthMap.Set(x, y, d)
				dd.NormalMap.Set(x, y, normal)
				dd.ConfMap.Set(x, y, 1)
			}
		}
	}
	if math.IsInf(min, 1) {
		return
	}
	dd.DMin = 0.9 * min
	dd.DMax = 1.1 * max
}
