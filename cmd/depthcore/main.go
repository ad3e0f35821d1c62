// Command depthcore drives the depth-map estimation and fusion core
// end-to-end over a scene described on disk: a JSON manifest of images and
// their calibrated poses, an optional sparse point cloud to seed depth
// from, and an options file. It is glue only -- every operation it calls
// lives in the library packages above.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/depth"
	"github.com/viamdensify/mvs-depth-core/depthfile"
	"github.com/viamdensify/mvs-depth-core/fusion"
	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/logging"
	"github.com/viamdensify/mvs-depth-core/pipeline"
	"github.com/viamdensify/mvs-depth-core/pointcloud"
	"github.com/viamdensify/mvs-depth-core/rimage"
	"github.com/viamdensify/mvs-depth-core/rimage/transform"
	"github.com/viamdensify/mvs-depth-core/spatialmath"
)

func main() {
	scenePath := flag.String("scene", "", "path to a scene JSON manifest of images and camera poses")
	configPath := flag.String("config", "", "path to a JSON options file (Default() is used if empty)")
	cloudPath := flag.String("cloud", "", "optional sparse point cloud (.pcd) to seed depth from")
	outDir := flag.String("out", "./out", "output directory for per-image depth maps and the fused cloud")
	fuse := flag.Bool("fuse", true, "visibility-weighted fusion instead of a plain union merge")
	flag.Parse()

	logger := logging.NewLogger("depthcore")
	if err := run(*scenePath, *configPath, *cloudPath, *outDir, *fuse, logger); err != nil {
		logger.Errorw("run failed", "error", err)
		os.Exit(1)
	}
}

// sceneImage is one entry of the scene manifest: a source image plus the
// calibrated pinhole camera that captured it.
type sceneImage struct {
	ID       int        `json:"id"`
	Path     string     `json:"path"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	Fx       float64    `json:"fx"`
	Fy       float64    `json:"fy"`
	Ppx      float64    `json:"ppx"`
	Ppy      float64    `json:"ppy"`
	Rotation [9]float64 `json:"rotation"`
	Center   [3]float64 `json:"center"`
}

func (si sceneImage) camera() (*geometry.Camera, error) {
	rot, err := spatialmath.NewRotationMatrix(si.Rotation[:])
	if err != nil {
		return nil, errors.Wrapf(err, "image %d: decoding rotation", si.ID)
	}
	intr := transform.PinholeCameraIntrinsics{
		Width: si.Width, Height: si.Height,
		Fx: si.Fx, Fy: si.Fy, Ppx: si.Ppx, Ppy: si.Ppy,
	}
	center := r3.Vector{X: si.Center[0], Y: si.Center[1], Z: si.Center[2]}
	return geometry.NewCamera(intr, rot, center), nil
}

func loadScene(path string) ([]sceneImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening scene manifest")
	}
	defer f.Close()

	var images []sceneImage
	if err := json.NewDecoder(f).Decode(&images); err != nil {
		return nil, errors.Wrap(err, "decoding scene manifest")
	}
	return images, nil
}

func loadColorImage(path string) (*rimage.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening image file")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, "decoding image file")
	}
	return rimage.NewImageFromStdImage(img), nil
}

// overlapRanker is a geometry-only stand-in for the real scene graph /
// sparse reconstruction system SelectViews is specified to consult
// (depth.NeighborRanker's doc comment): every other registered camera is a
// candidate, ranked by how closely its viewing direction toward the rig's
// centroid matches the reference's.
type overlapRanker struct {
	cameras  map[int]*geometry.Camera
	centroid r3.Vector
}

func (r *overlapRanker) Rank(refImageID int) ([]depth.NeighborCandidate, error) {
	ref, ok := r.cameras[refImageID]
	if !ok {
		return nil, errors.Errorf("no camera registered for image %d", refImageID)
	}
	refDir := r.centroid.Sub(ref.C).Normalize()

	candidates := make([]depth.NeighborCandidate, 0, len(r.cameras)-1)
	for id, cam := range r.cameras {
		if id == refImageID {
			continue
		}
		dir := r.centroid.Sub(cam.C).Normalize()
		cos := refDir.Dot(dir)
		if cos > 1 {
			cos = 1
		} else if cos < -1 {
			cos = -1
		}
		angle := math.Acos(cos) * 180 / math.Pi
		candidates = append(candidates, depth.NeighborCandidate{
			ImageID:      id,
			Score:        1 / (1 + angle),
			AreaFraction: 1,
			ParallaxDeg:  angle,
			ScaleRatio:   1,
		})
	}
	return candidates, nil
}

// noSparseCloud seeds nothing: PatchMatch falls back to random log-uniform
// initialization across [DMin,DMax], the pure from-scratch path.
type noSparseCloud struct{}

func (noSparseCloud) SeedsVisibleFrom(imageID int) []depth.SparseSeed { return nil }

// pcdSparseCloud adapts a loaded pointcloud.PointCloud into
// depth.SparseCloudSource: a point is "visible" from an image when it
// projects in front of and inside that image's frame.
type pcdSparseCloud struct {
	cloud   pointcloud.PointCloud
	cameras map[int]*geometry.Camera
}

func (s *pcdSparseCloud) SeedsVisibleFrom(imageID int) []depth.SparseSeed {
	cam, ok := s.cameras[imageID]
	if !ok {
		return nil
	}
	var seeds []depth.SparseSeed
	idx := 0
	s.cloud.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		x, y, depthVal := cam.WorldToImage(p)
		if depthVal > 0 && x >= 0 && y >= 0 && x < float64(cam.Width()) && y < float64(cam.Height()) {
			seeds = append(seeds, depth.SparseSeed{Index: idx, Position: p})
		}
		idx++
		return true
	})
	return seeds
}

func run(scenePath, configPath, cloudPath, outDir string, fuse bool, logger logging.Logger) error {
	if scenePath == "" {
		return errors.New("depthcore: -scene is required")
	}

	opts := config.Default()
	if configPath != "" {
		var err error
		opts, err = config.Load(configPath)
		if err != nil {
			return errors.Wrap(err, "loading config")
		}
	}

	images, err := loadScene(scenePath)
	if err != nil {
		return errors.Wrap(err, "loading scene")
	}
	if len(images) == 0 {
		return errors.New("depthcore: scene manifest has no images")
	}

	loader := &depth.FileImageLoader{
		Colors:  make(map[int]*rimage.Image, len(images)),
		Cameras: make(map[int]*geometry.Camera, len(images)),
	}
	var centroid r3.Vector
	for _, si := range images {
		cam, err := si.camera()
		if err != nil {
			return err
		}
		loader.Cameras[si.ID] = cam
		centroid = centroid.Add(cam.C)

		color, err := loadColorImage(si.Path)
		if err != nil {
			return errors.Wrapf(err, "loading image %d", si.ID)
		}
		loader.Colors[si.ID] = color
	}
	centroid = centroid.Mul(1 / float64(len(images)))

	ranker := &overlapRanker{cameras: loader.Cameras, centroid: centroid}

	var seeder depth.SparseCloudSource = noSparseCloud{}
	if cloudPath != "" {
		f, err := os.Open(cloudPath)
		if err != nil {
			return errors.Wrap(err, "opening sparse cloud")
		}
		pc, err := pointcloud.ReadPCD(f)
		f.Close()
		if err != nil {
			return errors.Wrap(err, "reading sparse cloud")
		}
		seeder = &pcdSparseCloud{cloud: pc, cameras: loader.Cameras}
	}

	dmDir := filepath.Join(outDir, "depthmaps")
	if err := os.MkdirAll(dmDir, 0o755); err != nil {
		return errors.Wrap(err, "creating depth map directory")
	}

	queue := pipeline.NewQueue()
	driver := pipeline.NewDriver(queue, ranker, loader, seeder, dmDir, opts, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go driver.Run(ctx)

	for _, si := range images {
		driver.Submit(si.ID)
	}
	driver.Wait()
	cancel()

	maps := make([]*depth.DepthData, 0, len(images))
	cameras := make(map[uint32]*geometry.Camera, len(images))
	for _, si := range images {
		path := filepath.Join(dmDir, fmt.Sprintf("%04d.filtered.dmap", si.ID))
		dd, _, err := depthfile.Load(path, si.ID)
		if err != nil {
			logger.Warnw("skipping image with no filtered depth map", "imageID", si.ID, "error", err)
			continue
		}
		maps = append(maps, dd)
		cameras[uint32(si.ID)] = dd.Reference().Camera
	}
	if len(maps) == 0 {
		return errors.New("depthcore: no image produced a depth map")
	}

	var cloud *fusion.Cloud
	if fuse {
		cloud, err = fusion.FuseDepthMaps(maps, opts)
	} else {
		cloud, err = fusion.MergeDepthMaps(maps)
	}
	if err != nil {
		return errors.Wrap(err, "fusing depth maps")
	}

	filtered, err := fusion.VisibilityFilter(cloud, cameras, opts, logger)
	if err != nil {
		return errors.Wrap(err, "visibility filtering")
	}

	outPath := filepath.Join(outDir, "scene_dense.ply")
	out, err := os.Create(outPath)
	if err != nil {
		return errors.Wrap(err, "creating output point cloud")
	}
	defer out.Close()

	views := make(map[r3.Vector]int, filtered.Size())
	idx := 0
	filtered.PointCloud.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		views[p] = len(filtered.Views[idx])
		idx++
		return true
	})
	if err := pointcloud.ToPLY(filtered.PointCloud, out, views); err != nil {
		return errors.Wrap(err, "writing point cloud")
	}

	logger.Infow("wrote fused point cloud", "path", outPath, "points", filtered.Size())
	return nil
}
