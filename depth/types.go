// Package depth implements the per-image depth-map pipeline: the
// DepthData unit of work, view selection and initialization, the
// PatchMatch estimator, post-processing, and the cross-view filter
// (spec §4.1-§4.5).
package depth

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/golang/geo/r3"

	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/logging"
	"github.com/viamdensify/mvs-depth-core/rimage"
)

// Image is a source frame: the color image, its grayscale buffer (used by
// ncc patch sampling), a stable id, and the scale factor the grayscale
// buffer was produced at. Generalizes rimage.Image with the parallel
// single-channel buffer and identity bookkeeping the pipeline needs.
type Image struct {
	ID    uint32
	Color *rimage.Image
	Gray  *image.Gray
	Scale float64
}

// Width and Height report the grayscale buffer's dimensions, which is what
// every geometric operation in this package actually samples.
func (img *Image) Width() int  { return img.Gray.Bounds().Dx() }
func (img *Image) Height() int { return img.Gray.Bounds().Dy() }

// ScalarMap is a dense H*W row-major float64 buffer: a depth map or a
// confidence map. 0 marks an invalid entry for depth maps; generalizes
// rimage.DepthMap's flat-buffer-plus-accessor shape from int to float64.
type ScalarMap struct {
	width, height int
	data          []float64
}

// NewScalarMap allocates a width x height map with every entry 0 (invalid).
func NewScalarMap(width, height int) *ScalarMap {
	return &ScalarMap{width: width, height: height, data: make([]float64, width*height)}
}

// Width and Height return this map's dimensions.
func (m *ScalarMap) Width() int  { return m.width }
func (m *ScalarMap) Height() int { return m.height }

// In reports whether (x,y) is within bounds.
func (m *ScalarMap) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.width && y < m.height
}

// At returns the value at (x,y).
func (m *ScalarMap) At(x, y int) float64 { return m.data[y*m.width+x] }

// Set writes the value at (x,y).
func (m *ScalarMap) Set(x, y int, v float64) { m.data[y*m.width+x] = v }

// Clear invalidates (x,y), writing 0.
func (m *ScalarMap) Clear(x, y int) { m.Set(x, y, 0) }

// NormalMap is a dense H*W row-major r3.Vector buffer. The zero vector
// marks an invalid entry, mirroring ScalarMap's 0-is-invalid convention.
type NormalMap struct {
	width, height int
	data          []r3.Vector
}

// NewNormalMap allocates a width x height map with every entry the zero
// vector (invalid).
func NewNormalMap(width, height int) *NormalMap {
	return &NormalMap{width: width, height: height, data: make([]r3.Vector, width*height)}
}

// Width and Height return this map's dimensions.
func (m *NormalMap) Width() int  { return m.width }
func (m *NormalMap) Height() int { return m.height }

// At returns the normal at (x,y).
func (m *NormalMap) At(x, y int) r3.Vector { return m.data[y*m.width+x] }

// Set writes the normal at (x,y).
func (m *NormalMap) Set(x, y int, n r3.Vector) { m.data[y*m.width+x] = n }

// Clear invalidates (x,y).
func (m *NormalMap) Clear(x, y int) { m.Set(x, y, r3.Vector{}) }

// ViewData pairs an Image with the camera valid for its current scale.
// Invariant: camera's pixel dimensions match image.Width()/Height() (spec
// §3). Kept a plain value per the teacher's §9 guidance against polymorphic
// scale-switched wrappers; InitViews rebuilds Camera whenever Scale changes.
type ViewData struct {
	Image  *Image
	Scale  float64
	Camera *geometry.Camera
}

// NeighborScore ranks a candidate neighbor view for a reference image.
type NeighborScore struct {
	ImageID int
	Scale   float64
	Score   float64
}

// DepthData is the unit of work the pipeline drives across its phases:
// the reference plus selected neighbor views, triangulated sparse seeds,
// and the evolving depth/normal/confidence maps. RefCount governs lazy
// on-disk residence (spec §9's open/close replacement for manual
// ref-counting): Acquire loads on the 0->1 transition, Release frees
// buffers on the N->0 transition.
type DepthData struct {
	ImageID int

	// Views holds the reference at index 0 and selected neighbors at
	// 1..k, per spec §3's DepthData.views.
	Views     []ViewData
	Neighbors []NeighborScore
	Seeds     []int

	DepthMap  *ScalarMap
	NormalMap *NormalMap
	ConfMap   *ScalarMap

	// NeighborMaps holds on-disk depth maps for selected neighbors,
	// loaded by InitViews(loadDepthMaps=1) so the cross-view filter can
	// consult them without re-running estimation.
	NeighborMaps map[int]*ScalarMap

	DMin, DMax float64

	logger   logging.Logger
	refCount atomic.Int32
	mu       sync.Mutex

	// Load is invoked on the 0->1 refCount transition; Unload on the
	// N->0 transition. Both are optional: a DepthData freshly built by
	// InitViews in-process has nothing to lazily (re)load.
	Load   func(dd *DepthData) error
	Unload func(dd *DepthData)
}

// NewDepthData constructs an empty DepthData for imageID.
func NewDepthData(imageID int, logger logging.Logger) *DepthData {
	return &DepthData{ImageID: imageID, NeighborMaps: map[int]*ScalarMap{}, logger: logger}
}

// Acquire increments the reference count, triggering Load on the 0->1
// transition. Callers must pair every Acquire with a Release.
func (dd *DepthData) Acquire() error {
	if dd.refCount.Add(1) == 1 && dd.Load != nil {
		dd.mu.Lock()
		defer dd.mu.Unlock()
		return dd.Load(dd)
	}
	return nil
}

// Release decrements the reference count, triggering Unload on the N->0
// transition.
func (dd *DepthData) Release() {
	if dd.refCount.Add(-1) == 0 && dd.Unload != nil {
		dd.mu.Lock()
		defer dd.mu.Unlock()
		dd.Unload(dd)
	}
}

// RefCount reports the current reference count, for tests and diagnostics.
func (dd *DepthData) RefCount() int32 { return dd.refCount.Load() }

// Reference returns the reference view (index 0), or the zero ViewData if
// Views hasn't been populated yet.
func (dd *DepthData) Reference() ViewData {
	if len(dd.Views) == 0 {
		return ViewData{}
	}
	return dd.Views[0]
}

// Targets returns the neighbor views, indices 1..k of Views.
func (dd *DepthData) Targets() []ViewData {
	if len(dd.Views) < 2 {
		return nil
	}
	return dd.Views[1:]
}
