// Package depthfile persists a DepthData's depth/normal/confidence maps
// plus the reference camera that produced them, extending
// rimage/depth_map.go's length-prefixed little-endian-int64 format to
// float64 planes and an embedded camera pose. Filenames follow the
// {imageId:04d}.dmap / .filtered.dmap / .filtered.cmap / .geo.dmap
// convention (spec §4.8): the driver picks the suffix, this package only
// cares about the bytes.
package depthfile

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viamdensify/mvs-depth-core/depth"
	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/rimage/transform"
	"github.com/viamdensify/mvs-depth-core/spatialmath"
)

// magic replaces rimage/depth_map.go's raw-width-as-sentinel trick with an
// explicit version tag, since this format's header carries more than a
// width/height pair.
const magic uint64 = 0x4d565344504d4131 // "MVSDPMA1" as 8 ASCII bytes

// Planes selects which optional planes a file carries beyond depth.
type Planes uint8

const (
	// PlaneNormal includes the per-pixel surface normal.
	PlaneNormal Planes = 1 << 0
	// PlaneConfidence includes the per-pixel confidence.
	PlaneConfidence Planes = 1 << 1
)

// Save writes dd's depth map, and whichever of its normal/confidence maps
// planes selects, to path. A ".gz" extension gzip-compresses the stream.
func Save(path string, dd *depth.DepthData, planes Planes) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "depthfile: creating file")
	}
	defer f.Close()

	var out io.Writer = f
	var gz *gzip.Writer
	if filepath.Ext(path) == ".gz" {
		gz = gzip.NewWriter(f)
		out = gz
	}

	if err := writeTo(out, dd, planes); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return errors.Wrap(err, "depthfile: closing gzip stream")
		}
	}
	return f.Sync()
}

// Load reads a file written by Save into a new DepthData named imageID,
// whose Views[0] is a reference-only ViewData carrying the saved camera
// (no image, since depth files never store pixels).
func Load(path string, imageID int) (*depth.DepthData, Planes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "depthfile: opening file")
	}
	defer f.Close()

	var in io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, 0, errors.Wrap(err, "depthfile: opening gzip stream")
		}
		defer gz.Close()
		in = gz
	}

	return readFrom(bufio.NewReader(in), imageID)
}

func writeTo(w io.Writer, dd *depth.DepthData, planes Planes) error {
	ref := dd.Reference()
	if ref.Camera == nil {
		return errors.New("depthfile: depth data has no reference camera")
	}
	bw := bufio.NewWriter(w)

	writeU64(bw, magic)
	writeU64(bw, uint64(planes))
	width, height := dd.DepthMap.Width(), dd.DepthMap.Height()
	writeU64(bw, uint64(width))
	writeU64(bw, uint64(height))
	writeF64(bw, dd.DMin)
	writeF64(bw, dd.DMax)
	writeCamera(bw, ref.Camera)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			writeF64(bw, dd.DepthMap.At(x, y))
		}
	}
	if planes&PlaneNormal != 0 {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				n := dd.NormalMap.At(x, y)
				writeF64(bw, n.X)
				writeF64(bw, n.Y)
				writeF64(bw, n.Z)
			}
		}
	}
	if planes&PlaneConfidence != 0 {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				writeF64(bw, dd.ConfMap.At(x, y))
			}
		}
	}
	return bw.Flush()
}

func readFrom(r *bufio.Reader, imageID int) (*depth.DepthData, Planes, error) {
	got, err := readU64(r)
	if err != nil {
		return nil, 0, errors.Wrap(err, "depthfile: reading magic")
	}
	if got != magic {
		return nil, 0, errors.Errorf("depthfile: bad magic number %x, not a depth-map file", got)
	}

	rawPlanes, err := readU64(r)
	if err != nil {
		return nil, 0, errors.Wrap(err, "depthfile: reading planes")
	}
	planes := Planes(rawPlanes)

	rawWidth, err := readU64(r)
	if err != nil {
		return nil, 0, errors.Wrap(err, "depthfile: reading width")
	}
	rawHeight, err := readU64(r)
	if err != nil {
		return nil, 0, errors.Wrap(err, "depthfile: reading height")
	}
	width, height := int(rawWidth), int(rawHeight)
	if width <= 0 || width >= 100000 || height <= 0 || height >= 100000 {
		return nil, 0, errors.Errorf("depthfile: bad width/height %d x %d", width, height)
	}

	dMin, err := readF64(r)
	if err != nil {
		return nil, 0, err
	}
	dMax, err := readF64(r)
	if err != nil {
		return nil, 0, err
	}
	cam, err := readCamera(r)
	if err != nil {
		return nil, 0, err
	}

	dd := depth.NewDepthData(imageID, nil)
	dd.DMin, dd.DMax = dMin, dMax
	dd.Views = []depth.ViewData{{Camera: cam}}
	dd.DepthMap = depth.NewScalarMap(width, height)
	dd.NormalMap = depth.NewNormalMap(width, height)
	dd.ConfMap = depth.NewScalarMap(width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v, err := readF64(r)
			if err != nil {
				return nil, 0, errors.Wrap(err, "depthfile: reading depth plane")
			}
			dd.DepthMap.Set(x, y, v)
		}
	}
	if planes&PlaneNormal != 0 {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				nx, err := readF64(r)
				if err != nil {
					return nil, 0, errors.Wrap(err, "depthfile: reading normal plane")
				}
				ny, err := readF64(r)
				if err != nil {
					return nil, 0, errors.Wrap(err, "depthfile: reading normal plane")
				}
				nz, err := readF64(r)
				if err != nil {
					return nil, 0, errors.Wrap(err, "depthfile: reading normal plane")
				}
				dd.NormalMap.Set(x, y, r3.Vector{X: nx, Y: ny, Z: nz})
			}
		}
	}
	if planes&PlaneConfidence != 0 {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v, err := readF64(r)
				if err != nil {
					return nil, 0, errors.Wrap(err, "depthfile: reading confidence plane")
				}
				dd.ConfMap.Set(x, y, v)
			}
		}
	}

	return dd, planes, nil
}

// writeCamera serializes a camera's intrinsics (width, height, fx, fy, ppx,
// ppy), its row-major rotation (9 values) and its world center (3 values).
func writeCamera(w io.Writer, cam *geometry.Camera) {
	writeU64(w, uint64(cam.Intrinsics.Width))
	writeU64(w, uint64(cam.Intrinsics.Height))
	writeF64(w, cam.Intrinsics.Fx)
	writeF64(w, cam.Intrinsics.Fy)
	writeF64(w, cam.Intrinsics.Ppx)
	writeF64(w, cam.Intrinsics.Ppy)
	rot := cam.R.RawRowMajor()
	for _, v := range rot {
		writeF64(w, v)
	}
	writeF64(w, cam.C.X)
	writeF64(w, cam.C.Y)
	writeF64(w, cam.C.Z)
}

func readCamera(r *bufio.Reader) (*geometry.Camera, error) {
	width, err := readU64(r)
	if err != nil {
		return nil, err
	}
	height, err := readU64(r)
	if err != nil {
		return nil, err
	}
	fx, err := readF64(r)
	if err != nil {
		return nil, err
	}
	fy, err := readF64(r)
	if err != nil {
		return nil, err
	}
	ppx, err := readF64(r)
	if err != nil {
		return nil, err
	}
	ppy, err := readF64(r)
	if err != nil {
		return nil, err
	}

	rot := make([]float64, 9)
	for i := range rot {
		v, err := readF64(r)
		if err != nil {
			return nil, err
		}
		rot[i] = v
	}
	rm, err := spatialmath.NewRotationMatrix(rot)
	if err != nil {
		return nil, errors.Wrap(err, "depthfile: decoding rotation")
	}

	cx, err := readF64(r)
	if err != nil {
		return nil, err
	}
	cy, err := readF64(r)
	if err != nil {
		return nil, err
	}
	cz, err := readF64(r)
	if err != nil {
		return nil, err
	}

	intrinsics := transform.PinholeCameraIntrinsics{
		Width: int(width), Height: int(height),
		Fx: fx, Fy: fy, Ppx: ppx, Ppy: ppy,
	}
	return geometry.NewCamera(intrinsics, rm, r3.Vector{X: cx, Y: cy, Z: cz}), nil
}

func writeU64(w io.Writer, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = w.Write(buf[:])
}

func writeF64(w io.Writer, v float64) {
	writeU64(w, math.Float64bits(v))
}

func readU64(r *bufio.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("short read: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readF64(r *bufio.Reader) (float64, error) {
	v, err := readU64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}
