package depthfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/viamdensify/mvs-depth-core/depth"
	"github.com/viamdensify/mvs-depth-core/geometry"
	"github.com/viamdensify/mvs-depth-core/rimage/transform"
	"github.com/viamdensify/mvs-depth-core/spatialmath"
)

func sampleDepthData() *depth.DepthData {
	intr := transform.PinholeCameraIntrinsics{Width: 4, Height: 3, Fx: 50, Fy: 50, Ppx: 2, Ppy: 1.5}
	cam := geometry.NewCamera(intr, spatialmath.NewIdentityRotationMatrix(), r3.Vector{X: 1, Y: 2, Z: 3})

	dd := depth.NewDepthData(7, nil)
	dd.DMin, dd.DMax = 1.5, 8.25
	dd.Views = []depth.ViewData{{Camera: cam}}
	dd.DepthMap = depth.NewScalarMap(4, 3)
	dd.NormalMap = depth.NewNormalMap(4, 3)
	dd.ConfMap = depth.NewScalarMap(4, 3)

	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			dd.DepthMap.Set(x, y, float64(x+y)+0.5)
			dd.NormalMap.Set(x, y, r3.Vector{X: 0, Y: 0, Z: -1})
			dd.ConfMap.Set(x, y, 0.1*float64(x))
		}
	}
	return dd
}

func TestSaveLoadRoundTripsAllPlanes(t *testing.T) {
	dd := sampleDepthData()
	path := filepath.Join(t.TempDir(), "0007.dmap")

	test.That(t, Save(path, dd, PlaneNormal|PlaneConfidence), test.ShouldBeNil)

	got, planes, err := Load(path, 7)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, planes, test.ShouldEqual, PlaneNormal|PlaneConfidence)
	test.That(t, got.DMin, test.ShouldAlmostEqual, dd.DMin, 1e-9)
	test.That(t, got.DMax, test.ShouldAlmostEqual, dd.DMax, 1e-9)
	test.That(t, got.DepthMap.Width(), test.ShouldEqual, 4)
	test.That(t, got.DepthMap.Height(), test.ShouldEqual, 3)

	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			test.That(t, got.DepthMap.At(x, y), test.ShouldAlmostEqual, dd.DepthMap.At(x, y), 1e-9)
			test.That(t, got.NormalMap.At(x, y), test.ShouldResemble, dd.NormalMap.At(x, y))
			test.That(t, got.ConfMap.At(x, y), test.ShouldAlmostEqual, dd.ConfMap.At(x, y), 1e-9)
		}
	}

	gotCam := got.Reference().Camera
	test.That(t, gotCam.Intrinsics.Width, test.ShouldEqual, 4)
	test.That(t, gotCam.Intrinsics.Fx, test.ShouldAlmostEqual, 50.0, 1e-9)
	test.That(t, gotCam.C, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
}

func TestSaveLoadRoundTripsWithoutOptionalPlanes(t *testing.T) {
	dd := sampleDepthData()
	path := filepath.Join(t.TempDir(), "0007.dmap")

	test.That(t, Save(path, dd, 0), test.ShouldBeNil)

	got, planes, err := Load(path, 7)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, planes, test.ShouldEqual, Planes(0))
	test.That(t, got.DepthMap.At(2, 1), test.ShouldAlmostEqual, dd.DepthMap.At(2, 1), 1e-9)
	// No normal/confidence plane was written: the decoded maps stay at their
	// zero-value invalid fill.
	test.That(t, got.NormalMap.At(2, 1), test.ShouldResemble, r3.Vector{})
	test.That(t, got.ConfMap.At(2, 1), test.ShouldEqual, 0.0)
}

func TestSaveLoadRoundTripsThroughGzip(t *testing.T) {
	dd := sampleDepthData()
	path := filepath.Join(t.TempDir(), "0007.dmap.gz")

	test.That(t, Save(path, dd, PlaneNormal), test.ShouldBeNil)

	got, planes, err := Load(path, 7)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, planes, test.ShouldEqual, PlaneNormal)
	test.That(t, got.DepthMap.At(3, 2), test.ShouldAlmostEqual, dd.DepthMap.At(3, 2), 1e-9)
}

func TestSaveFailsWithoutReferenceCamera(t *testing.T) {
	dd := depth.NewDepthData(1, nil)
	dd.DepthMap = depth.NewScalarMap(2, 2)
	path := filepath.Join(t.TempDir(), "0001.dmap")

	test.That(t, Save(path, dd, 0), test.ShouldNotBeNil)
}

func TestLoadRejectsBadMagicNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.dmap")
	test.That(t, os.WriteFile(path, []byte("not a depth file, just text padding to be long enough"), 0o600), test.ShouldBeNil)

	_, _, err := Load(path, 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadRejectsBadDimensions(t *testing.T) {
	dd := sampleDepthData()
	path := filepath.Join(t.TempDir(), "0007.dmap")
	test.That(t, Save(path, dd, 0), test.ShouldBeNil)

	raw, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)

	// Corrupt the width field (the 3rd little-endian uint64, right after
	// magic and planes) to a negative-looking huge value.
	for i := 0; i < 8; i++ {
		raw[16+i] = 0xff
	}
	corrupted := filepath.Join(t.TempDir(), "corrupt.dmap")
	test.That(t, os.WriteFile(corrupted, raw, 0o600), test.ShouldBeNil)

	_, _, err = Load(corrupted, 1)
	test.That(t, err, test.ShouldNotBeNil)
}
