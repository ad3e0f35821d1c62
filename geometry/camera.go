// Package geometry supplies the pinhole-camera and homography primitives
// the depth-map pipeline is built on: world<->camera<->image transforms,
// the depth-similarity predicate, and normal<->spherical conversions used
// by gap interpolation. It generalizes
// rimage/transform.PinholeCameraIntrinsics (K) with a rigid world pose
// (R, C) the way rimage/transform/cam_poses.go pairs a PinholeCameraModel
// with a spatialmath.Pose.
package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/viamdensify/mvs-depth-core/rimage/transform"
	"github.com/viamdensify/mvs-depth-core/spatialmath"
)

// Camera is a calibrated pinhole camera: intrinsics K plus a world pose
// (rotation R, center C) per spec.md §3.
type Camera struct {
	Intrinsics transform.PinholeCameraIntrinsics
	R          *spatialmath.RotationMatrix // world -> camera rotation
	C          r3.Vector                   // camera center, world coordinates
}

// NewCamera builds a Camera from intrinsics and a world pose.
func NewCamera(intrinsics transform.PinholeCameraIntrinsics, rotation *spatialmath.RotationMatrix, center r3.Vector) *Camera {
	return &Camera{Intrinsics: intrinsics, R: rotation, C: center}
}

// Width and Height forward the intrinsics' pixel dimensions.
func (c *Camera) Width() int  { return c.Intrinsics.Width }
func (c *Camera) Height() int { return c.Intrinsics.Height }

// WorldToCamera transforms a world point into this camera's frame.
func (c *Camera) WorldToCamera(p r3.Vector) r3.Vector {
	return c.R.MulVec(p.Sub(c.C))
}

// CameraToWorld transforms a camera-frame point into world coordinates.
func (c *Camera) CameraToWorld(p r3.Vector) r3.Vector {
	return c.R.Transpose().MulVec(p).Add(c.C)
}

// CameraToImage projects a camera-frame point to sub-pixel image
// coordinates (not rounded) and returns its depth (camera-frame Z). A point
// at zero depth maps to (-1,-1), the sentinel
// PinholeCameraIntrinsics.PointToPixel also uses; a point behind the camera
// is projected like any other, so callers check depth > 0.
func (c *Camera) CameraToImage(p r3.Vector) (x, y, depth float64) {
	if p.Z == 0 {
		return -1, -1, 0
	}
	x = p.X/p.Z*c.Intrinsics.Fx + c.Intrinsics.Ppx
	y = p.Y/p.Z*c.Intrinsics.Fy + c.Intrinsics.Ppy
	return x, y, p.Z
}

// ImageToCamera unprojects a pixel with depth into the camera frame.
func (c *Camera) ImageToCamera(x, y, depth float64) r3.Vector {
	px, py, pz := c.Intrinsics.PixelToPoint(x, y, depth)
	return r3.Vector{X: px, Y: py, Z: pz}
}

// ImageToWorld unprojects a pixel with depth directly into world
// coordinates.
func (c *Camera) ImageToWorld(x, y, depth float64) r3.Vector {
	return c.CameraToWorld(c.ImageToCamera(x, y, depth))
}

// WorldToImage projects a world point into this camera's pixel plane,
// returning the camera-frame depth alongside the pixel coordinates.
func (c *Camera) WorldToImage(p r3.Vector) (x, y, depth float64) {
	return c.CameraToImage(c.WorldToCamera(p))
}

// ViewRay returns the unit ray from the camera center through pixel (x,y),
// expressed in the reference camera's own frame (i.e. ImageToCamera at
// depth 1, normalized). Used by the front-facing normal invariant check.
func (c *Camera) ViewRay(x, y float64) r3.Vector {
	return c.ImageToCamera(x, y, 1).Normalize()
}

// Scaled returns a new Camera whose intrinsics describe the same physical
// camera observing an image resized by factor (≤1 downsamples), per
// ViewData's invariant that its camera matches its image's dimensions.
func (c *Camera) Scaled(factor float64) *Camera {
	if factor == 1 {
		return c
	}
	scaled := c.Intrinsics
	scaled.Width = int(math.Round(float64(c.Intrinsics.Width) * factor))
	scaled.Height = int(math.Round(float64(c.Intrinsics.Height) * factor))
	scaled.Fx *= factor
	scaled.Fy *= factor
	scaled.Ppx *= factor
	scaled.Ppy *= factor
	return NewCamera(scaled, c.R, c.C)
}

// KMatrix returns the 3x3 intrinsic matrix, grounded on
// PinholeCameraIntrinsics.GetCameraMatrix.
func (c *Camera) KMatrix() *mat.Dense {
	return c.Intrinsics.GetCameraMatrix()
}

// CheckValid validates a camera's intrinsics are usable, forwarding to
// PinholeCameraIntrinsics.CheckValid.
func (c *Camera) CheckValid() error {
	if c == nil {
		return errors.New("camera is nil")
	}
	if c.R == nil {
		return errors.New("camera has no rotation")
	}
	return c.Intrinsics.CheckValid()
}
