package spatialmath

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// RotationMatrix is a 3x3 rotation, stored row-major as used throughout the
// camera-pose code in rimage/transform (see CamPose.Rotation there): index
// r*3+c is row r, column c.
type RotationMatrix struct {
	data [9]float64
}

// NewRotationMatrix builds a RotationMatrix from 9 row-major values.
func NewRotationMatrix(data []float64) (*RotationMatrix, error) {
	if len(data) != 9 {
		return nil, errors.Errorf("RotationMatrix requires 9 values, got %d", len(data))
	}
	rm := &RotationMatrix{}
	copy(rm.data[:], data)
	return rm, nil
}

// NewIdentityRotationMatrix returns the identity rotation.
func NewIdentityRotationMatrix() *RotationMatrix {
	return &RotationMatrix{data: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// At returns the value at row r, column c (0-indexed).
func (rm *RotationMatrix) At(r, c int) float64 {
	return rm.data[r*3+c]
}

// Row returns row r as a vector.
func (rm *RotationMatrix) Row(r int) r3.Vector {
	return r3.Vector{X: rm.At(r, 0), Y: rm.At(r, 1), Z: rm.At(r, 2)}
}

// RawRowMajor returns the underlying 9 values, row-major.
func (rm *RotationMatrix) RawRowMajor() [9]float64 {
	return rm.data
}

// MulVec applies the rotation to v: returns R*v.
func (rm *RotationMatrix) MulVec(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rm.Row(0).Dot(v),
		Y: rm.Row(1).Dot(v),
		Z: rm.Row(2).Dot(v),
	}
}

// Transpose returns R^T, which for a pure rotation is also its inverse.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	out := &RotationMatrix{}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out.data[c*3+r] = rm.data[r*3+c]
		}
	}
	return out
}

// Mul composes two rotations, returning rm*other.
func (rm *RotationMatrix) Mul(other *RotationMatrix) *RotationMatrix {
	out := &RotationMatrix{}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += rm.At(r, k) * other.At(k, c)
			}
			out.data[r*3+c] = sum
		}
	}
	return out
}

// Pose is a rigid transform: a translation (Point) plus a rotation
// (Orientation), following the split used by spatialmath.NewPose call
// sites in rimage/transform/cam_poses.go.
type Pose struct {
	point       r3.Vector
	orientation *RotationMatrix
}

// NewPose constructs a Pose from a translation and rotation.
func NewPose(point r3.Vector, orientation *RotationMatrix) *Pose {
	return &Pose{point: point, orientation: orientation}
}

// Point returns the pose's translation component.
func (p *Pose) Point() r3.Vector { return p.point }

// Orientation returns the pose's rotation component.
func (p *Pose) Orientation() *RotationMatrix { return p.orientation }
