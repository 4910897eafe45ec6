// Package spatialmath defines the pose representations exchanged with a Universal Robots controller and
// the conversions between them.
package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// CartesianPose is an end effector position in meters with a unit quaternion orientation.
// The orientation is not normalized on input; callers are expected to supply a unit quaternion.
type CartesianPose struct {
	Point       r3.Vector
	Orientation quat.Number
}

// AxisAnglePose is an end effector position in meters with an R3 rotation vector, the layout a
// UR controller reports and accepts.
type AxisAnglePose struct {
	Point          r3.Vector
	RotationVector r3.Vector
}

// NewCartesianPose builds a CartesianPose from a point and a (w, x, y, z) quaternion.
func NewCartesianPose(pt r3.Vector, w, x, y, z float64) CartesianPose {
	return CartesianPose{Point: pt, Orientation: quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}}
}

// NewZeroPose returns the pose at the origin with no rotation.
func NewZeroPose() CartesianPose {
	return CartesianPose{Orientation: NewZeroOrientation()}
}

// AxisAngleToPose converts a position and rotation vector into a CartesianPose. Rotation vectors shorter
// than AngleEpsilon map to the identity quaternion exactly.
func AxisAngleToPose(pt, rotationVector r3.Vector) CartesianPose {
	return CartesianPose{Point: pt, Orientation: R3ToR4(rotationVector).ToQuat()}
}

// PoseToAxisAngle converts a CartesianPose into the rotation vector form. A quaternion whose vector part
// is shorter than AngleEpsilon yields the zero rotation vector exactly.
func PoseToAxisAngle(pose CartesianPose) AxisAnglePose {
	return AxisAnglePose{Point: pose.Point, RotationVector: QuatToR4AA(pose.Orientation).ToR3()}
}

// ToAxisAngle is shorthand for PoseToAxisAngle.
func (p CartesianPose) ToAxisAngle() AxisAnglePose {
	return PoseToAxisAngle(p)
}

// ToPose is shorthand for AxisAngleToPose.
func (p AxisAnglePose) ToPose() CartesianPose {
	return AxisAngleToPose(p.Point, p.RotationVector)
}

// Array returns the pose as [x, y, z, qw, qx, qy, qz].
func (p CartesianPose) Array() [7]float64 {
	return [7]float64{
		p.Point.X, p.Point.Y, p.Point.Z,
		p.Orientation.Real, p.Orientation.Imag, p.Orientation.Jmag, p.Orientation.Kmag,
	}
}

// CartesianPoseFromArray is the inverse of CartesianPose.Array.
func CartesianPoseFromArray(xyzq [7]float64) CartesianPose {
	return NewCartesianPose(r3.Vector{X: xyzq[0], Y: xyzq[1], Z: xyzq[2]}, xyzq[3], xyzq[4], xyzq[5], xyzq[6])
}

// Array returns the pose as [x, y, z, rx, ry, rz].
func (p AxisAnglePose) Array() [6]float64 {
	return [6]float64{
		p.Point.X, p.Point.Y, p.Point.Z,
		p.RotationVector.X, p.RotationVector.Y, p.RotationVector.Z,
	}
}

// AxisAnglePoseFromArray is the inverse of AxisAnglePose.Array.
func AxisAnglePoseFromArray(pose [6]float64) AxisAnglePose {
	return AxisAnglePose{
		Point:          r3.Vector{X: pose[0], Y: pose[1], Z: pose[2]},
		RotationVector: r3.Vector{X: pose[3], Y: pose[4], Z: pose[5]},
	}
}

func (p CartesianPose) String() string {
	return fmt.Sprintf("{X:%.6f Y:%.6f Z:%.6f QW:%.6f QX:%.6f QY:%.6f QZ:%.6f}",
		p.Point.X, p.Point.Y, p.Point.Z,
		p.Orientation.Real, p.Orientation.Imag, p.Orientation.Jmag, p.Orientation.Kmag)
}

func (p AxisAnglePose) String() string {
	return fmt.Sprintf("p[%f,%f,%f,%f,%f,%f]",
		p.Point.X, p.Point.Y, p.Point.Z,
		p.RotationVector.X, p.RotationVector.Y, p.RotationVector.Z)
}

// PoseAlmostEqual reports whether two poses are within tol of each other in position and describe
// approximately the same rotation.
func PoseAlmostEqual(a, b CartesianPose, tol float64) bool {
	return a.Point.Sub(b.Point).Norm() <= tol && OrientationAlmostEqual(a.Orientation, b.Orientation)
}
