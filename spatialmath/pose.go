// Package spatialmath defines spatial mathematical operations for rigid body
// kinematics and dynamics: poses on SE(3), twists and wrenches in se(3), and
// the exponential/logarithm maps and adjoints connecting them.
package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transformation in 3D: a rotation represented by a unit
// quaternion together with a translation. Poses are value types; all methods
// return new poses.
type Pose struct {
	rot   quat.Number
	trans r3.Vector
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return Pose{rot: quat.Number{Real: 1}}
}

// NewPose returns a pose with the given rotation and translation.
func NewPose(rotation quat.Number, point r3.Vector) Pose {
	return Pose{rot: normalize(rotation), trans: point}
}

// NewPoseFromPoint returns a pure translation with identity orientation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return Pose{rot: quat.Number{Real: 1}, trans: point}
}

// NewPoseFromAxisAngle returns the pose rotating by theta radians about the
// given axis, located at the given point.
func NewPoseFromAxisAngle(point, axis r3.Vector, theta float64) Pose {
	mq := mgl64.QuatRotate(theta, mgl64.Vec3{axis.X, axis.Y, axis.Z}.Normalize())
	return Pose{
		rot:   quat.Number{Real: mq.W, Imag: mq.X(), Jmag: mq.Y(), Kmag: mq.Z()},
		trans: point,
	}
}

// Point returns the translation of the pose.
func (p Pose) Point() r3.Vector {
	return p.trans
}

// Rotation returns the rotation quaternion of the pose.
func (p Pose) Rotation() quat.Number {
	return p.rot
}

// RotationMatrix returns the pose's rotation as a 3x3 matrix.
func (p Pose) RotationMatrix() mgl64.Mat3 {
	w, x, y, z := p.rot.Real, p.rot.Imag, p.rot.Jmag, p.rot.Kmag
	// column-major per mgl64
	return mgl64.Mat3{
		1 - 2*(y*y+z*z), 2 * (x*y + w*z), 2 * (x*z - w*y),
		2 * (x*y - w*z), 1 - 2*(x*x+z*z), 2 * (y*z + w*x),
		2 * (x*z + w*y), 2 * (y*z - w*x), 1 - 2*(x*x+y*y),
	}
}

// dualQuat converts the pose to a unit dual quaternion.
func (p Pose) dualQuat() dualquat.Number {
	d := dualquat.Number{Real: p.rot}
	tq := quat.Number{Imag: p.trans.X / 2, Jmag: p.trans.Y / 2, Kmag: p.trans.Z / 2}
	d.Dual = quat.Mul(tq, p.rot)
	return d
}

// poseFromDualQuat recovers a pose from a unit dual quaternion.
func poseFromDualQuat(d dualquat.Number) Pose {
	t := quat.Scale(2, quat.Mul(d.Dual, quat.Conj(d.Real)))
	return Pose{
		rot:   normalize(d.Real),
		trans: r3.Vector{X: t.Imag, Y: t.Jmag, Z: t.Kmag},
	}
}

// Compose returns the pose equivalent to applying p first, then q in p's frame.
func Compose(p, q Pose) Pose {
	return poseFromDualQuat(dualquat.Mul(p.dualQuat(), q.dualQuat()))
}

// Invert returns the inverse transformation of p.
func (p Pose) Invert() Pose {
	inv := quat.Conj(p.rot)
	return Pose{rot: inv, trans: rotateVector(inv, p.trans.Mul(-1))}
}

// Between returns the pose of q relative to p, i.e. p^-1 * q.
func Between(p, q Pose) Pose {
	return Compose(p.Invert(), q)
}

// TransformPoint applies the rigid transformation to a point.
func (p Pose) TransformPoint(pt r3.Vector) r3.Vector {
	return rotateVector(p.rot, pt).Add(p.trans)
}

// RotatePoint applies only the rotation part of the pose to a point.
func (p Pose) RotatePoint(pt r3.Vector) r3.Vector {
	return rotateVector(p.rot, pt)
}

// UnrotatePoint applies the inverse rotation of the pose to a point.
func (p Pose) UnrotatePoint(pt r3.Vector) r3.Vector {
	return rotateVector(quat.Conj(p.rot), pt)
}

// Interpolate returns the pose a fraction s along the geodesic from p to q;
// s=0 yields p and s=1 yields q. Translations interpolate linearly in the
// log-map sense.
func Interpolate(p, q Pose, s float64) Pose {
	delta := Log(Between(p, q))
	return Compose(p, Exp(delta.Scale(s)))
}

// PoseAlmostEqual returns whether two poses are within a tolerance of each
// other in rotation (quaternion distance, sign-insensitive) and translation.
func PoseAlmostEqual(p, q Pose, tol float64) bool {
	d := quat.Mul(p.rot, quat.Conj(q.rot))
	rotDist := math.Hypot(math.Hypot(d.Imag, d.Jmag), d.Kmag)
	return rotDist < tol && p.trans.Sub(q.trans).Norm() < tol
}

func rotateVector(q quat.Number, v r3.Vector) r3.Vector {
	vq := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rq := quat.Mul(quat.Mul(q, vq), quat.Conj(q))
	return r3.Vector{X: rq.Imag, Y: rq.Jmag, Z: rq.Kmag}
}

func normalize(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 || n == 1 {
		return q
	}
	return quat.Scale(1/n, q)
}
