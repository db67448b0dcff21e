package robot

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/dynamics/spatialmath"
)

// JointType enumerates the supported one-degree-of-freedom joint kinds.
type JointType uint8

const (
	// Revolute joints rotate about an axis through the joint origin.
	Revolute JointType = iota
	// Prismatic joints translate along an axis.
	Prismatic
	// Screw joints couple rotation about the axis with translation along it.
	Screw
)

func (t JointType) String() string {
	switch t {
	case Revolute:
		return "revolute"
	case Prismatic:
		return "prismatic"
	case Screw:
		return "screw"
	}
	return "unknown"
}

// Limits bound a joint's motion. Zero-valued bounds mean unbounded.
type Limits struct {
	PositionLower float64
	PositionUpper float64
	Velocity      float64
	Torque        float64
	Damping       float64
}

// JointParams collects everything needed to construct a joint.
type JointParams struct {
	Name string
	Type JointType
	// Parent and Child name the links the joint connects.
	Parent string
	Child  string
	// WTj is the pose of the joint frame in the world at rest.
	WTj spatialmath.Pose
	// Axis is the motion axis expressed in the joint frame.
	Axis r3.Vector
	// ThreadPitch is the translation per revolution for screw joints, in
	// meters. Ignored for other kinds.
	ThreadPitch float64
	Limits      Limits
}

// Joint connects a parent link to a child link with one degree of freedom.
// The screw axis and rest transform are computed once at construction and are
// expressed in the child's center-of-mass frame, so all factor-side math is
// joint-kind agnostic.
type Joint struct {
	id     int
	name   string
	jtype  JointType
	axis   r3.Vector
	pitch  float64
	wTj    spatialmath.Pose
	parent int
	child  int
	limits Limits

	screwAxis spatialmath.Twist
	restPMC   spatialmath.Pose
}

// ID returns the joint's stable id assigned at model-build time.
func (j *Joint) ID() int { return j.id }

// Name returns the joint's name.
func (j *Joint) Name() string { return j.name }

// Type returns the joint kind.
func (j *Joint) Type() JointType { return j.jtype }

// Parent returns the parent link's id.
func (j *Joint) Parent() int { return j.parent }

// Child returns the child link's id.
func (j *Joint) Child() int { return j.child }

// Limits returns the joint's motion bounds.
func (j *Joint) Limits() Limits { return j.limits }

// WTj returns the joint frame in the world at rest.
func (j *Joint) WTj() spatialmath.Pose { return j.wTj }

// ScrewAxis returns the joint's unit screw axis expressed in the child link's
// center-of-mass frame.
func (j *Joint) ScrewAxis() spatialmath.Twist { return j.screwAxis }

// RestTransform returns the pose of the child's center-of-mass frame relative
// to the parent's at the zero configuration.
func (j *Joint) RestTransform() spatialmath.Pose { return j.restPMC }

// ParentToChild returns the pose of the child's center-of-mass frame relative
// to the parent's at joint coordinate q.
func (j *Joint) ParentToChild(q float64) spatialmath.Pose {
	return spatialmath.Compose(j.restPMC, spatialmath.Exp(j.screwAxis.Scale(q)))
}

// ChildPoseFrom predicts the world pose of the child's center-of-mass frame
// given the parent's and the joint coordinate.
func (j *Joint) ChildPoseFrom(wTp spatialmath.Pose, q float64) spatialmath.Pose {
	return spatialmath.Compose(wTp, j.ParentToChild(q))
}

// ParentPoseFrom recovers the world pose of the parent's center-of-mass frame
// given the child's and the joint coordinate.
func (j *Joint) ParentPoseFrom(wTc spatialmath.Pose, q float64) spatialmath.Pose {
	return spatialmath.Compose(wTc, j.ParentToChild(q).Invert())
}

// ChildTwistFrom propagates the parent's body twist through the joint at
// coordinate q and rate qdot. Twists are in each link's center-of-mass frame.
func (j *Joint) ChildTwistFrom(parentTwist spatialmath.Twist, q, qdot float64) spatialmath.Twist {
	cTp := j.ParentToChild(q).Invert()
	return spatialmath.TransformTwist(cTp, parentTwist).Add(j.screwAxis.Scale(qdot))
}

// ParentTwistFrom inverts ChildTwistFrom, recovering the parent's body twist
// from the child's.
func (j *Joint) ParentTwistFrom(childTwist spatialmath.Twist, q, qdot float64) spatialmath.Twist {
	pTc := j.ParentToChild(q)
	return spatialmath.TransformTwist(pTc, childTwist.Sub(j.screwAxis.Scale(qdot)))
}

// computeScrewAxis derives the unit screw axis in the child's center-of-mass
// frame. This is the only place joint kinds are told apart; everything
// downstream works from the axis alone.
func computeScrewAxis(jtype JointType, wTj spatialmath.Pose, axis r3.Vector, pitch float64, wTcomChild spatialmath.Pose) spatialmath.Twist {
	axisW := wTj.RotatePoint(axis)
	axisC := wTcomChild.UnrotatePoint(axisW)
	// joint origin in the child com frame
	p := wTcomChild.Invert().TransformPoint(wTj.Point())
	switch jtype {
	case Prismatic:
		return spatialmath.NewTwist(r3.Vector{}, axisC)
	case Screw:
		lin := p.Cross(axisC).Add(axisC.Mul(pitch / (2 * math.Pi)))
		return spatialmath.NewTwist(axisC, lin)
	default:
		return spatialmath.NewTwist(axisC, p.Cross(axisC))
	}
}
