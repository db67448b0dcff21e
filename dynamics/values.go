package dynamics

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dynamics/optimize"
	"go.viam.com/dynamics/spatialmath"
)

// PoseValue puts a rigid transform on the optimization manifold. Retraction
// composes a body-frame twist on the right; local coordinates are the log map
// of the relative transform.
type PoseValue struct {
	Pose spatialmath.Pose
}

// NewPoseValue wraps a pose for use as an optimization value.
func NewPoseValue(p spatialmath.Pose) PoseValue { return PoseValue{Pose: p} }

// Dim returns 6.
func (p PoseValue) Dim() int { return 6 }

// Retract composes the pose with the exponential of a body-frame twist.
func (p PoseValue) Retract(delta []float64) optimize.Value {
	return PoseValue{Pose: spatialmath.Compose(p.Pose, spatialmath.Exp(spatialmath.TwistFromSlice(delta)))}
}

// Local returns the twist taking this pose to another.
func (p PoseValue) Local(other optimize.Value) []float64 {
	o := other.(PoseValue)
	return spatialmath.Log(spatialmath.Between(p.Pose, o.Pose)).Slice()
}

// PriorJacobian supplies the exact derivative of the prior residual with
// respect to a retraction of this pose.
func (p PoseValue) PriorJacobian(prior optimize.Value) *mat.Dense {
	r := spatialmath.TwistFromSlice(prior.(PoseValue).Local(p))
	return spatialmath.LogJacobianInv(r)
}

// InsertPose assigns a link pose value.
func InsertPose(vs *optimize.Values, id, t int, pose spatialmath.Pose) error {
	return vs.Insert(PoseKey(id, t), NewPoseValue(pose))
}

// Pose extracts a link pose; absence is a usage error.
func Pose(vs *optimize.Values, id, t int) (spatialmath.Pose, error) {
	v, err := vs.At(PoseKey(id, t))
	if err != nil {
		return spatialmath.Pose{}, err
	}
	pv, ok := v.(PoseValue)
	if !ok {
		return spatialmath.Pose{}, errors.Errorf("value %s is not a pose", FormatKey(PoseKey(id, t)))
	}
	return pv.Pose, nil
}

// InsertTwist assigns a link twist value.
func InsertTwist(vs *optimize.Values, id, t int, twist spatialmath.Twist) error {
	return vs.Insert(TwistKey(id, t), optimize.Vector(twist.Slice()))
}

// Twist extracts a link twist; absence is a usage error.
func Twist(vs *optimize.Values, id, t int) (spatialmath.Twist, error) {
	v, err := vs.Vector(TwistKey(id, t))
	if err != nil {
		return spatialmath.Twist{}, err
	}
	return spatialmath.TwistFromSlice(v), nil
}

// InsertTwistAccel assigns a link twist-acceleration value.
func InsertTwistAccel(vs *optimize.Values, id, t int, accel spatialmath.Twist) error {
	return vs.Insert(TwistAccelKey(id, t), optimize.Vector(accel.Slice()))
}

// TwistAccel extracts a link twist acceleration; absence is a usage error.
func TwistAccel(vs *optimize.Values, id, t int) (spatialmath.Twist, error) {
	v, err := vs.Vector(TwistAccelKey(id, t))
	if err != nil {
		return spatialmath.Twist{}, err
	}
	return spatialmath.TwistFromSlice(v), nil
}

// InsertJointAngle assigns a joint coordinate value.
func InsertJointAngle(vs *optimize.Values, id, t int, q float64) error {
	return vs.Insert(JointAngleKey(id, t), optimize.Scalar(q))
}

// JointAngle extracts a joint coordinate; absence is a usage error.
func JointAngle(vs *optimize.Values, id, t int) (float64, error) {
	return vs.Scalar(JointAngleKey(id, t))
}

// InsertJointVel assigns a joint rate value.
func InsertJointVel(vs *optimize.Values, id, t int, v float64) error {
	return vs.Insert(JointVelKey(id, t), optimize.Scalar(v))
}

// JointVel extracts a joint rate; absence is a usage error.
func JointVel(vs *optimize.Values, id, t int) (float64, error) {
	return vs.Scalar(JointVelKey(id, t))
}

// InsertJointAccel assigns a joint acceleration value.
func InsertJointAccel(vs *optimize.Values, id, t int, a float64) error {
	return vs.Insert(JointAccelKey(id, t), optimize.Scalar(a))
}

// JointAccel extracts a joint acceleration; absence is a usage error.
func JointAccel(vs *optimize.Values, id, t int) (float64, error) {
	return vs.Scalar(JointAccelKey(id, t))
}

// InsertTorque assigns a joint torque value.
func InsertTorque(vs *optimize.Values, id, t int, tau float64) error {
	return vs.Insert(TorqueKey(id, t), optimize.Scalar(tau))
}

// Torque extracts a joint torque; absence is a usage error.
func Torque(vs *optimize.Values, id, t int) (float64, error) {
	return vs.Scalar(TorqueKey(id, t))
}

// InsertWrench assigns a joint wrench value.
func InsertWrench(vs *optimize.Values, id, t int, w spatialmath.Twist) error {
	return vs.Insert(WrenchKey(id, t), optimize.Vector(w.Slice()))
}

// Wrench extracts a joint wrench; absence is a usage error.
func Wrench(vs *optimize.Values, id, t int) (spatialmath.Twist, error) {
	v, err := vs.Vector(WrenchKey(id, t))
	if err != nil {
		return spatialmath.Twist{}, err
	}
	return spatialmath.TwistFromSlice(v), nil
}

// InsertContactWrench assigns a ground-reaction wrench value.
func InsertContactWrench(vs *optimize.Values, id, t int, w spatialmath.Twist) error {
	return vs.Insert(ContactWrenchKey(id, t), optimize.Vector(w.Slice()))
}

// ContactWrench extracts a ground-reaction wrench; absence is a usage error.
func ContactWrench(vs *optimize.Values, id, t int) (spatialmath.Twist, error) {
	v, err := vs.Vector(ContactWrenchKey(id, t))
	if err != nil {
		return spatialmath.Twist{}, err
	}
	return spatialmath.TwistFromSlice(v), nil
}

// InsertPhaseDuration assigns a phase duration value.
func InsertPhaseDuration(vs *optimize.Values, phase int, dt float64) error {
	return vs.Insert(PhaseDurationKey(phase), optimize.Scalar(dt))
}

// PhaseDuration extracts a phase duration; absence is a usage error.
func PhaseDuration(vs *optimize.Values, phase int) (float64, error) {
	return vs.Scalar(PhaseDurationKey(phase))
}
