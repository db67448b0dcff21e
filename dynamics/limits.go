package dynamics

import (
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dynamics/optimize"
	"go.viam.com/dynamics/robot"
)

// JointLimitFactor penalizes a joint coordinate outside its position bounds
// with a hinge loss: zero inside the bounds, linear distance outside.
type JointLimitFactor struct {
	joint *robot.Joint
	t     int
	noise *optimize.NoiseModel
}

// NewJointLimitFactor returns a limit factor for one joint at one timestep.
func NewJointLimitFactor(j *robot.Joint, t int, noise *optimize.NoiseModel) *JointLimitFactor {
	return &JointLimitFactor{joint: j, t: t, noise: noise}
}

// Keys returns the joint angle.
func (f *JointLimitFactor) Keys() []optimize.Key {
	return []optimize.Key{JointAngleKey(f.joint.ID(), f.t)}
}

// Dim returns 1.
func (f *JointLimitFactor) Dim() int { return 1 }

// Noise returns the factor's noise model.
func (f *JointLimitFactor) Noise() *optimize.NoiseModel { return f.noise }

// Residual returns the hinge distance to the nearest bound, zero inside.
func (f *JointLimitFactor) Residual(vs *optimize.Values) ([]float64, error) {
	q, err := JointAngle(vs, f.joint.ID(), f.t)
	if err != nil {
		return nil, err
	}
	lim := f.joint.Limits()
	switch {
	case q < lim.PositionLower:
		return []float64{lim.PositionLower - q}, nil
	case q > lim.PositionUpper:
		return []float64{q - lim.PositionUpper}, nil
	}
	return []float64{0}, nil
}

// Jacobians returns the hinge slope.
func (f *JointLimitFactor) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	q, err := JointAngle(vs, f.joint.ID(), f.t)
	if err != nil {
		return nil, err
	}
	lim := f.joint.Limits()
	slope := 0.
	switch {
	case q < lim.PositionLower:
		slope = -1
	case q > lim.PositionUpper:
		slope = 1
	}
	return []*mat.Dense{mat.NewDense(1, 1, []float64{slope})}, nil
}

// MinTorqueFactor pulls a joint torque toward zero, expressing an
// actuation-effort preference.
type MinTorqueFactor struct {
	jointID int
	t       int
	noise   *optimize.NoiseModel
}

// NewMinTorqueFactor returns a minimum-torque objective for one joint.
func NewMinTorqueFactor(jointID, t int, noise *optimize.NoiseModel) *MinTorqueFactor {
	return &MinTorqueFactor{jointID: jointID, t: t, noise: noise}
}

// Keys returns the joint torque.
func (f *MinTorqueFactor) Keys() []optimize.Key {
	return []optimize.Key{TorqueKey(f.jointID, f.t)}
}

// Dim returns 1.
func (f *MinTorqueFactor) Dim() int { return 1 }

// Noise returns the factor's noise model.
func (f *MinTorqueFactor) Noise() *optimize.NoiseModel { return f.noise }

// Residual returns the torque itself.
func (f *MinTorqueFactor) Residual(vs *optimize.Values) ([]float64, error) {
	tau, err := Torque(vs, f.jointID, f.t)
	if err != nil {
		return nil, err
	}
	return []float64{tau}, nil
}

// Jacobians returns identity.
func (f *MinTorqueFactor) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	return []*mat.Dense{mat.NewDense(1, 1, []float64{1})}, nil
}
