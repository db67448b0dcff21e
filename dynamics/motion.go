package dynamics

import (
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dynamics/optimize"
	"go.viam.com/dynamics/robot"
	"go.viam.com/dynamics/spatialmath"
)

// PoseFactor ties a joint's parent and child poses to its coordinate: the
// child pose must equal the parent pose composed through the joint at q.
// Residual is the log map of the prediction error, zero at any consistent
// configuration.
type PoseFactor struct {
	joint *robot.Joint
	t     int
	noise *optimize.NoiseModel
}

// NewPoseFactor returns a pose factor for one joint at one timestep.
func NewPoseFactor(j *robot.Joint, t int, noise *optimize.NoiseModel) *PoseFactor {
	return &PoseFactor{joint: j, t: t, noise: noise}
}

// Keys returns parent pose, child pose, joint angle.
func (f *PoseFactor) Keys() []optimize.Key {
	return []optimize.Key{
		PoseKey(f.joint.Parent(), f.t),
		PoseKey(f.joint.Child(), f.t),
		JointAngleKey(f.joint.ID(), f.t),
	}
}

// Dim returns 6.
func (f *PoseFactor) Dim() int { return 6 }

// Noise returns the factor's noise model.
func (f *PoseFactor) Noise() *optimize.NoiseModel { return f.noise }

func (f *PoseFactor) errorPose(vs *optimize.Values) (spatialmath.Pose, spatialmath.Pose, spatialmath.Pose, float64, error) {
	wTp, err := Pose(vs, f.joint.Parent(), f.t)
	if err != nil {
		return spatialmath.Pose{}, spatialmath.Pose{}, spatialmath.Pose{}, 0, err
	}
	wTc, err := Pose(vs, f.joint.Child(), f.t)
	if err != nil {
		return spatialmath.Pose{}, spatialmath.Pose{}, spatialmath.Pose{}, 0, err
	}
	q, err := JointAngle(vs, f.joint.ID(), f.t)
	if err != nil {
		return spatialmath.Pose{}, spatialmath.Pose{}, spatialmath.Pose{}, 0, err
	}
	pred := f.joint.ChildPoseFrom(wTp, q)
	return wTp, wTc, spatialmath.Between(pred, wTc), q, nil
}

// Residual returns Log(pred⁻¹ · wTc).
func (f *PoseFactor) Residual(vs *optimize.Values) ([]float64, error) {
	_, _, errPose, _, err := f.errorPose(vs)
	if err != nil {
		return nil, err
	}
	return spatialmath.Log(errPose).Slice(), nil
}

// Jacobians returns closed-form derivatives with respect to parent pose,
// child pose and joint angle, in the poses' local coordinates.
func (f *PoseFactor) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	wTp, wTc, errPose, _, err := f.errorPose(vs)
	if err != nil {
		return nil, err
	}
	r := spatialmath.Log(errPose)
	jinv := spatialmath.LogJacobianInv(r)

	// parent: residual sees -Ad(wTc⁻¹ wTp) through the error's log Jacobian
	hParent := mat.NewDense(6, 6, nil)
	hParent.Mul(jinv, spatialmath.Adjoint(spatialmath.Between(wTc, wTp)))
	hParent.Scale(-1, hParent)

	// angle: the screw axis mapped through the inverted error pose
	sErr := spatialmath.TransformTwist(errPose.Invert(), f.joint.ScrewAxis())
	hq := mat.NewDense(6, 1, nil)
	hq.Mul(jinv, mat.NewDense(6, 1, sErr.Slice()))
	hq.Scale(-1, hq)

	return []*mat.Dense{hParent, jinv, hq}, nil
}

// TwistFactor propagates body twist across a joint: the child twist must be
// the parent twist mapped through the relative pose plus the screw axis
// scaled by the joint rate.
type TwistFactor struct {
	joint *robot.Joint
	t     int
	noise *optimize.NoiseModel
}

// NewTwistFactor returns a twist factor for one joint at one timestep.
func NewTwistFactor(j *robot.Joint, t int, noise *optimize.NoiseModel) *TwistFactor {
	return &TwistFactor{joint: j, t: t, noise: noise}
}

// Keys returns parent twist, child twist, joint angle, joint rate.
func (f *TwistFactor) Keys() []optimize.Key {
	return []optimize.Key{
		TwistKey(f.joint.Parent(), f.t),
		TwistKey(f.joint.Child(), f.t),
		JointAngleKey(f.joint.ID(), f.t),
		JointVelKey(f.joint.ID(), f.t),
	}
}

// Dim returns 6.
func (f *TwistFactor) Dim() int { return 6 }

// Noise returns the factor's noise model.
func (f *TwistFactor) Noise() *optimize.NoiseModel { return f.noise }

func (f *TwistFactor) terms(vs *optimize.Values) (spatialmath.Pose, spatialmath.Twist, spatialmath.Twist, float64, error) {
	vp, err := Twist(vs, f.joint.Parent(), f.t)
	if err != nil {
		return spatialmath.Pose{}, spatialmath.Twist{}, spatialmath.Twist{}, 0, err
	}
	vc, err := Twist(vs, f.joint.Child(), f.t)
	if err != nil {
		return spatialmath.Pose{}, spatialmath.Twist{}, spatialmath.Twist{}, 0, err
	}
	q, err := JointAngle(vs, f.joint.ID(), f.t)
	if err != nil {
		return spatialmath.Pose{}, spatialmath.Twist{}, spatialmath.Twist{}, 0, err
	}
	qdot, err := JointVel(vs, f.joint.ID(), f.t)
	if err != nil {
		return spatialmath.Pose{}, spatialmath.Twist{}, spatialmath.Twist{}, 0, err
	}
	cTp := f.joint.ParentToChild(q).Invert()
	return cTp, vp, vc, qdot, nil
}

// Residual returns Vc − Ad(cTp)Vp − S·q̇.
func (f *TwistFactor) Residual(vs *optimize.Values) ([]float64, error) {
	cTp, vp, vc, qdot, err := f.terms(vs)
	if err != nil {
		return nil, err
	}
	r := vc.
		Sub(spatialmath.TransformTwist(cTp, vp)).
		Sub(f.joint.ScrewAxis().Scale(qdot))
	return r.Slice(), nil
}

// Jacobians returns closed-form derivatives with respect to parent twist,
// child twist, joint angle and joint rate.
func (f *TwistFactor) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	cTp, vp, _, _, err := f.terms(vs)
	if err != nil {
		return nil, err
	}
	s := f.joint.ScrewAxis()

	hVp := spatialmath.Adjoint(cTp)
	hVp.Scale(-1, hVp)

	hq := spatialmath.TwistBracket(s, spatialmath.TransformTwist(cTp, vp))

	return []*mat.Dense{
		hVp,
		identity6(),
		mat.NewDense(6, 1, hq.Slice()),
		mat.NewDense(6, 1, s.Scale(-1).Slice()),
	}, nil
}

// TwistAccelFactor propagates twist acceleration across a joint, including
// the Coriolis term from the child's own twist acting on the screw axis.
type TwistAccelFactor struct {
	joint *robot.Joint
	t     int
	noise *optimize.NoiseModel
}

// NewTwistAccelFactor returns a twist-acceleration factor for one joint at
// one timestep.
func NewTwistAccelFactor(j *robot.Joint, t int, noise *optimize.NoiseModel) *TwistAccelFactor {
	return &TwistAccelFactor{joint: j, t: t, noise: noise}
}

// Keys returns child twist, parent accel, child accel, angle, rate, accel.
func (f *TwistAccelFactor) Keys() []optimize.Key {
	return []optimize.Key{
		TwistKey(f.joint.Child(), f.t),
		TwistAccelKey(f.joint.Parent(), f.t),
		TwistAccelKey(f.joint.Child(), f.t),
		JointAngleKey(f.joint.ID(), f.t),
		JointVelKey(f.joint.ID(), f.t),
		JointAccelKey(f.joint.ID(), f.t),
	}
}

// Dim returns 6.
func (f *TwistAccelFactor) Dim() int { return 6 }

// Noise returns the factor's noise model.
func (f *TwistAccelFactor) Noise() *optimize.NoiseModel { return f.noise }

type twistAccelTerms struct {
	cTp    spatialmath.Pose
	vc     spatialmath.Twist
	ap, ac spatialmath.Twist
	qdot   float64
	qddot  float64
}

func (f *TwistAccelFactor) terms(vs *optimize.Values) (twistAccelTerms, error) {
	var tm twistAccelTerms
	var err error
	if tm.vc, err = Twist(vs, f.joint.Child(), f.t); err != nil {
		return tm, err
	}
	if tm.ap, err = TwistAccel(vs, f.joint.Parent(), f.t); err != nil {
		return tm, err
	}
	if tm.ac, err = TwistAccel(vs, f.joint.Child(), f.t); err != nil {
		return tm, err
	}
	q, err := JointAngle(vs, f.joint.ID(), f.t)
	if err != nil {
		return tm, err
	}
	if tm.qdot, err = JointVel(vs, f.joint.ID(), f.t); err != nil {
		return tm, err
	}
	if tm.qddot, err = JointAccel(vs, f.joint.ID(), f.t); err != nil {
		return tm, err
	}
	tm.cTp = f.joint.ParentToChild(q).Invert()
	return tm, nil
}

// Residual returns Ac − Ad(cTp)Ap − ad(Vc)S·q̇ − S·q̈.
func (f *TwistAccelFactor) Residual(vs *optimize.Values) ([]float64, error) {
	tm, err := f.terms(vs)
	if err != nil {
		return nil, err
	}
	s := f.joint.ScrewAxis()
	r := tm.ac.
		Sub(spatialmath.TransformTwist(tm.cTp, tm.ap)).
		Sub(spatialmath.TwistBracket(tm.vc, s).Scale(tm.qdot)).
		Sub(s.Scale(tm.qddot))
	return r.Slice(), nil
}

// Jacobians returns closed-form derivatives with respect to all six inputs.
func (f *TwistAccelFactor) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	tm, err := f.terms(vs)
	if err != nil {
		return nil, err
	}
	s := f.joint.ScrewAxis()

	// -ad(Vc)S q̇ == +q̇ ad(S)Vc, so the twist derivative is q̇ ad(S)
	hVc := spatialmath.TwistAdjoint(s)
	hVc.Scale(tm.qdot, hVc)

	hAp := spatialmath.Adjoint(tm.cTp)
	hAp.Scale(-1, hAp)

	hq := spatialmath.TwistBracket(s, spatialmath.TransformTwist(tm.cTp, tm.ap))
	hQdot := spatialmath.TwistBracket(tm.vc, s).Scale(-1)

	return []*mat.Dense{
		hVc,
		hAp,
		identity6(),
		mat.NewDense(6, 1, hq.Slice()),
		mat.NewDense(6, 1, hQdot.Slice()),
		mat.NewDense(6, 1, s.Scale(-1).Slice()),
	}, nil
}

func identity6() *mat.Dense {
	out := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		out.Set(i, i, 1)
	}
	return out
}
