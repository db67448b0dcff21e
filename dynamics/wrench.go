package dynamics

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dynamics/optimize"
	"go.viam.com/dynamics/robot"
	"go.viam.com/dynamics/spatialmath"
)

// WrenchFactor is the Newton-Euler balance of one link in its center-of-mass
// frame: generalized inertia times twist acceleration equals the gyroscopic
// term plus all applied wrenches, including gravity and ground reaction.
// Joint wrenches are keyed on the joint and expressed in the child link's
// frame; when this link is the joint's parent, the reaction is mapped across
// the joint, which makes the residual depend on the joint angle too.
type WrenchFactor struct {
	link    *robot.Link
	joints  []*robot.Joint
	t       int
	gravity r3.Vector
	contact bool
	noise   *optimize.NoiseModel

	keys []optimize.Key
	// angle key position per parent-side joint, aligned with joints
	angleIdx []int
}

// NewWrenchFactor returns the wrench balance for one link at one timestep.
// joints are the link's adjacent joints; withContact adds a ground-reaction
// wrench unknown keyed on the link.
func NewWrenchFactor(l *robot.Link, joints []*robot.Joint, t int, gravity r3.Vector, withContact bool, noise *optimize.NoiseModel) *WrenchFactor {
	f := &WrenchFactor{
		link:     l,
		joints:   joints,
		t:        t,
		gravity:  gravity,
		contact:  withContact,
		noise:    noise,
		angleIdx: make([]int, len(joints)),
	}
	f.keys = []optimize.Key{
		TwistKey(l.ID(), t),
		TwistAccelKey(l.ID(), t),
		PoseKey(l.ID(), t),
	}
	for _, j := range joints {
		f.keys = append(f.keys, WrenchKey(j.ID(), t))
	}
	for i, j := range joints {
		f.angleIdx[i] = -1
		if j.Parent() == l.ID() {
			f.angleIdx[i] = len(f.keys)
			f.keys = append(f.keys, JointAngleKey(j.ID(), t))
		}
	}
	if withContact {
		f.keys = append(f.keys, ContactWrenchKey(l.ID(), t))
	}
	return f
}

// Keys returns twist, accel, pose, joint wrenches, parent-side joint angles,
// and the contact wrench if present.
func (f *WrenchFactor) Keys() []optimize.Key { return f.keys }

// Dim returns 6.
func (f *WrenchFactor) Dim() int { return 6 }

// Noise returns the factor's noise model.
func (f *WrenchFactor) Noise() *optimize.NoiseModel { return f.noise }

// inertiaTimes applies the link's generalized inertia to a 6-vector.
func (f *WrenchFactor) inertiaTimes(x spatialmath.Twist) spatialmath.Twist {
	g := f.link.InertiaMatrix()
	in := mat.NewVecDense(6, x.Slice())
	var out mat.VecDense
	out.MulVec(g, in)
	return spatialmath.TwistFromSlice(out.RawVector().Data)
}

// gravityWrench is the weight of the link expressed in its com frame.
func (f *WrenchFactor) gravityWrench(wTcom spatialmath.Pose) spatialmath.Twist {
	return spatialmath.NewTwist(r3.Vector{}, wTcom.UnrotatePoint(f.gravity).Mul(f.link.Mass()))
}

// jointWrenchOnLink maps joint j's wrench onto this link: identity when the
// link is the child, minus the transformed reaction when it is the parent.
func (f *WrenchFactor) jointWrenchOnLink(j *robot.Joint, w spatialmath.Twist, q float64) spatialmath.Twist {
	if j.Child() == f.link.ID() {
		return w
	}
	cTp := j.ParentToChild(q).Invert()
	return spatialmath.TransformWrench(cTp, w).Scale(-1)
}

// Residual returns G·A − adᵀ(V)(G·V) − ΣF_joints − F_gravity − F_contact.
func (f *WrenchFactor) Residual(vs *optimize.Values) ([]float64, error) {
	v, err := Twist(vs, f.link.ID(), f.t)
	if err != nil {
		return nil, err
	}
	a, err := TwistAccel(vs, f.link.ID(), f.t)
	if err != nil {
		return nil, err
	}
	pose, err := Pose(vs, f.link.ID(), f.t)
	if err != nil {
		return nil, err
	}

	r := f.inertiaTimes(a).
		Sub(adTranspose(v, f.inertiaTimes(v))).
		Sub(f.gravityWrench(pose))

	for _, j := range f.joints {
		w, err := Wrench(vs, j.ID(), f.t)
		if err != nil {
			return nil, err
		}
		q := 0.
		if j.Parent() == f.link.ID() {
			if q, err = JointAngle(vs, j.ID(), f.t); err != nil {
				return nil, err
			}
		}
		r = r.Sub(f.jointWrenchOnLink(j, w, q))
	}
	if f.contact {
		cw, err := ContactWrench(vs, f.link.ID(), f.t)
		if err != nil {
			return nil, err
		}
		r = r.Sub(cw)
	}
	return r.Slice(), nil
}

// Jacobians returns closed-form derivatives aligned with Keys.
func (f *WrenchFactor) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	v, err := Twist(vs, f.link.ID(), f.t)
	if err != nil {
		return nil, err
	}
	pose, err := Pose(vs, f.link.ID(), f.t)
	if err != nil {
		return nil, err
	}
	g := f.link.InertiaMatrix()

	// d/dV [adᵀ(V)(GV)] = B(GV) + adᵀ(V)G
	hV := adjointMapDerivative(f.inertiaTimes(v))
	var adTG mat.Dense
	adTG.Mul(spatialmath.TwistAdjoint(v).T(), g)
	hV.Add(hV, &adTG)
	hV.Scale(-1, hV)

	// gravity depends on orientation only, through the pose's local rotation
	hPose := mat.NewDense(6, 6, nil)
	u := pose.UnrotatePoint(f.gravity).Mul(f.link.Mass())
	su := spatialmath.Skew(u)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			hPose.Set(i+3, j, -su.At(i, j))
		}
	}

	jacs := []*mat.Dense{hV, g, hPose}
	for _, j := range f.joints {
		if j.Child() == f.link.ID() {
			hW := identity6()
			hW.Scale(-1, hW)
			jacs = append(jacs, hW)
			continue
		}
		q, err := JointAngle(vs, j.ID(), f.t)
		if err != nil {
			return nil, err
		}
		cTp := j.ParentToChild(q).Invert()
		// residual term is +Ad(cTp)ᵀ W for the parent side
		hW := mat.NewDense(6, 6, nil)
		hW.Copy(spatialmath.Adjoint(cTp).T())
		jacs = append(jacs, hW)
	}
	// angle columns for parent-side joints, in key order
	for i, j := range f.joints {
		if f.angleIdx[i] < 0 {
			continue
		}
		w, err := Wrench(vs, j.ID(), f.t)
		if err != nil {
			return nil, err
		}
		q, err := JointAngle(vs, j.ID(), f.t)
		if err != nil {
			return nil, err
		}
		cTp := j.ParentToChild(q).Invert()
		// d/dq Ad(cTp(q))ᵀ W = −Ad(cTp)ᵀ ad(S)ᵀ W
		var adSTw mat.VecDense
		adSTw.MulVec(spatialmath.TwistAdjoint(j.ScrewAxis()).T(), mat.NewVecDense(6, w.Slice()))
		var col mat.VecDense
		col.MulVec(spatialmath.Adjoint(cTp).T(), &adSTw)
		hq := mat.NewDense(6, 1, nil)
		for row := 0; row < 6; row++ {
			hq.Set(row, 0, -col.AtVec(row))
		}
		jacs = append(jacs, hq)
	}
	if f.contact {
		hC := identity6()
		hC.Scale(-1, hC)
		jacs = append(jacs, hC)
	}
	return jacs, nil
}

// adTranspose computes adᵀ(x)·y for 6-vectors.
func adTranspose(x, y spatialmath.Twist) spatialmath.Twist {
	// adᵀ(x) = [ω̂ᵀ v̂ᵀ; 0 ω̂ᵀ]
	m := y.Angular().Cross(x.Angular()).Add(y.Linear().Cross(x.Linear()))
	fl := y.Linear().Cross(x.Angular())
	return spatialmath.NewTwist(m, fl)
}

// adjointMapDerivative returns B(y) with B(y)·δ = (∂/∂x adᵀ(x)·y)·δ.
func adjointMapDerivative(y spatialmath.Twist) *mat.Dense {
	sw := spatialmath.Skew(y.Angular())
	sv := spatialmath.Skew(y.Linear())
	out := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, sw.At(i, j))
			out.Set(i, j+3, sv.At(i, j))
			out.Set(i+3, j, sv.At(i, j))
		}
	}
	return out
}

// TorqueFactor couples a joint's actuation torque to the wrench it transmits:
// the torque is the screw-axis projection of the wrench.
type TorqueFactor struct {
	joint *robot.Joint
	t     int
	noise *optimize.NoiseModel
}

// NewTorqueFactor returns a torque factor for one joint at one timestep.
func NewTorqueFactor(j *robot.Joint, t int, noise *optimize.NoiseModel) *TorqueFactor {
	return &TorqueFactor{joint: j, t: t, noise: noise}
}

// Keys returns torque, wrench.
func (f *TorqueFactor) Keys() []optimize.Key {
	return []optimize.Key{
		TorqueKey(f.joint.ID(), f.t),
		WrenchKey(f.joint.ID(), f.t),
	}
}

// Dim returns 1.
func (f *TorqueFactor) Dim() int { return 1 }

// Noise returns the factor's noise model.
func (f *TorqueFactor) Noise() *optimize.NoiseModel { return f.noise }

// Residual returns τ − Sᵀ·W.
func (f *TorqueFactor) Residual(vs *optimize.Values) ([]float64, error) {
	tau, err := Torque(vs, f.joint.ID(), f.t)
	if err != nil {
		return nil, err
	}
	w, err := Wrench(vs, f.joint.ID(), f.t)
	if err != nil {
		return nil, err
	}
	s := f.joint.ScrewAxis()
	dot := 0.
	for i := 0; i < 6; i++ {
		dot += s[i] * w[i]
	}
	return []float64{tau - dot}, nil
}

// Jacobians returns the derivatives with respect to torque and wrench.
func (f *TorqueFactor) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	s := f.joint.ScrewAxis()
	hW := mat.NewDense(1, 6, nil)
	for i := 0; i < 6; i++ {
		hW.Set(0, i, -s[i])
	}
	return []*mat.Dense{
		mat.NewDense(1, 1, []float64{1}),
		hW,
	}, nil
}
