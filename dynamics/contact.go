package dynamics

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dynamics/optimize"
	"go.viam.com/dynamics/spatialmath"
)

// ContactPoint names a point fixed in a link's center-of-mass frame that
// touches the ground.
type ContactPoint struct {
	LinkID int
	Point  r3.Vector
}

// ContactHeightFactor pins a contact point's world height to the ground:
// residual is the z coordinate of the transformed point minus ground height.
type ContactHeightFactor struct {
	contact ContactPoint
	height  float64
	t       int
	noise   *optimize.NoiseModel
}

// NewContactHeightFactor returns a height factor for one contact point.
func NewContactHeightFactor(c ContactPoint, groundHeight float64, t int, noise *optimize.NoiseModel) *ContactHeightFactor {
	return &ContactHeightFactor{contact: c, height: groundHeight, t: t, noise: noise}
}

// Keys returns the link pose.
func (f *ContactHeightFactor) Keys() []optimize.Key {
	return []optimize.Key{PoseKey(f.contact.LinkID, f.t)}
}

// Dim returns 1.
func (f *ContactHeightFactor) Dim() int { return 1 }

// Noise returns the factor's noise model.
func (f *ContactHeightFactor) Noise() *optimize.NoiseModel { return f.noise }

// Residual returns the contact point's height error.
func (f *ContactHeightFactor) Residual(vs *optimize.Values) ([]float64, error) {
	pose, err := Pose(vs, f.contact.LinkID, f.t)
	if err != nil {
		return nil, err
	}
	return []float64{pose.TransformPoint(f.contact.Point).Z - f.height}, nil
}

// Jacobians returns the z row of the point's pose derivative.
func (f *ContactHeightFactor) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	pose, err := Pose(vs, f.contact.LinkID, f.t)
	if err != nil {
		return nil, err
	}
	full := pointPoseJacobian(pose, f.contact.Point)
	jac := mat.NewDense(1, 6, nil)
	for c := 0; c < 6; c++ {
		jac.Set(0, c, full.At(2, c))
	}
	return []*mat.Dense{jac}, nil
}

// PointGoalFactor drives a point fixed in a link toward a world-frame goal:
// residual is the 3-vector between the transformed point and the goal.
type PointGoalFactor struct {
	linkID int
	point  r3.Vector
	goal   r3.Vector
	t      int
	noise  *optimize.NoiseModel
}

// NewPointGoalFactor returns a point-goal factor on one link pose.
func NewPointGoalFactor(linkID int, point, goal r3.Vector, t int, noise *optimize.NoiseModel) *PointGoalFactor {
	return &PointGoalFactor{linkID: linkID, point: point, goal: goal, t: t, noise: noise}
}

// Keys returns the link pose.
func (f *PointGoalFactor) Keys() []optimize.Key {
	return []optimize.Key{PoseKey(f.linkID, f.t)}
}

// Dim returns 3.
func (f *PointGoalFactor) Dim() int { return 3 }

// Noise returns the factor's noise model.
func (f *PointGoalFactor) Noise() *optimize.NoiseModel { return f.noise }

// Residual returns wT·p − goal.
func (f *PointGoalFactor) Residual(vs *optimize.Values) ([]float64, error) {
	pose, err := Pose(vs, f.linkID, f.t)
	if err != nil {
		return nil, err
	}
	d := pose.TransformPoint(f.point).Sub(f.goal)
	return []float64{d.X, d.Y, d.Z}, nil
}

// Jacobians returns the point's derivative with respect to the pose.
func (f *PointGoalFactor) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	pose, err := Pose(vs, f.linkID, f.t)
	if err != nil {
		return nil, err
	}
	return []*mat.Dense{pointPoseJacobian(pose, f.point)}, nil
}

// ContactTwistFactor requires a contact point to be stationary: residual is
// the point's linear velocity in the link's com frame, ω×p + v.
type ContactTwistFactor struct {
	contact ContactPoint
	t       int
	noise   *optimize.NoiseModel
}

// NewContactTwistFactor returns a stationarity factor for one contact point.
func NewContactTwistFactor(c ContactPoint, t int, noise *optimize.NoiseModel) *ContactTwistFactor {
	return &ContactTwistFactor{contact: c, t: t, noise: noise}
}

// Keys returns the link twist.
func (f *ContactTwistFactor) Keys() []optimize.Key {
	return []optimize.Key{TwistKey(f.contact.LinkID, f.t)}
}

// Dim returns 3.
func (f *ContactTwistFactor) Dim() int { return 3 }

// Noise returns the factor's noise model.
func (f *ContactTwistFactor) Noise() *optimize.NoiseModel { return f.noise }

// Residual returns ω×p + v.
func (f *ContactTwistFactor) Residual(vs *optimize.Values) ([]float64, error) {
	v, err := Twist(vs, f.contact.LinkID, f.t)
	if err != nil {
		return nil, err
	}
	out := v.Angular().Cross(f.contact.Point).Add(v.Linear())
	return []float64{out.X, out.Y, out.Z}, nil
}

// Jacobians returns [−[p]x | I].
func (f *ContactTwistFactor) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	jac := mat.NewDense(3, 6, nil)
	sp := spatialmath.Skew(f.contact.Point)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			jac.Set(i, j, -sp.At(i, j))
		}
		jac.Set(i, i+3, 1)
	}
	return []*mat.Dense{jac}, nil
}

// ContactMomentFactor requires the ground reaction to act through the contact
// point: residual is the reaction's moment about that point, m − p×f.
type ContactMomentFactor struct {
	contact ContactPoint
	t       int
	noise   *optimize.NoiseModel
}

// NewContactMomentFactor returns a zero-moment factor for one contact point.
func NewContactMomentFactor(c ContactPoint, t int, noise *optimize.NoiseModel) *ContactMomentFactor {
	return &ContactMomentFactor{contact: c, t: t, noise: noise}
}

// Keys returns the link's contact wrench.
func (f *ContactMomentFactor) Keys() []optimize.Key {
	return []optimize.Key{ContactWrenchKey(f.contact.LinkID, f.t)}
}

// Dim returns 3.
func (f *ContactMomentFactor) Dim() int { return 3 }

// Noise returns the factor's noise model.
func (f *ContactMomentFactor) Noise() *optimize.NoiseModel { return f.noise }

// Residual returns m − p×f.
func (f *ContactMomentFactor) Residual(vs *optimize.Values) ([]float64, error) {
	w, err := ContactWrench(vs, f.contact.LinkID, f.t)
	if err != nil {
		return nil, err
	}
	out := w.Angular().Sub(f.contact.Point.Cross(w.Linear()))
	return []float64{out.X, out.Y, out.Z}, nil
}

// Jacobians returns [I | −[p]x].
func (f *ContactMomentFactor) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	jac := mat.NewDense(3, 6, nil)
	sp := spatialmath.Skew(f.contact.Point)
	for i := 0; i < 3; i++ {
		jac.Set(i, i, 1)
		for j := 0; j < 3; j++ {
			jac.Set(i, j+3, -sp.At(i, j))
		}
	}
	return []*mat.Dense{jac}, nil
}

// pointPoseJacobian is the derivative of wT·p with respect to a body-frame
// retraction of the pose: R·[−[p]x | I].
func pointPoseJacobian(pose spatialmath.Pose, p r3.Vector) *mat.Dense {
	r := pose.RotationMatrix()
	sp := spatialmath.Skew(p)
	out := mat.NewDense(3, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			// mgl64 matrices are column-major
			rij := func(a, b int) float64 { return r[b*3+a] }
			sum := 0.
			for k := 0; k < 3; k++ {
				sum += rij(i, k) * -sp.At(k, j)
			}
			out.Set(i, j, sum)
			out.Set(i, j+3, rij(i, j))
		}
	}
	return out
}
