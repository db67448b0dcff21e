// Package kinematics solves goal-driven inverse kinematics over the same
// factor graphs used for dynamics: point-goal objectives pull contact points
// toward world targets while pose factors keep the chain consistent.
package kinematics

import (
	"github.com/golang/geo/r3"

	"go.viam.com/dynamics/dynamics"
	"go.viam.com/dynamics/optimize"
	"go.viam.com/dynamics/robot"
)

// PointOnLink names a point fixed in a link's center-of-mass frame.
type PointOnLink struct {
	Link  *robot.Link
	Point r3.Vector
}

// Predict returns the point's world position under the link pose assigned at
// timestep t.
func (p PointOnLink) Predict(vs *optimize.Values, t int) (r3.Vector, error) {
	pose, err := dynamics.Pose(vs, p.Link.ID(), t)
	if err != nil {
		return r3.Vector{}, err
	}
	return pose.TransformPoint(p.Point), nil
}

// ContactGoal pairs a point on a link with a desired world position.
type ContactGoal struct {
	PointOnLink PointOnLink
	Goal        r3.Vector
}

// Satisfied reports whether the assigned link pose maps the point within tol
// of the goal.
func (g ContactGoal) Satisfied(vs *optimize.Values, t int, tol float64) (bool, error) {
	predicted, err := g.PointOnLink.Predict(vs, t)
	if err != nil {
		return false, err
	}
	return predicted.Sub(g.Goal).Norm() <= tol, nil
}

// interpolated returns the goal with its target moved a fraction s of the way
// toward other's target.
func (g ContactGoal) interpolated(other ContactGoal, s float64) ContactGoal {
	d := other.Goal.Sub(g.Goal)
	return ContactGoal{PointOnLink: g.PointOnLink, Goal: g.Goal.Add(d.Mul(s))}
}

// Parameters configure the IK solver's cost model and optimizer.
type Parameters struct {
	// PoseSigma weights the 6d joint pose factors.
	PoseSigma float64
	// GoalSigma weights the 3d point-goal objectives.
	GoalSigma float64
	// JointPriorSigma weights the 1d priors pulling free joints toward zero.
	JointPriorSigma float64
	// InitNoise is the standard deviation of the Gaussian perturbation
	// applied to the zero-configuration seed.
	InitNoise float64
	Optimizer optimize.Params
}

// DefaultParameters returns the standard IK configuration.
func DefaultParameters() Parameters {
	return Parameters{
		PoseSigma:       1e-4,
		GoalSigma:       0.01,
		JointPriorSigma: 0.5,
		InitNoise:       0.1,
		Optimizer:       optimize.DefaultParams(),
	}
}
