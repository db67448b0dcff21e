package kinematics

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/dynamics/dynamics"
	"go.viam.com/dynamics/logging"
	"go.viam.com/dynamics/robot"
)

func planarSolver(t *testing.T) (*Solver, *robot.Robot) {
	t.Helper()
	r, err := robot.NewTwoLinkPlanar()
	test.That(t, err, test.ShouldBeNil)
	s, err := NewSolver(logging.NewTestLogger(t), r, DefaultParameters())
	test.That(t, err, test.ShouldBeNil)
	s.Seed(1)
	return s, r
}

func tipGoal(t *testing.T, r *robot.Robot, goal r3.Vector) ContactGoal {
	t.Helper()
	l2, err := r.Link("l2")
	test.That(t, err, test.ShouldBeNil)
	// one meter past the com, the end of the second link
	return ContactGoal{
		PointOnLink: PointOnLink{Link: l2, Point: r3.Vector{X: 1}},
		Goal:        goal,
	}
}

func TestInverseFullExtension(t *testing.T) {
	s, r := planarSolver(t)
	goal := tipGoal(t, r, r3.Vector{Y: 4})

	solved, _, err := s.Inverse(0, []ContactGoal{goal})
	test.That(t, err, test.ShouldBeNil)

	ok, err := goal.Satisfied(solved, 0, 0.01)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)

	q1, err := dynamics.JointAngle(solved, 0, 0)
	test.That(t, err, test.ShouldBeNil)
	q2, err := dynamics.JointAngle(solved, 1, 0)
	test.That(t, err, test.ShouldBeNil)
	// full extension along +y has a unique configuration
	test.That(t, q1, test.ShouldAlmostEqual, math.Pi/2, 0.01)
	test.That(t, q2, test.ShouldAlmostEqual, 0, 0.01)
}

func TestInverseBentArm(t *testing.T) {
	s, r := planarSolver(t)
	goal := tipGoal(t, r, r3.Vector{X: 2, Y: 2})

	solved, _, err := s.Inverse(0, []ContactGoal{goal})
	test.That(t, err, test.ShouldBeNil)

	ok, err := goal.Satisfied(solved, 0, 0.01)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
}

func TestInverseGoalOnFixedLink(t *testing.T) {
	s, r := planarSolver(t)
	base, err := r.Link("l0")
	test.That(t, err, test.ShouldBeNil)

	_, _, err = s.Inverse(0, []ContactGoal{{
		PointOnLink: PointOnLink{Link: base, Point: r3.Vector{X: 1}},
		Goal:        r3.Vector{Y: 1},
	}})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestInterpolate(t *testing.T) {
	s, r := planarSolver(t)
	from := tipGoal(t, r, r3.Vector{Y: 4})
	to := tipGoal(t, r, r3.Vector{X: 2, Y: 2})

	solved, err := s.Interpolate(0, 4, []ContactGoal{from}, []ContactGoal{to})
	test.That(t, err, test.ShouldBeNil)

	// every step holds a solution for its interpolated goal
	for k := 0; k <= 4; k++ {
		goal := from.interpolated(to, float64(k)/4)
		ok, err := goal.Satisfied(solved, k, 0.02)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ok, test.ShouldBeTrue)
	}
}

func TestInterpolateBadArgs(t *testing.T) {
	s, r := planarSolver(t)
	goal := tipGoal(t, r, r3.Vector{Y: 4})

	_, err := s.Interpolate(3, 1, []ContactGoal{goal}, []ContactGoal{goal})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = s.Interpolate(0, 2, []ContactGoal{goal}, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewSolverNeedsFixedLink(t *testing.T) {
	r := robot.NewRobot("floating")
	_, err := r.AddLink(robot.LinkParams{Name: "only"})
	test.That(t, err, test.ShouldBeNil)
	_, err = NewSolver(logging.NewTestLogger(t), r, DefaultParameters())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSatisfiedPredicate(t *testing.T) {
	s, r := planarSolver(t)
	goal := tipGoal(t, r, r3.Vector{X: 4})

	// rest configuration puts the tip exactly at (4,0,0)
	vs, err := s.InitialValues(0, nil, 0)
	test.That(t, err, test.ShouldBeNil)

	ok, err := goal.Satisfied(vs, 0, 1e-9)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)

	off := tipGoal(t, r, r3.Vector{X: 4, Z: 0.5})
	ok, err = off.Satisfied(vs, 0, 0.1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)
}
