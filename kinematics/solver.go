package kinematics

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/dynamics/dynamics"
	"go.viam.com/dynamics/logging"
	"go.viam.com/dynamics/optimize"
	"go.viam.com/dynamics/robot"
	"go.viam.com/dynamics/spatialmath"
)

// Solver runs inverse kinematics for one robot.
type Solver struct {
	robot  *robot.Robot
	params Parameters
	logger logging.Logger
	rnd    *rand.Rand
}

// NewSolver returns an IK solver. The robot must be rooted at a fixed link.
func NewSolver(logger logging.Logger, r *robot.Robot, params Parameters) (*Solver, error) {
	if _, err := r.FixedLink(); err != nil {
		return nil, errors.Wrap(err, "inverse kinematics needs a fixed root link")
	}
	return &Solver{
		robot:  r,
		params: params,
		logger: logger,
		rnd:    rand.New(rand.NewSource(0)),
	}, nil
}

// Seed fixes the random stream used for initial-value perturbation.
func (s *Solver) Seed(seed uint64) {
	s.rnd = rand.New(rand.NewSource(seed))
}

// Graph builds the kinematic consistency factors for timestep t: one pose
// factor per joint and a pose prior on the fixed root.
func (s *Solver) Graph(t int) *optimize.Graph {
	g := optimize.NewGraph()
	for _, j := range s.robot.Joints() {
		g.Add(dynamics.NewPoseFactor(j, t, optimize.Isotropic(6, s.params.PoseSigma)))
	}
	for _, l := range s.robot.Links() {
		if l.Fixed() {
			g.Add(optimize.NewPriorFactor(
				dynamics.PoseKey(l.ID(), t),
				dynamics.NewPoseValue(l.FixedPose()),
				optimize.Isotropic(6, s.params.PoseSigma)))
		}
	}
	return g
}

// PointGoalObjectives builds one point-goal factor per contact goal.
func (s *Solver) PointGoalObjectives(t int, goals []ContactGoal) *optimize.Graph {
	g := optimize.NewGraph()
	for _, goal := range goals {
		g.Add(dynamics.NewPointGoalFactor(
			goal.PointOnLink.Link.ID(), goal.PointOnLink.Point, goal.Goal, t,
			optimize.Isotropic(3, s.params.GoalSigma)))
	}
	return g
}

// JointAngleObjectives builds priors pulling every joint toward a nominal
// coordinate, breaking redundancy in underconstrained problems.
func (s *Solver) JointAngleObjectives(t int, nominal []float64) (*optimize.Graph, error) {
	if nominal != nil && len(nominal) != s.robot.NumJoints() {
		return nil, errors.Errorf("expected %d nominal angles, got %d", s.robot.NumJoints(), len(nominal))
	}
	g := optimize.NewGraph()
	noise := optimize.Isotropic(1, s.params.JointPriorSigma)
	for _, j := range s.robot.Joints() {
		target := 0.
		if nominal != nil {
			target = nominal[j.ID()]
		}
		g.Add(optimize.NewPriorFactor(dynamics.JointAngleKey(j.ID(), t), optimize.Scalar(target), noise))
	}
	return g, nil
}

// InitialValues seeds timestep t from joint angles perturbed by zero-mean
// Gaussian noise, with link poses filled in by forward kinematics.
func (s *Solver) InitialValues(t int, angles []float64, noiseSigma float64) (*optimize.Values, error) {
	n := s.robot.NumJoints()
	if angles == nil {
		angles = make([]float64, n)
	}
	if len(angles) != n {
		return nil, errors.Errorf("expected %d angles, got %d", n, len(angles))
	}

	seed := make([]float64, n)
	copy(seed, angles)
	if noiseSigma > 0 {
		dist := distuv.Normal{Mu: 0, Sigma: noiseSigma, Src: s.rnd}
		for i := range seed {
			seed[i] += dist.Rand()
		}
	}

	root, err := s.robot.FixedLink()
	if err != nil {
		return nil, err
	}
	poses, _, err := s.robot.ForwardKinematics(
		seed, make([]float64, n), root.Name(), root.FixedPose(), spatialmath.Twist{})
	if err != nil {
		return nil, err
	}

	vs := optimize.NewValues()
	for _, l := range s.robot.Links() {
		if err := dynamics.InsertPose(vs, l.ID(), t, poses[l.ID()]); err != nil {
			return nil, err
		}
	}
	for _, j := range s.robot.Joints() {
		if err := dynamics.InsertJointAngle(vs, j.ID(), t, seed[j.ID()]); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

// Inverse solves for joint angles and link poses that bring every contact
// goal to its target at timestep t. Non-convergence is not an error; callers
// check goal satisfaction when precision matters.
func (s *Solver) Inverse(t int, goals []ContactGoal) (*optimize.Values, optimize.Result, error) {
	return s.solveFrom(t, goals, nil)
}

func (s *Solver) solveFrom(t int, goals []ContactGoal, seedAngles []float64) (*optimize.Values, optimize.Result, error) {
	for _, goal := range goals {
		if goal.PointOnLink.Link.Fixed() {
			return nil, optimize.Result{}, errors.Errorf(
				"link %q is fixed in the world, its points cannot be driven to a goal",
				goal.PointOnLink.Link.Name())
		}
	}
	g := s.Graph(t)
	g.AddAll(s.PointGoalObjectives(t, goals))
	priors, err := s.JointAngleObjectives(t, seedAngles)
	if err != nil {
		return nil, optimize.Result{}, err
	}
	g.AddAll(priors)

	noise := s.params.InitNoise
	if seedAngles != nil {
		// a good seed from the previous step should not be perturbed away
		noise = 0
	}
	initial, err := s.InitialValues(t, seedAngles, noise)
	if err != nil {
		return nil, optimize.Result{}, err
	}

	opt := optimize.NewOptimizer(s.logger, s.params.Optimizer)
	solved, result, err := opt.Optimize(g, initial)
	if err != nil {
		return nil, optimize.Result{}, err
	}
	s.logger.Debugf("ik at t=%d: %d iterations, error %g", t, result.Iterations, result.FinalError)
	return solved, result, nil
}

// Interpolate linearly blends two goal sets over timesteps [start, end],
// re-solving IK at each step with the previous step's solution as seed. All
// step solutions are merged into one assignment; per-step failures are
// accumulated and do not stop later steps.
func (s *Solver) Interpolate(start, end int, from, to []ContactGoal) (*optimize.Values, error) {
	if end < start {
		return nil, errors.Errorf("interval end %d before start %d", end, start)
	}
	if len(from) != len(to) {
		return nil, errors.Errorf("goal sets differ in size: %d vs %d", len(from), len(to))
	}

	out := optimize.NewValues()
	var errs error
	var seedAngles []float64
	steps := end - start
	for k := 0; k <= steps; k++ {
		frac := 0.
		if steps > 0 {
			frac = float64(k) / float64(steps)
		}
		goals := make([]ContactGoal, len(from))
		for i := range from {
			goals[i] = from[i].interpolated(to[i], frac)
		}

		t := start + k
		solved, _, err := s.solveFrom(t, goals, seedAngles)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "ik step %d", t))
			continue
		}
		out.Merge(solved)

		seedAngles = make([]float64, s.robot.NumJoints())
		for _, j := range s.robot.Joints() {
			q, err := dynamics.JointAngle(solved, j.ID(), t)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			seedAngles[j.ID()] = q
		}
	}
	return out, errs
}
