package dynamics

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/dynamics/logging"
	"go.viam.com/dynamics/optimize"
	"go.viam.com/dynamics/robot"
)

// Simulator integrates a robot's joint state forward in time by repeatedly
// solving the forward-dynamics factor graph for accelerations. The robot must
// be rooted at a fixed link.
type Simulator struct {
	builder *Builder
	opt     *optimize.Optimizer
	logger  logging.Logger
	gravity r3.Vector

	q, v []float64
}

// forwardDynamicsParams returns optimizer settings tight enough for the
// near-linear forward-dynamics solve.
func forwardDynamicsParams() optimize.Params {
	p := optimize.DefaultParams()
	p.LambdaInitial = 1e-12
	p.RelativeErrorTol = 1e-12
	p.AbsoluteErrorTol = 1e-16
	return p
}

// NewSimulator returns a simulator starting at the zero configuration.
func NewSimulator(logger logging.Logger, r *robot.Robot, gravity r3.Vector, costs CostModel) (*Simulator, error) {
	if _, err := r.FixedLink(); err != nil {
		return nil, errors.Wrap(err, "simulator needs a fixed root link")
	}
	return &Simulator{
		builder: NewBuilder(logger, r, costs),
		opt:     optimize.NewOptimizer(logger, forwardDynamicsParams()),
		logger:  logger,
		gravity: gravity,
		q:       make([]float64, r.NumJoints()),
		v:       make([]float64, r.NumJoints()),
	}, nil
}

// Reset sets the joint state.
func (s *Simulator) Reset(angles, rates []float64) error {
	n := s.builder.Robot().NumJoints()
	if len(angles) != n || len(rates) != n {
		return errors.Errorf("expected %d angles and rates, got %d and %d", n, len(angles), len(rates))
	}
	copy(s.q, angles)
	copy(s.v, rates)
	return nil
}

// JointAngles returns a copy of the current joint coordinates.
func (s *Simulator) JointAngles() []float64 {
	out := make([]float64, len(s.q))
	copy(out, s.q)
	return out
}

// JointVels returns a copy of the current joint rates.
func (s *Simulator) JointVels() []float64 {
	out := make([]float64, len(s.v))
	copy(out, s.v)
	return out
}

// Accelerations solves the forward-dynamics graph at the current state for
// the given torques without advancing time.
func (s *Simulator) Accelerations(torques []float64) ([]float64, error) {
	g := s.builder.QFactors(0, nil, 0)
	g.AddAll(s.builder.DynamicsFactors(0, nil, s.gravity))
	priors, err := s.builder.ForwardDynamicsPriors(0, s.q, s.v, torques)
	if err != nil {
		return nil, err
	}
	g.AddAll(priors)

	initial, err := s.builder.InitialValues(0, s.q, s.v, torques)
	if err != nil {
		return nil, err
	}
	solved, result, err := s.opt.Optimize(g, initial)
	if err != nil {
		return nil, err
	}
	s.logger.Debugf("forward dynamics solved in %d iterations, error %g", result.Iterations, result.FinalError)

	accels := make([]float64, len(s.q))
	for _, j := range s.builder.Robot().Joints() {
		a, err := JointAccel(solved, j.ID(), 0)
		if err != nil {
			return nil, err
		}
		accels[j.ID()] = a
	}
	return accels, nil
}

// Step advances the state one interval under constant torques, integrating
// the solved accelerations with a constant-acceleration update.
func (s *Simulator) Step(torques []float64, dt float64) ([]float64, error) {
	accels, err := s.Accelerations(torques)
	if err != nil {
		return nil, err
	}
	for i := range s.q {
		s.q[i] += s.v[i]*dt + 0.5*accels[i]*dt*dt
		s.v[i] += accels[i] * dt
	}
	return accels, nil
}

// Simulate runs one Step per torque vector and returns the joint coordinates
// after each step.
func (s *Simulator) Simulate(torqueSeq [][]float64, dt float64) ([][]float64, error) {
	out := make([][]float64, 0, len(torqueSeq))
	for i, torques := range torqueSeq {
		if _, err := s.Step(torques, dt); err != nil {
			return nil, errors.Wrapf(err, "simulation step %d", i)
		}
		out = append(out, s.JointAngles())
	}
	return out, nil
}
