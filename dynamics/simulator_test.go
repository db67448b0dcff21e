package dynamics

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/dynamics/logging"
	"go.viam.com/dynamics/robot"
)

func TestSimulatorUnitTorque(t *testing.T) {
	logger := logging.NewTestLogger(t)
	r, err := robot.NewSingleRevolute()
	test.That(t, err, test.ShouldBeNil)

	// no gravity: constant unit torque on effective inertia 16
	sim, err := NewSimulator(logger, r, r3.Vector{}, DefaultCostModel())
	test.That(t, err, test.ShouldBeNil)

	accels, err := sim.Step([]float64{1}, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, accels[0], test.ShouldAlmostEqual, 0.0625, 1e-9)
	test.That(t, sim.JointVels()[0], test.ShouldAlmostEqual, 0.0625, 1e-9)
	test.That(t, sim.JointAngles()[0], test.ShouldAlmostEqual, 0.03125, 1e-9)
}

func TestSimulatorEquilibrium(t *testing.T) {
	logger := logging.NewTestLogger(t)
	r, err := robot.NewSingleRevolute()
	test.That(t, err, test.ShouldBeNil)

	// the arm hangs straight below the hinge: gravity exerts no moment,
	// so zero torque holds the state
	sim, err := NewSimulator(logger, r, r3.Vector{Z: -9.8}, DefaultCostModel())
	test.That(t, err, test.ShouldBeNil)

	accels, err := sim.Accelerations([]float64{0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, accels[0], test.ShouldAlmostEqual, 0, 1e-7)
}

func TestSimulatorSimulate(t *testing.T) {
	logger := logging.NewTestLogger(t)
	r, err := robot.NewSingleRevolute()
	test.That(t, err, test.ShouldBeNil)

	sim, err := NewSimulator(logger, r, r3.Vector{}, DefaultCostModel())
	test.That(t, err, test.ShouldBeNil)

	// two unit-torque steps of dt=0.5: a stays 1/16 while torque is constant
	states, err := sim.Simulate([][]float64{{1}, {1}}, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(states), test.ShouldEqual, 2)
	// q(t) = 0.5 a t^2 with a = 0.0625
	test.That(t, states[0][0], test.ShouldAlmostEqual, 0.5*0.0625*0.25, 1e-9)
	test.That(t, states[1][0], test.ShouldAlmostEqual, 0.5*0.0625*1.0, 1e-6)
}

func TestSimulatorBadInput(t *testing.T) {
	logger := logging.NewTestLogger(t)
	r, err := robot.NewSingleRevolute()
	test.That(t, err, test.ShouldBeNil)

	sim, err := NewSimulator(logger, r, r3.Vector{}, DefaultCostModel())
	test.That(t, err, test.ShouldBeNil)
	_, err = sim.Step([]float64{1, 2}, 1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, sim.Reset([]float64{0}, []float64{0, 0}), test.ShouldNotBeNil)
}

func TestBuilderGraphSizes(t *testing.T) {
	logger := logging.NewTestLogger(t)
	r, err := robot.NewTwoLinkPlanar()
	test.That(t, err, test.ShouldBeNil)
	b := NewBuilder(logger, r, DefaultCostModel())

	// 2 pose + 2 limit + 1 fixed-link prior
	q := b.QFactors(0, nil, 0)
	test.That(t, q.Size(), test.ShouldEqual, 5)

	// 2*(twist+accel+torque) + 2 free-link wrench + 2 fixed-link priors
	dyn := b.DynamicsFactors(0, nil, r3.Vector{Z: -9.8})
	test.That(t, dyn.Size(), test.ShouldEqual, 10)

	l2, err := r.Link("l2")
	test.That(t, err, test.ShouldBeNil)
	contacts := []ContactPoint{{LinkID: l2.ID(), Point: r3.Vector{X: 1}}}
	qc := b.QFactors(0, contacts, 0)
	test.That(t, qc.Size(), test.ShouldEqual, 6)
	dync := b.DynamicsFactors(0, contacts, r3.Vector{Z: -9.8})
	test.That(t, dync.Size(), test.ShouldEqual, 12)

	full := b.Graph(0, contacts, 0, r3.Vector{Z: -9.8})
	test.That(t, full.Size(), test.ShouldEqual, 18)
}

func TestForwardDynamicsPriorsBadInput(t *testing.T) {
	logger := logging.NewTestLogger(t)
	r, err := robot.NewTwoLinkPlanar()
	test.That(t, err, test.ShouldBeNil)
	b := NewBuilder(logger, r, DefaultCostModel())
	_, err = b.ForwardDynamicsPriors(0, []float64{0}, []float64{0, 0}, []float64{0, 0})
	test.That(t, err, test.ShouldNotBeNil)
}
