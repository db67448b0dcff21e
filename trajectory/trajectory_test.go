package trajectory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/dynamics/dynamics"
	"go.viam.com/dynamics/logging"
	"go.viam.com/dynamics/optimize"
	"go.viam.com/dynamics/robot"
)

func planarRobot(t *testing.T) *robot.Robot {
	t.Helper()
	r, err := robot.NewTwoLinkPlanar()
	test.That(t, err, test.ShouldBeNil)
	return r
}

func tipContact(t *testing.T, r *robot.Robot) dynamics.ContactPoint {
	t.Helper()
	l2, err := r.Link("l2")
	test.That(t, err, test.ShouldBeNil)
	return dynamics.ContactPoint{LinkID: l2.ID(), Point: r3.Vector{X: 1}}
}

func mustPhase(t *testing.T, steps int, stance []dynamics.ContactPoint) Phase {
	t.Helper()
	p, err := NewPhase(steps, stance)
	test.That(t, err, test.ShouldBeNil)
	return p
}

func TestTrajectoryPartition(t *testing.T) {
	tr, err := NewTrajectory(
		mustPhase(t, 3, nil),
		mustPhase(t, 4, nil),
		mustPhase(t, 2, nil),
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tr.NumPhases(), test.ShouldEqual, 3)

	// phases tile [0, final] with no gaps or overlaps
	prevEnd := -1
	for _, p := range tr.Phases() {
		test.That(t, p.Interval().Start, test.ShouldEqual, prevEnd+1)
		test.That(t, p.Interval().Steps(), test.ShouldEqual, p.Steps())
		prevEnd = p.Interval().End
	}
	test.That(t, tr.FinalTimestep(), test.ShouldEqual, 3+4+2-1)

	k, err := tr.PhaseOf(5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, k, test.ShouldEqual, 1)
	_, err = tr.PhaseOf(9)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = tr.Phase(3)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTrajectoryBadArgs(t *testing.T) {
	_, err := NewTrajectory()
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewPhase(0, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSwingHeight(t *testing.T) {
	sp := DefaultSwingParams()
	test.That(t, sp.Height(0), test.ShouldEqual, 0)
	test.That(t, sp.Height(1), test.ShouldEqual, 0)
	// 0.5^1.1 * 0.5^0.7 = 0.5^1.8
	test.That(t, sp.Height(0.5), test.ShouldAlmostEqual, 0.287175, 1e-5)

	sym := SwingParams{RiseExponent: 1, FallExponent: 1}
	test.That(t, sym.Height(0.5), test.ShouldAlmostEqual, 0.25)
}

func TestContactLinkObjectives(t *testing.T) {
	r := planarRobot(t)
	tip := tipContact(t, r)

	tr, err := NewTrajectory(
		mustPhase(t, 3, []dynamics.ContactPoint{tip}),
		mustPhase(t, 2, nil),
	)
	test.That(t, err, test.ShouldBeNil)

	g, err := tr.ContactLinkObjectives(r, dynamics.DefaultCostModel(), 0, DefaultSwingParams())
	test.That(t, err, test.ShouldBeNil)
	// one goal per timestep for the single contact link
	test.That(t, g.Size(), test.ShouldEqual, 5)

	bad := DefaultSwingParams()
	bad.RiseExponent = 0
	_, err = tr.ContactLinkObjectives(r, dynamics.DefaultCostModel(), 0, bad)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBoundaryConditions(t *testing.T) {
	r := planarRobot(t)
	tr, err := NewTrajectory(mustPhase(t, 4, nil))
	test.That(t, err, test.ShouldBeNil)

	in := NewInitializer(logging.NewTestLogger(t), r)
	initial, err := in.ZeroValuesTrajectory(0, tr.FinalTimestep(), 0)
	test.That(t, err, test.ShouldBeNil)

	g, err := tr.BoundaryConditions(r, initial, dynamics.DefaultCostModel())
	test.That(t, err, test.ShouldBeNil)
	// 4 priors per link, 4 per joint
	test.That(t, g.Size(), test.ShouldEqual, 4*r.NumLinks()+4*r.NumJoints())

	_, err = tr.BoundaryConditions(r, optimize.NewValues(), dynamics.DefaultCostModel())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestJointMatrix(t *testing.T) {
	r := planarRobot(t)
	tr, err := NewTrajectory(mustPhase(t, 2, nil))
	test.That(t, err, test.ShouldBeNil)
	phase, err := tr.Phase(0)
	test.That(t, err, test.ShouldBeNil)

	vs := optimize.NewValues()
	for timestep := 0; timestep <= 1; timestep++ {
		for _, j := range r.Joints() {
			base := float64(10*timestep + j.ID())
			test.That(t, dynamics.InsertJointAngle(vs, j.ID(), timestep, base), test.ShouldBeNil)
			test.That(t, dynamics.InsertJointVel(vs, j.ID(), timestep, base+0.1), test.ShouldBeNil)
			test.That(t, dynamics.InsertJointAccel(vs, j.ID(), timestep, base+0.2), test.ShouldBeNil)
			test.That(t, dynamics.InsertTorque(vs, j.ID(), timestep, base+0.3), test.ShouldBeNil)
		}
	}

	jm, err := phase.JointMatrix(r, vs, 0.05)
	test.That(t, err, test.ShouldBeNil)
	rows, cols := jm.Dims()
	test.That(t, rows, test.ShouldEqual, 2)
	test.That(t, cols, test.ShouldEqual, 4*r.NumJoints()+1)

	test.That(t, jm.At(1, 1), test.ShouldAlmostEqual, 11)    // angle, joint 1, t=1
	test.That(t, jm.At(0, 2), test.ShouldAlmostEqual, 0.1)   // rate, joint 0, t=0
	test.That(t, jm.At(1, 5), test.ShouldAlmostEqual, 11.2)  // accel, joint 1, t=1
	test.That(t, jm.At(0, 7), test.ShouldAlmostEqual, 1.3)   // torque, joint 1, t=0
	test.That(t, jm.At(0, 8), test.ShouldAlmostEqual, 0.05)  // dt column
	test.That(t, jm.At(1, 8), test.ShouldAlmostEqual, 0.05)

	_, err = phase.JointMatrix(r, optimize.NewValues(), 0.05)
	test.That(t, err, test.ShouldNotBeNil)
}

const strideYAML = `
name: stride
ground_height: 0.1
contacts:
  - link: l2
    point: [1, 0, 0]
phases:
  - steps: 3
    stance: [l2]
  - steps: 2
    stance: []
`

func TestWalkSpec(t *testing.T) {
	r := planarRobot(t)
	path := filepath.Join(t.TempDir(), "stride.yaml")
	test.That(t, os.WriteFile(path, []byte(strideYAML), 0o600), test.ShouldBeNil)

	ws, err := LoadWalkSpec(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ws.Name, test.ShouldEqual, "stride")
	test.That(t, ws.GroundHeight, test.ShouldAlmostEqual, 0.1)
	test.That(t, len(ws.Phases), test.ShouldEqual, 2)

	tr, err := ws.Trajectory(r, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tr.NumPhases(), test.ShouldEqual, 4)
	test.That(t, tr.FinalTimestep(), test.ShouldEqual, 2*(3+2)-1)

	l2, err := r.Link("l2")
	test.That(t, err, test.ShouldBeNil)
	first, err := tr.Phase(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first.InStance(l2.ID()), test.ShouldBeTrue)
	second, err := tr.Phase(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second.InStance(l2.ID()), test.ShouldBeFalse)

	_, err = ws.Trajectory(r, 0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWalkSpecErrors(t *testing.T) {
	r := planarRobot(t)
	_, err := LoadWalkSpec(filepath.Join(t.TempDir(), "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	bad := `
phases:
  - steps: 2
    stance: [l2]
`
	test.That(t, os.WriteFile(path, []byte(bad), 0o600), test.ShouldBeNil)
	ws, err := LoadWalkSpec(path)
	test.That(t, err, test.ShouldBeNil)
	// stance names a link with no declared contact point
	_, err = ws.Trajectory(r, 1)
	test.That(t, err, test.ShouldNotBeNil)
}
