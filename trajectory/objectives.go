package trajectory

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/dynamics/dynamics"
	"go.viam.com/dynamics/optimize"
	"go.viam.com/dynamics/robot"
)

// SwingParams shape the vertical profile a swing foot's goal traces between
// liftoff and touchdown, and the horizontal distance it advances.
type SwingParams struct {
	// RiseExponent and FallExponent shape the height profile
	// s^rise * (1-s)^fall over normalized phase time s. Unequal exponents
	// skew the apex toward liftoff or touchdown.
	RiseExponent float64
	FallExponent float64
	// ContactOffset is the horizontal distance the goal advances per swing
	// timestep, along Direction.
	ContactOffset float64
	// Direction is the walking direction. Zero means +x.
	Direction r3.Vector
}

// DefaultSwingParams returns the standard swing-foot shaping.
func DefaultSwingParams() SwingParams {
	return SwingParams{
		RiseExponent:  1.1,
		FallExponent:  0.7,
		ContactOffset: 0.02,
		Direction:     r3.Vector{X: 1},
	}
}

// Height returns the swing height above ground at normalized phase time
// s in [0, 1]. Zero at both endpoints, so the foot leaves and lands on the
// ground.
func (sp SwingParams) Height(s float64) float64 {
	if s <= 0 || s >= 1 {
		return 0
	}
	return math.Pow(s, sp.RiseExponent) * math.Pow(1-s, sp.FallExponent)
}

func (sp SwingParams) validate() error {
	if sp.RiseExponent <= 0 || sp.FallExponent <= 0 {
		return errors.Errorf("swing exponents must be positive, got %g and %g",
			sp.RiseExponent, sp.FallExponent)
	}
	return nil
}

func (sp SwingParams) step() r3.Vector {
	dir := sp.Direction
	if dir.Norm() == 0 {
		dir = r3.Vector{X: 1}
	}
	return dir.Normalize().Mul(sp.ContactOffset)
}

// ContactLinkObjectives builds point-goal factors scheduling every contact
// link over the whole trajectory: stance feet are pinned where they stand,
// swing feet trace the swing height profile while their goals advance by the
// contact offset each timestep. Goals carry over across phases, so a foot
// lands where its swing left it.
func (tr *Trajectory) ContactLinkObjectives(
	r *robot.Robot,
	costs dynamics.CostModel,
	groundHeight float64,
	swing SwingParams,
) (*optimize.Graph, error) {
	if err := swing.validate(); err != nil {
		return nil, err
	}
	step := swing.step()

	// each foot's goal starts under its rest pose, on the ground
	contacts := tr.ContactLinks()
	goals := map[int]r3.Vector{}
	for _, c := range contacts {
		l, err := r.LinkByID(c.LinkID)
		if err != nil {
			return nil, err
		}
		rest := l.WTcom().TransformPoint(c.Point)
		goals[c.LinkID] = r3.Vector{X: rest.X, Y: rest.Y, Z: groundHeight}
	}

	g := optimize.NewGraph()
	noise := optimize.Isotropic(3, costs.ContactHeight)
	for _, p := range tr.phases {
		for t := p.interval.Start; t <= p.interval.End; t++ {
			for _, c := range contacts {
				if p.InStance(c.LinkID) {
					g.Add(dynamics.NewPointGoalFactor(c.LinkID, c.Point, goals[c.LinkID], t, noise))
					continue
				}
				goal := goals[c.LinkID].Add(step)
				goals[c.LinkID] = goal

				s := 0.
				if p.steps > 1 {
					s = float64(t-p.interval.Start) / float64(p.interval.End-p.interval.Start)
				}
				target := r3.Vector{X: goal.X, Y: goal.Y, Z: goal.Z + swing.Height(s)}
				g.Add(dynamics.NewPointGoalFactor(c.LinkID, c.Point, target, t, noise))
			}
		}
	}
	return g, nil
}

// BoundaryConditions builds the priors pinning both ends of the trajectory:
// every link's pose at the first timestep to its assignment in initial, zero
// twist at the start, zero twist and twist acceleration at the end, and zero
// joint rates and accelerations at both ends.
func (tr *Trajectory) BoundaryConditions(
	r *robot.Robot,
	initial *optimize.Values,
	costs dynamics.CostModel,
) (*optimize.Graph, error) {
	t0, tK := 0, tr.FinalTimestep()
	g := optimize.NewGraph()
	pose6 := optimize.Isotropic(6, costs.Prior)
	scalar := optimize.Isotropic(1, costs.Prior)
	zero := optimize.Vector(make([]float64, 6))

	for _, l := range r.Links() {
		startPose, err := dynamics.Pose(initial, l.ID(), t0)
		if err != nil {
			return nil, errors.Wrapf(err, "link %q has no initial pose", l.Name())
		}
		g.Add(optimize.NewPriorFactor(dynamics.PoseKey(l.ID(), t0), dynamics.NewPoseValue(startPose), pose6))
		g.Add(optimize.NewPriorFactor(dynamics.TwistKey(l.ID(), t0), zero, pose6))
		g.Add(optimize.NewPriorFactor(dynamics.TwistKey(l.ID(), tK), zero, pose6))
		g.Add(optimize.NewPriorFactor(dynamics.TwistAccelKey(l.ID(), tK), zero, pose6))
	}
	for _, j := range r.Joints() {
		for _, t := range []int{t0, tK} {
			g.Add(optimize.NewPriorFactor(dynamics.JointVelKey(j.ID(), t), optimize.Scalar(0), scalar))
			g.Add(optimize.NewPriorFactor(dynamics.JointAccelKey(j.ID(), t), optimize.Scalar(0), scalar))
		}
	}
	return g, nil
}
