// Package trajectory stitches per-phase factor graphs into multi-phase
// trajectory optimization problems: contact scheduling with swing-foot
// shaping, boundary conditions, and initial-value generation to seed the
// optimizer.
package trajectory

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dynamics/dynamics"
	"go.viam.com/dynamics/optimize"
	"go.viam.com/dynamics/robot"
)

// Interval is a closed range of timesteps.
type Interval struct {
	Start, End int
}

// Steps returns the number of timesteps the interval covers.
func (iv Interval) Steps() int { return iv.End - iv.Start + 1 }

// Contains reports whether t lies in the interval.
func (iv Interval) Contains(t int) bool { return t >= iv.Start && t <= iv.End }

// Phase is a maximal run of timesteps over which the contact configuration
// is constant. Its interval is assigned when phases are strung into a
// Trajectory.
type Phase struct {
	interval Interval
	steps    int
	stance   []dynamics.ContactPoint
}

// NewPhase returns a phase of the given step count with the links of the
// stance contact points held on the ground.
func NewPhase(steps int, stance []dynamics.ContactPoint) (Phase, error) {
	if steps < 1 {
		return Phase{}, errors.Errorf("phase needs at least one timestep, got %d", steps)
	}
	return Phase{steps: steps, stance: stance}, nil
}

// Interval returns the phase's timestep range within its trajectory.
func (p Phase) Interval() Interval { return p.interval }

// Steps returns the phase's step count.
func (p Phase) Steps() int { return p.steps }

// Stance returns the contact points held on the ground during the phase.
func (p Phase) Stance() []dynamics.ContactPoint { return p.stance }

// InStance reports whether a link is in ground contact during the phase.
func (p Phase) InStance(linkID int) bool {
	for _, c := range p.stance {
		if c.LinkID == linkID {
			return true
		}
	}
	return false
}

// JointMatrix flattens a solved assignment over the phase into one row per
// timestep with columns angle, rate, acceleration and torque per joint,
// followed by the interval length dt.
func (p Phase) JointMatrix(r *robot.Robot, results *optimize.Values, dt float64) (*mat.Dense, error) {
	n := r.NumJoints()
	out := mat.NewDense(p.steps, 4*n+1, nil)
	for row, t := 0, p.interval.Start; t <= p.interval.End; row, t = row+1, t+1 {
		for _, j := range r.Joints() {
			q, err := dynamics.JointAngle(results, j.ID(), t)
			if err != nil {
				return nil, err
			}
			v, err := dynamics.JointVel(results, j.ID(), t)
			if err != nil {
				return nil, err
			}
			a, err := dynamics.JointAccel(results, j.ID(), t)
			if err != nil {
				return nil, err
			}
			tau, err := dynamics.Torque(results, j.ID(), t)
			if err != nil {
				return nil, err
			}
			out.Set(row, j.ID(), q)
			out.Set(row, n+j.ID(), v)
			out.Set(row, 2*n+j.ID(), a)
			out.Set(row, 3*n+j.ID(), tau)
		}
		out.Set(row, 4*n, dt)
	}
	return out, nil
}

// Trajectory is an ordered sequence of phases with cumulative timestep
// numbering: phases partition [0, FinalTimestep] contiguously with no gaps
// or overlaps.
type Trajectory struct {
	phases []Phase
}

// NewTrajectory strings phases together, assigning each its interval.
func NewTrajectory(phases ...Phase) (*Trajectory, error) {
	if len(phases) == 0 {
		return nil, errors.New("trajectory needs at least one phase")
	}
	out := make([]Phase, len(phases))
	start := 0
	for i, p := range phases {
		if p.steps < 1 {
			return nil, errors.Errorf("phase %d has no timesteps", i)
		}
		p.interval = Interval{Start: start, End: start + p.steps - 1}
		out[i] = p
		start = p.interval.End + 1
	}
	return &Trajectory{phases: out}, nil
}

// NumPhases returns the number of phases.
func (tr *Trajectory) NumPhases() int { return len(tr.phases) }

// Phase returns phase k.
func (tr *Trajectory) Phase(k int) (Phase, error) {
	if k < 0 || k >= len(tr.phases) {
		return Phase{}, errors.Errorf("phase %d out of range", k)
	}
	return tr.phases[k], nil
}

// Phases returns all phases in order.
func (tr *Trajectory) Phases() []Phase { return tr.phases }

// FinalTimestep returns the last timestep of the last phase.
func (tr *Trajectory) FinalTimestep() int {
	return tr.phases[len(tr.phases)-1].interval.End
}

// PhaseOf returns the index of the phase containing timestep t.
func (tr *Trajectory) PhaseOf(t int) (int, error) {
	for i, p := range tr.phases {
		if p.interval.Contains(t) {
			return i, nil
		}
	}
	return 0, errors.Errorf("timestep %d outside trajectory", t)
}

// ContactLinks returns one contact point per link appearing in any phase's
// stance, in first-appearance order.
func (tr *Trajectory) ContactLinks() []dynamics.ContactPoint {
	seen := map[int]bool{}
	var out []dynamics.ContactPoint
	for _, p := range tr.phases {
		for _, c := range p.stance {
			if !seen[c.LinkID] {
				seen[c.LinkID] = true
				out = append(out, c)
			}
		}
	}
	return out
}
