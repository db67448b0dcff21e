package trajectory

import (
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"go.viam.com/dynamics/dynamics"
	"go.viam.com/dynamics/robot"
)

// WalkSpec is a declarative walk cycle: which links can touch the ground and
// where, and the stance pattern phase by phase.
type WalkSpec struct {
	Name         string        `yaml:"name"`
	GroundHeight float64       `yaml:"ground_height"`
	Contacts     []ContactSpec `yaml:"contacts"`
	Phases       []PhaseSpec   `yaml:"phases"`
}

// ContactSpec names a contact point on a link, in the link's center-of-mass
// frame.
type ContactSpec struct {
	Link  string     `yaml:"link"`
	Point [3]float64 `yaml:"point"`
}

// PhaseSpec is one phase of the walk cycle: a step count and the links on the
// ground during it.
type PhaseSpec struct {
	Steps  int      `yaml:"steps"`
	Stance []string `yaml:"stance"`
}

// LoadWalkSpec reads a walk cycle from a YAML file.
func LoadWalkSpec(path string) (*WalkSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading walk spec")
	}
	var ws WalkSpec
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, errors.Wrapf(err, "parsing walk spec %q", path)
	}
	if len(ws.Phases) == 0 {
		return nil, errors.Errorf("walk spec %q has no phases", path)
	}
	return &ws, nil
}

// Trajectory resolves the walk cycle against a robot, repeated cycles times.
func (ws *WalkSpec) Trajectory(r *robot.Robot, cycles int) (*Trajectory, error) {
	if cycles < 1 {
		return nil, errors.Errorf("need at least one cycle, got %d", cycles)
	}
	points := map[string]dynamics.ContactPoint{}
	for _, c := range ws.Contacts {
		l, err := r.Link(c.Link)
		if err != nil {
			return nil, errors.Wrap(err, "resolving contact link")
		}
		points[c.Link] = dynamics.ContactPoint{
			LinkID: l.ID(),
			Point:  r3.Vector{X: c.Point[0], Y: c.Point[1], Z: c.Point[2]},
		}
	}

	var phases []Phase
	for cycle := 0; cycle < cycles; cycle++ {
		for i, ps := range ws.Phases {
			var stance []dynamics.ContactPoint
			for _, name := range ps.Stance {
				cp, ok := points[name]
				if !ok {
					return nil, errors.Errorf("phase %d stance link %q has no contact point", i, name)
				}
				stance = append(stance, cp)
			}
			p, err := NewPhase(ps.Steps, stance)
			if err != nil {
				return nil, errors.Wrapf(err, "phase %d", i)
			}
			phases = append(phases, p)
		}
	}
	return NewTrajectory(phases...)
}
