package dynamics

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/dynamics/logging"
	"go.viam.com/dynamics/optimize"
	"go.viam.com/dynamics/robot"
	"go.viam.com/dynamics/spatialmath"
)

// CostModel holds the noise sigmas used when assembling graphs.
type CostModel struct {
	Pose          float64
	Twist         float64
	TwistAccel    float64
	Wrench        float64
	Torque        float64
	ContactHeight float64
	ContactTwist  float64
	ContactMoment float64
	JointLimit    float64
	Prior         float64
	Collocation   float64
}

// DefaultCostModel returns the standard sigmas.
func DefaultCostModel() CostModel {
	return CostModel{
		Pose:          1e-5,
		Twist:         1e-5,
		TwistAccel:    1e-5,
		Wrench:        1e-4,
		Torque:        1e-4,
		ContactHeight: 1e-4,
		ContactTwist:  1e-4,
		ContactMoment: 1e-4,
		JointLimit:    1e-4,
		Prior:         1e-5,
		Collocation:   1e-5,
	}
}

// Builder assembles per-timestep factor graphs for a robot. Building never
// mutates the robot; the builder only reads link and joint structure.
type Builder struct {
	robot  *robot.Robot
	costs  CostModel
	logger logging.Logger
}

// NewBuilder returns a graph builder for a robot.
func NewBuilder(logger logging.Logger, r *robot.Robot, costs CostModel) *Builder {
	return &Builder{robot: r, costs: costs, logger: logger}
}

// Robot returns the robot graphs are built for.
func (b *Builder) Robot() *robot.Robot { return b.robot }

func (b *Builder) adjacentJoints(l *robot.Link) []*robot.Joint {
	joints := make([]*robot.Joint, 0, l.NumJoints())
	for _, jid := range l.Joints() {
		j, err := b.robot.JointByID(jid)
		if err != nil {
			continue
		}
		joints = append(joints, j)
	}
	return joints
}

// QFactors builds the kinematics-only graph for one timestep: a pose factor
// and limit factor per joint, pose priors on fixed links, and height factors
// for the given contacts.
func (b *Builder) QFactors(t int, contacts []ContactPoint, groundHeight float64) *optimize.Graph {
	g := optimize.NewGraph()
	for _, j := range b.robot.Joints() {
		g.Add(NewPoseFactor(j, t, optimize.Isotropic(6, b.costs.Pose)))
		g.Add(NewJointLimitFactor(j, t, optimize.Isotropic(1, b.costs.JointLimit)))
	}
	for _, l := range b.robot.Links() {
		if l.Fixed() {
			g.Add(optimize.NewPriorFactor(
				PoseKey(l.ID(), t),
				NewPoseValue(l.FixedPose()),
				optimize.Isotropic(6, b.costs.Prior)))
		}
	}
	for _, c := range contacts {
		g.Add(NewContactHeightFactor(c, groundHeight, t, optimize.Isotropic(1, b.costs.ContactHeight)))
	}
	b.logger.Debugf("built %d q-factors for t=%d", g.Size(), t)
	return g
}

// DynamicsFactors builds the dynamic part of the graph for one timestep:
// twist, twist-acceleration and torque factors per joint, a wrench balance
// per free link, rest priors on fixed links, and stationarity plus
// zero-moment factors for the given contacts.
func (b *Builder) DynamicsFactors(t int, contacts []ContactPoint, gravity r3.Vector) *optimize.Graph {
	g := optimize.NewGraph()
	inContact := map[int]bool{}
	for _, c := range contacts {
		inContact[c.LinkID] = true
	}

	for _, j := range b.robot.Joints() {
		g.Add(NewTwistFactor(j, t, optimize.Isotropic(6, b.costs.Twist)))
		g.Add(NewTwistAccelFactor(j, t, optimize.Isotropic(6, b.costs.TwistAccel)))
		g.Add(NewTorqueFactor(j, t, optimize.Isotropic(1, b.costs.Torque)))
	}
	for _, l := range b.robot.Links() {
		if l.Fixed() {
			zero := optimize.Vector(make([]float64, 6))
			g.Add(optimize.NewPriorFactor(TwistKey(l.ID(), t), zero, optimize.Isotropic(6, b.costs.Prior)))
			g.Add(optimize.NewPriorFactor(TwistAccelKey(l.ID(), t), zero, optimize.Isotropic(6, b.costs.Prior)))
			continue
		}
		g.Add(NewWrenchFactor(l, b.adjacentJoints(l), t, gravity, inContact[l.ID()],
			optimize.Isotropic(6, b.costs.Wrench)))
	}
	for _, c := range contacts {
		g.Add(NewContactTwistFactor(c, t, optimize.Isotropic(3, b.costs.ContactTwist)))
		g.Add(NewContactMomentFactor(c, t, optimize.Isotropic(3, b.costs.ContactMoment)))
	}
	b.logger.Debugf("built %d dynamics factors for t=%d", g.Size(), t)
	return g
}

// Graph builds the full kinodynamic graph for one timestep.
func (b *Builder) Graph(t int, contacts []ContactPoint, groundHeight float64, gravity r3.Vector) *optimize.Graph {
	g := b.QFactors(t, contacts, groundHeight)
	g.AddAll(b.DynamicsFactors(t, contacts, gravity))
	return g
}

// ForwardDynamicsPriors pins joint angles, rates and torques to known values
// so a solve recovers accelerations and wrenches.
func (b *Builder) ForwardDynamicsPriors(t int, angles, rates, torques []float64) (*optimize.Graph, error) {
	n := b.robot.NumJoints()
	if len(angles) != n || len(rates) != n || len(torques) != n {
		return nil, errors.Errorf(
			"expected %d angles, rates and torques, got %d, %d and %d",
			n, len(angles), len(rates), len(torques))
	}
	g := optimize.NewGraph()
	noise := optimize.Isotropic(1, b.costs.Prior)
	for _, j := range b.robot.Joints() {
		g.Add(optimize.NewPriorFactor(JointAngleKey(j.ID(), t), optimize.Scalar(angles[j.ID()]), noise))
		g.Add(optimize.NewPriorFactor(JointVelKey(j.ID(), t), optimize.Scalar(rates[j.ID()]), noise))
		g.Add(optimize.NewPriorFactor(TorqueKey(j.ID(), t), optimize.Scalar(torques[j.ID()]), noise))
	}
	return g, nil
}

// CollocationFactors ties every joint's angle and rate across [t, t+1] inside
// phase k.
func (b *Builder) CollocationFactors(t, phase int, scheme CollocationScheme) *optimize.Graph {
	g := optimize.NewGraph()
	noise := optimize.Isotropic(1, b.costs.Collocation)
	for _, j := range b.robot.Joints() {
		g.Add(NewJointAngleCollocationFactor(j.ID(), t, phase, scheme, noise))
		g.Add(NewJointVelCollocationFactor(j.ID(), t, phase, scheme, noise))
	}
	return g
}

// InitialValues seeds every unknown of a one-timestep graph from joint state:
// poses and twists by forward kinematics from the fixed link, everything else
// zero. Torques are seeded with the supplied values.
func (b *Builder) InitialValues(t int, angles, rates, torques []float64) (*optimize.Values, error) {
	root, err := b.robot.FixedLink()
	if err != nil {
		return nil, err
	}
	poses, twists, err := b.robot.ForwardKinematics(angles, rates, root.Name(), root.FixedPose(), spatialmath.Twist{})
	if err != nil {
		return nil, err
	}

	vs := optimize.NewValues()
	for _, l := range b.robot.Links() {
		if err := InsertPose(vs, l.ID(), t, poses[l.ID()]); err != nil {
			return nil, err
		}
		if err := InsertTwist(vs, l.ID(), t, twists[l.ID()]); err != nil {
			return nil, err
		}
		if err := InsertTwistAccel(vs, l.ID(), t, spatialmath.Twist{}); err != nil {
			return nil, err
		}
	}
	for _, j := range b.robot.Joints() {
		id := j.ID()
		if err := InsertJointAngle(vs, id, t, angles[id]); err != nil {
			return nil, err
		}
		if err := InsertJointVel(vs, id, t, rates[id]); err != nil {
			return nil, err
		}
		if err := InsertJointAccel(vs, id, t, 0); err != nil {
			return nil, err
		}
		if err := InsertTorque(vs, id, t, torques[id]); err != nil {
			return nil, err
		}
		if err := InsertWrench(vs, id, t, spatialmath.Twist{}); err != nil {
			return nil, err
		}
	}
	return vs, nil
}
