package robot

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"go.viam.com/dynamics/spatialmath"
)

// NewTwoLinkPlanar builds a planar two-revolute arm used across tests and
// examples: a fixed base at the origin and two 2m links along +x, both joints
// rotating about z. Link centers of mass sit at the link midpoints, giving
// screw axes (0,0,1,0,1,0) for both joints.
func NewTwoLinkPlanar() (*Robot, error) {
	r := NewRobot("two_link_planar")

	base, err := r.AddLink(LinkParams{
		Name:    "l0",
		Mass:    0.01,
		Inertia: mgl64.Diag3(r3ToVec3(r3.Vector{X: 0.001, Y: 0.001, Z: 0.001})),
		BMcom:   spatialmath.NewZeroPose(),
		WTl:     spatialmath.NewZeroPose(),
	})
	if err != nil {
		return nil, err
	}
	base.Fix(base.WTcom())

	if _, err := r.AddLink(LinkParams{
		Name:    "l1",
		Mass:    1,
		Inertia: mgl64.Diag3(r3ToVec3(r3.Vector{X: 0.1, Y: 0.2, Z: 0.3})),
		BMcom:   spatialmath.NewPoseFromPoint(r3.Vector{X: 1}),
		WTl:     spatialmath.NewZeroPose(),
	}); err != nil {
		return nil, err
	}
	if _, err := r.AddLink(LinkParams{
		Name:    "l2",
		Mass:    1,
		Inertia: mgl64.Diag3(r3ToVec3(r3.Vector{X: 0.1, Y: 0.2, Z: 0.3})),
		BMcom:   spatialmath.NewPoseFromPoint(r3.Vector{X: 1}),
		WTl:     spatialmath.NewPoseFromPoint(r3.Vector{X: 2}),
	}); err != nil {
		return nil, err
	}

	if _, err := r.AddJoint(JointParams{
		Name:   "j1",
		Type:   Revolute,
		Parent: "l0",
		Child:  "l1",
		WTj:    spatialmath.NewZeroPose(),
		Axis:   r3.Vector{Z: 1},
		Limits: Limits{PositionLower: -3.14, PositionUpper: 3.14, Velocity: 10, Torque: 50},
	}); err != nil {
		return nil, err
	}
	if _, err := r.AddJoint(JointParams{
		Name:   "j2",
		Type:   Revolute,
		Parent: "l1",
		Child:  "l2",
		WTj:    spatialmath.NewPoseFromPoint(r3.Vector{X: 2}),
		Axis:   r3.Vector{Z: 1},
		Limits: Limits{PositionLower: -3.14, PositionUpper: 3.14, Velocity: 10, Torque: 50},
	}); err != nil {
		return nil, err
	}
	return r, nil
}

// NewSingleRevolute builds a one-joint pendulum: a heavy fixed base and a 15kg
// arm hanging 1m past an x-axis hinge at height 2. The arm's effective
// inertia about the hinge is 16 (unit rotational inertia plus mass times
// offset squared), which makes dynamics outcomes easy to verify by hand.
func NewSingleRevolute() (*Robot, error) {
	r := NewRobot("single_revolute")

	base, err := r.AddLink(LinkParams{
		Name:    "l1",
		Mass:    100,
		Inertia: mgl64.Diag3(r3ToVec3(r3.Vector{X: 3, Y: 2, Z: 1})),
		BMcom:   spatialmath.NewPoseFromPoint(r3.Vector{Z: 1}),
		WTl:     spatialmath.NewZeroPose(),
	})
	if err != nil {
		return nil, err
	}
	base.Fix(base.WTcom())

	if _, err := r.AddLink(LinkParams{
		Name:    "l2",
		Mass:    15,
		Inertia: mgl64.Diag3(r3ToVec3(r3.Vector{X: 1, Y: 2, Z: 3})),
		BMcom:   spatialmath.NewPoseFromPoint(r3.Vector{Z: 1}),
		WTl:     spatialmath.NewPoseFromPoint(r3.Vector{Z: 2}),
	}); err != nil {
		return nil, err
	}

	if _, err := r.AddJoint(JointParams{
		Name:   "j1",
		Type:   Revolute,
		Parent: "l1",
		Child:  "l2",
		WTj:    spatialmath.NewPoseFromPoint(r3.Vector{Z: 2}),
		Axis:   r3.Vector{X: 1},
		Limits: Limits{PositionLower: -1.57, PositionUpper: 1.57, Velocity: 10, Torque: 100},
	}); err != nil {
		return nil, err
	}
	return r, nil
}

func r3ToVec3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}
