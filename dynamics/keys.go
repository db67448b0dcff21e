// Package dynamics formulates forward and inverse dynamics of articulated
// robots as factor graphs: typed optimization keys per (kind, entity,
// timestep), residual factors encoding joint kinematics and Newton-Euler
// balance with closed-form Jacobians, a graph builder, and a small
// forward-dynamics simulator on top.
package dynamics

import (
	"fmt"

	"go.viam.com/dynamics/optimize"
)

// Kind tags what physical quantity an optimization key refers to.
type Kind uint8

const (
	// KindPose is a link's center-of-mass world pose.
	KindPose Kind = iota
	// KindTwist is a link's body twist.
	KindTwist
	// KindTwistAccel is a link's body twist acceleration.
	KindTwistAccel
	// KindJointAngle is a joint's scalar coordinate.
	KindJointAngle
	// KindJointVel is a joint's scalar rate.
	KindJointVel
	// KindJointAccel is a joint's scalar acceleration.
	KindJointAccel
	// KindTorque is a joint's actuation torque.
	KindTorque
	// KindWrench is the wrench a joint transmits to its child link,
	// expressed in the child's center-of-mass frame.
	KindWrench
	// KindContactWrench is the reaction wrench the ground applies to a link.
	KindContactWrench
	// KindPhaseDuration is the timestep length of a trajectory phase.
	KindPhaseDuration
)

func (k Kind) symbol() string {
	switch k {
	case KindPose:
		return "p"
	case KindTwist:
		return "V"
	case KindTwistAccel:
		return "A"
	case KindJointAngle:
		return "q"
	case KindJointVel:
		return "v"
	case KindJointAccel:
		return "a"
	case KindTorque:
		return "T"
	case KindWrench:
		return "F"
	case KindContactWrench:
		return "C"
	case KindPhaseDuration:
		return "dt"
	}
	return "?"
}

// Key packs a kind, an entity id and a timestep into an opaque optimizer key:
// the kind in the top byte, 16 bits of id, 40 bits of timestep.
func Key(kind Kind, id, t int) optimize.Key {
	return optimize.Key(kind)<<56 | optimize.Key(uint16(id))<<40 | optimize.Key(uint64(t)&0xFFFFFFFFFF)
}

// KindOf extracts the kind from a packed key.
func KindOf(k optimize.Key) Kind { return Kind(k >> 56) }

// IDOf extracts the entity id from a packed key.
func IDOf(k optimize.Key) int { return int(uint16(k >> 40)) }

// TimestepOf extracts the timestep from a packed key.
func TimestepOf(k optimize.Key) int { return int(k & 0xFFFFFFFFFF) }

// FormatKey renders a packed key as e.g. "q(0)1": kind symbol, entity id,
// timestep.
func FormatKey(k optimize.Key) string {
	return fmt.Sprintf("%s(%d)%d", KindOf(k).symbol(), IDOf(k), TimestepOf(k))
}

// PoseKey returns the key of link id's pose at timestep t.
func PoseKey(id, t int) optimize.Key { return Key(KindPose, id, t) }

// TwistKey returns the key of link id's twist at timestep t.
func TwistKey(id, t int) optimize.Key { return Key(KindTwist, id, t) }

// TwistAccelKey returns the key of link id's twist acceleration at timestep t.
func TwistAccelKey(id, t int) optimize.Key { return Key(KindTwistAccel, id, t) }

// JointAngleKey returns the key of joint id's coordinate at timestep t.
func JointAngleKey(id, t int) optimize.Key { return Key(KindJointAngle, id, t) }

// JointVelKey returns the key of joint id's rate at timestep t.
func JointVelKey(id, t int) optimize.Key { return Key(KindJointVel, id, t) }

// JointAccelKey returns the key of joint id's acceleration at timestep t.
func JointAccelKey(id, t int) optimize.Key { return Key(KindJointAccel, id, t) }

// TorqueKey returns the key of joint id's torque at timestep t.
func TorqueKey(id, t int) optimize.Key { return Key(KindTorque, id, t) }

// WrenchKey returns the key of the wrench joint id applies to its child link
// at timestep t.
func WrenchKey(id, t int) optimize.Key { return Key(KindWrench, id, t) }

// ContactWrenchKey returns the key of the ground reaction on link id at
// timestep t.
func ContactWrenchKey(id, t int) optimize.Key { return Key(KindContactWrench, id, t) }

// PhaseDurationKey returns the key of phase k's timestep duration.
func PhaseDurationKey(k int) optimize.Key { return Key(KindPhaseDuration, k, 0) }
