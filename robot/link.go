// Package robot models an articulated rigid-body robot as a tree of links and
// joints. The Robot owns all links and joints in indexed storage; links and
// joints refer to each other by id, never by ownership.
package robot

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dynamics/spatialmath"
)

// LinkParams collects everything needed to construct a link.
type LinkParams struct {
	Name string
	Mass float64
	// Inertia is the 3x3 rotational inertia expressed in the center-of-mass frame.
	Inertia mgl64.Mat3
	// BMcom is the pose of the center-of-mass frame relative to the link frame.
	BMcom spatialmath.Pose
	// WTl is the pose of the link frame in the world at the rest configuration.
	WTl spatialmath.Pose
}

// Link is one rigid body of the robot. Links are mutable only while the model
// is under construction and immutable afterward.
type Link struct {
	id      int
	name    string
	mass    float64
	inertia mgl64.Mat3
	bMcom   spatialmath.Pose
	wTl     spatialmath.Pose

	fixed     bool
	fixedPose spatialmath.Pose

	joints []int
}

// ID returns the link's stable id assigned at model-build time.
func (l *Link) ID() int { return l.id }

// Name returns the link's name.
func (l *Link) Name() string { return l.name }

// Mass returns the link's mass.
func (l *Link) Mass() float64 { return l.mass }

// Inertia returns the rotational inertia in the center-of-mass frame.
func (l *Link) Inertia() mgl64.Mat3 { return l.inertia }

// BMcom returns the center-of-mass frame relative to the link frame.
func (l *Link) BMcom() spatialmath.Pose { return l.bMcom }

// WTl returns the link frame in the world at rest.
func (l *Link) WTl() spatialmath.Pose { return l.wTl }

// WTcom returns the center-of-mass frame in the world at rest.
func (l *Link) WTcom() spatialmath.Pose {
	return spatialmath.Compose(l.wTl, l.bMcom)
}

// Fix pins the link's center-of-mass frame at a world pose, removing it from
// the unknowns.
func (l *Link) Fix(pose spatialmath.Pose) {
	l.fixed = true
	l.fixedPose = pose
}

// Fixed reports whether the link is fixed in the world.
func (l *Link) Fixed() bool { return l.fixed }

// FixedPose returns the world pose the link is fixed at.
func (l *Link) FixedPose() spatialmath.Pose { return l.fixedPose }

// Joints returns the ids of the joints attached to this link.
func (l *Link) Joints() []int { return l.joints }

// NumJoints returns how many joints attach to this link.
func (l *Link) NumJoints() int { return len(l.joints) }

// InertiaMatrix returns the 6x6 generalized inertia in the center-of-mass
// frame: rotational inertia in the upper-left block, mass on the lower
// diagonal.
func (l *Link) InertiaMatrix() *mat.Dense {
	out := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			// mgl64 matrices are column-major
			out.Set(i, j, l.inertia[j*3+i])
		}
		out.Set(i+3, i+3, l.mass)
	}
	return out
}
