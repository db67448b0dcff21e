package robot

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dynamics/spatialmath"
)

func TestTwoLinkPlanarScrewAxes(t *testing.T) {
	r, err := NewTwoLinkPlanar()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.NumLinks(), test.ShouldEqual, 3)
	test.That(t, r.NumJoints(), test.ShouldEqual, 2)

	// both joints rotate about z one meter behind their child's com
	want := spatialmath.NewTwist(r3.Vector{Z: 1}, r3.Vector{Y: 1})
	for _, name := range []string{"j1", "j2"} {
		j, err := r.Joint(name)
		test.That(t, err, test.ShouldBeNil)
		s := j.ScrewAxis()
		for i := 0; i < 6; i++ {
			test.That(t, s[i], test.ShouldAlmostEqual, want[i], 1e-12)
		}
	}
}

func TestForwardKinematicsClosedForm(t *testing.T) {
	r, err := NewTwoLinkPlanar()
	test.That(t, err, test.ShouldBeNil)

	base, err := r.Link("l0")
	test.That(t, err, test.ShouldBeNil)

	poses, twists, err := r.ForwardKinematics(
		[]float64{math.Pi / 2, 0},
		[]float64{1, 0},
		"l0", base.FixedPose(), spatialmath.Twist{},
	)
	test.That(t, err, test.ShouldBeNil)

	// first link's com swings to (0,1,0) rotated a quarter turn about z
	wantL1 := spatialmath.NewPoseFromAxisAngle(r3.Vector{Y: 1}, r3.Vector{Z: 1}, math.Pi/2)
	test.That(t, spatialmath.PoseAlmostEqual(poses[1], wantL1, 1e-9), test.ShouldBeTrue)

	// second joint at rest keeps the same orientation two meters further out
	wantL2 := spatialmath.NewPoseFromAxisAngle(r3.Vector{Y: 3}, r3.Vector{Z: 1}, math.Pi/2)
	test.That(t, spatialmath.PoseAlmostEqual(poses[2], wantL2, 1e-9), test.ShouldBeTrue)

	// unit rate at j1 only: com of l1 moves at 1, com of l2 at 3
	wantV1 := spatialmath.NewTwist(r3.Vector{Z: 1}, r3.Vector{Y: 1})
	wantV2 := spatialmath.NewTwist(r3.Vector{Z: 1}, r3.Vector{Y: 3})
	for i := 0; i < 6; i++ {
		test.That(t, twists[1][i], test.ShouldAlmostEqual, wantV1[i], 1e-9)
		test.That(t, twists[2][i], test.ShouldAlmostEqual, wantV2[i], 1e-9)
	}
}

func TestForwardKinematicsFromLeaf(t *testing.T) {
	r, err := NewTwoLinkPlanar()
	test.That(t, err, test.ShouldBeNil)

	angles := []float64{0.4, -0.9}
	vels := []float64{0.3, 0.7}
	poses, twists, err := r.ForwardKinematics(angles, vels, "l0", spatialmath.NewZeroPose(), spatialmath.Twist{})
	test.That(t, err, test.ShouldBeNil)

	// rooting the walk at the leaf must reproduce the same world state
	backPoses, backTwists, err := r.ForwardKinematics(angles, vels, "l2", poses[2], twists[2])
	test.That(t, err, test.ShouldBeNil)
	for i := range poses {
		test.That(t, spatialmath.PoseAlmostEqual(poses[i], backPoses[i], 1e-9), test.ShouldBeTrue)
		for d := 0; d < 6; d++ {
			test.That(t, backTwists[i][d], test.ShouldAlmostEqual, twists[i][d], 1e-9)
		}
	}
}

func TestForwardKinematicsBadInput(t *testing.T) {
	r, err := NewTwoLinkPlanar()
	test.That(t, err, test.ShouldBeNil)

	_, _, err = r.ForwardKinematics([]float64{0}, []float64{0}, "l0", spatialmath.NewZeroPose(), spatialmath.Twist{})
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = r.ForwardKinematics([]float64{0, 0}, []float64{0, 0}, "nope", spatialmath.NewZeroPose(), spatialmath.Twist{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestJointPoseRoundTrip(t *testing.T) {
	r, err := NewTwoLinkPlanar()
	test.That(t, err, test.ShouldBeNil)
	j, err := r.Joint("j2")
	test.That(t, err, test.ShouldBeNil)

	wTp := spatialmath.NewPoseFromAxisAngle(r3.Vector{X: 0.3, Y: -0.2, Z: 1.1}, r3.Vector{X: 1, Y: 1}, 0.8)
	q := 0.6
	back := j.ParentPoseFrom(j.ChildPoseFrom(wTp, q), q)
	test.That(t, spatialmath.PoseAlmostEqual(wTp, back, 1e-9), test.ShouldBeTrue)
}

func TestAddJointRejectsLoops(t *testing.T) {
	r, err := NewTwoLinkPlanar()
	test.That(t, err, test.ShouldBeNil)

	_, err = r.AddJoint(JointParams{
		Name:   "loop",
		Type:   Revolute,
		Parent: "l2",
		Child:  "l0",
		WTj:    spatialmath.NewZeroPose(),
		Axis:   r3.Vector{Z: 1},
	})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAddRejectsDuplicatesAndUnknowns(t *testing.T) {
	r, err := NewTwoLinkPlanar()
	test.That(t, err, test.ShouldBeNil)

	_, err = r.AddLink(LinkParams{Name: "l1"})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = r.AddJoint(JointParams{Name: "j1", Parent: "l0", Child: "l1"})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = r.AddJoint(JointParams{Name: "j9", Parent: "ghost", Child: "l1"})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSingleRevoluteEffectiveInertia(t *testing.T) {
	r, err := NewSingleRevolute()
	test.That(t, err, test.ShouldBeNil)

	j, err := r.Joint("j1")
	test.That(t, err, test.ShouldBeNil)
	s := j.ScrewAxis()
	want := spatialmath.NewTwist(r3.Vector{X: 1}, r3.Vector{Y: -1})
	for i := 0; i < 6; i++ {
		test.That(t, s[i], test.ShouldAlmostEqual, want[i], 1e-12)
	}

	arm, err := r.Link("l2")
	test.That(t, err, test.ShouldBeNil)
	g := arm.InertiaMatrix()
	sv := mat.NewVecDense(6, s.Slice())
	var gs mat.VecDense
	gs.MulVec(g, sv)
	test.That(t, mat.Dot(sv, &gs), test.ShouldAlmostEqual, 16, 1e-12)
}

func TestFixedLink(t *testing.T) {
	r, err := NewSingleRevolute()
	test.That(t, err, test.ShouldBeNil)

	fixed, err := r.FixedLink()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fixed.Name(), test.ShouldEqual, "l1")
	test.That(t, spatialmath.PoseAlmostEqual(
		fixed.FixedPose(),
		spatialmath.NewPoseFromPoint(r3.Vector{Z: 1}), 1e-12), test.ShouldBeTrue)

	arm, err := r.Link("l2")
	test.That(t, err, test.ShouldBeNil)
	arm.Fix(arm.WTcom())
	_, err = r.FixedLink()
	test.That(t, err, test.ShouldNotBeNil)
}
