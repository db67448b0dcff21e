package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestExpLogRoundTrip(t *testing.T) {
	twists := []Twist{
		{},
		{0, 0, 1, 0, 1, 0},
		{0.3, -0.2, 0.9, 1.5, 0.2, -0.7},
		{1e-8, 0, 0, 1, 2, 3},
		{0, 0, math.Pi / 2, 0, math.Pi / 2, 0},
	}
	for _, x := range twists {
		back := Log(Exp(x))
		for i := 0; i < 6; i++ {
			test.That(t, back[i], test.ShouldAlmostEqual, x[i], 1e-9)
		}
	}
}

func TestExpIdentity(t *testing.T) {
	p := Exp(Twist{})
	test.That(t, PoseAlmostEqual(p, NewZeroPose(), 1e-12), test.ShouldBeTrue)
}

func TestExpClosedForm(t *testing.T) {
	// rotation of pi/2 about z through a screw axis with unit pitch in y
	x := Twist{0, 0, 1, 0, 1, 0}.Scale(math.Pi / 2)
	p := Exp(x)
	expected := NewPoseFromAxisAngle(r3.Vector{X: -1, Y: 1}, r3.Vector{Z: 1}, math.Pi/2)
	test.That(t, PoseAlmostEqual(p, expected, 1e-9), test.ShouldBeTrue)
}

func TestComposeInvert(t *testing.T) {
	p := NewPoseFromAxisAngle(r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{X: 1, Y: 1}, 0.7)
	q := NewPoseFromAxisAngle(r3.Vector{X: -2, Z: 0.5}, r3.Vector{Z: 1}, -1.2)

	id := Compose(p, p.Invert())
	test.That(t, PoseAlmostEqual(id, NewZeroPose(), 1e-10), test.ShouldBeTrue)

	between := Between(p, q)
	test.That(t, PoseAlmostEqual(Compose(p, between), q, 1e-10), test.ShouldBeTrue)
}

func TestTransformPoint(t *testing.T) {
	p := NewPoseFromAxisAngle(r3.Vector{X: 1}, r3.Vector{Z: 1}, math.Pi/2)
	pt := p.TransformPoint(r3.Vector{X: 1})
	test.That(t, pt.X, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, pt.Y, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, pt.Z, test.ShouldAlmostEqual, 0, 1e-12)
}

func TestAdjointOfIdentity(t *testing.T) {
	ad := Adjoint(NewZeroPose())
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			if i == j {
				test.That(t, ad.At(i, j), test.ShouldAlmostEqual, 1, 1e-12)
			} else {
				test.That(t, ad.At(i, j), test.ShouldAlmostEqual, 0, 1e-12)
			}
		}
	}
}

func TestAdjointAction(t *testing.T) {
	// Ad(T) x == Log-compatible conjugation: Exp(Ad(T)x) == T Exp(x) T^-1
	p := NewPoseFromAxisAngle(r3.Vector{X: 0.3, Y: -1, Z: 2}, r3.Vector{Y: 1}, 0.9)
	x := Twist{0.2, -0.1, 0.4, 1, 0, -2}

	adX := make([]float64, 6)
	v := mat.NewVecDense(6, x.Slice())
	out := mat.NewVecDense(6, adX)
	out.MulVec(Adjoint(p), v)

	lhs := Exp(TwistFromSlice(adX))
	rhs := Compose(Compose(p, Exp(x)), p.Invert())
	test.That(t, PoseAlmostEqual(lhs, rhs, 1e-9), test.ShouldBeTrue)
}

func TestTwistBracketMatchesAdjointMatrix(t *testing.T) {
	x := Twist{0.1, 0.2, -0.3, 1, -1, 0.5}
	y := Twist{-0.4, 0.1, 0.8, 0.3, 2, -1}
	br := TwistBracket(x, y)

	got := mat.NewVecDense(6, nil)
	got.MulVec(TwistAdjoint(x), mat.NewVecDense(6, y.Slice()))
	for i := 0; i < 6; i++ {
		test.That(t, got.AtVec(i), test.ShouldAlmostEqual, br[i], 1e-12)
	}
}

func TestLogJacobianInvNumeric(t *testing.T) {
	// Log(Exp(x) Exp(d)) - Log(Exp(x)) should match LogJacobianInv(x) * d
	xs := []Twist{
		{0.2, -0.4, 0.3, 1, 0.5, -2},
		{0, 0, 0, 1, 2, 3},
		{1.2, 0.1, -0.5, 0, 0, 0},
	}
	const step = 1e-6
	for _, x := range xs {
		jac := LogJacobianInv(x)
		base := Exp(x)
		for j := 0; j < 6; j++ {
			var dp, dm Twist
			dp[j] = step
			dm[j] = -step
			plus := Log(Compose(base, Exp(dp)))
			minus := Log(Compose(base, Exp(dm)))
			for i := 0; i < 6; i++ {
				numeric := (plus[i] - minus[i]) / (2 * step)
				test.That(t, jac.At(i, j), test.ShouldAlmostEqual, numeric, 1e-5)
			}
		}
	}
}

func TestInterpolate(t *testing.T) {
	p1 := NewPoseFromPoint(r3.Vector{X: 1})
	p2 := NewPoseFromAxisAngle(r3.Vector{X: 3, Y: 2}, r3.Vector{Z: 1}, math.Pi/2)

	test.That(t, PoseAlmostEqual(Interpolate(p1, p2, 0), p1, 1e-10), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(Interpolate(p1, p2, 1), p2, 1e-10), test.ShouldBeTrue)

	// midpoint composed with itself spans the full motion
	mid := Interpolate(p1, p2, 0.5)
	half := Between(p1, mid)
	test.That(t, PoseAlmostEqual(Compose(mid, half), p2, 1e-9), test.ShouldBeTrue)
}

func TestInterpolateTranslationLinear(t *testing.T) {
	p1 := NewPoseFromPoint(r3.Vector{X: 1, Y: 2, Z: 3})
	p2 := NewPoseFromPoint(r3.Vector{X: 3, Y: 6, Z: -1})
	mid := Interpolate(p1, p2, 0.25)
	test.That(t, mid.Point().X, test.ShouldAlmostEqual, 1.5, 1e-12)
	test.That(t, mid.Point().Y, test.ShouldAlmostEqual, 3, 1e-12)
	test.That(t, mid.Point().Z, test.ShouldAlmostEqual, 2, 1e-12)
}
