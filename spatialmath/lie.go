package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Twist is an element of se(3): angular part first, linear part second.
// The same layout is used for twist accelerations and, with the usual
// duality, for wrenches (torque; force).
type Twist [6]float64

// NewTwist assembles a twist from its angular and linear parts.
func NewTwist(angular, linear r3.Vector) Twist {
	return Twist{angular.X, angular.Y, angular.Z, linear.X, linear.Y, linear.Z}
}

// Angular returns the rotational part of the twist.
func (x Twist) Angular() r3.Vector {
	return r3.Vector{X: x[0], Y: x[1], Z: x[2]}
}

// Linear returns the translational part of the twist.
func (x Twist) Linear() r3.Vector {
	return r3.Vector{X: x[3], Y: x[4], Z: x[5]}
}

// Scale returns the twist scaled by s.
func (x Twist) Scale(s float64) Twist {
	var out Twist
	for i, v := range x {
		out[i] = v * s
	}
	return out
}

// Add returns the elementwise sum of two twists.
func (x Twist) Add(y Twist) Twist {
	var out Twist
	for i, v := range x {
		out[i] = v + y[i]
	}
	return out
}

// Sub returns the elementwise difference of two twists.
func (x Twist) Sub(y Twist) Twist {
	var out Twist
	for i, v := range x {
		out[i] = v - y[i]
	}
	return out
}

// Norm returns the Euclidean norm of the twist.
func (x Twist) Norm() float64 {
	sum := 0.
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Slice returns the twist as a newly allocated slice.
func (x Twist) Slice() []float64 {
	out := make([]float64, 6)
	copy(out, x[:])
	return out
}

// TwistFromSlice converts a length-6 slice to a Twist.
func TwistFromSlice(s []float64) Twist {
	var out Twist
	copy(out[:], s)
	return out
}

// Exp is the exponential map of SE(3), turning a twist into the pose reached
// by following it for unit time.
func Exp(x Twist) Pose {
	w := x.Angular()
	v := x.Linear()
	theta := w.Norm()
	rot := expSO3(w)
	// translation is the left Jacobian of SO(3) applied to the linear part
	a, b := so3JacobianCoeffs(theta)
	t := v.Add(w.Cross(v).Mul(a)).Add(w.Cross(w.Cross(v)).Mul(b))
	return Pose{rot: rot, trans: t}
}

// Log is the logarithm map of SE(3), inverse to Exp.
func Log(p Pose) Twist {
	w := logSO3(p.rot)
	theta := w.Norm()
	c := so3InvJacobianCoeff(theta)
	t := p.trans
	v := t.Sub(w.Cross(t).Mul(0.5)).Add(w.Cross(w.Cross(t)).Mul(c))
	return NewTwist(w, v)
}

// Adjoint returns the 6x6 adjoint matrix of a pose, mapping twists expressed
// in the pose's frame into the base frame.
func Adjoint(p Pose) *mat.Dense {
	r := p.RotationMatrix()
	t := p.trans
	out := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			// mgl64 matrices are column-major
			out.Set(i, j, r[j*3+i])
			out.Set(i+3, j+3, r[j*3+i])
		}
	}
	// lower-left block: skew(t) * R
	tr := skewTimes(t, r)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i+3, j, tr.At(i, j))
		}
	}
	return out
}

// TransformTwist applies the adjoint of a pose to a twist without building
// the full 6x6 matrix: the angular part rotates, the linear part rotates and
// picks up the moment of the translation.
func TransformTwist(p Pose, x Twist) Twist {
	w := p.RotatePoint(x.Angular())
	v := p.RotatePoint(x.Linear()).Add(p.trans.Cross(w))
	return NewTwist(w, v)
}

// TransformWrench applies the transpose adjoint of a pose to a wrench
// (moment; force). It is the dual of TransformTwist: for a pose mapping
// frame-A coordinates into frame B, it carries a wrench expressed in B back
// into A, preserving the power pairing with twists.
func TransformWrench(p Pose, w Twist) Twist {
	m, f := w.Angular(), w.Linear()
	return NewTwist(
		p.UnrotatePoint(m.Sub(p.trans.Cross(f))),
		p.UnrotatePoint(f),
	)
}

// TwistAdjoint returns the 6x6 matrix of the Lie bracket ad(x), so that
// TwistAdjoint(x) * y == [x, y].
func TwistAdjoint(x Twist) *mat.Dense {
	wHat := Skew(x.Angular())
	vHat := Skew(x.Linear())
	out := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, wHat.At(i, j))
			out.Set(i+3, j+3, wHat.At(i, j))
			out.Set(i+3, j, vHat.At(i, j))
		}
	}
	return out
}

// TwistBracket computes the Lie bracket [x, y] of two twists.
func TwistBracket(x, y Twist) Twist {
	w := x.Angular().Cross(y.Angular())
	v := x.Angular().Cross(y.Linear()).Add(x.Linear().Cross(y.Angular()))
	return NewTwist(w, v)
}

// Skew returns the 3x3 skew-symmetric matrix of a vector.
func Skew(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

// LogJacobianInv returns the inverse right Jacobian of the SE(3) logarithm at
// the twist x: to first order, Log(Exp(x) * Exp(d)) == x + LogJacobianInv(x)*d.
func LogJacobianInv(x Twist) *mat.Dense {
	return leftJacobianInv(x.Scale(-1))
}

// leftJacobianInv computes the inverse left Jacobian of SE(3).
func leftJacobianInv(x Twist) *mat.Dense {
	w := x.Angular()
	theta := w.Norm()
	jinv := so3LeftJacobianInv(w, theta)
	q := se3QMatrix(w, x.Linear(), theta)

	// [ Jinv       0    ]
	// [ -Jinv*Q*Jinv  Jinv ]
	var jqj mat.Dense
	jqj.Mul(jinv, q)
	jqj.Mul(&jqj, jinv)

	out := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, jinv.At(i, j))
			out.Set(i+3, j+3, jinv.At(i, j))
			out.Set(i+3, j, -jqj.At(i, j))
		}
	}
	return out
}

// so3JacobianCoeffs returns the (1-cos)/theta^2 and (theta-sin)/theta^3
// coefficients of the left Jacobian of SO(3), with series fallbacks near zero.
func so3JacobianCoeffs(theta float64) (float64, float64) {
	if theta < 1e-5 {
		t2 := theta * theta
		return 0.5 - t2/24, 1./6. - t2/120
	}
	t2 := theta * theta
	return (1 - math.Cos(theta)) / t2, (theta - math.Sin(theta)) / (t2 * theta)
}

func so3InvJacobianCoeff(theta float64) float64 {
	if theta < 1e-5 {
		return 1./12. + theta*theta/720
	}
	return 1/(theta*theta) - (1+math.Cos(theta))/(2*theta*math.Sin(theta))
}

func so3LeftJacobianInv(w r3.Vector, theta float64) *mat.Dense {
	wHat := Skew(w)
	var wHat2 mat.Dense
	wHat2.Mul(wHat, wHat)
	c := so3InvJacobianCoeff(theta)
	out := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := -0.5*wHat.At(i, j) + c*wHat2.At(i, j)
			if i == j {
				v++
			}
			out.Set(i, j, v)
		}
	}
	return out
}

// se3QMatrix is the off-diagonal block of the left Jacobian of SE(3)
// (Barfoot, "State Estimation for Robotics", eq. 7.86).
func se3QMatrix(w, v r3.Vector, theta float64) *mat.Dense {
	wHat := Skew(w)
	vHat := Skew(v)

	var c1, c2, c3 float64
	if theta < 1e-5 {
		t2 := theta * theta
		c1 = 1./6. - t2/120
		c2 = 1./24. - t2/720
		c3 = 1./120. - t2/5040
	} else {
		t2 := theta * theta
		t4 := t2 * t2
		sin, cos := math.Sin(theta), math.Cos(theta)
		c1 = (theta - sin) / (t2 * theta)
		c2 = (1 - t2/2 - cos) / t4
		c3 = -(theta - sin - t2*theta/6) / (t4 * theta)
	}

	var wv, vw, wvw, w2v, vw2, wvw2, w2vw mat.Dense
	wv.Mul(wHat, vHat)
	vw.Mul(vHat, wHat)
	wvw.Mul(&wv, wHat)
	w2v.Mul(wHat, &wv)
	vw2.Mul(&vw, wHat)
	wvw2.Mul(&wvw, wHat)
	w2vw.Mul(wHat, &wvw)

	out := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			q := 0.5*vHat.At(i, j) +
				c1*(wv.At(i, j)+vw.At(i, j)+wvw.At(i, j)) -
				c2*(w2v.At(i, j)+vw2.At(i, j)-3*wvw.At(i, j)) -
				0.5*(c2+3*c3)*(wvw2.At(i, j)+w2vw.At(i, j))
			out.Set(i, j, q)
		}
	}
	return out
}

func expSO3(w r3.Vector) quat.Number {
	theta := w.Norm()
	if theta < 1e-12 {
		return quat.Number{Real: 1, Imag: w.X / 2, Jmag: w.Y / 2, Kmag: w.Z / 2}
	}
	s := math.Sin(theta / 2)
	axis := w.Mul(s / theta)
	return quat.Number{Real: math.Cos(theta / 2), Imag: axis.X, Jmag: axis.Y, Kmag: axis.Z}
}

func logSO3(q quat.Number) r3.Vector {
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	im := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	s := im.Norm()
	if s < 1e-12 {
		return im.Mul(2)
	}
	theta := 2 * math.Atan2(s, q.Real)
	return im.Mul(theta / s)
}

// skewTimes computes skew(t) * R for a column-major 3x3 matrix R.
func skewTimes(t r3.Vector, r mgl64.Mat3) *mat.Dense {
	rd := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rd.Set(i, j, r[j*3+i])
		}
	}
	var out mat.Dense
	out.Mul(Skew(t), rd)
	return &out
}
