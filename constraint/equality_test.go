package constraint

import (
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dynamics/logging"
	"go.viam.com/dynamics/optimize"
)

// identityExpr exposes selected scalar unknowns directly: g(x) = x - target.
func identityExpr(key optimize.Key, target float64) Expression {
	return &FuncExpression{
		ExprKeys: []optimize.Key{key},
		ExprDim:  1,
		ValueFn: func(vs *optimize.Values) ([]float64, error) {
			x, err := vs.Scalar(key)
			if err != nil {
				return nil, err
			}
			return []float64{x - target}, nil
		},
		JacobianFn: func(vs *optimize.Values) ([]*mat.Dense, error) {
			return []*mat.Dense{mat.NewDense(1, 1, []float64{1})}, nil
		},
	}
}

func vectorExpr(key optimize.Key, dim int) Expression {
	return &FuncExpression{
		ExprKeys: []optimize.Key{key},
		ExprDim:  dim,
		ValueFn: func(vs *optimize.Values) ([]float64, error) {
			return vs.Vector(key)
		},
		JacobianFn: func(vs *optimize.Values) ([]*mat.Dense, error) {
			jac := mat.NewDense(dim, dim, nil)
			for i := 0; i < dim; i++ {
				jac.Set(i, i, 1)
			}
			return []*mat.Dense{jac}, nil
		},
	}
}

func scalarValues(t *testing.T, key optimize.Key, x float64) *optimize.Values {
	t.Helper()
	vs := optimize.NewValues()
	test.That(t, vs.Insert(key, optimize.Scalar(x)), test.ShouldBeNil)
	return vs
}

func TestMeritFactorAlgebraScalar(t *testing.T) {
	// g=4, bias=0.5, tol=0.1, mu=4: sigma=0.05, whitened 90, error 4050
	eq, err := NewEquality(identityExpr(1, 0), 0.1)
	test.That(t, err, test.ShouldBeNil)
	vs := scalarValues(t, 1, 4)

	f := eq.CreateFactor(4, []float64{0.5})
	test.That(t, f.Noise().Sigma(0), test.ShouldAlmostEqual, 0.05, 1e-12)
	e, err := optimize.FactorError(f, vs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e, test.ShouldAlmostEqual, 4050, 1e-9)

	// g=1, no bias, mu=1: error 0.5*(1/0.1)^2 = 50
	vs = scalarValues(t, 1, 1)
	f = eq.CreateFactor(1, []float64{0})
	e, err = optimize.FactorError(f, vs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e, test.ShouldAlmostEqual, 50, 1e-12)
}

func TestMeritFactorAlgebraVector(t *testing.T) {
	eq, err := NewEquality(vectorExpr(2, 2), 0.1, 0.5)
	test.That(t, err, test.ShouldBeNil)

	vs := optimize.NewValues()
	test.That(t, vs.Insert(2, optimize.Vector{2, 1}), test.ShouldBeNil)

	// mu=1: whitened (20, 2), error 0.5*(400+4) = 202
	f := eq.CreateFactor(1, []float64{0, 0})
	e, err := optimize.FactorError(f, vs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e, test.ShouldAlmostEqual, 202, 1e-9)

	// mu=4, bias (0.5, 0.5): residual (2.5, 1.5), sigmas (0.05, 0.25),
	// whitened (50, 6), error 0.5*(2500+36) = 1268
	f = eq.CreateFactor(4, []float64{0.5, 0.5})
	e, err = optimize.FactorError(f, vs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e, test.ShouldAlmostEqual, 1268, 1e-9)
}

func TestFeasibilityBoundary(t *testing.T) {
	eq, err := NewEquality(identityExpr(1, 0), 0.1)
	test.That(t, err, test.ShouldBeNil)

	// exactly on the tolerance counts as feasible
	ok, err := eq.Feasible(scalarValues(t, 1, 0.1))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)

	ok, err = eq.Feasible(scalarValues(t, 1, -0.1))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)

	ok, err = eq.Feasible(scalarValues(t, 1, 0.1000001))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestToleranceScaledViolation(t *testing.T) {
	eq, err := NewEquality(vectorExpr(2, 2), 0.1, 0.5)
	test.That(t, err, test.ShouldBeNil)
	vs := optimize.NewValues()
	test.That(t, vs.Insert(2, optimize.Vector{2, 1}), test.ShouldBeNil)

	raw, err := eq.Violation(vs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw[0], test.ShouldAlmostEqual, 2, 1e-12)
	test.That(t, raw[1], test.ShouldAlmostEqual, 1, 1e-12)

	scaled, err := eq.ToleranceScaledViolation(vs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scaled[0], test.ShouldAlmostEqual, 20, 1e-12)
	test.That(t, scaled[1], test.ShouldAlmostEqual, 2, 1e-12)
}

func TestEqualityBadTolerance(t *testing.T) {
	_, err := NewEquality(identityExpr(1, 0), 0)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewEquality(vectorExpr(2, 2), 0.1, 0.2, 0.3)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConstraintsSize(t *testing.T) {
	cs := NewConstraints()
	eq1, err := NewEquality(identityExpr(1, 0), 0.1)
	test.That(t, err, test.ShouldBeNil)
	eq2, err := NewEquality(vectorExpr(2, 2), 0.1, 0.5)
	test.That(t, err, test.ShouldBeNil)
	cs.Add(eq1, eq2)

	// count of constraints, not scalar dimensions
	test.That(t, cs.Size(), test.ShouldEqual, 2)
	test.That(t, cs.MeritGraph(1).Size(), test.ShouldEqual, 2)
}

func TestFactorExpression(t *testing.T) {
	prior := optimize.NewPriorFactor(5, optimize.Scalar(2), optimize.Unit(1))
	expr := &FactorExpression{Factor: prior}
	test.That(t, expr.Dim(), test.ShouldEqual, 1)

	vs := scalarValues(t, 5, 2.7)
	g, err := expr.Value(vs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, g[0], test.ShouldAlmostEqual, 0.7, 1e-12)
}

func TestSolveWithPenalty(t *testing.T) {
	logger := logging.NewTestLogger(t)

	// a strong objective pulls x to 0; the constraint demands x = 3 within
	// 0.01, so continuation must raise mu well past the objective's weight
	objectives := optimize.NewGraph()
	objectives.Add(optimize.NewPriorFactor(1, optimize.Scalar(0), optimize.Isotropic(1, 0.001)))

	eq, err := NewEquality(identityExpr(1, 3), 0.01)
	test.That(t, err, test.ShouldBeNil)
	cs := NewConstraints()
	cs.Add(eq)

	params := DefaultPenaltyParams()
	params.MuFactor = 10

	initial := scalarValues(t, 1, 0)
	solved, err := SolveWithPenalty(logger, objectives, cs, initial, params)
	test.That(t, err, test.ShouldBeNil)

	ok, err := cs.Feasible(solved)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	x, err := solved.Scalar(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, x, test.ShouldAlmostEqual, 3, 0.011)
}
