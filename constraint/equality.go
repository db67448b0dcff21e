package constraint

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dynamics/optimize"
)

// Equality is one equality constraint g(x) = 0 with a per-component
// feasibility tolerance. Tolerances make constraints of differing physical
// units comparable and set the merit factor's weighting.
type Equality struct {
	expr      Expression
	tolerance []float64
}

// NewEquality wraps an expression as an equality constraint. A single
// tolerance value is broadcast across all components.
func NewEquality(expr Expression, tolerance ...float64) (*Equality, error) {
	tol := make([]float64, expr.Dim())
	switch len(tolerance) {
	case 1:
		for i := range tol {
			tol[i] = tolerance[0]
		}
	case expr.Dim():
		copy(tol, tolerance)
	default:
		return nil, errors.Errorf("expected 1 or %d tolerances, got %d", expr.Dim(), len(tolerance))
	}
	for i, t := range tol {
		if t <= 0 {
			return nil, errors.Errorf("tolerance %d must be positive, got %g", i, t)
		}
	}
	return &Equality{expr: expr, tolerance: tol}, nil
}

// Dim returns the constraint's dimension.
func (c *Equality) Dim() int { return c.expr.Dim() }

// Tolerance returns the per-component feasibility tolerance.
func (c *Equality) Tolerance() []float64 { return c.tolerance }

// Violation returns the raw g(x).
func (c *Equality) Violation(vs *optimize.Values) ([]float64, error) {
	return c.expr.Value(vs)
}

// ToleranceScaledViolation returns g(x) divided elementwise by tolerance.
func (c *Equality) ToleranceScaledViolation(vs *optimize.Values) ([]float64, error) {
	g, err := c.expr.Value(vs)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(g))
	for i := range g {
		out[i] = g[i] / c.tolerance[i]
	}
	return out, nil
}

// Feasible reports whether |g(x)| ≤ tolerance holds component-wise. The
// boundary counts as feasible.
func (c *Equality) Feasible(vs *optimize.Values) (bool, error) {
	g, err := c.expr.Value(vs)
	if err != nil {
		return false, err
	}
	for i := range g {
		if math.Abs(g[i]) > c.tolerance[i] {
			return false, nil
		}
	}
	return true, nil
}

// CreateFactor returns the merit factor for penalty parameter mu and offset
// bias: residual g(x)+bias weighted by sigma_i = tolerance_i/√mu, so the
// factor's error is 0.5·mu·‖g(x)+bias‖² in diag(1/tolerance²) metric.
func (c *Equality) CreateFactor(mu float64, bias []float64) optimize.Factor {
	sigmas := make([]float64, len(c.tolerance))
	root := math.Sqrt(mu)
	for i, t := range c.tolerance {
		sigmas[i] = t / root
	}
	b := make([]float64, c.Dim())
	copy(b, bias)
	return &meritFactor{
		expr:  c.expr,
		bias:  b,
		noise: optimize.Diagonal(sigmas),
	}
}

// meritFactor is the penalty-weighted residual standing in for a hard
// equality constraint.
type meritFactor struct {
	expr  Expression
	bias  []float64
	noise *optimize.NoiseModel
}

func (f *meritFactor) Keys() []optimize.Key        { return f.expr.Keys() }
func (f *meritFactor) Dim() int                    { return f.expr.Dim() }
func (f *meritFactor) Noise() *optimize.NoiseModel { return f.noise }

func (f *meritFactor) Residual(vs *optimize.Values) ([]float64, error) {
	g, err := f.expr.Value(vs)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(g))
	for i := range g {
		out[i] = g[i] + f.bias[i]
	}
	return out, nil
}

func (f *meritFactor) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	return f.expr.Jacobians(vs)
}

// Constraints is a heterogeneous collection of equality constraints.
type Constraints struct {
	constraints []*Equality
}

// NewConstraints returns an empty container.
func NewConstraints() *Constraints { return &Constraints{} }

// Add registers constraints.
func (cs *Constraints) Add(constraints ...*Equality) {
	cs.constraints = append(cs.constraints, constraints...)
}

// Size returns the number of registered constraints, not their total scalar
// dimension.
func (cs *Constraints) Size() int { return len(cs.constraints) }

// All returns the registered constraints.
func (cs *Constraints) All() []*Equality { return cs.constraints }

// Feasible reports whether every constraint is feasible.
func (cs *Constraints) Feasible(vs *optimize.Values) (bool, error) {
	for _, c := range cs.constraints {
		ok, err := c.Feasible(vs)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// MeritGraph builds the merit factors for all constraints at penalty mu with
// zero bias.
func (cs *Constraints) MeritGraph(mu float64) *optimize.Graph {
	g := optimize.NewGraph()
	for _, c := range cs.constraints {
		g.Add(c.CreateFactor(mu, make([]float64, c.Dim())))
	}
	return g
}
