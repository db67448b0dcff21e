// Package constraint turns hard equality constraints into smoothly weighted
// merit residuals so constrained problems run on the same unconstrained
// least-squares machinery as everything else. A penalty-continuation helper
// drives the penalty parameter up until every constraint is feasible.
package constraint

import (
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dynamics/optimize"
)

// Expression is a differentiable function g(x) of some assignment keys.
// Equality constraints require g(x) = 0.
type Expression interface {
	Keys() []optimize.Key
	Dim() int
	Value(vs *optimize.Values) ([]float64, error)
	Jacobians(vs *optimize.Values) ([]*mat.Dense, error)
}

// FuncExpression adapts closures to the Expression interface.
type FuncExpression struct {
	ExprKeys   []optimize.Key
	ExprDim    int
	ValueFn    func(vs *optimize.Values) ([]float64, error)
	JacobianFn func(vs *optimize.Values) ([]*mat.Dense, error)
}

// Keys returns the expression's keys.
func (e *FuncExpression) Keys() []optimize.Key { return e.ExprKeys }

// Dim returns the expression's output dimension.
func (e *FuncExpression) Dim() int { return e.ExprDim }

// Value evaluates the expression.
func (e *FuncExpression) Value(vs *optimize.Values) ([]float64, error) { return e.ValueFn(vs) }

// Jacobians evaluates the expression's derivatives.
func (e *FuncExpression) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	return e.JacobianFn(vs)
}

// FactorExpression exposes an existing factor's residual as a constraint
// expression, letting any residual factor double as an equality constraint.
type FactorExpression struct {
	Factor optimize.Factor
}

// Keys returns the wrapped factor's keys.
func (e *FactorExpression) Keys() []optimize.Key { return e.Factor.Keys() }

// Dim returns the wrapped factor's dimension.
func (e *FactorExpression) Dim() int { return e.Factor.Dim() }

// Value returns the wrapped factor's unwhitened residual.
func (e *FactorExpression) Value(vs *optimize.Values) ([]float64, error) {
	return e.Factor.Residual(vs)
}

// Jacobians returns the wrapped factor's Jacobians.
func (e *FactorExpression) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	return e.Factor.Jacobians(vs)
}
