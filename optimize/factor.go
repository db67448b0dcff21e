package optimize

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/floats"
)

// Factor is one residual block of a least-squares problem. Residuals and
// Jacobians are unwhitened; the attached noise model supplies per-component
// weights. Jacobians are closed form and aligned with Keys().
type Factor interface {
	Keys() []Key
	Dim() int
	Residual(vs *Values) ([]float64, error)
	Jacobians(vs *Values) ([]*mat.Dense, error)
	Noise() *NoiseModel
}

// FactorError returns the factor's contribution to the graph error,
// 0.5 * ||whitened residual||^2.
func FactorError(f Factor, vs *Values) (float64, error) {
	r, err := f.Residual(vs)
	if err != nil {
		return 0, err
	}
	w := f.Noise().Whiten(r)
	return 0.5 * floats.Dot(w, w), nil
}

// Graph is an ordered collection of factors.
type Graph struct {
	factors []Factor
}

// NewGraph returns an empty factor graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Add appends factors to the graph.
func (g *Graph) Add(factors ...Factor) {
	g.factors = append(g.factors, factors...)
}

// AddAll appends every factor of another graph.
func (g *Graph) AddAll(other *Graph) {
	g.factors = append(g.factors, other.factors...)
}

// Factors returns the graph's factors.
func (g *Graph) Factors() []Factor {
	return g.factors
}

// Size returns the number of factors.
func (g *Graph) Size() int {
	return len(g.factors)
}

// Error returns the total graph error at the assignment.
func (g *Graph) Error(vs *Values) (float64, error) {
	total := 0.
	for _, f := range g.factors {
		e, err := FactorError(f, vs)
		if err != nil {
			return 0, err
		}
		total += e
	}
	return total, nil
}
