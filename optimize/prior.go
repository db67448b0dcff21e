package optimize

import (
	"gonum.org/v1/gonum/mat"
)

// priorJacobianer lets manifold values supply the exact Jacobian of the prior
// residual with respect to a local perturbation. Linear values use identity.
type priorJacobianer interface {
	PriorJacobian(prior Value) *mat.Dense
}

// PriorFactor pulls one value toward a fixed prior. Its residual is the local
// coordinate of the current value relative to the prior, zero when they agree.
type PriorFactor struct {
	key   Key
	prior Value
	noise *NoiseModel
}

// NewPriorFactor returns a prior factor on a single key.
func NewPriorFactor(key Key, prior Value, noise *NoiseModel) *PriorFactor {
	return &PriorFactor{key: key, prior: prior, noise: noise}
}

// Keys returns the single constrained key.
func (f *PriorFactor) Keys() []Key { return []Key{f.key} }

// Dim returns the prior's dimension.
func (f *PriorFactor) Dim() int { return f.prior.Dim() }

// Noise returns the factor's noise model.
func (f *PriorFactor) Noise() *NoiseModel { return f.noise }

// Residual computes prior ⊖ current local coordinates.
func (f *PriorFactor) Residual(vs *Values) ([]float64, error) {
	cur, err := vs.At(f.key)
	if err != nil {
		return nil, err
	}
	return f.prior.Local(cur), nil
}

// Jacobians returns the closed-form Jacobian of the residual.
func (f *PriorFactor) Jacobians(vs *Values) ([]*mat.Dense, error) {
	cur, err := vs.At(f.key)
	if err != nil {
		return nil, err
	}
	if pj, ok := cur.(priorJacobianer); ok {
		return []*mat.Dense{pj.PriorJacobian(f.prior)}, nil
	}
	d := f.prior.Dim()
	jac := mat.NewDense(d, d, nil)
	for i := 0; i < d; i++ {
		jac.Set(i, i, 1)
	}
	return []*mat.Dense{jac}, nil
}
