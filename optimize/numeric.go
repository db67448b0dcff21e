package optimize

import (
	"gonum.org/v1/gonum/mat"
)

// NumericalJacobians computes central-difference Jacobians of a factor's
// residual with respect to each of its keys, perturbing along the values'
// local coordinates. Used in tests to validate closed-form Jacobians.
func NumericalJacobians(f Factor, vs *Values, step float64) ([]*mat.Dense, error) {
	keys := f.Keys()
	out := make([]*mat.Dense, len(keys))
	for ki, k := range keys {
		v, err := vs.At(k)
		if err != nil {
			return nil, err
		}
		d := v.Dim()
		jac := mat.NewDense(f.Dim(), d, nil)
		for j := 0; j < d; j++ {
			delta := make([]float64, d)

			delta[j] = step
			plusVals := vs.Copy()
			plusVals.Set(k, v.Retract(delta))
			plus, err := f.Residual(plusVals)
			if err != nil {
				return nil, err
			}

			delta[j] = -step
			minusVals := vs.Copy()
			minusVals.Set(k, v.Retract(delta))
			minus, err := f.Residual(minusVals)
			if err != nil {
				return nil, err
			}

			for i := 0; i < f.Dim(); i++ {
				jac.Set(i, j, (plus[i]-minus[i])/(2*step))
			}
		}
		out[ki] = jac
	}
	return out, nil
}
