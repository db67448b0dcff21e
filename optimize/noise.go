package optimize

// NoiseModel is a diagonal Gaussian noise model described by per-component
// standard deviations. Whitening divides each residual component by its sigma.
type NoiseModel struct {
	sigmas []float64
}

// Isotropic returns a noise model with the same sigma on every component.
func Isotropic(dim int, sigma float64) *NoiseModel {
	sigmas := make([]float64, dim)
	for i := range sigmas {
		sigmas[i] = sigma
	}
	return &NoiseModel{sigmas: sigmas}
}

// Diagonal returns a noise model with the given per-component sigmas.
func Diagonal(sigmas []float64) *NoiseModel {
	out := make([]float64, len(sigmas))
	copy(out, sigmas)
	return &NoiseModel{sigmas: out}
}

// Unit returns a noise model with sigma 1 on every component.
func Unit(dim int) *NoiseModel {
	return Isotropic(dim, 1)
}

// Dim returns the model's dimension.
func (n *NoiseModel) Dim() int { return len(n.sigmas) }

// Sigma returns the i-th standard deviation.
func (n *NoiseModel) Sigma(i int) float64 { return n.sigmas[i] }

// Whiten returns the residual scaled componentwise by 1/sigma.
func (n *NoiseModel) Whiten(r []float64) []float64 {
	out := make([]float64, len(r))
	for i, v := range r {
		out[i] = v / n.sigmas[i]
	}
	return out
}
