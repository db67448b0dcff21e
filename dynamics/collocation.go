package dynamics

import (
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dynamics/optimize"
)

// CollocationScheme picks how consecutive timesteps are tied together.
type CollocationScheme uint8

const (
	// Euler uses the current timestep's rate over the whole interval.
	Euler CollocationScheme = iota
	// Trapezoidal averages the rates at both interval ends.
	Trapezoidal
)

// collocationFactor ties a scalar unknown at t+1 to its value and rate(s) at
// the interval ends, with the interval length as a phase-duration unknown:
// x₁ − x₀ − dt·ẋ₀ (Euler) or x₁ − x₀ − dt/2·(ẋ₀+ẋ₁) (Trapezoidal).
type collocationFactor struct {
	nextKey  optimize.Key
	currKey  optimize.Key
	rateKeys []optimize.Key
	dtKey    optimize.Key
	noise    *optimize.NoiseModel
}

// NewJointAngleCollocationFactor ties joint angles across [t, t+1] in phase k
// through the joint rate.
func NewJointAngleCollocationFactor(jointID, t, phase int, scheme CollocationScheme, noise *optimize.NoiseModel) optimize.Factor {
	rateKeys := []optimize.Key{JointVelKey(jointID, t)}
	if scheme == Trapezoidal {
		rateKeys = append(rateKeys, JointVelKey(jointID, t+1))
	}
	return &collocationFactor{
		nextKey:  JointAngleKey(jointID, t+1),
		currKey:  JointAngleKey(jointID, t),
		rateKeys: rateKeys,
		dtKey:    PhaseDurationKey(phase),
		noise:    noise,
	}
}

// NewJointVelCollocationFactor ties joint rates across [t, t+1] in phase k
// through the joint acceleration.
func NewJointVelCollocationFactor(jointID, t, phase int, scheme CollocationScheme, noise *optimize.NoiseModel) optimize.Factor {
	rateKeys := []optimize.Key{JointAccelKey(jointID, t)}
	if scheme == Trapezoidal {
		rateKeys = append(rateKeys, JointAccelKey(jointID, t+1))
	}
	return &collocationFactor{
		nextKey:  JointVelKey(jointID, t+1),
		currKey:  JointVelKey(jointID, t),
		rateKeys: rateKeys,
		dtKey:    PhaseDurationKey(phase),
		noise:    noise,
	}
}

// Keys returns next, current, rate(s), phase duration.
func (f *collocationFactor) Keys() []optimize.Key {
	keys := []optimize.Key{f.nextKey, f.currKey}
	keys = append(keys, f.rateKeys...)
	return append(keys, f.dtKey)
}

// Dim returns 1.
func (f *collocationFactor) Dim() int { return 1 }

// Noise returns the factor's noise model.
func (f *collocationFactor) Noise() *optimize.NoiseModel { return f.noise }

func (f *collocationFactor) terms(vs *optimize.Values) (next, curr, meanRate, dt float64, rates []float64, err error) {
	if next, err = vs.Scalar(f.nextKey); err != nil {
		return
	}
	if curr, err = vs.Scalar(f.currKey); err != nil {
		return
	}
	rates = make([]float64, len(f.rateKeys))
	for i, k := range f.rateKeys {
		if rates[i], err = vs.Scalar(k); err != nil {
			return
		}
		meanRate += rates[i]
	}
	meanRate /= float64(len(rates))
	dt, err = vs.Scalar(f.dtKey)
	return
}

// Residual returns x₁ − x₀ − dt·(mean rate).
func (f *collocationFactor) Residual(vs *optimize.Values) ([]float64, error) {
	next, curr, meanRate, dt, _, err := f.terms(vs)
	if err != nil {
		return nil, err
	}
	return []float64{next - curr - dt*meanRate}, nil
}

// Jacobians returns the derivatives in key order.
func (f *collocationFactor) Jacobians(vs *optimize.Values) ([]*mat.Dense, error) {
	_, _, meanRate, dt, rates, err := f.terms(vs)
	if err != nil {
		return nil, err
	}
	out := []*mat.Dense{
		mat.NewDense(1, 1, []float64{1}),
		mat.NewDense(1, 1, []float64{-1}),
	}
	share := dt / float64(len(rates))
	for range rates {
		out = append(out, mat.NewDense(1, 1, []float64{-share}))
	}
	return append(out, mat.NewDense(1, 1, []float64{-meanRate})), nil
}
