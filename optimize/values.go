// Package optimize provides a small sparse nonlinear least-squares layer: a
// typed assignment of values to keys, residual factors over those keys, and a
// Levenberg-Marquardt optimizer that refines an assignment against a graph of
// factors. Keys are opaque; packages building graphs decide how to mint them.
package optimize

import (
	"sort"

	"github.com/pkg/errors"
)

// Key identifies one unknown in a factor graph. Callers pack whatever
// identifying information they need into the integer.
type Key uint64

// Value is an element of the optimization manifold. Retract applies a local
// perturbation of dimension Dim; Local computes the perturbation taking this
// value to another.
type Value interface {
	Dim() int
	Retract(delta []float64) Value
	Local(other Value) []float64
}

// Scalar is a one-dimensional Value.
type Scalar float64

// Dim returns 1.
func (s Scalar) Dim() int { return 1 }

// Retract adds the single-element delta.
func (s Scalar) Retract(delta []float64) Value { return s + Scalar(delta[0]) }

// Local returns the difference other - s.
func (s Scalar) Local(other Value) []float64 {
	return []float64{float64(other.(Scalar) - s)}
}

// Vector is a fixed-dimension vector Value.
type Vector []float64

// Dim returns the vector's length.
func (v Vector) Dim() int { return len(v) }

// Retract adds delta elementwise.
func (v Vector) Retract(delta []float64) Value {
	out := make(Vector, len(v))
	for i := range v {
		out[i] = v[i] + delta[i]
	}
	return out
}

// Local returns the elementwise difference other - v.
func (v Vector) Local(other Value) []float64 {
	o := other.(Vector)
	out := make([]float64, len(v))
	for i := range v {
		out[i] = o[i] - v[i]
	}
	return out
}

// Values is an assignment from keys to values. It is the sole mutable state
// threaded through graph construction, optimization and result extraction.
type Values struct {
	m map[Key]Value
}

// NewValues returns an empty assignment.
func NewValues() *Values {
	return &Values{m: map[Key]Value{}}
}

// Len returns the number of assigned keys.
func (vs *Values) Len() int { return len(vs.m) }

// Has reports whether the key is assigned.
func (vs *Values) Has(k Key) bool {
	_, ok := vs.m[k]
	return ok
}

// Insert assigns a value to a previously unassigned key.
func (vs *Values) Insert(k Key, v Value) error {
	if _, ok := vs.m[k]; ok {
		return errors.Errorf("key %d already present in values", k)
	}
	vs.m[k] = v
	return nil
}

// Set assigns a value to a key, overwriting any existing assignment.
func (vs *Values) Set(k Key, v Value) {
	vs.m[k] = v
}

// Update replaces the value of an already-assigned key.
func (vs *Values) Update(k Key, v Value) error {
	if _, ok := vs.m[k]; !ok {
		return errors.Errorf("key %d not present in values", k)
	}
	vs.m[k] = v
	return nil
}

// Merge inserts every assignment from other whose key is not yet present.
// Existing assignments win.
func (vs *Values) Merge(other *Values) {
	for k, v := range other.m {
		if _, ok := vs.m[k]; !ok {
			vs.m[k] = v
		}
	}
}

// SetAll copies every assignment from other, overwriting existing keys.
func (vs *Values) SetAll(other *Values) {
	for k, v := range other.m {
		vs.m[k] = v
	}
}

// At returns the value at a key; absence is a usage error.
func (vs *Values) At(k Key) (Value, error) {
	v, ok := vs.m[k]
	if !ok {
		return nil, errors.Errorf("no value for key %d", k)
	}
	return v, nil
}

// Scalar returns the scalar value at a key.
func (vs *Values) Scalar(k Key) (float64, error) {
	v, err := vs.At(k)
	if err != nil {
		return 0, err
	}
	s, ok := v.(Scalar)
	if !ok {
		return 0, errors.Errorf("value for key %d is not a scalar", k)
	}
	return float64(s), nil
}

// Vector returns the vector value at a key.
func (vs *Values) Vector(k Key) ([]float64, error) {
	v, err := vs.At(k)
	if err != nil {
		return nil, err
	}
	vec, ok := v.(Vector)
	if !ok {
		return nil, errors.Errorf("value for key %d is not a vector", k)
	}
	return vec, nil
}

// Keys returns all assigned keys in ascending order.
func (vs *Values) Keys() []Key {
	keys := make([]Key, 0, len(vs.m))
	for k := range vs.m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Copy returns a shallow copy of the assignment. Values are immutable once
// inserted, so sharing them is safe.
func (vs *Values) Copy() *Values {
	out := NewValues()
	for k, v := range vs.m {
		out.m[k] = v
	}
	return out
}
