// Package numeric provides the dense vector and matrix containers used by the
// MNA builder and the nonlinear solvers. Sizes are fixed at construction;
// mismatched dimensions are programmer errors and panic, following the
// convention of gonum/mat.
package numeric

import (
	"errors"
	"math"
)

// ErrShape reports an operation between containers of incompatible dimensions.
var ErrShape = errors.New("numeric: dimension mismatch")

// ErrIndex reports an element access outside the container bounds.
var ErrIndex = errors.New("numeric: index out of range")

// Vector is a fixed-length dense real vector.
type Vector struct {
	data []float64
}

func NewVector(n int) *Vector {
	if n < 0 {
		panic(ErrIndex)
	}
	return &Vector{data: make([]float64, n)}
}

// VectorOf builds a vector from the given values.
func VectorOf(values ...float64) *Vector {
	v := NewVector(len(values))
	copy(v.data, values)
	return v
}

func (v *Vector) Len() int { return len(v.data) }

func (v *Vector) At(i int) float64 {
	v.checkIndex(i)
	return v.data[i]
}

func (v *Vector) SetAt(i int, value float64) {
	v.checkIndex(i)
	v.data[i] = value
}

// AddAt accumulates value onto element i. Stamps rely on this being
// additive, never a destructive overwrite.
func (v *Vector) AddAt(i int, value float64) {
	v.checkIndex(i)
	v.data[i] += value
}

func (v *Vector) Clone() *Vector {
	out := NewVector(len(v.data))
	copy(out.data, v.data)
	return out
}

// Zero resets every element to 0 in place.
func (v *Vector) Zero() {
	for i := range v.data {
		v.data[i] = 0
	}
}

// Add returns v + other as a new vector.
func (v *Vector) Add(other *Vector) *Vector {
	v.checkSameLen(other)
	out := v.Clone()
	for i, val := range other.data {
		out.data[i] += val
	}
	return out
}

// Sub returns v - other as a new vector.
func (v *Vector) Sub(other *Vector) *Vector {
	v.checkSameLen(other)
	out := v.Clone()
	for i, val := range other.data {
		out.data[i] -= val
	}
	return out
}

// Scaled returns s*v as a new vector.
func (v *Vector) Scaled(s float64) *Vector {
	out := v.Clone()
	for i := range out.data {
		out.data[i] *= s
	}
	return out
}

func (v *Vector) Dot(other *Vector) float64 {
	v.checkSameLen(other)
	sum := 0.0
	for i, val := range v.data {
		sum += val * other.data[i]
	}
	return sum
}

// Norm returns the Euclidean 2-norm.
func (v *Vector) Norm() float64 {
	sum := 0.0
	for _, val := range v.data {
		sum += val * val
	}
	return math.Sqrt(sum)
}

// IsFinite reports whether every element is neither NaN nor infinite.
func (v *Vector) IsFinite() bool {
	for _, val := range v.data {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return false
		}
	}
	return true
}

// Raw exposes the backing slice. Callers must not resize it.
func (v *Vector) Raw() []float64 { return v.data }

func (v *Vector) checkIndex(i int) {
	if i < 0 || i >= len(v.data) {
		panic(ErrIndex)
	}
}

func (v *Vector) checkSameLen(other *Vector) {
	if len(v.data) != len(other.data) {
		panic(ErrShape)
	}
}
