package numeric

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a fixed-shape dense real matrix backed by gonum. It carries the
// conductance matrix and Jacobians of the small systems the homotopy and
// Newton solvers work on; the sparse production backend receives its values
// through At.
type Matrix struct {
	rows, cols int
	data       *mat.Dense
}

func NewMatrix(rows, cols int) *Matrix {
	if rows < 0 || cols < 0 {
		panic(ErrIndex)
	}
	return &Matrix{rows: rows, cols: cols, data: mat.NewDense(rows, cols, nil)}
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

func (m *Matrix) At(i, j int) float64 {
	m.checkIndex(i, j)
	return m.data.At(i, j)
}

func (m *Matrix) SetAt(i, j int, value float64) {
	m.checkIndex(i, j)
	m.data.Set(i, j, value)
}

// AddAt accumulates value onto element (i, j). Stamps rely on this being
// additive.
func (m *Matrix) AddAt(i, j int, value float64) {
	m.checkIndex(i, j)
	m.data.Set(i, j, m.data.At(i, j)+value)
}

func (m *Matrix) Clone() *Matrix {
	out := NewMatrix(m.rows, m.cols)
	out.data.Copy(m.data)
	return out
}

// Zero resets every element to 0 in place.
func (m *Matrix) Zero() {
	m.data.Zero()
}

// Add returns m + other as a new matrix.
func (m *Matrix) Add(other *Matrix) *Matrix {
	m.checkSameShape(other)
	out := NewMatrix(m.rows, m.cols)
	out.data.Add(m.data, other.data)
	return out
}

// Sub returns m - other as a new matrix.
func (m *Matrix) Sub(other *Matrix) *Matrix {
	m.checkSameShape(other)
	out := NewMatrix(m.rows, m.cols)
	out.data.Sub(m.data, other.data)
	return out
}

// Scaled returns s*m as a new matrix.
func (m *Matrix) Scaled(s float64) *Matrix {
	out := NewMatrix(m.rows, m.cols)
	out.data.Scale(s, m.data)
	return out
}

// MulVec returns m*x as a new vector.
func (m *Matrix) MulVec(x *Vector) *Vector {
	if m.cols != x.Len() {
		panic(ErrShape)
	}
	var y mat.VecDense
	y.MulVec(m.data, mat.NewVecDense(x.Len(), x.Raw()))
	out := NewVector(m.rows)
	for i := 0; i < m.rows; i++ {
		out.SetAt(i, y.AtVec(i))
	}
	return out
}

// Inverse returns the inverse of m. It is meant for the small dense systems
// of the homotopy and Newton paths, not for the main sparse solve.
func (m *Matrix) Inverse() (*Matrix, error) {
	if m.rows != m.cols {
		return nil, fmt.Errorf("numeric: inverse of %dx%d matrix: %w", m.rows, m.cols, ErrShape)
	}
	out := NewMatrix(m.rows, m.cols)
	if err := out.data.Inverse(m.data); err != nil {
		return nil, fmt.Errorf("numeric: inverse: %w", err)
	}
	return out, nil
}

// Dense exposes the backing gonum matrix for solver backends.
func (m *Matrix) Dense() *mat.Dense { return m.data }

func (m *Matrix) checkIndex(i, j int) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(ErrIndex)
	}
}

func (m *Matrix) checkSameShape(other *Matrix) {
	if m.rows != other.rows || m.cols != other.cols {
		panic(ErrShape)
	}
}
