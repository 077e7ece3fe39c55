package numeric_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ohmlab/gospice/pkg/numeric"
)

func TestVectorBasics(t *testing.T) {
	v := numeric.VectorOf(3, -4, 0)
	require.Equal(t, 3, v.Len())
	require.Equal(t, 5.0, v.Norm())
	require.Equal(t, -4.0, v.At(1))

	v.AddAt(2, 2.5)
	require.Equal(t, 2.5, v.At(2))

	w := v.Clone()
	w.SetAt(0, 0)
	require.Equal(t, 3.0, v.At(0), "clone must not alias the original")
}

func TestVectorArithmetic(t *testing.T) {
	a := numeric.VectorOf(1, 2, 3)
	b := numeric.VectorOf(4, 5, 6)

	require.Equal(t, []float64{5, 7, 9}, a.Add(b).Raw())
	require.Equal(t, []float64{-3, -3, -3}, a.Sub(b).Raw())
	require.Equal(t, []float64{2, 4, 6}, a.Scaled(2).Raw())
	require.Equal(t, 32.0, a.Dot(b))

	// Arithmetic allocates; operands stay untouched.
	require.Equal(t, []float64{1, 2, 3}, a.Raw())
}

func TestVectorShapePanics(t *testing.T) {
	a := numeric.NewVector(2)
	b := numeric.NewVector(3)

	require.PanicsWithValue(t, numeric.ErrShape, func() { a.Add(b) })
	require.PanicsWithValue(t, numeric.ErrShape, func() { a.Dot(b) })
	require.PanicsWithValue(t, numeric.ErrIndex, func() { a.At(2) })
}

func TestVectorIsFinite(t *testing.T) {
	require.True(t, numeric.VectorOf(1, 2).IsFinite())
	require.False(t, numeric.VectorOf(1, math.NaN()).IsFinite())
	require.False(t, numeric.VectorOf(math.Inf(1), 0).IsFinite())
}

func TestMatrixStampAccumulates(t *testing.T) {
	m := numeric.NewMatrix(2, 2)
	m.AddAt(0, 0, 1.5)
	m.AddAt(0, 0, 0.5)
	require.Equal(t, 2.0, m.At(0, 0))

	m.SetAt(0, 0, -1)
	require.Equal(t, -1.0, m.At(0, 0))

	require.PanicsWithValue(t, numeric.ErrIndex, func() { m.At(2, 0) })
}

func TestMatrixMulVec(t *testing.T) {
	m := numeric.NewMatrix(2, 2)
	m.SetAt(0, 0, 2)
	m.SetAt(0, 1, 1)
	m.SetAt(1, 0, -1)
	m.SetAt(1, 1, 3)

	y := m.MulVec(numeric.VectorOf(1, 2))
	require.Equal(t, []float64{4, 5}, y.Raw())

	require.PanicsWithValue(t, numeric.ErrShape, func() { m.MulVec(numeric.NewVector(3)) })
}

func TestMatrixArithmetic(t *testing.T) {
	a := numeric.NewMatrix(2, 2)
	a.SetAt(0, 0, 1)
	a.SetAt(1, 1, 2)
	b := numeric.NewMatrix(2, 2)
	b.SetAt(0, 0, 3)
	b.SetAt(1, 0, 4)

	sum := a.Add(b)
	require.Equal(t, 4.0, sum.At(0, 0))
	require.Equal(t, 4.0, sum.At(1, 0))
	require.Equal(t, 2.0, sum.At(1, 1))

	diff := a.Sub(b)
	require.Equal(t, -2.0, diff.At(0, 0))

	half := a.Scaled(0.5)
	require.Equal(t, 0.5, half.At(0, 0))
	require.Equal(t, 1.0, a.At(0, 0), "scaled must not mutate the receiver")
}

func TestMatrixInverse(t *testing.T) {
	m := numeric.NewMatrix(2, 2)
	m.SetAt(0, 0, 4)
	m.SetAt(0, 1, 7)
	m.SetAt(1, 0, 2)
	m.SetAt(1, 1, 6)

	inv, err := m.Inverse()
	require.NoError(t, err)

	// m * inv ~ identity
	prod := numeric.NewMatrix(2, 2)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			s := 0.0
			for k := 0; k < 2; k++ {
				s += m.At(i, k) * inv.At(k, j)
			}
			prod.SetAt(i, j, s)
		}
	}
	require.InDelta(t, 1, prod.At(0, 0), 1e-12)
	require.InDelta(t, 0, prod.At(0, 1), 1e-12)
	require.InDelta(t, 0, prod.At(1, 0), 1e-12)
	require.InDelta(t, 1, prod.At(1, 1), 1e-12)
}

func TestMatrixInverseSingular(t *testing.T) {
	m := numeric.NewMatrix(2, 2)
	m.SetAt(0, 0, 1)
	m.SetAt(0, 1, 2)
	m.SetAt(1, 0, 2)
	m.SetAt(1, 1, 4)

	_, err := m.Inverse()
	require.Error(t, err)
}

func TestMatrixInverseNonSquare(t *testing.T) {
	_, err := numeric.NewMatrix(2, 3).Inverse()
	require.ErrorIs(t, err, numeric.ErrShape)
}
