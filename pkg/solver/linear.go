// Package solver contains the linear-solve backends and the two nonlinear
// strategies of the DC operating-point engine: a damped Newton-Raphson
// iterator and a homotopy continuation path tracker.
package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ohmlab/gospice/pkg/numeric"
)

// ErrSingular reports a singular or near-singular system matrix. Both
// nonlinear solvers test for it with errors.Is to distinguish a bad Jacobian
// from other failures.
var ErrSingular = errors.New("solver: matrix is singular or near-singular")

// ErrShape reports a non-square matrix or a right-hand side of the wrong length.
var ErrShape = errors.New("solver: incompatible system dimensions")

// LinearSolver is the linear-solve collaborator. Implementations must not
// retain factorization state between calls so differently-shaped systems can
// be solved back to back.
type LinearSolver interface {
	Solve(a *numeric.Matrix, b *numeric.Vector) (*numeric.Vector, error)
}

// ConditionEstimator is implemented by backends that can report the condition
// number of the last factorized system.
type ConditionEstimator interface {
	ConditionEstimate() float64
}

// DenseSolver solves via gonum LU factorization. Systems whose estimated
// condition number exceeds CondLimit are rejected as near-singular.
type DenseSolver struct {
	CondLimit float64
	lastCond  float64
}

func NewDenseSolver() *DenseSolver {
	return &DenseSolver{CondLimit: 1e13}
}

func (s *DenseSolver) Solve(a *numeric.Matrix, b *numeric.Vector) (*numeric.Vector, error) {
	if a.Rows() != a.Cols() || a.Rows() != b.Len() {
		return nil, fmt.Errorf("solver: dense solve %dx%d with rhs %d: %w", a.Rows(), a.Cols(), b.Len(), ErrShape)
	}

	var lu mat.LU
	lu.Factorize(a.Dense())

	cond := lu.Cond()
	s.lastCond = cond
	if math.IsNaN(cond) || math.IsInf(cond, 0) || cond > s.CondLimit {
		return nil, fmt.Errorf("%w (condition estimate %.3e)", ErrSingular, cond)
	}

	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, mat.NewVecDense(b.Len(), b.Raw())); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	out := numeric.NewVector(b.Len())
	for i := 0; i < b.Len(); i++ {
		out.SetAt(i, x.AtVec(i))
	}
	return out, nil
}

// ConditionEstimate returns the condition number of the last factorized
// system, or 0 when nothing has been solved yet.
func (s *DenseSolver) ConditionEstimate() float64 { return s.lastCond }
