package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/ohmlab/gospice/pkg/numeric"
)

// ErrBadSystem reports a System with missing callbacks or an initial guess of
// the wrong length.
var ErrBadSystem = errors.New("solver: malformed system")

// System describes F(x)=0 through residual and Jacobian callbacks. Rows
// [0, NodeRows) are node (KCL) equations and are checked against the voltage
// tolerance; the remaining rows are branch equations checked against the
// current tolerance.
type System struct {
	Residual func(x *numeric.Vector) (*numeric.Vector, error)
	Jacobian func(x *numeric.Vector) (*numeric.Matrix, error)
	NodeRows int
}

// NewtonConfig is an immutable per-solve configuration. Zero values are
// replaced with the defaults of DefaultNewtonConfig.
type NewtonConfig struct {
	MaxIterations int
	AbsTol        float64
	RelTol        float64
	VoltageTol    float64
	CurrentTol    float64
	Damping       float64
	MinDamping    float64
}

func DefaultNewtonConfig() NewtonConfig {
	return NewtonConfig{
		MaxIterations: 100,
		AbsTol:        1e-12,
		RelTol:        1e-6,
		VoltageTol:    1e-6,
		CurrentTol:    1e-9,
		Damping:       1.0,
		MinDamping:    0.01,
	}
}

func (c NewtonConfig) withDefaults() NewtonConfig {
	def := DefaultNewtonConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.AbsTol <= 0 {
		c.AbsTol = def.AbsTol
	}
	if c.RelTol <= 0 {
		c.RelTol = def.RelTol
	}
	if c.VoltageTol <= 0 {
		c.VoltageTol = def.VoltageTol
	}
	if c.CurrentTol <= 0 {
		c.CurrentTol = def.CurrentTol
	}
	if c.Damping <= 0 || c.Damping > 1 {
		c.Damping = def.Damping
	}
	if c.MinDamping <= 0 {
		c.MinDamping = def.MinDamping
	}
	return c
}

// NewtonResult carries the outcome of one Solve call. Non-convergence is
// reported here, not as an error; X holds the best-effort iterate either way.
type NewtonResult struct {
	X               *numeric.Vector
	Converged       bool
	Iterations      int
	ResidualNorm    float64
	ResidualHistory []float64
	FailureReason   string
}

// Newton is a damped Newton-Raphson iterator. All iteration state lives in
// the Solve call frame, so one instance may be reused across solves.
type Newton struct {
	cfg     NewtonConfig
	backend LinearSolver
}

func NewNewton(cfg NewtonConfig, backend LinearSolver) *Newton {
	if backend == nil {
		backend = NewDenseSolver()
	}
	return &Newton{cfg: cfg.withDefaults(), backend: backend}
}

// Solve iterates x <- x + alpha*dx with J(x)*dx = -F(x) until the residual
// meets one of the convergence criteria. The damping factor alpha starts at
// the configured value for every solve, is halved when the residual grows,
// and recovers by 20% when the residual falls below half of the previous one.
func (n *Newton) Solve(sys System, x0 *numeric.Vector) (*NewtonResult, error) {
	if sys.Residual == nil || sys.Jacobian == nil {
		return nil, ErrBadSystem
	}
	if x0 == nil {
		return nil, fmt.Errorf("%w: nil initial guess", ErrBadSystem)
	}

	cfg := n.cfg
	x := x0.Clone()
	alpha := cfg.Damping
	prevNorm := math.Inf(1)

	res := &NewtonResult{X: x}

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		f, err := sys.Residual(x)
		if err != nil {
			return nil, fmt.Errorf("solver: evaluating residual: %w", err)
		}
		norm := f.Norm()
		res.Iterations = iter
		res.ResidualNorm = norm
		res.ResidualHistory = append(res.ResidualHistory, norm)
		res.X = x

		if math.IsNaN(norm) || math.IsInf(norm, 0) {
			res.FailureReason = "residual diverged"
			return res, nil
		}

		if n.converged(f, x, norm, sys.NodeRows) {
			res.Converged = true
			return res, nil
		}

		jac, err := sys.Jacobian(x)
		if err != nil {
			return nil, fmt.Errorf("solver: evaluating jacobian: %w", err)
		}

		dx, err := n.backend.Solve(jac, f.Scaled(-1))
		if err != nil {
			res.FailureReason = fmt.Sprintf("jacobian solve failed: %v", err)
			return res, nil
		}

		if iter > 0 {
			switch {
			case norm > prevNorm:
				alpha = math.Max(alpha/2, cfg.MinDamping)
			case norm < 0.5*prevNorm:
				alpha = math.Min(alpha*1.2, 1.0)
			}
		}

		x = x.Add(dx.Scaled(alpha))
		prevNorm = norm
	}

	res.X = x
	res.Iterations = cfg.MaxIterations
	res.FailureReason = "max iterations exceeded"
	return res, nil
}

func (n *Newton) converged(f, x *numeric.Vector, norm float64, nodeRows int) bool {
	if norm < n.cfg.AbsTol {
		return true
	}
	if xn := x.Norm(); xn > 0 && norm/xn < n.cfg.RelTol {
		return true
	}

	// Element-wise check with the row-appropriate tolerance.
	for i := 0; i < f.Len(); i++ {
		tol := n.cfg.CurrentTol
		if i < nodeRows {
			tol = n.cfg.VoltageTol
		}
		if math.Abs(f.At(i)) >= tol {
			return false
		}
	}
	return f.Len() > 0
}
