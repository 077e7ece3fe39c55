package solver

import (
	"fmt"
	"math"

	"github.com/ohmlab/gospice/pkg/numeric"
)

// Corrector damping thresholds and the divergence cutoff.
const (
	correctorDivergence = 1e10
	correctorHeavyNorm  = 10.0
	correctorLightNorm  = 1e-3
	failureShrink       = 0.25
)

// HomotopyConfig is an immutable per-solve configuration for the continuation
// tracker. Zero values are replaced with the defaults of
// DefaultHomotopyConfig.
type HomotopyConfig struct {
	InitialStepSize        float64
	MinStepSize            float64
	MaxStepSize            float64
	ExpansionFactor        float64
	ContractionFactor      float64
	MaxSteps               int
	MaxCorrectorIterations int
	MinCorrectorIterations int
	MaxConsecutiveFailures int
	CorrectorTol           float64
	Newton                 NewtonConfig // final polish at lambda=1
}

func DefaultHomotopyConfig() HomotopyConfig {
	return HomotopyConfig{
		InitialStepSize:        0.05,
		MinStepSize:            1e-4,
		MaxStepSize:            0.25,
		ExpansionFactor:        1.5,
		ContractionFactor:      0.5,
		MaxSteps:               200,
		MaxCorrectorIterations: 20,
		MinCorrectorIterations: 3,
		MaxConsecutiveFailures: 5,
		CorrectorTol:           1e-9,
		Newton:                 DefaultNewtonConfig(),
	}
}

func (c HomotopyConfig) withDefaults() HomotopyConfig {
	def := DefaultHomotopyConfig()
	if c.InitialStepSize <= 0 {
		c.InitialStepSize = def.InitialStepSize
	}
	if c.MinStepSize <= 0 {
		c.MinStepSize = def.MinStepSize
	}
	if c.MaxStepSize <= 0 {
		c.MaxStepSize = def.MaxStepSize
	}
	if c.ExpansionFactor <= 1 {
		c.ExpansionFactor = def.ExpansionFactor
	}
	if c.ContractionFactor <= 0 || c.ContractionFactor >= 1 {
		c.ContractionFactor = def.ContractionFactor
	}
	if c.MaxCorrectorIterations <= 0 {
		c.MaxCorrectorIterations = def.MaxCorrectorIterations
	}
	if c.MinCorrectorIterations <= 0 {
		c.MinCorrectorIterations = def.MinCorrectorIterations
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = def.MaxConsecutiveFailures
	}
	if c.CorrectorTol <= 0 {
		c.CorrectorTol = def.CorrectorTol
	}
	c.Newton = c.Newton.withDefaults()
	return c
}

// PathPoint is one accepted continuation step.
type PathPoint struct {
	Lambda       float64
	X            *numeric.Vector
	ResidualNorm float64
}

// HomotopyResult carries the outcome of one continuation solve. Converged
// reflects the final Newton polish on the target system, not just reaching
// lambda=1.
type HomotopyResult struct {
	X             *numeric.Vector
	Converged     bool
	Path          []PathPoint
	Steps         int
	Iterations    int
	ResidualNorm  float64
	FailureReason string
}

// pathState is the per-solve tracker state, threaded explicitly so repeated
// Solve calls share nothing.
type pathState struct {
	x        *numeric.Vector
	lambda   float64
	step     float64
	failures int
}

// Homotopy tracks the solution of H(x,lambda) = lambda*F(x) + (1-lambda)*G(x)
// from the known solution of the start system G at lambda=0 to the target
// system F at lambda=1, then polishes with an unconstrained Newton solve.
type Homotopy struct {
	cfg     HomotopyConfig
	backend LinearSolver
}

func NewHomotopy(cfg HomotopyConfig, backend LinearSolver) *Homotopy {
	if backend == nil {
		backend = NewDenseSolver()
	}
	return &Homotopy{cfg: cfg.withDefaults(), backend: backend}
}

// Solve runs the predictor-corrector tracker. x0 must solve the start system:
// G(x0) ~ 0.
func (h *Homotopy) Solve(target, start System, x0 *numeric.Vector) (*HomotopyResult, error) {
	if target.Residual == nil || target.Jacobian == nil || start.Residual == nil || start.Jacobian == nil {
		return nil, ErrBadSystem
	}
	if x0 == nil {
		return nil, fmt.Errorf("%w: nil start solution", ErrBadSystem)
	}

	cfg := h.cfg
	st := pathState{x: x0.Clone(), lambda: 0, step: cfg.InitialStepSize}
	res := &HomotopyResult{}

	r0, err := h.residualAt(target, start, st.x, 0)
	if err != nil {
		return nil, err
	}
	res.Path = append(res.Path, PathPoint{Lambda: 0, X: st.x.Clone(), ResidualNorm: r0.Norm()})

	for res.Steps = 0; st.lambda < 1; res.Steps++ {
		if res.Steps >= cfg.MaxSteps {
			res.X = st.x
			res.FailureReason = "max continuation steps exceeded"
			return res, nil
		}

		dlam := math.Min(st.step, 1-st.lambda)
		lamPred := st.lambda + dlam
		if lamPred > 1 {
			lamPred = 1
		}

		xPred, err := h.predict(target, start, st.x, st.lambda, dlam)
		if err != nil {
			return nil, err
		}
		if xPred == nil {
			// Singular tangent system; treat like a failed corrector.
			if failed := h.recordFailure(&st, res); failed {
				return res, nil
			}
			continue
		}

		xCorr, iters, ok, err := h.correct(target, start, xPred, lamPred)
		if err != nil {
			return nil, err
		}
		if !ok {
			if failed := h.recordFailure(&st, res); failed {
				return res, nil
			}
			continue
		}

		st.x = xCorr
		st.lambda = lamPred
		st.failures = 0

		r, err := h.residualAt(target, start, st.x, st.lambda)
		if err != nil {
			return nil, err
		}
		res.Path = append(res.Path, PathPoint{Lambda: st.lambda, X: st.x.Clone(), ResidualNorm: r.Norm()})

		switch {
		case iters <= cfg.MinCorrectorIterations:
			st.step = math.Min(st.step*cfg.ExpansionFactor, cfg.MaxStepSize)
		case iters >= cfg.MaxCorrectorIterations-1:
			st.step = math.Max(st.step*cfg.ContractionFactor, cfg.MinStepSize)
		}
	}

	// Final polish on the target system to remove continuation drift. Its
	// outcome is the solve's outcome.
	polish, err := NewNewton(cfg.Newton, h.backend).Solve(target, st.x)
	if err != nil {
		return nil, err
	}
	res.X = polish.X
	res.Converged = polish.Converged
	res.Iterations = polish.Iterations
	res.ResidualNorm = polish.ResidualNorm
	if !polish.Converged {
		res.FailureReason = fmt.Sprintf("final polish failed: %s", polish.FailureReason)
	}
	return res, nil
}

// recordFailure shrinks the step after a failed continuation step and reports
// whether the whole solve should give up.
func (h *Homotopy) recordFailure(st *pathState, res *HomotopyResult) bool {
	st.failures++
	st.step *= failureShrink

	if st.step < h.cfg.MinStepSize {
		res.X = st.x
		res.FailureReason = "continuation step size underflow"
		return true
	}
	if st.failures >= h.cfg.MaxConsecutiveFailures {
		res.X = st.x
		res.FailureReason = "too many consecutive continuation step failures"
		return true
	}
	return false
}

// predict computes the Euler predictor x + t*dlam with the tangent
// t = -[dH/dx]^-1 (F(x) - G(x)). A singular tangent system yields (nil, nil)
// so the caller can shrink the step.
func (h *Homotopy) predict(target, start System, x *numeric.Vector, lambda, dlam float64) (*numeric.Vector, error) {
	fx, err := target.Residual(x)
	if err != nil {
		return nil, fmt.Errorf("solver: evaluating target residual: %w", err)
	}
	gx, err := start.Residual(x)
	if err != nil {
		return nil, fmt.Errorf("solver: evaluating start residual: %w", err)
	}

	jh, err := h.jacobianAt(target, start, x, lambda)
	if err != nil {
		return nil, err
	}

	t, err := h.backend.Solve(jh, fx.Sub(gx).Scaled(-1))
	if err != nil {
		return nil, nil
	}
	return x.Add(t.Scaled(dlam)), nil
}

// correct runs the bounded damped Newton corrector on H(., lambda)=0 and
// reports the iterations used and whether it converged.
func (h *Homotopy) correct(target, start System, x0 *numeric.Vector, lambda float64) (*numeric.Vector, int, bool, error) {
	x := x0.Clone()

	for iter := 0; iter < h.cfg.MaxCorrectorIterations; iter++ {
		r, err := h.residualAt(target, start, x, lambda)
		if err != nil {
			return nil, iter, false, err
		}
		norm := r.Norm()

		if math.IsNaN(norm) || math.IsInf(norm, 0) || norm > correctorDivergence {
			return nil, iter, false, nil
		}
		if norm < h.cfg.CorrectorTol {
			return x, iter, true, nil
		}

		jh, err := h.jacobianAt(target, start, x, lambda)
		if err != nil {
			return nil, iter, false, err
		}
		dx, err := h.backend.Solve(jh, r.Scaled(-1))
		if err != nil {
			return nil, iter, false, nil
		}

		var alpha float64
		switch {
		case norm > correctorHeavyNorm:
			alpha = 0.5
		case norm > correctorLightNorm:
			alpha = 1.0
		default:
			alpha = 0.8
		}
		x = x.Add(dx.Scaled(alpha))
	}

	return nil, h.cfg.MaxCorrectorIterations, false, nil
}

func (h *Homotopy) residualAt(target, start System, x *numeric.Vector, lambda float64) (*numeric.Vector, error) {
	fx, err := target.Residual(x)
	if err != nil {
		return nil, fmt.Errorf("solver: evaluating target residual: %w", err)
	}
	gx, err := start.Residual(x)
	if err != nil {
		return nil, fmt.Errorf("solver: evaluating start residual: %w", err)
	}
	return fx.Scaled(lambda).Add(gx.Scaled(1 - lambda)), nil
}

func (h *Homotopy) jacobianAt(target, start System, x *numeric.Vector, lambda float64) (*numeric.Matrix, error) {
	jf, err := target.Jacobian(x)
	if err != nil {
		return nil, fmt.Errorf("solver: evaluating target jacobian: %w", err)
	}
	jg, err := start.Jacobian(x)
	if err != nil {
		return nil, fmt.Errorf("solver: evaluating start jacobian: %w", err)
	}
	return jf.Scaled(lambda).Add(jg.Scaled(1 - lambda)), nil
}
