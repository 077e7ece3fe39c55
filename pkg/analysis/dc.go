// Package analysis drives the DC operating-point solve: it partitions the
// circuit into linear and nonlinear elements, assembles the MNA system, and
// runs the homotopy continuation tracker with a damped Newton-Raphson
// fallback.
package analysis

import (
	"fmt"

	"github.com/ohmlab/gospice/pkg/mna"
	"github.com/ohmlab/gospice/pkg/numeric"
	"github.com/ohmlab/gospice/pkg/solver"
)

// GuessStrategy selects the Newton fallback starting point.
type GuessStrategy string

const (
	GuessZeros    GuessStrategy = "zeros"
	GuessLinear   GuessStrategy = "linear"
	GuessPrevious GuessStrategy = "previous"
)

// simplifiedConductance replaces each nonlinear device in the homotopy start
// system.
const simplifiedConductance = 1.0 // siemens

// Options configures one Analyze call. The struct is copied in, so a caller
// cannot mutate a running analysis.
type Options struct {
	Newton      solver.NewtonConfig
	Homotopy    solver.HomotopyConfig
	UseHomotopy bool
	Guess       GuessStrategy
	Backend     solver.LinearSolver
}

func DefaultOptions() Options {
	return Options{
		Newton:      solver.DefaultNewtonConfig(),
		Homotopy:    solver.DefaultHomotopyConfig(),
		UseHomotopy: true,
		Guess:       GuessZeros,
	}
}

// DC is the operating-point orchestrator. Each Analyze call builds its own
// MNA state and solver instances; the only state kept across calls is the
// last converged solution, consumed solely by the opt-in GuessPrevious
// strategy.
type DC struct {
	opts Options
	prev *numeric.Vector
}

func NewDC(opts Options) *DC {
	if opts.Backend == nil {
		opts.Backend = solver.NewDenseSolver()
	}
	if opts.Guess == "" {
		opts.Guess = GuessZeros
	}
	// The final polish follows Options.Newton unless the caller configured
	// the polish separately.
	if opts.Homotopy.Newton == (solver.NewtonConfig{}) ||
		opts.Homotopy.Newton == solver.DefaultNewtonConfig() {
		opts.Homotopy.Newton = opts.Newton
	}
	return &DC{opts: opts}
}

// Analyze finds the DC operating point of the given components. Ordinary
// non-convergence is reported in the result, never as an error; errors are
// reserved for malformed circuits.
func (dc *DC) Analyze(components []mna.Component) (*DCResult, error) {
	builder := mna.NewBuilder()
	nodes, err := builder.AnalyzeCircuit(components)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	if err := builder.Validate(components); err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	var linear []mna.Component
	var nonlinear []mna.Nonlinear
	for _, c := range components {
		if nl, ok := c.(mna.Nonlinear); ok {
			nonlinear = append(nonlinear, nl)
			continue
		}
		linear = append(linear, c)
	}

	g, rhs, err := builder.BuildMatrix(linear, 0)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	if len(nonlinear) == 0 {
		return dc.solveLinear(components, nodes, g, rhs)
	}
	return dc.solveNonlinear(components, nonlinear, nodes, g, rhs)
}

// solveLinear is the exact fast path: one linear solve, no iteration.
func (dc *DC) solveLinear(components []mna.Component, nodes *mna.NodeMap, g *numeric.Matrix, rhs *numeric.Vector) (*DCResult, error) {
	x, err := dc.opts.Backend.Solve(g, rhs)
	if err != nil {
		return &DCResult{
			NodeVoltages:      map[string]float64{},
			BranchCurrents:    map[string]float64{},
			Power:             map[string]float64{},
			ConditionEstimate: dc.conditionEstimate(),
			FailureReason:     fmt.Sprintf("linear solve failed: %v", err),
		}, nil
	}

	residualNorm := g.MulVec(x).Sub(rhs).Norm()
	res := dc.extract(components, nodes, x)
	res.Converged = true
	res.FinalResidualNorm = residualNorm
	dc.prev = x.Clone()
	return res, nil
}

func (dc *DC) solveNonlinear(components []mna.Component, nonlinear []mna.Nonlinear, nodes *mna.NodeMap, g *numeric.Matrix, rhs *numeric.Vector) (*DCResult, error) {
	sys := solver.System{
		Residual: func(x *numeric.Vector) (*numeric.Vector, error) {
			f := g.MulVec(x).Sub(rhs)
			for _, nl := range nonlinear {
				if err := nl.StampResidual(f, x, nodes); err != nil {
					return nil, err
				}
			}
			return f, nil
		},
		Jacobian: func(x *numeric.Vector) (*numeric.Matrix, error) {
			j := g.Clone()
			for _, nl := range nonlinear {
				if err := nl.StampJacobian(j, x, nodes); err != nil {
					return nil, err
				}
			}
			return j, nil
		},
		NodeRows: nodes.NumNodes(),
	}

	// Start system for the continuation: every nonlinear device becomes a
	// fixed conductance between its first two connections. Linear in x, so
	// its Jacobian is constant.
	gSimple := g.Clone()
	for _, nl := range nonlinear {
		names := nl.Nodes()
		if len(names) < 2 {
			continue
		}
		stampFixedConductance(gSimple, nodes, names[0], names[1], simplifiedConductance)
	}
	start := solver.System{
		Residual: func(x *numeric.Vector) (*numeric.Vector, error) {
			return gSimple.MulVec(x).Sub(rhs), nil
		},
		Jacobian: func(x *numeric.Vector) (*numeric.Matrix, error) {
			return gSimple.Clone(), nil
		},
		NodeRows: nodes.NumNodes(),
	}

	var homotopyReason string
	var path []solver.PathPoint

	if dc.opts.UseHomotopy {
		res, reason, err := dc.tryHomotopy(sys, start, gSimple, rhs)
		if err != nil {
			return nil, err
		}
		if res != nil {
			path = res.Path
			if res.Converged {
				out := dc.extract(components, nodes, res.X)
				out.Converged = true
				out.Iterations = res.Iterations
				out.FinalResidualNorm = res.ResidualNorm
				out.Path = res.Path
				dc.prev = res.X.Clone()
				return out, nil
			}
			homotopyReason = res.FailureReason
		} else {
			homotopyReason = reason
		}
	}

	// Newton fallback from the configured initial guess.
	x0 := dc.initialGuess(g, rhs)
	newton := solver.NewNewton(dc.opts.Newton, dc.opts.Backend)
	nres, err := newton.Solve(sys, x0)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	out := dc.extract(components, nodes, nres.X)
	out.Converged = nres.Converged
	out.Iterations = nres.Iterations
	out.FinalResidualNorm = nres.ResidualNorm
	out.Path = path
	if !nres.Converged {
		out.FailureReason = nres.FailureReason
		if homotopyReason != "" {
			out.FailureReason = fmt.Sprintf("homotopy: %s; newton: %s", homotopyReason, nres.FailureReason)
		}
		// Untrusted values stay available for diagnostics only.
	} else {
		dc.prev = nres.X.Clone()
	}
	return out, nil
}

// tryHomotopy solves the start system for the lambda=0 solution and runs the
// continuation tracker. A failure to even start is reported as a reason, not
// an error.
func (dc *DC) tryHomotopy(sys, start solver.System, gSimple *numeric.Matrix, rhs *numeric.Vector) (*solver.HomotopyResult, string, error) {
	x0, err := dc.opts.Backend.Solve(gSimple, rhs)
	if err != nil {
		return nil, fmt.Sprintf("start system solve failed: %v", err), nil
	}

	h := solver.NewHomotopy(dc.opts.Homotopy, dc.opts.Backend)
	res, err := h.Solve(sys, start, x0)
	if err != nil {
		return nil, "", fmt.Errorf("analysis: %w", err)
	}
	return res, "", nil
}

func (dc *DC) initialGuess(g *numeric.Matrix, rhs *numeric.Vector) *numeric.Vector {
	size := rhs.Len()
	switch dc.opts.Guess {
	case GuessLinear:
		if x, err := dc.opts.Backend.Solve(g, rhs); err == nil {
			return x
		}
	case GuessPrevious:
		if dc.prev != nil && dc.prev.Len() == size {
			return dc.prev.Clone()
		}
	}
	return numeric.NewVector(size)
}

// powerReporter is the optional per-device power computation.
type powerReporter interface {
	Power(x *numeric.Vector, nodes *mna.NodeMap) float64
}

// extract maps the solution vector back to named voltages, currents and
// best-effort power figures.
func (dc *DC) extract(components []mna.Component, nodes *mna.NodeMap, x *numeric.Vector) *DCResult {
	res := &DCResult{
		NodeVoltages:      make(map[string]float64),
		BranchCurrents:    make(map[string]float64),
		Power:             make(map[string]float64),
		ConditionEstimate: dc.conditionEstimate(),
	}

	for _, name := range nodes.NodeNames() {
		idx, _ := nodes.NodeIndex(name)
		res.NodeVoltages[name] = x.At(idx)
	}
	// Branch unknown is the current into the positive terminal; report the
	// delivered current, matching SPICE conventions.
	for _, name := range nodes.BranchNames() {
		idx, _ := nodes.BranchIndex(name)
		res.BranchCurrents[name] = -x.At(idx)
	}

	for _, c := range components {
		pr, ok := c.(powerReporter)
		if !ok {
			continue
		}
		res.Power[c.Name()] = safePower(pr, x, nodes)
	}
	return res
}

// safePower swallows device power failures; a broken reading reports 0 and
// never aborts the analysis.
func safePower(pr powerReporter, x *numeric.Vector, nodes *mna.NodeMap) (p float64) {
	defer func() {
		if recover() != nil {
			p = 0
		}
	}()
	return pr.Power(x, nodes)
}

func (dc *DC) conditionEstimate() float64 {
	if ce, ok := dc.opts.Backend.(solver.ConditionEstimator); ok {
		return ce.ConditionEstimate()
	}
	return 0
}

// stampFixedConductance mirrors the device-side conductance stamp for the
// simplified start system.
func stampFixedConductance(g *numeric.Matrix, nodes *mna.NodeMap, n1, n2 string, val float64) {
	i, ok1 := nodes.NodeIndex(n1)
	j, ok2 := nodes.NodeIndex(n2)

	if ok1 {
		g.AddAt(i, i, val)
		if ok2 {
			g.AddAt(i, j, -val)
		}
	}
	if ok2 {
		if ok1 {
			g.AddAt(j, i, -val)
		}
		g.AddAt(j, j, val)
	}
}
