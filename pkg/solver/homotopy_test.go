package solver_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ohmlab/gospice/pkg/numeric"
	"github.com/ohmlab/gospice/pkg/solver"
)

// cubicTarget is F(x) = x + x^3 - 2 with root x = 1.
func cubicTarget() solver.System {
	return scalarSystem(
		func(x float64) float64 { return x + x*x*x - 2 },
		func(x float64) float64 { return 1 + 3*x*x },
	)
}

// linearStart is G(x) = x - 2 with the known solution x = 2.
func linearStart() solver.System {
	return scalarSystem(
		func(x float64) float64 { return x - 2 },
		func(x float64) float64 { return 1 },
	)
}

func TestHomotopyTracksCubic(t *testing.T) {
	h := solver.NewHomotopy(solver.DefaultHomotopyConfig(), nil)
	res, err := h.Solve(cubicTarget(), linearStart(), numeric.VectorOf(2))
	require.NoError(t, err)
	require.True(t, res.Converged)
	require.Empty(t, res.FailureReason)
	require.InDelta(t, 1, res.X.At(0), 1e-5)
}

func TestHomotopyPathProperties(t *testing.T) {
	h := solver.NewHomotopy(solver.DefaultHomotopyConfig(), nil)
	res, err := h.Solve(cubicTarget(), linearStart(), numeric.VectorOf(2))
	require.NoError(t, err)
	require.True(t, res.Converged)

	require.NotEmpty(t, res.Path)
	require.Equal(t, 0.0, res.Path[0].Lambda)
	require.Equal(t, 1.0, res.Path[len(res.Path)-1].Lambda)

	for i, pt := range res.Path {
		require.GreaterOrEqual(t, pt.Lambda, 0.0)
		require.LessOrEqual(t, pt.Lambda, 1.0)
		if i > 0 {
			require.Greater(t, pt.Lambda, res.Path[i-1].Lambda,
				"lambda must be strictly increasing along the path")
		}
	}
}

func TestHomotopyStrongNonlinearity(t *testing.T) {
	// Exponential target deformed from a linear start, the diode shape the
	// tracker exists for.
	target := scalarSystem(
		func(x float64) float64 { return math.Exp(2*x) - 1 + x - 3 },
		func(x float64) float64 { return 2*math.Exp(2*x) + 1 },
	)
	start := scalarSystem(
		func(x float64) float64 { return x - 3 },
		func(x float64) float64 { return 1 },
	)

	h := solver.NewHomotopy(solver.DefaultHomotopyConfig(), nil)
	res, err := h.Solve(target, start, numeric.VectorOf(3))
	require.NoError(t, err)
	require.True(t, res.Converged)

	x := res.X.At(0)
	require.InDelta(t, 0, math.Exp(2*x)-1+x-3, 1e-6)
}

func TestHomotopyZeroMaxStepsFails(t *testing.T) {
	cfg := solver.DefaultHomotopyConfig()
	cfg.MaxSteps = -1 // force immediate step-budget exhaustion

	h := solver.NewHomotopy(cfg, nil)
	res, err := h.Solve(cubicTarget(), linearStart(), numeric.VectorOf(2))
	require.NoError(t, err)
	require.False(t, res.Converged)
	require.Equal(t, "max continuation steps exceeded", res.FailureReason)
	require.NotNil(t, res.X)
}

func TestHomotopyStepBudgetBoundsRuntime(t *testing.T) {
	cfg := solver.DefaultHomotopyConfig()
	cfg.MaxSteps = 3

	h := solver.NewHomotopy(cfg, nil)
	res, err := h.Solve(cubicTarget(), linearStart(), numeric.VectorOf(2))
	require.NoError(t, err)
	require.False(t, res.Converged)
	require.LessOrEqual(t, res.Steps, 3)
	require.NotEmpty(t, res.FailureReason)
}

func TestHomotopySingularTangentGivesUp(t *testing.T) {
	// Identical flat systems make the homotopy Jacobian singular at every
	// lambda; the tracker must shrink its step and give up cleanly.
	flat := scalarSystem(
		func(x float64) float64 { return 1.0 },
		func(x float64) float64 { return 0 },
	)

	h := solver.NewHomotopy(solver.DefaultHomotopyConfig(), nil)
	res, err := h.Solve(flat, flat, numeric.VectorOf(0))
	require.NoError(t, err)
	require.False(t, res.Converged)
	require.NotEmpty(t, res.FailureReason)
}

func TestHomotopyBadSystem(t *testing.T) {
	h := solver.NewHomotopy(solver.DefaultHomotopyConfig(), nil)

	_, err := h.Solve(solver.System{}, linearStart(), numeric.VectorOf(0))
	require.ErrorIs(t, err, solver.ErrBadSystem)

	_, err = h.Solve(cubicTarget(), linearStart(), nil)
	require.ErrorIs(t, err, solver.ErrBadSystem)
}

func TestHomotopyRepeatedSolvesIndependent(t *testing.T) {
	// Step-size and failure state must not leak between solves.
	h := solver.NewHomotopy(solver.DefaultHomotopyConfig(), nil)

	first, err := h.Solve(cubicTarget(), linearStart(), numeric.VectorOf(2))
	require.NoError(t, err)
	second, err := h.Solve(cubicTarget(), linearStart(), numeric.VectorOf(2))
	require.NoError(t, err)

	require.Equal(t, first.Steps, second.Steps)
	require.Equal(t, len(first.Path), len(second.Path))
	require.Equal(t, first.X.At(0), second.X.At(0))
}
