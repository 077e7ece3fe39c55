package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ohmlab/gospice/pkg/analysis"
	"github.com/ohmlab/gospice/pkg/config"
	"github.com/ohmlab/gospice/pkg/solver"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	require.Equal(t, "dense", cfg.Backend)
	require.NotNil(t, cfg.UseHomotopy)
	require.True(t, *cfg.UseHomotopy)
	require.Greater(t, cfg.Newton.MaxIterations, 0)
	require.Greater(t, cfg.Homotopy.MaxSteps, 0)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solver.yaml")
	input := `backend: sparse
use_homotopy: false
guess: previous
newton:
  max_iterations: 250
  voltage_tol: 1e-9
homotopy:
  max_steps: 500
`
	require.NoError(t, os.WriteFile(path, []byte(input), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "sparse", cfg.Backend)
	require.False(t, *cfg.UseHomotopy)
	require.Equal(t, 250, cfg.Newton.MaxIterations)

	opts, err := cfg.Options()
	require.NoError(t, err)
	require.IsType(t, &solver.SparseSolver{}, opts.Backend)
	require.False(t, opts.UseHomotopy)
	require.Equal(t, analysis.GuessPrevious, opts.Guess)
	require.Equal(t, 250, opts.Newton.MaxIterations)
	require.InEpsilon(t, 1e-9, opts.Newton.VoltageTol, 1e-12)
	require.Equal(t, 500, opts.Homotopy.MaxSteps)

	// Unspecified fields keep their defaults.
	def := analysis.DefaultOptions()
	require.Equal(t, def.Newton.AbsTol, opts.Newton.AbsTol)
	require.Equal(t, def.Homotopy.InitialStepSize, opts.Homotopy.InitialStepSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solver.yaml")
	cfg := config.DefaultConfig()
	cfg.Backend = "sparse"
	cfg.Newton.Damping = 0.5
	require.NoError(t, config.Save(path, cfg))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Backend, loaded.Backend)
	require.Equal(t, cfg.Newton.Damping, loaded.Newton.Damping)
}

func TestOptionsRejectsUnknownValues(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend = "gpu"
	_, err := cfg.Options()
	require.ErrorIs(t, err, config.ErrUnknownBackend)

	cfg = config.DefaultConfig()
	cfg.Guess = "random"
	_, err = cfg.Options()
	require.ErrorIs(t, err, config.ErrUnknownGuess)
}

func TestOptionsDefaultsEmptyStrings(t *testing.T) {
	cfg := &config.Config{}
	opts, err := cfg.Options()
	require.NoError(t, err)
	require.IsType(t, &solver.DenseSolver{}, opts.Backend)
	require.Equal(t, analysis.GuessZeros, opts.Guess)
	require.True(t, opts.UseHomotopy)
}
