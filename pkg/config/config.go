// Package config loads solver settings from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ohmlab/gospice/pkg/analysis"
	"github.com/ohmlab/gospice/pkg/solver"
)

var (
	ErrUnknownBackend = errors.New("config: unknown backend")
	ErrUnknownGuess   = errors.New("config: unknown guess strategy")
)

type Config struct {
	Backend     string         `yaml:"backend"` // dense or sparse
	UseHomotopy *bool          `yaml:"use_homotopy"`
	Guess       string         `yaml:"guess"` // zeros, linear, previous
	Newton      NewtonConfig   `yaml:"newton"`
	Homotopy    HomotopyConfig `yaml:"homotopy"`
}

type NewtonConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	AbsTol        float64 `yaml:"abs_tol"`
	RelTol        float64 `yaml:"rel_tol"`
	VoltageTol    float64 `yaml:"voltage_tol"`
	CurrentTol    float64 `yaml:"current_tol"`
	Damping       float64 `yaml:"damping"`
	MinDamping    float64 `yaml:"min_damping"`
}

type HomotopyConfig struct {
	InitialStepSize float64 `yaml:"initial_step_size"`
	MinStepSize     float64 `yaml:"min_step_size"`
	MaxStepSize     float64 `yaml:"max_step_size"`
	MaxSteps        int     `yaml:"max_steps"`
	CorrectorTol    float64 `yaml:"corrector_tol"`
}

func DefaultConfig() *Config {
	opts := analysis.DefaultOptions()
	homotopy := opts.Homotopy
	useHomotopy := opts.UseHomotopy
	return &Config{
		Backend:     "dense",
		UseHomotopy: &useHomotopy,
		Guess:       "zeros",
		Newton: NewtonConfig{
			MaxIterations: opts.Newton.MaxIterations,
			AbsTol:        opts.Newton.AbsTol,
			RelTol:        opts.Newton.RelTol,
			VoltageTol:    opts.Newton.VoltageTol,
			CurrentTol:    opts.Newton.CurrentTol,
			Damping:       opts.Newton.Damping,
			MinDamping:    opts.Newton.MinDamping,
		},
		Homotopy: HomotopyConfig{
			InitialStepSize: homotopy.InitialStepSize,
			MinStepSize:     homotopy.MinStepSize,
			MaxStepSize:     homotopy.MaxStepSize,
			MaxSteps:        homotopy.MaxSteps,
			CorrectorTol:    homotopy.CorrectorTol,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Options translates the file settings into analysis options.
func (c *Config) Options() (analysis.Options, error) {
	opts := analysis.DefaultOptions()

	switch c.Backend {
	case "", "dense":
		opts.Backend = solver.NewDenseSolver()
	case "sparse":
		opts.Backend = solver.NewSparseSolver()
	default:
		return opts, fmt.Errorf("%w: %s", ErrUnknownBackend, c.Backend)
	}

	switch c.Guess {
	case "", "zeros":
		opts.Guess = analysis.GuessZeros
	case "linear":
		opts.Guess = analysis.GuessLinear
	case "previous":
		opts.Guess = analysis.GuessPrevious
	default:
		return opts, fmt.Errorf("%w: %s", ErrUnknownGuess, c.Guess)
	}

	if c.UseHomotopy != nil {
		opts.UseHomotopy = *c.UseHomotopy
	}

	n := c.Newton
	if n.MaxIterations > 0 {
		opts.Newton.MaxIterations = n.MaxIterations
	}
	if n.AbsTol > 0 {
		opts.Newton.AbsTol = n.AbsTol
	}
	if n.RelTol > 0 {
		opts.Newton.RelTol = n.RelTol
	}
	if n.VoltageTol > 0 {
		opts.Newton.VoltageTol = n.VoltageTol
	}
	if n.CurrentTol > 0 {
		opts.Newton.CurrentTol = n.CurrentTol
	}
	if n.Damping > 0 {
		opts.Newton.Damping = n.Damping
	}
	if n.MinDamping > 0 {
		opts.Newton.MinDamping = n.MinDamping
	}

	h := c.Homotopy
	if h.InitialStepSize > 0 {
		opts.Homotopy.InitialStepSize = h.InitialStepSize
	}
	if h.MinStepSize > 0 {
		opts.Homotopy.MinStepSize = h.MinStepSize
	}
	if h.MaxStepSize > 0 {
		opts.Homotopy.MaxStepSize = h.MaxStepSize
	}
	if h.MaxSteps != 0 {
		opts.Homotopy.MaxSteps = h.MaxSteps
	}
	if h.CorrectorTol > 0 {
		opts.Homotopy.CorrectorTol = h.CorrectorTol
	}
	opts.Homotopy.Newton = opts.Newton

	return opts, nil
}
