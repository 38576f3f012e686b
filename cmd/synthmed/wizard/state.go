// Package wizard provides an interactive TUI for configuring and launching
// a simulation run.
package wizard

import (
	"fmt"
	"strconv"

	"github.com/domlytics/synthmed/internal/config"
)

// Phase represents the current screen of the wizard.
type Phase int

const (
	PhaseForm Phase = iota
	PhaseSummary
	PhaseProgress
	PhaseComplete
	PhaseError
)

// State holds the form inputs as strings, the shape huh binds to, and
// converts to a validated run configuration.
type State struct {
	Population string
	MinAge     string
	MaxAge     string
	Seed       string
	StepDays   string
	OnlyAlive  bool
	Workers    string
	ModulesDir string
	OutputDir  string
	Format     string
	SavePath   string
}

// NewState seeds the form from a configuration.
func NewState(cfg config.Config) *State {
	s := &State{
		Population: strconv.Itoa(cfg.Population),
		MinAge:     strconv.Itoa(cfg.MinAge),
		MaxAge:     strconv.Itoa(cfg.MaxAge),
		StepDays:   strconv.Itoa(cfg.StepDays),
		OnlyAlive:  cfg.OnlyAlive,
		Workers:    strconv.Itoa(cfg.Workers),
		ModulesDir: cfg.ModulesDir,
		OutputDir:  cfg.OutputDir,
		Format:     cfg.Format,
	}
	if cfg.Seed != nil {
		s.Seed = strconv.FormatInt(*cfg.Seed, 10)
	}
	return s
}

// ToConfig converts the form state back to a run configuration.
func (s *State) ToConfig() (config.Config, error) {
	cfg := config.Default()

	fields := []struct {
		name  string
		raw   string
		store *int
	}{
		{"population", s.Population, &cfg.Population},
		{"min age", s.MinAge, &cfg.MinAge},
		{"max age", s.MaxAge, &cfg.MaxAge},
		{"step days", s.StepDays, &cfg.StepDays},
		{"workers", s.Workers, &cfg.Workers},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		n, err := strconv.Atoi(f.raw)
		if err != nil {
			return cfg, fmt.Errorf("%s: %q is not a number", f.name, f.raw)
		}
		*f.store = n
	}

	if s.Seed != "" {
		seed, err := strconv.ParseInt(s.Seed, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("seed: %q is not a number", s.Seed)
		}
		cfg.Seed = &seed
	}

	cfg.OnlyAlive = s.OnlyAlive
	cfg.ModulesDir = s.ModulesDir
	cfg.OutputDir = s.OutputDir
	cfg.Format = s.Format

	return cfg, cfg.Validate()
}

// validateInt is the huh field validator for numeric inputs.
func validateInt(raw string) error {
	if raw == "" {
		return nil
	}
	if _, err := strconv.Atoi(raw); err != nil {
		return fmt.Errorf("must be a number")
	}
	return nil
}
