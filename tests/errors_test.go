package tests

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/domlytics/synthmed/internal/config"
	"github.com/domlytics/synthmed/internal/engine"
	"github.com/domlytics/synthmed/internal/module"
)

// TestErrors_InvalidConfig exercises the validation error taxonomy.
func TestErrors_InvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.Config)
		errorMsg string
	}{
		{
			name:     "zero_population",
			mutate:   func(c *config.Config) { c.Population = 0 },
			errorMsg: "population",
		},
		{
			name:     "negative_min_age",
			mutate:   func(c *config.Config) { c.MinAge = -1 },
			errorMsg: "min_age",
		},
		{
			name:     "inverted_ages",
			mutate:   func(c *config.Config) { c.MinAge = 80; c.MaxAge = 20 },
			errorMsg: "max_age",
		},
		{
			name:     "unknown_format",
			mutate:   func(c *config.Config) { c.Format = "xml" },
			errorMsg: "format",
		},
		{
			name:     "missing_modules_dir",
			mutate:   func(c *config.Config) { c.ModulesDir = "" },
			errorMsg: "modules_dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.ModulesDir = "modules"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			var verr *config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *config.ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error %q does not mention %q", err, tt.errorMsg)
			}
		})
	}
}

// TestErrors_BrokenModuleFile verifies that a bad module definition fails
// the whole run with a LoadError naming the file.
func TestErrors_BrokenModuleFile(t *testing.T) {
	dir := t.TempDir()
	bad := `name: broken
initial: nowhere
states:
  somewhere:
    type: terminal
`
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	seed := int64(1)
	cfg := config.Default()
	cfg.Population = 1
	cfg.Seed = &seed
	cfg.ModulesDir = dir
	cfg.OutputDir = t.TempDir()
	cfg.Format = config.FormatJSON

	_, err := engine.New(cfg, zerolog.Nop()).Run(context.Background())
	if err == nil {
		t.Fatal("expected run to fail on a broken module")
	}
	var lerr *module.LoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *module.LoadError, got %T: %v", err, err)
	}
	if filepath.Base(lerr.File) != "broken.yaml" {
		t.Errorf("LoadError names %q, want broken.yaml", lerr.File)
	}
}

// TestErrors_MissingModulesDir checks the run fails cleanly when the
// modules directory does not exist.
func TestErrors_MissingModulesDir(t *testing.T) {
	seed := int64(1)
	cfg := config.Default()
	cfg.Population = 1
	cfg.Seed = &seed
	cfg.ModulesDir = filepath.Join(t.TempDir(), "does-not-exist")
	cfg.OutputDir = t.TempDir()
	cfg.Format = config.FormatJSON

	_, err := engine.New(cfg, zerolog.Nop()).Run(context.Background())
	if err == nil {
		t.Fatal("expected run to fail on a missing modules directory")
	}
	if !strings.Contains(err.Error(), "load modules") {
		t.Errorf("error lacks load context: %v", err)
	}
}

// TestErrors_CancelledContext verifies the run honors cancellation.
func TestErrors_CancelledContext(t *testing.T) {
	seed := int64(1)
	cfg := config.Default()
	cfg.Population = 5
	cfg.Seed = &seed
	cfg.Workers = 1
	cfg.ModulesDir = modulesDir(t)
	cfg.OutputDir = t.TempDir()
	cfg.Format = config.FormatJSON

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.New(cfg, zerolog.Nop()).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
