// Package config holds the run configuration surface consumed by the
// simulation engine.
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by the exporter factory.
const (
	FormatFHIR = "fhir"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Config is the full set of run parameters. Zero values are not usable;
// construct via Default() or Load().
type Config struct {
	Population int    `mapstructure:"POPULATION" yaml:"population"`
	MinAge     int    `mapstructure:"MIN_AGE" yaml:"min_age"`
	MaxAge     int    `mapstructure:"MAX_AGE" yaml:"max_age"`
	Seed       *int64 `mapstructure:"-" yaml:"seed,omitempty"`
	StepDays   int    `mapstructure:"STEP_DAYS" yaml:"step_days"`
	OnlyAlive  bool   `mapstructure:"ONLY_ALIVE" yaml:"only_alive"`
	Workers    int    `mapstructure:"WORKERS" yaml:"workers"`

	ModulesDir string `mapstructure:"MODULES_DIR" yaml:"modules_dir"`
	OutputDir  string `mapstructure:"OUTPUT_DIR" yaml:"output_dir"`
	Format     string `mapstructure:"FORMAT" yaml:"format"`
	PerfReport bool   `mapstructure:"PERF_REPORT" yaml:"perf_report"`
}

// ValidationError reports invalid run parameters. It is fatal to the whole
// run and surfaced before any generation starts.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Msg)
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Population: 100,
		MinAge:     0,
		MaxAge:     100,
		StepDays:   7,
		Workers:    runtime.NumCPU(),
		OutputDir:  "output",
		Format:     FormatFHIR,
	}
}

// Load builds a configuration from SYNTHMED_* environment variables layered
// over the defaults. CLI flags are applied on top by the caller.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SYNTHMED")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("POPULATION", def.Population)
	v.SetDefault("MIN_AGE", def.MinAge)
	v.SetDefault("MAX_AGE", def.MaxAge)
	v.SetDefault("STEP_DAYS", def.StepDays)
	v.SetDefault("WORKERS", def.Workers)
	v.SetDefault("MODULES_DIR", "")
	v.SetDefault("OUTPUT_DIR", def.OutputDir)
	v.SetDefault("FORMAT", def.Format)

	// Bind explicitly so Unmarshal sees env values.
	for _, key := range []string{
		"POPULATION", "MIN_AGE", "MAX_AGE", "STEP_DAYS", "ONLY_ALIVE",
		"WORKERS", "MODULES_DIR", "OUTPUT_DIR", "FORMAT", "PERF_REPORT",
	} {
		_ = v.BindEnv(key)
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads a YAML run configuration saved by the wizard (or written
// by hand) and layers it over the defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the run parameters. Any failure here aborts the run
// before generation starts.
func (c Config) Validate() error {
	if c.Population <= 0 {
		return &ValidationError{Field: "population", Msg: fmt.Sprintf("must be > 0, got %d", c.Population)}
	}
	if c.MinAge < 0 {
		return &ValidationError{Field: "min_age", Msg: fmt.Sprintf("must be >= 0, got %d", c.MinAge)}
	}
	if c.MaxAge > 120 {
		return &ValidationError{Field: "max_age", Msg: fmt.Sprintf("must be <= 120, got %d", c.MaxAge)}
	}
	if c.MinAge > c.MaxAge {
		return &ValidationError{Field: "min_age", Msg: fmt.Sprintf("min_age %d exceeds max_age %d", c.MinAge, c.MaxAge)}
	}
	if c.StepDays <= 0 {
		return &ValidationError{Field: "step_days", Msg: fmt.Sprintf("must be > 0, got %d", c.StepDays)}
	}
	if c.Workers < 0 {
		return &ValidationError{Field: "workers", Msg: fmt.Sprintf("must be >= 0, got %d", c.Workers)}
	}
	switch c.Format {
	case FormatFHIR, FormatJSON, FormatCSV:
	default:
		return &ValidationError{Field: "format", Msg: fmt.Sprintf("unknown format %q (valid: fhir, json, csv)", c.Format)}
	}
	if c.ModulesDir == "" {
		return &ValidationError{Field: "modules_dir", Msg: "modules directory is required"}
	}
	return nil
}
