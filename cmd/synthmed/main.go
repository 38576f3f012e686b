package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/domlytics/synthmed/cmd/synthmed/wizard"
	"github.com/domlytics/synthmed/internal/config"
	"github.com/domlytics/synthmed/internal/engine"
	"github.com/domlytics/synthmed/internal/validation"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "synthmed",
		Short:   "Generate synthetic longitudinal patient histories",
		Version: version,
	}
	root.AddCommand(simulateCmd(), validateCmd(), wizardCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(quiet bool) zerolog.Logger {
	if quiet {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func simulateCmd() *cobra.Command {
	var (
		configFile string
		saveConfig string
		seed       int64
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a population simulation and export the records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if configFile != "" {
				cfg, err = config.LoadFile(configFile)
				if err != nil {
					return err
				}
			}
			applyFlags(cmd, &cfg)
			if cmd.Flags().Changed("seed") {
				cfg.Seed = &seed
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if saveConfig != "" {
				if err := cfg.Save(saveConfig); err != nil {
					return fmt.Errorf("save config: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := newLogger(quiet)
			result, err := engine.New(cfg, logger).Run(ctx)
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Printf("✓ %d patients written to %s/ (seed %d", len(result.Patients), cfg.OutputDir, result.Seed)
				if result.Failures > 0 {
					fmt.Printf(", %d dropped", result.Failures)
				}
				fmt.Println(")")
			}
			return nil
		},
	}

	flags := cmd.Flags()
	def := config.Default()
	flags.IntP("population", "p", def.Population, "Number of patients to generate")
	flags.Int("min-age", def.MinAge, "Minimum patient age at present day")
	flags.Int("max-age", def.MaxAge, "Maximum patient age at present day")
	flags.Int64Var(&seed, "seed", 0, "Seed for reproducibility (random if not specified)")
	flags.Int("step-days", def.StepDays, "Simulation time step in days")
	flags.Bool("only-alive", def.OnlyAlive, "Re-simulate deceased patients so the output only contains living ones")
	flags.IntP("workers", "w", 0, fmt.Sprintf("Number of parallel workers (default %d = CPU cores)", runtime.NumCPU()))
	flags.StringP("modules", "m", def.ModulesDir, "Directory of disease module files")
	flags.StringP("output", "o", def.OutputDir, "Output directory")
	flags.StringP("format", "f", def.Format, "Export format: fhir, json, csv")
	flags.Bool("perf-report", false, "Write per-phase timings next to the exported data")
	flags.StringVar(&configFile, "config", "", "Load run configuration from a YAML file")
	flags.StringVar(&saveConfig, "save-config", "", "Save the effective configuration to a YAML file")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	return cmd
}

// applyFlags overlays explicitly set flags onto the configuration, so flag
// values beat both defaults and config file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("population") {
		cfg.Population, _ = flags.GetInt("population")
	}
	if flags.Changed("min-age") {
		cfg.MinAge, _ = flags.GetInt("min-age")
	}
	if flags.Changed("max-age") {
		cfg.MaxAge, _ = flags.GetInt("max-age")
	}
	if flags.Changed("step-days") {
		cfg.StepDays, _ = flags.GetInt("step-days")
	}
	if flags.Changed("only-alive") {
		cfg.OnlyAlive, _ = flags.GetBool("only-alive")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("modules") {
		cfg.ModulesDir, _ = flags.GetString("modules")
	}
	if flags.Changed("output") {
		cfg.OutputDir, _ = flags.GetString("output")
	}
	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("perf-report") {
		cfg.PerfReport, _ = flags.GetBool("perf-report")
	}
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <output-dir>",
		Short: "Check an exported population for consistency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := validation.Validate(args[0])
			if err != nil {
				return err
			}
			report.Write(os.Stdout)
			if !report.Passed() {
				return fmt.Errorf("validation failed")
			}
			return nil
		},
	}
	return cmd
}

func wizardCmd() *cobra.Command {
	var fromConfig string
	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Configure a simulation interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return wizard.Run(fromConfig)
		},
	}
	cmd.Flags().StringVar(&fromConfig, "from", "", "Pre-fill the wizard from a saved YAML configuration")
	return cmd
}
