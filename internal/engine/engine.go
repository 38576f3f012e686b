// Package engine runs the population simulation: it interprets disease
// modules against per-patient timelines and fans the work out over a
// worker pool.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/domlytics/synthmed/internal/config"
	"github.com/domlytics/synthmed/internal/export"
	"github.com/domlytics/synthmed/internal/imaging"
	"github.com/domlytics/synthmed/internal/module"
	"github.com/domlytics/synthmed/internal/providers"
	"github.com/domlytics/synthmed/internal/record"
	"github.com/domlytics/synthmed/internal/rng"
)

// sequentialThreshold: populations at or under this size skip the worker
// pool; goroutine overhead outweighs the win.
const sequentialThreshold = 10

// Engine orchestrates a full generation run.
type Engine struct {
	cfg    config.Config
	logger zerolog.Logger

	// ProgressCallback, when set, is invoked as patients complete.
	ProgressCallback func(current, total int)

	mu      sync.Mutex
	metrics map[string]time.Duration
}

// Result summarizes a completed run.
type Result struct {
	Patients []*record.Patient
	Failures int
	Seed     uint64
}

// New builds an engine for the given configuration.
func New(cfg config.Config, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		logger:  logger,
		metrics: make(map[string]time.Duration),
	}
}

// Run loads the module catalog, simulates the population, and exports it.
// Per-patient failures are logged and counted but do not abort the run.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	runStart := time.Now()

	loadStart := time.Now()
	catalog, err := module.Load(e.cfg.ModulesDir)
	if err != nil {
		return nil, fmt.Errorf("load modules: %w", err)
	}
	e.record("module_loading", time.Since(loadStart))
	e.logger.Info().Int("modules", catalog.Len()).Str("dir", e.cfg.ModulesDir).Msg("module catalog loaded")

	seed := rng.NewSeed()
	if e.cfg.Seed != nil {
		seed = uint64(*e.cfg.Seed)
	}
	e.logger.Info().Uint64("seed", seed).Int("population", e.cfg.Population).Msg("starting generation")

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	gen := NewGenerator(seed, e.cfg, catalog, providers.Default(), today, e.logger)

	genStart := time.Now()
	patients, failures := e.generate(ctx, gen)
	e.record("patient_generation", time.Since(genStart))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exportStart := time.Now()
	exp, err := export.New(e.cfg.Format, e.cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := exp.Export(patients); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if err := e.writeImaging(patients); err != nil {
		return nil, err
	}
	e.record("data_export", time.Since(exportStart))

	e.record("total", time.Since(runStart))
	if e.cfg.PerfReport {
		if err := e.writePerfReport(); err != nil {
			e.logger.Warn().Err(err).Msg("perf report not written")
		}
	}

	e.logger.Info().
		Int("patients", len(patients)).
		Int("failures", failures).
		Dur("elapsed", time.Since(runStart)).
		Msg("generation complete")

	return &Result{Patients: patients, Failures: failures, Seed: seed}, nil
}

// generate simulates the whole population, sequentially for small runs and
// over a bounded pool otherwise. Output order is always ordinal order.
func (e *Engine) generate(ctx context.Context, gen *Generator) ([]*record.Patient, int) {
	total := e.cfg.Population
	byOrdinal := make([]*record.Patient, total)
	failures := 0

	if total <= sequentialThreshold || e.cfg.Workers == 1 {
		for ordinal := 0; ordinal < total; ordinal++ {
			if ctx.Err() != nil {
				break
			}
			p, err := gen.Patient(ordinal)
			if err != nil {
				e.logger.Error().Err(err).Int("ordinal", ordinal).Msg("patient dropped")
				failures++
			} else {
				byOrdinal[ordinal] = p
			}
			e.progress(ordinal+1, total)
		}
		return compact(byOrdinal), failures
	}

	numWorkers := e.cfg.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > total {
		numWorkers = total
	}
	e.logger.Info().Int("workers", numWorkers).Msg("parallel generation")

	taskChan := make(chan int, total)
	resultChan := make(chan struct {
		ordinal int
		patient *record.Patient
		err     error
	}, total)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ordinal := range taskChan {
				if ctx.Err() != nil {
					continue
				}
				p, err := gen.Patient(ordinal)
				resultChan <- struct {
					ordinal int
					patient *record.Patient
					err     error
				}{ordinal, p, err}
			}
		}()
	}

	for ordinal := 0; ordinal < total; ordinal++ {
		taskChan <- ordinal
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	completed := 0
	for result := range resultChan {
		if result.err != nil {
			e.logger.Error().Err(result.err).Int("ordinal", result.ordinal).Msg("patient dropped")
			failures++
		} else {
			byOrdinal[result.ordinal] = result.patient
		}
		completed++
		e.progress(completed, total)
	}
	return compact(byOrdinal), failures
}

// writeImaging renders one DICOM file per imaging study under
// <output>/dicom.
func (e *Engine) writeImaging(patients []*record.Patient) error {
	total := 0
	for _, p := range patients {
		total += len(p.ImagingStudies)
	}
	if total == 0 {
		return nil
	}
	writer := imaging.NewWriter(filepath.Join(e.cfg.OutputDir, "dicom"))
	for _, p := range patients {
		for _, study := range p.ImagingStudies {
			if _, err := writer.WriteStudy(p, study); err != nil {
				return fmt.Errorf("render imaging study %s: %w", study.ID, err)
			}
		}
	}
	e.logger.Info().Int("studies", total).Msg("imaging studies rendered")
	return nil
}

// progress reports roughly every tenth of the population plus completion.
func (e *Engine) progress(current, total int) {
	if e.ProgressCallback != nil {
		e.ProgressCallback(current, total)
	}
	interval := total / 10
	if interval < 1 {
		interval = 1
	}
	if current%interval == 0 || current == total {
		e.logger.Info().
			Int("current", current).
			Int("total", total).
			Float64("percent", float64(current)/float64(total)*100).
			Msg("progress")
	}
}

// Metrics returns a copy of the per-phase timings for the last run.
func (e *Engine) Metrics() map[string]time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]time.Duration, len(e.metrics))
	for k, v := range e.metrics {
		out[k] = v
	}
	return out
}

func (e *Engine) record(phase string, d time.Duration) {
	e.mu.Lock()
	e.metrics[phase] = d
	e.mu.Unlock()
}

// writePerfReport dumps phase timings next to the exported data.
func (e *Engine) writePerfReport() error {
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return err
	}
	metrics := e.Metrics()
	report := fmt.Sprintf(
		"module_loading: %s\npatient_generation: %s\ndata_export: %s\ntotal: %s\n",
		metrics["module_loading"],
		metrics["patient_generation"],
		metrics["data_export"],
		metrics["total"],
	)
	path := filepath.Join(e.cfg.OutputDir, "perf_report.txt")
	return os.WriteFile(path, []byte(report), 0o644)
}

// compact drops nil slots left by failed patients, preserving ordinal order.
func compact(patients []*record.Patient) []*record.Patient {
	out := make([]*record.Patient, 0, len(patients))
	for _, p := range patients {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
