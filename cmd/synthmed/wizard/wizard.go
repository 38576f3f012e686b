package wizard

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog"

	"github.com/domlytics/synthmed/cmd/synthmed/wizard/components"
	"github.com/domlytics/synthmed/internal/config"
	"github.com/domlytics/synthmed/internal/engine"
)

// progressMsg reports generation progress from the engine goroutine.
type progressMsg struct {
	current int
	total   int
}

// doneMsg is sent when the run finishes.
type doneMsg struct {
	patients int
	failures int
	seed     uint64
	elapsed  time.Duration
}

// errMsg is sent when the run fails.
type errMsg struct {
	err error
}

// Wizard is the top-level TUI model.
type Wizard struct {
	state *State
	phase Phase

	form *huh.Form
	cfg  config.Config

	events   chan tea.Msg
	progress progressMsg
	started  time.Time
	done     doneMsg

	cancelled bool
	err       error
}

// NewWizard builds the wizard, pre-filled from state.
func NewWizard(state *State) *Wizard {
	w := &Wizard{
		state:  state,
		phase:  PhaseForm,
		events: make(chan tea.Msg, 64),
	}
	w.form = w.buildForm()
	return w
}

func (w *Wizard) buildForm() *huh.Form {
	s := w.state
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Population").
				Description("Number of patients to generate").
				Value(&s.Population).
				Validate(validateInt),
			huh.NewInput().
				Title("Minimum age").
				Value(&s.MinAge).
				Validate(validateInt),
			huh.NewInput().
				Title("Maximum age").
				Value(&s.MaxAge).
				Validate(validateInt),
			huh.NewInput().
				Title("Seed").
				Description("Empty for a random seed").
				Value(&s.Seed).
				Validate(validateInt),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Modules directory").
				Description("Directory of disease module files").
				Value(&s.ModulesDir),
			huh.NewInput().
				Title("Output directory").
				Value(&s.OutputDir),
			huh.NewSelect[string]().
				Title("Export format").
				Options(huh.NewOptions("fhir", "json", "csv")...).
				Value(&s.Format),
			huh.NewConfirm().
				Title("Only living patients").
				Description("Re-simulate deceased patients").
				Value(&s.OnlyAlive),
			huh.NewInput().
				Title("Workers").
				Description("0 uses every CPU core").
				Value(&s.Workers).
				Validate(validateInt),
			huh.NewInput().
				Title("Save configuration to").
				Description("Optional YAML path").
				Value(&s.SavePath),
		),
	)
}

// Init implements tea.Model.
func (w *Wizard) Init() tea.Cmd {
	return w.form.Init()
}

// Update implements tea.Model.
func (w *Wizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+c" {
		w.cancelled = true
		return w, tea.Quit
	}

	switch w.phase {
	case PhaseForm:
		return w.updateForm(msg)
	case PhaseSummary:
		return w.updateSummary(msg)
	case PhaseProgress:
		return w.updateProgress(msg)
	case PhaseComplete, PhaseError:
		if _, ok := msg.(tea.KeyMsg); ok {
			return w, tea.Quit
		}
	}
	return w, nil
}

func (w *Wizard) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := w.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		w.form = f
	}

	if w.form.State == huh.StateAborted {
		w.cancelled = true
		return w, tea.Quit
	}
	if w.form.State == huh.StateCompleted {
		cfg, err := w.state.ToConfig()
		if err != nil {
			w.err = err
			w.phase = PhaseError
			return w, nil
		}
		w.cfg = cfg
		w.phase = PhaseSummary
	}
	return w, cmd
}

func (w *Wizard) updateSummary(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return w, nil
	}
	switch key.String() {
	case "enter", "y":
		if w.state.SavePath != "" {
			if err := w.cfg.Save(w.state.SavePath); err != nil {
				w.err = fmt.Errorf("save config: %w", err)
				w.phase = PhaseError
				return w, nil
			}
		}
		w.phase = PhaseProgress
		w.started = time.Now()
		return w, tea.Batch(w.startRun(), w.listen())
	case "e":
		w.form = w.buildForm()
		w.phase = PhaseForm
		return w, w.form.Init()
	case "q", "esc":
		w.cancelled = true
		return w, tea.Quit
	}
	return w, nil
}

func (w *Wizard) updateProgress(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case progressMsg:
		w.progress = m
		return w, w.listen()
	case doneMsg:
		w.done = m
		w.phase = PhaseComplete
		return w, nil
	case errMsg:
		w.err = m.err
		w.phase = PhaseError
		return w, nil
	}
	return w, nil
}

// startRun launches the engine in its own goroutine; results come back
// through the events channel.
func (w *Wizard) startRun() tea.Cmd {
	return func() tea.Msg {
		eng := engine.New(w.cfg, zerolog.Nop())
		eng.ProgressCallback = func(current, total int) {
			select {
			case w.events <- progressMsg{current: current, total: total}:
			default:
			}
		}
		go func() {
			start := time.Now()
			result, err := eng.Run(context.Background())
			if err != nil {
				w.events <- errMsg{err: err}
				return
			}
			w.events <- doneMsg{
				patients: len(result.Patients),
				failures: result.Failures,
				seed:     result.Seed,
				elapsed:  time.Since(start),
			}
		}()
		return nil
	}
}

func (w *Wizard) listen() tea.Cmd {
	return func() tea.Msg {
		return <-w.events
	}
}

// View implements tea.Model.
func (w *Wizard) View() string {
	switch w.phase {
	case PhaseForm:
		return components.TitleStyle.Render("synthmed setup") + "\n" + w.form.View()
	case PhaseSummary:
		return w.summaryView()
	case PhaseProgress:
		return w.progressView()
	case PhaseComplete:
		return fmt.Sprintf("%s\n\n  patients  %d\n  dropped   %d\n  seed      %d\n  elapsed   %s\n\n%s\n",
			components.SuccessStyle.Render("✓ Generation complete"),
			w.done.patients, w.done.failures, w.done.seed,
			w.done.elapsed.Round(time.Millisecond),
			components.HintStyle.Render("press any key to exit"))
	case PhaseError:
		return fmt.Sprintf("%s\n\n%v\n\n%s\n",
			components.ErrorStyle.Render("✗ Generation failed"),
			w.err,
			components.HintStyle.Render("press any key to exit"))
	}
	return ""
}

func (w *Wizard) summaryView() string {
	var b strings.Builder
	b.WriteString(components.TitleStyle.Render("Review configuration"))
	b.WriteString("\n")

	seed := "random"
	if w.cfg.Seed != nil {
		seed = fmt.Sprintf("%d", *w.cfg.Seed)
	}
	rows := [][2]string{
		{"population", fmt.Sprintf("%d", w.cfg.Population)},
		{"ages", fmt.Sprintf("%d to %d", w.cfg.MinAge, w.cfg.MaxAge)},
		{"seed", seed},
		{"modules", w.cfg.ModulesDir},
		{"output", w.cfg.OutputDir},
		{"format", w.cfg.Format},
		{"only living", fmt.Sprintf("%t", w.cfg.OnlyAlive)},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "  %-12s %s\n", row[0], row[1])
	}
	b.WriteString("\n")
	b.WriteString(components.HintStyle.Render("enter: run  e: edit  q: quit"))
	b.WriteString("\n")
	return b.String()
}

func (w *Wizard) progressView() string {
	var b strings.Builder
	b.WriteString(components.TitleStyle.Render("Generating population"))
	b.WriteString("\n")

	if w.progress.total > 0 {
		const barWidth = 40
		filled := w.progress.current * barWidth / w.progress.total
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		pct := float64(w.progress.current) / float64(w.progress.total) * 100
		fmt.Fprintf(&b, "  %s %.0f%% (%d/%d)\n", bar, pct, w.progress.current, w.progress.total)
	} else {
		b.WriteString("  loading modules...\n")
	}
	fmt.Fprintf(&b, "\n  elapsed: %s\n", time.Since(w.started).Round(time.Second))
	b.WriteString("\n")
	b.WriteString(components.HintStyle.Render("ctrl+c to cancel"))
	b.WriteString("\n")
	return b.String()
}

// Run starts the wizard, optionally pre-filled from a saved configuration.
func Run(fromConfig string) error {
	cfg := config.Default()
	if fromConfig != "" {
		loaded, err := config.LoadFile(fromConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	wizard := NewWizard(NewState(cfg))
	p := tea.NewProgram(wizard, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("running wizard: %w", err)
	}

	if w, ok := finalModel.(*Wizard); ok {
		if w.cancelled {
			return nil
		}
		if w.err != nil {
			return w.err
		}
	}
	return nil
}
