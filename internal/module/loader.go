package module

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadError reports a structurally invalid module definition, naming the
// offending file. Loading fails fast on the first invalid module rather
// than silently dropping it: downstream simulation correctness depends on
// every loaded module being well formed.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load module %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Catalog is the read-only set of loaded modules. One Catalog instance is
// shared across all concurrent patient workers without locking.
type Catalog struct {
	byName  map[string]*Module
	ordered []*Module
}

// Load scans dir for module definition files (*.yaml, *.yml, *.json — JSON
// parses as a YAML subset), validates each, and returns the catalog.
func Load(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read modules directory: %w", err)
	}

	var mods []*Module
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{File: path, Err: err}
		}
		var m Module
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, &LoadError{File: path, Err: fmt.Errorf("parse: %w", err)}
		}
		if err := Validate(&m); err != nil {
			return nil, &LoadError{File: path, Err: err}
		}
		mods = append(mods, &m)
	}

	return NewCatalog(mods...)
}

// NewCatalog builds a catalog from already-validated modules. Used by Load
// and directly by tests that construct modules programmatically.
func NewCatalog(mods ...*Module) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Module, len(mods))}
	for _, m := range mods {
		if err := Validate(m); err != nil {
			return nil, fmt.Errorf("module %q: %w", m.Name, err)
		}
		if _, dup := c.byName[m.Name]; dup {
			return nil, fmt.Errorf("duplicate module name %q", m.Name)
		}
		c.byName[m.Name] = m
		c.ordered = append(c.ordered, m)
	}
	// Ascending priority; ties broken by name so evaluation order is
	// deterministic across runs.
	sort.SliceStable(c.ordered, func(i, j int) bool {
		if c.ordered[i].Priority != c.ordered[j].Priority {
			return c.ordered[i].Priority < c.ordered[j].Priority
		}
		return c.ordered[i].Name < c.ordered[j].Name
	})
	return c, nil
}

// Get returns the named module.
func (c *Catalog) Get(name string) (*Module, bool) {
	m, ok := c.byName[name]
	return m, ok
}

// All returns every module ordered by ascending priority, name tiebreak.
// Callers must treat the slice as read-only.
func (c *Catalog) All() []*Module {
	return c.ordered
}

// Len returns the number of loaded modules.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// Validate checks the structural invariants of a single module: exactly one
// existing initial state, no dangling transition targets, positive weight
// totals on probabilistic states, and kind-specific parameter sanity.
func Validate(m *Module) error {
	if m.Name == "" {
		return fmt.Errorf("module name is required")
	}
	if len(m.States) == 0 {
		return fmt.Errorf("module has no states")
	}
	if m.Initial == "" {
		return fmt.Errorf("missing initial state")
	}
	if _, ok := m.States[m.Initial]; !ok {
		return fmt.Errorf("initial state %q not defined", m.Initial)
	}
	if m.Gender != "" && m.Gender != "M" && m.Gender != "F" {
		return fmt.Errorf("invalid gender restriction %q", m.Gender)
	}

	for name, st := range m.States {
		for _, tr := range st.Transitions {
			if _, ok := m.States[tr.To]; !ok {
				return fmt.Errorf("state %q: dangling transition target %q", name, tr.To)
			}
			if tr.Weight < 0 {
				return fmt.Errorf("state %q: negative transition weight", name)
			}
		}

		switch st.Kind {
		case KindGuard:
			if st.Condition == nil {
				return fmt.Errorf("guard state %q has no condition", name)
			}
			if err := validatePredicate(st.Condition); err != nil {
				return fmt.Errorf("guard state %q: %w", name, err)
			}
			if len(st.Transitions) == 0 {
				return fmt.Errorf("guard state %q has no successor", name)
			}
		case KindDelay:
			if st.Delay == nil {
				return fmt.Errorf("delay state %q has no delay", name)
			}
			d := st.Delay
			if d.Days <= 0 && !(d.LowDays >= 0 && d.HighDays > d.LowDays) {
				return fmt.Errorf("delay state %q: delay must be a positive day count or a low/high range", name)
			}
			if len(st.Transitions) == 0 {
				return fmt.Errorf("delay state %q has no successor", name)
			}
		case KindDirect:
			if len(st.Transitions) != 1 {
				return fmt.Errorf("direct state %q must have exactly one transition, has %d", name, len(st.Transitions))
			}
		case KindProbabilistic:
			if len(st.Transitions) == 0 {
				return fmt.Errorf("probabilistic state %q has no transitions", name)
			}
			var total float64
			for _, tr := range st.Transitions {
				total += tr.Weight
			}
			if total <= 0 {
				return fmt.Errorf("probabilistic state %q: weights must sum to a positive total", name)
			}
		case KindDeath:
			if st.Probability < 0 || st.Probability > 1 {
				return fmt.Errorf("death state %q: probability %v outside [0,1]", name, st.Probability)
			}
			// Survivor transitions are optional: with none, survivors stay
			// on the state and re-draw on the next step.
		case KindTerminal:
			if len(st.Transitions) != 0 {
				return fmt.Errorf("terminal state %q must not have transitions", name)
			}
		default:
			return fmt.Errorf("state %q: unknown kind %q", name, st.Kind)
		}
	}
	return nil
}

func validatePredicate(p *Predicate) error {
	switch p.Kind {
	case PredGender:
		if p.Gender != "M" && p.Gender != "F" {
			return fmt.Errorf("gender predicate: invalid code %q", p.Gender)
		}
	case PredMinAge, PredMaxAge:
		if p.Years < 0 {
			return fmt.Errorf("%s predicate: negative years", p.Kind)
		}
	case PredAttribute:
		if p.Attribute == "" {
			return fmt.Errorf("attribute predicate: missing attribute name")
		}
	case PredActiveCondition:
		if p.Code == "" {
			return fmt.Errorf("active_condition predicate: missing code")
		}
	case PredAllOf:
		if len(p.AllOf) == 0 {
			return fmt.Errorf("all_of predicate: empty")
		}
		for i := range p.AllOf {
			if err := validatePredicate(&p.AllOf[i]); err != nil {
				return err
			}
		}
	case PredAnyOf:
		if len(p.AnyOf) == 0 {
			return fmt.Errorf("any_of predicate: empty")
		}
		for i := range p.AnyOf {
			if err := validatePredicate(&p.AnyOf[i]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
	return nil
}
