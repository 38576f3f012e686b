package engine

import (
	"time"

	"github.com/domlytics/synthmed/internal/providers"
	"github.com/domlytics/synthmed/internal/record"
	"github.com/domlytics/synthmed/internal/rng"
)

// Cursor tracks where one module currently sits for one patient. Cursors
// reference states by name; the module graph itself is never mutated.
type Cursor struct {
	State     string
	EnteredAt time.Time
	// WakeAt is the end of a delay, drawn once on state entry.
	WakeAt time.Time
	// entered is false until the state's entry effects have been applied,
	// which happens at most once per entry.
	entered bool
	// Completed marks a module that reached a terminal state.
	Completed bool
	// Failed marks a module that hit an unknown state; it is excluded from
	// all further evaluation for this patient.
	Failed bool
}

// Context is the Patient Execution Context: everything mutable about one
// patient's simulation. It is owned exclusively by the worker generating
// the patient and never shared.
type Context struct {
	Patient *record.Patient
	Stream  *rng.Stream

	cursors   map[string]*Cursor
	directory *providers.Directory
}

// NewContext builds the execution context for a freshly sampled patient.
func NewContext(p *record.Patient, stream *rng.Stream, dir *providers.Directory) *Context {
	return &Context{
		Patient:   p,
		Stream:    stream,
		cursors:   make(map[string]*Cursor),
		directory: dir,
	}
}

// Cursor returns the cursor for a module, creating it at the initial state
// on first use.
func (c *Context) Cursor(moduleName, initial string) *Cursor {
	cur, ok := c.cursors[moduleName]
	if !ok {
		cur = &Cursor{State: initial}
		c.cursors[moduleName] = cur
	}
	return cur
}
