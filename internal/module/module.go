// Package module loads and validates declarative clinical modules.
//
// A module is a small state machine describing one aspect of a care pathway
// (a condition's onset and progression, a recurring encounter, a mortality
// model). Modules are loaded once per run, validated eagerly, and shared
// read-only across all patient workers.
package module

import (
	"time"

	"github.com/domlytics/synthmed/internal/record"
)

// StateKind discriminates how a state transitions. The set is closed; the
// interpreter switches exhaustively over it.
type StateKind string

const (
	KindGuard         StateKind = "guard"
	KindDelay         StateKind = "delay"
	KindDirect        StateKind = "direct"
	KindProbabilistic StateKind = "probabilistic"
	KindDeath         StateKind = "death"
	KindTerminal      StateKind = "terminal"
)

// Module is one clinical state machine. Immutable after load.
type Module struct {
	Name     string           `yaml:"name"`
	Priority int              `yaml:"priority"`
	Gender   string           `yaml:"gender,omitempty"` // "", "M" or "F"
	Remarks  string           `yaml:"remarks,omitempty"`
	Initial  string           `yaml:"initial"`
	States   map[string]State `yaml:"states"`
}

// State is one node of a module's graph. Cursors reference states by name,
// never by pointer, so the same module can serve thousands of concurrent
// patients.
type State struct {
	Kind        StateKind    `yaml:"type"`
	Transitions []Transition `yaml:"transitions,omitempty"`

	// Guard parameter.
	Condition *Predicate `yaml:"condition,omitempty"`

	// Delay parameter.
	Delay *Delay `yaml:"delay,omitempty"`

	// Death parameter: probability of death per evaluation.
	Probability float64 `yaml:"probability,omitempty"`

	// Emit is applied exactly once when the cursor enters this state.
	Emit *Emit `yaml:"emit,omitempty"`
}

// Transition is a directed edge to a named target state. Weight is only
// meaningful on probabilistic states.
type Transition struct {
	To     string  `yaml:"to"`
	Weight float64 `yaml:"weight,omitempty"`
}

// Delay holds the cursor in place for a duration measured from state entry.
// Either Days is set, or [LowDays, HighDays] describes a range drawn once
// on entry.
type Delay struct {
	Days     int `yaml:"days,omitempty"`
	LowDays  int `yaml:"low_days,omitempty"`
	HighDays int `yaml:"high_days,omitempty"`
}

// IsRange reports whether the delay is drawn from a range.
func (d *Delay) IsRange() bool {
	return d.Days == 0 && d.HighDays > 0
}

// Applicable reports whether the module applies to the patient at all
// (gender restriction).
func (m *Module) Applicable(p *record.Patient) bool {
	return m.Gender == "" || m.Gender == p.Gender
}

// State returns the named state definition.
func (m *Module) State(name string) (State, bool) {
	s, ok := m.States[name]
	return s, ok
}

// Predicate is a guard condition evaluated against the patient's record at
// a simulated instant. Composites nest via AllOf/AnyOf.
type Predicate struct {
	Kind string `yaml:"kind"`

	Gender    string      `yaml:"gender,omitempty"`    // kind: gender
	Years     int         `yaml:"years,omitempty"`     // kind: min_age / max_age
	Attribute string      `yaml:"attribute,omitempty"` // kind: attribute
	Value     string      `yaml:"value,omitempty"`     // expected attribute value ("" = present)
	Code      string      `yaml:"code,omitempty"`      // kind: active_condition
	AllOf     []Predicate `yaml:"all_of,omitempty"`
	AnyOf     []Predicate `yaml:"any_of,omitempty"`
}

// Predicate kinds.
const (
	PredGender          = "gender"
	PredMinAge          = "min_age"
	PredMaxAge          = "max_age"
	PredAttribute       = "attribute"
	PredActiveCondition = "active_condition"
	PredAllOf           = "all_of"
	PredAnyOf           = "any_of"
)

// Evaluate applies the predicate to the patient at the simulated instant.
// Unknown kinds evaluate false, which makes a malformed guard block forever
// instead of firing spuriously; the loader rejects unknown kinds anyway.
func (p *Predicate) Evaluate(pt *record.Patient, now time.Time) bool {
	switch p.Kind {
	case PredGender:
		return pt.Gender == p.Gender
	case PredMinAge:
		return pt.AgeAt(now) >= p.Years
	case PredMaxAge:
		return pt.AgeAt(now) <= p.Years
	case PredAttribute:
		got, ok := pt.Attributes[p.Attribute]
		if !ok {
			return false
		}
		return p.Value == "" || got == p.Value
	case PredActiveCondition:
		return pt.HasActiveCondition(p.Code)
	case PredAllOf:
		for i := range p.AllOf {
			if !p.AllOf[i].Evaluate(pt, now) {
				return false
			}
		}
		return true
	case PredAnyOf:
		for i := range p.AnyOf {
			if p.AnyOf[i].Evaluate(pt, now) {
				return true
			}
		}
		return false
	}
	return false
}

// Emit describes the record entries appended when a state is entered.
// Every field is optional; an Emit may combine several.
type Emit struct {
	Condition     *ConditionDef    `yaml:"condition,omitempty"`
	EndCondition  string           `yaml:"end_condition,omitempty"` // code of a prior condition to end
	Encounter     *EncounterDef    `yaml:"encounter,omitempty"`
	Medication    *MedicationDef   `yaml:"medication,omitempty"`
	EndMedication string           `yaml:"end_medication,omitempty"`
	Procedure     *ProcedureDef    `yaml:"procedure,omitempty"`
	Observation   *ObservationDef  `yaml:"observation,omitempty"`
	ImagingStudy  *ImagingStudyDef `yaml:"imaging_study,omitempty"`
	Attribute     *AttributeDef    `yaml:"attribute,omitempty"`
}

// ConditionDef declares a condition onset. System defaults to SNOMED CT.
type ConditionDef struct {
	Code    string `yaml:"code"`
	Display string `yaml:"display"`
	System  string `yaml:"system,omitempty"`
}

// EncounterDef declares a clinical visit.
type EncounterDef struct {
	Class   string `yaml:"class,omitempty"` // ambulatory, emergency, inpatient, wellness
	Code    string `yaml:"code"`
	Display string `yaml:"display"`
	Reason  string `yaml:"reason,omitempty"`
}

// MedicationDef declares a prescription start.
type MedicationDef struct {
	Code    string `yaml:"code"`
	Display string `yaml:"display"`
	Dosage  string `yaml:"dosage,omitempty"`
}

// ProcedureDef declares a performed procedure.
type ProcedureDef struct {
	Code    string `yaml:"code"`
	Display string `yaml:"display"`
}

// ObservationDef declares a measurement; the value is drawn uniformly from
// [Low, High] on the patient's stream.
type ObservationDef struct {
	Code    string  `yaml:"code"`
	Display string  `yaml:"display"`
	Unit    string  `yaml:"unit,omitempty"`
	Low     float64 `yaml:"low"`
	High    float64 `yaml:"high"`
}

// ImagingStudyDef declares an imaging acquisition rendered to DICOM at
// export time.
type ImagingStudyDef struct {
	Modality string `yaml:"modality"` // MR, CT, CR, DX, US, MG
	BodyPart string `yaml:"body_part"`
	Display  string `yaml:"display,omitempty"`
}

// AttributeDef sets a module-visible flag on the patient.
type AttributeDef struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value,omitempty"`
}
