package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/domlytics/synthmed/internal/module"
	"github.com/domlytics/synthmed/internal/providers"
	"github.com/domlytics/synthmed/internal/record"
)

// StepOutcome describes what one module evaluation did at one time step.
type StepOutcome int

const (
	// OutcomeSkipped: module is complete, failed, inapplicable, or the
	// patient is dead.
	OutcomeSkipped StepOutcome = iota
	// OutcomeBlocked: a guard condition is not yet satisfied.
	OutcomeBlocked
	// OutcomeWaiting: a delay has not elapsed, or a death draw was survived
	// with nowhere else to go.
	OutcomeWaiting
	// OutcomeAdvanced: the cursor moved to a new state.
	OutcomeAdvanced
	// OutcomeCompleted: the module reached a terminal state.
	OutcomeCompleted
	// OutcomeDied: a death state fired; the patient is now deceased.
	OutcomeDied
	// OutcomeFailed: the cursor referenced an unknown state; the module is
	// excluded from the rest of this patient's simulation.
	OutcomeFailed
)

// snomedSystem is the default coding system for emitted conditions.
const snomedSystem = "http://snomed.info/sct"

// encounterDuration is the nominal length of an emitted encounter.
const encounterDuration = time.Hour

// Evaluate advances one module for one patient at one simulated instant.
//
// At most one transition happens per call. Entry side effects of the state
// being entered are applied exactly once, at entry; re-evaluating a blocked
// guard or an unexpired delay appends nothing. Returns OutcomeFailed plus
// an *UnknownStateError when the cursor is dangling; the cursor is marked
// failed so the module never evaluates again for this patient, and sibling
// modules are unaffected.
func Evaluate(mod *module.Module, ctx *Context, now time.Time) (StepOutcome, error) {
	if !ctx.Patient.Alive {
		return OutcomeSkipped, nil
	}
	cur := ctx.Cursor(mod.Name, mod.Initial)
	if cur.Completed || cur.Failed {
		return OutcomeSkipped, nil
	}

	st, ok := mod.State(cur.State)
	if !ok {
		cur.Failed = true
		return OutcomeFailed, &UnknownStateError{Module: mod.Name, State: cur.State}
	}

	// First evaluation of a freshly entered state applies its entry
	// effects. This covers the module's initial state as well.
	if !cur.entered {
		enterState(ctx, cur, st, now)
		if cur.Completed {
			return OutcomeCompleted, nil
		}
	}

	switch st.Kind {
	case module.KindGuard:
		if !st.Condition.Evaluate(ctx.Patient, now) {
			return OutcomeBlocked, nil
		}
		return transition(ctx, mod, cur, st.Transitions[0].To, now), nil

	case module.KindDelay:
		if now.Before(cur.WakeAt) {
			return OutcomeWaiting, nil
		}
		return transition(ctx, mod, cur, st.Transitions[0].To, now), nil

	case module.KindDirect:
		return transition(ctx, mod, cur, st.Transitions[0].To, now), nil

	case module.KindProbabilistic:
		weights := make([]float64, len(st.Transitions))
		for i, tr := range st.Transitions {
			weights[i] = tr.Weight
		}
		pickIdx := ctx.Stream.Choice(weights)
		return transition(ctx, mod, cur, st.Transitions[pickIdx].To, now), nil

	case module.KindDeath:
		if ctx.Stream.Uniform() < st.Probability {
			d := now
			ctx.Patient.Alive = false
			ctx.Patient.DeathDate = &d
			return OutcomeDied, nil
		}
		// Survived this evaluation. Follow the survivor edge if the module
		// declares one, otherwise stay and re-draw next step.
		if len(st.Transitions) > 0 {
			return transition(ctx, mod, cur, st.Transitions[0].To, now), nil
		}
		return OutcomeWaiting, nil

	case module.KindTerminal:
		cur.Completed = true
		return OutcomeCompleted, nil
	}

	// Unreachable for validated catalogs; treat like an unknown state so a
	// future kind added without interpreter support fails loudly but stays
	// contained to this module.
	cur.Failed = true
	return OutcomeFailed, &UnknownStateError{Module: mod.Name, State: cur.State}
}

// transition moves the cursor to target and enters it.
func transition(ctx *Context, mod *module.Module, cur *Cursor, target string, now time.Time) StepOutcome {
	cur.State = target
	cur.entered = false
	st, ok := mod.State(target)
	if !ok {
		// Validation makes this unreachable; the next Evaluate reports it.
		return OutcomeAdvanced
	}
	enterState(ctx, cur, st, now)
	if cur.Completed {
		return OutcomeCompleted
	}
	return OutcomeAdvanced
}

// enterState applies a state's one-time entry work: side effects, delay
// draw, terminal completion.
func enterState(ctx *Context, cur *Cursor, st module.State, now time.Time) {
	cur.entered = true
	cur.EnteredAt = now

	if st.Emit != nil {
		applyEmit(ctx, st.Emit, now)
	}

	switch st.Kind {
	case module.KindDelay:
		days := st.Delay.Days
		if st.Delay.IsRange() {
			days = ctx.Stream.IntBetween(st.Delay.LowDays, st.Delay.HighDays)
		}
		cur.WakeAt = now.AddDate(0, 0, days)
	case module.KindTerminal:
		cur.Completed = true
	}
}

// applyEmit appends the state's declared record entries. Runs exactly once
// per state entry. Ends are processed before onsets so a state can swap one
// medication for another.
func applyEmit(ctx *Context, e *module.Emit, now time.Time) {
	p := ctx.Patient

	if e.EndCondition != "" {
		for i := range p.Conditions {
			if p.Conditions[i].Code == e.EndCondition && p.Conditions[i].Ended == nil {
				end := now
				p.Conditions[i].Ended = &end
				break
			}
		}
	}
	if e.EndMedication != "" {
		for i := range p.Medications {
			if p.Medications[i].Code == e.EndMedication && p.Medications[i].Stop == nil {
				stop := now
				p.Medications[i].Stop = &stop
				break
			}
		}
	}

	if e.Condition != nil {
		system := e.Condition.System
		if system == "" {
			system = snomedSystem
		}
		p.Conditions = append(p.Conditions, record.Condition{
			ID:      newEntryID(ctx),
			Code:    e.Condition.Code,
			Display: e.Condition.Display,
			System:  system,
			Onset:   now,
		})
	}

	if e.Encounter != nil {
		prov := sampleProviderFor(ctx, e.Encounter.Class)
		p.Encounters = append(p.Encounters, record.Encounter{
			ID:           newEntryID(ctx),
			Class:        e.Encounter.Class,
			Code:         e.Encounter.Code,
			Display:      e.Encounter.Display,
			Start:        now,
			End:          now.Add(encounterDuration),
			ProviderID:   prov.ID,
			ProviderName: prov.Name,
			Reason:       e.Encounter.Reason,
		})
	}

	if e.Medication != nil {
		p.Medications = append(p.Medications, record.Medication{
			ID:      newEntryID(ctx),
			Code:    e.Medication.Code,
			Display: e.Medication.Display,
			Dosage:  e.Medication.Dosage,
			Start:   now,
		})
	}

	if e.Procedure != nil {
		p.Procedures = append(p.Procedures, record.Procedure{
			ID:        newEntryID(ctx),
			Code:      e.Procedure.Code,
			Display:   e.Procedure.Display,
			Performed: now,
		})
	}

	if e.Observation != nil {
		o := e.Observation
		value := o.Low + ctx.Stream.Uniform()*(o.High-o.Low)
		p.Observations = append(p.Observations, record.Observation{
			ID:        newEntryID(ctx),
			Code:      o.Code,
			Display:   o.Display,
			Value:     value,
			Unit:      o.Unit,
			Effective: now,
		})
	}

	if e.ImagingStudy != nil {
		p.ImagingStudies = append(p.ImagingStudies, record.ImagingStudy{
			ID:       newEntryID(ctx),
			Modality: e.ImagingStudy.Modality,
			BodyPart: e.ImagingStudy.BodyPart,
			Display:  e.ImagingStudy.Display,
			Started:  now,
		})
	}

	if e.Attribute != nil {
		if p.Attributes == nil {
			p.Attributes = make(map[string]string)
		}
		value := e.Attribute.Value
		if value == "" {
			value = "true"
		}
		p.Attributes[e.Attribute.Name] = value
	}
}

// sampleProviderFor picks a provider whose specialty matches the encounter
// class, falling back to general practice.
func sampleProviderFor(ctx *Context, class string) providers.Provider {
	specialty := providers.SpecialtyGeneralPractice
	switch class {
	case "emergency":
		specialty = providers.SpecialtyEmergency
	case "imaging":
		specialty = providers.SpecialtyRadiology
	}
	return ctx.directory.SampleSpecialty(specialty, ctx.Stream)
}

// newEntryID draws a UUID from the patient stream so record IDs are part of
// the reproducibility contract.
func newEntryID(ctx *Context) string {
	id, err := uuid.NewRandomFromReader(ctx.Stream)
	if err != nil {
		// The stream reader never fails.
		panic(err)
	}
	return id.String()
}
