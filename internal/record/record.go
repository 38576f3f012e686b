// Package record holds the clinical record model produced by a simulation.
//
// A Patient and its entries are owned exclusively by the worker generating
// them; nothing here is safe for concurrent mutation and nothing needs to
// be. All entry slices are append-only during simulation.
package record

import (
	"fmt"
	"time"
)

// Gender codes used throughout the simulation.
const (
	GenderMale   = "M"
	GenderFemale = "F"
)

// Race codes matching the demographic distributions.
const (
	RaceWhite    = "white"
	RaceBlack    = "black"
	RaceAsian    = "asian"
	RaceNative   = "native"
	RaceHispanic = "hispanic"
	RaceOther    = "other"
)

// Patient is the finalized output of one patient simulation.
type Patient struct {
	ID      string `json:"id"`
	Ordinal int    `json:"ordinal"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender"`
	Race      string `json:"race"`
	Ethnicity string `json:"ethnicity"`

	BirthDate time.Time  `json:"birth_date"`
	DeathDate *time.Time `json:"death_date,omitempty"`
	Alive     bool       `json:"alive"`

	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Income  int    `json:"income"`

	Conditions     []Condition    `json:"conditions"`
	Encounters     []Encounter    `json:"encounters"`
	Medications    []Medication   `json:"medications"`
	Procedures     []Procedure    `json:"procedures"`
	Observations   []Observation  `json:"observations"`
	ImagingStudies []ImagingStudy `json:"imaging_studies,omitempty"`

	// Attributes carries module-visible flags set by guard predicates and
	// state side effects.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Condition is a diagnosed condition entry.
type Condition struct {
	ID      string     `json:"id"`
	Code    string     `json:"code"`
	Display string     `json:"display"`
	System  string     `json:"system"`
	Onset   time.Time  `json:"onset"`
	Ended   *time.Time `json:"ended,omitempty"`
}

// Encounter is a clinical visit entry.
type Encounter struct {
	ID           string    `json:"id"`
	Class        string    `json:"class"`
	Code         string    `json:"code"`
	Display      string    `json:"display"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	ProviderID   string    `json:"provider_id"`
	ProviderName string    `json:"provider_name"`
	Reason       string    `json:"reason,omitempty"`
}

// Medication is a prescription entry.
type Medication struct {
	ID      string     `json:"id"`
	Code    string     `json:"code"`
	Display string     `json:"display"`
	Start   time.Time  `json:"start"`
	Stop    *time.Time `json:"stop,omitempty"`
	Dosage  string     `json:"dosage,omitempty"`
}

// Procedure is a performed-procedure entry.
type Procedure struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Display   string    `json:"display"`
	Performed time.Time `json:"performed"`
}

// Observation is a measured value entry.
type Observation struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Display   string    `json:"display"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Effective time.Time `json:"effective"`
}

// ImagingStudy is an imaging acquisition entry. Studies are rendered to
// DICOM files at export time.
type ImagingStudy struct {
	ID       string    `json:"id"`
	Modality string    `json:"modality"`
	BodyPart string    `json:"body_part"`
	Display  string    `json:"display"`
	Started  time.Time `json:"started"`
}

// FullName returns "First Last".
func (p *Patient) FullName() string {
	return fmt.Sprintf("%s %s", p.FirstName, p.LastName)
}

// AgeAt returns the patient's age in whole years at t.
func (p *Patient) AgeAt(t time.Time) int {
	years := t.Year() - p.BirthDate.Year()
	// Birthday not reached yet this year.
	if t.Month() < p.BirthDate.Month() ||
		(t.Month() == p.BirthDate.Month() && t.Day() < p.BirthDate.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// HasActiveCondition reports whether a condition with the given code is
// present and not yet ended.
func (p *Patient) HasActiveCondition(code string) bool {
	for i := range p.Conditions {
		if p.Conditions[i].Code == code && p.Conditions[i].Ended == nil {
			return true
		}
	}
	return false
}

// EntryCount returns the total number of clinical entries across all
// record categories. Used by death-finality checks and progress stats.
func (p *Patient) EntryCount() int {
	return len(p.Conditions) + len(p.Encounters) + len(p.Medications) +
		len(p.Procedures) + len(p.Observations) + len(p.ImagingStudies)
}
