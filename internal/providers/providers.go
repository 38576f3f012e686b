// Package providers holds the healthcare provider and organization
// directory consumed by the simulation when stamping encounters.
package providers

import (
	"github.com/domlytics/synthmed/internal/rng"
)

// Provider is one practitioner record.
type Provider struct {
	ID        string
	Name      string
	Specialty string
	OrgID     string
}

// Organization is one care organization record.
type Organization struct {
	ID    string
	Name  string
	City  string
	State string
	Zip   string
}

// Directory is the read-only provider/organization catalog. One instance is
// shared across all workers.
type Directory struct {
	orgs      []Organization
	providers []Provider
	// bySpecialty indexes provider positions, built once at construction.
	bySpecialty map[string][]int
}

// Specialties present in the built-in directory.
const (
	SpecialtyGeneralPractice = "GENERAL PRACTICE"
	SpecialtyCardiology      = "CARDIOLOGY"
	SpecialtyEndocrinology   = "ENDOCRINOLOGY"
	SpecialtyOncology        = "ONCOLOGY"
	SpecialtyRadiology       = "RADIOLOGY"
	SpecialtyEmergency       = "EMERGENCY MEDICINE"
)

// Default returns the built-in directory. A future revision may load these
// from reference files the way modules are loaded.
func Default() *Directory {
	orgs := []Organization{
		{ID: "org-001", Name: "General Hospital", City: "Boston", State: "Massachusetts", Zip: "02108"},
		{ID: "org-002", Name: "Riverside Medical Center", City: "New York", State: "New York", Zip: "10001"},
		{ID: "org-003", Name: "Lakeside Community Clinic", City: "Chicago", State: "Illinois", Zip: "60601"},
	}
	provs := []Provider{
		{ID: "prov-001", Name: "Dr. Alice Hartman", Specialty: SpecialtyGeneralPractice, OrgID: "org-001"},
		{ID: "prov-002", Name: "Dr. Marcus Webb", Specialty: SpecialtyGeneralPractice, OrgID: "org-002"},
		{ID: "prov-003", Name: "Dr. Priya Raman", Specialty: SpecialtyGeneralPractice, OrgID: "org-003"},
		{ID: "prov-004", Name: "Dr. Elena Vasquez", Specialty: SpecialtyCardiology, OrgID: "org-001"},
		{ID: "prov-005", Name: "Dr. Samuel Okafor", Specialty: SpecialtyEndocrinology, OrgID: "org-002"},
		{ID: "prov-006", Name: "Dr. Janet Liu", Specialty: SpecialtyOncology, OrgID: "org-001"},
		{ID: "prov-007", Name: "Dr. Robert Kessler", Specialty: SpecialtyRadiology, OrgID: "org-002"},
		{ID: "prov-008", Name: "Dr. Hannah Fields", Specialty: SpecialtyEmergency, OrgID: "org-001"},
	}
	return New(orgs, provs)
}

// New builds a directory from explicit records.
func New(orgs []Organization, provs []Provider) *Directory {
	d := &Directory{
		orgs:        orgs,
		providers:   provs,
		bySpecialty: make(map[string][]int),
	}
	for i, p := range provs {
		d.bySpecialty[p.Specialty] = append(d.bySpecialty[p.Specialty], i)
	}
	return d
}

// Sample draws any provider from the directory.
func (d *Directory) Sample(s *rng.Stream) Provider {
	return d.providers[s.IntBetween(0, len(d.providers)-1)]
}

// SampleSpecialty draws a provider with the given specialty, falling back
// to the whole directory when the specialty is not represented.
func (d *Directory) SampleSpecialty(specialty string, s *rng.Stream) Provider {
	idx, ok := d.bySpecialty[specialty]
	if !ok || len(idx) == 0 {
		return d.Sample(s)
	}
	return d.providers[idx[s.IntBetween(0, len(idx)-1)]]
}

// Organization returns the organization a provider belongs to.
func (d *Directory) Organization(p Provider) (Organization, bool) {
	for _, o := range d.orgs {
		if o.ID == p.OrgID {
			return o, true
		}
	}
	return Organization{}, false
}

// Providers returns all practitioner records.
func (d *Directory) Providers() []Provider {
	return d.providers
}
