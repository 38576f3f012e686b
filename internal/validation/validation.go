// Package validation checks exported populations for internal consistency
// and demographic realism.
package validation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/domlytics/synthmed/internal/record"
)

// Check is one named validation result.
type Check struct {
	Category string
	Name     string
	Passed   bool
	Message  string
}

// Report collects every check run against one output directory.
type Report struct {
	Format string
	Checks []Check
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Write renders the report, one line per check.
func (r *Report) Write(w io.Writer) {
	fmt.Fprintf(w, "Validation report (format: %s)\n", r.Format)
	for _, c := range r.Checks {
		status := "PASS"
		if !c.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "  [%s] %s/%s: %s\n", status, c.Category, c.Name, c.Message)
	}
}

func (r *Report) add(category, name string, passed bool, format string, args ...any) {
	r.Checks = append(r.Checks, Check{
		Category: category,
		Name:     name,
		Passed:   passed,
		Message:  fmt.Sprintf(format, args...),
	})
}

// summary is the format-independent view of one exported patient.
type summary struct {
	ID     string
	Gender string
	Race   string
	Birth  time.Time
	Death  *time.Time
}

// Validate inspects an output directory, detects its export format, and
// runs every applicable check.
func Validate(dir string) (*Report, error) {
	format, err := detectFormat(dir)
	if err != nil {
		return nil, err
	}
	report := &Report{Format: format}

	var patients []summary
	var full []record.Patient

	switch format {
	case "json":
		full, err = loadJSON(dir)
		if err != nil {
			report.add("files", "load", false, "%v", err)
			return report, nil
		}
		for _, p := range full {
			patients = append(patients, summary{ID: p.ID, Gender: p.Gender, Race: p.Race, Birth: p.BirthDate, Death: p.DeathDate})
		}
	case "fhir":
		patients, err = loadFHIR(dir)
		if err != nil {
			report.add("files", "load", false, "%v", err)
			return report, nil
		}
	case "csv":
		patients, err = loadCSV(dir)
		if err != nil {
			report.add("files", "load", false, "%v", err)
			return report, nil
		}
	}
	report.add("files", "load", true, "loaded %d patients", len(patients))

	checkDemographics(report, patients)
	checkIdentity(report, patients)
	if full != nil {
		checkLifetimes(report, full)
	}
	return report, nil
}

// detectFormat sniffs the directory contents.
func detectFormat(dir string) (string, error) {
	if matches, _ := filepath.Glob(filepath.Join(dir, "*.fhir.json")); len(matches) > 0 {
		return "fhir", nil
	}
	if _, err := os.Stat(filepath.Join(dir, "patients.json")); err == nil {
		return "json", nil
	}
	if _, err := os.Stat(filepath.Join(dir, "patients.csv")); err == nil {
		return "csv", nil
	}
	return "", fmt.Errorf("no exported data found in %s", dir)
}

func loadJSON(dir string) ([]record.Patient, error) {
	data, err := os.ReadFile(filepath.Join(dir, "patients.json"))
	if err != nil {
		return nil, err
	}
	var patients []record.Patient
	if err := json.Unmarshal(data, &patients); err != nil {
		return nil, fmt.Errorf("parse patients.json: %w", err)
	}
	return patients, nil
}

func loadFHIR(dir string) ([]summary, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.fhir.json"))
	if err != nil {
		return nil, err
	}
	var patients []summary
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var bundle struct {
			ResourceType string `json:"resourceType"`
			Entry        []struct {
				Resource map[string]any `json:"resource"`
			} `json:"entry"`
		}
		if err := json.Unmarshal(data, &bundle); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
		if bundle.ResourceType != "Bundle" {
			return nil, fmt.Errorf("%s: not a Bundle", filepath.Base(path))
		}
		for _, entry := range bundle.Entry {
			res := entry.Resource
			if res["resourceType"] != "Patient" {
				continue
			}
			s := summary{}
			s.ID, _ = res["id"].(string)
			if g, ok := res["gender"].(string); ok {
				s.Gender = "F"
				if g == "male" {
					s.Gender = "M"
				}
			}
			if bd, ok := res["birthDate"].(string); ok {
				if t, err := time.Parse("2006-01-02", bd); err == nil {
					s.Birth = t
				}
			}
			if dd, ok := res["deceasedDateTime"].(string); ok {
				if t, err := time.Parse(time.RFC3339, dd); err == nil {
					s.Death = &t
				}
			}
			patients = append(patients, s)
		}
	}
	return patients, nil
}

func loadCSV(dir string) ([]summary, error) {
	f, err := os.Open(filepath.Join(dir, "patients.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse patients.csv: %w", err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("patients.csv is empty")
	}

	col := map[string]int{}
	for i, name := range rows[0] {
		col[name] = i
	}
	for _, need := range []string{"id", "gender", "race", "birth_date", "death_date"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("patients.csv missing column %q", need)
		}
	}

	var patients []summary
	for _, row := range rows[1:] {
		s := summary{
			ID:     row[col["id"]],
			Gender: row[col["gender"]],
			Race:   row[col["race"]],
		}
		if t, err := time.Parse("2006-01-02", row[col["birth_date"]]); err == nil {
			s.Birth = t
		}
		if raw := row[col["death_date"]]; raw != "" {
			if t, err := time.Parse("2006-01-02", raw); err == nil {
				s.Death = &t
			}
		}
		patients = append(patients, s)
	}
	return patients, nil
}

func checkDemographics(report *Report, patients []summary) {
	if len(patients) == 0 {
		report.add("demographics", "population", false, "no patients to validate")
		return
	}

	now := time.Now().UTC()
	minAge, maxAge := 1000.0, -1.0
	males := 0
	deceased := 0
	races := map[string]int{}
	for _, p := range patients {
		end := now
		if p.Death != nil {
			end = *p.Death
			deceased++
		}
		age := end.Sub(p.Birth).Hours() / 24 / 365.25
		if age < minAge {
			minAge = age
		}
		if age > maxAge {
			maxAge = age
		}
		if p.Gender == "M" {
			males++
		}
		races[p.Race]++
	}

	report.add("demographics", "age_range",
		minAge >= 0 && maxAge <= 120,
		"ages span %.1f to %.1f", minAge, maxAge)

	malePct := float64(males) / float64(len(patients)) * 100
	// Small populations swing wide; only judge the split when there is a
	// sample worth judging.
	genderOK := len(patients) < 30 || (malePct >= 35 && malePct <= 65)
	report.add("demographics", "gender_distribution", genderOK,
		"M=%.1f%% F=%.1f%%", malePct, 100-malePct)

	report.add("demographics", "race_distribution", true, "%d distinct races", len(races))

	deathPct := float64(deceased) / float64(len(patients)) * 100
	report.add("demographics", "mortality_rate", deathPct <= 50,
		"%.1f%% deceased", deathPct)
}

func checkIdentity(report *Report, patients []summary) {
	seen := map[string]bool{}
	duplicates := 0
	missing := 0
	deathBeforeBirth := 0
	for _, p := range patients {
		if p.ID == "" {
			missing++
			continue
		}
		if seen[p.ID] {
			duplicates++
		}
		seen[p.ID] = true
		if p.Death != nil && p.Death.Before(p.Birth) {
			deathBeforeBirth++
		}
	}
	report.add("consistency", "unique_ids", duplicates == 0 && missing == 0,
		"%d duplicate, %d missing IDs", duplicates, missing)
	report.add("consistency", "death_after_birth", deathBeforeBirth == 0,
		"%d patients die before birth", deathBeforeBirth)
}

// checkLifetimes verifies that every clinical entry falls inside the
// patient's lifetime. Only possible on the full JSON export.
func checkLifetimes(report *Report, patients []record.Patient) {
	outside := 0
	posthumous := 0
	for i := range patients {
		p := &patients[i]
		end := time.Now().UTC()
		if p.DeathDate != nil {
			end = *p.DeathDate
		}
		inLifetime := func(t time.Time) {
			if t.Before(p.BirthDate) {
				outside++
			}
			if p.DeathDate != nil && t.After(end) {
				posthumous++
			}
		}
		for _, c := range p.Conditions {
			inLifetime(c.Onset)
		}
		for _, e := range p.Encounters {
			inLifetime(e.Start)
		}
		for _, m := range p.Medications {
			inLifetime(m.Start)
		}
		for _, pr := range p.Procedures {
			inLifetime(pr.Performed)
		}
		for _, o := range p.Observations {
			inLifetime(o.Effective)
		}
	}
	report.add("consistency", "entries_in_lifetime", outside == 0,
		"%d entries before birth", outside)
	report.add("consistency", "no_posthumous_entries", posthumous == 0,
		"%d entries after death", posthumous)
}
