package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/domlytics/synthmed/internal/record"
)

const csvDate = "2006-01-02"

// csvExporter writes one CSV file per entry type, flat relational style.
type csvExporter struct {
	dir string
}

func (e *csvExporter) Format() string { return "csv" }

func (e *csvExporter) Export(patients []*record.Patient) error {
	if err := ensureDir(e.dir); err != nil {
		return err
	}
	writers := []struct {
		name string
		fn   func([]*record.Patient) ([][]string, error)
	}{
		{"patients.csv", patientRows},
		{"conditions.csv", conditionRows},
		{"encounters.csv", encounterRows},
		{"medications.csv", medicationRows},
		{"procedures.csv", procedureRows},
		{"observations.csv", observationRows},
	}
	for _, w := range writers {
		rows, err := w.fn(patients)
		if err != nil {
			return err
		}
		if err := e.writeFile(w.name, rows); err != nil {
			return err
		}
	}
	return nil
}

func (e *csvExporter) writeFile(name string, rows [][]string) error {
	f, err := os.Create(filepath.Join(e.dir, name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func patientRows(patients []*record.Patient) ([][]string, error) {
	rows := [][]string{{
		"id", "first_name", "last_name", "gender", "race", "ethnicity",
		"birth_date", "death_date", "address", "city", "state", "zip_code", "income",
	}}
	for _, p := range patients {
		death := ""
		if p.DeathDate != nil {
			death = p.DeathDate.Format(csvDate)
		}
		rows = append(rows, []string{
			p.ID, p.FirstName, p.LastName, p.Gender, p.Race, p.Ethnicity,
			p.BirthDate.Format(csvDate), death,
			p.Address, p.City, p.State, p.ZipCode, strconv.Itoa(p.Income),
		})
	}
	return rows, nil
}

func conditionRows(patients []*record.Patient) ([][]string, error) {
	rows := [][]string{{"id", "patient_id", "code", "display", "system", "onset", "ended"}}
	for _, p := range patients {
		for _, c := range p.Conditions {
			ended := ""
			if c.Ended != nil {
				ended = c.Ended.Format(csvDate)
			}
			rows = append(rows, []string{
				c.ID, p.ID, c.Code, c.Display, c.System, c.Onset.Format(csvDate), ended,
			})
		}
	}
	return rows, nil
}

func encounterRows(patients []*record.Patient) ([][]string, error) {
	rows := [][]string{{"id", "patient_id", "class", "code", "display", "start", "end", "provider_id", "reason"}}
	for _, p := range patients {
		for _, e := range p.Encounters {
			rows = append(rows, []string{
				e.ID, p.ID, e.Class, e.Code, e.Display,
				e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339),
				e.ProviderID, e.Reason,
			})
		}
	}
	return rows, nil
}

func medicationRows(patients []*record.Patient) ([][]string, error) {
	rows := [][]string{{"id", "patient_id", "code", "display", "dosage", "start", "stop"}}
	for _, p := range patients {
		for _, m := range p.Medications {
			stop := ""
			if m.Stop != nil {
				stop = m.Stop.Format(csvDate)
			}
			rows = append(rows, []string{
				m.ID, p.ID, m.Code, m.Display, m.Dosage, m.Start.Format(csvDate), stop,
			})
		}
	}
	return rows, nil
}

func procedureRows(patients []*record.Patient) ([][]string, error) {
	rows := [][]string{{"id", "patient_id", "code", "display", "performed"}}
	for _, p := range patients {
		for _, pr := range p.Procedures {
			rows = append(rows, []string{
				pr.ID, p.ID, pr.Code, pr.Display, pr.Performed.Format(csvDate),
			})
		}
	}
	return rows, nil
}

func observationRows(patients []*record.Patient) ([][]string, error) {
	rows := [][]string{{"id", "patient_id", "code", "display", "value", "unit", "effective"}}
	for _, p := range patients {
		for _, o := range p.Observations {
			rows = append(rows, []string{
				o.ID, p.ID, o.Code, o.Display,
				strconv.FormatFloat(o.Value, 'f', 2, 64), o.Unit,
				o.Effective.Format(csvDate),
			})
		}
	}
	return rows, nil
}
