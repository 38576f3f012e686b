package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/domlytics/synthmed/internal/record"
)

// jsonExporter writes the whole population to patients.json plus one
// per-patient file under patients/.
type jsonExporter struct {
	dir string
}

func (e *jsonExporter) Format() string { return "json" }

func (e *jsonExporter) Export(patients []*record.Patient) error {
	if err := ensureDir(e.dir); err != nil {
		return err
	}

	data, err := json.MarshalIndent(patients, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal population: %w", err)
	}
	if err := os.WriteFile(filepath.Join(e.dir, "patients.json"), data, 0o644); err != nil {
		return fmt.Errorf("write patients.json: %w", err)
	}

	patientDir := filepath.Join(e.dir, "patients")
	if err := ensureDir(patientDir); err != nil {
		return err
	}
	for _, p := range patients {
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal patient %s: %w", p.ID, err)
		}
		path := filepath.Join(patientDir, p.ID+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write patient %s: %w", p.ID, err)
		}
	}
	return nil
}
