// Package export writes finished patient records to disk in one of the
// supported formats.
package export

import (
	"fmt"
	"os"

	"github.com/domlytics/synthmed/internal/config"
	"github.com/domlytics/synthmed/internal/record"
)

// Exporter writes a population to an output directory.
type Exporter interface {
	Export(patients []*record.Patient) error
	Format() string
}

// New returns the exporter for a format name.
func New(format, dir string) (Exporter, error) {
	switch format {
	case config.FormatFHIR:
		return &fhirExporter{dir: dir}, nil
	case config.FormatJSON:
		return &jsonExporter{dir: dir}, nil
	case config.FormatCSV:
		return &csvExporter{dir: dir}, nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}
