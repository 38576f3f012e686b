package validation

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domlytics/synthmed/internal/export"
	"github.com/domlytics/synthmed/internal/record"
)

func population() []*record.Patient {
	base := time.Date(1985, 4, 10, 0, 0, 0, 0, time.UTC)
	death := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return []*record.Patient{
		{
			ID: "p1", FirstName: "Ana", LastName: "Lopez",
			Gender: record.GenderFemale, Race: record.RaceHispanic, Ethnicity: "hispanic",
			BirthDate: base, Alive: true,
			Conditions: []record.Condition{
				{ID: "c1", Code: "44054006", Display: "Type 2 diabetes", System: "http://snomed.info/sct", Onset: base.AddDate(30, 0, 0)},
			},
		},
		{
			ID: "p2", FirstName: "Tom", LastName: "Baker",
			Gender: record.GenderMale, Race: record.RaceWhite, Ethnicity: "non-hispanic",
			BirthDate: base.AddDate(-20, 0, 0), DeathDate: &death,
		},
	}
}

func exportAs(t *testing.T, format string) string {
	t.Helper()
	dir := t.TempDir()
	exp, err := export.New(format, dir)
	require.NoError(t, err)
	require.NoError(t, exp.Export(population()))
	return dir
}

func TestValidateJSONOutput(t *testing.T) {
	report, err := Validate(exportAs(t, "json"))
	require.NoError(t, err)
	assert.Equal(t, "json", report.Format)
	assert.True(t, report.Passed(), "report: %+v", report.Checks)
}

func TestValidateFHIROutput(t *testing.T) {
	report, err := Validate(exportAs(t, "fhir"))
	require.NoError(t, err)
	assert.Equal(t, "fhir", report.Format)
	assert.True(t, report.Passed(), "report: %+v", report.Checks)
}

func TestValidateCSVOutput(t *testing.T) {
	report, err := Validate(exportAs(t, "csv"))
	require.NoError(t, err)
	assert.Equal(t, "csv", report.Format)
	assert.True(t, report.Passed(), "report: %+v", report.Checks)
}

func TestValidateEmptyDir(t *testing.T) {
	_, err := Validate(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no exported data")
}

func TestReportWrite(t *testing.T) {
	report, err := Validate(exportAs(t, "json"))
	require.NoError(t, err)

	var buf bytes.Buffer
	report.Write(&buf)
	out := buf.String()
	assert.Contains(t, out, "[PASS]")
	assert.Contains(t, out, "demographics/age_range")
	assert.False(t, strings.Contains(out, "[FAIL]"), out)
}

func TestChecksCatchBrokenData(t *testing.T) {
	early := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	broken := []summary{
		{ID: "dup", Gender: "M", Race: "white", Birth: time.Now().UTC(), Death: &early},
		{ID: "dup", Gender: "M", Race: "white", Birth: time.Now().UTC()},
	}
	report := &Report{}
	checkIdentity(report, broken)

	failed := 0
	for _, c := range report.Checks {
		if !c.Passed {
			failed++
		}
	}
	assert.Equal(t, 2, failed, "expected duplicate ID and death-before-birth failures")
}
