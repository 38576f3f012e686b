package imaging

import (
	"os"
	"testing"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/domlytics/synthmed/internal/record"
)

func testStudy() (*record.Patient, record.ImagingStudy) {
	p := &record.Patient{
		ID:        "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		FirstName: "John",
		LastName:  "Doe",
		Gender:    record.GenderMale,
		BirthDate: time.Date(1970, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	study := record.ImagingStudy{
		ID:       "study-001",
		Modality: "CT",
		BodyPart: "CHEST",
		Display:  "CT of chest",
		Started:  time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	return p, study
}

func TestWriteStudyProducesReadableDICOM(t *testing.T) {
	dir := t.TempDir()
	p, study := testStudy()

	path, err := NewWriter(dir).WriteStudy(p, study)
	if err != nil {
		t.Fatalf("write study: %v", err)
	}

	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		t.Fatalf("parse written file: %v", err)
	}

	checks := map[tag.Tag]string{
		tag.PatientID:        p.ID,
		tag.PatientName:      "Doe^John",
		tag.Modality:         "CT",
		tag.BodyPartExamined: "CHEST",
		tag.StudyDate:        "20200701",
		tag.SOPClassUID:      "1.2.840.10008.5.1.4.1.1.2",
	}
	for tg, want := range checks {
		elem, err := ds.FindElementByTag(tg)
		if err != nil {
			t.Fatalf("missing tag %v: %v", tg, err)
		}
		got := elem.Value.GetValue().([]string)
		if len(got) != 1 || got[0] != want {
			t.Errorf("tag %v = %v, want %q", tg, got, want)
		}
	}
	t.Logf("✓ DICOM instance round-trips with expected metadata")
}

func TestWriteStudyDeterministic(t *testing.T) {
	p, study := testStudy()

	pathA, err := NewWriter(t.TempDir()).WriteStudy(p, study)
	if err != nil {
		t.Fatal(err)
	}
	pathB, err := NewWriter(t.TempDir()).WriteStudy(p, study)
	if err != nil {
		t.Fatal(err)
	}

	a, err := os.ReadFile(pathA)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(pathB)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatal("same study produced different bytes")
	}
}

func TestSOPClassFallback(t *testing.T) {
	if got := sopClassFor("XX"); got != "1.2.840.10008.5.1.4.1.1.7" {
		t.Fatalf("unknown modality mapped to %s", got)
	}
}
