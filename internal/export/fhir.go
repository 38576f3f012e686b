package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/domlytics/synthmed/internal/record"
)

const (
	usCorePatientProfile = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-patient"
	usCoreRaceExt        = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-race"
	usCoreEthnicityExt   = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-ethnicity"
	ombSystem            = "urn:oid:2.16.840.1.113883.6.238"
	identifierSystem     = "https://github.com/domlytics/synthmed"
	loincSystem          = "http://loinc.org"
)

// fhirExporter writes one FHIR R4 collection Bundle per patient, holding
// the Patient resource plus every clinical resource from the record.
type fhirExporter struct {
	dir string
}

func (e *fhirExporter) Format() string { return "fhir" }

func (e *fhirExporter) Export(patients []*record.Patient) error {
	if err := ensureDir(e.dir); err != nil {
		return err
	}
	for _, p := range patients {
		bundle := patientBundle(p)
		data, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal bundle for %s: %w", p.ID, err)
		}
		path := filepath.Join(e.dir, p.ID+".fhir.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write bundle for %s: %w", p.ID, err)
		}
	}
	return nil
}

type fhirResource = map[string]any

func patientBundle(p *record.Patient) fhirResource {
	entries := []fhirResource{entry(p.ID, patientResource(p))}
	ref := fhirResource{"reference": "urn:uuid:" + p.ID}

	for _, c := range p.Conditions {
		entries = append(entries, entry(c.ID, conditionResource(c, ref)))
	}
	for _, enc := range p.Encounters {
		entries = append(entries, entry(enc.ID, encounterResource(enc, ref)))
	}
	for _, m := range p.Medications {
		entries = append(entries, entry(m.ID, medicationResource(m, ref)))
	}
	for _, pr := range p.Procedures {
		entries = append(entries, entry(pr.ID, procedureResource(pr, ref)))
	}
	for _, o := range p.Observations {
		entries = append(entries, entry(o.ID, observationResource(o, ref)))
	}
	for _, s := range p.ImagingStudies {
		entries = append(entries, entry(s.ID, imagingStudyResource(s, ref)))
	}

	return fhirResource{
		"resourceType": "Bundle",
		"id":           "bundle-" + p.ID,
		"type":         "collection",
		"entry":        entries,
	}
}

func entry(id string, resource fhirResource) fhirResource {
	return fhirResource{
		"fullUrl":  "urn:uuid:" + id,
		"resource": resource,
	}
}

func patientResource(p *record.Patient) fhirResource {
	gender := "female"
	if p.Gender == record.GenderMale {
		gender = "male"
	}
	res := fhirResource{
		"resourceType": "Patient",
		"id":           p.ID,
		"meta": fhirResource{
			"profile": []string{usCorePatientProfile},
		},
		"identifier": []fhirResource{
			{"system": identifierSystem, "value": p.ID},
		},
		"name": []fhirResource{
			{"family": p.LastName, "given": []string{p.FirstName}},
		},
		"gender":          gender,
		"birthDate":       p.BirthDate.Format("2006-01-02"),
		"deceasedBoolean": p.DeathDate != nil,
	}
	if p.DeathDate != nil {
		res["deceasedDateTime"] = p.DeathDate.Format(time.RFC3339)
	}
	if p.Address != "" {
		res["address"] = []fhirResource{{
			"line":       []string{p.Address},
			"city":       p.City,
			"state":      p.State,
			"postalCode": p.ZipCode,
		}}
	}

	var extensions []fhirResource
	if p.Race != "" {
		extensions = append(extensions, ombExtension(usCoreRaceExt, p.Race))
	}
	if p.Ethnicity != "" {
		extensions = append(extensions, ombExtension(usCoreEthnicityExt, p.Ethnicity))
	}
	if len(extensions) > 0 {
		res["extension"] = extensions
	}
	return res
}

func ombExtension(url, code string) fhirResource {
	return fhirResource{
		"url": url,
		"extension": []fhirResource{
			{
				"url": "ombCategory",
				"valueCoding": fhirResource{
					"system": ombSystem,
					"code":   code,
				},
			},
			{"url": "text", "valueString": code},
		},
	}
}

func conditionResource(c record.Condition, subject fhirResource) fhirResource {
	status := "active"
	if c.Ended != nil {
		status = "resolved"
	}
	res := fhirResource{
		"resourceType": "Condition",
		"id":           c.ID,
		"clinicalStatus": fhirResource{
			"coding": []fhirResource{{
				"system": "http://terminology.hl7.org/CodeSystem/condition-clinical",
				"code":   status,
			}},
		},
		"code":          codeableConcept(c.System, c.Code, c.Display),
		"subject":       subject,
		"onsetDateTime": c.Onset.Format(time.RFC3339),
	}
	if c.Ended != nil {
		res["abatementDateTime"] = c.Ended.Format(time.RFC3339)
	}
	return res
}

func encounterResource(e record.Encounter, subject fhirResource) fhirResource {
	res := fhirResource{
		"resourceType": "Encounter",
		"id":           e.ID,
		"status":       "finished",
		"class": fhirResource{
			"system": "http://terminology.hl7.org/CodeSystem/v3-ActCode",
			"code":   e.Class,
		},
		"type":    []fhirResource{codeableConcept("http://snomed.info/sct", e.Code, e.Display)},
		"subject": subject,
		"period": fhirResource{
			"start": e.Start.Format(time.RFC3339),
			"end":   e.End.Format(time.RFC3339),
		},
	}
	if e.ProviderID != "" {
		res["participant"] = []fhirResource{{
			"individual": fhirResource{
				"reference": "Practitioner/" + e.ProviderID,
				"display":   e.ProviderName,
			},
		}}
	}
	if e.Reason != "" {
		res["reasonCode"] = []fhirResource{{"text": e.Reason}}
	}
	return res
}

func medicationResource(m record.Medication, subject fhirResource) fhirResource {
	status := "active"
	if m.Stop != nil {
		status = "stopped"
	}
	res := fhirResource{
		"resourceType":              "MedicationRequest",
		"id":                        m.ID,
		"status":                    status,
		"intent":                    "order",
		"medicationCodeableConcept": codeableConcept("http://www.nlm.nih.gov/research/umls/rxnorm", m.Code, m.Display),
		"subject":                   subject,
		"authoredOn":                m.Start.Format(time.RFC3339),
	}
	if m.Dosage != "" {
		res["dosageInstruction"] = []fhirResource{{"text": m.Dosage}}
	}
	return res
}

func procedureResource(p record.Procedure, subject fhirResource) fhirResource {
	return fhirResource{
		"resourceType":      "Procedure",
		"id":                p.ID,
		"status":            "completed",
		"code":              codeableConcept("http://snomed.info/sct", p.Code, p.Display),
		"subject":           subject,
		"performedDateTime": p.Performed.Format(time.RFC3339),
	}
}

func observationResource(o record.Observation, subject fhirResource) fhirResource {
	return fhirResource{
		"resourceType":      "Observation",
		"id":                o.ID,
		"status":            "final",
		"code":              codeableConcept(loincSystem, o.Code, o.Display),
		"subject":           subject,
		"effectiveDateTime": o.Effective.Format(time.RFC3339),
		"valueQuantity": fhirResource{
			"value": o.Value,
			"unit":  o.Unit,
		},
	}
}

func imagingStudyResource(s record.ImagingStudy, subject fhirResource) fhirResource {
	return fhirResource{
		"resourceType": "ImagingStudy",
		"id":           s.ID,
		"status":       "available",
		"subject":      subject,
		"started":      s.Started.Format(time.RFC3339),
		"series": []fhirResource{{
			"uid": s.ID,
			"modality": fhirResource{
				"system": "http://dicom.nema.org/resources/ontology/DCM",
				"code":   s.Modality,
			},
			"bodySite": fhirResource{"display": s.BodyPart},
		}},
	}
}

func codeableConcept(system, code, display string) fhirResource {
	return fhirResource{
		"coding": []fhirResource{{
			"system":  system,
			"code":    code,
			"display": display,
		}},
		"text": display,
	}
}
