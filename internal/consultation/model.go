package consultation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hearing-intake/internal/retrieval"
)

type Speaker string

const (
	SpeakerPatient   Speaker = "patient"
	SpeakerClinician Speaker = "clinician"
)

type DialogueEntry struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type BasicInfo struct {
	Name   *string `json:"name"`
	Age    *string `json:"age"`
	Gender *string `json:"gender"`
}

type SymptomDetails struct {
	Onset        *string `json:"onset"`
	Duration     *string `json:"duration"`
	Severity     *string `json:"severity"`
	AffectedSide *string `json:"affected_side"`
	Progression  *string `json:"progression"`
}

type Lifestyle struct {
	NoiseExposure *string `json:"noise_exposure"`
	Occupation    *string `json:"occupation"`
}

// PatientRecord is the chart built up over one consultation.
//
// List fields are ordered sets: they only grow, and an item is added once.
// Scalar fields are nil until first observed and are never cleared by a
// patch.
type PatientRecord struct {
	ID        uuid.UUID `json:"patient_id"`
	CreatedAt time.Time `json:"created_at"`

	BasicInfo      BasicInfo      `json:"basic_info"`
	ChiefComplaint *string        `json:"chief_complaint"`
	Symptoms       []string       `json:"symptoms"`
	SymptomDetails SymptomDetails `json:"symptom_details"`

	MedicalHistory        []string  `json:"medical_history"`
	FamilyHistory         []string  `json:"family_history"`
	Medications           []string  `json:"medications"`
	AdditionalSymptoms    []string  `json:"additional_symptoms"`
	Lifestyle             Lifestyle `json:"lifestyle"`
	SuspectedDiagnosis    []string  `json:"suspected_diagnosis"`
	DifferentialDiagnosis []string  `json:"differential_diagnosis"`

	DialogueLog []DialogueEntry `json:"dialogue_log"`
}

func NewPatientRecord(now time.Time) *PatientRecord {
	return &PatientRecord{
		ID:                    uuid.New(),
		CreatedAt:             now,
		Symptoms:              []string{},
		MedicalHistory:        []string{},
		FamilyHistory:         []string{},
		Medications:           []string{},
		AdditionalSymptoms:    []string{},
		SuspectedDiagnosis:    []string{},
		DifferentialDiagnosis: []string{},
		DialogueLog:           []DialogueEntry{},
	}
}

// Patch is a sparse set of field updates from one extraction pass. A nil
// scalar or an empty list means nothing was observed for that field.
type Patch struct {
	Name           *string
	Age            *string
	Gender         *string
	ChiefComplaint *string

	Onset        *string
	Duration     *string
	Severity     *string
	AffectedSide *string
	Progression  *string

	NoiseExposure *string
	Occupation    *string

	Symptoms              []string
	AdditionalSymptoms    []string
	MedicalHistory        []string
	FamilyHistory         []string
	Medications           []string
	SuspectedDiagnosis    []string
	DifferentialDiagnosis []string

	// Anomalies names fields dropped while decoding because their shape
	// was wrong.
	Anomalies []string
}

// Report is the grounded diagnostic summary for one record.
type Report struct {
	PatientID   uuid.UUID        `json:"patient_id"`
	Summary     string           `json:"symptom_summary"`
	Answer      string           `json:"answer"`
	Context     []retrieval.Page `json:"context"`
	Chart       string           `json:"chart"`
	GeneratedAt time.Time        `json:"generated_at"`
	Delivered   bool             `json:"delivered"`
}

func (r *PatientRecord) appendDialogue(speaker Speaker, text string, at time.Time) {
	r.DialogueLog = append(r.DialogueLog, DialogueEntry{Speaker: speaker, Text: text, Timestamp: at})
}

// lastDialogue returns up to n trailing dialogue entries.
func (r *PatientRecord) lastDialogue(n int) []DialogueEntry {
	if len(r.DialogueLog) <= n {
		return append([]DialogueEntry(nil), r.DialogueLog...)
	}
	return append([]DialogueEntry(nil), r.DialogueLog[len(r.DialogueLog)-n:]...)
}

// SymptomSummary renders the fields used to ground a diagnosis query.
func (r *PatientRecord) SymptomSummary() string {
	var b strings.Builder
	b.WriteString("Patient information:\n")
	fmt.Fprintf(&b, "- Age: %s\n", valueOr(r.BasicInfo.Age, "N/A"))
	fmt.Fprintf(&b, "- Chief complaint: %s\n", valueOr(r.ChiefComplaint, "N/A"))
	fmt.Fprintf(&b, "- Symptoms: %s\n", strings.Join(r.Symptoms, ", "))
	fmt.Fprintf(&b, "- Onset: %s\n", valueOr(r.SymptomDetails.Onset, "N/A"))
	fmt.Fprintf(&b, "- Affected side: %s\n", valueOr(r.SymptomDetails.AffectedSide, "N/A"))
	fmt.Fprintf(&b, "- Progression: %s\n", valueOr(r.SymptomDetails.Progression, "N/A"))
	fmt.Fprintf(&b, "- Additional symptoms: %s\n", strings.Join(r.AdditionalSymptoms, ", "))
	return b.String()
}

// Clone returns a deep copy safe to hand out while the session keeps
// mutating the original.
func (r *PatientRecord) Clone() *PatientRecord {
	out := *r
	out.BasicInfo = BasicInfo{
		Name:   cloneString(r.BasicInfo.Name),
		Age:    cloneString(r.BasicInfo.Age),
		Gender: cloneString(r.BasicInfo.Gender),
	}
	out.ChiefComplaint = cloneString(r.ChiefComplaint)
	out.SymptomDetails = SymptomDetails{
		Onset:        cloneString(r.SymptomDetails.Onset),
		Duration:     cloneString(r.SymptomDetails.Duration),
		Severity:     cloneString(r.SymptomDetails.Severity),
		AffectedSide: cloneString(r.SymptomDetails.AffectedSide),
		Progression:  cloneString(r.SymptomDetails.Progression),
	}
	out.Lifestyle = Lifestyle{
		NoiseExposure: cloneString(r.Lifestyle.NoiseExposure),
		Occupation:    cloneString(r.Lifestyle.Occupation),
	}
	out.Symptoms = append([]string{}, r.Symptoms...)
	out.MedicalHistory = append([]string{}, r.MedicalHistory...)
	out.FamilyHistory = append([]string{}, r.FamilyHistory...)
	out.Medications = append([]string{}, r.Medications...)
	out.AdditionalSymptoms = append([]string{}, r.AdditionalSymptoms...)
	out.SuspectedDiagnosis = append([]string{}, r.SuspectedDiagnosis...)
	out.DifferentialDiagnosis = append([]string{}, r.DifferentialDiagnosis...)
	out.DialogueLog = append([]DialogueEntry{}, r.DialogueLog...)
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func valueOr(s *string, fallback string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return fallback
	}
	return *s
}
