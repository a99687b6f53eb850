package consultation

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestRenderChart(t *testing.T) {
	rec := NewPatientRecord(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	rec.BasicInfo.Name = str("Kim")
	rec.ChiefComplaint = str("sudden hearing loss in the left ear that started three days ago after a cold")
	rec.Symptoms = []string{"hearing loss", "tinnitus"}

	card := RenderChart(rec, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC))

	for _, want := range []string{"PATIENT CHART", rec.ID.String(), "2026-03-01 10:30", "Kim", "* tinnitus", "that started three ", "|   days ago after a cold"} {
		if !strings.Contains(card, want) {
			t.Fatalf("card missing %q:\n%s", want, card)
		}
	}
	if strings.Contains(card, "Suspected diagnoses") {
		t.Fatalf("empty diagnoses section should be omitted")
	}
	for _, line := range strings.Split(strings.TrimSuffix(card, "\n"), "\n") {
		if n := utf8.RuneCountInString(line); n != chartWidth {
			t.Fatalf("line width %d, want %d: %q", n, chartWidth, line)
		}
	}
}

func TestRenderChart_Diagnoses(t *testing.T) {
	rec := NewPatientRecord(time.Now())
	rec.SuspectedDiagnosis = []string{"SSNHL"}
	rec.DifferentialDiagnosis = []string{"Meniere's disease"}

	card := RenderChart(rec, time.Now())
	if !strings.Contains(card, "* SSNHL") || !strings.Contains(card, "Differential: Meniere's disease") {
		t.Fatalf("diagnoses not rendered:\n%s", card)
	}
}

func TestExportChart(t *testing.T) {
	rec := NewPatientRecord(time.Now())
	rec.BasicInfo.Age = str("45")

	data, err := ExportChart(rec)
	if err != nil {
		t.Fatalf("ExportChart error: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if doc["patient_id"] != rec.ID.String() {
		t.Fatalf("patient_id = %v", doc["patient_id"])
	}
	basic, _ := doc["basic_info"].(map[string]any)
	if basic["age"] != "45" || basic["name"] != nil {
		t.Fatalf("basic_info = %v", basic)
	}
}
