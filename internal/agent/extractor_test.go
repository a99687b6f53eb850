package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"hearing-intake/internal/consultation"
	"hearing-intake/internal/llm"
	"hearing-intake/internal/platform/metrics"
)

type stubGenerator struct {
	reply string
	err   error
	got   []llm.Message
	opts  llm.Options
}

func (g *stubGenerator) Generate(_ context.Context, msgs []llm.Message, opts llm.Options) (string, error) {
	g.got = msgs
	g.opts = opts
	return g.reply, g.err
}

func newExtractor(gen llm.TextGenerator) (*FactExtractor, *metrics.Collector) {
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	return NewFactExtractor(gen, m, zap.NewNop()), m
}

func window(texts ...string) []consultation.DialogueEntry {
	out := make([]consultation.DialogueEntry, 0, len(texts))
	for i, t := range texts {
		sp := consultation.SpeakerPatient
		if i%2 == 1 {
			sp = consultation.SpeakerClinician
		}
		out = append(out, consultation.DialogueEntry{Speaker: sp, Text: t, Timestamp: time.Now()})
	}
	return out
}

func TestParsePatch_FencedReply(t *testing.T) {
	reply := "```json\n{\"name\": \"Kim\", \"age\": 45, \"symptoms\": [\"hearing loss\", \"tinnitus\"]}\n```"

	p, ok := parsePatch(reply)
	if !ok {
		t.Fatalf("expected fenced reply to parse")
	}
	if p.Name == nil || *p.Name != "Kim" {
		t.Fatalf("name = %v, want Kim", p.Name)
	}
	if p.Age == nil || *p.Age != "45" {
		t.Fatalf("age = %v, want \"45\"", p.Age)
	}
	if len(p.Symptoms) != 2 || p.Symptoms[1] != "tinnitus" {
		t.Fatalf("symptoms = %v", p.Symptoms)
	}
	if len(p.Anomalies) != 0 {
		t.Fatalf("unexpected anomalies %v", p.Anomalies)
	}
}

func TestParsePatch_ProseAroundObject(t *testing.T) {
	reply := `Here is the data: {"chief_complaint": "can't hear on the left", "gender": null} hope it helps`

	p, ok := parsePatch(reply)
	if !ok {
		t.Fatalf("expected object inside prose to parse")
	}
	if p.ChiefComplaint == nil || *p.ChiefComplaint != "can't hear on the left" {
		t.Fatalf("chief complaint = %v", p.ChiefComplaint)
	}
	if p.Gender != nil {
		t.Fatalf("null gender should stay absent, got %q", *p.Gender)
	}
}

func TestParsePatch_WrongShapesAreSkipped(t *testing.T) {
	reply := `{"symptoms": "dizziness", "onset": ["yesterday"], "medical_history": ["diabetes", 3], "severity": "mild"}`

	p, ok := parsePatch(reply)
	if !ok {
		t.Fatalf("expected partial parse")
	}
	if p.Symptoms != nil {
		t.Fatalf("string symptoms should be dropped, got %v", p.Symptoms)
	}
	if p.Onset != nil {
		t.Fatalf("array onset should be dropped")
	}
	if len(p.MedicalHistory) != 1 || p.MedicalHistory[0] != "diabetes" {
		t.Fatalf("medical history = %v", p.MedicalHistory)
	}
	if p.Severity == nil || *p.Severity != "mild" {
		t.Fatalf("severity = %v", p.Severity)
	}
	if got := strings.Join(p.Anomalies, ","); got != "onset,symptoms,medical_history" {
		t.Fatalf("anomalies = %q", got)
	}
}

func TestParsePatch_IgnoresReservedChartFields(t *testing.T) {
	reply := `{
		"chief_complaint": "hearing loss",
		"medications": ["aspirin"],
		"family_history": ["deafness"],
		"occupation": "welder",
		"noise_exposure": "daily",
		"suspected_diagnosis": ["SSNHL"],
		"differential_diagnosis": ["Meniere's disease"]
	}`

	p, ok := parsePatch(reply)
	if !ok {
		t.Fatalf("expected reply to parse")
	}
	rec := consultation.NewPatientRecord(time.Now())
	consultation.ApplyPatch(rec, p)

	if rec.ChiefComplaint == nil || *rec.ChiefComplaint != "hearing loss" {
		t.Fatalf("chief complaint = %v", rec.ChiefComplaint)
	}
	if len(rec.Medications) != 0 || len(rec.FamilyHistory) != 0 ||
		len(rec.SuspectedDiagnosis) != 0 || len(rec.DifferentialDiagnosis) != 0 {
		t.Fatalf("reserved lists populated: meds=%v family=%v suspected=%v differential=%v",
			rec.Medications, rec.FamilyHistory, rec.SuspectedDiagnosis, rec.DifferentialDiagnosis)
	}
	if rec.Lifestyle.Occupation != nil || rec.Lifestyle.NoiseExposure != nil {
		t.Fatalf("lifestyle populated: %+v", rec.Lifestyle)
	}
}

func TestExtract_PromptAsksOnlyForIntakeFields(t *testing.T) {
	gen := &stubGenerator{reply: `{}`}
	e, _ := newExtractor(gen)
	e.Extract(context.Background(), window("hello"))

	prompt := gen.got[1].Content
	for _, key := range []string{"medications", "family_history", "occupation", "noise_exposure", "suspected_diagnosis"} {
		if strings.Contains(prompt, key) {
			t.Fatalf("extraction prompt asks for %q", key)
		}
	}
}

func TestParsePatch_NotJSON(t *testing.T) {
	for _, reply := range []string{"", "I could not find anything.", "{broken", "[\"a\"]"} {
		if _, ok := parsePatch(reply); ok {
			t.Fatalf("parsePatch(%q) ok = true, want false", reply)
		}
	}
}

func TestExtract_SendsWindowAtLowTemperature(t *testing.T) {
	gen := &stubGenerator{reply: `{"name": "Kim"}`}
	e, _ := newExtractor(gen)

	p, ok := e.Extract(context.Background(), window("I'm Kim", "Nice to meet you"))
	if !ok || p.Name == nil || *p.Name != "Kim" {
		t.Fatalf("Extract = %+v, %v", p, ok)
	}
	if gen.opts.Temperature != extractionTemperature {
		t.Fatalf("temperature = %v, want %v", gen.opts.Temperature, extractionTemperature)
	}
	prompt := gen.got[1].Content
	if !strings.Contains(prompt, "patient: I'm Kim\nclinician: Nice to meet you") {
		t.Fatalf("prompt does not carry the dialogue window:\n%s", prompt)
	}
}

func TestExtract_FailuresAreSwallowed(t *testing.T) {
	tests := []struct {
		name   string
		gen    *stubGenerator
		reason string
	}{
		{name: "generation error", gen: &stubGenerator{err: errors.New("quota")}, reason: "generation"},
		{name: "unparseable reply", gen: &stubGenerator{reply: "sorry"}, reason: "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, m := newExtractor(tt.gen)
			p, ok := e.Extract(context.Background(), window("hello"))
			if ok || p != nil {
				t.Fatalf("Extract = %+v, %v; want nil, false", p, ok)
			}
			if got := testutil.ToFloat64(m.ExtractionFailures.WithLabelValues(tt.reason)); got != 1 {
				t.Fatalf("failures{%s} = %v, want 1", tt.reason, got)
			}
		})
	}
}

func TestExtract_EmptyWindow(t *testing.T) {
	gen := &stubGenerator{reply: `{"name": "Kim"}`}
	e, _ := newExtractor(gen)
	if _, ok := e.Extract(context.Background(), nil); ok {
		t.Fatalf("empty window should not extract")
	}
	if gen.got != nil {
		t.Fatalf("generator should not be called for an empty window")
	}
}
