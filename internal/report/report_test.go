package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"hearing-intake/internal/consultation"
	"hearing-intake/internal/retrieval"
)

type fakeGrounder struct {
	calls  []string
	answer string
	pages  []retrieval.Page
	err    error
}

func (g *fakeGrounder) AnalyzeSymptoms(_ context.Context, summary string) (*retrieval.Answer, error) {
	g.calls = append(g.calls, summary)
	if g.err != nil {
		return nil, g.err
	}
	return &retrieval.Answer{Query: summary, Answer: g.answer, Context: g.pages}, nil
}

type fakeTelegram struct {
	messages  []string
	documents [][]byte
	names     []string
}

func (f *fakeTelegram) SendMessage(_ context.Context, _ int64, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeTelegram) SendDocument(_ context.Context, _ int64, data []byte, fileName, _ string) error {
	f.documents = append(f.documents, data)
	f.names = append(f.names, fileName)
	return nil
}

func str(s string) *string { return &s }

func eligibleRecord() *consultation.PatientRecord {
	rec := consultation.NewPatientRecord(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	rec.BasicInfo.Age = str("45")
	rec.ChiefComplaint = str("hearing loss in the left ear")
	rec.Symptoms = []string{"hearing loss", "tinnitus"}
	rec.SymptomDetails.Onset = str("3 days ago")
	return rec
}

func TestBuild_IneligibleRecord(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*consultation.PatientRecord)
	}{
		{name: "no chief complaint", mutate: func(r *consultation.PatientRecord) { r.ChiefComplaint = nil }},
		{name: "one symptom", mutate: func(r *consultation.PatientRecord) { r.Symptoms = r.Symptoms[:1] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGrounder{answer: "x"}
			rec := eligibleRecord()
			tt.mutate(rec)

			_, err := NewBuilder(g, zap.NewNop()).Build(context.Background(), rec)
			if !errors.Is(err, consultation.ErrReportIneligible) {
				t.Fatalf("err = %v, want ErrReportIneligible", err)
			}
			if len(g.calls) != 0 {
				t.Fatalf("grounder called %d times for an ineligible record", len(g.calls))
			}
		})
	}
}

func TestBuild_GroundsOnSymptomSummary(t *testing.T) {
	g := &fakeGrounder{answer: "Consider sudden sensorineural hearing loss.", pages: []retrieval.Page{{Number: 12, Text: "SSNHL"}}}
	rec := eligibleRecord()

	r, err := NewBuilder(g, zap.NewNop()).Build(context.Background(), rec)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(g.calls) != 1 || g.calls[0] != rec.SymptomSummary() {
		t.Fatalf("grounder calls = %q", g.calls)
	}
	if !strings.Contains(r.Summary, "- Symptoms: hearing loss, tinnitus") {
		t.Fatalf("summary = %q", r.Summary)
	}
	if r.Answer != g.answer || len(r.Context) != 1 || r.PatientID != rec.ID {
		t.Fatalf("unexpected report %+v", r)
	}
	if !strings.Contains(r.Chart, "PATIENT CHART") {
		t.Fatalf("chart card missing from report")
	}
}

func TestBuild_GroundingError(t *testing.T) {
	g := &fakeGrounder{err: retrieval.ErrCorpusNotLoaded}
	_, err := NewBuilder(g, zap.NewNop()).Build(context.Background(), eligibleRecord())
	if !errors.Is(err, retrieval.ErrCorpusNotLoaded) {
		t.Fatalf("err = %v, want wrapped ErrCorpusNotLoaded", err)
	}
}

func TestDeliver_SendsPDFOrFallsBackToText(t *testing.T) {
	rec := eligibleRecord()
	r, err := NewBuilder(&fakeGrounder{answer: "analysis"}, zap.NewNop()).Build(context.Background(), rec)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	tg := &fakeTelegram{}
	if err := NewTelegramDeliverer(tg, 1, "", zap.NewNop()).Deliver(context.Background(), rec, r); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	switch {
	case len(tg.documents) == 1:
		if !bytes.HasPrefix(tg.documents[0], []byte("%PDF")) {
			t.Fatalf("document is not a PDF")
		}
		if tg.names[0] != "report_"+rec.ID.String()+".pdf" {
			t.Fatalf("file name = %q", tg.names[0])
		}
	case len(tg.messages) == 1:
		if !strings.Contains(tg.messages[0], "analysis") {
			t.Fatalf("text fallback lacks the analysis: %q", tg.messages[0])
		}
	default:
		t.Fatalf("expected exactly one delivery, got %d documents and %d messages", len(tg.documents), len(tg.messages))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("truncate = %q", got)
	}
}
