// Package report turns a patient record into a grounded diagnostic report
// and delivers it to the clinician.
package report

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"hearing-intake/internal/consultation"
	"hearing-intake/internal/retrieval"
)

var tracer = otel.Tracer("hearing-intake/report")

type Grounder interface {
	AnalyzeSymptoms(ctx context.Context, summary string) (*retrieval.Answer, error)
}

// Builder produces reports from records. It refuses records that do not
// meet consultation.ReportEligible.
type Builder struct {
	grounder Grounder
	log      *zap.Logger
	now      func() time.Time
}

func NewBuilder(g Grounder, log *zap.Logger) *Builder {
	return &Builder{grounder: g, log: log, now: time.Now}
}

func (b *Builder) Build(ctx context.Context, rec *consultation.PatientRecord) (*consultation.Report, error) {
	if !consultation.ReportEligible(rec) {
		return nil, consultation.ErrReportIneligible
	}

	ctx, span := tracer.Start(ctx, "report.Build")
	defer span.End()
	span.SetAttributes(
		attribute.String("patient.id", rec.ID.String()),
		attribute.Int("patient.symptoms", len(rec.Symptoms)),
	)

	summary := rec.SymptomSummary()
	ans, err := b.grounder.AnalyzeSymptoms(ctx, summary)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("analyze symptoms: %w", err)
	}

	now := b.now()
	b.log.Info("diagnostic report built",
		zap.String("patient_id", rec.ID.String()),
		zap.Int("reference_pages", len(ans.Context)),
	)
	return &consultation.Report{
		PatientID:   rec.ID,
		Summary:     summary,
		Answer:      ans.Answer,
		Context:     ans.Context,
		Chart:       consultation.RenderChart(rec, now),
		GeneratedAt: now,
	}, nil
}
