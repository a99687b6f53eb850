// Package agent holds the model-backed helpers of a consultation that are
// not conversation replies themselves.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"hearing-intake/internal/consultation"
	"hearing-intake/internal/llm"
	"hearing-intake/internal/platform/metrics"
)

const extractionTemperature = 0.1

// FactExtractor reads recent dialogue and asks the model for the patient
// facts it mentions. It never fails a turn: every problem is logged and
// reported as ok=false.
type FactExtractor struct {
	gen     llm.TextGenerator
	metrics *metrics.Collector
	log     *zap.Logger
}

func NewFactExtractor(gen llm.TextGenerator, m *metrics.Collector, log *zap.Logger) *FactExtractor {
	return &FactExtractor{gen: gen, metrics: m, log: log}
}

func (e *FactExtractor) Extract(ctx context.Context, window []consultation.DialogueEntry) (*consultation.Patch, bool) {
	if len(window) == 0 {
		return nil, false
	}

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: extractorSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(extractionPrompt, renderWindow(window))},
	}

	start := time.Now()
	reply, err := e.gen.Generate(ctx, msgs, llm.Options{Temperature: extractionTemperature})
	e.metrics.GenerationDuration.WithLabelValues("extraction").Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.ExtractionFailures.WithLabelValues("generation").Inc()
		e.log.Warn("fact extraction call failed", zap.Error(err))
		return nil, false
	}

	patch, ok := parsePatch(reply)
	if !ok {
		e.metrics.ExtractionFailures.WithLabelValues("parse").Inc()
		e.log.Warn("fact extraction reply was not a JSON object", zap.Int("reply_len", len(reply)))
		return nil, false
	}
	if len(patch.Anomalies) > 0 {
		e.log.Debug("dropped malformed extraction fields", zap.Strings("fields", patch.Anomalies))
	}
	return patch, true
}

func renderWindow(window []consultation.DialogueEntry) string {
	lines := make([]string, 0, len(window))
	for _, entry := range window {
		lines = append(lines, fmt.Sprintf("%s: %s", entry.Speaker, entry.Text))
	}
	return strings.Join(lines, "\n")
}
