package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"hearing-intake/internal/llm"
	"hearing-intake/internal/platform/metrics"
	"hearing-intake/internal/retrieval"
)

// extractionWindow is how many trailing dialogue entries the extractor sees.
const extractionWindow = 4

var tracer = otel.Tracer("hearing-intake/consultation")

// Extractor turns recent dialogue into a fact patch. ok is false when
// nothing usable came back; that is never an error for the turn.
type Extractor interface {
	Extract(ctx context.Context, window []DialogueEntry) (patch *Patch, ok bool)
}

// Grounder fetches reference-backed analysis for a symptom summary.
type Grounder interface {
	AnalyzeSymptoms(ctx context.Context, summary string) (*retrieval.Answer, error)
}

type ReportBuilder interface {
	Build(ctx context.Context, rec *PatientRecord) (*Report, error)
}

// ReportDeliverer hands a finished report to the clinician.
type ReportDeliverer interface {
	Deliver(ctx context.Context, rec *PatientRecord, r *Report) error
}

// TurnResult is what a completed turn returns to the presentation layer.
type TurnResult struct {
	Reply        string         `json:"reply"`
	Record       *PatientRecord `json:"record"`
	Differential bool           `json:"differential"`
	TurnCount    int            `json:"turn_count"`
}

type Options struct {
	ReplyTemperature float32
	ReplyMaxTokens   int
}

type Service struct {
	sessions  *SessionStore
	repo      Repository
	gen       llm.TextGenerator
	extractor Extractor
	grounder  Grounder
	reports   ReportBuilder
	delivery  ReportDeliverer
	opts      Options
	metrics   *metrics.Collector
	log       *zap.Logger
	now       func() time.Time
}

func NewService(
	repo Repository,
	gen llm.TextGenerator,
	extractor Extractor,
	grounder Grounder,
	opts Options,
	m *metrics.Collector,
	log *zap.Logger,
) *Service {
	if opts.ReplyMaxTokens <= 0 {
		opts.ReplyMaxTokens = 600
	}
	return &Service{
		sessions:  NewSessionStore(),
		repo:      repo,
		gen:       gen,
		extractor: extractor,
		grounder:  grounder,
		opts:      opts,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// WithReports enables report generation. delivery may be nil.
func (s *Service) WithReports(b ReportBuilder, delivery ReportDeliverer) *Service {
	s.reports = b
	s.delivery = delivery
	return s
}

// Start opens a new consultation and returns it with the opening greeting.
func (s *Service) Start(ctx context.Context) (*Session, string) {
	sess := newSession(s.now())
	active := s.sessions.Put(sess)
	s.metrics.ActiveSessions.Set(float64(active))

	s.persist(ctx, sess)
	s.log.Info("consultation started",
		zap.String("consultation_id", sess.ID.String()),
		zap.String("patient_id", sess.record.ID.String()),
	)
	return sess, openingGreeting
}

func (s *Service) Get(id uuid.UUID) (*Session, error) {
	return s.sessions.Get(id)
}

// Close drops a session from memory. The saved chart is kept.
func (s *Service) Close(id uuid.UUID) {
	active := s.sessions.Delete(id)
	s.metrics.ActiveSessions.Set(float64(active))
}

// Reset starts the consultation over: new record, new context, intake
// stage, zero turns. The consultation id is kept.
func (s *Service) Reset(ctx context.Context, sess *Session) string {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	old := sess.record.ID
	sess.reset(s.now())
	s.persistLocked(ctx, sess)
	s.log.Info("consultation reset",
		zap.String("consultation_id", sess.ID.String()),
		zap.String("previous_patient_id", old.String()),
		zap.String("patient_id", sess.record.ID.String()),
	)
	return openingGreeting
}

// ProcessTurn runs one patient turn: log the utterance, extract and merge
// facts, enter the differential stage when the guard holds, then generate
// the clinician reply. If grounding or generation fails the error is
// returned and whatever was recorded before the failure is kept.
func (s *Service) ProcessTurn(ctx context.Context, sess *Session, input string) (*TurnResult, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	ctx, span := tracer.Start(ctx, "consultation.ProcessTurn")
	defer span.End()
	span.SetAttributes(
		attribute.String("consultation.id", sess.ID.String()),
		attribute.Int("consultation.turn", sess.turnCount),
	)

	log := s.log.With(
		zap.String("consultation_id", sess.ID.String()),
		zap.Int("turn", sess.turnCount),
	)

	rec := sess.record
	turn := sess.turnCount

	rec.appendDialogue(SpeakerPatient, input, s.now())
	sess.context = append(sess.context, llm.Message{Role: llm.RoleUser, Content: input})
	sess.updatedAt = s.now()

	if patch, ok := s.extractor.Extract(ctx, rec.lastDialogue(extractionWindow)); ok {
		st := ApplyPatch(rec, patch)
		if st.Skipped > 0 {
			s.metrics.MergeAnomalies.Add(float64(st.Skipped))
		}
		log.Debug("facts merged",
			zap.Int("scalars_set", st.ScalarsSet),
			zap.Int("items_added", st.ItemsAdded),
			zap.Int("skipped", st.Skipped),
		)
	}

	if d := sess.stage.Evaluate(rec, turn); d.Transition {
		ans, err := s.grounder.AnalyzeSymptoms(ctx, rec.SymptomSummary())
		if err != nil {
			s.metrics.GroundingFetches.WithLabelValues("turn", "error").Inc()
			s.metrics.TurnsTotal.WithLabelValues("grounding_error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "grounding failed")
			log.Error("grounding fetch failed, staying in intake", zap.Error(err))
			s.persistLocked(ctx, sess)
			return nil, fmt.Errorf("%w: %w", ErrGrounding, err)
		}
		s.metrics.GroundingFetches.WithLabelValues("turn", "ok").Inc()

		sess.context = append(sess.context, llm.Message{
			Role:    llm.RoleSystem,
			Content: fmt.Sprintf(differentialDirective, ans.Answer),
		})
		sess.stage.Advance()
		s.metrics.StageTransitions.Inc()
		log.Info("entered differential stage", zap.Int("reference_pages", len(ans.Context)))
	}

	start := time.Now()
	reply, err := s.gen.Generate(ctx, sess.context, llm.Options{
		Temperature: s.opts.ReplyTemperature,
		MaxTokens:   s.opts.ReplyMaxTokens,
	})
	s.metrics.GenerationDuration.WithLabelValues("reply").Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.TurnsTotal.WithLabelValues("generation_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "reply generation failed")
		log.Error("reply generation failed", zap.Error(err))
		s.persistLocked(ctx, sess)
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	sess.context = append(sess.context, llm.Message{Role: llm.RoleAssistant, Content: reply})
	rec.appendDialogue(SpeakerClinician, reply, s.now())
	sess.turnCount++
	sess.updatedAt = s.now()
	s.persistLocked(ctx, sess)

	s.metrics.TurnsTotal.WithLabelValues("ok").Inc()
	differential := sess.stage.Stage() == StageDifferential
	span.SetAttributes(attribute.Bool("consultation.differential", differential))

	return &TurnResult{
		Reply:        reply,
		Record:       rec.Clone(),
		Differential: differential,
		TurnCount:    sess.turnCount,
	}, nil
}

// GenerateReport builds the diagnostic report for the session's current
// record and, when delivery is configured, sends it to the clinician. A
// delivery failure is logged and leaves Delivered false.
func (s *Service) GenerateReport(ctx context.Context, sess *Session) (*Report, error) {
	if s.reports == nil {
		return nil, ErrReportsDisabled
	}

	ctx, span := tracer.Start(ctx, "consultation.GenerateReport")
	defer span.End()

	rec := sess.View().Record
	r, err := s.reports.Build(ctx, rec)
	switch {
	case errors.Is(err, ErrReportIneligible):
		s.metrics.ReportsTotal.WithLabelValues("ineligible").Inc()
		return nil, err
	case err != nil:
		s.metrics.ReportsTotal.WithLabelValues("error").Inc()
		s.metrics.GroundingFetches.WithLabelValues("report", "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "report build failed")
		return nil, fmt.Errorf("%w: %w", ErrGrounding, err)
	}
	s.metrics.ReportsTotal.WithLabelValues("ok").Inc()
	s.metrics.GroundingFetches.WithLabelValues("report", "ok").Inc()

	if s.delivery != nil {
		if err := s.delivery.Deliver(ctx, rec, r); err != nil {
			s.log.Error("report delivery failed",
				zap.String("consultation_id", sess.ID.String()),
				zap.Error(err),
			)
		} else {
			r.Delivered = true
		}
	}
	return r, nil
}

// Chart loads a saved chart by patient id.
func (s *Service) Chart(ctx context.Context, patientID uuid.UUID) (*ChartSnapshot, error) {
	return s.repo.GetByID(ctx, patientID)
}

func (s *Service) persist(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.persistLocked(ctx, sess)
}

// persistLocked saves the chart. A failed save never fails the turn.
func (s *Service) persistLocked(ctx context.Context, sess *Session) {
	if s.repo == nil {
		return
	}
	snap := &ChartSnapshot{
		ConsultationID: sess.ID,
		Record:         sess.record.Clone(),
		Stage:          sess.stage.Stage(),
		TurnCount:      sess.turnCount,
	}
	if err := s.repo.Save(ctx, snap); err != nil {
		s.log.Warn("failed to save patient chart",
			zap.String("consultation_id", sess.ID.String()),
			zap.String("patient_id", sess.record.ID.String()),
			zap.Error(err),
		)
	}
}
