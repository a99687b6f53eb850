package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hearing-intake/internal/retrieval"
)

// ReferenceService answers free-standing knowledge base questions.
type ReferenceService interface {
	DiseaseInfo(ctx context.Context, disease string) (*retrieval.Answer, error)
	DifferentialQuestions(ctx context.Context, diseases []string) (*retrieval.Answer, error)
}

type Handler struct {
	svc *Service
	ref ReferenceService
	log *zap.Logger
}

func NewHandler(svc *Service, ref ReferenceService, log *zap.Logger) *Handler {
	return &Handler{svc: svc, ref: ref, log: log}
}

type turnRequest struct {
	Text string `json:"text"`
}

type differentialRequest struct {
	Diseases []string `json:"diseases"`
}

func (h *Handler) CreateConsultation(w http.ResponseWriter, r *http.Request) {
	sess, greeting := h.svc.Start(r.Context())
	writeJSON(w, http.StatusCreated, map[string]string{
		"consultation_id": sess.ID.String(),
		"patient_id":      sess.View().Record.ID.String(),
		"greeting":        greeting,
	})
}

func (h *Handler) PostTurn(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	res, err := h.svc.ProcessTurn(r.Context(), sess, req.Text)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (h *Handler) GetChartCard(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(RenderChart(sess.View().Record, time.Now())))
}

func (h *Handler) ExportChart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	rec := sess.View().Record
	data, err := ExportChart(rec)
	if err != nil {
		h.fail(w, err)
		return
	}
	name := fmt.Sprintf("patient_%s_%s.json", rec.ID.String()[:8], time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) ResetConsultation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	greeting := h.svc.Reset(r.Context(), sess)
	writeJSON(w, http.StatusOK, map[string]string{
		"consultation_id": sess.ID.String(),
		"patient_id":      sess.View().Record.ID.String(),
		"greeting":        greeting,
	})
}

func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	rep, err := h.svc.GenerateReport(r.Context(), sess)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) GetSavedChart(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "chartID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chart id")
		return
	}
	snap, err := h.svc.Chart(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) DiseaseInfo(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	ans, err := h.ref.DiseaseInfo(r.Context(), name)
	if err != nil {
		h.fail(w, fmt.Errorf("%w: %w", ErrGrounding, err))
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (h *Handler) DifferentialQuestions(w http.ResponseWriter, r *http.Request) {
	var req differentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Diseases) == 0 {
		writeError(w, http.StatusBadRequest, "diseases are required")
		return
	}
	ans, err := h.ref.DifferentialQuestions(r.Context(), req.Diseases)
	if err != nil {
		h.fail(w, fmt.Errorf("%w: %w", ErrGrounding, err))
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid consultation id")
		return nil, false
	}
	sess, err := h.svc.Get(id)
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrChartNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrReportIneligible):
		return http.StatusConflict
	case errors.Is(err, ErrReportsDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, ErrGrounding), errors.Is(err, ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/consultations", func(r chi.Router) {
		r.Post("/", h.CreateConsultation)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetConsultation)
			r.Post("/turns", h.PostTurn)
			r.Get("/chart", h.GetChartCard)
			r.Get("/chart.json", h.ExportChart)
			r.Post("/reset", h.ResetConsultation)
			r.Post("/report", h.CreateReport)
		})
	})
	r.Get("/charts/{chartID}", h.GetSavedChart)
	r.Route("/reference", func(r chi.Router) {
		r.Get("/disease", h.DiseaseInfo)
		r.Post("/differential", h.DifferentialQuestions)
	})
}
