package consultation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"hearing-intake/internal/llm"
)

// Session is the state of one consultation: the patient record, the
// generation context sent to the model, the stage latch and the number of
// completed turns. A session handles one turn at a time.
type Session struct {
	ID uuid.UUID

	mu        sync.Mutex
	record    *PatientRecord
	context   []llm.Message
	stage     *StageController
	turnCount int
	updatedAt time.Time
}

func newSession(now time.Time) *Session {
	s := &Session{ID: uuid.New()}
	s.reset(now)
	return s
}

// reset replaces the record, context, latch and counter together.
func (s *Session) reset(now time.Time) {
	s.record = NewPatientRecord(now)
	s.context = []llm.Message{
		{Role: llm.RoleSystem, Content: clinicianSystemPrompt},
		{Role: llm.RoleAssistant, Content: openingGreeting},
	}
	s.stage = NewStageController()
	s.turnCount = 0
	s.updatedAt = now
}

// View is a consistent read-only copy of a session.
type View struct {
	ConsultationID uuid.UUID      `json:"consultation_id"`
	Record         *PatientRecord `json:"record"`
	Stage          Stage          `json:"stage"`
	TurnCount      int            `json:"turn_count"`
	ReportEligible bool           `json:"report_eligible"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	return View{
		ConsultationID: s.ID,
		Record:         s.record.Clone(),
		Stage:          s.stage.Stage(),
		TurnCount:      s.turnCount,
		ReportEligible: ReportEligible(s.record),
		UpdatedAt:      s.updatedAt,
	}
}

// SessionStore keeps live sessions in memory, keyed by consultation id.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uuid.UUID]*Session)}
}

func (st *SessionStore) Put(s *Session) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
	return len(st.sessions)
}

func (st *SessionStore) Get(id uuid.UUID) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (st *SessionStore) Delete(id uuid.UUID) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
	return len(st.sessions)
}
