package consultation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChartSnapshot is a saved patient chart together with the consultation
// state it was taken in.
type ChartSnapshot struct {
	ConsultationID uuid.UUID      `json:"consultation_id"`
	Record         *PatientRecord `json:"record"`
	Stage          Stage          `json:"stage"`
	TurnCount      int            `json:"turn_count"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Repository stores charts keyed by patient id. Save is an upsert.
type Repository interface {
	GetByID(ctx context.Context, patientID uuid.UUID) (*ChartSnapshot, error)
	Save(ctx context.Context, snap *ChartSnapshot) error
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) GetByID(ctx context.Context, patientID uuid.UUID) (*ChartSnapshot, error) {
	query := `SELECT consultation_id, chart, stage, turn_count, updated_at FROM patient_charts WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, patientID)

	var snap ChartSnapshot
	var chartJSON []byte
	var stage string

	err := row.Scan(
		&snap.ConsultationID,
		&chartJSON,
		&stage,
		&snap.TurnCount,
		&snap.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChartNotFound
		}
		return nil, err
	}
	snap.Stage = Stage(stage)

	var rec PatientRecord
	if err := json.Unmarshal(chartJSON, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chart: %w", err)
	}
	snap.Record = &rec

	return &snap, nil
}

func (r *postgresRepo) Save(ctx context.Context, snap *ChartSnapshot) error {
	chartJSON, err := json.Marshal(snap.Record)
	if err != nil {
		return err
	}
	snap.UpdatedAt = time.Now()

	query := `
		INSERT INTO patient_charts (id, consultation_id, chart, stage, turn_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			chart = $3,
			stage = $4,
			turn_count = $5,
			updated_at = $7
	`
	_, err = r.db.ExecContext(ctx, query,
		snap.Record.ID, snap.ConsultationID, chartJSON, string(snap.Stage), snap.TurnCount,
		snap.Record.CreatedAt, snap.UpdatedAt)
	return err
}

// MemoryRepository keeps charts in process memory. It is used when no
// database is configured.
type MemoryRepository struct {
	mu     sync.RWMutex
	charts map[uuid.UUID]ChartSnapshot
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{charts: make(map[uuid.UUID]ChartSnapshot)}
}

func (m *MemoryRepository) GetByID(_ context.Context, patientID uuid.UUID) (*ChartSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.charts[patientID]
	if !ok {
		return nil, ErrChartNotFound
	}
	snap.Record = snap.Record.Clone()
	return &snap, nil
}

func (m *MemoryRepository) Save(_ context.Context, snap *ChartSnapshot) error {
	if snap.Record == nil {
		return errors.New("chart snapshot has no record")
	}
	snap.UpdatedAt = time.Now()
	stored := *snap
	stored.Record = snap.Record.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.charts[snap.Record.ID] = stored
	return nil
}
