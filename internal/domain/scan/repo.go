package scan

import (
	"context"

	"github.com/google/uuid"

	"github.com/neurodash/neurodash/internal/analysis"
)

type Repository interface {
	Create(ctx context.Context, sess *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	GetByCode(ctx context.Context, code string) (*Session, error)
	GetStatus(ctx context.Context, id uuid.UUID) (analysis.Status, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status analysis.Status, errorDetail string) error
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Session, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Session, int, error)

	// Predictions
	CreatePrediction(ctx context.Context, p *Prediction) error
	GetPredictions(ctx context.Context, sessionID uuid.UUID) ([]*Prediction, error)

	// RecordResult stores a prediction and marks its session completed as one
	// atomic write.
	RecordResult(ctx context.Context, p *Prediction) error
}
