package familyplanning

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RecordRepository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Record, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
}

type FollowUpRepository interface {
	Create(ctx context.Context, fu *FollowUpVisit) error
	GetByID(ctx context.Context, id uuid.UUID) (*FollowUpVisit, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*FollowUpVisit, error)
	// CompletePending marks every pending follow-up for the patient as
	// completed. Called when a new record supersedes the old schedule.
	CompletePending(ctx context.Context, patientID uuid.UUID, at time.Time) (int, error)
}
