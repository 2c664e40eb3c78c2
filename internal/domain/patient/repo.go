package patient

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	SearchByName(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error)
}

type ProfileRepository interface {
	UpsertResident(ctx context.Context, rp *ResidentProfile) error
	UpsertTransient(ctx context.Context, tp *TransientProfile) error
	GetResident(ctx context.Context, patientID uuid.UUID) (*ResidentProfile, error)
	GetTransient(ctx context.Context, patientID uuid.UUID) (*TransientProfile, error)
}
