package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	patients PatientRepository
	profiles ProfileRepository
}

func NewService(patients PatientRepository, profiles ProfileRepository) *Service {
	return &Service{patients: patients, profiles: profiles}
}

var validKinds = map[string]bool{
	KindResident: true, KindTransient: true,
}

var validSexes = map[string]bool{
	"female": true, "male": true,
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.FirstName == "" {
		return fmt.Errorf("first_name is required")
	}
	if p.LastName == "" {
		return fmt.Errorf("last_name is required")
	}
	if p.Kind == "" {
		p.Kind = KindResident
	}
	if !validKinds[p.Kind] {
		return fmt.Errorf("invalid kind: %s", p.Kind)
	}
	if p.Sex != "" && !validSexes[p.Sex] {
		return fmt.Errorf("invalid sex: %s", p.Sex)
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return err
	}

	// A profile row always exists so the birth date has somewhere to live
	switch p.Kind {
	case KindResident:
		return s.profiles.UpsertResident(ctx, &ResidentProfile{
			PatientID: p.ID,
			BirthDate: p.BirthDate,
		})
	case KindTransient:
		return s.profiles.UpsertTransient(ctx, &TransientProfile{
			PatientID: p.ID,
			BirthDate: p.BirthDate,
		})
	}
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.Kind != "" && !validKinds[p.Kind] {
		return fmt.Errorf("invalid kind: %s", p.Kind)
	}
	if p.Sex != "" && !validSexes[p.Sex] {
		return fmt.Errorf("invalid sex: %s", p.Sex)
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return err
	}
	if p.BirthDate != nil {
		switch p.Kind {
		case KindResident:
			return s.profiles.UpsertResident(ctx, &ResidentProfile{
				PatientID: p.ID,
				BirthDate: p.BirthDate,
			})
		case KindTransient:
			return s.profiles.UpsertTransient(ctx, &TransientProfile{
				PatientID: p.ID,
				BirthDate: p.BirthDate,
			})
		}
	}
	return nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) SearchPatients(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	if query == "" {
		return s.patients.List(ctx, limit, offset)
	}
	return s.patients.SearchByName(ctx, query, limit, offset)
}
