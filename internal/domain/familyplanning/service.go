package familyplanning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hcis/hcis/internal/platform/metrics"
)

type Service struct {
	records   RecordRepository
	followups FollowUpRepository
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(records RecordRepository, followups FollowUpRepository, logger zerolog.Logger) *Service {
	return &Service{
		records:   records,
		followups: followups,
		logger:    logger,
		now:       time.Now,
	}
}

var validClientTypes = map[string]bool{
	ClientNewAcceptor: true, ClientCurrentUser: true, ClientRestart: true,
}

// CreateRecord validates and stores a service record. Any pending follow-up
// for the patient is marked completed first, so the new visit supersedes the
// old schedule before the dropout sweep can see it. A next_visit_date spawns
// a fresh pending follow-up.
func (s *Service) CreateRecord(ctx context.Context, rec *Record) error {
	if rec.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if rec.Method == "" {
		return fmt.Errorf("method is required")
	}
	if rec.ClientType == "" {
		rec.ClientType = ClientCurrentUser
	}
	if !validClientTypes[rec.ClientType] {
		return fmt.Errorf("invalid client_type: %s", rec.ClientType)
	}
	if rec.NextVisitDate != nil && rec.NextVisitDate.Before(s.now()) {
		return fmt.Errorf("next_visit_date must be in the future")
	}

	completed, err := s.followups.CompletePending(ctx, rec.PatientID, s.now())
	if err != nil {
		return fmt.Errorf("complete pending follow-ups: %w", err)
	}
	if completed > 0 {
		s.logger.Debug().
			Str("patient_id", rec.PatientID.String()).
			Int("completed", completed).
			Msg("superseded pending follow-ups")
	}

	if err := s.records.Create(ctx, rec); err != nil {
		return err
	}

	if rec.NextVisitDate != nil {
		fu := &FollowUpVisit{
			PatientID:     rec.PatientID,
			RecordID:      rec.ID,
			ScheduledDate: *rec.NextVisitDate,
			Status:        StatusPending,
		}
		if err := s.followups.Create(ctx, fu); err != nil {
			return fmt.Errorf("schedule follow-up: %w", err)
		}
	}

	metrics.RecordServiceRecordCreated(rec.ClientType, rec.Method)
	return nil
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) UpdateRecord(ctx context.Context, rec *Record) error {
	if rec.ClientType != "" && !validClientTypes[rec.ClientType] {
		return fmt.Errorf("invalid client_type: %s", rec.ClientType)
	}
	return s.records.Update(ctx, rec)
}

func (s *Service) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	return s.records.Delete(ctx, id)
}

func (s *Service) ListRecords(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	return s.records.List(ctx, limit, offset)
}

func (s *Service) ListRecordsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return s.records.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListFollowUps(ctx context.Context, patientID uuid.UUID) ([]*FollowUpVisit, error) {
	return s.followups.ListByPatient(ctx, patientID)
}
