package integration

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hcis/hcis/internal/domain/familyplanning"
)

func newFPService() *familyplanning.Service {
	return familyplanning.NewService(
		familyplanning.NewRecordRepoPG(globalDB.Pool),
		familyplanning.NewFollowUpRepoPG(globalDB.Pool),
		zerolog.Nop(),
	)
}

func TestRecordCreateSchedulesFollowUp(t *testing.T) {
	ctx := context.Background()
	truncateAll(t, ctx)
	patientSvc := newPatientService()
	fpSvc := newFPService()

	p := createTestPatient(t, ctx, patientSvc, "Ana", "Lopez", nil)

	next := time.Now().AddDate(0, 1, 0).Truncate(24 * time.Hour)
	rec := createTestRecord(t, ctx, fpSvc, p.ID, "DMPA", familyplanning.ClientNewAcceptor, &next)

	followups, err := fpSvc.ListFollowUps(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListFollowUps: %v", err)
	}
	if len(followups) != 1 {
		t.Fatalf("follow-ups = %d, want 1", len(followups))
	}
	fu := followups[0]
	if fu.RecordID != rec.ID {
		t.Errorf("follow-up record_id = %s, want %s", fu.RecordID, rec.ID)
	}
	if fu.Status != familyplanning.StatusPending {
		t.Errorf("follow-up status = %q, want pending", fu.Status)
	}
}

func TestRecordCreateSupersedesPendingFollowUp(t *testing.T) {
	ctx := context.Background()
	truncateAll(t, ctx)
	patientSvc := newPatientService()
	fpSvc := newFPService()

	p := createTestPatient(t, ctx, patientSvc, "Rosa", "Garcia", nil)

	first := time.Now().AddDate(0, 1, 0)
	createTestRecord(t, ctx, fpSvc, p.ID, "Pills-COC", familyplanning.ClientNewAcceptor, &first)

	second := time.Now().AddDate(0, 2, 0)
	createTestRecord(t, ctx, fpSvc, p.ID, "Pills-COC", familyplanning.ClientCurrentUser, &second)

	followups, err := fpSvc.ListFollowUps(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListFollowUps: %v", err)
	}
	if len(followups) != 2 {
		t.Fatalf("follow-ups = %d, want 2", len(followups))
	}

	pending := 0
	completed := 0
	for _, fu := range followups {
		switch fu.Status {
		case familyplanning.StatusPending:
			pending++
		case familyplanning.StatusCompleted:
			completed++
		}
	}
	if pending != 1 || completed != 1 {
		t.Errorf("pending=%d completed=%d, want exactly one of each", pending, completed)
	}
}

func TestRecordListByPatient(t *testing.T) {
	ctx := context.Background()
	truncateAll(t, ctx)
	patientSvc := newPatientService()
	fpSvc := newFPService()

	p1 := createTestPatient(t, ctx, patientSvc, "Carmen", "Torres", nil)
	p2 := createTestPatient(t, ctx, patientSvc, "Elena", "Vega", nil)

	createTestRecord(t, ctx, fpSvc, p1.ID, "IUD-Interval", familyplanning.ClientNewAcceptor, nil)
	createTestRecord(t, ctx, fpSvc, p1.ID, "IUD-Interval", familyplanning.ClientCurrentUser, nil)
	createTestRecord(t, ctx, fpSvc, p2.ID, "Condom", familyplanning.ClientNewAcceptor, nil)

	records, total, err := fpSvc.ListRecordsByPatient(ctx, p1.ID, 20, 0)
	if err != nil {
		t.Fatalf("ListRecordsByPatient: %v", err)
	}
	if total != 2 || len(records) != 2 {
		t.Errorf("records for p1 = %d/%d, want 2", len(records), total)
	}
	for _, r := range records {
		if r.PatientID != p1.ID {
			t.Errorf("record %s belongs to %s, want %s", r.ID, r.PatientID, p1.ID)
		}
	}
}
