package fpreport

import (
	"context"
	"testing"
	"time"
)

func cellFor(t *testing.T, f *fakeLedger, method string, year, month int, now time.Time) CellCounts {
	t.Helper()
	agg := NewAggregator(f, DefaultGraceDays)
	patients, _ := f.Patients(context.Background())
	counts, err := agg.Cell(context.Background(), method, patients, MonthWindow(year, month), now)
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	return counts
}

func TestCell_NewAcceptorCountedOnce(t *testing.T) {
	f := newFakeLedger()
	pid := f.addPatient(dobForAge(25, date(2024, time.January, 31)))
	f.addEpisode(pid, "DMPA", ClientNewAcceptor, date(2024, time.January, 5))

	counts := cellFor(t, f, "DMPA", 2024, 1, date(2024, time.January, 31))
	if counts.New != 1 {
		t.Errorf("New = %d, want 1", counts.New)
	}
	if counts.Other != 0 || counts.Dropout != 0 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}

func TestCell_PrevMonthNewCarriesIntoBOM(t *testing.T) {
	f := newFakeLedger()
	pid := f.addPatient(dobForAge(25, date(2024, time.February, 29)))
	f.addEpisode(pid, "DMPA", ClientNewAcceptor, date(2024, time.January, 5))

	counts := cellFor(t, f, "DMPA", 2024, 2, date(2024, time.February, 29))
	if counts.PrevMonthNew != 1 {
		t.Errorf("PrevMonthNew = %d, want 1", counts.PrevMonthNew)
	}
	if counts.BOM != 1 {
		t.Errorf("BOM = %d, want 1 (carried-over new acceptor)", counts.BOM)
	}
	if counts.New != 0 {
		t.Errorf("New = %d, want 0", counts.New)
	}
}

func TestCell_ContinuingUserCountsAsOther(t *testing.T) {
	f := newFakeLedger()
	pid := f.addPatient(dobForAge(30, date(2024, time.March, 31)))
	f.addEpisode(pid, "DMPA", ClientNewAcceptor, date(2024, time.January, 10))
	f.addEpisode(pid, "DMPA", ClientCurrentUser, date(2024, time.March, 15))

	counts := cellFor(t, f, "DMPA", 2024, 3, date(2024, time.March, 31))
	if counts.Other != 1 {
		t.Errorf("Other = %d, want 1", counts.Other)
	}
	if counts.New != 0 {
		t.Errorf("New = %d, want 0 (first episode precedes window)", counts.New)
	}
}

func TestCell_FirstEverCurrentUserNotOther(t *testing.T) {
	f := newFakeLedger()
	pid := f.addPatient(dobForAge(30, date(2024, time.March, 31)))
	// Very first record mislabeled currentuser: not a continuing user
	f.addEpisode(pid, "DMPA", ClientCurrentUser, date(2024, time.March, 15))

	counts := cellFor(t, f, "DMPA", 2024, 3, date(2024, time.March, 31))
	if counts.Other != 0 {
		t.Errorf("Other = %d, want 0", counts.Other)
	}
}

func TestCell_DoubleRecordedVisitNotNew(t *testing.T) {
	f := newFakeLedger()
	pid := f.addPatient(dobForAge(25, date(2024, time.January, 31)))
	// Same visit recorded twice by data entry: newacceptor and currentuser
	f.addEpisode(pid, "DMPA", ClientNewAcceptor, date(2024, time.January, 5))
	f.addEpisode(pid, "DMPA", ClientCurrentUser, date(2024, time.January, 5))

	counts := cellFor(t, f, "DMPA", 2024, 1, date(2024, time.January, 31))
	if counts.New != 0 {
		t.Errorf("New = %d, want 0 (currentuser double-record disqualifies)", counts.New)
	}
}

func TestCell_DistinctPatientsNotEpisodes(t *testing.T) {
	f := newFakeLedger()
	pid := f.addPatient(dobForAge(25, date(2024, time.March, 31)))
	f.addEpisode(pid, "DMPA", ClientNewAcceptor, date(2024, time.January, 5))
	// Multiple currentuser episodes in the same window
	f.addEpisode(pid, "DMPA", ClientCurrentUser, date(2024, time.March, 5))
	f.addEpisode(pid, "DMPA", ClientCurrentUser, date(2024, time.March, 12))
	f.addEpisode(pid, "DMPA", ClientCurrentUser, date(2024, time.March, 26))

	counts := cellFor(t, f, "DMPA", 2024, 3, date(2024, time.March, 31))
	if counts.Other != 1 {
		t.Errorf("Other = %d, want 1 (distinct patients)", counts.Other)
	}
}

func TestCell_DropoutByEffectiveDate(t *testing.T) {
	f := newFakeLedger()
	pid := f.addPatient(dobForAge(25, date(2024, time.February, 29)))
	epID := f.addEpisode(pid, "DMPA", ClientNewAcceptor, date(2024, time.January, 5))
	// Still pending, scheduled Feb 1; evaluated Feb 6 the cutoff Feb 4 has
	// passed, so the effective dropout date falls inside February.
	f.addFollowUp(pid, epID, "DMPA", date(2024, time.February, 1), StatusPending)

	counts := cellFor(t, f, "DMPA", 2024, 2, date(2024, time.February, 6))
	if counts.Dropout != 1 {
		t.Errorf("Dropout = %d, want 1", counts.Dropout)
	}
}

func TestCell_MissedCountsTowardDropout(t *testing.T) {
	f := newFakeLedger()
	pid := f.addPatient(dobForAge(25, date(2024, time.February, 29)))
	epID := f.addEpisode(pid, "DMPA", ClientNewAcceptor, date(2024, time.January, 5))
	fuID := f.addFollowUp(pid, epID, "DMPA", date(2024, time.February, 1), StatusMissed)
	changed := date(2024, time.February, 3)
	f.followups[fuID].StatusChangedAt = &changed

	counts := cellFor(t, f, "DMPA", 2024, 2, date(2024, time.February, 20))
	if counts.Dropout != 1 {
		t.Errorf("Dropout = %d, want 1 (missed counts as lapsed)", counts.Dropout)
	}
}

func TestCell_ReturningPatientNotDropout(t *testing.T) {
	f := newFakeLedger()
	pid := f.addPatient(dobForAge(25, date(2024, time.February, 29)))
	epID := f.addEpisode(pid, "DMPA", ClientNewAcceptor, date(2024, time.January, 5))
	// Follow-up long overdue but the patient came back on Feb 3, which
	// supersedes the pending row the same way the sweep refuses to lapse it.
	f.addFollowUp(pid, epID, "DMPA", date(2024, time.February, 1), StatusPending)
	f.addEpisode(pid, "DMPA", ClientCurrentUser, date(2024, time.February, 3))

	counts := cellFor(t, f, "DMPA", 2024, 2, date(2024, time.February, 10))
	if counts.Dropout != 0 {
		t.Errorf("Dropout = %d, want 0 (newer episode supersedes the follow-up)", counts.Dropout)
	}
}

func TestCell_ReturningPatientMissedNotDropout(t *testing.T) {
	f := newFakeLedger()
	pid := f.addPatient(dobForAge(25, date(2024, time.February, 29)))
	epID := f.addEpisode(pid, "DMPA", ClientNewAcceptor, date(2024, time.January, 5))
	fuID := f.addFollowUp(pid, epID, "DMPA", date(2024, time.February, 1), StatusMissed)
	changed := date(2024, time.February, 3)
	f.followups[fuID].StatusChangedAt = &changed
	f.addEpisode(pid, "DMPA", ClientCurrentUser, date(2024, time.February, 5))

	counts := cellFor(t, f, "DMPA", 2024, 2, date(2024, time.February, 20))
	if counts.Dropout != 0 {
		t.Errorf("Dropout = %d, want 0 (newer episode supersedes the missed follow-up)", counts.Dropout)
	}
}

func TestCell_LapsedPatientExcludedFromBOM(t *testing.T) {
	f := newFakeLedger()
	pid := f.addPatient(dobForAge(25, date(2024, time.March, 31)))
	epID := f.addEpisode(pid, "DMPA", ClientNewAcceptor, date(2024, time.January, 5))
	fuID := f.addFollowUp(pid, epID, "DMPA", date(2024, time.February, 1), StatusDropout)
	changed := date(2024, time.February, 4)
	f.followups[fuID].StatusChangedAt = &changed

	counts := cellFor(t, f, "DMPA", 2024, 3, date(2024, time.March, 31))
	if counts.BOM != 0 {
		t.Errorf("BOM = %d, want 0 (dropped before month start)", counts.BOM)
	}
}

func TestCell_ActiveCarryoverInBOM(t *testing.T) {
	f := newFakeLedger()
	pid := f.addPatient(dobForAge(25, date(2024, time.March, 31)))
	f.addEpisode(pid, "DMPA", ClientCurrentUser, date(2023, time.November, 10))
	f.addEpisode(pid, "DMPA", ClientCurrentUser, date(2024, time.February, 10))

	counts := cellFor(t, f, "DMPA", 2024, 3, date(2024, time.March, 31))
	if counts.BOM != 1 {
		t.Errorf("BOM = %d, want 1 (active carryover)", counts.BOM)
	}
}

func TestCell_BOMUnionNotSum(t *testing.T) {
	f := newFakeLedger()
	now := date(2024, time.February, 29)

	// Carried-over new acceptor (in both prevMonthNew and carryover sets)
	p1 := f.addPatient(dobForAge(25, now))
	f.addEpisode(p1, "DMPA", ClientNewAcceptor, date(2024, time.January, 5))
	// Long-running active user
	p2 := f.addPatient(dobForAge(30, now))
	f.addEpisode(p2, "DMPA", ClientCurrentUser, date(2023, time.October, 1))

	counts := cellFor(t, f, "DMPA", 2024, 2, now)
	if counts.BOM != 2 {
		t.Errorf("BOM = %d, want 2 (union over distinct patients)", counts.BOM)
	}
	if counts.BOM > counts.PrevMonthNew+2 {
		t.Errorf("BOM exceeds carryover + prevMonthNew bound: %+v", counts)
	}
}

func TestCell_MethodIsolation(t *testing.T) {
	f := newFakeLedger()
	now := date(2024, time.January, 31)
	pid := f.addPatient(dobForAge(25, now))
	f.addEpisode(pid, "Pills-COC", ClientNewAcceptor, date(2024, time.January, 5))

	counts := cellFor(t, f, "DMPA", 2024, 1, now)
	if counts.New != 0 || counts.BOM != 0 {
		t.Errorf("DMPA cell should be empty for a Pills-COC patient: %+v", counts)
	}
}

func TestCell_Deterministic(t *testing.T) {
	f := newFakeLedger()
	now := date(2024, time.March, 31)
	for i := 0; i < 4; i++ {
		pid := f.addPatient(dobForAge(20+i, now))
		f.addEpisode(pid, "DMPA", ClientNewAcceptor, date(2024, time.January, 5+i))
		f.addEpisode(pid, "DMPA", ClientCurrentUser, date(2024, time.March, 10+i))
	}

	first := cellFor(t, f, "DMPA", 2024, 3, now)
	second := cellFor(t, f, "DMPA", 2024, 3, now)
	if first != second {
		t.Errorf("re-running the same input differs: %+v vs %+v", first, second)
	}
}
