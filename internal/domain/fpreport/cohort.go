package fpreport

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Window is a half-open calendar month [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// MonthWindow returns the calendar bounds for a reporting month.
func MonthWindow(year, month int) Window {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// Prev returns the preceding calendar month.
func (w Window) Prev() Window {
	return Window{Start: w.Start.AddDate(0, -1, 0), End: w.Start}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// CellCounts holds the per-category distinct-patient counts for one
// (method, age band, month) cell.
type CellCounts struct {
	BOM          int `json:"bom"`
	New          int `json:"new"`
	Other        int `json:"other"`
	Dropout      int `json:"dropout"`
	PrevMonthNew int `json:"prev_month_new"`
}

type patientSet map[uuid.UUID]struct{}

func (s patientSet) add(id uuid.UUID) { s[id] = struct{}{} }

func (s patientSet) union(other patientSet) patientSet {
	out := make(patientSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Aggregator computes cohort membership for report cells. Every category
// is materialized as a set of patient identifiers and sized afterwards, so
// duplicate episodes within a window never inflate a count.
type Aggregator struct {
	ledger    VisitLedger
	graceDays int
}

func NewAggregator(ledger VisitLedger, graceDays int) *Aggregator {
	if graceDays <= 0 {
		graceDays = DefaultGraceDays
	}
	return &Aggregator{ledger: ledger, graceDays: graceDays}
}

// cellSets carries the materialized patient sets for one cell; the counts
// in CellCounts are their sizes.
type cellSets struct {
	bom          patientSet
	fresh        patientSet
	other        patientSet
	dropout      patientSet
	prevMonthNew patientSet
}

func newCellSets() *cellSets {
	return &cellSets{
		bom:          make(patientSet),
		fresh:        make(patientSet),
		other:        make(patientSet),
		dropout:      make(patientSet),
		prevMonthNew: make(patientSet),
	}
}

func (cs *cellSets) counts() CellCounts {
	return CellCounts{
		BOM:          len(cs.bom),
		New:          len(cs.fresh),
		Other:        len(cs.other),
		Dropout:      len(cs.dropout),
		PrevMonthNew: len(cs.prevMonthNew),
	}
}

// Cell computes the counts for one method over an already band-filtered
// patient list. now is the evaluation instant used to interpret overdue
// pending follow-ups.
func (a *Aggregator) Cell(ctx context.Context, method string, patients []*Patient, w Window, now time.Time) (CellCounts, error) {
	sets := newCellSets()
	prev := w.Prev()

	for _, p := range patients {
		if err := a.classify(ctx, sets, p.ID, method, w, prev, now); err != nil {
			return CellCounts{}, err
		}
	}

	// BOM is a set union with the carried-over new acceptors, not a sum.
	sets.bom = sets.bom.union(sets.prevMonthNew)
	return sets.counts(), nil
}

// classify evaluates one patient against every category of the cell.
func (a *Aggregator) classify(ctx context.Context, sets *cellSets, pid uuid.UUID, method string, w, prev Window, now time.Time) error {
	first, err := a.ledger.FirstEpisodeDate(ctx, pid)
	if err != nil {
		return &DataAccessError{Op: "first episode date", Err: err}
	}
	if first == nil {
		return nil
	}

	newInPrev, err := a.isNewAcceptor(ctx, pid, method, prev, *first)
	if err != nil {
		return err
	}
	if newInPrev {
		sets.prevMonthNew.add(pid)
	}

	newNow, err := a.isNewAcceptor(ctx, pid, method, w, *first)
	if err != nil {
		return err
	}
	if newNow {
		sets.fresh.add(pid)
	}

	episodes, err := a.ledger.EpisodesForPatientInRange(ctx, pid, w.Start, w.End)
	if err != nil {
		return &DataAccessError{Op: "episodes in range", Err: err}
	}
	for _, ep := range episodes {
		if ep.Method != method || ep.ClientType != ClientCurrentUser {
			continue
		}
		// Continuing user: an earlier first record must exist.
		if first.Before(ep.CreatedAt) {
			sets.other.add(pid)
			break
		}
	}

	carried, err := a.carriesOver(ctx, pid, method, w.Start, now)
	if err != nil {
		return err
	}
	if carried {
		sets.bom.add(pid)
	}

	dropped, err := a.droppedInWindow(ctx, pid, method, w, now)
	if err != nil {
		return err
	}
	if dropped {
		sets.dropout.add(pid)
	}

	return nil
}

// isNewAcceptor reports whether the patient's first-ever episode falls in
// the window as a newacceptor on the method, without a currentuser episode
// double-recorded in the same window.
func (a *Aggregator) isNewAcceptor(ctx context.Context, pid uuid.UUID, method string, w Window, first time.Time) (bool, error) {
	if !w.Contains(first) {
		return false, nil
	}
	episodes, err := a.ledger.EpisodesForPatientInRange(ctx, pid, w.Start, w.End)
	if err != nil {
		return false, &DataAccessError{Op: "episodes in range", Err: err}
	}

	match := false
	for _, ep := range episodes {
		if ep.Method == method && ep.ClientType == ClientNewAcceptor && ep.CreatedAt.Equal(first) {
			match = true
			break
		}
	}
	if !match {
		return false, nil
	}

	// A currentuser episode in the same window is a data-entry artifact of
	// the same visit; it disqualifies the new-acceptor reading.
	doubled, err := a.ledger.HasCurrentUserEpisodeInRange(ctx, pid, w.Start, w.End)
	if err != nil {
		return false, &DataAccessError{Op: "currentuser episode in range", Err: err}
	}
	return !doubled, nil
}

// carriesOver reports whether the patient was actively on the method at
// monthStart: their latest prior episode matches and their latest prior
// follow-up had not lapsed by then.
func (a *Aggregator) carriesOver(ctx context.Context, pid uuid.UUID, method string, monthStart, now time.Time) (bool, error) {
	latest, err := a.ledger.LatestEpisodeBefore(ctx, pid, monthStart)
	if err != nil {
		return false, &DataAccessError{Op: "latest episode before", Err: err}
	}
	if latest == nil || latest.Method != method {
		return false, nil
	}

	lastFu, err := a.ledger.LatestFollowUpBefore(ctx, pid, monthStart)
	if err != nil {
		return false, &DataAccessError{Op: "latest follow-up before", Err: err}
	}
	if lastFu == nil {
		return true, nil
	}
	lapsed := effectiveDropoutDate(lastFu, a.graceDays, now)
	if lapsed != nil && lapsed.Before(monthStart) {
		return false, nil
	}
	return true, nil
}

// droppedInWindow reports whether any of the patient's follow-ups on the
// method lapsed with an effective dropout date inside the window. Missed
// and overdue-pending visits count alongside formal dropouts, under the
// same returning-patient guard the state machine applies: a newer episode
// on or after the scheduled date supersedes a non-terminal follow-up, so
// it is not lapsed no matter how overdue the row looks.
func (a *Aggregator) droppedInWindow(ctx context.Context, pid uuid.UUID, method string, w Window, now time.Time) (bool, error) {
	visits, err := a.ledger.FollowUpsForPatient(ctx, pid)
	if err != nil {
		return false, &DataAccessError{Op: "follow-ups for patient", Err: err}
	}
	for _, fu := range visits {
		if fu.Method != method {
			continue
		}
		lapsed := effectiveDropoutDate(fu, a.graceDays, now)
		if lapsed == nil || !w.Contains(*lapsed) {
			continue
		}
		if NormalizeStatus(fu.Status) != StatusDropout {
			returned, err := a.ledger.HasEpisodeOnOrAfter(ctx, pid, fu.ScheduledDate)
			if err != nil {
				return false, &DataAccessError{Op: "episodes on or after scheduled date", Err: err}
			}
			if returned {
				continue
			}
		}
		return true, nil
	}
	return false, nil
}
