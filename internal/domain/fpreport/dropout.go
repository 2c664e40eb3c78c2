package fpreport

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hcis/hcis/internal/platform/metrics"
)

// DefaultGraceDays is the window after a scheduled follow-up during which
// a missed visit is not yet a dropout.
const DefaultGraceDays = 3

// StateMachine advances pending follow-ups as a function of elapsed time:
// pending -> missed once the scheduled date passes, missed/pending ->
// dropout once the grace window closes. Transitions are monotonic.
type StateMachine struct {
	ledger    VisitLedger
	store     TransitionStore
	graceDays int
	logger    zerolog.Logger
}

func NewStateMachine(ledger VisitLedger, store TransitionStore, graceDays int, logger zerolog.Logger) *StateMachine {
	if graceDays <= 0 {
		graceDays = DefaultGraceDays
	}
	return &StateMachine{
		ledger:    ledger,
		store:     store,
		graceDays: graceDays,
		logger:    logger,
	}
}

// GraceDays returns the configured grace window length.
func (sm *StateMachine) GraceDays() int { return sm.graceDays }

// Evaluate inspects one follow-up against today and applies at most one
// forward transition. Terminal and up-to-date visits are a no-op, so
// evaluating twice on the same day converges without duplicate writes.
func (sm *StateMachine) Evaluate(ctx context.Context, fu *FollowUp, today time.Time) error {
	status := NormalizeStatus(fu.Status)
	if status == StatusCompleted || status == StatusDropout {
		return nil
	}

	// A newer episode supersedes the stale follow-up: the patient came back.
	returned, err := sm.ledger.HasEpisodeOnOrAfter(ctx, fu.PatientID, fu.ScheduledDate)
	if err != nil {
		return &DataAccessError{Op: "episodes on or after scheduled date", Err: err}
	}
	if returned {
		return nil
	}

	cutoff := fu.ScheduledDate.AddDate(0, 0, sm.graceDays)
	switch {
	case today.After(cutoff):
		if err := sm.transition(ctx, fu, status, StatusDropout, today); err != nil {
			return err
		}
		if err := sm.store.MarkEpisodeLapsed(ctx, fu.EpisodeID); err != nil {
			return &DataAccessError{Op: "mark episode lapsed", Err: err}
		}
	case status == StatusPending && today.After(fu.ScheduledDate):
		if err := sm.transition(ctx, fu, status, StatusMissed, today); err != nil {
			return err
		}
	}
	return nil
}

// transition applies the compare-and-set write with a single retry on
// conflict. A lost race against a transition to the same or a later state
// is treated as convergence, not failure.
func (sm *StateMachine) transition(ctx context.Context, fu *FollowUp, from, to string, at time.Time) error {
	applied, err := sm.store.TransitionFollowUp(ctx, fu.ID, from, to, at)
	if err != nil {
		return &DataAccessError{Op: "transition follow-up", Err: err}
	}
	if applied {
		fu.Status = to
		changed := at
		fu.StatusChangedAt = &changed
		metrics.RecordFollowUpTransition(from, to)
		return nil
	}

	// Conflict: re-read and retry once against the fresh status.
	fresh, err := sm.ledger.GetFollowUp(ctx, fu.ID)
	if err != nil {
		return &DataAccessError{Op: "reread follow-up", Err: err}
	}
	freshStatus := NormalizeStatus(fresh.Status)
	if freshStatus == to || freshStatus == StatusCompleted || freshStatus == StatusDropout {
		fu.Status = fresh.Status
		fu.StatusChangedAt = fresh.StatusChangedAt
		return nil
	}

	applied, err = sm.store.TransitionFollowUp(ctx, fu.ID, freshStatus, to, at)
	if err != nil {
		return &DataAccessError{Op: "retry transition follow-up", Err: err}
	}
	if !applied {
		conflict := &TransitionConflict{FollowUpID: fu.ID.String(), From: freshStatus, To: to}
		sm.logger.Warn().
			Str("followup_id", fu.ID.String()).
			Str("from", freshStatus).
			Str("to", to).
			Msg("transition conflict after retry, skipping")
		return conflict
	}
	fu.Status = to
	changed := at
	fu.StatusChangedAt = &changed
	metrics.RecordFollowUpTransition(freshStatus, to)
	return nil
}

// Sweep evaluates every pending follow-up due before cutoff. Patients are
// evaluated in parallel across a bounded worker pool; all of one patient's
// visits run on the same worker so writes to a patient's record serialize.
// Per-patient failures are logged and do not abort the sweep.
func (sm *StateMachine) Sweep(ctx context.Context, cutoff, today time.Time, workers int) error {
	if workers <= 0 {
		workers = 1
	}

	due, err := sm.ledger.PendingFollowUpsDueBefore(ctx, cutoff)
	if err != nil {
		return &DataAccessError{Op: "pending follow-ups due", Err: err}
	}
	if len(due) == 0 {
		return nil
	}

	byPatient := make(map[string][]*FollowUp)
	for _, fu := range due {
		key := fu.PatientID.String()
		byPatient[key] = append(byPatient[key], fu)
	}

	jobs := make(chan []*FollowUp)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for visits := range jobs {
				for _, fu := range visits {
					if err := sm.Evaluate(ctx, fu, today); err != nil {
						sm.logger.Error().Err(err).
							Str("followup_id", fu.ID.String()).
							Str("patient_id", fu.PatientID.String()).
							Msg("dropout evaluation failed")
					}
				}
			}
		}()
	}

	for _, visits := range byPatient {
		jobs <- visits
	}
	close(jobs)
	wg.Wait()
	return nil
}

// effectiveDropoutDate returns the date a follow-up is considered lapsed:
// the recorded transition date for missed/dropout visits, or the end of
// the grace window for a pending visit already past it at evaluation time.
// Completed and within-window visits return nil.
func effectiveDropoutDate(fu *FollowUp, graceDays int, now time.Time) *time.Time {
	cutoff := fu.ScheduledDate.AddDate(0, 0, graceDays)
	switch NormalizeStatus(fu.Status) {
	case StatusDropout, StatusMissed:
		if fu.StatusChangedAt != nil {
			return fu.StatusChangedAt
		}
		return &cutoff
	case StatusPending:
		if now.After(cutoff) {
			return &cutoff
		}
	}
	return nil
}
