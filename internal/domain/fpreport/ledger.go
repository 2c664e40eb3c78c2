package fpreport

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client types as recorded on an episode.
const (
	ClientNewAcceptor = "newacceptor"
	ClientCurrentUser = "currentuser"
	ClientRestart     = "restart"
)

// Follow-up statuses, normalized to a closed set at the ledger boundary.
const (
	StatusPending   = "pending"
	StatusMissed    = "missed"
	StatusDropout   = "dropout"
	StatusCompleted = "completed"
)

// NormalizeStatus folds the case variants found in stored data ("Dropout",
// "PENDING") onto the closed status set. Unknown values pass through
// lowercased.
func NormalizeStatus(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Patient is the engine's read-only view of a registered patient. A nil
// BirthDate excludes the patient from every age band.
type Patient struct {
	ID        uuid.UUID
	BirthDate *time.Time
}

// Episode is one family planning visit record with its method usage.
// Method is canonical (already normalized).
type Episode struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	Method     string
	ClientType string
	Subtype    *string
	CreatedAt  time.Time
}

// FollowUp is a scheduled return visit. Method is the canonical method of
// the episode that scheduled it.
type FollowUp struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	EpisodeID       uuid.UUID
	Method          string
	ScheduledDate   time.Time
	Status          string
	StatusChangedAt *time.Time
}

// VisitLedger is the read boundary into the visit store. The aggregator
// and state machine see the program history only through it, so tests run
// against an in-memory implementation.
type VisitLedger interface {
	// Patients returns every patient with at least one episode.
	Patients(ctx context.Context) ([]*Patient, error)
	// EpisodesForPatientInRange returns episodes with start <= created_at < end,
	// ascending by creation time.
	EpisodesForPatientInRange(ctx context.Context, patientID uuid.UUID, start, end time.Time) ([]*Episode, error)
	// FirstEpisodeDate returns the patient's earliest episode creation time,
	// or nil when the patient has no episodes.
	FirstEpisodeDate(ctx context.Context, patientID uuid.UUID) (*time.Time, error)
	// HasCurrentUserEpisodeInRange reports whether any currentuser-typed
	// episode exists in [start, end), regardless of method.
	HasCurrentUserEpisodeInRange(ctx context.Context, patientID uuid.UUID, start, end time.Time) (bool, error)
	// HasEpisodeOnOrAfter reports whether the patient has any episode created
	// on or after the instant. Guards stale follow-up transitions.
	HasEpisodeOnOrAfter(ctx context.Context, patientID uuid.UUID, instant time.Time) (bool, error)
	// LatestEpisodeBefore returns the most recent episode created strictly
	// before the instant, or nil.
	LatestEpisodeBefore(ctx context.Context, patientID uuid.UUID, instant time.Time) (*Episode, error)
	// LatestFollowUpBefore returns the patient's most recent follow-up
	// scheduled strictly before the instant, or nil.
	LatestFollowUpBefore(ctx context.Context, patientID uuid.UUID, instant time.Time) (*FollowUp, error)
	// FollowUpsForPatient returns all of the patient's follow-ups ascending
	// by scheduled date.
	FollowUpsForPatient(ctx context.Context, patientID uuid.UUID) ([]*FollowUp, error)
	// PendingFollowUpsDueBefore returns every pending follow-up scheduled
	// strictly before the cutoff.
	PendingFollowUpsDueBefore(ctx context.Context, cutoff time.Time) ([]*FollowUp, error)
	// GetFollowUp re-reads one follow-up, used for conflict retries.
	GetFollowUp(ctx context.Context, id uuid.UUID) (*FollowUp, error)
}

// TransitionStore is the engine's single write capability.
type TransitionStore interface {
	// TransitionFollowUp advances a follow-up from one status to another via
	// compare-and-set on the current status. Returns false without error when
	// the stored status no longer matches from.
	TransitionFollowUp(ctx context.Context, id uuid.UUID, from, to string, at time.Time) (bool, error)
	// MarkEpisodeLapsed flips the owning episode's method-usage subtype to
	// dropout so downstream queries see the lapsed program.
	MarkEpisodeLapsed(ctx context.Context, episodeID uuid.UUID) error
}
