package fpreport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeLedger is an in-memory VisitLedger and TransitionStore used across
// the engine tests.
type fakeLedger struct {
	mu        sync.Mutex
	patients  map[uuid.UUID]*Patient
	episodes  []*Episode
	followups map[uuid.UUID]*FollowUp

	transitionWrites int
	failTransitions  int   // CAS failures to inject before succeeding
	firstEpisodeErr  error // injected FirstEpisodeDate failure
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		patients:  make(map[uuid.UUID]*Patient),
		followups: make(map[uuid.UUID]*FollowUp),
	}
}

func (f *fakeLedger) addPatient(dob *time.Time) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.patients[id] = &Patient{ID: id, BirthDate: dob}
	return id
}

func (f *fakeLedger) addEpisode(pid uuid.UUID, method, clientType string, createdAt time.Time) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	ep := &Episode{
		ID:         uuid.New(),
		PatientID:  pid,
		Method:     NormalizeMethod(method),
		ClientType: clientType,
		CreatedAt:  createdAt,
	}
	f.episodes = append(f.episodes, ep)
	return ep.ID
}

func (f *fakeLedger) addFollowUp(pid, epID uuid.UUID, method string, scheduled time.Time, status string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	fu := &FollowUp{
		ID:            uuid.New(),
		PatientID:     pid,
		EpisodeID:     epID,
		Method:        NormalizeMethod(method),
		ScheduledDate: scheduled,
		Status:        status,
	}
	f.followups[fu.ID] = fu
	return fu.ID
}

func (f *fakeLedger) episodeByID(id uuid.UUID) *Episode {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ep := range f.episodes {
		if ep.ID == id {
			return ep
		}
	}
	return nil
}

func (f *fakeLedger) Patients(_ context.Context) ([]*Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Patient
	for _, p := range f.patients {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeLedger) EpisodesForPatientInRange(_ context.Context, pid uuid.UUID, start, end time.Time) ([]*Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Episode
	for _, ep := range f.episodes {
		if ep.PatientID == pid && !ep.CreatedAt.Before(start) && ep.CreatedAt.Before(end) {
			out = append(out, ep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeLedger) FirstEpisodeDate(_ context.Context, pid uuid.UUID) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.firstEpisodeErr != nil {
		return nil, f.firstEpisodeErr
	}
	var first *time.Time
	for _, ep := range f.episodes {
		if ep.PatientID != pid {
			continue
		}
		if first == nil || ep.CreatedAt.Before(*first) {
			t := ep.CreatedAt
			first = &t
		}
	}
	return first, nil
}

func (f *fakeLedger) HasCurrentUserEpisodeInRange(_ context.Context, pid uuid.UUID, start, end time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ep := range f.episodes {
		if ep.PatientID == pid && ep.ClientType == ClientCurrentUser &&
			!ep.CreatedAt.Before(start) && ep.CreatedAt.Before(end) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) HasEpisodeOnOrAfter(_ context.Context, pid uuid.UUID, instant time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ep := range f.episodes {
		if ep.PatientID == pid && !ep.CreatedAt.Before(instant) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) LatestEpisodeBefore(_ context.Context, pid uuid.UUID, instant time.Time) (*Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *Episode
	for _, ep := range f.episodes {
		if ep.PatientID != pid || !ep.CreatedAt.Before(instant) {
			continue
		}
		if latest == nil || ep.CreatedAt.After(latest.CreatedAt) {
			latest = ep
		}
	}
	return latest, nil
}

func (f *fakeLedger) LatestFollowUpBefore(_ context.Context, pid uuid.UUID, instant time.Time) (*FollowUp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *FollowUp
	for _, fu := range f.followups {
		if fu.PatientID != pid || !fu.ScheduledDate.Before(instant) {
			continue
		}
		if latest == nil || fu.ScheduledDate.After(latest.ScheduledDate) {
			latest = fu
		}
	}
	return latest, nil
}

func (f *fakeLedger) FollowUpsForPatient(_ context.Context, pid uuid.UUID) ([]*FollowUp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*FollowUp
	for _, fu := range f.followups {
		if fu.PatientID == pid {
			out = append(out, fu)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledDate.Before(out[j].ScheduledDate) })
	return out, nil
}

func (f *fakeLedger) PendingFollowUpsDueBefore(_ context.Context, cutoff time.Time) ([]*FollowUp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*FollowUp
	for _, fu := range f.followups {
		if NormalizeStatus(fu.Status) == StatusPending && fu.ScheduledDate.Before(cutoff) {
			out = append(out, fu)
		}
	}
	return out, nil
}

func (f *fakeLedger) GetFollowUp(_ context.Context, id uuid.UUID) (*FollowUp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fu, ok := f.followups[id]
	if !ok {
		return nil, fmt.Errorf("follow-up %s not found", id)
	}
	copied := *fu
	return &copied, nil
}

func (f *fakeLedger) TransitionFollowUp(_ context.Context, id uuid.UUID, from, to string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTransitions > 0 {
		f.failTransitions--
		return false, nil
	}
	fu, ok := f.followups[id]
	if !ok {
		return false, fmt.Errorf("follow-up %s not found", id)
	}
	if NormalizeStatus(fu.Status) != from {
		return false, nil
	}
	fu.Status = to
	changed := at
	fu.StatusChangedAt = &changed
	f.transitionWrites++
	return true, nil
}

func (f *fakeLedger) MarkEpisodeLapsed(_ context.Context, episodeID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	subtype := StatusDropout
	for _, ep := range f.episodes {
		if ep.ID == episodeID {
			ep.Subtype = &subtype
			return nil
		}
	}
	return fmt.Errorf("episode %s not found", episodeID)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dobForAge(age int, asOf time.Time) *time.Time {
	d := asOf.AddDate(-age, 0, -30)
	return &d
}
