package fpreport

import "fmt"

// ValidationError reports malformed report input. It aborts the whole
// report and is the only error surfaced to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DataAccessError wraps a ledger failure scoped to one patient or query.
// Cells affected by it default to zero; the report continues.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// TransitionConflict reports a lost compare-and-set race on a follow-up
// status. The caller retries once with a fresh read, then skips.
type TransitionConflict struct {
	FollowUpID string
	From       string
	To         string
}

func (e *TransitionConflict) Error() string {
	return fmt.Sprintf("follow-up %s: conflicting transition %s -> %s", e.FollowUpID, e.From, e.To)
}
