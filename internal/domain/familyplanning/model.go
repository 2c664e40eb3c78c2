package familyplanning

import (
	"time"

	"github.com/google/uuid"
)

// Client types carried on a service record.
const (
	ClientNewAcceptor = "newacceptor"
	ClientCurrentUser = "currentuser"
	ClientRestart     = "restart"
)

// Follow-up visit statuses. A pending visit is advanced by the reporting
// engine; completed is set here when a newer record supersedes it.
const (
	StatusPending   = "pending"
	StatusMissed    = "missed"
	StatusDropout   = "dropout"
	StatusCompleted = "completed"
)

// Record maps to the fp_record table. One record is one family planning
// service visit with its method usage.
type Record struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	ClientType    string     `db:"client_type" json:"client_type"`
	Method        string     `db:"method" json:"method"`
	Subtype       *string    `db:"subtype" json:"subtype,omitempty"`
	NextVisitDate *time.Time `db:"next_visit_date" json:"next_visit_date,omitempty"`
	ProviderName  *string    `db:"provider_name" json:"provider_name,omitempty"`
	Remarks       *string    `db:"remarks" json:"remarks,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// FollowUpVisit maps to the fp_followup table.
type FollowUpVisit struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	RecordID        uuid.UUID  `db:"record_id" json:"record_id"`
	ScheduledDate   time.Time  `db:"scheduled_date" json:"scheduled_date"`
	Status          string     `db:"status" json:"status"`
	StatusChangedAt *time.Time `db:"status_changed_at" json:"status_changed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
