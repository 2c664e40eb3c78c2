package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient kinds determine which linked profile carries the birth date.
const (
	KindResident  = "resident"
	KindTransient = "transient"
)

// Patient maps to the patient table.
type Patient struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	MiddleName    *string    `db:"middle_name" json:"middle_name,omitempty"`
	Sex           string     `db:"sex" json:"sex"`
	Kind          string     `db:"kind" json:"kind"`
	ContactNumber *string    `db:"contact_number" json:"contact_number,omitempty"`
	Address       *string    `db:"address" json:"address,omitempty"`
	BirthDate     *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// ResidentProfile maps to the resident_profile table.
type ResidentProfile struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	BirthDate    *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Barangay     *string    `db:"barangay" json:"barangay,omitempty"`
	PhilhealthNo *string    `db:"philhealth_no" json:"philhealth_no,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// TransientProfile maps to the transient_profile table.
type TransientProfile struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	BirthDate   *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	HomeAddress *string    `db:"home_address" json:"home_address,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
