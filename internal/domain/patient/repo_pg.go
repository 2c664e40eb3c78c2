package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hcis/hcis/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// Birth date comes from the kind-matching profile.
const patientCols = `p.id, p.first_name, p.last_name, p.middle_name, p.sex, p.kind,
	p.contact_number, p.address,
	CASE WHEN p.kind = 'resident' THEN rp.birth_date ELSE tp.birth_date END AS birth_date,
	p.created_at, p.updated_at`

const patientJoins = `
	LEFT JOIN resident_profile rp ON rp.patient_id = p.id
	LEFT JOIN transient_profile tp ON tp.patient_id = p.id`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.MiddleName, &p.Sex, &p.Kind,
		&p.ContactNumber, &p.Address, &p.BirthDate, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, first_name, last_name, middle_name, sex, kind, contact_number, address)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.FirstName, p.LastName, p.MiddleName, p.Sex, p.Kind, p.ContactNumber, p.Address)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient p`+patientJoins+` WHERE p.id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET first_name=$2, last_name=$3, middle_name=$4, sex=$5, kind=$6,
			contact_number=$7, address=$8, updated_at=NOW()
		WHERE id=$1`,
		p.ID, p.FirstName, p.LastName, p.MiddleName, p.Sex, p.Kind, p.ContactNumber, p.Address)
	return err
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient p`+patientJoins+`
		 ORDER BY p.last_name, p.first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func (r *patientRepoPG) SearchByName(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	pattern := "%" + query + "%"

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient WHERE first_name ILIKE $1 OR last_name ILIKE $1`,
		pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient p`+patientJoins+`
		 WHERE p.first_name ILIKE $1 OR p.last_name ILIKE $1
		 ORDER BY p.last_name, p.first_name LIMIT $2 OFFSET $3`, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

// =========== Profile Repository ===========

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepoPG{pool: pool}
}

func (r *profileRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *profileRepoPG) UpsertResident(ctx context.Context, rp *ResidentProfile) error {
	if rp.ID == uuid.Nil {
		rp.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO resident_profile (id, patient_id, birth_date, barangay, philhealth_no)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (patient_id) DO UPDATE SET
			birth_date = EXCLUDED.birth_date,
			barangay = EXCLUDED.barangay,
			philhealth_no = EXCLUDED.philhealth_no`,
		rp.ID, rp.PatientID, rp.BirthDate, rp.Barangay, rp.PhilhealthNo)
	return err
}

func (r *profileRepoPG) UpsertTransient(ctx context.Context, tp *TransientProfile) error {
	if tp.ID == uuid.Nil {
		tp.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO transient_profile (id, patient_id, birth_date, home_address)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (patient_id) DO UPDATE SET
			birth_date = EXCLUDED.birth_date,
			home_address = EXCLUDED.home_address`,
		tp.ID, tp.PatientID, tp.BirthDate, tp.HomeAddress)
	return err
}

func (r *profileRepoPG) GetResident(ctx context.Context, patientID uuid.UUID) (*ResidentProfile, error) {
	var rp ResidentProfile
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, birth_date, barangay, philhealth_no, created_at
		FROM resident_profile WHERE patient_id = $1`, patientID).
		Scan(&rp.ID, &rp.PatientID, &rp.BirthDate, &rp.Barangay, &rp.PhilhealthNo, &rp.CreatedAt)
	return &rp, err
}

func (r *profileRepoPG) GetTransient(ctx context.Context, patientID uuid.UUID) (*TransientProfile, error) {
	var tp TransientProfile
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, birth_date, home_address, created_at
		FROM transient_profile WHERE patient_id = $1`, patientID).
		Scan(&tp.ID, &tp.PatientID, &tp.BirthDate, &tp.HomeAddress, &tp.CreatedAt)
	return &tp, err
}
