package familyplanning

import (
	"context"
	"time"

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

// =========== Record Repository ===========

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const recordCols = `id, patient_id, client_type, method, subtype, next_visit_date,
	provider_name, remarks, created_at, updated_at`

func (r *recordRepoPG) scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.ClientType, &rec.Method, &rec.Subtype,
		&rec.NextVisitDate, &rec.ProviderName, &rec.Remarks, &rec.CreatedAt, &rec.UpdatedAt)
	return &rec, err
}

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO fp_record (id, patient_id, client_type, method, subtype, next_visit_date,
			provider_name, remarks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.PatientID, rec.ClientType, rec.Method, rec.Subtype, rec.NextVisitDate,
		rec.ProviderName, rec.Remarks)
	return err
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return r.scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM fp_record WHERE id = $1`, id))
}

func (r *recordRepoPG) Update(ctx context.Context, rec *Record) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE fp_record SET client_type=$2, method=$3, subtype=$4, next_visit_date=$5,
			provider_name=$6, remarks=$7, updated_at=NOW()
		WHERE id=$1`,
		rec.ID, rec.ClientType, rec.Method, rec.Subtype, rec.NextVisitDate,
		rec.ProviderName, rec.Remarks)
	return err
}

func (r *recordRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM fp_record WHERE id = $1`, id)
	return err
}

func (r *recordRepoPG) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM fp_record`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM fp_record ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM fp_record WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM fp_record WHERE patient_id = $1
		 ORDER BY created_at ASC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// =========== FollowUp Repository ===========

type followUpRepoPG struct{ pool *pgxpool.Pool }

func NewFollowUpRepoPG(pool *pgxpool.Pool) FollowUpRepository {
	return &followUpRepoPG{pool: pool}
}

func (r *followUpRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const followUpCols = `id, patient_id, record_id, scheduled_date, status, status_changed_at, created_at`

func (r *followUpRepoPG) scanFollowUp(row pgx.Row) (*FollowUpVisit, error) {
	var fu FollowUpVisit
	err := row.Scan(&fu.ID, &fu.PatientID, &fu.RecordID, &fu.ScheduledDate,
		&fu.Status, &fu.StatusChangedAt, &fu.CreatedAt)
	return &fu, err
}

func (r *followUpRepoPG) Create(ctx context.Context, fu *FollowUpVisit) error {
	fu.ID = uuid.New()
	if fu.Status == "" {
		fu.Status = StatusPending
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO fp_followup (id, patient_id, record_id, scheduled_date, status)
		VALUES ($1,$2,$3,$4,$5)`,
		fu.ID, fu.PatientID, fu.RecordID, fu.ScheduledDate, fu.Status)
	return err
}

func (r *followUpRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*FollowUpVisit, error) {
	return r.scanFollowUp(r.conn(ctx).QueryRow(ctx,
		`SELECT `+followUpCols+` FROM fp_followup WHERE id = $1`, id))
}

func (r *followUpRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*FollowUpVisit, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+followUpCols+` FROM fp_followup WHERE patient_id = $1
		 ORDER BY scheduled_date ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*FollowUpVisit
	for rows.Next() {
		fu, err := r.scanFollowUp(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, fu)
	}
	return visits, rows.Err()
}

func (r *followUpRepoPG) CompletePending(ctx context.Context, patientID uuid.UUID, at time.Time) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE fp_followup SET status = $3, status_changed_at = $2
		WHERE patient_id = $1 AND status = $4`,
		patientID, at, StatusCompleted, StatusPending)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
