package fpreport

import (
	"context"
	"errors"
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

// ledgerPG reads the CRUD tables (patient, fp_record, fp_followup) into the
// engine's view types. Method names and statuses are normalized here, at
// the boundary, so the aggregator only ever sees canonical values.
type ledgerPG struct{ pool *pgxpool.Pool }

func NewLedgerPG(pool *pgxpool.Pool) *ledgerPG {
	return &ledgerPG{pool: pool}
}

func (r *ledgerPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const episodeCols = `id, patient_id, method, client_type, subtype, created_at`

func scanEpisode(row pgx.Row) (*Episode, error) {
	var ep Episode
	err := row.Scan(&ep.ID, &ep.PatientID, &ep.Method, &ep.ClientType, &ep.Subtype, &ep.CreatedAt)
	if err != nil {
		return nil, err
	}
	ep.Method = NormalizeMethod(ep.Method)
	ep.ClientType = NormalizeStatus(ep.ClientType)
	return &ep, nil
}

const followUpCols = `f.id, f.patient_id, f.record_id, r.method, f.scheduled_date, f.status, f.status_changed_at`

const followUpJoin = ` FROM fp_followup f JOIN fp_record r ON r.id = f.record_id`

func scanFollowUp(row pgx.Row) (*FollowUp, error) {
	var fu FollowUp
	err := row.Scan(&fu.ID, &fu.PatientID, &fu.EpisodeID, &fu.Method,
		&fu.ScheduledDate, &fu.Status, &fu.StatusChangedAt)
	if err != nil {
		return nil, err
	}
	fu.Method = NormalizeMethod(fu.Method)
	fu.Status = NormalizeStatus(fu.Status)
	return &fu, nil
}

func (r *ledgerPG) Patients(ctx context.Context) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT p.id,
			CASE WHEN p.kind = 'resident' THEN rp.birth_date ELSE tp.birth_date END AS birth_date
		FROM patient p
		JOIN fp_record rec ON rec.patient_id = p.id
		LEFT JOIN resident_profile rp ON rp.patient_id = p.id
		LEFT JOIN transient_profile tp ON tp.patient_id = p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.BirthDate); err != nil {
			return nil, err
		}
		patients = append(patients, &p)
	}
	return patients, rows.Err()
}

func (r *ledgerPG) EpisodesForPatientInRange(ctx context.Context, patientID uuid.UUID, start, end time.Time) ([]*Episode, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+episodeCols+` FROM fp_record
		WHERE patient_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC`, patientID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

func (r *ledgerPG) FirstEpisodeDate(ctx context.Context, patientID uuid.UUID) (*time.Time, error) {
	// MIN over zero rows yields a NULL row, not ErrNoRows.
	var first *time.Time
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT MIN(created_at) FROM fp_record WHERE patient_id = $1`, patientID).Scan(&first)
	if err != nil {
		return nil, err
	}
	return first, nil
}

func (r *ledgerPG) HasCurrentUserEpisodeInRange(ctx context.Context, patientID uuid.UUID, start, end time.Time) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM fp_record
			WHERE patient_id = $1 AND LOWER(client_type) = $4
			  AND created_at >= $2 AND created_at < $3
		)`, patientID, start, end, ClientCurrentUser).Scan(&exists)
	return exists, err
}

func (r *ledgerPG) HasEpisodeOnOrAfter(ctx context.Context, patientID uuid.UUID, instant time.Time) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM fp_record WHERE patient_id = $1 AND created_at >= $2
		)`, patientID, instant).Scan(&exists)
	return exists, err
}

func (r *ledgerPG) LatestEpisodeBefore(ctx context.Context, patientID uuid.UUID, instant time.Time) (*Episode, error) {
	ep, err := scanEpisode(r.conn(ctx).QueryRow(ctx, `
		SELECT `+episodeCols+` FROM fp_record
		WHERE patient_id = $1 AND created_at < $2
		ORDER BY created_at DESC LIMIT 1`, patientID, instant))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ep, nil
}

func (r *ledgerPG) LatestFollowUpBefore(ctx context.Context, patientID uuid.UUID, instant time.Time) (*FollowUp, error) {
	fu, err := scanFollowUp(r.conn(ctx).QueryRow(ctx, `
		SELECT `+followUpCols+followUpJoin+`
		WHERE f.patient_id = $1 AND f.scheduled_date < $2
		ORDER BY f.scheduled_date DESC LIMIT 1`, patientID, instant))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return fu, nil
}

func (r *ledgerPG) FollowUpsForPatient(ctx context.Context, patientID uuid.UUID) ([]*FollowUp, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+followUpCols+followUpJoin+`
		WHERE f.patient_id = $1
		ORDER BY f.scheduled_date ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*FollowUp
	for rows.Next() {
		fu, err := scanFollowUp(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, fu)
	}
	return visits, rows.Err()
}

func (r *ledgerPG) PendingFollowUpsDueBefore(ctx context.Context, cutoff time.Time) ([]*FollowUp, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+followUpCols+followUpJoin+`
		WHERE LOWER(f.status) = $2 AND f.scheduled_date < $1
		ORDER BY f.patient_id, f.scheduled_date ASC`, cutoff, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*FollowUp
	for rows.Next() {
		fu, err := scanFollowUp(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, fu)
	}
	return visits, rows.Err()
}

func (r *ledgerPG) GetFollowUp(ctx context.Context, id uuid.UUID) (*FollowUp, error) {
	return scanFollowUp(r.conn(ctx).QueryRow(ctx, `
		SELECT `+followUpCols+followUpJoin+` WHERE f.id = $1`, id))
}

// TransitionFollowUp performs the compare-and-set on the stored status.
// The case-insensitive match tolerates legacy capitalized statuses.
func (r *ledgerPG) TransitionFollowUp(ctx context.Context, id uuid.UUID, from, to string, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE fp_followup SET status = $3, status_changed_at = $4
		WHERE id = $1 AND LOWER(status) = $2`, id, from, to, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ledgerPG) MarkEpisodeLapsed(ctx context.Context, episodeID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE fp_record SET subtype = $2, updated_at = NOW() WHERE id = $1`,
		episodeID, StatusDropout)
	return err
}
