package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/access-gate-service/internal/domain"
)

const admissionColumns = `id, subject_id, requested_at, processed, processed_at`

// AdmissionRepository encapsulates admission queue persistence. The
// partial unique index on (subject_id) WHERE processed=FALSE guarantees
// a single pending row per subject under concurrent enqueues.
type AdmissionRepository interface {
	// InsertPending creates a pending request, or returns pgx.ErrNoRows
	// when another pending row for the subject already exists.
	InsertPending(ctx context.Context, subjectID string, now time.Time) (*domain.AdmissionRequest, error)
	GetPending(ctx context.Context, subjectID string) (*domain.AdmissionRequest, error)
	ListReadyBefore(ctx context.Context, cutoff time.Time) ([]domain.AdmissionRequest, error)
	MarkProcessed(ctx context.Context, id string, now time.Time) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Counts(ctx context.Context) (pending, processed int64, err error)
}

type admissionRepository struct {
	db Querier
}

// NewAdmissionRepository instantiates repository.
func NewAdmissionRepository(db Querier) AdmissionRepository {
	return &admissionRepository{db: db}
}

func (r *admissionRepository) InsertPending(ctx context.Context, subjectID string, now time.Time) (*domain.AdmissionRequest, error) {
	const query = `
        INSERT INTO admission_requests (subject_id, requested_at)
        VALUES ($1, $2)
        ON CONFLICT (subject_id) WHERE processed = FALSE DO NOTHING
        RETURNING ` + admissionColumns
	return scanAdmission(r.db.QueryRow(ctx, query, subjectID, now))
}

func (r *admissionRepository) GetPending(ctx context.Context, subjectID string) (*domain.AdmissionRequest, error) {
	const query = `
        SELECT ` + admissionColumns + `
        FROM admission_requests WHERE subject_id=$1 AND processed=FALSE`
	return scanAdmission(r.db.QueryRow(ctx, query, subjectID))
}

func (r *admissionRepository) ListReadyBefore(ctx context.Context, cutoff time.Time) ([]domain.AdmissionRequest, error) {
	const query = `
        SELECT ` + admissionColumns + `
        FROM admission_requests
        WHERE processed=FALSE AND requested_at <= $1
        ORDER BY requested_at ASC`
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AdmissionRequest
	for rows.Next() {
		var req domain.AdmissionRequest
		if err := rows.Scan(&req.ID, &req.SubjectID, &req.RequestedAt, &req.Processed, &req.ProcessedAt); err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func (r *admissionRepository) MarkProcessed(ctx context.Context, id string, now time.Time) error {
	const query = `
        UPDATE admission_requests SET processed=TRUE, processed_at=$2
        WHERE id=$1 AND processed=FALSE`
	cmd, err := r.db.Exec(ctx, query, id, now)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *admissionRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
        DELETE FROM admission_requests
        WHERE processed=TRUE AND processed_at < $1`
	cmd, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *admissionRepository) Counts(ctx context.Context) (int64, int64, error) {
	const query = `
        SELECT COUNT(*) FILTER (WHERE NOT processed), COUNT(*) FILTER (WHERE processed)
        FROM admission_requests`
	var pending, processed int64
	if err := r.db.QueryRow(ctx, query).Scan(&pending, &processed); err != nil {
		return 0, 0, err
	}
	return pending, processed, nil
}

func scanAdmission(row pgx.Row) (*domain.AdmissionRequest, error) {
	var req domain.AdmissionRequest
	if err := row.Scan(&req.ID, &req.SubjectID, &req.RequestedAt, &req.Processed, &req.ProcessedAt); err != nil {
		return nil, err
	}
	return &req, nil
}
