package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/access-gate-service/internal/domain"
)

const membershipColumns = `id, subject_id, source_token_id, status, activated_at,
               expires_at, revoked_at, created_at, updated_at`

// MembershipRepository encapsulates membership persistence. The partial
// unique index on (subject_id) WHERE status='ACTIVE' makes UpsertActive
// safe under concurrent activation.
type MembershipRepository interface {
	// UpsertActive creates an active membership or extends the existing
	// one from GREATEST(current expiry, now), never shortening it.
	UpsertActive(ctx context.Context, subjectID string, sourceTokenID *string, duration time.Duration, now time.Time) (*domain.Membership, error)
	GetActiveBySubject(ctx context.Context, subjectID string) (*domain.Membership, error)
	ListExpiredActive(ctx context.Context, now time.Time) ([]domain.Membership, error)
	MarkExpired(ctx context.Context, id string, now time.Time) error
	Counts(ctx context.Context) (active, expired int64, err error)
	WithTx(tx pgx.Tx) MembershipRepository
}

type membershipRepository struct {
	db Querier
}

// NewMembershipRepository instantiates repository.
func NewMembershipRepository(db Querier) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) WithTx(tx pgx.Tx) MembershipRepository {
	return &membershipRepository{db: tx}
}

func (r *membershipRepository) UpsertActive(ctx context.Context, subjectID string, sourceTokenID *string, duration time.Duration, now time.Time) (*domain.Membership, error) {
	const query = `
        INSERT INTO memberships (subject_id, source_token_id, status, activated_at, expires_at, updated_at)
        VALUES ($1, $2, 'ACTIVE', $3, $3 + make_interval(secs => $4), $3)
        ON CONFLICT (subject_id) WHERE status = 'ACTIVE'
        DO UPDATE SET
            expires_at = GREATEST(memberships.expires_at, EXCLUDED.activated_at) + make_interval(secs => $4),
            source_token_id = COALESCE(EXCLUDED.source_token_id, memberships.source_token_id),
            updated_at = EXCLUDED.activated_at
        RETURNING ` + membershipColumns
	return scanMembership(r.db.QueryRow(ctx, query, subjectID, sourceTokenID, now, duration.Seconds()))
}

func (r *membershipRepository) GetActiveBySubject(ctx context.Context, subjectID string) (*domain.Membership, error) {
	const query = `
        SELECT ` + membershipColumns + `
        FROM memberships WHERE subject_id=$1 AND status='ACTIVE'`
	return scanMembership(r.db.QueryRow(ctx, query, subjectID))
}

func (r *membershipRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]domain.Membership, error) {
	const query = `
        SELECT ` + membershipColumns + `
        FROM memberships
        WHERE status='ACTIVE' AND expires_at <= $1
        ORDER BY expires_at ASC`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemberships(rows)
}

func (r *membershipRepository) MarkExpired(ctx context.Context, id string, now time.Time) error {
	const query = `
        UPDATE memberships SET status='EXPIRED', revoked_at=$2, updated_at=$2
        WHERE id=$1 AND status='ACTIVE'`
	cmd, err := r.db.Exec(ctx, query, id, now)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *membershipRepository) Counts(ctx context.Context) (int64, int64, error) {
	const query = `
        SELECT COUNT(*) FILTER (WHERE status='ACTIVE'), COUNT(*) FILTER (WHERE status='EXPIRED')
        FROM memberships`
	var active, expired int64
	if err := r.db.QueryRow(ctx, query).Scan(&active, &expired); err != nil {
		return 0, 0, err
	}
	return active, expired, nil
}

func scanMembership(row pgx.Row) (*domain.Membership, error) {
	var m domain.Membership
	if err := row.Scan(
		&m.ID,
		&m.SubjectID,
		&m.SourceTokenID,
		&m.Status,
		&m.ActivatedAt,
		&m.ExpiresAt,
		&m.RevokedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMemberships(rows pgx.Rows) ([]domain.Membership, error) {
	var result []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(
			&m.ID,
			&m.SubjectID,
			&m.SourceTokenID,
			&m.Status,
			&m.ActivatedAt,
			&m.ExpiresAt,
			&m.RevokedAt,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
