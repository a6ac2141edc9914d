package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/access-gate-service/internal/domain"
)

const tokenColumns = `id, value, issued_by, plan_code, valid_for_seconds, issued_at,
               expires_at, redeemed, redeemed_by, redeemed_at, archived, created_at`

// TokenRepository encapsulates invite token persistence. Tokens are
// append-only: redemption flips exactly one flag, rows are never deleted.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.Token) error
	GetByValue(ctx context.Context, value string) (*domain.Token, error)
	// Redeem performs the atomic check-and-set: it succeeds only when the
	// row is still unredeemed and unexpired at the supplied instant, and
	// returns pgx.ErrNoRows otherwise.
	Redeem(ctx context.Context, value, subjectID string, now time.Time) (*domain.Token, error)
	ArchiveExpiredUnused(ctx context.Context, before time.Time) (int64, error)
	Counts(ctx context.Context) (issued, redeemed int64, err error)
	WithTx(tx pgx.Tx) TokenRepository
}

type tokenRepository struct {
	db Querier
}

// NewTokenRepository instantiates repository.
func NewTokenRepository(db Querier) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) WithTx(tx pgx.Tx) TokenRepository {
	return &tokenRepository{db: tx}
}

func (r *tokenRepository) Create(ctx context.Context, token *domain.Token) error {
	const query = `
        INSERT INTO invite_tokens (value, issued_by, plan_code, valid_for_seconds, issued_at, expires_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		token.Value,
		token.IssuedBy,
		token.PlanCode,
		int64(token.ValidFor.Seconds()),
		token.IssuedAt,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrTokenCollision
		}
		return err
	}
	return nil
}

func (r *tokenRepository) GetByValue(ctx context.Context, value string) (*domain.Token, error) {
	const query = `
        SELECT ` + tokenColumns + `
        FROM invite_tokens WHERE value=$1`
	return scanToken(r.db.QueryRow(ctx, query, value))
}

func (r *tokenRepository) Redeem(ctx context.Context, value, subjectID string, now time.Time) (*domain.Token, error) {
	const query = `
        UPDATE invite_tokens SET redeemed=TRUE, redeemed_by=$2, redeemed_at=$3
        WHERE value=$1 AND redeemed=FALSE AND expires_at > $3
        RETURNING ` + tokenColumns
	return scanToken(r.db.QueryRow(ctx, query, value, subjectID, now))
}

func (r *tokenRepository) ArchiveExpiredUnused(ctx context.Context, before time.Time) (int64, error) {
	const query = `
        UPDATE invite_tokens SET archived=TRUE
        WHERE archived=FALSE AND redeemed=FALSE AND expires_at < $1`
	cmd, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *tokenRepository) Counts(ctx context.Context) (int64, int64, error) {
	const query = `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE redeemed)
        FROM invite_tokens`
	var issued, redeemed int64
	if err := r.db.QueryRow(ctx, query).Scan(&issued, &redeemed); err != nil {
		return 0, 0, err
	}
	return issued, redeemed, nil
}

func scanToken(row pgx.Row) (*domain.Token, error) {
	var token domain.Token
	var validForSeconds int64
	if err := row.Scan(
		&token.ID,
		&token.Value,
		&token.IssuedBy,
		&token.PlanCode,
		&validForSeconds,
		&token.IssuedAt,
		&token.ExpiresAt,
		&token.Redeemed,
		&token.RedeemedBy,
		&token.RedeemedAt,
		&token.Archived,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	token.ValidFor = time.Duration(validForSeconds) * time.Second
	return &token, nil
}
