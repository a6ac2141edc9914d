package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/access-gate-service/internal/domain"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return mock
}

func tokenRow(token domain.Token) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "value", "issued_by", "plan_code", "valid_for_seconds", "issued_at",
		"expires_at", "redeemed", "redeemed_by", "redeemed_at", "archived", "created_at",
	}).AddRow(
		token.ID, token.Value, token.IssuedBy, token.PlanCode,
		int64(token.ValidFor.Seconds()), token.IssuedAt, token.ExpiresAt,
		token.Redeemed, token.RedeemedBy, token.RedeemedAt, token.Archived, token.CreatedAt,
	)
}

func TestTokenRepository_Create_OK(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewTokenRepository(mock)

	now := time.Now()
	token := &domain.Token{
		Value:     "tok-1",
		IssuedBy:  "op-1",
		ValidFor:  24 * time.Hour,
		IssuedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}

	mock.ExpectQuery(`INSERT INTO invite_tokens`).
		WithArgs("tok-1", "op-1", (*string)(nil), int64(86400), now, now.Add(24*time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("id-1", now))

	err := r.Create(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "id-1", token.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Create_UniqueViolation(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewTokenRepository(mock)

	now := time.Now()
	token := &domain.Token{
		Value:     "tok-dup",
		IssuedBy:  "op-1",
		ValidFor:  time.Hour,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}

	mock.ExpectQuery(`INSERT INTO invite_tokens`).
		WithArgs("tok-dup", "op-1", (*string)(nil), int64(3600), now, now.Add(time.Hour)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := r.Create(context.Background(), token)
	require.ErrorIs(t, err, domain.ErrTokenCollision)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Redeem_OK(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewTokenRepository(mock)

	now := time.Now()
	subject := "subj-1"
	redeemed := domain.Token{
		ID:         "id-1",
		Value:      "tok-1",
		IssuedBy:   "op-1",
		ValidFor:   24 * time.Hour,
		IssuedAt:   now.Add(-time.Hour),
		ExpiresAt:  now.Add(23 * time.Hour),
		Redeemed:   true,
		RedeemedBy: &subject,
		RedeemedAt: &now,
		CreatedAt:  now.Add(-time.Hour),
	}

	mock.ExpectQuery(`UPDATE invite_tokens SET redeemed=TRUE`).
		WithArgs("tok-1", "subj-1", now).
		WillReturnRows(tokenRow(redeemed))

	token, err := r.Redeem(context.Background(), "tok-1", "subj-1", now)
	require.NoError(t, err)
	require.True(t, token.Redeemed)
	require.Equal(t, 24*time.Hour, token.ValidFor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Redeem_NoMatch(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewTokenRepository(mock)

	now := time.Now()
	mock.ExpectQuery(`UPDATE invite_tokens SET redeemed=TRUE`).
		WithArgs("tok-gone", "subj-1", now).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.Redeem(context.Background(), "tok-gone", "subj-1", now)
	require.ErrorIs(t, err, pgx.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_ArchiveExpiredUnused(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewTokenRepository(mock)

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectExec(`UPDATE invite_tokens SET archived=TRUE`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	archived, err := r.ArchiveExpiredUnused(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(3), archived)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Counts(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewTokenRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(\*\) FILTER \(WHERE redeemed\)`).
		WillReturnRows(pgxmock.NewRows([]string{"count", "count"}).AddRow(int64(10), int64(4)))

	issued, redeemed, err := r.Counts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(10), issued)
	require.Equal(t, int64(4), redeemed)
	require.NoError(t, mock.ExpectationsWereMet())
}
