package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func admissionRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "subject_id", "requested_at", "processed", "processed_at"})
}

func TestAdmissionRepository_InsertPending_OK(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewAdmissionRepository(mock)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO admission_requests`).
		WithArgs("subj-1", now).
		WillReturnRows(admissionRows().AddRow("req-1", "subj-1", now, false, nil))

	req, err := r.InsertPending(context.Background(), "subj-1", now)
	require.NoError(t, err)
	require.Equal(t, "req-1", req.ID)
	require.False(t, req.Processed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepository_InsertPending_Conflict(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewAdmissionRepository(mock)

	now := time.Now()
	// ON CONFLICT DO NOTHING returns no row for an existing pending entry
	mock.ExpectQuery(`INSERT INTO admission_requests`).
		WithArgs("subj-1", now).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.InsertPending(context.Background(), "subj-1", now)
	require.ErrorIs(t, err, pgx.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepository_ListReadyBefore_FIFO(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewAdmissionRepository(mock)

	now := time.Now()
	cutoff := now.Add(-10 * time.Minute)
	mock.ExpectQuery(`WHERE processed=FALSE AND requested_at <= \$1`).
		WithArgs(cutoff).
		WillReturnRows(admissionRows().
			AddRow("req-1", "subj-1", now.Add(-time.Hour), false, nil).
			AddRow("req-2", "subj-2", now.Add(-30*time.Minute), false, nil))

	ready, err := r.ListReadyBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, ready, 2)
	require.Equal(t, "req-1", ready[0].ID)
	require.Equal(t, "req-2", ready[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepository_MarkProcessed_AlreadyProcessed(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewAdmissionRepository(mock)

	now := time.Now()
	mock.ExpectExec(`UPDATE admission_requests SET processed=TRUE`).
		WithArgs("req-1", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := r.MarkProcessed(context.Background(), "req-1", now)
	require.ErrorIs(t, err, pgx.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepository_DeleteProcessedBefore(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewAdmissionRepository(mock)

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectExec(`DELETE FROM admission_requests`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	removed, err := r.DeleteProcessedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(7), removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepository_Counts(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewAdmissionRepository(mock)

	mock.ExpectQuery(`FROM admission_requests`).
		WillReturnRows(pgxmock.NewRows([]string{"pending", "processed"}).AddRow(int64(3), int64(12)))

	pending, processed, err := r.Counts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), pending)
	require.Equal(t, int64(12), processed)
	require.NoError(t, mock.ExpectationsWereMet())
}
