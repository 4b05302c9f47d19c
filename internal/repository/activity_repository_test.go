package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lostfound-api/internal/models"
)

func TestActivityRepositoryArchiveMovesRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActivityRepository(db)
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO activity_logs_archive")).
		WithArgs(cutoff, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM activity_logs a")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	moved, err := repo.ArchiveOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 3, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryArchiveRollsBackOnDeleteFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActivityRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO activity_logs_archive")).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM activity_logs a")).WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	moved, err := repo.ArchiveOlderThan(context.Background(), time.Now())
	require.Error(t, err)
	require.Zero(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActivityRepository(db)
	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)
	rows := sqlmock.NewRows([]string{"id", "actor_id", "actor_email", "action", "target_type", "target_id",
		"previous_value", "new_value", "description", "created_at"}).
		AddRow("log-1", "sec-1", nil, models.ActivityItemRejected, models.TargetItem, "item1", "PENDING_APPROVAL", "REJECTED", "Rejected: damaged", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM activity_logs WHERE action = $1 AND target_id = $2 AND created_at >= $3 ORDER BY created_at DESC, id DESC LIMIT 26")).
		WithArgs(models.ActivityItemRejected, "item1", from).
		WillReturnRows(rows)

	entries, err := repo.List(context.Background(), models.ActivityFilter{Action: models.ActivityItemRejected, TargetID: "item1", From: &from})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "Rejected: damaged", entries[0].Description)
	require.NoError(t, mock.ExpectationsWereMet())
}
