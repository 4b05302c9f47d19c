package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lostfound-api/internal/models"
)

func TestItemRepositoryCreateIncrementsReporterCounter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewItemRepository(db)
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO items")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET items_found = items_found + 1")).
		WithArgs("owner-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO activity_logs")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	item := &models.Item{Name: "Umbrella", OwnerID: "owner-1", Status: models.ItemStatusPendingApproval, CreatedAt: now, UpdatedAt: now}
	err := repo.Create(context.Background(), item, &models.ActivityLog{Action: models.ActivityItemReported, CreatedAt: now})
	require.NoError(t, err)
	require.NotEmpty(t, item.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryListAppliesFiltersAndCursor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewItemRepository(db)
	created := time.Now().UTC()
	lost := false
	cursorAt := created.Add(time.Hour)
	rows := itemRow(sqlmock.NewRows(itemColumnNames), "item-1", "ACTIVE", created)
	mock.ExpectQuery(`(?s)SELECT id, name, description .* FROM items WHERE status IN \(\$1\) AND is_lost = \$2 AND \(created_at, id\) < \(\$3, \$4\) ORDER BY created_at DESC, id DESC LIMIT 11`).
		WithArgs(models.ItemStatusActive, false, cursorAt, "item-9").
		WillReturnRows(rows)

	items, err := repo.List(context.Background(), models.ItemFilter{
		Status: []models.ItemStatus{models.ItemStatusActive},
		IsLost: &lost,
		Cursor: &models.Cursor{CreatedAt: cursorAt, ID: "item-9"},
		Limit:  11,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, models.ItemStatusActive, items[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryTransitionWritesHistoryAndActivity(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewItemRepository(db)
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE items SET status = ?, updated_at = ?, donated_at = ?, donated_to = ?, donated_value = ? WHERE id = ? AND status = ?")).
		WillReturnRows(itemRow(sqlmock.NewRows(itemColumnNames), "item-1", "DONATED", now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO item_status_changes")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO activity_logs")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	to := "Campus Charity"
	value := decimal.RequireFromString("12.50")
	item, err := repo.Transition(context.Background(), TransitionParams{
		ItemID:       "item-1",
		From:         models.ItemStatusDonationReady,
		To:           models.ItemStatusDonated,
		ChangedBy:    "admin-1",
		At:           now,
		DonatedTo:    &to,
		DonatedValue: &value,
		Activity:     &models.ActivityLog{Action: models.ActivityItemDonated, CreatedAt: now},
	})
	require.NoError(t, err)
	require.Equal(t, models.ItemStatusDonated, item.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryTransitionClassifiesMisses(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewItemRepository(db)
	params := TransitionParams{ItemID: "item-1", From: models.ItemStatusPendingApproval, To: models.ItemStatusActive, At: time.Now()}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE items SET status")).WillReturnRows(sqlmock.NewRows(itemColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM items WHERE id = $1)")).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), params)
	require.ErrorIs(t, err, ErrStaleStatus)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE items SET status")).WillReturnRows(sqlmock.NewRows(itemColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM items WHERE id = $1)")).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err = repo.Transition(context.Background(), params)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryDeleteRejectsPendingClaims(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewItemRepository(db)
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE claim_requests SET status = $2")).
		WithArgs("item-1", models.ClaimStatusRejected, "admin-1", now, "item removed", models.ClaimStatusPending, "").
		WillReturnRows(claimRow(sqlmock.NewRows(claimColumnNames), "claim-1", "item-1", "user-1", "REJECTED", now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO activity_logs")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM items WHERE id = $1")).
		WithArgs("item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO activity_logs")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rejected, err := repo.Delete(context.Background(), "item-1", ClaimRejection{
		ReviewerID: "admin-1",
		Note:       "item removed",
		At:         now,
		Activity: func(c models.ClaimRequest) *models.ActivityLog {
			return &models.ActivityLog{Action: models.ActivityClaimRejected, TargetID: c.ID, CreatedAt: now}
		},
	}, &models.ActivityLog{Action: models.ActivityItemDeleted, CreatedAt: now})
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	require.Equal(t, "user-1", rejected[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryDeleteMissingItemRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewItemRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE claim_requests SET status = $2")).WillReturnRows(sqlmock.NewRows(claimColumnNames))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM items WHERE id = $1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Delete(context.Background(), "missing", ClaimRejection{Note: "item removed"}, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryListDonationCandidates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewItemRepository(db)
	cutoff := time.Now().UTC().AddDate(-1, 0, 0)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND is_lost = FALSE AND created_at <= $2")).
		WithArgs(models.ItemStatusActive, cutoff, 50).
		WillReturnRows(itemRow(sqlmock.NewRows(itemColumnNames), "item-1", "ACTIVE", cutoff.Add(-time.Hour)))

	items, err := repo.ListDonationCandidates(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
