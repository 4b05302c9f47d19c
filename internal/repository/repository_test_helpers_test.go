package repository

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var itemColumnNames = []string{"id", "name", "description", "location", "contact_info", "is_lost", "status", "category",
	"owner_id", "owner_email", "image_ref", "approved_by", "approved_at", "review_notes", "eligible_at", "donated_at",
	"donated_to", "donated_value", "created_at", "updated_at"}

func itemRow(rows *sqlmock.Rows, id, status string, created time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "Blue umbrella", "left in hall B", "Hall B", "", false, status, "ACCESSORY",
		"owner-1", "owner@campus.edu", nil, nil, nil, nil, nil, nil, nil, nil, created, created)
}

var claimColumnNames = []string{"id", "item_id", "item_name", "user_id", "user_email", "user_phone", "reason",
	"proof_description", "status", "requested_at", "reviewed_by", "reviewed_at", "review_notes"}

func claimRow(rows *sqlmock.Rows, id, itemID, userID, status string, at time.Time) *sqlmock.Rows {
	return rows.AddRow(id, itemID, "Blue umbrella", userID, userID+"@campus.edu", nil, "mine", "initials on handle",
		status, at, nil, nil, nil)
}
