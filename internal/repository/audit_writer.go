package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lostfound-api/internal/models"
)

// ErrStaleStatus reports that a conditional status write found the row in a different state.
var ErrStaleStatus = errors.New("status precondition failed")

const insertActivitySQL = `INSERT INTO activity_logs
	(id, actor_id, actor_email, action, target_type, target_id, previous_value, new_value, description, created_at)
	VALUES (:id, :actor_id, :actor_email, :action, :target_type, :target_id, :previous_value, :new_value, :description, :created_at)`

const insertStatusChangeSQL = `INSERT INTO item_status_changes
	(id, item_id, previous_status, new_status, changed_by, reason, changed_at)
	VALUES (:id, :item_id, :previous_status, :new_status, :changed_by, :reason, :changed_at)`

func insertActivity(ctx context.Context, ext sqlx.ExtContext, entry *models.ActivityLog) error {
	if entry == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if _, err := sqlx.NamedExecContext(ctx, ext, insertActivitySQL, entry); err != nil {
		return fmt.Errorf("insert activity %s: %w", entry.Action, err)
	}
	return nil
}

func insertStatusChange(ctx context.Context, ext sqlx.ExtContext, change *models.StatusChange) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	if _, err := sqlx.NamedExecContext(ctx, ext, insertStatusChangeSQL, change); err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}
	return nil
}
