package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/pkg/database"
)

const activityColumns = `id, actor_id, actor_email, action, target_type, target_id, previous_value, new_value, description, created_at`

// ActivityRepository reads the audit trail and moves aged entries into the archive table.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create appends a standalone activity entry.
func (r *ActivityRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return insertActivity(ctx, r.db, entry)
}

// List returns activity entries matching the filter, newest first.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 8)
	builder.WriteString("SELECT " + activityColumns + " FROM activity_logs")

	conditions := make([]string, 0, 6)
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}
	if filter.TargetType != "" {
		args = append(args, filter.TargetType)
		conditions = append(conditions, fmt.Sprintf("target_type = $%d", len(args)))
	}
	if filter.TargetID != "" {
		args = append(args, filter.TargetID)
		conditions = append(conditions, fmt.Sprintf("target_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if filter.Cursor != nil {
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 26
	}
	builder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", limit))

	var entries []models.ActivityLog
	if err := r.db.SelectContext(ctx, &entries, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}

// ArchiveOlderThan copies entries created before cutoff into activity_logs_archive and removes them
// from the live table in one transaction. Rows already archived by an interrupted run are not duplicated.
func (r *ActivityRepository) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	copyQuery := `INSERT INTO activity_logs_archive (` + activityColumns + `, archived_at)
	SELECT ` + activityColumns + `, $2 FROM activity_logs WHERE created_at < $1
	ON CONFLICT (id) DO NOTHING`
	const deleteQuery = `DELETE FROM activity_logs a
	USING activity_logs_archive z
	WHERE a.id = z.id AND a.created_at < $1`

	var moved int64
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, copyQuery, cutoff, time.Now().UTC()); err != nil {
			return fmt.Errorf("copy activity to archive: %w", err)
		}
		result, err := tx.ExecContext(ctx, deleteQuery, cutoff)
		if err != nil {
			return fmt.Errorf("delete archived activity: %w", err)
		}
		moved, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check archived rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}
