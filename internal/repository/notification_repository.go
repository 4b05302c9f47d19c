package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lostfound-api/internal/models"
)

const notificationColumns = `id, recipient_id, delivery_token, title, body, type, item_id, claim_id, delivery_status,
       attempts, last_error, delivered_at, opened, opened_at, created_at`

// NotificationRepository persists delivery requests and their delivery/open state.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateBatch inserts one row per recipient in a single statement.
func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	for i := range notifications {
		if notifications[i].ID == "" {
			notifications[i].ID = uuid.NewString()
		}
	}
	const query = `INSERT INTO notifications
	(id, recipient_id, delivery_token, title, body, type, item_id, claim_id, delivery_status, attempts, created_at)
	VALUES (:id, :recipient_id, :delivery_token, :title, :body, :type, :item_id, :claim_id, :delivery_status, :attempts, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notifications); err != nil {
		return fmt.Errorf("create notifications: %w", err)
	}
	return nil
}

// ListForRecipient returns a recipient's notifications newest first.
func (r *NotificationRepository) ListForRecipient(ctx context.Context, recipientID string, cursor *models.Cursor, limit int) ([]models.Notification, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT " + notificationColumns + " FROM notifications WHERE recipient_id = $1")
	args := []interface{}{recipientID}
	if cursor != nil {
		args = append(args, cursor.CreatedAt, cursor.ID)
		builder.WriteString(" AND (created_at, id) < ($2, $3)")
	}
	builder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", limit))

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// ListPending returns the oldest undelivered notifications.
func (r *NotificationRepository) ListPending(ctx context.Context, limit int) ([]models.Notification, error) {
	query := "SELECT " + notificationColumns + ` FROM notifications
	WHERE delivery_status = $1 ORDER BY created_at ASC, id ASC LIMIT $2`
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, models.DeliveryPending, limit); err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	return notifications, nil
}

// MarkSent records a successful hand-off to the delivery stream.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE notifications SET delivery_status = $2, attempts = attempts + 1, delivered_at = $3, last_error = NULL
	WHERE id = $1 AND delivery_status = $4`
	result, err := r.db.ExecContext(ctx, query, id, models.DeliverySent, at, models.DeliveryPending)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return requireRow(result)
}

// MarkAttemptFailed counts a failed hand-off, giving up once maxAttempts is reached.
func (r *NotificationRepository) MarkAttemptFailed(ctx context.Context, id, reason string, maxAttempts int) error {
	const query = `UPDATE notifications
	SET attempts = attempts + 1,
	    last_error = $2,
	    delivery_status = CASE WHEN attempts + 1 >= $3 THEN $4 ELSE delivery_status END
	WHERE id = $1 AND delivery_status = $5`
	result, err := r.db.ExecContext(ctx, query, id, reason, maxAttempts, models.DeliveryFailed, models.DeliveryPending)
	if err != nil {
		return fmt.Errorf("mark notification attempt failed: %w", err)
	}
	return requireRow(result)
}

// MarkOpened flags a recipient's notification as opened. Reopening keeps the first timestamp.
func (r *NotificationRepository) MarkOpened(ctx context.Context, id, recipientID string, at time.Time) error {
	const query = `UPDATE notifications SET opened = TRUE, opened_at = COALESCE(opened_at, $3)
	WHERE id = $1 AND recipient_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, recipientID, at)
	if err != nil {
		return fmt.Errorf("mark notification opened: %w", err)
	}
	return requireRow(result)
}

// Stats aggregates delivery and open counts, optionally for a single recipient.
func (r *NotificationRepository) Stats(ctx context.Context, recipientID string) (*models.NotificationStats, error) {
	query := `SELECT COUNT(*) AS total,
	COUNT(*) FILTER (WHERE delivery_status = 'PENDING') AS pending,
	COUNT(*) FILTER (WHERE delivery_status = 'SENT') AS sent,
	COUNT(*) FILTER (WHERE delivery_status = 'FAILED') AS failed,
	COUNT(*) FILTER (WHERE delivery_status = 'SKIPPED') AS skipped,
	COUNT(*) FILTER (WHERE opened) AS opened
	FROM notifications`
	args := []interface{}{}
	if recipientID != "" {
		query += " WHERE recipient_id = $1"
		args = append(args, recipientID)
	}
	var stats models.NotificationStats
	if err := r.db.GetContext(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("notification stats: %w", err)
	}
	return &stats, nil
}

