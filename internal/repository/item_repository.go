package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/pkg/database"
)

const itemColumns = `id, name, description, location, contact_info, is_lost, status, category, owner_id, owner_email,
       image_ref, approved_by, approved_at, review_notes, eligible_at, donated_at, donated_to, donated_value, created_at, updated_at`

// ItemRepository persists lost and found reports and their status history.
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository constructs the repository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts a report, bumps the reporter's counter and records the activity entry atomically.
func (r *ItemRepository) Create(ctx context.Context, item *models.Item, entry *models.ActivityLog) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	counter := "items_found"
	if item.IsLost {
		counter = "items_reported"
	}
	const insert = `INSERT INTO items
	(id, name, description, location, contact_info, is_lost, status, category, owner_id, owner_email, image_ref, eligible_at, created_at, updated_at)
	VALUES (:id, :name, :description, :location, :contact_info, :is_lost, :status, :category, :owner_id, :owner_email, :image_ref, :eligible_at, :created_at, :updated_at)`
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insert, item); err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		query := fmt.Sprintf("UPDATE users SET %s = %s + 1, updated_at = $2 WHERE id = $1", counter, counter)
		if _, err := tx.ExecContext(ctx, query, item.OwnerID, item.CreatedAt); err != nil {
			return fmt.Errorf("increment %s: %w", counter, err)
		}
		return insertActivity(ctx, tx, entry)
	})
}

// GetByID fetches an item by identifier.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*models.Item, error) {
	query := "SELECT " + itemColumns + " FROM items WHERE id = $1"
	var item models.Item
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns items matching the filter ordered newest first, fetching filter.Limit rows.
func (r *ItemRepository) List(ctx context.Context, filter models.ItemFilter) ([]models.Item, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 8)
	builder.WriteString("SELECT " + itemColumns + " FROM items")

	conditions := make([]string, 0, 6)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.IsLost != nil {
		args = append(args, *filter.IsLost)
		conditions = append(conditions, fmt.Sprintf("is_lost = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR location ILIKE $%d)", len(args), len(args), len(args)))
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

	var items []models.Item
	if err := r.db.SelectContext(ctx, &items, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// ListDonationCandidates returns active found items created at or before cutoff, oldest first.
func (r *ItemRepository) ListDonationCandidates(ctx context.Context, cutoff time.Time, limit int) ([]models.Item, error) {
	query := "SELECT " + itemColumns + ` FROM items
	WHERE status = $1 AND is_lost = FALSE AND created_at <= $2
	ORDER BY created_at ASC, id ASC LIMIT $3`
	var items []models.Item
	if err := r.db.SelectContext(ctx, &items, query, models.ItemStatusActive, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list donation candidates: %w", err)
	}
	return items, nil
}

// History returns the status changes recorded for an item, oldest first.
func (r *ItemRepository) History(ctx context.Context, itemID string) ([]models.StatusChange, error) {
	const query = `SELECT id, item_id, previous_status, new_status, changed_by, reason, changed_at
	FROM item_status_changes WHERE item_id = $1 ORDER BY changed_at ASC, id ASC`
	var changes []models.StatusChange
	if err := r.db.SelectContext(ctx, &changes, query, itemID); err != nil {
		return nil, fmt.Errorf("list item history: %w", err)
	}
	return changes, nil
}

// TransitionParams describes one conditional item status change.
type TransitionParams struct {
	ItemID    string
	From      models.ItemStatus
	To        models.ItemStatus
	ChangedBy string
	Reason    *string
	At        time.Time

	ApprovedBy   *string
	ReviewNotes  *string
	DonatedTo    *string
	DonatedValue *decimal.Decimal

	Activity *models.ActivityLog
}

// Transition applies a conditional status write together with its history row and activity entry.
// It returns sql.ErrNoRows when the item does not exist and ErrStaleStatus when its status is not From.
func (r *ItemRepository) Transition(ctx context.Context, params TransitionParams) (*models.Item, error) {
	var item *models.Item
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		item, err = transitionItem(ctx, tx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes an item, rejecting any pending claims against it in the same transaction.
// The rejected claims are returned so their claimants can be told.
func (r *ItemRepository) Delete(ctx context.Context, itemID string, rejection ClaimRejection, entry *models.ActivityLog) ([]models.ClaimRequest, error) {
	var rejected []models.ClaimRequest
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		rejected, err = rejectPendingClaims(ctx, tx, itemID, "", rejection)
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id = $1", itemID)
		if err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check item delete rows: %w", err)
		}
		if rows == 0 {
			return sql.ErrNoRows
		}
		return insertActivity(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

func transitionItem(ctx context.Context, ext sqlx.ExtContext, params TransitionParams) (*models.Item, error) {
	setParts := []string{"status = :to", "updated_at = :at"}
	if params.ApprovedBy != nil {
		setParts = append(setParts, "approved_by = :approved_by", "approved_at = :at")
	}
	if params.ReviewNotes != nil {
		setParts = append(setParts, "review_notes = :review_notes")
	}
	if params.To == models.ItemStatusDonated {
		setParts = append(setParts, "donated_at = :at", "donated_to = :donated_to", "donated_value = :donated_value")
	}
	var donatedValue decimal.NullDecimal
	if params.DonatedValue != nil {
		donatedValue = decimal.NewNullDecimal(*params.DonatedValue)
	}
	query := fmt.Sprintf("UPDATE items SET %s WHERE id = :id AND status = :from RETURNING %s",
		strings.Join(setParts, ", "), itemColumns)
	query, args, err := sqlx.Named(query, map[string]interface{}{
		"id":            params.ItemID,
		"from":          params.From,
		"to":            params.To,
		"at":            params.At,
		"approved_by":   params.ApprovedBy,
		"review_notes":  params.ReviewNotes,
		"donated_to":    params.DonatedTo,
		"donated_value": donatedValue,
	})
	if err != nil {
		return nil, fmt.Errorf("bind item transition: %w", err)
	}
	var item models.Item
	if err := sqlx.GetContext(ctx, ext, &item, ext.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, classifyMissedTransition(ctx, ext, params.ItemID)
		}
		return nil, fmt.Errorf("update item status: %w", err)
	}
	if err := insertStatusChange(ctx, ext, &models.StatusChange{
		ItemID:         params.ItemID,
		PreviousStatus: params.From,
		NewStatus:      params.To,
		ChangedBy:      params.ChangedBy,
		Reason:         params.Reason,
		ChangedAt:      params.At,
	}); err != nil {
		return nil, err
	}
	if err := insertActivity(ctx, ext, params.Activity); err != nil {
		return nil, err
	}
	return &item, nil
}

func classifyMissedTransition(ctx context.Context, ext sqlx.ExtContext, itemID string) error {
	var exists bool
	if err := sqlx.GetContext(ctx, ext, &exists, "SELECT EXISTS(SELECT 1 FROM items WHERE id = $1)", itemID); err != nil {
		return fmt.Errorf("check item exists: %w", err)
	}
	if !exists {
		return sql.ErrNoRows
	}
	return ErrStaleStatus
}
