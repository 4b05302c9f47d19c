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

	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/pkg/database"
)

// PendingClaimConstraint is the partial unique index allowing one pending claim per item and user.
const PendingClaimConstraint = "claim_requests_one_pending_per_user"

const claimColumns = `id, item_id, item_name, user_id, user_email, user_phone, reason, proof_description, status,
       requested_at, reviewed_by, reviewed_at, review_notes`

// ClaimRepository persists claim requests and the item transitions they drive.
type ClaimRepository struct {
	db *sqlx.DB
}

// NewClaimRepository constructs the repository.
func NewClaimRepository(db *sqlx.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// ClaimRejection describes how pending claims are closed by a reviewer or a cascading action.
type ClaimRejection struct {
	ReviewerID string
	Note       string
	At         time.Time
	// Activity builds the audit entry for each rejected claim; nil skips auditing.
	Activity func(models.ClaimRequest) *models.ActivityLog
}

// CreateClaimParams groups the writes performed when a claim is submitted.
type CreateClaimParams struct {
	Claim    *models.ClaimRequest
	Activity *models.ActivityLog
	// Request moves the item from ACTIVE to REQUESTED when it is still ACTIVE.
	Request TransitionParams
}

// Create inserts a pending claim and marks its item as requested in one transaction.
// It returns sql.ErrNoRows when the item is missing and ErrStaleStatus when the item cannot be claimed.
func (r *ClaimRepository) Create(ctx context.Context, params CreateClaimParams) error {
	claim := params.Claim
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	const insert = `INSERT INTO claim_requests
	(id, item_id, item_name, user_id, user_email, user_phone, reason, proof_description, status, requested_at)
	VALUES (:id, :item_id, :item_name, :user_id, :user_email, :user_phone, :reason, :proof_description, :status, :requested_at)`
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var status models.ItemStatus
		if err := tx.GetContext(ctx, &status, "SELECT status FROM items WHERE id = $1 FOR UPDATE", claim.ItemID); err != nil {
			return err
		}
		switch status {
		case models.ItemStatusActive:
			if _, err := transitionItem(ctx, tx, params.Request); err != nil {
				return err
			}
		case models.ItemStatusRequested:
		default:
			return ErrStaleStatus
		}
		if _, err := tx.NamedExecContext(ctx, insert, claim); err != nil {
			return fmt.Errorf("create claim: %w", err)
		}
		return insertActivity(ctx, tx, params.Activity)
	})
}

// GetByID fetches a claim by identifier.
func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*models.ClaimRequest, error) {
	query := "SELECT " + claimColumns + " FROM claim_requests WHERE id = $1"
	var claim models.ClaimRequest
	if err := r.db.GetContext(ctx, &claim, query, id); err != nil {
		return nil, err
	}
	return &claim, nil
}

// List returns claims matching the filter, newest first.
func (r *ClaimRepository) List(ctx context.Context, filter models.ClaimFilter) ([]models.ClaimRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 5)
	builder.WriteString("SELECT " + claimColumns + " FROM claim_requests")

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ItemID != "" {
		args = append(args, filter.ItemID)
		conditions = append(conditions, fmt.Sprintf("item_id = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY requested_at DESC, id DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var claims []models.ClaimRequest
	if err := r.db.SelectContext(ctx, &claims, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

// HasPending reports whether the user already has a pending claim on the item.
func (r *ClaimRepository) HasPending(ctx context.Context, itemID, userID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM claim_requests WHERE item_id = $1 AND user_id = $2 AND status = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, itemID, userID, models.ClaimStatusPending); err != nil {
		return false, fmt.Errorf("check pending claim: %w", err)
	}
	return exists, nil
}

// ApproveClaimParams groups the writes performed when a claim is approved.
type ApproveClaimParams struct {
	ClaimID    string
	ReviewerID string
	Notes      *string
	At         time.Time
	Activity   *models.ActivityLog
	// Return moves the claimed item from REQUESTED to RETURNED.
	Return   TransitionParams
	Siblings ClaimRejection
}

// ApproveClaimResult carries the decided claim and the sibling claims closed alongside it.
type ApproveClaimResult struct {
	Claim    models.ClaimRequest
	Item     models.Item
	Siblings []models.ClaimRequest
}

// Approve decides a pending claim, returns the item, closes sibling claims and credits the claimant.
func (r *ClaimRepository) Approve(ctx context.Context, params ApproveClaimParams) (*ApproveClaimResult, error) {
	result := &ApproveClaimResult{}
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		claim, err := decideClaim(ctx, tx, params.ClaimID, models.ClaimStatusApproved, params.ReviewerID, params.Notes, params.At)
		if err != nil {
			return err
		}
		result.Claim = *claim

		params.Return.ItemID = claim.ItemID
		item, err := transitionItem(ctx, tx, params.Return)
		if err != nil {
			return err
		}
		result.Item = *item

		result.Siblings, err = rejectPendingClaims(ctx, tx, claim.ItemID, claim.ID, params.Siblings)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE users SET items_claimed = items_claimed + 1, updated_at = $2 WHERE id = $1", claim.UserID, params.At); err != nil {
			return fmt.Errorf("increment items_claimed: %w", err)
		}
		return insertActivity(ctx, tx, params.Activity)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RejectClaimParams groups the writes performed when a claim is rejected.
type RejectClaimParams struct {
	ClaimID    string
	ReviewerID string
	Notes      *string
	At         time.Time
	Activity   *models.ActivityLog
	// Reopen moves the item back from REQUESTED to ACTIVE once no pending claim remains.
	Reopen TransitionParams
}

// RejectClaimResult reports the decided claim and whether its item went back to ACTIVE.
type RejectClaimResult struct {
	Claim    models.ClaimRequest
	Reopened bool
}

// Reject decides a pending claim negatively, reopening the item when it was the last pending claim.
func (r *ClaimRepository) Reject(ctx context.Context, params RejectClaimParams) (*RejectClaimResult, error) {
	result := &RejectClaimResult{}
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		claim, err := decideClaim(ctx, tx, params.ClaimID, models.ClaimStatusRejected, params.ReviewerID, params.Notes, params.At)
		if err != nil {
			return err
		}
		result.Claim = *claim
		if err := insertActivity(ctx, tx, params.Activity); err != nil {
			return err
		}

		var remaining int
		if err := tx.GetContext(ctx, &remaining, "SELECT COUNT(*) FROM claim_requests WHERE item_id = $1 AND status = $2",
			claim.ItemID, models.ClaimStatusPending); err != nil {
			return fmt.Errorf("count pending claims: %w", err)
		}
		if remaining > 0 {
			return nil
		}
		params.Reopen.ItemID = claim.ItemID
		if _, err := transitionItem(ctx, tx, params.Reopen); err != nil {
			if errors.Is(err, ErrStaleStatus) || errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		result.Reopened = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func decideClaim(ctx context.Context, tx *sqlx.Tx, claimID string, status models.ClaimStatus, reviewerID string, notes *string, at time.Time) (*models.ClaimRequest, error) {
	query := `UPDATE claim_requests SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5
	WHERE id = $1 AND status = $6 RETURNING ` + claimColumns
	var claim models.ClaimRequest
	if err := tx.GetContext(ctx, &claim, query, claimID, status, reviewerID, at, notes, models.ClaimStatusPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleStatus
		}
		return nil, fmt.Errorf("decide claim: %w", err)
	}
	return &claim, nil
}

func rejectPendingClaims(ctx context.Context, ext sqlx.ExtContext, itemID, exceptID string, rejection ClaimRejection) ([]models.ClaimRequest, error) {
	query := `UPDATE claim_requests SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5
	WHERE item_id = $1 AND status = $6 AND id::text <> $7 RETURNING ` + claimColumns
	var claims []models.ClaimRequest
	if err := sqlx.SelectContext(ctx, ext, &claims, query, itemID, models.ClaimStatusRejected, rejection.ReviewerID,
		rejection.At, rejection.Note, models.ClaimStatusPending, exceptID); err != nil {
		return nil, fmt.Errorf("reject pending claims: %w", err)
	}
	if rejection.Activity != nil {
		for _, claim := range claims {
			if err := insertActivity(ctx, ext, rejection.Activity(claim)); err != nil {
				return nil, err
			}
		}
	}
	return claims, nil
}
