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

const userColumns = `id, email, display_name, role, blocked, items_reported, items_found, items_claimed, delivery_token, created_at, updated_at`

// UserRepository provides database access for user administration and recipient lookups.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1"
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = $1 LIMIT 1"
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByIDs returns the users with the given identifiers. Unknown ids are ignored.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+userColumns+" FROM users WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("build user lookup: %w", err)
	}
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	return users, nil
}

// ListSecurityRecipients returns unblocked users holding security capabilities.
// With legacyFallback set, users matched only by the legacy email rules are included too.
func (r *UserRepository) ListSecurityRecipients(ctx context.Context, legacyFallback bool, legacyAdminEmail string) ([]models.User, error) {
	query := "SELECT " + userColumns + ` FROM users
	WHERE blocked = FALSE AND (role IN ($1, $2)
	   OR ($3 AND (LOWER(email) LIKE '%security%' OR LOWER(email) = LOWER($4))))
	ORDER BY id`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, models.RoleSecurity, models.RoleAdmin, legacyFallback, legacyAdminEmail); err != nil {
		return nil, fmt.Errorf("list security recipients: %w", err)
	}
	return users, nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Blocked != nil {
		conditions = append(conditions, fmt.Sprintf("blocked = $%d", len(args)+1))
		args = append(args, *filter.Blocked)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(display_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", userColumns, baseQuery, pageSize, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// Create inserts a user unless one with the same email exists, returning the stored record either way.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	const query = `INSERT INTO users (id, email, display_name, role, blocked, created_at, updated_at)
	VALUES (:id, :email, :display_name, :role, :blocked, :created_at, :updated_at)
	ON CONFLICT (email) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return r.FindByEmail(ctx, user.Email)
}

// UpdateRole changes a user's role and records the activity entry in the same transaction.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.UserRole, at time.Time, entry *models.ActivityLog) error {
	return r.updateAudited(ctx, "UPDATE users SET role = $2, updated_at = $3 WHERE id = $1", entry, id, role, at)
}

// SetBlocked toggles the blocked flag and records the activity entry in the same transaction.
func (r *UserRepository) SetBlocked(ctx context.Context, id string, blocked bool, at time.Time, entry *models.ActivityLog) error {
	return r.updateAudited(ctx, "UPDATE users SET blocked = $2, updated_at = $3 WHERE id = $1", entry, id, blocked, at)
}

// UpdateDeliveryToken stores the push delivery token for a user; an empty token clears it.
func (r *UserRepository) UpdateDeliveryToken(ctx context.Context, id, token string, at time.Time) error {
	var value *string
	if token != "" {
		value = &token
	}
	result, err := r.db.ExecContext(ctx, "UPDATE users SET delivery_token = $2, updated_at = $3 WHERE id = $1", id, value, at)
	if err != nil {
		return fmt.Errorf("update delivery token: %w", err)
	}
	return requireRow(result)
}

func (r *UserRepository) updateAudited(ctx context.Context, query string, entry *models.ActivityLog, args ...interface{}) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if err := requireRow(result); err != nil {
			return err
		}
		return insertActivity(ctx, tx, entry)
	})
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
