package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lostfound-api/internal/dto"
	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.UserRole, at time.Time, entry *models.ActivityLog) error
	SetBlocked(ctx context.Context, id string, blocked bool, at time.Time, entry *models.ActivityLog) error
	UpdateDeliveryToken(ctx context.Context, id, token string, at time.Time) error
}

type recipientInvalidator interface {
	InvalidateRecipients(ctx context.Context)
}

// UserService handles user administration.
type UserService struct {
	repo       userRepository
	recipients recipientInvalidator
	policy     *RolePolicy
	validator  *validator.Validate
	logger     *zap.Logger
	clock      Clock
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, recipients recipientInvalidator, policy *RolePolicy, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, recipients: recipients, policy: policy, validator: validate, logger: logger, clock: systemClock}
}

// Register stores the account for an authenticated email. Existing accounts are returned unchanged.
func (s *UserService) Register(ctx context.Context, req dto.RegisterUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid register payload")
	}
	user, err := s.repo.Create(ctx, &models.User{
		ID:          req.ID,
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Role:        models.RoleStudent,
		CreatedAt:   s.clock(),
	})
	if err != nil {
		return nil, createError(err, "user", "")
	}
	return user, nil
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list users")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	pagination := &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}

	return users, pagination, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "user")
	}
	return user, nil
}

// UpdateRole assigns a new role. Only admins may change roles.
func (s *UserService) UpdateRole(ctx context.Context, id string, req dto.UpdateRoleRequest, actor *Actor) (*models.User, error) {
	if !s.policy.actorIsAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}
	if !s.policy.IsValidRole(req.Role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", req.Role))
	}
	role, _ := models.ParseRole(req.Role)

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "user")
	}
	if user.Role == role {
		return user, nil
	}

	now := s.clock()
	previous, next := string(user.Role), string(role)
	entry := newActivity(*actor, models.ActivityUserRoleChanged, models.TargetUser, user.ID, &previous, &next,
		fmt.Sprintf("Changed role of %s from %s to %s", user.Email, previous, next), now)
	if err := s.repo.UpdateRole(ctx, user.ID, role, now, entry); err != nil {
		return nil, mapStoreError(err, "user", "user changed concurrently")
	}
	s.recipients.InvalidateRecipients(ctx)

	user.Role = role
	user.UpdatedAt = now
	s.logger.Info("user role changed", zap.String("user_id", user.ID), zap.String("from", previous), zap.String("to", next))
	return user, nil
}

// SetBlocked blocks or unblocks a user. Admins cannot block themselves.
func (s *UserService) SetBlocked(ctx context.Context, id string, blocked bool, actor *Actor) (*models.User, error) {
	if !s.policy.actorIsAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	if blocked && id == actor.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "you cannot block your own account")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "user")
	}
	if user.Blocked == blocked {
		return user, nil
	}

	now := s.clock()
	action := models.ActivityUserUnblocked
	verb := "Unblocked"
	if blocked {
		action = models.ActivityUserBlocked
		verb = "Blocked"
	}
	previous, next := fmt.Sprintf("%t", user.Blocked), fmt.Sprintf("%t", blocked)
	entry := newActivity(*actor, action, models.TargetUser, user.ID, &previous, &next, fmt.Sprintf("%s %s", verb, user.Email), now)
	if err := s.repo.SetBlocked(ctx, user.ID, blocked, now, entry); err != nil {
		return nil, mapStoreError(err, "user", "user changed concurrently")
	}
	s.recipients.InvalidateRecipients(ctx)

	user.Blocked = blocked
	user.UpdatedAt = now
	return user, nil
}

// UpdateDeliveryToken stores the caller's push token. An empty token opts out of push delivery.
func (s *UserService) UpdateDeliveryToken(ctx context.Context, req dto.DeliveryTokenRequest, actor *Actor) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token payload")
	}
	if err := s.repo.UpdateDeliveryToken(ctx, actor.ID, strings.TrimSpace(req.Token), s.clock()); err != nil {
		return mapStoreError(err, "user", "user changed concurrently")
	}
	s.recipients.InvalidateRecipients(ctx)
	return nil
}
