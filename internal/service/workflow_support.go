package service

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/internal/repository"
	"github.com/noah-isme/lostfound-api/pkg/database"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/pagination"
)

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// Actor identifies who performs a workflow operation.
type Actor struct {
	ID    string
	Email string
	Role  models.UserRole
}

// ActorFromClaims converts bearer token claims into an Actor.
func ActorFromClaims(claims *models.JWTClaims) *Actor {
	if claims == nil {
		return nil
	}
	return &Actor{ID: claims.UserID, Email: claims.Email, Role: claims.Role}
}

// SystemActorValue is the actor recorded for scheduled jobs.
var SystemActorValue = Actor{ID: models.SystemActor, Role: models.RoleAdmin}

func newActivity(actor Actor, action, targetType, targetID string, previous, next *string, description string, at time.Time) *models.ActivityLog {
	entry := &models.ActivityLog{
		ActorID:       actor.ID,
		Action:        action,
		TargetType:    targetType,
		TargetID:      targetID,
		PreviousValue: previous,
		NewValue:      next,
		Description:   description,
		CreatedAt:     at,
	}
	if actor.Email != "" {
		email := actor.Email
		entry.ActorEmail = &email
	}
	return entry
}

func statusPtr(status models.ItemStatus) *string {
	value := string(status)
	return &value
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}

// mapStoreError converts repository sentinels into typed workflow errors.
func mapStoreError(err error, subject, staleMessage string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, subject+" not found")
	case errors.Is(err, repository.ErrStaleStatus):
		return appErrors.Clone(appErrors.ErrInvalidTransition, staleMessage)
	default:
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		if typed := constraintError(err, subject); typed != nil {
			return typed
		}
		return appErrors.Store(err, "failed to update "+subject)
	}
}

// createError maps insert failures. Only errors the store may recover from stay retryable.
func createError(err error, subject, missingRef string) error {
	if err == nil {
		return nil
	}
	if typed := constraintError(err, subject); typed != nil {
		if missingRef != "" && errors.Is(typed, appErrors.ErrNotFound) {
			return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, missingRef)
		}
		return typed
	}
	return appErrors.Store(err, "failed to create "+subject)
}

func constraintError(err error, subject string) *appErrors.Error {
	switch {
	case database.IsUniqueViolation(err, ""):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, subject+" already exists")
	case database.IsForeignKeyViolation(err):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "referenced record not found")
	case database.IsInvalidInput(err):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+subject+" identifier")
	}
	return nil
}

func loadError(err error, subject string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, subject+" not found")
	}
	return appErrors.Store(err, "failed to load "+subject)
}

func parseCursor(raw string) (*models.Cursor, error) {
	parsed, err := pagination.Parse(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid cursor")
	}
	if parsed == nil {
		return nil, nil
	}
	cursor := models.Cursor(*parsed)
	return &cursor, nil
}

func newID() string {
	return uuid.NewString()
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
