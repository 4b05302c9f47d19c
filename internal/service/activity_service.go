package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lostfound-api/internal/dto"
	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/pagination"
)

// ActivityRetentionDays is how long audit entries stay in the live table.
const ActivityRetentionDays = 365

type activityStore interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, error)
	ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActivityService reads and archives the audit trail.
type ActivityService struct {
	store         activityStore
	logger        *zap.Logger
	clock         Clock
	retentionDays int
}

// NewActivityService constructs the service. Non-positive retention falls back to a year.
func NewActivityService(store activityStore, retentionDays int, clock Clock, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = systemClock
	}
	if retentionDays <= 0 {
		retentionDays = ActivityRetentionDays
	}
	return &ActivityService{store: store, logger: logger, clock: clock, retentionDays: retentionDays}
}

// List pages through audit entries newest first.
func (s *ActivityService) List(ctx context.Context, query dto.ActivityQuery) ([]models.ActivityLog, string, error) {
	cursor, err := parseCursor(query.Cursor)
	if err != nil {
		return nil, "", err
	}
	if query.From != nil && query.To != nil && query.To.Before(*query.From) {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "'to' must not be before 'from'")
	}
	entries, err := s.store.List(ctx, models.ActivityFilter{
		ActorID:    query.ActorID,
		Action:     query.Action,
		TargetType: query.TargetType,
		TargetID:   query.TargetID,
		From:       query.From,
		To:         query.To,
		Cursor:     cursor,
		Limit:      pagination.LimitWithBuffer(query.Limit),
	})
	if err != nil {
		return nil, "", appErrors.Store(err, "failed to list activity")
	}
	page, next := pagination.Trim(entries, query.Limit, func(entry models.ActivityLog) pagination.Cursor {
		return pagination.Cursor{CreatedAt: entry.CreatedAt, ID: entry.ID}
	})
	return page, next, nil
}

// ArchiveOlderThan moves entries created before cutoff into the archive table.
func (s *ActivityService) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	archived, err := s.store.ArchiveOlderThan(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Store(err, "failed to archive activity")
	}
	s.logger.Info("activity archived", zap.Int64("archived", archived), zap.Time("cutoff", cutoff))
	return archived, nil
}

// ArchiveExpired archives entries past the retention window.
func (s *ActivityService) ArchiveExpired(ctx context.Context) (*dto.ArchiveResult, error) {
	cutoff := s.clock().Add(-time.Duration(s.retentionDays) * day)
	archived, err := s.ArchiveOlderThan(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return &dto.ArchiveResult{Archived: archived, Cutoff: &cutoff}, nil
}
