package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/pagination"
)

// DonationRetentionDays is how long a found item stays listed before it becomes donation eligible.
const DonationRetentionDays = 365

const day = 24 * time.Hour

// DefaultScanBatchSize bounds how many candidates one flagging pass loads at a time.
const DefaultScanBatchSize = 100

type donationStore interface {
	List(ctx context.Context, filter models.ItemFilter) ([]models.Item, error)
	ListDonationCandidates(ctx context.Context, cutoff time.Time, limit int) ([]models.Item, error)
}

type itemTransitioner interface {
	Transition(ctx context.Context, req TransitionRequest) (*models.Item, error)
}

// DonationQuery filters the donation listing.
type DonationQuery struct {
	Status []models.DonationStatus
	Cursor string
	Limit  int
}

// DonationService flags aged found items and reports on the donation track.
type DonationService struct {
	store         donationStore
	items         itemTransitioner
	logger        *zap.Logger
	clock         Clock
	retentionDays int
	batchSize     int
}

// DonationServiceOption configures the service.
type DonationServiceOption func(*DonationService)

// WithDonationClock overrides the time source.
func WithDonationClock(clock Clock) DonationServiceOption {
	return func(s *DonationService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDonationRetention overrides the eligibility age in days.
func WithDonationRetention(days int) DonationServiceOption {
	return func(s *DonationService) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// WithScanBatchSize overrides the candidate batch size.
func WithScanBatchSize(size int) DonationServiceOption {
	return func(s *DonationService) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// NewDonationService constructs the service.
func NewDonationService(store donationStore, items itemTransitioner, logger *zap.Logger, opts ...DonationServiceOption) *DonationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DonationService{
		store:         store,
		items:         items,
		logger:        logger,
		clock:         systemClock,
		retentionDays: DonationRetentionDays,
		batchSize:     DefaultScanBatchSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// AgeInDays counts whole days between createdAt and now.
func AgeInDays(createdAt, now time.Time) int {
	elapsed := now.Sub(createdAt)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / day)
}

// AgeLabel renders an age as "N days" under a year, otherwise "Y year(s), D day(s)".
func AgeLabel(days int) string {
	if days < 365 {
		return fmt.Sprintf("%d days", days)
	}
	return fmt.Sprintf("%d year(s), %d day(s)", days/365, days%365)
}

// Eligible reports whether an item created at createdAt has aged into donation eligibility.
func (s *DonationService) Eligible(createdAt, now time.Time) bool {
	return now.Sub(createdAt) >= time.Duration(s.retentionDays)*day
}

// FlagEligible moves every eligible active found item to DONATION_PENDING and returns how many it moved.
// Items changed concurrently are skipped, so re-running after a partial pass is safe.
func (s *DonationService) FlagEligible(ctx context.Context) (int, error) {
	now := s.clock()
	cutoff := now.Add(-time.Duration(s.retentionDays) * day)
	seen := make(map[string]struct{})
	flagged := 0

	for {
		candidates, err := s.store.ListDonationCandidates(ctx, cutoff, s.batchSize)
		if err != nil {
			return flagged, appErrors.Store(err, "failed to list donation candidates")
		}
		progressed := false
		for _, item := range candidates {
			if err := ctx.Err(); err != nil {
				return flagged, appErrors.Store(err, fmt.Sprintf("donation scan interrupted after flagging %d items", flagged))
			}
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
			progressed = true
			if !s.Eligible(item.CreatedAt, now) {
				continue
			}

			_, err := s.items.Transition(ctx, TransitionRequest{
				ItemID:      item.ID,
				From:        models.ItemStatusActive,
				To:          models.ItemStatusDonationPending,
				Actor:       SystemActorValue,
				Action:      models.ActivityItemFlagged,
				Description: fmt.Sprintf("Auto-flagged %q for donation after %s", item.Name, AgeLabel(AgeInDays(item.CreatedAt, now))),
			})
			switch {
			case err == nil:
				flagged++
			case errors.Is(err, appErrors.ErrInvalidTransition), errors.Is(err, appErrors.ErrNotFound):
				s.logger.Debug("donation candidate changed concurrently", zap.String("item_id", item.ID))
			default:
				return flagged, err
			}
		}
		if !progressed || len(candidates) < s.batchSize {
			break
		}
	}

	s.logger.Info("donation auto-flag finished", zap.Int("flagged", flagged), zap.Time("cutoff", cutoff))
	return flagged, nil
}

// ListDonationItems pages through items on the donation track.
func (s *DonationService) ListDonationItems(ctx context.Context, query DonationQuery) ([]models.DonationItem, string, error) {
	cursor, err := parseCursor(query.Cursor)
	if err != nil {
		return nil, "", err
	}
	statuses := make([]models.ItemStatus, 0, 3)
	for _, status := range query.Status {
		itemStatus, ok := status.ItemStatus()
		if !ok {
			return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown donation status %q", status))
		}
		statuses = append(statuses, itemStatus)
	}
	if len(statuses) == 0 {
		statuses = append(statuses, models.ItemStatusDonationPending, models.ItemStatusDonationReady, models.ItemStatusDonated)
	}

	items, err := s.store.List(ctx, models.ItemFilter{
		Status: statuses,
		Cursor: cursor,
		Limit:  pagination.LimitWithBuffer(query.Limit),
	})
	if err != nil {
		return nil, "", appErrors.Store(err, "failed to list donation items")
	}
	page, next := pagination.Trim(items, query.Limit, func(item models.Item) pagination.Cursor {
		return pagination.Cursor{CreatedAt: item.CreatedAt, ID: item.ID}
	})

	now := s.clock()
	result := make([]models.DonationItem, 0, len(page))
	for _, item := range page {
		status, _ := models.DonationStatusOf(item.Status)
		age := AgeInDays(item.CreatedAt, now)
		result = append(result, models.DonationItem{
			ItemID:       item.ID,
			Name:         item.Name,
			Category:     item.Category,
			Location:     item.Location,
			Status:       status,
			CreatedAt:    item.CreatedAt,
			EligibleAt:   item.EligibleAt,
			AgeInDays:    age,
			AgeLabel:     AgeLabel(age),
			DonatedAt:    item.DonatedAt,
			DonatedTo:    item.DonatedTo,
			DonatedValue: item.DonatedValue,
		})
	}
	return result, next, nil
}
