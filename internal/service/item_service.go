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
	"github.com/noah-isme/lostfound-api/internal/repository"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/pagination"
)

// RemovedItemNote is recorded on claims closed because their item was deleted.
const RemovedItemNote = "item removed"

type itemStore interface {
	Create(ctx context.Context, item *models.Item, entry *models.ActivityLog) error
	GetByID(ctx context.Context, id string) (*models.Item, error)
	List(ctx context.Context, filter models.ItemFilter) ([]models.Item, error)
	History(ctx context.Context, itemID string) ([]models.StatusChange, error)
	Transition(ctx context.Context, params repository.TransitionParams) (*models.Item, error)
	Delete(ctx context.Context, itemID string, rejection repository.ClaimRejection, entry *models.ActivityLog) ([]models.ClaimRequest, error)
}

// TransitionRequest describes one item status change through the state machine.
type TransitionRequest struct {
	ItemID      string
	From        models.ItemStatus
	To          models.ItemStatus
	Actor       Actor
	Reason      *string
	Action      string
	Description string
	// Apply sets the extra columns some transitions write.
	Apply func(*repository.TransitionParams)
}

// ItemService owns the item lifecycle state machine.
type ItemService struct {
	store         itemStore
	notifier      Notifier
	policy        *RolePolicy
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	clock         Clock
	retentionDays int
}

// ItemServiceOption configures the service.
type ItemServiceOption func(*ItemService)

// WithItemClock overrides the time source.
func WithItemClock(clock Clock) ItemServiceOption {
	return func(s *ItemService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithItemMetrics attaches Prometheus instrumentation.
func WithItemMetrics(metrics *MetricsService) ItemServiceOption {
	return func(s *ItemService) {
		s.metrics = metrics
	}
}

// WithDonationRetentionDays sets how long found items wait before becoming donation eligible.
func WithDonationRetentionDays(days int) ItemServiceOption {
	return func(s *ItemService) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// NewItemService constructs the service with defaults.
func NewItemService(store itemStore, notifier Notifier, policy *RolePolicy, validate *validator.Validate, logger *zap.Logger, opts ...ItemServiceOption) *ItemService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ItemService{
		store:         store,
		notifier:      notifier,
		policy:        policy,
		validator:     validate,
		logger:        logger,
		clock:         systemClock,
		retentionDays: DonationRetentionDays,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Report stores a new item. Found items wait for security approval; lost items are active immediately.
func (s *ItemService) Report(ctx context.Context, req dto.ReportItemRequest, actor *Actor) (*models.Item, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid item payload")
	}
	now := s.clock()
	item := &models.Item{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		ContactInfo: strings.TrimSpace(req.ContactInfo),
		IsLost:      req.IsLost,
		Category:    strings.ToUpper(strings.TrimSpace(req.Category)),
		OwnerID:     actor.ID,
		OwnerEmail:  actor.Email,
		ImageRef:    req.ImageRef,
		Status:      models.ItemStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !item.IsLost {
		item.Status = models.ItemStatusPendingApproval
		eligible := now.Add(time.Duration(s.retentionDays) * day)
		item.EligibleAt = &eligible
	}
	kind := "lost"
	if !item.IsLost {
		kind = "found"
	}
	entry := newActivity(*actor, models.ActivityItemReported, models.TargetItem, "", nil, statusPtr(item.Status),
		fmt.Sprintf("Reported %s item %q at %s", kind, item.Name, item.Location), now)
	if err := s.store.Create(ctx, item, setTarget(entry, item)); err != nil {
		return nil, createError(err, "item", "reporter not registered")
	}
	if !item.IsLost {
		itemID := item.ID
		s.notifier.NotifySecurity(ctx, Message{
			Title:  "Found item awaiting approval",
			Body:   fmt.Sprintf("%q was reported found at %s.", item.Name, item.Location),
			Type:   models.NotificationItemSubmitted,
			ItemID: &itemID,
		})
	}
	return item, nil
}

// Get returns an item, hiding contact details from callers without sensitive-info access.
func (s *ItemService) Get(ctx context.Context, id string, actor *Actor) (*models.Item, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "item")
	}
	if !s.canSeeUnapproved(item, actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
	}
	s.redact(item, actor)
	return item, nil
}

// List pages through items newest first.
func (s *ItemService) List(ctx context.Context, query dto.ItemQuery, actor *Actor) ([]models.Item, string, error) {
	if actor == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	cursor, err := parseCursor(query.Cursor)
	if err != nil {
		return nil, "", err
	}
	filter := models.ItemFilter{
		Status:   query.Status,
		IsLost:   query.IsLost,
		Category: strings.ToUpper(strings.TrimSpace(query.Category)),
		OwnerID:  query.OwnerID,
		Search:   query.Search,
		Cursor:   cursor,
		Limit:    pagination.LimitWithBuffer(query.Limit),
	}
	for _, status := range filter.Status {
		if !status.Valid() {
			return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown item status %q", status))
		}
	}
	if !s.policy.actorIsSecurity(actor) {
		if len(filter.Status) == 0 {
			filter.Status = []models.ItemStatus{models.ItemStatusActive, models.ItemStatusRequested, models.ItemStatusReturned}
		} else if containsReviewStatus(filter.Status) {
			filter.OwnerID = actor.ID
		}
	}
	items, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, "", appErrors.Store(err, "failed to list items")
	}
	page, next := pagination.Trim(items, query.Limit, func(item models.Item) pagination.Cursor {
		return pagination.Cursor{CreatedAt: item.CreatedAt, ID: item.ID}
	})
	for i := range page {
		s.redact(&page[i], actor)
	}
	return page, next, nil
}

// History returns the status trail of an item. Owners and security staff may read it.
func (s *ItemService) History(ctx context.Context, id string, actor *Actor) ([]models.StatusChange, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "item")
	}
	if item.OwnerID != actor.ID && !s.policy.actorIsSecurity(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner or security staff can view item history")
	}
	changes, err := s.store.History(ctx, id)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load item history")
	}
	return changes, nil
}

// Approve publishes a found item awaiting approval.
func (s *ItemService) Approve(ctx context.Context, id string, actor *Actor) (*models.Item, error) {
	if !s.policy.actorIsSecurity(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "security role required")
	}
	current, err := s.loadInStatus(ctx, id, models.ItemStatusPendingApproval, "item already decided")
	if err != nil {
		return nil, err
	}
	reviewer := actor.ID
	item, err := s.Transition(ctx, TransitionRequest{
		ItemID:      id,
		From:        models.ItemStatusPendingApproval,
		To:          models.ItemStatusActive,
		Actor:       *actor,
		Action:      models.ActivityItemApproved,
		Description: fmt.Sprintf("Approved found item %q", current.Name),
		Apply: func(p *repository.TransitionParams) {
			p.ApprovedBy = &reviewer
		},
	})
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyUsers(ctx, []string{item.OwnerID}, Message{
		Title:  "Item approved",
		Body:   fmt.Sprintf("Your found item %q is now listed.", item.Name),
		Type:   models.NotificationItemApproved,
		ItemID: &item.ID,
	})
	return item, nil
}

// Reject declines a found item awaiting approval, keeping the reviewer's notes.
func (s *ItemService) Reject(ctx context.Context, id string, notes string, actor *Actor) (*models.Item, error) {
	if !s.policy.actorIsSecurity(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "security role required")
	}
	current, err := s.loadInStatus(ctx, id, models.ItemStatusPendingApproval, "item already decided")
	if err != nil {
		return nil, err
	}
	reason := optionalString(notes)
	description := fmt.Sprintf("Rejected found item %q", current.Name)
	if reason != nil {
		description += ": " + *reason
	}
	reviewer := actor.ID
	item, err := s.Transition(ctx, TransitionRequest{
		ItemID:      id,
		From:        models.ItemStatusPendingApproval,
		To:          models.ItemStatusRejected,
		Actor:       *actor,
		Reason:      reason,
		Action:      models.ActivityItemRejected,
		Description: description,
		Apply: func(p *repository.TransitionParams) {
			p.ApprovedBy = &reviewer
			p.ReviewNotes = reason
		},
	})
	if err != nil {
		return nil, err
	}
	body := fmt.Sprintf("Your found item %q was not approved.", item.Name)
	if reason != nil {
		body = fmt.Sprintf("Your found item %q was not approved. Reason: %s", item.Name, *reason)
	}
	s.notifier.NotifyUsers(ctx, []string{item.OwnerID}, Message{
		Title:  "Item rejected",
		Body:   body,
		Type:   models.NotificationItemRejected,
		ItemID: &item.ID,
	})
	return item, nil
}

// FlagForDonation moves an active found item onto the donation track ahead of the schedule.
func (s *ItemService) FlagForDonation(ctx context.Context, id string, actor *Actor) (*models.Item, error) {
	if !s.policy.actorIsAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	current, err := s.loadInStatus(ctx, id, models.ItemStatusActive, "only active items can be flagged for donation")
	if err != nil {
		return nil, err
	}
	if current.IsLost {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "lost items cannot be donated")
	}
	return s.Transition(ctx, TransitionRequest{
		ItemID:      id,
		From:        models.ItemStatusActive,
		To:          models.ItemStatusDonationPending,
		Actor:       *actor,
		Action:      models.ActivityItemFlagged,
		Description: fmt.Sprintf("Flagged %q for donation", current.Name),
	})
}

// MarkDonationReady confirms a flagged item is prepared for hand-over.
func (s *ItemService) MarkDonationReady(ctx context.Context, id string, actor *Actor) (*models.Item, error) {
	if !s.policy.actorIsAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	return s.Transition(ctx, TransitionRequest{
		ItemID:      id,
		From:        models.ItemStatusDonationPending,
		To:          models.ItemStatusDonationReady,
		Actor:       *actor,
		Action:      models.ActivityDonationReady,
		Description: "Marked item ready for donation",
	})
}

// MarkDonated records the recipient and value of a completed donation.
func (s *ItemService) MarkDonated(ctx context.Context, id string, req dto.CompleteDonationRequest, actor *Actor) (*models.Item, error) {
	if !s.policy.actorIsAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid donation payload")
	}
	if req.DonatedValue.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "donated value cannot be negative")
	}
	recipient := strings.TrimSpace(req.DonatedTo)
	value := req.DonatedValue
	return s.Transition(ctx, TransitionRequest{
		ItemID:      id,
		From:        models.ItemStatusDonationReady,
		To:          models.ItemStatusDonated,
		Actor:       *actor,
		Action:      models.ActivityItemDonated,
		Description: fmt.Sprintf("Donated to %s (value %s)", recipient, value.StringFixed(2)),
		Apply: func(p *repository.TransitionParams) {
			p.DonatedTo = &recipient
			p.DonatedValue = &value
		},
	})
}

// Delete removes an item and closes its pending claims. Only admins may delete.
func (s *ItemService) Delete(ctx context.Context, id string, actor *Actor) error {
	if !s.policy.actorIsAdmin(actor) {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return loadError(err, "item")
	}
	now := s.clock()
	rejection := repository.ClaimRejection{
		ReviewerID: actor.ID,
		Note:       RemovedItemNote,
		At:         now,
		Activity: func(claim models.ClaimRequest) *models.ActivityLog {
			return claimDecisionActivity(*actor, claim, models.ActivityClaimRejected, RemovedItemNote, now)
		},
	}
	entry := newActivity(*actor, models.ActivityItemDeleted, models.TargetItem, id, statusPtr(item.Status), nil,
		fmt.Sprintf("Deleted item %q", item.Name), now)
	rejected, err := s.store.Delete(ctx, id, rejection, entry)
	if err != nil {
		return mapStoreError(err, "item", "item changed while deleting")
	}
	s.notifyRejectedClaimants(ctx, rejected, RemovedItemNote)
	return nil
}

// Transition applies one edge of the state machine with its history row and audit entry.
// Edges outside the table are refused before touching the store.
func (s *ItemService) Transition(ctx context.Context, req TransitionRequest) (*models.Item, error) {
	if !req.From.CanTransitionTo(req.To) {
		s.metrics.RecordTransition(string(req.From), string(req.To), "refused")
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move item from %s to %s", req.From, req.To))
	}
	now := s.clock()
	params := repository.TransitionParams{
		ItemID:    req.ItemID,
		From:      req.From,
		To:        req.To,
		ChangedBy: req.Actor.ID,
		Reason:    req.Reason,
		At:        now,
		Activity: newActivity(req.Actor, req.Action, models.TargetItem, req.ItemID,
			statusPtr(req.From), statusPtr(req.To), req.Description, now),
	}
	if req.Apply != nil {
		req.Apply(&params)
	}
	item, err := s.store.Transition(ctx, params)
	if err != nil {
		s.metrics.RecordTransition(string(req.From), string(req.To), "failed")
		return nil, mapStoreError(err, "item", fmt.Sprintf("item is no longer %s", req.From))
	}
	s.metrics.RecordTransition(string(req.From), string(req.To), "ok")
	s.logger.Info("item status changed",
		zap.String("item_id", req.ItemID),
		zap.String("from", string(req.From)),
		zap.String("to", string(req.To)),
		zap.String("actor", req.Actor.ID))
	return item, nil
}

func (s *ItemService) loadInStatus(ctx context.Context, id string, expected models.ItemStatus, message string) (*models.Item, error) {
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "item")
	}
	if item.Status != expected {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, message)
	}
	return item, nil
}

func (s *ItemService) notifyRejectedClaimants(ctx context.Context, claims []models.ClaimRequest, reason string) {
	for _, claim := range claims {
		claimID := claim.ID
		itemID := claim.ItemID
		s.notifier.NotifyUsers(ctx, []string{claim.UserID}, Message{
			Title:   "Claim rejected",
			Body:    fmt.Sprintf("Your claim for %q was rejected. Reason: %s", claim.ItemName, reason),
			Type:    models.NotificationClaimRejected,
			ItemID:  &itemID,
			ClaimID: &claimID,
		})
	}
}

func (s *ItemService) canSeeUnapproved(item *models.Item, actor *Actor) bool {
	if item.Status != models.ItemStatusPendingApproval && item.Status != models.ItemStatusRejected {
		return true
	}
	return item.OwnerID == actor.ID || s.policy.actorIsSecurity(actor)
}

func (s *ItemService) redact(item *models.Item, actor *Actor) {
	if item.OwnerID == actor.ID {
		return
	}
	if s.policy.CanViewSensitiveInfo(string(actor.Role), actor.Email) {
		return
	}
	item.ContactInfo = ""
	item.OwnerEmail = ""
}

func containsReviewStatus(statuses []models.ItemStatus) bool {
	for _, status := range statuses {
		if status == models.ItemStatusPendingApproval || status == models.ItemStatusRejected {
			return true
		}
	}
	return false
}

func setTarget(entry *models.ActivityLog, item *models.Item) *models.ActivityLog {
	if item.ID == "" {
		item.ID = newID()
	}
	entry.TargetID = item.ID
	return entry
}

func claimDecisionActivity(actor Actor, claim models.ClaimRequest, action, note string, at time.Time) *models.ActivityLog {
	previous := string(models.ClaimStatusPending)
	next := string(models.ClaimStatusApproved)
	verb := "Approved"
	if action == models.ActivityClaimRejected {
		next = string(models.ClaimStatusRejected)
		verb = "Rejected"
	}
	description := fmt.Sprintf("%s claim by %s for %q", verb, claim.UserEmail, claim.ItemName)
	if note != "" {
		description += ": " + note
	}
	return newActivity(actor, action, models.TargetClaim, claim.ID, &previous, &next, description, at)
}
