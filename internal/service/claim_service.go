package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lostfound-api/internal/dto"
	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/internal/repository"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/database"
)

// SiblingClaimNote is recorded on pending claims closed because another claimant got the item.
const SiblingClaimNote = "item returned to another claimant"

type claimStore interface {
	Create(ctx context.Context, params repository.CreateClaimParams) error
	GetByID(ctx context.Context, id string) (*models.ClaimRequest, error)
	List(ctx context.Context, filter models.ClaimFilter) ([]models.ClaimRequest, error)
	HasPending(ctx context.Context, itemID, userID string) (bool, error)
	Approve(ctx context.Context, params repository.ApproveClaimParams) (*repository.ApproveClaimResult, error)
	Reject(ctx context.Context, params repository.RejectClaimParams) (*repository.RejectClaimResult, error)
}

type claimItemReader interface {
	GetByID(ctx context.Context, id string) (*models.Item, error)
}

type claimUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ClaimService runs the claim review workflow.
type ClaimService struct {
	claims    claimStore
	items     claimItemReader
	users     claimUserReader
	notifier  Notifier
	policy    *RolePolicy
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	clock     Clock
}

// ClaimServiceOption configures the service.
type ClaimServiceOption func(*ClaimService)

// WithClaimClock overrides the time source.
func WithClaimClock(clock Clock) ClaimServiceOption {
	return func(s *ClaimService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithClaimMetrics attaches Prometheus instrumentation.
func WithClaimMetrics(metrics *MetricsService) ClaimServiceOption {
	return func(s *ClaimService) {
		s.metrics = metrics
	}
}

// NewClaimService constructs the service.
func NewClaimService(claims claimStore, items claimItemReader, users claimUserReader, notifier Notifier, policy *RolePolicy, validate *validator.Validate, logger *zap.Logger, opts ...ClaimServiceOption) *ClaimService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ClaimService{
		claims:    claims,
		items:     items,
		users:     users,
		notifier:  notifier,
		policy:    policy,
		validator: validate,
		logger:    logger,
		clock:     systemClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create files a pending claim for userID and marks the item as requested.
func (s *ClaimService) Create(ctx context.Context, userID string, req dto.CreateClaimRequest) (*models.ClaimRequest, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, loadError(err, "user")
	}
	if user.Blocked {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "blocked users cannot submit claims")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid claim payload")
	}

	item, err := s.items.GetByID(ctx, req.ItemID)
	if err != nil {
		return nil, loadError(err, "item")
	}
	if item.IsLost {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only found items can be claimed")
	}
	if item.Status != models.ItemStatusActive && item.Status != models.ItemStatusRequested {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "item is not open for claims")
	}
	pending, err := s.claims.HasPending(ctx, item.ID, user.ID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to check pending claims")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a pending claim for this item already exists")
	}

	now := s.clock()
	itemName := strings.TrimSpace(req.ItemName)
	if itemName == "" {
		itemName = item.Name
	}
	claim := &models.ClaimRequest{
		ID:               newID(),
		ItemID:           item.ID,
		ItemName:         itemName,
		UserID:           user.ID,
		UserEmail:        user.Email,
		UserPhone:        optionalString(req.Phone),
		Reason:           strings.TrimSpace(req.Reason),
		ProofDescription: strings.TrimSpace(req.ProofDescription),
		Status:           models.ClaimStatusPending,
		RequestedAt:      now,
	}
	actor := Actor{ID: user.ID, Email: user.Email, Role: user.Role}
	pendingStatus := string(models.ClaimStatusPending)
	err = s.claims.Create(ctx, repository.CreateClaimParams{
		Claim: claim,
		Activity: newActivity(actor, models.ActivityClaimCreated, models.TargetClaim, claim.ID, nil, &pendingStatus,
			fmt.Sprintf("Claimed %q", itemName), now),
		Request: repository.TransitionParams{
			ItemID:    item.ID,
			From:      models.ItemStatusActive,
			To:        models.ItemStatusRequested,
			ChangedBy: user.ID,
			At:        now,
			Activity: newActivity(actor, models.ActivityItemStatusChanged, models.TargetItem, item.ID,
				statusPtr(models.ItemStatusActive), statusPtr(models.ItemStatusRequested),
				fmt.Sprintf("Claim submitted for %q", itemName), now),
		},
	})
	if err != nil {
		if database.IsUniqueViolation(err, repository.PendingClaimConstraint) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a pending claim for this item already exists")
		}
		return nil, mapStoreError(err, "item", "item is not open for claims")
	}
	s.metrics.RecordTransition(string(models.ItemStatusActive), string(models.ItemStatusRequested), "ok")

	itemID, claimID := item.ID, claim.ID
	s.notifier.NotifySecurity(ctx, Message{
		Title:   "New claim request",
		Body:    fmt.Sprintf("%s claimed %q.", user.Email, itemName),
		Type:    models.NotificationClaimSubmitted,
		ItemID:  &itemID,
		ClaimID: &claimID,
	})
	return claim, nil
}

// Approve accepts a pending claim, returning the item to its claimant.
func (s *ClaimService) Approve(ctx context.Context, claimID string, notes string, actor *Actor) (*models.ClaimRequest, error) {
	if !s.policy.actorIsSecurity(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "security role required")
	}
	current, err := s.loadPending(ctx, claimID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	note := optionalString(notes)
	reviewer := *actor
	result, err := s.claims.Approve(ctx, repository.ApproveClaimParams{
		ClaimID:    claimID,
		ReviewerID: actor.ID,
		Notes:      note,
		At:         now,
		Activity:   claimDecisionActivity(reviewer, *current, models.ActivityClaimApproved, notes, now),
		Return: repository.TransitionParams{
			From:      models.ItemStatusRequested,
			To:        models.ItemStatusReturned,
			ChangedBy: actor.ID,
			At:        now,
			Activity: newActivity(reviewer, models.ActivityItemStatusChanged, models.TargetItem, current.ItemID,
				statusPtr(models.ItemStatusRequested), statusPtr(models.ItemStatusReturned),
				fmt.Sprintf("Returned %q to %s", current.ItemName, current.UserEmail), now),
		},
		Siblings: repository.ClaimRejection{
			ReviewerID: actor.ID,
			Note:       SiblingClaimNote,
			At:         now,
			Activity: func(claim models.ClaimRequest) *models.ActivityLog {
				return claimDecisionActivity(reviewer, claim, models.ActivityClaimRejected, SiblingClaimNote, now)
			},
		},
	})
	if err != nil {
		return nil, s.decisionError(ctx, claimID, err)
	}
	s.metrics.RecordClaimDecision(string(models.ClaimStatusApproved))
	s.metrics.RecordTransition(string(models.ItemStatusRequested), string(models.ItemStatusReturned), "ok")

	claim := result.Claim
	s.notifier.NotifyUsers(ctx, []string{claim.UserID}, Message{
		Title:   "Claim approved",
		Body:    fmt.Sprintf("Your claim for %q was approved. Please collect it from the security office.", claim.ItemName),
		Type:    models.NotificationClaimApproved,
		ItemID:  &claim.ItemID,
		ClaimID: &claim.ID,
	})
	for _, sibling := range result.Siblings {
		s.metrics.RecordClaimDecision(string(models.ClaimStatusRejected))
		s.notifyRejected(ctx, sibling, SiblingClaimNote)
	}
	return &claim, nil
}

// Reject declines a pending claim. The item becomes ACTIVE again once no pending claim remains.
func (s *ClaimService) Reject(ctx context.Context, claimID string, notes string, actor *Actor) (*models.ClaimRequest, error) {
	if !s.policy.actorIsSecurity(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "security role required")
	}
	current, err := s.loadPending(ctx, claimID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	result, err := s.claims.Reject(ctx, repository.RejectClaimParams{
		ClaimID:    claimID,
		ReviewerID: actor.ID,
		Notes:      optionalString(notes),
		At:         now,
		Activity:   claimDecisionActivity(*actor, *current, models.ActivityClaimRejected, strings.TrimSpace(notes), now),
		Reopen: repository.TransitionParams{
			From:      models.ItemStatusRequested,
			To:        models.ItemStatusActive,
			ChangedBy: actor.ID,
			At:        now,
			Activity: newActivity(*actor, models.ActivityItemStatusChanged, models.TargetItem, current.ItemID,
				statusPtr(models.ItemStatusRequested), statusPtr(models.ItemStatusActive),
				fmt.Sprintf("No pending claims left for %q", current.ItemName), now),
		},
	})
	if err != nil {
		return nil, s.decisionError(ctx, claimID, err)
	}
	s.metrics.RecordClaimDecision(string(models.ClaimStatusRejected))
	if result.Reopened {
		s.metrics.RecordTransition(string(models.ItemStatusRequested), string(models.ItemStatusActive), "ok")
	}

	claim := result.Claim
	s.notifyRejected(ctx, claim, strings.TrimSpace(notes))
	return &claim, nil
}

// HasPendingClaim reports whether userID already has a pending claim on itemID.
func (s *ClaimService) HasPendingClaim(ctx context.Context, itemID, userID string) (bool, error) {
	pending, err := s.claims.HasPending(ctx, itemID, userID)
	if err != nil {
		return false, appErrors.Store(err, "failed to check pending claims")
	}
	return pending, nil
}

// Get returns a claim. Students may only read their own.
func (s *ClaimService) Get(ctx context.Context, id string, actor *Actor) (*models.ClaimRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	claim, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "claim")
	}
	if claim.UserID != actor.ID && !s.policy.actorIsSecurity(actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "claim not found")
	}
	return claim, nil
}

// List returns claims matching the query. Students are limited to their own claims.
func (s *ClaimService) List(ctx context.Context, query dto.ClaimQuery, actor *Actor) ([]models.ClaimRequest, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	page, size := normalizePage(query.Page, query.Size)
	filter := models.ClaimFilter{
		Status: query.Status,
		ItemID: query.ItemID,
		UserID: query.UserID,
		Limit:  size + 1,
		Offset: (page - 1) * size,
	}
	for _, status := range filter.Status {
		switch status {
		case models.ClaimStatusPending, models.ClaimStatusApproved, models.ClaimStatusRejected:
		default:
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown claim status %q", status))
		}
	}
	if !s.policy.actorIsSecurity(actor) {
		filter.UserID = actor.ID
	}
	claims, err := s.claims.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list claims")
	}
	meta := &models.Pagination{Page: page, PageSize: size}
	if len(claims) > size {
		claims = claims[:size]
		meta.NextCursor = strconv.Itoa(page + 1)
	}
	return claims, meta, nil
}

func (s *ClaimService) loadPending(ctx context.Context, claimID string) (*models.ClaimRequest, error) {
	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, loadError(err, "claim")
	}
	if claim.Status != models.ClaimStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "claim already reviewed")
	}
	return claim, nil
}

// decisionError tells a concurrent reviewer apart from an item that moved underneath the claim.
func (s *ClaimService) decisionError(ctx context.Context, claimID string, err error) error {
	if !errors.Is(err, repository.ErrStaleStatus) {
		return mapStoreError(err, "claim", "claim already reviewed")
	}
	if claim, loadErr := s.claims.GetByID(ctx, claimID); loadErr == nil && claim.Status != models.ClaimStatusPending {
		return appErrors.Clone(appErrors.ErrConflict, "claim already reviewed")
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, "item is no longer awaiting a claim decision")
}

func (s *ClaimService) notifyRejected(ctx context.Context, claim models.ClaimRequest, reason string) {
	body := fmt.Sprintf("Your claim for %q was rejected.", claim.ItemName)
	if reason != "" {
		body = fmt.Sprintf("Your claim for %q was rejected. Reason: %s", claim.ItemName, reason)
	}
	itemID, claimID := claim.ItemID, claim.ID
	s.notifier.NotifyUsers(ctx, []string{claim.UserID}, Message{
		Title:   "Claim rejected",
		Body:    body,
		Type:    models.NotificationClaimRejected,
		ItemID:  &itemID,
		ClaimID: &claimID,
	})
}
