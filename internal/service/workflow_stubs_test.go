package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/internal/repository"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

// memWorld mimics the conditional-write semantics of the SQL repositories.
type memWorld struct {
	items      map[string]*models.Item
	claims     map[string]*models.ClaimRequest
	changes    []models.StatusChange
	activities []*models.ActivityLog
	claimed    map[string]int
	itemFilter models.ItemFilter
}

func newMemWorld() *memWorld {
	return &memWorld{
		items:   make(map[string]*models.Item),
		claims:  make(map[string]*models.ClaimRequest),
		claimed: make(map[string]int),
	}
}

func (w *memWorld) addItem(item models.Item) {
	w.items[item.ID] = &item
}

func (w *memWorld) addClaim(claim models.ClaimRequest) {
	w.claims[claim.ID] = &claim
}

func (w *memWorld) record(entry *models.ActivityLog) {
	if entry != nil {
		w.activities = append(w.activities, entry)
	}
}

func (w *memWorld) actions() []string {
	result := make([]string, 0, len(w.activities))
	for _, entry := range w.activities {
		result = append(result, entry.Action)
	}
	return result
}

func (w *memWorld) transition(params repository.TransitionParams) (*models.Item, error) {
	item, ok := w.items[params.ItemID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if item.Status != params.From {
		return nil, repository.ErrStaleStatus
	}
	item.Status = params.To
	item.UpdatedAt = params.At
	if params.ApprovedBy != nil {
		at := params.At
		item.ApprovedBy = params.ApprovedBy
		item.ApprovedAt = &at
	}
	if params.ReviewNotes != nil {
		item.ReviewNotes = params.ReviewNotes
	}
	if params.To == models.ItemStatusDonated {
		at := params.At
		item.DonatedAt = &at
		item.DonatedTo = params.DonatedTo
		if params.DonatedValue != nil {
			item.DonatedValue = decimal.NewNullDecimal(*params.DonatedValue)
		}
	}
	w.changes = append(w.changes, models.StatusChange{
		ItemID:         item.ID,
		PreviousStatus: params.From,
		NewStatus:      params.To,
		ChangedBy:      params.ChangedBy,
		Reason:         params.Reason,
		ChangedAt:      params.At,
	})
	w.record(params.Activity)
	copy := *item
	return &copy, nil
}

func (w *memWorld) rejectPending(itemID, exceptID string, rejection repository.ClaimRejection) []models.ClaimRequest {
	var rejected []models.ClaimRequest
	for _, claim := range w.sortedClaims() {
		if claim.ItemID != itemID || claim.ID == exceptID || claim.Status != models.ClaimStatusPending {
			continue
		}
		at := rejection.At
		note := rejection.Note
		reviewer := rejection.ReviewerID
		claim.Status = models.ClaimStatusRejected
		claim.ReviewedAt = &at
		claim.ReviewNotes = &note
		claim.ReviewedBy = &reviewer
		if rejection.Activity != nil {
			w.record(rejection.Activity(*claim))
		}
		rejected = append(rejected, *claim)
	}
	return rejected
}

func (w *memWorld) sortedClaims() []*models.ClaimRequest {
	result := make([]*models.ClaimRequest, 0, len(w.claims))
	for _, claim := range w.claims {
		result = append(result, claim)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

type itemStoreStub struct {
	w *memWorld
}

func (s itemStoreStub) Create(ctx context.Context, item *models.Item, entry *models.ActivityLog) error {
	if item.ID == "" {
		item.ID = newID()
	}
	s.w.addItem(*item)
	s.w.record(entry)
	return nil
}

func (s itemStoreStub) GetByID(ctx context.Context, id string) (*models.Item, error) {
	item, ok := s.w.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *item
	return &copy, nil
}

func (s itemStoreStub) List(ctx context.Context, filter models.ItemFilter) ([]models.Item, error) {
	s.w.itemFilter = filter
	var result []models.Item
	for _, item := range s.w.items {
		if len(filter.Status) > 0 && !containsStatus(filter.Status, item.Status) {
			continue
		}
		if filter.OwnerID != "" && item.OwnerID != filter.OwnerID {
			continue
		}
		result = append(result, *item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s itemStoreStub) ListDonationCandidates(ctx context.Context, cutoff time.Time, limit int) ([]models.Item, error) {
	var result []models.Item
	for _, item := range s.w.items {
		if item.Status == models.ItemStatusActive && !item.IsLost && !item.CreatedAt.After(cutoff) {
			result = append(result, *item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s itemStoreStub) History(ctx context.Context, itemID string) ([]models.StatusChange, error) {
	var result []models.StatusChange
	for _, change := range s.w.changes {
		if change.ItemID == itemID {
			result = append(result, change)
		}
	}
	return result, nil
}

func (s itemStoreStub) Transition(ctx context.Context, params repository.TransitionParams) (*models.Item, error) {
	return s.w.transition(params)
}

func (s itemStoreStub) Delete(ctx context.Context, itemID string, rejection repository.ClaimRejection, entry *models.ActivityLog) ([]models.ClaimRequest, error) {
	if _, ok := s.w.items[itemID]; !ok {
		return nil, sql.ErrNoRows
	}
	rejected := s.w.rejectPending(itemID, "", rejection)
	delete(s.w.items, itemID)
	s.w.record(entry)
	return rejected, nil
}

type claimStoreStub struct {
	w *memWorld
}

func (s claimStoreStub) Create(ctx context.Context, params repository.CreateClaimParams) error {
	item, ok := s.w.items[params.Claim.ItemID]
	if !ok {
		return sql.ErrNoRows
	}
	for _, claim := range s.w.claims {
		if claim.ItemID == params.Claim.ItemID && claim.UserID == params.Claim.UserID && claim.Status == models.ClaimStatusPending {
			return &pq.Error{Code: "23505", Constraint: repository.PendingClaimConstraint}
		}
	}
	switch item.Status {
	case models.ItemStatusActive:
		if _, err := s.w.transition(params.Request); err != nil {
			return err
		}
	case models.ItemStatusRequested:
	default:
		return repository.ErrStaleStatus
	}
	s.w.addClaim(*params.Claim)
	s.w.record(params.Activity)
	return nil
}

func (s claimStoreStub) GetByID(ctx context.Context, id string) (*models.ClaimRequest, error) {
	claim, ok := s.w.claims[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *claim
	return &copy, nil
}

func (s claimStoreStub) List(ctx context.Context, filter models.ClaimFilter) ([]models.ClaimRequest, error) {
	var result []models.ClaimRequest
	for _, claim := range s.w.sortedClaims() {
		if filter.UserID != "" && claim.UserID != filter.UserID {
			continue
		}
		if filter.ItemID != "" && claim.ItemID != filter.ItemID {
			continue
		}
		result = append(result, *claim)
	}
	if filter.Offset < len(result) {
		result = result[filter.Offset:]
	} else {
		result = nil
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s claimStoreStub) HasPending(ctx context.Context, itemID, userID string) (bool, error) {
	for _, claim := range s.w.claims {
		if claim.ItemID == itemID && claim.UserID == userID && claim.Status == models.ClaimStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (s claimStoreStub) decide(id string, status models.ClaimStatus, reviewer string, notes *string, at time.Time) (*models.ClaimRequest, error) {
	claim, ok := s.w.claims[id]
	if !ok || claim.Status != models.ClaimStatusPending {
		return nil, repository.ErrStaleStatus
	}
	claim.Status = status
	claim.ReviewedBy = &reviewer
	claim.ReviewedAt = &at
	claim.ReviewNotes = notes
	return claim, nil
}

func (s claimStoreStub) Approve(ctx context.Context, params repository.ApproveClaimParams) (*repository.ApproveClaimResult, error) {
	claim, err := s.decide(params.ClaimID, models.ClaimStatusApproved, params.ReviewerID, params.Notes, params.At)
	if err != nil {
		return nil, err
	}
	params.Return.ItemID = claim.ItemID
	item, err := s.w.transition(params.Return)
	if err != nil {
		claim.Status = models.ClaimStatusPending
		return nil, err
	}
	siblings := s.w.rejectPending(claim.ItemID, claim.ID, params.Siblings)
	s.w.claimed[claim.UserID]++
	s.w.record(params.Activity)
	return &repository.ApproveClaimResult{Claim: *claim, Item: *item, Siblings: siblings}, nil
}

func (s claimStoreStub) Reject(ctx context.Context, params repository.RejectClaimParams) (*repository.RejectClaimResult, error) {
	claim, err := s.decide(params.ClaimID, models.ClaimStatusRejected, params.ReviewerID, params.Notes, params.At)
	if err != nil {
		return nil, err
	}
	s.w.record(params.Activity)
	result := &repository.RejectClaimResult{Claim: *claim}
	for _, other := range s.w.claims {
		if other.ItemID == claim.ItemID && other.Status == models.ClaimStatusPending {
			return result, nil
		}
	}
	params.Reopen.ItemID = claim.ItemID
	if _, err := s.w.transition(params.Reopen); err == nil {
		result.Reopened = true
	}
	return result, nil
}

type userReaderStub struct {
	users map[string]*models.User
}

func (s userReaderStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *user
	return &copy, nil
}

type sentMessage struct {
	users    []string
	security bool
	msg      Message
}

type notifierStub struct {
	sent []sentMessage
}

func (n *notifierStub) NotifyUsers(ctx context.Context, userIDs []string, msg Message) {
	n.sent = append(n.sent, sentMessage{users: userIDs, msg: msg})
}

func (n *notifierStub) NotifySecurity(ctx context.Context, msg Message) {
	n.sent = append(n.sent, sentMessage{security: true, msg: msg})
}

func (n *notifierStub) toUser(userID string) []Message {
	var result []Message
	for _, sent := range n.sent {
		for _, id := range sent.users {
			if id == userID {
				result = append(result, sent.msg)
			}
		}
	}
	return result
}

func (n *notifierStub) toSecurity() []Message {
	var result []Message
	for _, sent := range n.sent {
		if sent.security {
			result = append(result, sent.msg)
		}
	}
	return result
}

func containsStatus(statuses []models.ItemStatus, status models.ItemStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

var (
	studentActor  = &Actor{ID: "user1", Email: "student@uni.edu", Role: models.RoleStudent}
	securityActor = &Actor{ID: "sec1", Email: "guard@uni.edu", Role: models.RoleSecurity}
	adminActor    = &Actor{ID: "admin1", Email: "head@uni.edu", Role: models.RoleAdmin}
)
