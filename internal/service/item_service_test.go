package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lostfound-api/internal/dto"
	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
)

func newItemServiceFixture() (*ItemService, *memWorld, *notifierStub) {
	world := newMemWorld()
	notifier := &notifierStub{}
	svc := NewItemService(itemStoreStub{w: world}, notifier, newTestPolicy(), nil, nil, WithItemClock(fixedClock(testNow)))
	return svc, world, notifier
}

func pendingFoundItem(id string) models.Item {
	return models.Item{
		ID:          id,
		Name:        "Blue backpack",
		Location:    "Library",
		ContactInfo: "0812-555",
		OwnerID:     "owner1",
		OwnerEmail:  "finder@uni.edu",
		Status:      models.ItemStatusPendingApproval,
		Category:    "BAGS",
		CreatedAt:   testNow.Add(-time.Hour),
	}
}

func TestItemServiceReportFoundItem(t *testing.T) {
	svc, world, notifier := newItemServiceFixture()

	item, err := svc.Report(context.Background(), dto.ReportItemRequest{
		Name:     " Blue backpack ",
		Location: "Library",
		Category: "bags",
	}, &Actor{ID: "owner1", Email: "finder@uni.edu", Role: models.RoleStudent})
	require.NoError(t, err)

	assert.Equal(t, models.ItemStatusPendingApproval, item.Status)
	assert.Equal(t, "Blue backpack", item.Name)
	assert.Equal(t, "BAGS", item.Category)
	require.NotNil(t, item.EligibleAt)
	assert.Equal(t, testNow.Add(365*24*time.Hour), *item.EligibleAt)

	require.Len(t, world.activities, 1)
	assert.Equal(t, models.ActivityItemReported, world.activities[0].Action)
	assert.Equal(t, item.ID, world.activities[0].TargetID)

	security := notifier.toSecurity()
	require.Len(t, security, 1)
	assert.Equal(t, models.NotificationItemSubmitted, security[0].Type)
}

func TestItemServiceReportLostItemIsActive(t *testing.T) {
	svc, _, notifier := newItemServiceFixture()

	item, err := svc.Report(context.Background(), dto.ReportItemRequest{
		Name: "Keys", Location: "Gym", Category: "KEYS", IsLost: true,
	}, studentActor)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusActive, item.Status)
	assert.Nil(t, item.EligibleAt)
	assert.Empty(t, notifier.sent)
}

func TestItemServiceReportValidation(t *testing.T) {
	svc, _, _ := newItemServiceFixture()

	_, err := svc.Report(context.Background(), dto.ReportItemRequest{Name: "Keys"}, studentActor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

type failingCreateStore struct {
	itemStoreStub
	err error
}

func (s failingCreateStore) Create(ctx context.Context, item *models.Item, entry *models.ActivityLog) error {
	return fmt.Errorf("create item: %w", s.err)
}

func TestItemServiceReportStoreFailures(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		want      *appErrors.Error
		transient bool
	}{
		{name: "unregistered reporter", err: &pq.Error{Code: "23503", Constraint: "items_owner_id_fkey"}, want: appErrors.ErrNotFound},
		{name: "malformed reporter id", err: &pq.Error{Code: "22P02"}, want: appErrors.ErrValidation},
		{name: "connection lost", err: errors.New("driver: bad connection"), want: appErrors.ErrStoreUnavailable, transient: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			notifier := &notifierStub{}
			store := failingCreateStore{itemStoreStub: itemStoreStub{w: newMemWorld()}, err: tc.err}
			svc := NewItemService(store, notifier, newTestPolicy(), nil, nil, WithItemClock(fixedClock(testNow)))

			_, err := svc.Report(context.Background(), dto.ReportItemRequest{
				Name: "Umbrella", Location: "Cafeteria", Category: "OTHER",
			}, studentActor)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))
			assert.Equal(t, tc.transient, appErrors.IsTransient(err))
			assert.Empty(t, notifier.sent)
		})
	}
}

func TestItemServiceApprove(t *testing.T) {
	svc, world, notifier := newItemServiceFixture()
	world.addItem(pendingFoundItem("item1"))

	item, err := svc.Approve(context.Background(), "item1", securityActor)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusActive, item.Status)
	require.NotNil(t, item.ApprovedBy)
	assert.Equal(t, "sec1", *item.ApprovedBy)

	owner := notifier.toUser("owner1")
	require.Len(t, owner, 1)
	assert.Equal(t, models.NotificationItemApproved, owner[0].Type)

	_, err = svc.Approve(context.Background(), "item1", securityActor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestItemServiceRejectRecordsNotes(t *testing.T) {
	svc, world, notifier := newItemServiceFixture()
	world.addItem(pendingFoundItem("item1"))

	item, err := svc.Reject(context.Background(), "item1", "damaged", securityActor)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusRejected, item.Status)
	require.NotNil(t, item.ReviewNotes)
	assert.Equal(t, "damaged", *item.ReviewNotes)

	require.Len(t, world.changes, 1)
	require.NotNil(t, world.changes[0].Reason)
	assert.Equal(t, "damaged", *world.changes[0].Reason)

	require.Len(t, world.activities, 1)
	entry := world.activities[0]
	assert.Equal(t, models.ActivityItemRejected, entry.Action)
	assert.Equal(t, "sec1", entry.ActorID)
	assert.Contains(t, entry.Description, "damaged")

	owner := notifier.toUser("owner1")
	require.Len(t, owner, 1)
	assert.Equal(t, models.NotificationItemRejected, owner[0].Type)
	assert.Contains(t, owner[0].Body, "damaged")
}

func TestItemServiceApproveRequiresSecurity(t *testing.T) {
	svc, world, _ := newItemServiceFixture()
	world.addItem(pendingFoundItem("item1"))

	_, err := svc.Approve(context.Background(), "item1", studentActor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Equal(t, models.ItemStatusPendingApproval, world.items["item1"].Status)
}

func TestItemServiceTransitionRefusesUnknownEdge(t *testing.T) {
	svc, world, _ := newItemServiceFixture()
	item := pendingFoundItem("item1")
	item.Status = models.ItemStatusReturned
	world.addItem(item)

	_, err := svc.Transition(context.Background(), TransitionRequest{
		ItemID: "item1",
		From:   models.ItemStatusReturned,
		To:     models.ItemStatusActive,
		Actor:  *adminActor,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Empty(t, world.changes)
}

func TestItemServiceTransitionMissingItem(t *testing.T) {
	svc, _, _ := newItemServiceFixture()

	_, err := svc.Transition(context.Background(), TransitionRequest{
		ItemID: "missing",
		From:   models.ItemStatusActive,
		To:     models.ItemStatusDonationPending,
		Actor:  SystemActorValue,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestItemServiceTransitionStaleStatus(t *testing.T) {
	svc, world, _ := newItemServiceFixture()
	item := pendingFoundItem("item1")
	item.Status = models.ItemStatusRequested
	world.addItem(item)

	_, err := svc.Transition(context.Background(), TransitionRequest{
		ItemID: "item1",
		From:   models.ItemStatusActive,
		To:     models.ItemStatusDonationPending,
		Actor:  SystemActorValue,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestItemServiceDonationTrack(t *testing.T) {
	svc, world, notifier := newItemServiceFixture()
	item := pendingFoundItem("item1")
	item.Status = models.ItemStatusActive
	world.addItem(item)
	ctx := context.Background()

	flagged, err := svc.FlagForDonation(ctx, "item1", adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusDonationPending, flagged.Status)

	ready, err := svc.MarkDonationReady(ctx, "item1", adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusDonationReady, ready.Status)

	donated, err := svc.MarkDonated(ctx, "item1", dto.CompleteDonationRequest{
		DonatedTo:    "City Shelter",
		DonatedValue: decimal.RequireFromString("12.50"),
	}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusDonated, donated.Status)
	require.NotNil(t, donated.DonatedTo)
	assert.Equal(t, "City Shelter", *donated.DonatedTo)
	assert.True(t, donated.DonatedValue.Valid)
	assert.Equal(t, "12.50", donated.DonatedValue.Decimal.StringFixed(2))
	assert.True(t, donated.Status.Terminal())

	assert.Equal(t, []string{models.ActivityItemFlagged, models.ActivityDonationReady, models.ActivityItemDonated}, world.actions())
	assert.Contains(t, world.activities[2].Description, "City Shelter")
	assert.Empty(t, notifier.sent)
}

func TestItemServiceDonationGuards(t *testing.T) {
	svc, world, _ := newItemServiceFixture()
	lost := pendingFoundItem("lost1")
	lost.Status = models.ItemStatusActive
	lost.IsLost = true
	world.addItem(lost)
	ctx := context.Background()

	_, err := svc.FlagForDonation(ctx, "lost1", adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	_, err = svc.FlagForDonation(ctx, "lost1", securityActor)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.MarkDonationReady(ctx, "lost1", adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	_, err = svc.MarkDonated(ctx, "lost1", dto.CompleteDonationRequest{DonatedTo: "Shelter", DonatedValue: decimal.NewFromInt(-1)}, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestItemServiceDeleteRejectsPendingClaims(t *testing.T) {
	svc, world, notifier := newItemServiceFixture()
	item := pendingFoundItem("item1")
	item.Status = models.ItemStatusRequested
	world.addItem(item)
	world.addClaim(models.ClaimRequest{ID: "c1", ItemID: "item1", ItemName: "Blue backpack", UserID: "u1", Status: models.ClaimStatusPending})
	world.addClaim(models.ClaimRequest{ID: "c2", ItemID: "item1", ItemName: "Blue backpack", UserID: "u2", Status: models.ClaimStatusRejected})

	err := svc.Delete(context.Background(), "item1", adminActor)
	require.NoError(t, err)

	_, exists := world.items["item1"]
	assert.False(t, exists)
	assert.Equal(t, models.ClaimStatusRejected, world.claims["c1"].Status)
	require.NotNil(t, world.claims["c1"].ReviewNotes)
	assert.Equal(t, RemovedItemNote, *world.claims["c1"].ReviewNotes)
	assert.Equal(t, []string{models.ActivityClaimRejected, models.ActivityItemDeleted}, world.actions())

	require.Len(t, notifier.toUser("u1"), 1)
	assert.Empty(t, notifier.toUser("u2"))

	err = svc.Delete(context.Background(), "item1", adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestItemServiceGetRedactsContactInfo(t *testing.T) {
	svc, world, _ := newItemServiceFixture()
	item := pendingFoundItem("item1")
	item.Status = models.ItemStatusActive
	world.addItem(item)
	ctx := context.Background()

	visible, err := svc.Get(ctx, "item1", studentActor)
	require.NoError(t, err)
	assert.Empty(t, visible.ContactInfo)
	assert.Empty(t, visible.OwnerEmail)

	full, err := svc.Get(ctx, "item1", securityActor)
	require.NoError(t, err)
	assert.Equal(t, "0812-555", full.ContactInfo)
}

func TestItemServiceGetHidesUnapprovedFromOthers(t *testing.T) {
	svc, world, _ := newItemServiceFixture()
	world.addItem(pendingFoundItem("item1"))

	_, err := svc.Get(context.Background(), "item1", studentActor)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	item, err := svc.Get(context.Background(), "item1", &Actor{ID: "owner1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "0812-555", item.ContactInfo)
}

func TestItemServiceListScopesStudents(t *testing.T) {
	svc, world, _ := newItemServiceFixture()
	ctx := context.Background()

	_, _, err := svc.List(ctx, dto.ItemQuery{}, studentActor)
	require.NoError(t, err)
	assert.Equal(t, []models.ItemStatus{models.ItemStatusActive, models.ItemStatusRequested, models.ItemStatusReturned}, world.itemFilter.Status)

	_, _, err = svc.List(ctx, dto.ItemQuery{Status: []models.ItemStatus{models.ItemStatusPendingApproval}}, studentActor)
	require.NoError(t, err)
	assert.Equal(t, studentActor.ID, world.itemFilter.OwnerID)

	_, _, err = svc.List(ctx, dto.ItemQuery{Status: []models.ItemStatus{models.ItemStatusPendingApproval}}, securityActor)
	require.NoError(t, err)
	assert.Empty(t, world.itemFilter.OwnerID)

	_, _, err = svc.List(ctx, dto.ItemQuery{Status: []models.ItemStatus{"LOST_FOREVER"}}, securityActor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestItemServiceHistory(t *testing.T) {
	svc, world, _ := newItemServiceFixture()
	world.addItem(pendingFoundItem("item1"))
	ctx := context.Background()

	_, err := svc.Approve(ctx, "item1", securityActor)
	require.NoError(t, err)

	changes, err := svc.History(ctx, "item1", &Actor{ID: "owner1", Role: models.RoleStudent})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, models.ItemStatusActive, changes[0].NewStatus)

	_, err = svc.History(ctx, "item1", studentActor)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}
