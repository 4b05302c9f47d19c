package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lostfound-api/internal/dto"
	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/pagination"
)

type activityStoreStub struct {
	entries  []models.ActivityLog
	archived map[string]models.ActivityLog
	filter   models.ActivityFilter
}

func (s *activityStoreStub) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, error) {
	s.filter = filter
	if filter.Limit < len(s.entries) {
		return s.entries[:filter.Limit], nil
	}
	return s.entries, nil
}

func (s *activityStoreStub) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.archived == nil {
		s.archived = make(map[string]models.ActivityLog)
	}
	var kept []models.ActivityLog
	var moved int64
	for _, entry := range s.entries {
		if entry.CreatedAt.Before(cutoff) {
			s.archived[entry.ID] = entry
			moved++
			continue
		}
		kept = append(kept, entry)
	}
	s.entries = kept
	return moved, nil
}

func TestActivityServiceListPaginates(t *testing.T) {
	store := &activityStoreStub{}
	for i := 0; i < 3; i++ {
		store.entries = append(store.entries, models.ActivityLog{ID: uuid.NewString(), CreatedAt: testNow.Add(-time.Duration(i) * time.Minute)})
	}
	svc := NewActivityService(store, 0, fixedClock(testNow), nil)

	page, next, err := svc.List(context.Background(), dto.ActivityQuery{Limit: 2, Action: models.ActivityItemApproved})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	require.NotEmpty(t, next)
	assert.Equal(t, 3, store.filter.Limit)
	assert.Equal(t, models.ActivityItemApproved, store.filter.Action)

	cursor, err := pagination.Parse(next)
	require.NoError(t, err)
	assert.Equal(t, page[1].ID, cursor.ID)

	_, _, err = svc.List(context.Background(), dto.ActivityQuery{Cursor: next})
	require.NoError(t, err)
	require.NotNil(t, store.filter.Cursor)
	assert.Equal(t, page[1].ID, store.filter.Cursor.ID)
}

func TestActivityServiceListRejectsBadInput(t *testing.T) {
	svc := NewActivityService(&activityStoreStub{}, 0, nil, nil)

	_, _, err := svc.List(context.Background(), dto.ActivityQuery{Cursor: "%%%"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	from := testNow
	to := testNow.Add(-time.Hour)
	_, _, err = svc.List(context.Background(), dto.ActivityQuery{From: &from, To: &to})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestActivityServiceArchiveExpiredIsRerunnable(t *testing.T) {
	store := &activityStoreStub{entries: []models.ActivityLog{
		{ID: "old", CreatedAt: testNow.AddDate(-2, 0, 0)},
		{ID: "recent", CreatedAt: testNow.AddDate(0, -1, 0)},
	}}
	svc := NewActivityService(store, 365, fixedClock(testNow), nil)

	result, err := svc.ArchiveExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Archived)
	require.NotNil(t, result.Cutoff)
	assert.Equal(t, testNow.Add(-365*24*time.Hour), *result.Cutoff)
	assert.Contains(t, store.archived, "old")

	again, err := svc.ArchiveExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.Archived)
}
