package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lostfound-api/internal/models"
)

type streamRecorder struct {
	args []*redis.XAddArgs
	err  error
}

func (s *streamRecorder) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	s.args = append(s.args, a)
	if s.err != nil {
		return redis.NewStringResult("", s.err)
	}
	return redis.NewStringResult("1700000000000-0", nil)
}

func TestDeliveryStreamDispatchFullRequest(t *testing.T) {
	recorder := &streamRecorder{}
	stream := NewDeliveryStream(recorder, "lostfound:notifications", 10000)
	token, itemID, claimID := "fcm-token", "item-1", "claim-1"

	err := stream.Dispatch(context.Background(), models.Notification{
		ID:            "n-1",
		RecipientID:   "user-1",
		DeliveryToken: &token,
		Title:         "Claim approved",
		Body:          "Pick up your umbrella at the security desk.",
		Type:          models.NotificationClaimApproved,
		ItemID:        &itemID,
		ClaimID:       &claimID,
	})
	require.NoError(t, err)

	require.Len(t, recorder.args, 1)
	args := recorder.args[0]
	assert.Equal(t, "lostfound:notifications", args.Stream)
	assert.Equal(t, int64(10000), args.MaxLen)
	assert.True(t, args.Approx)
	assert.Equal(t, map[string]interface{}{
		"notification_id": "n-1",
		"recipient_id":    "user-1",
		"title":           "Claim approved",
		"body":            "Pick up your umbrella at the security desk.",
		"type":            models.NotificationClaimApproved,
		"token":           "fcm-token",
		"item_id":         "item-1",
		"claim_id":        "claim-1",
	}, args.Values)
}

func TestDeliveryStreamDispatchOmitsAbsentFields(t *testing.T) {
	recorder := &streamRecorder{}
	stream := NewDeliveryStream(recorder, "lostfound:notifications", 0)

	require.NoError(t, stream.Dispatch(context.Background(), models.Notification{
		ID: "n-2", RecipientID: "sec-1", Title: "Found item awaiting approval", Type: models.NotificationItemSubmitted,
	}))

	args := recorder.args[0]
	assert.Zero(t, args.MaxLen)
	assert.False(t, args.Approx)
	values, ok := args.Values.(map[string]interface{})
	require.True(t, ok)
	assert.NotContains(t, values, "token")
	assert.NotContains(t, values, "item_id")
	assert.NotContains(t, values, "claim_id")
}

func TestDeliveryStreamDispatchWrapsRedisError(t *testing.T) {
	recorder := &streamRecorder{err: errors.New("READONLY replica")}
	stream := NewDeliveryStream(recorder, "lostfound:notifications", 100)

	err := stream.Dispatch(context.Background(), models.Notification{ID: "n-3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xadd lostfound:notifications")
	assert.Contains(t, err.Error(), "READONLY replica")
}
