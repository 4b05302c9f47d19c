package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/lostfound-api/internal/models"
)

type streamAppender interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// DeliveryStream appends delivery requests to a Redis stream consumed by the push transport.
type DeliveryStream struct {
	client streamAppender
	stream string
	maxLen int64
}

// NewDeliveryStream constructs a stream writer. maxLen bounds the stream approximately; zero leaves it unbounded.
func NewDeliveryStream(client streamAppender, stream string, maxLen int64) *DeliveryStream {
	return &DeliveryStream{client: client, stream: stream, maxLen: maxLen}
}

// Dispatch appends one delivery request and returns once Redis has accepted it.
func (s *DeliveryStream) Dispatch(ctx context.Context, n models.Notification) error {
	values := map[string]interface{}{
		"notification_id": n.ID,
		"recipient_id":    n.RecipientID,
		"title":           n.Title,
		"body":            n.Body,
		"type":            n.Type,
	}
	if n.DeliveryToken != nil {
		values["token"] = *n.DeliveryToken
	}
	if n.ItemID != nil {
		values["item_id"] = *n.ItemID
	}
	if n.ClaimID != nil {
		values["claim_id"] = *n.ClaimID
	}
	args := &redis.XAddArgs{Stream: s.stream, Values: values}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
