package models

import "time"

// DeliveryStatus tracks a notification's hand-off to the delivery transport.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliverySent    DeliveryStatus = "SENT"
	DeliveryFailed  DeliveryStatus = "FAILED"
	DeliverySkipped DeliveryStatus = "SKIPPED"
)

// Notification types.
const (
	NotificationItemSubmitted  = "ITEM_SUBMITTED"
	NotificationItemApproved   = "ITEM_APPROVED"
	NotificationItemRejected   = "ITEM_REJECTED"
	NotificationClaimSubmitted = "CLAIM_SUBMITTED"
	NotificationClaimApproved  = "CLAIM_APPROVED"
	NotificationClaimRejected  = "CLAIM_REJECTED"
)

// Notification is a durable delivery request for one recipient.
type Notification struct {
	ID             string         `db:"id" json:"id"`
	RecipientID    string         `db:"recipient_id" json:"recipientId"`
	DeliveryToken  *string        `db:"delivery_token" json:"-"`
	Title          string         `db:"title" json:"title"`
	Body           string         `db:"body" json:"body"`
	Type           string         `db:"type" json:"type"`
	ItemID         *string        `db:"item_id" json:"itemId,omitempty"`
	ClaimID        *string        `db:"claim_id" json:"claimId,omitempty"`
	DeliveryStatus DeliveryStatus `db:"delivery_status" json:"deliveryStatus"`
	Attempts       int            `db:"attempts" json:"attempts"`
	LastError      *string        `db:"last_error" json:"-"`
	DeliveredAt    *time.Time     `db:"delivered_at" json:"deliveredAt,omitempty"`
	Opened         bool           `db:"opened" json:"opened"`
	OpenedAt       *time.Time     `db:"opened_at" json:"openedAt,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// NotificationStats aggregates delivery and open counts.
type NotificationStats struct {
	Total   int `db:"total" json:"total"`
	Pending int `db:"pending" json:"pending"`
	Sent    int `db:"sent" json:"sent"`
	Failed  int `db:"failed" json:"failed"`
	Skipped int `db:"skipped" json:"skipped"`
	Opened  int `db:"opened" json:"opened"`
}
