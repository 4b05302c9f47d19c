package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemStatus enumerates the lifecycle states of a lost or found report.
type ItemStatus string

const (
	ItemStatusPendingApproval ItemStatus = "PENDING_APPROVAL"
	ItemStatusActive          ItemStatus = "ACTIVE"
	ItemStatusRequested       ItemStatus = "REQUESTED"
	ItemStatusReturned        ItemStatus = "RETURNED"
	ItemStatusDonationPending ItemStatus = "DONATION_PENDING"
	ItemStatusDonationReady   ItemStatus = "DONATION_READY"
	ItemStatusDonated         ItemStatus = "DONATED"
	ItemStatusRejected        ItemStatus = "REJECTED"
)

// itemTransitions lists every permitted edge of the item state machine.
var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemStatusPendingApproval: {ItemStatusActive, ItemStatusRejected},
	ItemStatusActive:          {ItemStatusRequested, ItemStatusDonationPending},
	ItemStatusRequested:       {ItemStatusReturned, ItemStatusActive},
	ItemStatusDonationPending: {ItemStatusDonationReady},
	ItemStatusDonationReady:   {ItemStatusDonated},
}

// Valid reports whether s is a defined status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusPendingApproval, ItemStatusActive, ItemStatusRequested, ItemStatusReturned,
		ItemStatusDonationPending, ItemStatusDonationReady, ItemStatusDonated, ItemStatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s ItemStatus) CanTransitionTo(next ItemStatus) bool {
	for _, allowed := range itemTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s ItemStatus) Terminal() bool {
	return len(itemTransitions[s]) == 0
}

// Item represents one lost or found report.
type Item struct {
	ID           string              `db:"id" json:"id"`
	Name         string              `db:"name" json:"name"`
	Description  string              `db:"description" json:"description"`
	Location     string              `db:"location" json:"location"`
	ContactInfo  string              `db:"contact_info" json:"contactInfo,omitempty"`
	IsLost       bool                `db:"is_lost" json:"isLost"`
	Status       ItemStatus          `db:"status" json:"status"`
	Category     string              `db:"category" json:"category"`
	OwnerID      string              `db:"owner_id" json:"ownerId"`
	OwnerEmail   string              `db:"owner_email" json:"ownerEmail,omitempty"`
	ImageRef     *string             `db:"image_ref" json:"imageRef,omitempty"`
	ApprovedBy   *string             `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt   *time.Time          `db:"approved_at" json:"approvedAt,omitempty"`
	ReviewNotes  *string             `db:"review_notes" json:"reviewNotes,omitempty"`
	EligibleAt   *time.Time          `db:"eligible_at" json:"eligibleAt,omitempty"`
	DonatedAt    *time.Time          `db:"donated_at" json:"donatedAt,omitempty"`
	DonatedTo    *string             `db:"donated_to" json:"donatedTo,omitempty"`
	DonatedValue decimal.NullDecimal `db:"donated_value" json:"donatedValue"`
	CreatedAt    time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updatedAt"`
}

// ItemFilter constrains item listing queries.
type ItemFilter struct {
	Status   []ItemStatus
	IsLost   *bool
	Category string
	OwnerID  string
	Search   string
	// EligibleBefore selects found items whose donation eligibility has passed.
	EligibleBefore *time.Time
	Limit          int
	Cursor         *Cursor
}

// Cursor positions keyset pagination over (created_at, id).
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// StatusChange is one entry of an item's status history.
type StatusChange struct {
	ID             string     `db:"id" json:"id"`
	ItemID         string     `db:"item_id" json:"itemId"`
	PreviousStatus ItemStatus `db:"previous_status" json:"previousStatus"`
	NewStatus      ItemStatus `db:"new_status" json:"newStatus"`
	ChangedBy      string     `db:"changed_by" json:"changedBy"`
	Reason         *string    `db:"reason" json:"reason,omitempty"`
	ChangedAt      time.Time  `db:"changed_at" json:"changedAt"`
}
