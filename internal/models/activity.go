package models

import "time"

// Activity actions recorded for every state-changing operation.
const (
	ActivityItemReported      = "ITEM_REPORTED"
	ActivityItemApproved      = "ITEM_APPROVED"
	ActivityItemRejected      = "ITEM_REJECTED"
	ActivityItemStatusChanged = "ITEM_STATUS_CHANGED"
	ActivityItemFlagged       = "ITEM_FLAGGED_FOR_DONATION"
	ActivityDonationReady     = "DONATION_MARKED_READY"
	ActivityItemDonated       = "ITEM_DONATED"
	ActivityItemDeleted       = "ITEM_DELETED"
	ActivityClaimCreated      = "CLAIM_CREATED"
	ActivityClaimApproved     = "CLAIM_APPROVED"
	ActivityClaimRejected     = "CLAIM_REJECTED"
	ActivityUserRoleChanged   = "USER_ROLE_CHANGED"
	ActivityUserBlocked       = "USER_BLOCKED"
	ActivityUserUnblocked     = "USER_UNBLOCKED"
)

// Activity target types.
const (
	TargetItem  = "ITEM"
	TargetClaim = "CLAIM"
	TargetUser  = "USER"
)

// SystemActor identifies scheduled jobs in audit entries.
const SystemActor = "system"

// ActivityLog is an append-only audit record.
type ActivityLog struct {
	ID            string    `db:"id" json:"id"`
	ActorID       string    `db:"actor_id" json:"actorId"`
	ActorEmail    *string   `db:"actor_email" json:"actorEmail,omitempty"`
	Action        string    `db:"action" json:"action"`
	TargetType    string    `db:"target_type" json:"targetType"`
	TargetID      string    `db:"target_id" json:"targetId"`
	PreviousValue *string   `db:"previous_value" json:"previousValue,omitempty"`
	NewValue      *string   `db:"new_value" json:"newValue,omitempty"`
	Description   string    `db:"description" json:"description"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// ActivityFilter constrains activity listing queries.
type ActivityFilter struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	From       *time.Time
	To         *time.Time
	Limit      int
	Cursor     *Cursor
}
