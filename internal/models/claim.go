package models

import "time"

// ClaimStatus captures the review states of a claim request.
type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "PENDING"
	ClaimStatusApproved ClaimStatus = "APPROVED"
	ClaimStatusRejected ClaimStatus = "REJECTED"
)

// ClaimRequest is a user's ownership claim against a found item.
type ClaimRequest struct {
	ID               string      `db:"id" json:"id"`
	ItemID           string      `db:"item_id" json:"itemId"`
	ItemName         string      `db:"item_name" json:"itemName"`
	UserID           string      `db:"user_id" json:"userId"`
	UserEmail        string      `db:"user_email" json:"userEmail"`
	UserPhone        *string     `db:"user_phone" json:"userPhone,omitempty"`
	Reason           string      `db:"reason" json:"reason"`
	ProofDescription string      `db:"proof_description" json:"proofDescription"`
	Status           ClaimStatus `db:"status" json:"status"`
	RequestedAt      time.Time   `db:"requested_at" json:"requestedAt"`
	ReviewedBy       *string     `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt       *time.Time  `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ReviewNotes      *string     `db:"review_notes" json:"reviewNotes,omitempty"`
}

// ClaimFilter constrains claim listing queries.
type ClaimFilter struct {
	Status []ClaimStatus
	ItemID string
	UserID string
	Limit  int
	Offset int
}
