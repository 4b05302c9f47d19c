package dto

import "github.com/noah-isme/lostfound-api/internal/models"

// CreateClaimRequest is the payload for claiming a found item.
type CreateClaimRequest struct {
	ItemID           string `json:"itemId" validate:"required"`
	ItemName         string `json:"itemName" validate:"max=120"`
	Reason           string `json:"reason" validate:"required,max=1000"`
	ProofDescription string `json:"proofDescription" validate:"required,max=2000"`
	Phone            string `json:"phone" validate:"omitempty,max=40"`
}

// ReviewClaimRequest carries optional reviewer notes.
type ReviewClaimRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

// ClaimQuery mirrors supported claim listing filters.
type ClaimQuery struct {
	Status []models.ClaimStatus
	ItemID string
	UserID string
	Page   int
	Size   int
}
