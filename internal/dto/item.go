package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lostfound-api/internal/models"
)

// ReportItemRequest is the payload for reporting a lost or found item.
type ReportItemRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description string  `json:"description" validate:"max=2000"`
	Location    string  `json:"location" validate:"required,max=200"`
	ContactInfo string  `json:"contactInfo" validate:"max=200"`
	IsLost      bool    `json:"isLost"`
	Category    string  `json:"category" validate:"required,max=60"`
	ImageRef    *string `json:"imageRef" validate:"omitempty,max=500"`
}

// ItemQuery mirrors supported item listing filters.
type ItemQuery struct {
	Status   []models.ItemStatus
	IsLost   *bool
	Category string
	OwnerID  string
	Search   string
	Cursor   string
	Limit    int
}

// RejectItemRequest carries optional reviewer notes.
type RejectItemRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

// CompleteDonationRequest records who received a donated item and its value.
type CompleteDonationRequest struct {
	DonatedTo    string          `json:"donatedTo" validate:"required,max=200"`
	DonatedValue decimal.Decimal `json:"donatedValue"`
}
