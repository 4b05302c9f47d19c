package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DonationStatus is the donation-track view of an item's status.
type DonationStatus string

const (
	DonationStatusPending DonationStatus = "PENDING"
	DonationStatusReady   DonationStatus = "READY"
	DonationStatusDonated DonationStatus = "DONATED"
)

// DonationStatusOf maps an item status onto the donation track.
func DonationStatusOf(status ItemStatus) (DonationStatus, bool) {
	switch status {
	case ItemStatusDonationPending:
		return DonationStatusPending, true
	case ItemStatusDonationReady:
		return DonationStatusReady, true
	case ItemStatusDonated:
		return DonationStatusDonated, true
	}
	return "", false
}

// ItemStatusOf maps a donation status back to the item status.
func (s DonationStatus) ItemStatus() (ItemStatus, bool) {
	switch s {
	case DonationStatusPending:
		return ItemStatusDonationPending, true
	case DonationStatusReady:
		return ItemStatusDonationReady, true
	case DonationStatusDonated:
		return ItemStatusDonated, true
	}
	return "", false
}

// DonationItem projects an item on the donation track.
type DonationItem struct {
	ItemID       string              `json:"itemId"`
	Name         string              `json:"name"`
	Category     string              `json:"category"`
	Location     string              `json:"location"`
	Status       DonationStatus      `json:"status"`
	CreatedAt    time.Time           `json:"createdAt"`
	EligibleAt   *time.Time          `json:"eligibleAt,omitempty"`
	AgeInDays    int                 `json:"ageInDays"`
	AgeLabel     string              `json:"ageLabel"`
	DonatedAt    *time.Time          `json:"donatedAt,omitempty"`
	DonatedTo    *string             `json:"donatedTo,omitempty"`
	DonatedValue decimal.NullDecimal `json:"donatedValue"`
}
