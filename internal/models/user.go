package models

import "time"

// User is an account record with its role and activity counters.
type User struct {
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	DisplayName   string    `db:"display_name" json:"displayName"`
	Role          UserRole  `db:"role" json:"role"`
	Blocked       bool      `db:"blocked" json:"blocked"`
	ItemsReported int       `db:"items_reported" json:"itemsReported"`
	ItemsFound    int       `db:"items_found" json:"itemsFound"`
	ItemsClaimed  int       `db:"items_claimed" json:"itemsClaimed"`
	DeliveryToken *string   `db:"delivery_token" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	Blocked  *bool
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int    `json:"page,omitempty"`
	PageSize   int    `json:"page_size,omitempty"`
	TotalCount int    `json:"total_count,omitempty"`
	NextCursor string `json:"next_cursor,omitempty"`
}
