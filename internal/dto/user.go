package dto

// RegisterUserRequest creates the account record for a newly authenticated user.
type RegisterUserRequest struct {
	ID          string `json:"-"`
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"required,max=120"`
}

// UpdateRoleRequest changes a user's role.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// SetBlockedRequest toggles the blocked flag.
type SetBlockedRequest struct {
	Blocked bool `json:"blocked"`
}

// DeliveryTokenRequest stores or clears the caller's push token.
type DeliveryTokenRequest struct {
	Token string `json:"token" validate:"max=4096"`
}
