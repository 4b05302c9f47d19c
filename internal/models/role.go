package models

import "strings"

// UserRole represents the three-tier role hierarchy (Admin ⊇ Security ⊇ Student).
type UserRole string

const (
	RoleStudent  UserRole = "STUDENT"
	RoleSecurity UserRole = "SECURITY"
	RoleAdmin    UserRole = "ADMIN"
)

// ParseRole normalises a raw role string, reporting whether it names a known role.
func ParseRole(raw string) (UserRole, bool) {
	role := UserRole(strings.ToUpper(strings.TrimSpace(raw)))
	switch role {
	case RoleStudent, RoleSecurity, RoleAdmin:
		return role, true
	default:
		return role, false
	}
}
