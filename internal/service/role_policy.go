package service

import (
	"strings"

	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/pkg/config"
)

// DefaultLegacyAdminEmail is the address treated as admin by accounts that predate the role field.
const DefaultLegacyAdminEmail = "admin@gmail.com"

// RolePolicy answers capability questions from a role string plus the legacy email rules.
// Admin implies Security, which implies access to sensitive item details.
type RolePolicy struct {
	legacyAdminEmail string
	legacyFallback   bool
}

// Capabilities summarises what a caller may do.
type Capabilities struct {
	Role              string `json:"role"`
	Admin             bool   `json:"admin"`
	Security          bool   `json:"security"`
	Student           bool   `json:"student"`
	ViewSensitiveInfo bool   `json:"viewSensitiveInfo"`
}

// NewRolePolicy builds a policy from configuration.
func NewRolePolicy(cfg config.RoleConfig) *RolePolicy {
	email := strings.TrimSpace(cfg.LegacyAdminEmail)
	if email == "" {
		email = DefaultLegacyAdminEmail
	}
	return &RolePolicy{legacyAdminEmail: email, legacyFallback: cfg.LegacyEmailFallback}
}

// IsAdmin reports ADMIN role, or the legacy admin address while the fallback is on.
func (p *RolePolicy) IsAdmin(role, email string) bool {
	if normalizeRole(role) == models.RoleAdmin {
		return true
	}
	return p.legacyFallback && strings.EqualFold(strings.TrimSpace(email), p.legacyAdminEmail)
}

// IsSecurity reports SECURITY role, admin capability, or a legacy "security" address.
func (p *RolePolicy) IsSecurity(role, email string) bool {
	if normalizeRole(role) == models.RoleSecurity || p.IsAdmin(role, email) {
		return true
	}
	return p.legacyFallback && strings.Contains(strings.ToLower(email), "security")
}

// IsStudent reports STUDENT role. No email rule applies.
func (p *RolePolicy) IsStudent(role string) bool {
	return normalizeRole(role) == models.RoleStudent
}

// CanViewSensitiveInfo gates contact details and claimant data.
func (p *RolePolicy) CanViewSensitiveInfo(role, email string) bool {
	return p.IsAdmin(role, email) || p.IsSecurity(role, email)
}

// IsValidRole reports whether role names one of the three tiers, ignoring case.
func (p *RolePolicy) IsValidRole(role string) bool {
	_, ok := models.ParseRole(role)
	return ok
}

// Capabilities evaluates every capability for an actor.
func (p *RolePolicy) Capabilities(actor Actor) Capabilities {
	role := string(actor.Role)
	return Capabilities{
		Role:              string(normalizeRole(role)),
		Admin:             p.IsAdmin(role, actor.Email),
		Security:          p.IsSecurity(role, actor.Email),
		Student:           p.IsStudent(role),
		ViewSensitiveInfo: p.CanViewSensitiveInfo(role, actor.Email),
	}
}

func (p *RolePolicy) actorIsAdmin(actor *Actor) bool {
	return actor != nil && p.IsAdmin(string(actor.Role), actor.Email)
}

func (p *RolePolicy) actorIsSecurity(actor *Actor) bool {
	return actor != nil && p.IsSecurity(string(actor.Role), actor.Email)
}

func normalizeRole(role string) models.UserRole {
	parsed, _ := models.ParseRole(role)
	return parsed
}
