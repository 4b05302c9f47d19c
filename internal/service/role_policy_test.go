package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/pkg/config"
)

func newTestPolicy() *RolePolicy {
	return NewRolePolicy(config.RoleConfig{LegacyAdminEmail: DefaultLegacyAdminEmail, LegacyEmailFallback: true})
}

func TestRolePolicyLegacyAdminEmail(t *testing.T) {
	policy := newTestPolicy()
	assert.True(t, policy.IsAdmin("STUDENT", "admin@gmail.com"))
	assert.True(t, policy.IsAdmin("student", " Admin@Gmail.com "))
	assert.False(t, policy.IsAdmin("STUDENT", "someone@gmail.com"))
}

func TestRolePolicyCaseInsensitiveRoles(t *testing.T) {
	policy := newTestPolicy()
	assert.True(t, policy.IsAdmin("admin", ""))
	assert.True(t, policy.IsSecurity("Security", ""))
	assert.True(t, policy.IsStudent("student"))
	assert.True(t, policy.IsValidRole("sEcUrItY"))
	assert.False(t, policy.IsValidRole("JANITOR"))
	assert.False(t, policy.IsValidRole(""))
}

func TestRolePolicyLegacySecurityEmail(t *testing.T) {
	policy := newTestPolicy()
	assert.True(t, policy.IsSecurity("STUDENT", "campus.security@uni.edu"))
	assert.False(t, policy.IsAdmin("STUDENT", "campus.security@uni.edu"))
}

func TestRolePolicyFallbackDisabled(t *testing.T) {
	policy := NewRolePolicy(config.RoleConfig{LegacyEmailFallback: false})
	assert.False(t, policy.IsAdmin("STUDENT", "admin@gmail.com"))
	assert.False(t, policy.IsSecurity("STUDENT", "campus.security@uni.edu"))
	assert.True(t, policy.IsAdmin("ADMIN", "x@uni.edu"))
}

func TestRolePolicyHierarchyIsConsistent(t *testing.T) {
	policy := newTestPolicy()
	roles := []string{"STUDENT", "SECURITY", "ADMIN", "admin", "", "UNKNOWN"}
	emails := []string{"", "admin@gmail.com", "night.security@uni.edu", "student@uni.edu"}
	for _, role := range roles {
		for _, email := range emails {
			if policy.IsAdmin(role, email) {
				assert.True(t, policy.IsSecurity(role, email), "admin must be security: %q %q", role, email)
			}
			if policy.IsSecurity(role, email) {
				assert.True(t, policy.CanViewSensitiveInfo(role, email), "security must view sensitive: %q %q", role, email)
			}
		}
	}
}

func TestRolePolicyCapabilities(t *testing.T) {
	caps := newTestPolicy().Capabilities(Actor{ID: "u1", Role: models.RoleSecurity})
	assert.Equal(t, "SECURITY", caps.Role)
	assert.True(t, caps.Security)
	assert.False(t, caps.Admin)
	assert.False(t, caps.Student)
	assert.True(t, caps.ViewSensitiveInfo)
}
