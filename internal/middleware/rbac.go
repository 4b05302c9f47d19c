package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/internal/service"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/response"
)

// Capability names a permission tier evaluated by the role policy.
type Capability string

const (
	CapabilityAdmin    Capability = "admin"
	CapabilitySecurity Capability = "security"
	CapabilityStudent  Capability = "student"
)

// RequireCapability admits the request when the caller holds any of the listed capabilities.
// Security includes admins, so routes for reviewers only need CapabilitySecurity.
func RequireCapability(policy *service.RolePolicy, caps ...Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		granted := policy.Capabilities(*service.ActorFromClaims(claims))
		for _, capability := range caps {
			if hasCapability(granted, capability) {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

func hasCapability(granted service.Capabilities, capability Capability) bool {
	switch capability {
	case CapabilityAdmin:
		return granted.Admin
	case CapabilitySecurity:
		return granted.Security
	case CapabilityStudent:
		return granted.Student
	}
	return false
}
