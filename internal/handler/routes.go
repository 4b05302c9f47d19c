package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lostfound-api/internal/middleware"
	"github.com/noah-isme/lostfound-api/internal/service"
)

// Handlers bundles the HTTP handlers mounted under the API prefix.
type Handlers struct {
	Items         *ItemHandler
	Claims        *ClaimHandler
	Donations     *DonationHandler
	Activity      *ActivityHandler
	Notifications *NotificationHandler
	Users         *UserHandler
}

// RegisterRoutes mounts the workflow API on group. auth must populate middleware.ContextUserKey.
func RegisterRoutes(group *gin.RouterGroup, h Handlers, auth gin.HandlerFunc, policy *service.RolePolicy) {
	secured := group.Group("", auth)

	security := middleware.RequireCapability(policy, middleware.CapabilitySecurity)
	admin := middleware.RequireCapability(policy, middleware.CapabilityAdmin)

	items := secured.Group("/items")
	items.POST("", h.Items.Report)
	items.GET("", h.Items.List)
	items.GET("/:id", h.Items.Get)
	items.GET("/:id/history", h.Items.History)
	items.POST("/:id/approve", security, h.Items.Approve)
	items.POST("/:id/reject", security, h.Items.Reject)
	items.POST("/:id/donation/flag", admin, h.Items.FlagForDonation)
	items.POST("/:id/donation/ready", admin, h.Items.MarkDonationReady)
	items.POST("/:id/donation/complete", admin, h.Items.MarkDonated)
	items.DELETE("/:id", admin, h.Items.Delete)

	claims := secured.Group("/claims")
	claims.POST("", h.Claims.Create)
	claims.GET("", h.Claims.List)
	claims.GET("/pending", security, h.Claims.Pending)
	claims.GET("/:id", h.Claims.Get)
	claims.POST("/:id/approve", security, h.Claims.Approve)
	claims.POST("/:id/reject", security, h.Claims.Reject)

	donations := secured.Group("/donations", admin)
	donations.GET("", h.Donations.List)
	donations.POST("/auto-flag", h.Donations.AutoFlag)

	activity := secured.Group("/activity")
	activity.GET("", security, h.Activity.List)
	activity.POST("/archive", admin, h.Activity.Archive)

	notifications := secured.Group("/notifications")
	notifications.GET("", h.Notifications.List)
	notifications.GET("/stats", h.Notifications.Stats)
	notifications.POST("/:id/open", h.Notifications.Open)

	users := secured.Group("/users")
	users.POST("/me", h.Users.Register)
	users.PUT("/me/token", h.Users.UpdateToken)
	users.GET("", admin, h.Users.List)
	users.GET("/:id", h.Users.Get)
	users.PUT("/:id/role", admin, h.Users.UpdateRole)
	users.PUT("/:id/blocked", admin, h.Users.SetBlocked)

	secured.GET("/roles/capabilities", h.Users.Capabilities)
}
