package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/internal/service"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/response"
)

type notificationService interface {
	ListForRecipient(ctx context.Context, recipientID, cursor string, limit int) ([]models.Notification, string, error)
	MarkOpened(ctx context.Context, id, recipientID string) error
	Stats(ctx context.Context, recipientID string) (*models.NotificationStats, error)
}

// NotificationHandler exposes the caller's notification inbox.
type NotificationHandler struct {
	service notificationService
	policy  *service.RolePolicy
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(svc notificationService, policy *service.RolePolicy) *NotificationHandler {
	return &NotificationHandler{service: svc, policy: policy}
}

// List godoc
// @Summary List my notifications
// @Tags Notifications
// @Produce json
// @Param cursor query string false "Cursor from a previous page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", 0)
	notifications, next, err := h.service.ListForRecipient(c.Request.Context(), actor.ID, c.Query("cursor"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, cursorPagination(next, limit))
}

// Open godoc
// @Summary Mark a notification opened
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/open [post]
func (h *NotificationHandler) Open(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if err := h.service.MarkOpened(c.Request.Context(), c.Param("id"), actor.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Notification delivery stats
// @Description Counts for the caller, or for every recipient when scope=all
// @Tags Notifications
// @Produce json
// @Param scope query string false "Set to all for system-wide counts (admin)"
// @Success 200 {object} response.Envelope
// @Router /notifications/stats [get]
func (h *NotificationHandler) Stats(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	recipientID := actor.ID
	if c.Query("scope") == "all" {
		if !h.policy.Capabilities(*actor).Admin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "system-wide stats require admin"))
			return
		}
		recipientID = ""
	}
	stats, err := h.service.Stats(c.Request.Context(), recipientID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
