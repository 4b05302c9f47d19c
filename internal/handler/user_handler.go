package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lostfound-api/internal/dto"
	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/internal/service"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/response"
)

type userService interface {
	Register(ctx context.Context, req dto.RegisterUserRequest) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, req dto.UpdateRoleRequest, actor *service.Actor) (*models.User, error)
	SetBlocked(ctx context.Context, id string, blocked bool, actor *service.Actor) (*models.User, error)
	UpdateDeliveryToken(ctx context.Context, req dto.DeliveryTokenRequest, actor *service.Actor) error
}

// UserHandler handles user administration endpoints.
type UserHandler struct {
	service userService
	policy  *service.RolePolicy
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService, policy *service.RolePolicy) *UserHandler {
	return &UserHandler{service: svc, policy: policy}
}

// Register godoc
// @Summary Register the caller
// @Description Creates the account for the authenticated caller. Repeated calls return the existing account.
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body dto.RegisterUserRequest false "Display name"
// @Success 200 {object} response.Envelope
// @Router /users/me [post]
func (h *UserHandler) Register(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.RegisterUserRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	req.ID = actor.ID
	req.Email = actor.Email
	if strings.TrimSpace(req.DisplayName) == "" {
		req.DisplayName = strings.SplitN(actor.Email, "@", 2)[0]
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// List godoc
// @Summary List users
// @Description List users with pagination and filtering
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param role query string false "Role filter"
// @Param blocked query bool false "Blocked filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	filter := models.UserFilter{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
		Blocked:  queryBool(c, "blocked"),
		Search:   c.Query("search"),
	}
	if role := c.Query("role"); role != "" {
		parsed, ok := models.ParseRole(role)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown role"))
			return
		}
		filter.Role = &parsed
	}

	users, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// Get godoc
// @Summary Get user
// @Description Admins may read any user; others only themselves
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if id == "me" {
		id = actor.ID
	}
	if id != actor.ID && !h.policy.Capabilities(*actor).Admin {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	user, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// UpdateRole godoc
// @Summary Change a user's role
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.UpdateRoleRequest true "Role payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/{id}/role [put]
func (h *UserHandler) UpdateRole(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.UpdateRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.service.UpdateRole(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// SetBlocked godoc
// @Summary Block or unblock a user
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.SetBlockedRequest true "Blocked flag"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/blocked [put]
func (h *UserHandler) SetBlocked(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.SetBlockedRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.service.SetBlocked(c.Request.Context(), c.Param("id"), req.Blocked, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// UpdateToken godoc
// @Summary Store my push delivery token
// @Description An empty token opts out of push delivery
// @Tags Users
// @Accept json
// @Param payload body dto.DeliveryTokenRequest true "Token payload"
// @Success 204 {object} response.Envelope
// @Router /users/me/token [put]
func (h *UserHandler) UpdateToken(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.DeliveryTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.UpdateDeliveryToken(c.Request.Context(), req, actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Capabilities godoc
// @Summary My capabilities
// @Description Role tiers granted to the caller
// @Tags Roles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /roles/capabilities [get]
func (h *UserHandler) Capabilities(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, h.policy.Capabilities(*actor), nil)
}
