package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lostfound-api/internal/dto"
	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/internal/service"
	"github.com/noah-isme/lostfound-api/pkg/response"
)

type claimService interface {
	Create(ctx context.Context, userID string, req dto.CreateClaimRequest) (*models.ClaimRequest, error)
	Get(ctx context.Context, id string, actor *service.Actor) (*models.ClaimRequest, error)
	List(ctx context.Context, query dto.ClaimQuery, actor *service.Actor) ([]models.ClaimRequest, *models.Pagination, error)
	Approve(ctx context.Context, claimID string, notes string, actor *service.Actor) (*models.ClaimRequest, error)
	Reject(ctx context.Context, claimID string, notes string, actor *service.Actor) (*models.ClaimRequest, error)
}

// ClaimHandler exposes the claim review workflow.
type ClaimHandler struct {
	service claimService
}

// NewClaimHandler constructs the handler.
func NewClaimHandler(svc claimService) *ClaimHandler {
	return &ClaimHandler{service: svc}
}

// Create godoc
// @Summary Submit a claim
// @Description Claim a found item. One pending claim per item and user.
// @Tags Claims
// @Accept json
// @Produce json
// @Param payload body dto.CreateClaimRequest true "Claim payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /claims [post]
func (h *ClaimHandler) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.CreateClaimRequest
	if !bindJSON(c, &req) {
		return
	}
	claim, err := h.service.Create(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, claim)
}

// List godoc
// @Summary List claims
// @Description Students see their own claims; security staff see all
// @Tags Claims
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param itemId query string false "Item ID"
// @Param userId query string false "Claimant ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /claims [get]
func (h *ClaimHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	query := dto.ClaimQuery{
		ItemID: c.Query("itemId"),
		UserID: c.Query("userId"),
		Page:   queryInt(c, "page", 1),
		Size:   queryInt(c, "page_size", 20),
	}
	for _, status := range queryList(c, "status") {
		query.Status = append(query.Status, models.ClaimStatus(status))
	}
	h.list(c, query, actor)
}

// Pending godoc
// @Summary Pending claims awaiting review
// @Tags Claims
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /claims/pending [get]
func (h *ClaimHandler) Pending(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	h.list(c, dto.ClaimQuery{
		Status: []models.ClaimStatus{models.ClaimStatusPending},
		Page:   queryInt(c, "page", 1),
		Size:   queryInt(c, "page_size", 20),
	}, actor)
}

func (h *ClaimHandler) list(c *gin.Context, query dto.ClaimQuery, actor *service.Actor) {
	claims, pagination, err := h.service.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, claims, pagination)
}

// Get godoc
// @Summary Get claim
// @Tags Claims
// @Produce json
// @Param id path string true "Claim ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /claims/{id} [get]
func (h *ClaimHandler) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	claim, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, claim, nil)
}

// Approve godoc
// @Summary Approve a claim
// @Description Returns the item to the claimant and rejects sibling pending claims
// @Tags Claims
// @Accept json
// @Produce json
// @Param id path string true "Claim ID"
// @Param payload body dto.ReviewClaimRequest false "Reviewer notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /claims/{id}/approve [post]
func (h *ClaimHandler) Approve(c *gin.Context) {
	h.decide(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject a claim
// @Tags Claims
// @Accept json
// @Produce json
// @Param id path string true "Claim ID"
// @Param payload body dto.ReviewClaimRequest false "Reviewer notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /claims/{id}/reject [post]
func (h *ClaimHandler) Reject(c *gin.Context) {
	h.decide(c, h.service.Reject)
}

type claimDecision func(ctx context.Context, claimID string, notes string, actor *service.Actor) (*models.ClaimRequest, error)

func (h *ClaimHandler) decide(c *gin.Context, decide claimDecision) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.ReviewClaimRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	claim, err := decide(c.Request.Context(), c.Param("id"), req.Notes, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, claim, nil)
}
