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

type itemService interface {
	Report(ctx context.Context, req dto.ReportItemRequest, actor *service.Actor) (*models.Item, error)
	Get(ctx context.Context, id string, actor *service.Actor) (*models.Item, error)
	List(ctx context.Context, query dto.ItemQuery, actor *service.Actor) ([]models.Item, string, error)
	History(ctx context.Context, id string, actor *service.Actor) ([]models.StatusChange, error)
	Approve(ctx context.Context, id string, actor *service.Actor) (*models.Item, error)
	Reject(ctx context.Context, id string, notes string, actor *service.Actor) (*models.Item, error)
	FlagForDonation(ctx context.Context, id string, actor *service.Actor) (*models.Item, error)
	MarkDonationReady(ctx context.Context, id string, actor *service.Actor) (*models.Item, error)
	MarkDonated(ctx context.Context, id string, req dto.CompleteDonationRequest, actor *service.Actor) (*models.Item, error)
	Delete(ctx context.Context, id string, actor *service.Actor) error
}

// ItemHandler exposes the item lifecycle over HTTP.
type ItemHandler struct {
	service itemService
}

// NewItemHandler constructs the handler.
func NewItemHandler(svc itemService) *ItemHandler {
	return &ItemHandler{service: svc}
}

// Report godoc
// @Summary Report an item
// @Description Report a lost or found item. Found items wait for security approval.
// @Tags Items
// @Accept json
// @Produce json
// @Param payload body dto.ReportItemRequest true "Item payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /items [post]
func (h *ItemHandler) Report(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.ReportItemRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.service.Report(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// List godoc
// @Summary List items
// @Description List items newest first using cursor pagination
// @Tags Items
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param isLost query bool false "Lost (true) or found (false)"
// @Param category query string false "Category"
// @Param ownerId query string false "Owner ID"
// @Param search query string false "Search term"
// @Param cursor query string false "Cursor from a previous page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /items [get]
func (h *ItemHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	query := dto.ItemQuery{
		IsLost:   queryBool(c, "isLost"),
		Category: c.Query("category"),
		OwnerID:  c.Query("ownerId"),
		Search:   c.Query("search"),
		Cursor:   c.Query("cursor"),
		Limit:    queryInt(c, "limit", 0),
	}
	for _, status := range queryList(c, "status") {
		query.Status = append(query.Status, models.ItemStatus(status))
	}

	items, next, err := h.service.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, cursorPagination(next, query.Limit))
}

// Get godoc
// @Summary Get item
// @Tags Items
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /items/{id} [get]
func (h *ItemHandler) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// History godoc
// @Summary Item status history
// @Tags Items
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /items/{id}/history [get]
func (h *ItemHandler) History(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	changes, err := h.service.History(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, changes, nil)
}

// Approve godoc
// @Summary Approve a found item
// @Tags Items
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /items/{id}/approve [post]
func (h *ItemHandler) Approve(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	item, err := h.service.Approve(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Reject godoc
// @Summary Reject a found item
// @Tags Items
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body dto.RejectItemRequest false "Reviewer notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /items/{id}/reject [post]
func (h *ItemHandler) Reject(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.RejectItemRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	item, err := h.service.Reject(c.Request.Context(), c.Param("id"), req.Notes, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// FlagForDonation godoc
// @Summary Flag an active found item for donation
// @Tags Donations
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /items/{id}/donation/flag [post]
func (h *ItemHandler) FlagForDonation(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	item, err := h.service.FlagForDonation(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// MarkDonationReady godoc
// @Summary Mark a flagged item ready for donation
// @Tags Donations
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /items/{id}/donation/ready [post]
func (h *ItemHandler) MarkDonationReady(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	item, err := h.service.MarkDonationReady(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// MarkDonated godoc
// @Summary Record a completed donation
// @Tags Donations
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body dto.CompleteDonationRequest true "Recipient and value"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /items/{id}/donation/complete [post]
func (h *ItemHandler) MarkDonated(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.CompleteDonationRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.MarkDonated(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete an item
// @Description Removes the item and rejects its pending claims
// @Tags Items
// @Param id path string true "Item ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /items/{id} [delete]
func (h *ItemHandler) Delete(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
