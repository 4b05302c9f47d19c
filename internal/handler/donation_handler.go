package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lostfound-api/internal/cron"
	"github.com/noah-isme/lostfound-api/internal/dto"
	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/internal/service"
	"github.com/noah-isme/lostfound-api/pkg/response"
)

type donationService interface {
	ListDonationItems(ctx context.Context, query service.DonationQuery) ([]models.DonationItem, string, error)
}

type jobRunner interface {
	RunNow(ctx context.Context, name string) (int, error)
	RunJob(ctx context.Context, job cron.Job) (int, error)
}

// DonationHandler serves the donation track views.
type DonationHandler struct {
	service donationService
	jobs    jobRunner
}

// NewDonationHandler constructs the handler. Manual scans run through jobs under the scheduler's lock.
func NewDonationHandler(svc donationService, jobs jobRunner) *DonationHandler {
	return &DonationHandler{service: svc, jobs: jobs}
}

// List godoc
// @Summary List donation items
// @Description Items on the donation track with their age
// @Tags Donations
// @Produce json
// @Param status query string false "PENDING, READY or DONATED (comma separated)"
// @Param cursor query string false "Cursor from a previous page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /donations [get]
func (h *DonationHandler) List(c *gin.Context) {
	query := service.DonationQuery{
		Cursor: c.Query("cursor"),
		Limit:  queryInt(c, "limit", 0),
	}
	for _, status := range queryList(c, "status") {
		query.Status = append(query.Status, models.DonationStatus(status))
	}

	items, next, err := h.service.ListDonationItems(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, cursorPagination(next, query.Limit))
}

// AutoFlag godoc
// @Summary Flag eligible items now
// @Description Runs the donation eligibility scan outside the schedule
// @Tags Donations
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /donations/auto-flag [post]
func (h *DonationHandler) AutoFlag(c *gin.Context) {
	flagged, err := h.jobs.RunNow(c.Request.Context(), cron.DonationAutoFlagJobName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.FlagResult{Flagged: flagged}, nil)
}
