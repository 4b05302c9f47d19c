package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lostfound-api/internal/cron"
	"github.com/noah-isme/lostfound-api/internal/dto"
	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/response"
)

type activityService interface {
	List(ctx context.Context, query dto.ActivityQuery) ([]models.ActivityLog, string, error)
	ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ArchiveExpired(ctx context.Context) (*dto.ArchiveResult, error)
}

// ActivityHandler exposes the audit trail.
type ActivityHandler struct {
	service activityService
	jobs    jobRunner
	archive *cron.ActivityArchiveJob
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(svc activityService, jobs jobRunner) *ActivityHandler {
	return &ActivityHandler{service: svc, jobs: jobs, archive: cron.NewActivityArchiveJob(svc)}
}

// List godoc
// @Summary List activity
// @Tags Activity
// @Produce json
// @Param actorId query string false "Actor ID"
// @Param action query string false "Action"
// @Param targetType query string false "Target type"
// @Param targetId query string false "Target ID"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param cursor query string false "Cursor from a previous page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /activity [get]
func (h *ActivityHandler) List(c *gin.Context) {
	query := dto.ActivityQuery{
		ActorID:    c.Query("actorId"),
		Action:     c.Query("action"),
		TargetType: c.Query("targetType"),
		TargetID:   c.Query("targetId"),
		Cursor:     c.Query("cursor"),
		Limit:      queryInt(c, "limit", 0),
	}

	var err error
	if query.From, err = parseTimeQuery(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if query.To, err = parseTimeQuery(c, "to"); err != nil {
		response.Error(c, err)
		return
	}

	entries, next, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, cursorPagination(next, query.Limit))
}

// Archive godoc
// @Summary Archive old activity
// @Description Moves entries past the retention window (or before the given time) to the archive table
// @Tags Activity
// @Accept json
// @Produce json
// @Param payload body dto.ArchiveActivityRequest false "Optional cutoff"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /activity/archive [post]
func (h *ActivityHandler) Archive(c *gin.Context) {
	var req dto.ArchiveActivityRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if req.Before != nil {
		cutoff := req.Before.UTC()
		archived, err := h.jobs.RunJob(ctx, h.archive.Before(cutoff))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, dto.ArchiveResult{Archived: int64(archived), Cutoff: &cutoff}, nil)
		return
	}

	archived, err := h.jobs.RunNow(ctx, cron.ActivityArchiveJobName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ArchiveResult{Archived: int64(archived)}, nil)
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+key+" timestamp")
	}
	parsed = parsed.UTC()
	return &parsed, nil
}
