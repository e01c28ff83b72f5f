package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-academic-api/internal/dto"
	"github.com/noah-isme/sma-academic-api/internal/models"
	"github.com/noah-isme/sma-academic-api/pkg/response"
)

type scheduleService interface {
	ReplaceSchedule(ctx context.Context, req dto.ReplaceScheduleRequest) ([]models.ScheduleBlock, error)
	ListSchedule(ctx context.Context, classID string) ([]models.ScheduleBlock, error)
}

// ScheduleHandler exposes weekly class schedule endpoints.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler builds a new handler.
func NewScheduleHandler(service scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// Replace godoc
// @Summary Replace the weekly schedule of a class
// @Description Applies to the active academic period only.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.ReplaceScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{id}/schedule [put]
func (h *ScheduleHandler) Replace(c *gin.Context) {
	var req dto.ReplaceScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	req.ClassID = c.Param("id")
	blocks, err := h.service.ReplaceSchedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// List godoc
// @Summary Weekly schedule of a class in the active period
// @Tags Schedules
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/schedule [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	blocks, err := h.service.ListSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}
