package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-academic-api/internal/dto"
	"github.com/noah-isme/sma-academic-api/internal/models"
	"github.com/noah-isme/sma-academic-api/pkg/response"
)

type gradeService interface {
	RecordGrade(ctx context.Context, req dto.RecordGradeRequest) (*models.Grade, error)
	RecordGradesBatch(ctx context.Context, req dto.RecordGradesBatchRequest) ([]models.Grade, models.GradeStats, error)
	ClassGradeSheet(ctx context.Context, classID, periodID string) (*models.GradeSheet, error)
}

type gradeExporter interface {
	ExportGradeSheet(ctx context.Context, classID, periodID string, format dto.ExportFormat) (*dto.ExportedFile, error)
}

// GradeHandler exposes grade endpoints.
type GradeHandler struct {
	service  gradeService
	exporter gradeExporter
}

// NewGradeHandler constructs handler.
func NewGradeHandler(service gradeService, exporter gradeExporter) *GradeHandler {
	return &GradeHandler{service: service, exporter: exporter}
}

// Record godoc
// @Summary Record or overwrite one grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.RecordGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Record(c *gin.Context) {
	var req dto.RecordGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	grade, err := h.service.RecordGrade(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Batch godoc
// @Summary Record many grades for a class atomically
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.RecordGradesBatchRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /grades/batch [post]
func (h *GradeHandler) Batch(c *gin.Context) {
	var req dto.RecordGradesBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	grades, stats, err := h.service.RecordGradesBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil, map[string]interface{}{"stats": stats})
}

// Sheet godoc
// @Summary Grade sheet of a class for one period
// @Tags Grades
// @Produce json
// @Param id path string true "Class ID"
// @Param periodId query string true "Academic period ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/grades [get]
func (h *GradeHandler) Sheet(c *gin.Context) {
	sheet, err := h.service.ClassGradeSheet(c.Request.Context(), c.Param("id"), c.Query("periodId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// Export godoc
// @Summary Export the grade sheet
// @Tags Grades
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class ID"
// @Param periodId query string true "Academic period ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /classes/{id}/grades/export [get]
func (h *GradeHandler) Export(c *gin.Context) {
	file, err := h.exporter.ExportGradeSheet(c.Request.Context(), c.Param("id"), c.Query("periodId"), dto.ExportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, file)
}
