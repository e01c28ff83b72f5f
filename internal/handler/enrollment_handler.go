package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-academic-api/internal/dto"
	"github.com/noah-isme/sma-academic-api/internal/models"
	"github.com/noah-isme/sma-academic-api/pkg/response"
)

type enrollmentService interface {
	ReenrollStudent(ctx context.Context, req dto.ReenrollStudentRequest) (*models.EnrollmentSummary, error)
	ReconcileClassRoster(ctx context.Context, classID string) (*models.EnrollmentSummary, error)
	ListEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error)
}

// EnrollmentHandler exposes placement and roster endpoints.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler builds a new handler.
func NewEnrollmentHandler(service enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

// Reenroll godoc
// @Summary Move a student to a grade level and section
// @Description Replaces every membership with the active classes of the new placement.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.ReenrollStudentRequest true "Placement payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/placement [put]
func (h *EnrollmentHandler) Reenroll(c *gin.Context) {
	var req dto.ReenrollStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	req.StudentID = c.Param("id")
	summary, err := h.service.ReenrollStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// SyncRoster godoc
// @Summary Rebuild the roster of a class from student placements
// @Tags Enrollments
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/roster/sync [post]
func (h *EnrollmentHandler) SyncRoster(c *gin.Context) {
	summary, err := h.service.ReconcileClassRoster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// List godoc
// @Summary Class memberships of a student
// @Tags Enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	enrollments, err := h.service.ListEnrollments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}
