package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-academic-api/internal/dto"
	"github.com/noah-isme/sma-academic-api/internal/models"
	"github.com/noah-isme/sma-academic-api/pkg/response"
)

type attendanceService interface {
	ReconcileAttendance(ctx context.Context, req dto.ReconcileAttendanceRequest) (*models.AttendanceSummary, error)
	ListAttendance(ctx context.Context, classID, rawDate string) (*models.AttendanceSummary, error)
	StudentAttendanceRate(ctx context.Context, studentID, classID string) (*models.AttendanceRate, error)
}

type attendanceExporter interface {
	ExportAttendanceSheet(ctx context.Context, classID, date string, format dto.ExportFormat) (*dto.ExportedFile, error)
}

// AttendanceHandler exposes daily attendance endpoints.
type AttendanceHandler struct {
	service  attendanceService
	exporter attendanceExporter
}

// NewAttendanceHandler builds a new handler.
func NewAttendanceHandler(service attendanceService, exporter attendanceExporter) *AttendanceHandler {
	return &AttendanceHandler{service: service, exporter: exporter}
}

// Reconcile godoc
// @Summary Replace the attendance of a class for one date
// @Description Rows not listed in entries are removed for that date. An empty date means today.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.ReconcileAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /classes/{id}/attendance [post]
func (h *AttendanceHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	req.ClassID = c.Param("id")
	if req.RecordedBy == nil {
		req.RecordedBy = actorFromContext(c).TeacherID
	}
	summary, err := h.service.ReconcileAttendance(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// List godoc
// @Summary Attendance sheet of a class
// @Tags Attendance
// @Produce json
// @Param id path string true "Class ID"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	summary, err := h.service.ListAttendance(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Export godoc
// @Summary Export the attendance sheet
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class ID"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /classes/{id}/attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	file, err := h.exporter.ExportAttendanceSheet(c.Request.Context(), c.Param("id"), c.Query("date"), dto.ExportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, file)
}

// Rate godoc
// @Summary Attendance rate of a student in a class
// @Description Late counts as attended.
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Param classId query string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance-rate [get]
func (h *AttendanceHandler) Rate(c *gin.Context) {
	rate, err := h.service.StudentAttendanceRate(c.Request.Context(), c.Param("id"), c.Query("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rate, nil)
}
