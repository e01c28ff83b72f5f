package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-academic-api/internal/dto"
	"github.com/noah-isme/sma-academic-api/internal/middleware"
	"github.com/noah-isme/sma-academic-api/internal/models"
	appErrors "github.com/noah-isme/sma-academic-api/pkg/errors"
)

type attendanceServiceMock struct {
	lastReq   dto.ReconcileAttendanceRequest
	lastDate  string
	summary   *models.AttendanceSummary
	err       error
	exportFmt dto.ExportFormat
}

func (m *attendanceServiceMock) ReconcileAttendance(ctx context.Context, req dto.ReconcileAttendanceRequest) (*models.AttendanceSummary, error) {
	m.lastReq = req
	return m.summary, m.err
}

func (m *attendanceServiceMock) ListAttendance(ctx context.Context, classID, rawDate string) (*models.AttendanceSummary, error) {
	m.lastDate = rawDate
	return m.summary, m.err
}

func (m *attendanceServiceMock) StudentAttendanceRate(ctx context.Context, studentID, classID string) (*models.AttendanceRate, error) {
	return &models.AttendanceRate{StudentID: studentID, ClassID: classID, Rate: 75}, m.err
}

func (m *attendanceServiceMock) ExportAttendanceSheet(ctx context.Context, classID, date string, format dto.ExportFormat) (*dto.ExportedFile, error) {
	m.exportFmt = format
	return &dto.ExportedFile{Filename: "attendance_" + classID + ".csv", ContentType: "text/csv", Data: []byte("Student\n")}, m.err
}

type gradeServiceMock struct {
	lastBatch dto.RecordGradesBatchRequest
	err       error
}

func (m *gradeServiceMock) RecordGrade(ctx context.Context, req dto.RecordGradeRequest) (*models.Grade, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Grade{StudentID: req.StudentID, Score: req.Score, LetterGrade: "A"}, nil
}

func (m *gradeServiceMock) RecordGradesBatch(ctx context.Context, req dto.RecordGradesBatchRequest) ([]models.Grade, models.GradeStats, error) {
	m.lastBatch = req
	return []models.Grade{{StudentID: "s1"}}, models.GradeStats{Count: 1}, m.err
}

func (m *gradeServiceMock) ClassGradeSheet(ctx context.Context, classID, periodID string) (*models.GradeSheet, error) {
	return &models.GradeSheet{ClassID: classID, AcademicPeriodID: periodID}, m.err
}

type deletionServiceMock struct {
	lastRef models.EntityRef
}

func (m *deletionServiceMock) DeleteOrDeactivate(ctx context.Context, ref models.EntityRef) (*models.DeleteOutcome, error) {
	m.lastRef = ref
	return &models.DeleteOutcome{Entity: ref.Kind, ID: ref.ID, Result: models.DeleteResultDeactivated}, nil
}

func newTestContext(method, target, body string, params gin.Params, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
	Meta  map[string]any   `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestAttendanceHandlerReconcileUsesPathAndTeacherIdentity(t *testing.T) {
	svc := &attendanceServiceMock{summary: &models.AttendanceSummary{ClassID: "c1", Date: "2025-03-10"}}
	handler := NewAttendanceHandler(svc, svc)
	body := `{"classId":"ignored","date":"2025-03-10","entries":[{"studentId":"s1","status":"PRESENT"}]}`
	c, w := newTestContext(http.MethodPost, "/classes/c1/attendance", body, gin.Params{{Key: "id", Value: "c1"}},
		&models.JWTClaims{UserID: "u1", Role: models.RoleTeacher, TeacherID: "t1"})

	handler.Reconcile(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", svc.lastReq.ClassID)
	require.NotNil(t, svc.lastReq.RecordedBy)
	assert.Equal(t, "t1", *svc.lastReq.RecordedBy)
	assert.Len(t, svc.lastReq.Entries, 1)
}

func TestAttendanceHandlerReconcileInvalidBody(t *testing.T) {
	svc := &attendanceServiceMock{}
	handler := NewAttendanceHandler(svc, svc)
	c, w := newTestContext(http.MethodPost, "/classes/c1/attendance", `{"entries":`, gin.Params{{Key: "id", Value: "c1"}}, nil)

	handler.Reconcile(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)
}

func TestAttendanceHandlerMapsValidationDetails(t *testing.T) {
	issues := []models.ReferenceIssue{{Index: 0, Field: "studentId", ID: "s9", Reason: models.IssueNotEnrolled}}
	err := appErrors.WithDetails(appErrors.ErrValidation, "students are not enrolled in the class", issues)
	err.Status = http.StatusUnprocessableEntity
	svc := &attendanceServiceMock{err: err}
	handler := NewAttendanceHandler(svc, svc)
	c, w := newTestContext(http.MethodPost, "/classes/c1/attendance", `{"entries":[]}`, gin.Params{{Key: "id", Value: "c1"}}, nil)

	handler.Reconcile(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"reason":"NOT_ENROLLED"`)
}

func TestAttendanceHandlerExportStreamsFile(t *testing.T) {
	svc := &attendanceServiceMock{}
	handler := NewAttendanceHandler(svc, svc)
	c, w := newTestContext(http.MethodGet, "/classes/c1/attendance/export?format=csv", "", gin.Params{{Key: "id", Value: "c1"}}, nil)

	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ExportFormatCSV, svc.exportFmt)
	assert.Equal(t, `attachment; filename="attendance_c1.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Student\n", w.Body.String())
}

func TestAttendanceHandlerListPassesDate(t *testing.T) {
	svc := &attendanceServiceMock{summary: &models.AttendanceSummary{ClassID: "c1"}}
	handler := NewAttendanceHandler(svc, svc)
	c, w := newTestContext(http.MethodGet, "/classes/c1/attendance?date=2025-03-10", "", gin.Params{{Key: "id", Value: "c1"}}, nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-03-10", svc.lastDate)
}

func TestGradeHandlerBatchReturnsStatsMeta(t *testing.T) {
	svc := &gradeServiceMock{}
	handler := NewGradeHandler(svc, nil)
	body := `{"classId":"c1","academicPeriodId":"p1","grades":[{"studentId":"s1","gradeType":"QUIZ","score":18}]}`
	c, w := newTestContext(http.MethodPost, "/grades/batch", body, nil, nil)

	handler.Batch(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", svc.lastBatch.ClassID)
	assert.Contains(t, decode(t, w).Meta, "stats")
}

func TestGradeHandlerRecordOutOfRange(t *testing.T) {
	handler := NewGradeHandler(&gradeServiceMock{err: appErrors.ErrOutOfRange}, nil)
	c, w := newTestContext(http.MethodPost, "/grades", `{"studentId":"s1","score":25}`, nil, nil)

	handler.Record(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "OUT_OF_RANGE", decode(t, w).Error.Code)
}

func TestDeletionHandlerResolvesEntity(t *testing.T) {
	svc := &deletionServiceMock{}
	handler := NewDeletionHandler(svc)

	c, w := newTestContext(http.MethodDelete, "/students/s1", "", gin.Params{{Key: "entity", Value: "students"}, {Key: "id", Value: "s1"}}, nil)
	handler.Delete(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Ref(models.EntityStudent, "s1"), svc.lastRef)
	assert.Contains(t, w.Body.String(), `"result":"DEACTIVATED"`)

	c, w = newTestContext(http.MethodDelete, "/subjects/m1", "", gin.Params{{Key: "entity", Value: "subjects"}, {Key: "id", Value: "m1"}}, nil)
	handler.Delete(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	handler := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return appErrors.ErrInternal },
	})
	c, w := newTestContext(http.MethodGet, "/ready", "", nil, nil)

	handler.Ready(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"postgres":"ok"`)
}
