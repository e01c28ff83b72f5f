package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-academic-api/internal/dto"
	"github.com/noah-isme/sma-academic-api/internal/grading"
	"github.com/noah-isme/sma-academic-api/internal/models"
	appErrors "github.com/noah-isme/sma-academic-api/pkg/errors"
)

func newGradeFixture(t *testing.T, commits int) (*GradeService, *gradeStore, sqlmock.Sqlmock) {
	t.Helper()
	refs := newRefStore().
		set(models.EntityClass, "c1", true).
		set(models.EntityStudent, "s1", true).
		set(models.EntityStudent, "s2", true).
		set(models.EntityStudent, "s3", true)
	enrollments := &enrollmentStore{}
	enrollments.add("s1", "c1")
	enrollments.add("s2", "c1")
	periods := newPeriodStore(
		models.AcademicPeriod{ID: "sem-1", IsActive: true, MaxGrade: 20, MinPassingGrade: 10, StartDate: day("2025-01-06")},
		models.AcademicPeriod{ID: "sem-0", IsActive: false, MaxGrade: 100, MinPassingGrade: 60, StartDate: day("2024-07-15")},
	)

	reconciler, mock := newTestReconciler(t, nil)
	expectCommits(mock, commits)
	store := newGradeStore()
	gateway := NewValidationGateway(refs, enrollments, periods)
	return NewGradeService(store, gateway, reconciler, grading.NewRegistry(), nil, nil, nil), store, mock
}

func gradeRequest(studentID string, score float64) dto.RecordGradeRequest {
	return dto.RecordGradeRequest{
		StudentID: studentID, ClassID: "c1", AcademicPeriodID: "sem-1",
		GradeType: "MIDTERM", Score: score, MaxScore: 20,
	}
}

func TestRecordGradeDerivesPercentageAndLetter(t *testing.T) {
	svc, _, mock := newGradeFixture(t, 2)

	grade, err := svc.RecordGrade(context.Background(), gradeRequest("s1", 18))
	require.NoError(t, err)
	assert.Equal(t, 90.0, grade.Percentage)
	assert.Equal(t, "A", grade.LetterGrade)

	grade, err = svc.RecordGrade(context.Background(), gradeRequest("s2", 9))
	require.NoError(t, err)
	assert.Equal(t, 45.0, grade.Percentage)
	assert.Equal(t, "D", grade.LetterGrade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordGradeUpsertsByCompositeKey(t *testing.T) {
	svc, store, _ := newGradeFixture(t, 2)

	_, err := svc.RecordGrade(context.Background(), gradeRequest("s1", 12))
	require.NoError(t, err)
	grade, err := svc.RecordGrade(context.Background(), gradeRequest("s1", 16))
	require.NoError(t, err)

	assert.Len(t, store.rows, 1)
	assert.Equal(t, 16.0, grade.Score)
	assert.Equal(t, "B", grade.LetterGrade)
}

func TestRecordGradeRejectsOutOfRange(t *testing.T) {
	svc, store, mock := newGradeFixture(t, 0)

	_, err := svc.RecordGrade(context.Background(), gradeRequest("s1", 25))
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrOutOfRange.Code, appErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)

	_, err = svc.RecordGrade(context.Background(), gradeRequest("s1", -1))
	assert.True(t, errors.Is(err, appErrors.ErrOutOfRange))
	assert.Empty(t, store.rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordGradeRejectsScoreAboveMaxScore(t *testing.T) {
	svc, store, mock := newGradeFixture(t, 0)

	req := gradeRequest("s1", 20)
	req.MaxScore = 0.01
	_, err := svc.RecordGrade(context.Background(), req)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrOutOfRange.Code, appErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	issues := appErr.Details.([]models.ReferenceIssue)
	require.Len(t, issues, 1)
	assert.Equal(t, "score", issues[0].Field)
	assert.Equal(t, "s1", issues[0].ID)
	assert.Empty(t, store.rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordGradesBatchRejectsScoreAboveTupleMaxScore(t *testing.T) {
	svc, store, mock := newGradeFixture(t, 0)
	tiny := 0.01

	_, _, err := svc.RecordGradesBatch(context.Background(), dto.RecordGradesBatchRequest{
		ClassID: "c1", AcademicPeriodID: "sem-1",
		Grades: []dto.GradeTuple{
			{StudentID: "s1", GradeType: "QUIZ", Score: 15},
			{StudentID: "s2", GradeType: "QUIZ", Score: 20, MaxScore: &tiny},
		},
	})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrOutOfRange.Code, appErr.Code)
	issues := appErr.Details.([]models.ReferenceIssue)
	require.Len(t, issues, 1)
	assert.Equal(t, 1, issues[0].Index)
	assert.Equal(t, models.IssueOutOfRange, issues[0].Reason)
	assert.Empty(t, store.rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordGradeRequiresEnrollmentAndActivePeriod(t *testing.T) {
	svc, _, _ := newGradeFixture(t, 0)

	_, err := svc.RecordGrade(context.Background(), gradeRequest("s3", 10))
	issues := appErrors.FromError(err).Details.([]models.ReferenceIssue)
	assert.Equal(t, models.IssueNotEnrolled, issues[0].Reason)

	req := gradeRequest("s1", 10)
	req.AcademicPeriodID = "sem-0"
	_, err = svc.RecordGrade(context.Background(), req)
	issues = appErrors.FromError(err).Details.([]models.ReferenceIssue)
	assert.Equal(t, models.IssueInactive, issues[0].Reason)
}

func TestRecordGradesBatchIsAllOrNothing(t *testing.T) {
	svc, store, mock := newGradeFixture(t, 0)

	_, _, err := svc.RecordGradesBatch(context.Background(), dto.RecordGradesBatchRequest{
		ClassID: "c1", AcademicPeriodID: "sem-1",
		Grades: []dto.GradeTuple{
			{StudentID: "s1", GradeType: "QUIZ", Score: 15},
			{StudentID: "s2", GradeType: "QUIZ", Score: 21},
		},
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrOutOfRange.Code, appErr.Code)
	issues := appErr.Details.([]models.ReferenceIssue)
	require.Len(t, issues, 1)
	assert.Equal(t, 1, issues[0].Index)
	assert.Empty(t, store.rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordGradesBatchRejectsDuplicateTuple(t *testing.T) {
	svc, _, _ := newGradeFixture(t, 0)

	_, _, err := svc.RecordGradesBatch(context.Background(), dto.RecordGradesBatchRequest{
		ClassID: "c1", AcademicPeriodID: "sem-1",
		Grades: []dto.GradeTuple{
			{StudentID: "s1", GradeType: "QUIZ", Score: 15},
			{StudentID: "s1", GradeType: "QUIZ", Score: 16},
		},
	})
	assert.True(t, errors.Is(err, appErrors.ErrConstraintViolation))
}

func TestRecordGradesBatchReturnsStats(t *testing.T) {
	svc, store, _ := newGradeFixture(t, 1)

	grades, stats, err := svc.RecordGradesBatch(context.Background(), dto.RecordGradesBatchRequest{
		ClassID: "c1", AcademicPeriodID: "sem-1",
		Grades: []dto.GradeTuple{
			{StudentID: "s1", GradeType: "FINAL", Score: 18},
			{StudentID: "s2", GradeType: "FINAL", Score: 9},
		},
	})
	require.NoError(t, err)
	require.Len(t, grades, 2)
	assert.Equal(t, 20.0, grades[0].MaxScore)
	assert.Len(t, store.rows, 2)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 67.5, stats.AveragePercentage)
	assert.Equal(t, 1, stats.Passing)
	assert.Equal(t, map[string]int{"A": 1, "D": 1}, stats.Letters)
}

func TestClassGradeSheetAllowsClosedPeriod(t *testing.T) {
	svc, store, _ := newGradeFixture(t, 0)
	for _, g := range []models.Grade{
		{StudentID: "s2", ClassID: "c1", AcademicPeriodID: "sem-0", GradeType: "FINAL", Score: 70, MaxScore: 100, Percentage: 70, LetterGrade: "C"},
		{StudentID: "s1", ClassID: "c1", AcademicPeriodID: "sem-0", GradeType: "FINAL", Score: 50, MaxScore: 100, Percentage: 50, LetterGrade: "F"},
	} {
		store.rows[g.Key()] = g
	}

	sheet, err := svc.ClassGradeSheet(context.Background(), "c1", "sem-0")
	require.NoError(t, err)
	require.Len(t, sheet.Grades, 2)
	assert.Equal(t, "s1", sheet.Grades[0].StudentID)
	assert.Equal(t, 1, sheet.Stats.Passing)

	_, err = svc.ClassGradeSheet(context.Background(), "c1", "nope")
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
