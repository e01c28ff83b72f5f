package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-academic-api/internal/dto"
	"github.com/noah-isme/sma-academic-api/internal/grading"
	"github.com/noah-isme/sma-academic-api/internal/models"
	appErrors "github.com/noah-isme/sma-academic-api/pkg/errors"
	"github.com/noah-isme/sma-academic-api/pkg/logger"
)

const (
	opRecordGrade  = "record_grade"
	opRecordGrades = "record_grades_batch"
)

type gradeRepository interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, grade *models.Grade) (*models.Grade, error)
	ListByClassPeriod(ctx context.Context, classID, periodID string) ([]models.Grade, error)
}

// GradeService validates scores, derives percentage and letter grade, and upserts grades by composite key.
type GradeService struct {
	repo       gradeRepository
	gateway    *ValidationGateway
	reconciler *Reconciler
	scales     *grading.Registry
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewGradeService constructs the grade service. A nil registry uses the 100- and 20-point tables.
func NewGradeService(repo gradeRepository, gateway *ValidationGateway, reconciler *Reconciler, scales *grading.Registry, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if scales == nil {
		scales = grading.NewRegistry()
	}
	return &GradeService{repo: repo, gateway: gateway, reconciler: reconciler, scales: scales, cache: cache, validator: validate, logger: logger}
}

// RecordGrade inserts or updates the grade addressed by (student, class, period, gradeType).
func (s *GradeService) RecordGrade(ctx context.Context, req dto.RecordGradeRequest) (*models.Grade, error) {
	req.GradeType = strings.TrimSpace(req.GradeType)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid grade payload")
	}
	period, err := s.gateway.Period(ctx, req.AcademicPeriodID, true)
	if err != nil {
		return nil, err
	}
	if err := rangeError([]models.ReferenceIssue{scoreIssue(-1, req.StudentID, req.Score, req.MaxScore, period.MaxGrade)}); err != nil {
		return nil, err
	}
	if err := s.gateway.Check(ctx,
		TopLevel("studentId", models.EntityStudent, req.StudentID),
		TopLevel("classId", models.EntityClass, req.ClassID),
	); err != nil {
		return nil, err
	}
	if err := s.gateway.RequireMembers(ctx, req.ClassID, []string{req.StudentID}); err != nil {
		return nil, err
	}

	grade := &models.Grade{
		StudentID:        req.StudentID,
		ClassID:          req.ClassID,
		AcademicPeriodID: period.ID,
		GradeType:        req.GradeType,
		Score:            req.Score,
		MaxScore:         req.MaxScore,
		Comments:         req.Comments,
	}
	s.scales.Apply(grade, *period)

	var stored *models.Grade
	err = s.reconciler.InTx(ctx, opRecordGrade, req.ClassID+"@"+period.ID, func(ctx context.Context, tx *sqlx.Tx) (int, error) {
		var err error
		stored, err = s.repo.Upsert(ctx, tx, grade)
		if err != nil {
			return 0, err
		}
		return 1, nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Evict(ctx, GradeSheetKey(req.ClassID, period.ID))
	logger.FromContext(ctx, s.logger).Info("grade recorded",
		zap.String("student_id", stored.StudentID),
		zap.String("class_id", stored.ClassID),
		zap.String("grade_type", stored.GradeType),
		zap.Float64("percentage", stored.Percentage),
		zap.String("letter_grade", stored.LetterGrade),
	)
	return stored, nil
}

// RecordGradesBatch upserts every tuple for one class and period in one transaction.
// Any invalid tuple rejects the whole batch before anything is written.
func (s *GradeService) RecordGradesBatch(ctx context.Context, req dto.RecordGradesBatchRequest) ([]models.Grade, models.GradeStats, error) {
	for i := range req.Grades {
		req.Grades[i].GradeType = strings.TrimSpace(req.Grades[i].GradeType)
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, models.GradeStats{}, invalidPayload(err, "invalid grade batch payload")
	}
	period, err := s.gateway.Period(ctx, req.AcademicPeriodID, true)
	if err != nil {
		return nil, models.GradeStats{}, err
	}

	type tupleKey struct{ student, gradeType string }
	seen := make(map[tupleKey]int, len(req.Grades))
	var dupes, outOfRange []models.ReferenceIssue
	checks := []ReferenceCheck{TopLevel("classId", models.EntityClass, req.ClassID)}
	studentIDs := make([]string, len(req.Grades))
	for i, tuple := range req.Grades {
		studentIDs[i] = tuple.StudentID
		checks = append(checks, ReferenceCheck{Index: i, Field: "studentId", Ref: models.Ref(models.EntityStudent, tuple.StudentID)})
		key := tupleKey{tuple.StudentID, tuple.GradeType}
		if first, ok := seen[key]; ok {
			dupes = append(dupes, models.ReferenceIssue{
				Index: i, Field: "gradeType", Entity: models.EntityStudent, ID: tuple.StudentID,
				Reason: models.IssueDuplicate, Detail: fmt.Sprintf("%s already graded at index %d", tuple.GradeType, first),
			})
		} else {
			seen[key] = i
		}
		maxScore := period.MaxGrade
		if tuple.MaxScore != nil {
			maxScore = *tuple.MaxScore
		}
		outOfRange = append(outOfRange, scoreIssue(i, tuple.StudentID, tuple.Score, maxScore, period.MaxGrade))
	}
	if err := rangeError(outOfRange); err != nil {
		return nil, models.GradeStats{}, err
	}
	if err := constraintError("grade batch repeats a student and grade type", dupes); err != nil {
		return nil, models.GradeStats{}, err
	}
	if err := s.gateway.Check(ctx, checks...); err != nil {
		return nil, models.GradeStats{}, err
	}
	if err := s.gateway.RequireMembers(ctx, req.ClassID, studentIDs); err != nil {
		return nil, models.GradeStats{}, err
	}

	pending := make([]*models.Grade, len(req.Grades))
	for i, tuple := range req.Grades {
		maxScore := period.MaxGrade
		if tuple.MaxScore != nil {
			maxScore = *tuple.MaxScore
		}
		pending[i] = &models.Grade{
			StudentID:        tuple.StudentID,
			ClassID:          req.ClassID,
			AcademicPeriodID: period.ID,
			GradeType:        tuple.GradeType,
			Score:            tuple.Score,
			MaxScore:         maxScore,
			Comments:         tuple.Comments,
		}
		s.scales.Apply(pending[i], *period)
	}

	stored := make([]models.Grade, 0, len(pending))
	err = s.reconciler.InTx(ctx, opRecordGrades, req.ClassID+"@"+period.ID, func(ctx context.Context, tx *sqlx.Tx) (int, error) {
		for _, grade := range pending {
			row, err := s.repo.Upsert(ctx, tx, grade)
			if err != nil {
				return 0, err
			}
			stored = append(stored, *row)
		}
		return len(stored), nil
	})
	if err != nil {
		return nil, models.GradeStats{}, err
	}

	s.cache.Evict(ctx, GradeSheetKey(req.ClassID, period.ID))
	stats := grading.Stats(stored, period.MinPassingGrade)
	logger.FromContext(ctx, s.logger).Info("grade batch recorded",
		zap.String("class_id", req.ClassID),
		zap.String("academic_period_id", period.ID),
		zap.Int("count", stats.Count),
		zap.Float64("average_percentage", stats.AveragePercentage),
	)
	return stored, stats, nil
}

// ClassGradeSheet lists the grades of a class for a period together with their statistics.
func (s *GradeService) ClassGradeSheet(ctx context.Context, classID, periodID string) (*models.GradeSheet, error) {
	key := GradeSheetKey(classID, periodID)
	var cached models.GradeSheet
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	fill := s.cache.Begin(key)
	period, err := s.gateway.Period(ctx, periodID, false)
	if err != nil {
		return nil, err
	}
	if err := s.gateway.Exists(ctx, TopLevel("classId", models.EntityClass, classID)); err != nil {
		return nil, err
	}
	grades, err := s.repo.ListByClassPeriod(ctx, classID, periodID)
	if err != nil {
		return nil, mapTxError(err, "failed to load grades")
	}
	grading.SortGrades(grades)
	sheet := &models.GradeSheet{
		ClassID:          classID,
		AcademicPeriodID: periodID,
		Grades:           grades,
		Stats:            grading.Stats(grades, period.MinPassingGrade),
	}
	s.cache.Fill(ctx, fill, sheet)
	return sheet, nil
}

// scoreIssue returns an issue with an empty Reason when the score is in range.
func scoreIssue(index int, studentID string, score, maxScore, maxGrade float64) models.ReferenceIssue {
	issue := models.ReferenceIssue{Index: index, Field: "score", Entity: models.EntityStudent, ID: studentID}
	if err := grading.CheckScore(score, maxScore, maxGrade); err != nil {
		issue.Reason = models.IssueOutOfRange
		issue.Detail = err.Error()
	}
	return issue
}

func rangeError(candidates []models.ReferenceIssue) error {
	var issues []models.ReferenceIssue
	for _, issue := range candidates {
		if issue.Reason != "" {
			issues = append(issues, issue)
		}
	}
	if len(issues) == 0 {
		return nil
	}
	return appErrors.WithDetails(appErrors.ErrOutOfRange, "score outside the allowed grade range", issues)
}
