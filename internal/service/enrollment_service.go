package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-academic-api/internal/dto"
	"github.com/noah-isme/sma-academic-api/internal/models"
	appErrors "github.com/noah-isme/sma-academic-api/pkg/errors"
	"github.com/noah-isme/sma-academic-api/pkg/logger"
)

const (
	opReenrollStudent = "reenroll_student"
	opReconcileRoster = "reconcile_roster"
)

type enrollmentRepository interface {
	ListByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]models.Enrollment, error)
	ListByClass(ctx context.Context, exec sqlx.ExtContext, classID string) ([]models.Enrollment, error)
	DeleteByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int64, error)
	DeleteByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int64, error)
	BulkInsert(ctx context.Context, exec sqlx.ExtContext, enrollments []models.Enrollment) error
}

type enrollmentClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassSection, error)
	ListActiveByPlacement(ctx context.Context, exec sqlx.ExtContext, gradeID, sectionID string) ([]models.ClassSection, error)
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type enrollmentStudentRepository interface {
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) error
	UpdatePlacement(ctx context.Context, exec sqlx.ExtContext, id string, placement models.Placement) error
	ListActiveIDsByPlacement(ctx context.Context, exec sqlx.ExtContext, placement models.Placement) ([]string, error)
}

// EnrollmentService keeps class memberships equal to the placement match between students and classes.
type EnrollmentService struct {
	repo       enrollmentRepository
	classes    enrollmentClassRepository
	students   enrollmentStudentRepository
	gateway    *ValidationGateway
	reconciler *Reconciler
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo enrollmentRepository, classes enrollmentClassRepository, students enrollmentStudentRepository, gateway *ValidationGateway, reconciler *Reconciler, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, classes: classes, students: students, gateway: gateway, reconciler: reconciler, validator: validate, logger: logger}
}

// ReenrollStudent stores the student's new placement and replaces all memberships with
// one per active class taught to that placement. Repeating the call changes nothing.
func (s *EnrollmentService) ReenrollStudent(ctx context.Context, req dto.ReenrollStudentRequest) (*models.EnrollmentSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid placement payload")
	}
	if err := s.gateway.Check(ctx,
		TopLevel("studentId", models.EntityStudent, req.StudentID),
		TopLevel("gradeId", models.EntityGradeLevel, req.GradeID),
		TopLevel("sectionId", models.EntitySection, req.SectionID),
	); err != nil {
		return nil, err
	}

	placement := models.Placement{GradeID: req.GradeID, SectionID: req.SectionID}
	var prior []models.Enrollment
	result, err := Reconcile(ctx, s.reconciler, ChildSet[models.Enrollment]{
		Operation: opReenrollStudent,
		ParentKey: req.StudentID,
		Lock: func(ctx context.Context, tx *sqlx.Tx) error {
			return s.students.LockForUpdate(ctx, tx, req.StudentID)
		},
		Prepare: func(ctx context.Context, tx *sqlx.Tx) error {
			var err error
			if prior, err = s.repo.ListByStudent(ctx, tx, req.StudentID); err != nil {
				return err
			}
			return s.students.UpdatePlacement(ctx, tx, req.StudentID, placement)
		},
		Resolve: func(ctx context.Context, tx *sqlx.Tx) ([]models.Enrollment, error) {
			classes, err := s.classes.ListActiveByPlacement(ctx, tx, placement.GradeID, placement.SectionID)
			if err != nil {
				return nil, err
			}
			rows := make([]models.Enrollment, len(classes))
			for i, class := range classes {
				rows[i] = models.Enrollment{StudentID: req.StudentID, ClassID: class.ID}
			}
			return rows, nil
		},
		Delete: func(ctx context.Context, tx *sqlx.Tx) (int64, error) {
			return s.repo.DeleteByStudent(ctx, tx, req.StudentID)
		},
		Insert: func(ctx context.Context, tx *sqlx.Tx, rows []models.Enrollment) error {
			return s.repo.BulkInsert(ctx, tx, rows)
		},
		Reload: func(ctx context.Context, tx *sqlx.Tx) ([]models.Enrollment, error) {
			return s.repo.ListByStudent(ctx, tx, req.StudentID)
		},
	}, nil)
	if err != nil {
		return nil, err
	}

	summary := summarizeEnrollments(req.StudentID, prior, result.Rows, func(e models.Enrollment) string { return e.ClassID })
	summary.Placement = &placement
	logger.FromContext(ctx, s.logger).Info("student re-enrolled",
		zap.String("student_id", req.StudentID),
		zap.Strings("added", summary.Added),
		zap.Strings("removed", summary.Removed),
	)
	return summary, nil
}

// ReconcileClassRoster replaces a class's memberships with every active student placed in
// its grade and section, or with nothing when the class is inactive.
func (s *EnrollmentService) ReconcileClassRoster(ctx context.Context, classID string) (*models.EnrollmentSummary, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, validationError("class not found", []models.ReferenceIssue{
			referenceIssue(TopLevel("classId", models.EntityClass, classID), models.IssueNotFound),
		})
	}
	if err != nil {
		return nil, appErrors.Transaction(err, "failed to load class")
	}

	placement := class.Placement()
	var prior []models.Enrollment
	result, err := Reconcile(ctx, s.reconciler, ChildSet[models.Enrollment]{
		Operation: opReconcileRoster,
		ParentKey: classID,
		Lock: func(ctx context.Context, tx *sqlx.Tx) error {
			return s.classes.LockForUpdate(ctx, tx, classID)
		},
		Prepare: func(ctx context.Context, tx *sqlx.Tx) error {
			var err error
			prior, err = s.repo.ListByClass(ctx, tx, classID)
			return err
		},
		Resolve: func(ctx context.Context, tx *sqlx.Tx) ([]models.Enrollment, error) {
			if !class.IsActive {
				return nil, nil
			}
			ids, err := s.students.ListActiveIDsByPlacement(ctx, tx, placement)
			if err != nil {
				return nil, err
			}
			rows := make([]models.Enrollment, len(ids))
			for i, id := range ids {
				rows[i] = models.Enrollment{StudentID: id, ClassID: classID}
			}
			return rows, nil
		},
		Delete: func(ctx context.Context, tx *sqlx.Tx) (int64, error) {
			return s.repo.DeleteByClass(ctx, tx, classID)
		},
		Insert: func(ctx context.Context, tx *sqlx.Tx, rows []models.Enrollment) error {
			return s.repo.BulkInsert(ctx, tx, rows)
		},
		Reload: func(ctx context.Context, tx *sqlx.Tx) ([]models.Enrollment, error) {
			return s.repo.ListByClass(ctx, tx, classID)
		},
	}, nil)
	if err != nil {
		return nil, err
	}

	summary := summarizeEnrollments(classID, prior, result.Rows, func(e models.Enrollment) string { return e.StudentID })
	summary.Placement = &placement
	logger.FromContext(ctx, s.logger).Info("class roster reconciled",
		zap.String("class_id", classID),
		zap.Bool("active", class.IsActive),
		zap.Int("total", summary.Total),
	)
	return summary, nil
}

// ListEnrollments returns the memberships of a student.
func (s *EnrollmentService) ListEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	if err := s.gateway.Exists(ctx, TopLevel("studentId", models.EntityStudent, studentID)); err != nil {
		return nil, err
	}
	enrollments, err := s.repo.ListByStudent(ctx, nil, studentID)
	if err != nil {
		return nil, mapTxError(err, "failed to load enrollments")
	}
	return enrollments, nil
}

// summarizeEnrollments diffs prior and current membership by the member id that varies under parentID.
func summarizeEnrollments(parentID string, prior, current []models.Enrollment, member func(models.Enrollment) string) *models.EnrollmentSummary {
	before := make(map[string]bool, len(prior))
	for _, e := range prior {
		before[member(e)] = true
	}
	after := make(map[string]bool, len(current))
	summary := &models.EnrollmentSummary{
		ParentID:    parentID,
		Enrollments: current,
		Added:       []string{},
		Removed:     []string{},
		Total:       len(current),
	}
	if summary.Enrollments == nil {
		summary.Enrollments = []models.Enrollment{}
	}
	for _, e := range current {
		id := member(e)
		after[id] = true
		if !before[id] {
			summary.Added = append(summary.Added, id)
		}
	}
	for _, e := range prior {
		if id := member(e); !after[id] {
			summary.Removed = append(summary.Removed, id)
		}
	}
	return summary
}
