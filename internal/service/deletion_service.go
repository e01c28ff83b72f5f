package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-academic-api/internal/models"
	"github.com/noah-isme/sma-academic-api/pkg/logger"
)

const opDeleteOrDeactivate = "delete_or_deactivate"

// Dependent row families reported on a DeleteOutcome.
const (
	DependencyEnrollments = "enrollments"
	DependencyGrades      = "grades"
	DependencyAttendance  = "attendance"
	DependencyClasses     = "classes"
	DependencySchedule    = "schedule_blocks"
)

type lifecycleRepository interface {
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) error
	SetActive(ctx context.Context, exec sqlx.ExtContext, id string, active bool) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) (int64, error)
}

type classLifecycleRepository interface {
	lifecycleRepository
	CountByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int, error)
}

type enrollmentDependents interface {
	CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int, error)
	CountByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int, error)
	DeleteByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int64, error)
	DeleteByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int64, error)
}

type gradeDependents interface {
	CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int, error)
	CountByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int, error)
}

type attendanceDependents interface {
	CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int, error)
	CountByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int, error)
	CountByRecorder(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int, error)
}

type scheduleDependents interface {
	DeleteByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int64, error)
}

type txCounter func(ctx context.Context, exec sqlx.ExtContext, id string) (int, error)

type txDeleter func(ctx context.Context, exec sqlx.ExtContext, id string) (int64, error)

type dependentCount struct {
	name  string
	count txCounter
}

type ownedRows struct {
	name   string
	delete txDeleter
}

// deletionPolicy describes how one entity family is guarded. released rows are removed when
// the entity is deactivated so derived memberships never point at inactive parents; owned rows
// are removed together with the entity on a hard delete.
type deletionPolicy struct {
	entity     lifecycleRepository
	dependents []dependentCount
	released   []ownedRows
	owned      []ownedRows
	cacheKeys  func(id string) []string
}

// DeletionService decides between hard delete and deactivation from dependent row counts.
type DeletionService struct {
	policies   map[models.EntityKind]deletionPolicy
	gateway    *ValidationGateway
	reconciler *Reconciler
	cache      *CacheService
	logger     *zap.Logger
}

// NewDeletionService wires the guard for classes, teachers and students.
func NewDeletionService(
	classes classLifecycleRepository,
	teachers lifecycleRepository,
	students lifecycleRepository,
	enrollments enrollmentDependents,
	grades gradeDependents,
	attendance attendanceDependents,
	schedules scheduleDependents,
	gateway *ValidationGateway,
	reconciler *Reconciler,
	cache *CacheService,
	logger *zap.Logger,
) *DeletionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	policies := map[models.EntityKind]deletionPolicy{
		models.EntityClass: {
			entity: classes,
			dependents: []dependentCount{
				{DependencyEnrollments, enrollments.CountByClass},
				{DependencyGrades, grades.CountByClass},
				{DependencyAttendance, attendance.CountByClass},
			},
			released: []ownedRows{{DependencyEnrollments, enrollments.DeleteByClass}},
			owned:    []ownedRows{{DependencySchedule, schedules.DeleteByClass}},
			cacheKeys: func(id string) []string {
				return []string{AttendanceSheetKey(id, "*"), GradeSheetKey(id, "*")}
			},
		},
		models.EntityTeacher: {
			entity: teachers,
			dependents: []dependentCount{
				{DependencyClasses, classes.CountByTeacher},
				{DependencyAttendance, attendance.CountByRecorder},
			},
		},
		models.EntityStudent: {
			entity: students,
			dependents: []dependentCount{
				{DependencyEnrollments, enrollments.CountByStudent},
				{DependencyGrades, grades.CountByStudent},
				{DependencyAttendance, attendance.CountByStudent},
			},
			released: []ownedRows{{DependencyEnrollments, enrollments.DeleteByStudent}},
		},
	}
	return &DeletionService{policies: policies, gateway: gateway, reconciler: reconciler, cache: cache, logger: logger}
}

// DeleteOrDeactivate removes the entity when nothing depends on it and deactivates it otherwise.
// A blocked delete is an outcome, not an error.
func (s *DeletionService) DeleteOrDeactivate(ctx context.Context, ref models.EntityRef) (*models.DeleteOutcome, error) {
	policy, ok := s.policies[ref.Kind]
	if !ok {
		return nil, validationError("entity cannot be deleted through the guard", []models.ReferenceIssue{{
			Index: -1, Field: "entity", Entity: ref.Kind, ID: ref.ID, Reason: models.IssueInvalid,
			Detail: fmt.Sprintf("unsupported entity %q", ref.Kind),
		}})
	}
	if err := s.gateway.Exists(ctx, TopLevel("id", ref.Kind, ref.ID)); err != nil {
		return nil, err
	}

	outcome := &models.DeleteOutcome{Entity: ref.Kind, ID: ref.ID, Removed: map[string]int64{}}
	err := s.reconciler.InTx(ctx, opDeleteOrDeactivate, string(ref.Kind)+":"+ref.ID, func(ctx context.Context, tx *sqlx.Tx) (int, error) {
		if s.reconciler.LocksRows() {
			if err := policy.entity.LockForUpdate(ctx, tx, ref.ID); err != nil {
				return 0, err
			}
		}
		for _, dep := range policy.dependents {
			count, err := dep.count(ctx, tx, ref.ID)
			if err != nil {
				return 0, err
			}
			if count > 0 {
				outcome.BlockedBy = append(outcome.BlockedBy, models.DependencyCount{Dependency: dep.name, Count: count})
			}
		}

		if len(outcome.BlockedBy) > 0 {
			outcome.Result = models.DeleteResultDeactivated
			if err := policy.entity.SetActive(ctx, tx, ref.ID, false); err != nil {
				return 0, err
			}
			return removeRows(ctx, tx, ref.ID, policy.released, outcome.Removed)
		}

		outcome.Result = models.DeleteResultDeleted
		written, err := removeRows(ctx, tx, ref.ID, policy.owned, outcome.Removed)
		if err != nil {
			return 0, err
		}
		removed, err := policy.entity.Delete(ctx, tx, ref.ID)
		if err != nil {
			return 0, err
		}
		outcome.Removed[string(ref.Kind)] = removed
		return written + int(removed), nil
	})
	if err != nil {
		return nil, err
	}

	if policy.cacheKeys != nil {
		for _, pattern := range policy.cacheKeys(ref.ID) {
			_ = s.cache.Invalidate(ctx, pattern)
		}
	}
	logger.FromContext(ctx, s.logger).Info("delete guard applied",
		zap.String("entity", string(ref.Kind)),
		zap.String("id", ref.ID),
		zap.String("result", string(outcome.Result)),
		zap.Int("blocking_dependencies", len(outcome.BlockedBy)),
	)
	return outcome, nil
}

func removeRows(ctx context.Context, tx *sqlx.Tx, id string, rows []ownedRows, removed map[string]int64) (int, error) {
	total := 0
	for _, owned := range rows {
		n, err := owned.delete(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		removed[owned.name] = n
		total += int(n)
	}
	return total, nil
}
