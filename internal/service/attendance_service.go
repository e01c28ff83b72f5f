package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-academic-api/internal/dto"
	"github.com/noah-isme/sma-academic-api/internal/models"
	"github.com/noah-isme/sma-academic-api/pkg/logger"
)

const opReconcileAttendance = "reconcile_attendance"

type attendanceRepository interface {
	ListByClassDate(ctx context.Context, exec sqlx.ExtContext, classID string, date time.Time) ([]models.AttendanceRecord, error)
	DeleteByClassDate(ctx context.Context, exec sqlx.ExtContext, classID string, date time.Time) (int64, error)
	BulkInsert(ctx context.Context, exec sqlx.ExtContext, records []models.AttendanceRecord) error
	StudentCounts(ctx context.Context, studentID, classID string) (models.AttendanceCounts, error)
}

type rowLocker interface {
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) error
}

// AttendanceService records and reads per-class daily attendance.
type AttendanceService struct {
	repo       attendanceRepository
	classes    rowLocker
	gateway    *ValidationGateway
	reconciler *Reconciler
	cache      *CacheService
	clock      Clock
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, classes rowLocker, gateway *ValidationGateway, reconciler *Reconciler, cache *CacheService, clock Clock, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &AttendanceService{repo: repo, classes: classes, gateway: gateway, reconciler: reconciler, cache: cache, clock: clock, validator: validate, logger: logger}
}

// ReconcileAttendance replaces the attendance set of (class, date) with req.Entries and
// returns the counts over the freshly written rows.
func (s *AttendanceService) ReconcileAttendance(ctx context.Context, req dto.ReconcileAttendanceRequest) (*models.AttendanceSummary, error) {
	for i := range req.Entries {
		req.Entries[i].Status = models.AttendanceStatus(strings.ToUpper(strings.TrimSpace(string(req.Entries[i].Status))))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid attendance payload")
	}
	date, err := s.resolveDate(req.Date)
	if err != nil {
		return nil, err
	}

	studentIDs := make([]string, len(req.Entries))
	seen := make(map[string]int, len(req.Entries))
	var dupes []models.ReferenceIssue
	for i, entry := range req.Entries {
		studentIDs[i] = entry.StudentID
		if first, ok := seen[entry.StudentID]; ok {
			dupes = append(dupes, models.ReferenceIssue{
				Index: i, Field: "studentId", Entity: models.EntityStudent, ID: entry.StudentID,
				Reason: models.IssueDuplicate, Detail: fmt.Sprintf("already listed at index %d", first),
			})
			continue
		}
		seen[entry.StudentID] = i
	}
	if err := constraintError("attendance entries repeat a student", dupes); err != nil {
		return nil, err
	}

	checks := []ReferenceCheck{TopLevel("classId", models.EntityClass, req.ClassID)}
	if req.RecordedBy != nil {
		checks = append(checks, TopLevel("recordedBy", models.EntityTeacher, *req.RecordedBy))
	}
	if err := s.gateway.Check(ctx, checks...); err != nil {
		return nil, err
	}
	if err := s.gateway.RequireMembers(ctx, req.ClassID, studentIDs); err != nil {
		return nil, err
	}

	desired := make([]models.AttendanceRecord, len(req.Entries))
	for i, entry := range req.Entries {
		desired[i] = models.AttendanceRecord{
			StudentID:  entry.StudentID,
			ClassID:    req.ClassID,
			Date:       date,
			Status:     entry.Status,
			Notes:      entry.Notes,
			RecordedBy: req.RecordedBy,
		}
	}

	result, err := Reconcile(ctx, s.reconciler, ChildSet[models.AttendanceRecord]{
		Operation: opReconcileAttendance,
		ParentKey: req.ClassID + "@" + date.Format(models.DateLayout),
		Lock: func(ctx context.Context, tx *sqlx.Tx) error {
			return s.classes.LockForUpdate(ctx, tx, req.ClassID)
		},
		Delete: func(ctx context.Context, tx *sqlx.Tx) (int64, error) {
			return s.repo.DeleteByClassDate(ctx, tx, req.ClassID, date)
		},
		Insert: func(ctx context.Context, tx *sqlx.Tx, rows []models.AttendanceRecord) error {
			return s.repo.BulkInsert(ctx, tx, rows)
		},
		Reload: func(ctx context.Context, tx *sqlx.Tx) ([]models.AttendanceRecord, error) {
			return s.repo.ListByClassDate(ctx, tx, req.ClassID, date)
		},
	}, desired)
	if err != nil {
		return nil, err
	}

	s.cache.Evict(ctx, AttendanceSheetKey(req.ClassID, date.Format(models.DateLayout)))
	summary := models.SummarizeAttendance(req.ClassID, date, result.Rows)
	logger.FromContext(ctx, s.logger).Info("attendance reconciled",
		zap.String("class_id", req.ClassID),
		zap.String("date", summary.Date),
		zap.Int64("removed", result.Removed),
		zap.Int("total", summary.Counts.Total),
	)
	return &summary, nil
}

// ListAttendance returns the attendance sheet of a class for one date. An empty date means today.
func (s *AttendanceService) ListAttendance(ctx context.Context, classID, rawDate string) (*models.AttendanceSummary, error) {
	date, err := s.resolveDate(rawDate)
	if err != nil {
		return nil, err
	}
	key := AttendanceSheetKey(classID, date.Format(models.DateLayout))
	var cached models.AttendanceSummary
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	fill := s.cache.Begin(key)

	if err := s.gateway.Exists(ctx, TopLevel("classId", models.EntityClass, classID)); err != nil {
		return nil, err
	}
	records, err := s.repo.ListByClassDate(ctx, nil, classID, date)
	if err != nil {
		return nil, mapTxError(err, "failed to load attendance")
	}
	summary := models.SummarizeAttendance(classID, date, records)
	s.cache.Fill(ctx, fill, summary)
	return &summary, nil
}

// StudentAttendanceRate derives how often a student attended a class. LATE counts as attended.
func (s *AttendanceService) StudentAttendanceRate(ctx context.Context, studentID, classID string) (*models.AttendanceRate, error) {
	if err := s.gateway.Exists(ctx, TopLevel("studentId", models.EntityStudent, studentID)); err != nil {
		return nil, err
	}
	if err := s.gateway.Exists(ctx, TopLevel("classId", models.EntityClass, classID)); err != nil {
		return nil, err
	}
	counts, err := s.repo.StudentCounts(ctx, studentID, classID)
	if err != nil {
		return nil, mapTxError(err, "failed to count attendance")
	}
	rate := &models.AttendanceRate{StudentID: studentID, ClassID: classID, Counts: counts}
	if counts.Total > 0 {
		rate.Rate = math.Round(float64(counts.Present+counts.Late)/float64(counts.Total)*10000) / 100
	}
	return rate, nil
}

func (s *AttendanceService) resolveDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return Today(s.clock), nil
	}
	date, err := time.ParseInLocation(models.DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, invalidPayload(err, "date must use YYYY-MM-DD")
	}
	return date, nil
}
