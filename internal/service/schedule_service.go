package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-academic-api/internal/dto"
	"github.com/noah-isme/sma-academic-api/internal/models"
	"github.com/noah-isme/sma-academic-api/pkg/logger"
)

const opReplaceSchedule = "replace_schedule"

var clockLayouts = []string{"15:04", "15:04:05"}

type scheduleRepository interface {
	ListByClassPeriod(ctx context.Context, exec sqlx.ExtContext, classID, periodID string) ([]models.ScheduleBlock, error)
	DeleteByClassPeriod(ctx context.Context, exec sqlx.ExtContext, classID, periodID string) (int64, error)
	BulkInsert(ctx context.Context, exec sqlx.ExtContext, blocks []models.ScheduleBlock) error
}

// ScheduleService replaces and lists the weekly blocks of a class in the active period.
type ScheduleService struct {
	repo       scheduleRepository
	classes    rowLocker
	gateway    *ValidationGateway
	reconciler *Reconciler
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewScheduleService constructs the schedule service.
func NewScheduleService(repo scheduleRepository, classes rowLocker, gateway *ValidationGateway, reconciler *Reconciler, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, classes: classes, gateway: gateway, reconciler: reconciler, validator: validate, logger: logger}
}

// ReplaceSchedule swaps the class's blocks for the active period with req.Blocks.
func (s *ScheduleService) ReplaceSchedule(ctx context.Context, req dto.ReplaceScheduleRequest) ([]models.ScheduleBlock, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid schedule payload")
	}
	blocks, err := parseScheduleBlocks(req.ClassID, req.Blocks)
	if err != nil {
		return nil, err
	}
	if err := s.gateway.Check(ctx, TopLevel("classId", models.EntityClass, req.ClassID)); err != nil {
		return nil, err
	}
	period, err := s.gateway.ActivePeriod(ctx)
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		blocks[i].AcademicPeriodID = period.ID
	}

	result, err := Reconcile(ctx, s.reconciler, ChildSet[models.ScheduleBlock]{
		Operation: opReplaceSchedule,
		ParentKey: req.ClassID + "@" + period.ID,
		Lock: func(ctx context.Context, tx *sqlx.Tx) error {
			return s.classes.LockForUpdate(ctx, tx, req.ClassID)
		},
		Delete: func(ctx context.Context, tx *sqlx.Tx) (int64, error) {
			return s.repo.DeleteByClassPeriod(ctx, tx, req.ClassID, period.ID)
		},
		Insert: func(ctx context.Context, tx *sqlx.Tx, rows []models.ScheduleBlock) error {
			return s.repo.BulkInsert(ctx, tx, rows)
		},
		Reload: func(ctx context.Context, tx *sqlx.Tx) ([]models.ScheduleBlock, error) {
			return s.repo.ListByClassPeriod(ctx, tx, req.ClassID, period.ID)
		},
	}, blocks)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, s.logger).Info("schedule replaced",
		zap.String("class_id", req.ClassID),
		zap.String("academic_period_id", period.ID),
		zap.Int64("removed", result.Removed),
		zap.Int("blocks", len(result.Rows)),
	)
	return result.Rows, nil
}

// ListSchedule returns the class's blocks in the active period.
func (s *ScheduleService) ListSchedule(ctx context.Context, classID string) ([]models.ScheduleBlock, error) {
	if err := s.gateway.Exists(ctx, TopLevel("classId", models.EntityClass, classID)); err != nil {
		return nil, err
	}
	period, err := s.gateway.ActivePeriod(ctx)
	if err != nil {
		return nil, err
	}
	blocks, err := s.repo.ListByClassPeriod(ctx, nil, classID, period.ID)
	if err != nil {
		return nil, mapTxError(err, "failed to load schedule")
	}
	return blocks, nil
}

// parseScheduleBlocks normalises descriptors onto the reference date and rejects malformed,
// inverted or overlapping blocks.
func parseScheduleBlocks(classID string, entries []dto.ScheduleEntry) ([]models.ScheduleBlock, error) {
	blocks := make([]models.ScheduleBlock, len(entries))
	var invalid, conflicts []models.ReferenceIssue
	for i, entry := range entries {
		day, ok := models.ParseDayOfWeek(entry.DayOfWeek)
		if !ok {
			invalid = append(invalid, scheduleIssue(i, "dayOfWeek", models.IssueInvalid, fmt.Sprintf("unknown day %q", entry.DayOfWeek)))
		}
		start, startErr := parseClock(entry.StartTime)
		if startErr != nil {
			invalid = append(invalid, scheduleIssue(i, "startTime", models.IssueInvalid, startErr.Error()))
		}
		end, endErr := parseClock(entry.EndTime)
		if endErr != nil {
			invalid = append(invalid, scheduleIssue(i, "endTime", models.IssueInvalid, endErr.Error()))
		}
		if startErr == nil && endErr == nil && !start.Before(end) {
			conflicts = append(conflicts, scheduleIssue(i, "endTime", models.IssueInvalid, "end time must be after start time"))
		}
		blocks[i] = models.ScheduleBlock{ClassID: classID, DayOfWeek: day, StartTime: start, EndTime: end, Room: entry.Room}
	}
	if err := validationError("schedule blocks are malformed", invalid); err != nil {
		return nil, err
	}
	for i := range blocks {
		for j := i + 1; j < len(blocks); j++ {
			if blocks[i].Overlaps(blocks[j]) {
				conflicts = append(conflicts, scheduleIssue(j, "startTime", models.IssueOverlap,
					fmt.Sprintf("overlaps block %d on %s", i, blocks[j].DayOfWeek)))
			}
		}
	}
	if err := constraintError("schedule blocks conflict", conflicts); err != nil {
		return nil, err
	}
	return blocks, nil
}

// parseClock keeps only the time of day, anchored to 2000-01-01 UTC.
func parseClock(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return models.AnchorClock(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, expected HH:MM", raw)
}

func scheduleIssue(index int, field, reason, detail string) models.ReferenceIssue {
	return models.ReferenceIssue{Index: index, Field: field, Reason: reason, Detail: detail}
}
