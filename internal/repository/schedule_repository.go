package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-academic-api/internal/models"
)

// ScheduleRepository persists weekly schedule blocks.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ListByClassPeriod returns the blocks of a class in one period ordered by day and start.
func (r *ScheduleRepository) ListByClassPeriod(ctx context.Context, exec sqlx.ExtContext, classID, periodID string) ([]models.ScheduleBlock, error) {
	const query = `SELECT id, class_id, academic_period_id, day_of_week, start_time, end_time, room, created_at
FROM schedule_blocks WHERE class_id = $1 AND academic_period_id = $2
ORDER BY CASE day_of_week WHEN 'MONDAY' THEN 1 WHEN 'TUESDAY' THEN 2 WHEN 'WEDNESDAY' THEN 3
WHEN 'THURSDAY' THEN 4 WHEN 'FRIDAY' THEN 5 WHEN 'SATURDAY' THEN 6 ELSE 7 END, start_time`
	blocks := []models.ScheduleBlock{}
	if err := sqlx.SelectContext(ctx, execOr(r.db, exec), &blocks, query, classID, periodID); err != nil {
		return nil, fmt.Errorf("list schedule blocks: %w", err)
	}
	for i := range blocks {
		blocks[i].StartTime = models.AnchorClock(blocks[i].StartTime)
		blocks[i].EndTime = models.AnchorClock(blocks[i].EndTime)
	}
	return blocks, nil
}

// DeleteByClassPeriod removes the blocks of a class in one period.
func (r *ScheduleRepository) DeleteByClassPeriod(ctx context.Context, exec sqlx.ExtContext, classID, periodID string) (int64, error) {
	res, err := execOr(r.db, exec).ExecContext(ctx, `DELETE FROM schedule_blocks WHERE class_id = $1 AND academic_period_id = $2`, classID, periodID)
	if err != nil {
		return 0, fmt.Errorf("delete schedule blocks: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByClass removes every block of a class across periods.
func (r *ScheduleRepository) DeleteByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int64, error) {
	res, err := execOr(r.db, exec).ExecContext(ctx, `DELETE FROM schedule_blocks WHERE class_id = $1`, classID)
	if err != nil {
		return 0, fmt.Errorf("delete class schedule: %w", err)
	}
	return res.RowsAffected()
}

// BulkInsert writes schedule blocks.
func (r *ScheduleRepository) BulkInsert(ctx context.Context, exec sqlx.ExtContext, blocks []models.ScheduleBlock) error {
	const query = `INSERT INTO schedule_blocks (id, class_id, academic_period_id, day_of_week, start_time, end_time, room, created_at)
VALUES (:id, :class_id, :academic_period_id, :day_of_week, :start_time, :end_time, :room, :created_at)`
	now := time.Now().UTC()
	for i := range blocks {
		if blocks[i].ID == "" {
			blocks[i].ID = uuid.NewString()
		}
		if blocks[i].CreatedAt.IsZero() {
			blocks[i].CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, execOr(r.db, exec), query, blocks[i]); err != nil {
			return fmt.Errorf("insert schedule block: %w", err)
		}
	}
	return nil
}

// CountByClass returns how many blocks reference the class.
func (r *ScheduleRepository) CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int, error) {
	return countBy(ctx, execOr(r.db, exec), "schedule_blocks", "class_id", classID)
}
