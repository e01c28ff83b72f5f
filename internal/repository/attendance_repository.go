package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-academic-api/internal/models"
)

const attendanceColumns = `id, student_id, class_id, date, status, notes, recorded_by, created_at`

// AttendanceRepository persists per-class daily attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListByClassDate returns the attendance set of a class for one date.
func (r *AttendanceRepository) ListByClassDate(ctx context.Context, exec sqlx.ExtContext, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE class_id = $1 AND date = $2 ORDER BY student_id`
	records := []models.AttendanceRecord{}
	if err := sqlx.SelectContext(ctx, execOr(r.db, exec), &records, query, classID, date); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// DeleteByClassDate removes the attendance set of a class for one date.
func (r *AttendanceRepository) DeleteByClassDate(ctx context.Context, exec sqlx.ExtContext, classID string, date time.Time) (int64, error) {
	res, err := execOr(r.db, exec).ExecContext(ctx, `DELETE FROM attendance_records WHERE class_id = $1 AND date = $2`, classID, date)
	if err != nil {
		return 0, fmt.Errorf("delete attendance: %w", err)
	}
	return res.RowsAffected()
}

// BulkInsert writes attendance marks. A mark colliding on (student_id, class_id, date) aborts with DuplicateRowError.
func (r *AttendanceRepository) BulkInsert(ctx context.Context, exec sqlx.ExtContext, records []models.AttendanceRecord) error {
	const query = `INSERT INTO attendance_records (id, student_id, class_id, date, status, notes, recorded_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (student_id, class_id, date) DO NOTHING RETURNING id`
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		var insertedID string
		err := execOr(r.db, exec).QueryRowxContext(ctx, query, rec.ID, rec.StudentID, rec.ClassID, rec.Date, rec.Status, rec.Notes, rec.RecordedBy, rec.CreatedAt).Scan(&insertedID)
		if errors.Is(err, sql.ErrNoRows) {
			return &DuplicateRowError{Table: "attendance_records", Key: rec.StudentID + "/" + rec.Date.Format(models.DateLayout)}
		}
		if err != nil {
			return fmt.Errorf("insert attendance: %w", err)
		}
	}
	return nil
}

type statusCount struct {
	Status models.AttendanceStatus `db:"status"`
	Count  int                     `db:"count"`
}

// StudentCounts tallies a student's marks in a class by status.
func (r *AttendanceRepository) StudentCounts(ctx context.Context, studentID, classID string) (models.AttendanceCounts, error) {
	const query = `SELECT status, COUNT(*) AS count FROM attendance_records WHERE student_id = $1 AND class_id = $2 GROUP BY status`
	var rows []statusCount
	var counts models.AttendanceCounts
	if err := r.db.SelectContext(ctx, &rows, query, studentID, classID); err != nil {
		return counts, fmt.Errorf("count student attendance: %w", err)
	}
	for _, row := range rows {
		counts.Add(row.Status, row.Count)
	}
	return counts, nil
}

// CountByClass returns how many marks reference the class.
func (r *AttendanceRepository) CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int, error) {
	return countBy(ctx, execOr(r.db, exec), "attendance_records", "class_id", classID)
}

// CountByStudent returns how many marks reference the student.
func (r *AttendanceRepository) CountByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int, error) {
	return countBy(ctx, execOr(r.db, exec), "attendance_records", "student_id", studentID)
}

// CountByRecorder returns how many marks the teacher recorded.
func (r *AttendanceRepository) CountByRecorder(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int, error) {
	return countBy(ctx, execOr(r.db, exec), "attendance_records", "recorded_by", teacherID)
}
