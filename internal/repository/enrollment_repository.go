package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-academic-api/internal/models"
)

// EnrollmentRepository handles persistence of class memberships.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListByStudent returns every membership of a student.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, created_at FROM enrollments WHERE student_id = $1 ORDER BY class_id`
	enrollments := []models.Enrollment{}
	if err := sqlx.SelectContext(ctx, execOr(r.db, exec), &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByClass returns every membership of a class.
func (r *EnrollmentRepository) ListByClass(ctx context.Context, exec sqlx.ExtContext, classID string) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, created_at FROM enrollments WHERE class_id = $1 ORDER BY student_id`
	enrollments := []models.Enrollment{}
	if err := sqlx.SelectContext(ctx, execOr(r.db, exec), &enrollments, query, classID); err != nil {
		return nil, fmt.Errorf("list class enrollments: %w", err)
	}
	return enrollments, nil
}

// MemberIDs returns the subset of studentIDs enrolled in the class.
func (r *EnrollmentRepository) MemberIDs(ctx context.Context, classID string, studentIDs []string) (map[string]bool, error) {
	members := make(map[string]bool, len(studentIDs))
	if len(studentIDs) == 0 {
		return members, nil
	}
	const query = `SELECT student_id FROM enrollments WHERE class_id = $1 AND student_id = ANY($2)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, classID, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("load class members: %w", err)
	}
	for _, id := range ids {
		members[id] = true
	}
	return members, nil
}

// DeleteByStudent removes all memberships of a student.
func (r *EnrollmentRepository) DeleteByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int64, error) {
	res, err := execOr(r.db, exec).ExecContext(ctx, `DELETE FROM enrollments WHERE student_id = $1`, studentID)
	if err != nil {
		return 0, fmt.Errorf("delete student enrollments: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByClass removes all memberships of a class.
func (r *EnrollmentRepository) DeleteByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int64, error) {
	res, err := execOr(r.db, exec).ExecContext(ctx, `DELETE FROM enrollments WHERE class_id = $1`, classID)
	if err != nil {
		return 0, fmt.Errorf("delete class enrollments: %w", err)
	}
	return res.RowsAffected()
}

// BulkInsert writes memberships. A row colliding on (student_id, class_id) aborts with DuplicateRowError.
func (r *EnrollmentRepository) BulkInsert(ctx context.Context, exec sqlx.ExtContext, enrollments []models.Enrollment) error {
	const query = `INSERT INTO enrollments (id, student_id, class_id, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (student_id, class_id) DO NOTHING RETURNING id`
	now := time.Now().UTC()
	for i := range enrollments {
		row := &enrollments[i]
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		var insertedID string
		err := execOr(r.db, exec).QueryRowxContext(ctx, query, row.ID, row.StudentID, row.ClassID, row.CreatedAt).Scan(&insertedID)
		if errors.Is(err, sql.ErrNoRows) {
			return &DuplicateRowError{Table: "enrollments", Key: row.StudentID + "/" + row.ClassID}
		}
		if err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
	}
	return nil
}

// CountByStudent returns how many memberships reference the student.
func (r *EnrollmentRepository) CountByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int, error) {
	return countBy(ctx, execOr(r.db, exec), "enrollments", "student_id", studentID)
}

// CountByClass returns how many memberships reference the class.
func (r *EnrollmentRepository) CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int, error) {
	return countBy(ctx, execOr(r.db, exec), "enrollments", "class_id", classID)
}
