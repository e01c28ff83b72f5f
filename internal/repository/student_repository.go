package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-academic-api/internal/models"
)

const studentColumns = `id, nis, full_name, grade_id, section_id, active, created_at, updated_at`

// StudentRepository handles the student fields the engine reads and writes.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID loads a student.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// LockForUpdate takes a row lock on the student for the rest of the transaction.
func (r *StudentRepository) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	var locked string
	if err := sqlx.GetContext(ctx, execOr(r.db, exec), &locked, `SELECT id FROM students WHERE id = $1 FOR UPDATE`, id); err != nil {
		return fmt.Errorf("lock student %s: %w", id, err)
	}
	return nil
}

// UpdatePlacement stores the student's current grade level and section.
func (r *StudentRepository) UpdatePlacement(ctx context.Context, exec sqlx.ExtContext, id string, placement models.Placement) error {
	const query = `UPDATE students SET grade_id = $2, section_id = $3, updated_at = $4 WHERE id = $1`
	if _, err := execOr(r.db, exec).ExecContext(ctx, query, id, placement.GradeID, placement.SectionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student placement: %w", err)
	}
	return nil
}

// ListActiveIDsByPlacement returns active students placed in a grade level and section.
func (r *StudentRepository) ListActiveIDsByPlacement(ctx context.Context, exec sqlx.ExtContext, placement models.Placement) ([]string, error) {
	const query = `SELECT id FROM students WHERE grade_id = $1 AND section_id = $2 AND active = TRUE ORDER BY id`
	var ids []string
	if err := sqlx.SelectContext(ctx, execOr(r.db, exec), &ids, query, placement.GradeID, placement.SectionID); err != nil {
		return nil, fmt.Errorf("list students by placement: %w", err)
	}
	return ids, nil
}

// SetActive flips the active flag.
func (r *StudentRepository) SetActive(ctx context.Context, exec sqlx.ExtContext, id string, active bool) error {
	if _, err := execOr(r.db, exec).ExecContext(ctx, `UPDATE students SET active = $2, updated_at = $3 WHERE id = $1`, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set student active: %w", err)
	}
	return nil
}

// Delete removes a student permanently.
func (r *StudentRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (int64, error) {
	res, err := execOr(r.db, exec).ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete student: %w", err)
	}
	return res.RowsAffected()
}
