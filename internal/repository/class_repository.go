package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-academic-api/internal/models"
)

const classColumns = `id, name, subject_id, teacher_id, grade_id, section_id, capacity, is_active, academic_year, created_at, updated_at`

// ClassRepository provides read access and lifecycle flags for class sections.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID loads a class section by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassSection, error) {
	query := `SELECT ` + classColumns + ` FROM class_sections WHERE id = $1`
	var class models.ClassSection
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListActiveByPlacement returns the active classes taught to a grade level and section.
func (r *ClassRepository) ListActiveByPlacement(ctx context.Context, exec sqlx.ExtContext, gradeID, sectionID string) ([]models.ClassSection, error) {
	query := `SELECT ` + classColumns + ` FROM class_sections WHERE grade_id = $1 AND section_id = $2 AND is_active = TRUE ORDER BY id`
	var classes []models.ClassSection
	if err := sqlx.SelectContext(ctx, execOr(r.db, exec), &classes, query, gradeID, sectionID); err != nil {
		return nil, fmt.Errorf("list classes by placement: %w", err)
	}
	return classes, nil
}

// LockForUpdate takes a row lock on the class for the rest of the transaction.
func (r *ClassRepository) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	var locked string
	if err := sqlx.GetContext(ctx, execOr(r.db, exec), &locked, `SELECT id FROM class_sections WHERE id = $1 FOR UPDATE`, id); err != nil {
		return fmt.Errorf("lock class %s: %w", id, err)
	}
	return nil
}

// SetActive flips the active flag.
func (r *ClassRepository) SetActive(ctx context.Context, exec sqlx.ExtContext, id string, active bool) error {
	if _, err := execOr(r.db, exec).ExecContext(ctx, `UPDATE class_sections SET is_active = $2, updated_at = $3 WHERE id = $1`, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set class active: %w", err)
	}
	return nil
}

// Delete removes a class permanently.
func (r *ClassRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (int64, error) {
	res, err := execOr(r.db, exec).ExecContext(ctx, `DELETE FROM class_sections WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete class: %w", err)
	}
	return res.RowsAffected()
}

// CountByTeacher returns the number of classes assigned to a teacher.
func (r *ClassRepository) CountByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, execOr(r.db, exec), &count, `SELECT COUNT(*) FROM class_sections WHERE teacher_id = $1`, teacherID); err != nil {
		return 0, fmt.Errorf("count teacher classes: %w", err)
	}
	return count, nil
}
