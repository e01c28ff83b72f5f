package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-academic-api/internal/models"
)

// TeacherRepository provides teacher lookups and lifecycle flags.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a teacher repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// FindByID retrieves a teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, full_name, email, active, created_at, updated_at FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// LockForUpdate takes a row lock on the teacher for the rest of the transaction.
func (r *TeacherRepository) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	var locked string
	if err := sqlx.GetContext(ctx, execOr(r.db, exec), &locked, `SELECT id FROM teachers WHERE id = $1 FOR UPDATE`, id); err != nil {
		return fmt.Errorf("lock teacher %s: %w", id, err)
	}
	return nil
}

// SetActive flips the active flag.
func (r *TeacherRepository) SetActive(ctx context.Context, exec sqlx.ExtContext, id string, active bool) error {
	if _, err := execOr(r.db, exec).ExecContext(ctx, `UPDATE teachers SET active = $2, updated_at = $3 WHERE id = $1`, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set teacher active: %w", err)
	}
	return nil
}

// Delete removes a teacher permanently.
func (r *TeacherRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (int64, error) {
	res, err := execOr(r.db, exec).ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete teacher: %w", err)
	}
	return res.RowsAffected()
}
