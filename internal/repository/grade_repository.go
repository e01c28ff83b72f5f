package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-academic-api/internal/models"
)

const gradeColumns = `id, student_id, class_id, academic_period_id, grade_type, score, max_score, percentage, letter_grade, comments, created_at, updated_at`

// GradeRepository manages grade persistence.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Upsert inserts the grade or updates the row sharing its composite key and returns the stored row.
func (r *GradeRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, grade *models.Grade) (*models.Grade, error) {
	now := time.Now().UTC()
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	query := `INSERT INTO grades (` + gradeColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (student_id, class_id, academic_period_id, grade_type)
DO UPDATE SET score = EXCLUDED.score, max_score = EXCLUDED.max_score, percentage = EXCLUDED.percentage,
letter_grade = EXCLUDED.letter_grade, comments = EXCLUDED.comments, updated_at = EXCLUDED.updated_at
RETURNING ` + gradeColumns
	var stored models.Grade
	err := sqlx.GetContext(ctx, execOr(r.db, exec), &stored, query,
		grade.ID, grade.StudentID, grade.ClassID, grade.AcademicPeriodID, grade.GradeType,
		grade.Score, grade.MaxScore, grade.Percentage, grade.LetterGrade, grade.Comments,
		grade.CreatedAt, grade.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert grade: %w", err)
	}
	return &stored, nil
}

// ListByClassPeriod returns the grades of a class for one period.
func (r *GradeRepository) ListByClassPeriod(ctx context.Context, classID, periodID string) ([]models.Grade, error) {
	query := `SELECT ` + gradeColumns + ` FROM grades WHERE class_id = $1 AND academic_period_id = $2 ORDER BY student_id, grade_type`
	grades := []models.Grade{}
	if err := r.db.SelectContext(ctx, &grades, query, classID, periodID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// CountByClass returns how many grades reference the class.
func (r *GradeRepository) CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int, error) {
	return countBy(ctx, execOr(r.db, exec), "grades", "class_id", classID)
}

// CountByStudent returns how many grades reference the student.
func (r *GradeRepository) CountByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int, error) {
	return countBy(ctx, execOr(r.db, exec), "grades", "student_id", studentID)
}
