package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-academic-api/internal/models"
)

const periodColumns = `id, name, type, start_date, end_date, min_passing_grade, max_grade, is_active, created_at, updated_at`

// AcademicPeriodRepository reads grading windows.
type AcademicPeriodRepository struct {
	db *sqlx.DB
}

// NewAcademicPeriodRepository constructs the repository.
func NewAcademicPeriodRepository(db *sqlx.DB) *AcademicPeriodRepository {
	return &AcademicPeriodRepository{db: db}
}

// FindByID loads a period by identifier.
func (r *AcademicPeriodRepository) FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM academic_periods WHERE id = $1`
	var period models.AcademicPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindActive returns the active period with the latest start date.
func (r *AcademicPeriodRepository) FindActive(ctx context.Context) (*models.AcademicPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM academic_periods WHERE is_active = TRUE ORDER BY start_date DESC LIMIT 1`
	var period models.AcademicPeriod
	if err := r.db.GetContext(ctx, &period, query); err != nil {
		return nil, err
	}
	return &period, nil
}
