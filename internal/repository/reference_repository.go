package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-academic-api/internal/models"
)

type referenceTable struct {
	table  string
	active string
}

var referenceTables = map[models.EntityKind]referenceTable{
	models.EntityGradeLevel:     {table: "grade_levels", active: "active"},
	models.EntitySection:        {table: "sections", active: "active"},
	models.EntityTeacher:        {table: "teachers", active: "active"},
	models.EntitySubject:        {table: "subjects", active: "active"},
	models.EntityStudent:        {table: "students", active: "active"},
	models.EntityClass:          {table: "class_sections", active: "is_active"},
	models.EntityAcademicPeriod: {table: "academic_periods", active: "is_active"},
}

// ReferenceRepository answers existence/activity questions for any referenced entity family.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs the repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// Statuses returns the active flag of every id that exists. Missing ids are absent from the map.
func (r *ReferenceRepository) Statuses(ctx context.Context, kind models.EntityKind, ids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	tbl, ok := referenceTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	query := fmt.Sprintf("SELECT id, %s AS active FROM %s WHERE id = ANY($1)", tbl.active, tbl.table)
	var rows []models.ReferenceStatus
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load %s statuses: %w", kind, err)
	}
	for _, row := range rows {
		result[row.ID] = row.Active
	}
	return result, nil
}
