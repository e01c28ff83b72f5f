package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DuplicateRowError is returned by bulk inserts when a row collides with the composite key
// of a row written earlier in the same transaction.
type DuplicateRowError struct {
	Table string
	Key   string
}

// Error implements the error interface.
func (e *DuplicateRowError) Error() string {
	return fmt.Sprintf("duplicate %s row for %s", e.Table, e.Key)
}

func execOr(db *sqlx.DB, exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}

func countBy(ctx context.Context, exec sqlx.ExtContext, table, column, id string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", table, column)
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, id); err != nil {
		return 0, fmt.Errorf("count %s by %s: %w", table, column, err)
	}
	return count, nil
}
