package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert attendance: %w", &pq.Error{Code: "23505", Constraint: "attendance_records_student_class_date_key"})
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsForeignKeyViolation(err))
	assert.Equal(t, "attendance_records_student_class_date_key", ConstraintName(err))
}

func TestIsForeignKeyViolation(t *testing.T) {
	err := &pq.Error{Code: "23503"}
	assert.True(t, IsForeignKeyViolation(err))
	assert.False(t, IsUniqueViolation(err))
}

func TestPlainErrorsAreNotConstraintFailures(t *testing.T) {
	err := errors.New("connection reset")
	assert.False(t, IsUniqueViolation(err))
	assert.Empty(t, ConstraintName(err))
}
