package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	typed := Clone(ErrOutOfRange, "score 25 exceeds 20")
	wrapped := fmt.Errorf("record grade: %w", typed)

	got := FromError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, ErrOutOfRange.Code, got.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, got.Status)
	assert.True(t, errors.Is(wrapped, ErrOutOfRange))
	assert.False(t, errors.Is(wrapped, ErrValidation))
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
}

func TestTransactionMapsDeadline(t *testing.T) {
	err := Transaction(fmt.Errorf("commit: %w", context.DeadlineExceeded), "failed to commit attendance")
	appErr := FromError(err)
	assert.Equal(t, ErrTransactionFailure.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "deadline exceeded")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransactionKeepsTypedErrors(t *testing.T) {
	typed := Clone(ErrConstraintViolation, "duplicate student")
	assert.Same(t, typed, Transaction(typed, "ignored"))
	assert.Nil(t, Transaction(nil, "ignored"))
}

func TestWithDetails(t *testing.T) {
	details := []string{"a"}
	got := WithDetails(ErrValidation, "bad refs", details)
	assert.Equal(t, "bad refs", got.Message)
	assert.Equal(t, details, got.Details)
	assert.Nil(t, ErrValidation.Details)
}
