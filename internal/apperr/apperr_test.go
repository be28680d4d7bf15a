package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"fitDietAPI/internal/apperr"
)

func TestKindOfWrapped(t *testing.T) {
	sentinel := apperr.New(apperr.KindStateConflict, "day_locked", "day is locked")
	wrapped := fmt.Errorf("complete day 5: %w", sentinel)

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(wrapped))
	assert.Equal(t, "day_locked", apperr.CodeOf(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("connection reset")

	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "internal", apperr.CodeOf(err))
	assert.Equal(t, "internal", apperr.KindInternal.String())
}

func TestValidationFormatsMessage(t *testing.T) {
	err := apperr.Validation("invalid_day", "day %d is outside 1..%d", 31, 30)

	assert.Equal(t, "day 31 is outside 1..30", err.Error())
	assert.Equal(t, "validation", apperr.KindOf(err).String())
}
