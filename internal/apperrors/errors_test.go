// internal/apperrors/errors_test.go
package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	err := Validation("quantity must be at least %d", 1)

	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, CodeValidation, code)

	_, ok = CodeOf(errors.New("plain error"))
	assert.False(t, ok)
}

func TestCodeSurvivesWrapping(t *testing.T) {
	inner := Conflict("order ORD-1 was modified concurrently")
	wrapped := fmt.Errorf("advance failed: %w", inner)

	assert.True(t, HasCode(wrapped, CodeConflict))
	assert.False(t, HasCode(wrapped, CodeNotFound))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("field Items failed min validation")
	err := Wrap(CodeValidation, "invalid order request", cause)

	assert.True(t, HasCode(err, CodeValidation))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "invalid order request")
}

func TestInvalidTransitionMessage(t *testing.T) {
	err := InvalidTransition("order", "pending", "shipped")

	assert.True(t, HasCode(err, CodeInvalidTransition))
	assert.Equal(t, "INVALID_TRANSITION: order cannot move from pending to shipped", err.Error())
}
