package apperr

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	verr := Validation("title", "is required").Add("category", "must be one of the known categories")

	assert.Equal(t, "validation failed: category: must be one of the known categories; title: is required", verr.Error())
	assert.Len(t, verr.Fields, 2)
	assert.True(t, IsValidation(verr))

	assert.NoError(t, (&ValidationError{}).OrNil())
	assert.Error(t, verr.OrNil())
}

func TestClassifiersSurviveWrapping(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", NotFound("complaint", id), IsNotFound},
		{"unauthorized", Unauthorized("admin or government role required"), IsUnauthorized},
		{"conflict", Conflict("already submitted"), IsConflict},
		{"invalid state", InvalidState("pending", "add feedback"), IsInvalidState},
		{"validation", Validation("points", "out of range"), IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.False(t, tt.check(fmt.Errorf("plain")))
		})
	}
}

func TestMessages(t *testing.T) {
	id := uuid.MustParse("7f1d1b7e-3c1a-4d0e-9a55-1f0c2b6d8e11")

	assert.Equal(t, "complaint 7f1d1b7e-3c1a-4d0e-9a55-1f0c2b6d8e11 not found", NotFound("complaint", id).Error())
	assert.Equal(t, "user not found", NotFound("user", nil).Error())
	assert.Equal(t, "cannot add feedback while pending", InvalidState("pending", "add feedback").Error())
}
