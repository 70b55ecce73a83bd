package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestNotFoundOr(t *testing.T) {
	err := NotFoundOr(fmt.Errorf("load: %w", gorm.ErrRecordNotFound), "Event not found")
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.Equal(t, "Event not found", err.(*AppError).Message)

	other := errors.New("connection reset")
	assert.Same(t, other, NotFoundOr(other, "Event not found"))
	assert.NoError(t, NotFoundOr(nil, "Event not found"))
}

func TestSentinelsMatchOnCode(t *testing.T) {
	wrapped := fmt.Errorf("verify: %w", New(CodeInvalidSignature, http.StatusBadRequest, "Invalid webhook signature"))
	assert.ErrorIs(t, wrapped, ErrInvalidSignature)
	assert.NotErrorIs(t, BadRequest("Invalid payment signature"), ErrInvalidSignature)
	assert.Equal(t, http.StatusBadRequest, StatusOf(ErrInvalidTransition))
	assert.Zero(t, StatusOf(errors.New("plain")))
}
