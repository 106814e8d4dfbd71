package utils

import (
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
)

type signup struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Cycle    string `json:"billing_cycle" binding:"omitempty,oneof=monthly yearly"`
}

func TestBindErrorNamesJSONFields(t *testing.T) {
	err := binding.Validator.ValidateStruct(&signup{Email: "nope", Password: "short", Cycle: "weekly"})
	require.Error(t, err)

	appErr := apperrors.GetAppError(BindError(err))
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
	assert.Contains(t, appErr.Details, "email must be a valid email address")
	assert.Contains(t, appErr.Details, "password must be at least 8 characters long")
	assert.Contains(t, appErr.Details, "billing_cycle must be one of [monthly yearly]")
}

func TestBindErrorWrapsDecodeFailures(t *testing.T) {
	appErr := apperrors.GetAppError(BindError(errors.New("unexpected EOF")))
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
	assert.Equal(t, "unexpected EOF", appErr.Details)
}
