package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_EmptyIsValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
	assert.True(t, r.Empty())
}

func TestValidationResult_AddError(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("tasks[0]", ErrCodeValidation, "missing reference name")

	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "tasks[0]", r.Errors[0].Path)
	assert.Equal(t, ErrCodeValidation, r.Errors[0].Code)
	assert.Equal(t, "missing reference name", r.Errors[0].Message)
	assert.Equal(t, SeverityError, r.Errors[0].Severity)
}

func TestValidationResult_AddWarning(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("join_1", ErrCodeReconciliation, "branch selection reset")

	assert.True(t, r.Valid(), "warnings alone should not make result invalid")
	assert.False(t, r.Empty())
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
}

func TestValidationResult_MergeAndIssues(t *testing.T) {
	r1 := &ValidationResult{}
	r1.AddError("/", ErrCodeValidation, "err1")
	r1.AddWarning("/", ErrCodeValidation, "warn1")

	r2 := &ValidationResult{}
	r2.AddError("a", ErrCodeUnsupported, "err2")
	r2.AddWarning("b", ErrCodeExpression, "warn2")

	r1.Merge(r2)
	r1.Merge(nil)

	assert.Len(t, r1.Errors, 2)
	assert.Len(t, r1.Warnings, 2)

	issues := r1.Issues()
	require.Len(t, issues, 4)
	assert.Equal(t, "err1", issues[0].Message)
	assert.Equal(t, "warn2", issues[3].Message)
}

func TestValidationResult_ToError(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("/", ErrCodeValidation, "just a warning")
	assert.Nil(t, r.ToError())

	r.AddError("/", ErrCodeValidation, "err1")
	err := r.ToError()
	require.NotNil(t, err)
	e, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, "err1", e.Message)
	assert.Equal(t, 1, e.Details["error_count"])

	r.AddError("/", ErrCodeValidation, "err2")
	e = r.ToError().(*Error)
	assert.Contains(t, e.Message, "2 errors")
	assert.Equal(t, 1, e.Details["warning_count"])
}

func TestError_Format(t *testing.T) {
	err := NewError(ErrCodeNotFound, "no such node").WithNode("b")
	assert.Equal(t, "[NOT_FOUND] node b: no such node", err.Error())

	cause := NewErrorf(ErrCodeDecode, "bad %s", "json")
	wrapped := NewError(ErrCodeValidation, "outer").WithCause(cause)
	assert.Equal(t, "[VALIDATION_ERROR] outer", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}
