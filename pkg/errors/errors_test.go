package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      New(CodeConnectError, "connection failed"),
			expected: "[CONNECT_ERROR] connection failed",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeWriteError, "apply diff failed", errors.New("network timeout")),
			expected: "[WRITE_ERROR] apply diff failed: network timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeLoadError, "load failed", underlying)

	unwrapped := err.Unwrap()
	assert.Equal(t, underlying, unwrapped)
}

func TestAppError_Is(t *testing.T) {
	err1 := New(CodeConnectError, "error 1")
	err2 := New(CodeConnectError, "error 2")
	err3 := New(CodeWriteError, "error 3")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "app error",
			err:      New(CodeConnectError, "db error"),
			expected: CodeConnectError,
		},
		{
			name:     "wrapped app error",
			err:      Wrap(CodeWriteError, "write", errors.New("inner")),
			expected: CodeWriteError,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: CodeUnknown,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorCode(tt.err))
		})
	}
}

func TestFatal(t *testing.T) {
	assert.True(t, Fatal(CodeConfigError))
	assert.True(t, Fatal(CodeConnectError))
	assert.False(t, Fatal(CodeSchemaCorruption))
	assert.False(t, Fatal(CodeLoadError))
	assert.False(t, Fatal(CodeGrowthRejection))
}
