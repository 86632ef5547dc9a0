package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "error without wrapped error",
			appErr:   ErrNoFaceDetected,
			expected: "No face detected in the image",
		},
		{
			name: "error with wrapped error",
			appErr: &AppError{
				Code:       "TEST_ERROR",
				Message:    "Test message",
				StatusCode: 500,
				Err:        errors.New("underlying error"),
			},
			expected: "Test message: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	appErr := &AppError{
		Code:       "TEST",
		Message:    "test",
		StatusCode: 500,
		Err:        underlying,
	}

	if got := appErr.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}

	if got := ErrSessionActive.Unwrap(); got != nil {
		t.Errorf("Unwrap() = %v, want nil", got)
	}
}

func TestAppError_WithError(t *testing.T) {
	underlying := errors.New("stat /data/faces/Math: no such file or directory")
	newErr := ErrEnrollmentDirMissing.WithError(underlying)

	if newErr.Code != ErrEnrollmentDirMissing.Code {
		t.Errorf("Code = %v, want %v", newErr.Code, ErrEnrollmentDirMissing.Code)
	}

	if !errors.Is(newErr, underlying) {
		t.Errorf("errors.Is should match the wrapped error")
	}

	if !errors.Is(newErr, ErrEnrollmentDirMissing) {
		t.Errorf("errors.Is should match the predefined error by code")
	}

	if errors.Is(newErr, ErrSourceUnavailable) {
		t.Errorf("errors.Is should not match a different code")
	}
}

func TestErrorsAs(t *testing.T) {
	err := fmt.Errorf("open camera: %w", ErrSourceUnavailable.WithError(errors.New("connection refused")))

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("errors.As should match AppError")
	}

	if appErr.Code != "SOURCE_UNAVAILABLE" {
		t.Errorf("Code = %v, want SOURCE_UNAVAILABLE", appErr.Code)
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err        *AppError
		code       string
		statusCode int
	}{
		{ErrInternal, "INTERNAL_ERROR", 500},
		{ErrBadRequest, "BAD_REQUEST", 400},
		{ErrNotFound, "NOT_FOUND", 404},
		{ErrValidationFailed, "VALIDATION_FAILED", 422},
		{ErrUnauthorized, "UNAUTHORIZED", 401},
		{ErrRateLimitExceeded, "RATE_LIMIT_EXCEEDED", 429},
		{ErrEnrollmentDirMissing, "ENROLLMENT_DIR_MISSING", 500},
		{ErrInvalidImage, "INVALID_IMAGE", 422},
		{ErrNoFaceDetected, "NO_FACE_DETECTED", 422},
		{ErrDescriptorDimension, "DESCRIPTOR_DIMENSION", 500},
		{ErrModelUnavailable, "MODEL_UNAVAILABLE", 503},
		{ErrSourceUnavailable, "SOURCE_UNAVAILABLE", 503},
		{ErrSessionActive, "SESSION_ACTIVE", 409},
		{ErrNoActiveSession, "NO_ACTIVE_SESSION", 404},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
			if tt.err.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %v, want %v", tt.err.StatusCode, tt.statusCode)
			}
		})
	}
}
