package providers

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidProvider is returned when the configured provider is not supported
	ErrInvalidProvider = errors.New("unsupported provider, choose 'gemini' or 'openai'")

	// ErrMissingLibrary is returned when a backend adapter is not linked into the binary
	ErrMissingLibrary = errors.New("provider library not available")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate backend
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// MissingLibraryError names the backend that was excluded from the build
type MissingLibraryError struct {
	Provider Kind
	BuildTag string
}

// Error implements the error interface
func (e *MissingLibraryError) Error() string {
	return fmt.Sprintf("library for %s not installed, rebuild without the %q build tag",
		e.Provider.DisplayName(), e.BuildTag)
}

// Is matches ErrMissingLibrary
func (e *MissingLibraryError) Is(target error) bool {
	return target == ErrMissingLibrary
}

// GenerationError represents a failed backend call.
// Message carries the backend's own wording, uninterpreted.
type GenerationError struct {
	// Provider that generated the error
	Provider string

	// Code is the backend error code or status (may be empty)
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// NewGenerationError creates a new generation error
func NewGenerationError(provider, code, message string, statusCode int, cause error) *GenerationError {
	return &GenerationError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// IsGenerationError checks if an error is a GenerationError
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}
