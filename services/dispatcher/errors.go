package dispatcher

import (
	"errors"
	"fmt"

	"github.com/upb/ai-dispatcher/services/providers"
)

// ErrorKind categorizes why a dispatch failed
type ErrorKind string

const (
	KindNoQuery               ErrorKind = "no_query"
	KindNoAPIKey              ErrorKind = "no_api_key"
	KindInvalidProvider       ErrorKind = "invalid_provider"
	KindMissingLibrary        ErrorKind = "missing_library"
	KindProviderUninitialized ErrorKind = "provider_uninitialized"
	KindGenerationError       ErrorKind = "generation_error"
)

var (
	// ErrNoQuery is returned when the query is empty after trimming
	ErrNoQuery = errors.New("please provide a query")

	// ErrNoAPIKey is returned when no credential is configured
	ErrNoAPIKey = errors.New("API key for AI not configured")

	// ErrProviderUninitialized is returned when no adapter handle is bound
	ErrProviderUninitialized = errors.New("AI provider not initialized")

	// ErrGenerationTimeout is returned when the generation deadline passes
	ErrGenerationTimeout = errors.New("generation timed out")
)

// DispatchError is the single failure reported for one call.
// Detail is the text shown to the user after the "Error: " prefix.
type DispatchError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

// Error implements the error interface
func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap implements errors.Unwrap
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Is matches another *DispatchError of the same kind
func (e *DispatchError) Is(target error) bool {
	t, ok := target.(*DispatchError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// UserMessage is the chat line sent for this failure
func (e *DispatchError) UserMessage() string {
	return "Error: " + e.Detail
}

func newDispatchError(kind ErrorKind, err error) *DispatchError {
	return &DispatchError{Kind: kind, Detail: err.Error(), Err: err}
}

// KindOf returns the ErrorKind carried by err, or "" when err is not a dispatch failure
func KindOf(err error) ErrorKind {
	var dispatchErr *DispatchError
	if errors.As(err, &dispatchErr) {
		return dispatchErr.Kind
	}
	return ""
}

// classifyInitError maps an initialization failure onto the dispatch taxonomy
func classifyInitError(err error) *DispatchError {
	switch {
	case errors.Is(err, ErrNoAPIKey):
		return newDispatchError(KindNoAPIKey, err)
	case errors.Is(err, providers.ErrInvalidProvider):
		return &DispatchError{Kind: KindInvalidProvider, Detail: providers.ErrInvalidProvider.Error(), Err: err}
	case errors.Is(err, providers.ErrMissingLibrary):
		return newDispatchError(KindMissingLibrary, err)
	default:
		return newDispatchError(KindProviderUninitialized, err)
	}
}
