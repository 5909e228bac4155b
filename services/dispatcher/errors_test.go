package dispatcher

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/upb/ai-dispatcher/services/providers"
)

func TestDispatchError(t *testing.T) {
	err := newDispatchError(KindNoQuery, ErrNoQuery)

	assert.Equal(t, "no_query: please provide a query", err.Error())
	assert.Equal(t, "Error: please provide a query", err.UserMessage())
	assert.ErrorIs(t, err, ErrNoQuery)
	assert.ErrorIs(t, err, &DispatchError{Kind: KindNoQuery})
	assert.NotErrorIs(t, err, &DispatchError{Kind: KindNoAPIKey})
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", newDispatchError(KindGenerationError, errors.New("boom")))

	assert.Equal(t, KindGenerationError, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestClassifyInitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"no key", ErrNoAPIKey, KindNoAPIKey},
		{"invalid provider", fmt.Errorf("%w: %q", providers.ErrInvalidProvider, "claude"), KindInvalidProvider},
		{"missing library", &providers.MissingLibraryError{Provider: providers.KindOpenAI, BuildTag: "noopenai"}, KindMissingLibrary},
		{"builder failure", errors.New("model is required"), KindProviderUninitialized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyInitError(tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyInitError_InvalidProviderDetail(t *testing.T) {
	got := classifyInitError(fmt.Errorf("%w: %q", providers.ErrInvalidProvider, "claude"))
	assert.Equal(t, "Error: unsupported provider, choose 'gemini' or 'openai'", got.UserMessage())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "calling", StateCalling.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, StateDelivered.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateShaping.Terminal())
}
