package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Kind identifies a supported LLM backend
type Kind string

const (
	// KindGemini is the synchronous-generation backend
	KindGemini Kind = "gemini"

	// KindOpenAI is the natively asynchronous chat-completions backend
	KindOpenAI Kind = "openai"
)

// Kinds returns every backend the dispatcher knows how to drive
func Kinds() []Kind {
	return []Kind{KindGemini, KindOpenAI}
}

// Valid reports whether k is one of the recognized backends
func (k Kind) Valid() bool {
	return k == KindGemini || k == KindOpenAI
}

// DisplayName returns the human-readable backend name
func (k Kind) DisplayName() string {
	switch k {
	case KindGemini:
		return "Gemini"
	case KindOpenAI:
		return "OpenAI"
	default:
		return string(k)
	}
}

// ParseKind normalizes a configured provider name.
// Unknown names are returned as-is together with ErrInvalidProvider.
func ParseKind(name string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(name)))
	if !kind.Valid() {
		return kind, fmt.Errorf("%w: %q", ErrInvalidProvider, name)
	}
	return kind, nil
}

// Provider is the one capability every backend adapter exposes
type Provider interface {
	// Name returns the backend name (e.g., "gemini", "openai")
	Name() string

	// Generate sends one stateless query and returns the generated text
	Generate(ctx context.Context, query string) (*Response, error)
}

// Response is the result of a single generation call
type Response struct {
	Text         string
	Model        string
	PromptTokens int
	OutputTokens int
}

// Message represents a single chat message sent to a backend
type Message struct {
	// Role can be "system" or "user"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Config selects and parameterizes one backend binding.
// It is immutable once handed to Initialize.
type Config struct {
	Provider     Kind
	APIKey       string
	Model        string
	SystemPrompt string

	// BaseURL overrides the backend endpoint (optional)
	BaseURL string

	// HTTPTimeout bounds a single HTTP exchange with the backend
	HTTPTimeout time.Duration
}

// HasAPIKey reports whether a credential is configured
func (c Config) HasAPIKey() bool {
	return c.APIKey != ""
}

// Redacted returns a copy safe to log or expose over the admin API
func (c Config) Redacted() Config {
	if c.APIKey != "" {
		c.APIKey = redactKey(c.APIKey)
	}
	return c
}

func redactKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// Offloader runs blocking work away from the calling goroutine and waits for it
type Offloader interface {
	Run(ctx context.Context, task func()) error
}

// Options carries the runtime collaborators shared by all adapters
type Options struct {
	// Offloader executes blocking backend calls (required by gemini)
	Offloader Offloader

	// HTTPClient overrides the transport (optional)
	HTTPClient *http.Client

	Logger *zap.Logger
}

// HTTPClientFor returns the configured client or a new one bounded by timeout
func (o Options) HTTPClientFor(timeout time.Duration) *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// LoggerOrNop returns the configured logger or a no-op logger
func (o Options) LoggerOrNop() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

// DefaultHTTPTimeout bounds backend exchanges when no timeout is configured
const DefaultHTTPTimeout = 120 * time.Second
