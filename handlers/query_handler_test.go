package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ai-dispatcher/services/dispatcher"
	"github.com/upb/ai-dispatcher/services/providers"
	"go.uber.org/zap"
)

type funcProvider struct {
	fn func(ctx context.Context, query string) (*providers.Response, error)
}

func (p *funcProvider) Name() string { return "gemini" }

func (p *funcProvider) Generate(ctx context.Context, query string) (*providers.Response, error) {
	return p.fn(ctx, query)
}

func answer(text string) func(ctx context.Context, query string) (*providers.Response, error) {
	return func(ctx context.Context, query string) (*providers.Response, error) {
		return &providers.Response{Text: text, Model: "gemini-1.5-flash"}, nil
	}
}

func newTestDispatcher(t *testing.T, provider providers.Provider, opts dispatcher.Options) *dispatcher.Dispatcher {
	t.Helper()
	registry := providers.NewRegistry()
	builder := func(cfg providers.Config, _ providers.Options) (providers.Provider, error) {
		return provider, nil
	}
	require.NoError(t, registry.Register(providers.KindGemini, builder))
	require.NoError(t, registry.Register(providers.KindOpenAI, builder))

	opts.Registry = registry
	opts.Logger = zap.NewNop()
	return dispatcher.New(opts)
}

func testConfig() providers.Config {
	return providers.Config{
		Provider: providers.KindGemini,
		APIKey:   "secret-api-key-123",
		Model:    "gemini-1.5-flash",
	}
}

func serveQuery(h *QueryHandler, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/query", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	chimw.RequestID(http.HandlerFunc(h.HandleQuery)).ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestHandleQuery_Inline(t *testing.T) {
	var seen string
	provider := &funcProvider{fn: func(ctx context.Context, query string) (*providers.Response, error) {
		seen = query
		return &providers.Response{Text: "Go is a language.", Model: "gemini-1.5-flash"}, nil
	}}
	d := newTestDispatcher(t, provider, dispatcher.Options{ProcessingNotice: "⌛ Processing request..."})
	require.NoError(t, d.Initialize(testConfig()))
	handler := NewQueryHandler(d, 0, zap.NewNop())

	t.Run("json body", func(t *testing.T) {
		w := serveQuery(handler, "application/json; charset=utf-8", `{"query":"What is Go?"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "What is Go?", seen)

		data := decodeData(t, w)
		assert.Equal(t, "inline", data["delivery"])
		assert.Equal(t, "Go is a language.", data["text"])
		assert.Equal(t, "gemini", data["provider"])
		assert.Equal(t, "gemini-1.5-flash", data["model"])
		assert.NotEmpty(t, data["request_id"])
		assert.Equal(t, []interface{}{"⌛ Processing request...", "Go is a language."}, data["messages"])
	})

	t.Run("plain text body", func(t *testing.T) {
		w := serveQuery(handler, "text/plain", "  explain channels  ")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "explain channels", seen)
	})
}

func TestHandleQuery_FileDelivery(t *testing.T) {
	long := strings.Repeat("a", dispatcher.DefaultDeliveryLimit+1)
	d := newTestDispatcher(t, &funcProvider{fn: answer(long)}, dispatcher.Options{})
	require.NoError(t, d.Initialize(testConfig()))
	handler := NewQueryHandler(d, 0, zap.NewNop())

	w := serveQuery(handler, "text/plain", "write a lot")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Disposition"), dispatcher.DefaultFileName)
	assert.Equal(t, long, w.Body.String())
}

func TestHandleQuery_Errors(t *testing.T) {
	tests := []struct {
		name        string
		config      providers.Config
		opts        dispatcher.Options
		fn          func(ctx context.Context, query string) (*providers.Response, error)
		contentType string
		body        string
		wantStatus  int
		wantKind    string
		wantMessage string
	}{
		{
			name:        "empty query",
			config:      testConfig(),
			fn:          answer("unused"),
			contentType: "application/json",
			body:        `{"query":"   "}`,
			wantStatus:  http.StatusBadRequest,
			wantKind:    "no_query",
			wantMessage: "Error: please provide a query",
		},
		{
			name:        "missing api key",
			config:      providers.Config{Provider: providers.KindGemini, Model: "gemini-1.5-flash"},
			fn:          answer("unused"),
			contentType: "text/plain",
			body:        "hello",
			wantStatus:  http.StatusServiceUnavailable,
			wantKind:    "no_api_key",
			wantMessage: "Error: API key for AI not configured",
		},
		{
			name:        "invalid provider",
			config:      providers.Config{Provider: "claude", APIKey: "secret-api-key-123"},
			fn:          answer("unused"),
			contentType: "text/plain",
			body:        "hello",
			wantStatus:  http.StatusServiceUnavailable,
			wantKind:    "invalid_provider",
		},
		{
			name:   "generation failure",
			config: testConfig(),
			fn: func(ctx context.Context, query string) (*providers.Response, error) {
				return nil, errors.New("quota exceeded")
			},
			contentType: "text/plain",
			body:        "hello",
			wantStatus:  http.StatusBadGateway,
			wantKind:    "generation_error",
			wantMessage: "Error: quota exceeded",
		},
		{
			name:   "generation timeout",
			config: testConfig(),
			opts:   dispatcher.Options{GenerationTimeout: 20 * time.Millisecond},
			fn: func(ctx context.Context, query string) (*providers.Response, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
			contentType: "text/plain",
			body:        "hello",
			wantStatus:  http.StatusGatewayTimeout,
			wantKind:    "generation_error",
			wantMessage: "Error: generation timed out after 20ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t, &funcProvider{fn: tt.fn}, tt.opts)
			_ = d.Initialize(tt.config)
			handler := NewQueryHandler(d, 0, zap.NewNop())

			w := serveQuery(handler, tt.contentType, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			response := decodeError(t, w)
			assert.Equal(t, tt.wantKind, response["error"])
			assert.True(t, strings.HasPrefix(response["message"].(string), "Error: "))
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, response["message"])
			}
			details := response["details"].(map[string]interface{})
			assert.NotEmpty(t, details["request_id"])
		})
	}
}

func TestHandleQuery_BadBodies(t *testing.T) {
	d := newTestDispatcher(t, &funcProvider{fn: answer("ok")}, dispatcher.Options{})
	require.NoError(t, d.Initialize(testConfig()))

	t.Run("malformed json", func(t *testing.T) {
		handler := NewQueryHandler(d, 0, zap.NewNop())
		w := serveQuery(handler, "application/json", `{"query":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeError(t, w)["error"])
	})

	t.Run("unknown field", func(t *testing.T) {
		handler := NewQueryHandler(d, 0, zap.NewNop())
		w := serveQuery(handler, "application/json", `{"query":"hi","provider":"openai"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("body too large", func(t *testing.T) {
		handler := NewQueryHandler(d, 16, zap.NewNop())
		w := serveQuery(handler, "text/plain", strings.Repeat("x", 64))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "payload_too_large", decodeError(t, w)["error"])
	})
}

func TestHTTPChannel_CancelledContext(t *testing.T) {
	ch := &httpChannel{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, ch.SendText(ctx, "x"), context.Canceled)
	assert.ErrorIs(t, ch.SendFile(ctx, []byte("x"), "f.txt"), context.Canceled)
	assert.Empty(t, ch.texts)
	assert.Nil(t, ch.file)
}
