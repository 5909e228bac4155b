package dispatcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ai-dispatcher/services/providers"
	"github.com/upb/ai-dispatcher/services/providers/gemini"
	"github.com/upb/ai-dispatcher/services/workerpool"
	"go.uber.org/zap"
)

func TestHandleQuery_GeminiTimeoutKeepsKeyOutOfErrorLine(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	pool := workerpool.New(workerpool.Config{Workers: 1, QueueSize: 4}, zap.NewNop())
	require.NoError(t, pool.Start())
	defer func() { _ = pool.Stop(5 * time.Second) }()

	registry := providers.NewRegistry()
	require.NoError(t, registry.Register(providers.KindGemini, func(cfg providers.Config, opts providers.Options) (providers.Provider, error) {
		return gemini.NewAdapter(cfg, opts)
	}))

	d := New(Options{Registry: registry, Offloader: pool, Logger: zap.NewNop()})
	require.NoError(t, d.Initialize(providers.Config{
		Provider:    providers.KindGemini,
		APIKey:      "SUPERSECRETKEY123",
		Model:       "m",
		BaseURL:     server.URL,
		HTTPTimeout: 50 * time.Millisecond,
	}))

	ch := &fakeChannel{}
	out := d.HandleQuery(context.Background(), "hi", ch)

	require.NotNil(t, out.Err)
	assert.Equal(t, KindGenerationError, out.Err.Kind)
	require.Len(t, ch.texts, 1)
	assert.Contains(t, ch.texts[0], "Error: ")
	assert.NotContains(t, ch.texts[0], "SUPERSECRETKEY123")
	assert.NotContains(t, ch.texts[0], server.URL)
}
