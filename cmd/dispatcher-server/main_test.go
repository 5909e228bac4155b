package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ai-dispatcher/app"
	"github.com/upb/ai-dispatcher/config"
	"github.com/upb/ai-dispatcher/routes"
	"github.com/upb/ai-dispatcher/services/providers"
	"go.uber.org/zap/zaptest"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			AllowedOrigins:  []string{"http://localhost:*"},
		},
		AI: config.AIConfig{
			Provider: config.DefaultProvider,
			Model:    config.DefaultModel,
		},
		Dispatch: config.DispatchConfig{
			DeliveryLimit:    config.DefaultDeliveryLimit,
			ResponseFileName: config.DefaultResponseFileName,
			Workers:          1,
			QueueSize:        1,
		},
		Auth: config.AuthConfig{AdminRole: "admin"},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}

func TestInitLogger(t *testing.T) {
	t.Run("json logger", func(t *testing.T) {
		logger, err := initLogger(testConfig())
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := testConfig()
		cfg.Observability.LogLevel = "invalid"

		logger, err := initLogger(cfg)
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestNewServer(t *testing.T) {
	cfg := testConfig()
	srv := newServer(cfg, http.NotFoundHandler())

	assert.Equal(t, "localhost:8080", srv.Addr)
	assert.Equal(t, 30*time.Second, srv.ReadTimeout)
	assert.Equal(t, 30*time.Second, srv.WriteTimeout)
}

func TestApplicationStartup(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	deps, err := app.NewDependencies(ctx, testConfig(), logger, app.WithRegistry(providers.NewRegistry()))
	require.NoError(t, err)
	defer func() { _ = deps.Close(ctx) }()

	ts := httptest.NewServer(routes.SetupRoutes(deps))
	defer ts.Close()

	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"health check", http.MethodGet, "/healthz", http.StatusOK},
		{"not ready without api key", http.MethodGet, "/readyz", http.StatusServiceUnavailable},
		{"empty query", http.MethodPost, "/api/v1/ai/query", http.StatusBadRequest},
		{"admin provider unauthenticated", http.MethodGet, "/api/v1/admin/provider", http.StatusUnauthorized},
		{"admin dispatches unauthenticated", http.MethodGet, "/api/v1/admin/dispatches", http.StatusUnauthorized},
		{"metrics disabled", http.MethodGet, "/metrics", http.StatusNotFound},
		{"not found", http.MethodGet, "/api/v1/nonexistent", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, ts.URL+tc.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "endpoint: %s %s", tc.method, tc.path)
		})
	}

	t.Run("CORS preflight", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/ai/query", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	})
}
