package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/ai-dispatcher/services/providers"
	"go.uber.org/zap"
)

const providerName = "gemini"

func init() {
	providers.Register(providers.KindGemini, func(cfg providers.Config, opts providers.Options) (providers.Provider, error) {
		return NewAdapter(cfg, opts)
	})
}

// Adapter implements providers.Provider for Gemini.
// The model call blocks, so every Generate is handed to the offloader.
type Adapter struct {
	model     *GenerativeModel
	offloader providers.Offloader
	logger    *zap.Logger
}

// NewAdapter configures a client context and model handle for cfg
func NewAdapter(cfg providers.Config, opts providers.Options) (*Adapter, error) {
	if opts.Offloader == nil {
		return nil, errors.New("gemini adapter requires an offloader")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}

	client := Configure(cfg.APIKey,
		WithBaseURL(cfg.BaseURL),
		WithHTTPClient(opts.HTTPClientFor(cfg.HTTPTimeout)),
	)

	return &Adapter{
		model:     client.GenerativeModel(cfg.Model, cfg.SystemPrompt),
		offloader: opts.Offloader,
		logger:    opts.LoggerOrNop(),
	}, nil
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return providerName
}

type result struct {
	resp *GenerateContentResponse
	err  error
}

// Generate runs the blocking model call on the offloader and waits for it
func (a *Adapter) Generate(ctx context.Context, query string) (*providers.Response, error) {
	startTime := time.Now()
	results := make(chan result, 1)

	err := a.offloader.Run(ctx, func() {
		resp, err := a.model.GenerateContent(query)
		results <- result{resp: resp, err: err}
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, providers.NewGenerationError(providerName, "OFFLOAD_ERROR", "generation task failed", 0, err)
	}

	res := <-results
	if res.err != nil {
		return nil, a.toGenerationError(res.err)
	}

	text, err := res.resp.Text()
	if err != nil {
		return nil, providers.NewGenerationError(providerName, "EMPTY_RESPONSE", err.Error(), 0, nil)
	}

	a.logger.Debug("gemini generation completed",
		zap.String("model", a.model.Name()),
		zap.Duration("latency", time.Since(startTime)),
		zap.Int("output_tokens", res.resp.UsageMetadata.CandidatesTokenCount))

	return &providers.Response{
		Text:         text,
		Model:        a.model.Name(),
		PromptTokens: res.resp.UsageMetadata.PromptTokenCount,
		OutputTokens: res.resp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

func (a *Adapter) toGenerationError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return providers.NewGenerationError(providerName, apiErr.Status, apiErr.Message, apiErr.StatusCode, nil)
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return providers.NewGenerationError(providerName, "HTTP_ERROR", "HTTP request failed", 0, transportErr.Err)
	}

	return providers.NewGenerationError(providerName, "UNKNOWN_ERROR", fmt.Sprintf("gemini: %v", err), 0, nil)
}
