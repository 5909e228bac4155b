package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/upb/ai-dispatcher/services/providers"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	providerName   = "openai"
)

func init() {
	providers.Register(providers.KindOpenAI, func(cfg providers.Config, opts providers.Options) (providers.Provider, error) {
		return NewOpenAIAdapter(cfg, opts)
	})
}

// OpenAIAdapter implements the Provider interface for OpenAI.
// The system prompt is kept on the adapter and sent with every call.
type OpenAIAdapter struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewOpenAIAdapter creates a new OpenAI adapter with its own HTTP client
func NewOpenAIAdapter(cfg providers.Config, opts providers.Options) (*OpenAIAdapter, error) {
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &OpenAIAdapter{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   opts.HTTPClientFor(cfg.HTTPTimeout),
		logger:       opts.LoggerOrNop(),
	}, nil
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return providerName
}

// BuildMessages returns the chat messages for one query: the system prompt
// first when it is non-empty, then the user query.
func BuildMessages(systemPrompt, query string) []providers.Message {
	messages := make([]providers.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: systemPrompt})
	}
	return append(messages, providers.Message{Role: providers.RoleUser, Content: query})
}

// Generate performs one chat completion request
func (a *OpenAIAdapter) Generate(ctx context.Context, query string) (*providers.Response, error) {
	startTime := time.Now()

	reqBody, err := json.Marshal(a.buildRequest(query))
	if err != nil {
		return nil, providers.NewGenerationError(a.Name(), "MARSHAL_ERROR", "Failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewGenerationError(a.Name(), "REQUEST_ERROR", "Failed to create request", 0, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, providers.NewGenerationError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewGenerationError(a.Name(), "READ_ERROR", "Failed to read response", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, providers.NewGenerationError(a.Name(), "UNMARSHAL_ERROR", "Failed to unmarshal response", httpResp.StatusCode, err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, providers.NewGenerationError(a.Name(), "EMPTY_RESPONSE", "response contained no choices", httpResp.StatusCode, nil)
	}

	content := chatResp.Choices[0].Message.Content
	if content == nil || *content == "" {
		return nil, providers.NewGenerationError(a.Name(), "EMPTY_RESPONSE", "response contained no text", httpResp.StatusCode, nil)
	}

	a.logger.Debug("openai generation completed",
		zap.String("model", chatResp.Model),
		zap.Duration("latency", time.Since(startTime)),
		zap.Int("completion_tokens", chatResp.Usage.CompletionTokens))

	model := chatResp.Model
	if model == "" {
		model = a.model
	}

	return &providers.Response{
		Text:         *content,
		Model:        model,
		PromptTokens: chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
	}, nil
}

func (a *OpenAIAdapter) buildRequest(query string) *ChatRequest {
	messages := BuildMessages(a.systemPrompt, query)

	req := &ChatRequest{
		Model:    a.model,
		Messages: make([]Message, len(messages)),
	}
	for i, msg := range messages {
		req.Messages[i] = Message{Role: msg.Role, Content: msg.Content}
	}
	return req
}

// handleErrorResponse handles OpenAI error responses
func (a *OpenAIAdapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewGenerationError(a.Name(), "UNKNOWN_ERROR", strings.TrimSpace(string(body)), statusCode, nil)
	}

	code := errResp.Error.Type
	if errResp.Error.Code != "" {
		code = errResp.Error.Code
	}

	return providers.NewGenerationError(a.Name(), code, errResp.Error.Message, statusCode, nil)
}
