package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	apiKeyHeader   = "x-goog-api-key"
)

// ClientContext holds the credential and transport shared by every model
// created from it.
type ClientContext struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ClientOption customizes a ClientContext
type ClientOption func(*ClientContext)

// WithBaseURL overrides the API endpoint
func WithBaseURL(baseURL string) ClientOption {
	return func(c *ClientContext) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *ClientContext) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Configure binds a credential to a new client context
func Configure(apiKey string, opts ...ClientOption) *ClientContext {
	c := &ClientContext{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerativeModel is a model handle with its system instruction baked in
type GenerativeModel struct {
	client            *ClientContext
	name              string
	systemInstruction string
}

// GenerativeModel creates a model handle
func (c *ClientContext) GenerativeModel(name, systemInstruction string) *GenerativeModel {
	return &GenerativeModel{
		client:            c,
		name:              name,
		systemInstruction: systemInstruction,
	}
}

// Name returns the model identifier
func (m *GenerativeModel) Name() string {
	return m.name
}

// GenerateContent sends prompt and blocks until the backend answers or the
// HTTP client's timeout elapses. It takes no context.
func (m *GenerativeModel) GenerateContent(prompt string) (*GenerateContentResponse, error) {
	body := generateContentRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
	}
	if m.systemInstruction != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: m.systemInstruction}}}
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", m.client.baseURL, url.PathEscape(m.name))

	httpReq, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, m.client.apiKey)

	httpResp, err := m.client.httpClient.Do(httpReq)
	if err != nil {
		// url.Error text carries the request URL
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &TransportError{Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, newAPIError(httpResp.StatusCode, respBody)
	}

	var resp GenerateContentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &resp, nil
}

// GenerateContentResponse is the generateContent response body
type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  UsageMetadata   `json:"usageMetadata"`
	ModelVersion   string          `json:"modelVersion,omitempty"`
}

// Candidate is one generated answer
type Candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// PromptFeedback explains why a prompt produced no candidates
type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// UsageMetadata reports token counts
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

// Text returns the concatenated text parts of the first candidate
func (r *GenerateContentResponse) Text() (string, error) {
	if len(r.Candidates) == 0 {
		if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("response was blocked: %s", r.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("response contained no candidates")
	}

	candidate := r.Candidates[0]
	var sb strings.Builder
	for _, p := range candidate.Content.Parts {
		sb.WriteString(p.Text)
	}

	if sb.Len() == 0 {
		if candidate.FinishReason != "" {
			return "", fmt.Errorf("response contained no text (finish reason: %s)", candidate.FinishReason)
		}
		return "", fmt.Errorf("response contained no text")
	}

	return sb.String(), nil
}

// APIError is an error reported by the Gemini API
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func newAPIError(statusCode int, body []byte) *APIError {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{
		StatusCode: statusCode,
		Status:     errResp.Error.Status,
		Message:    errResp.Error.Message,
	}
}

// TransportError wraps a network failure
type TransportError struct {
	Err error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return "request failed: " + e.Err.Error()
}

// Unwrap implements error unwrapping
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Gemini-specific wire types

type generateContentRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
