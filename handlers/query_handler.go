package handlers

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"sync"

	"github.com/upb/ai-dispatcher/middleware"
	"github.com/upb/ai-dispatcher/services/dispatcher"
	"github.com/upb/ai-dispatcher/utils"
	"go.uber.org/zap"
)

// DefaultMaxQueryBytes bounds the request body of a query
const DefaultMaxQueryBytes int64 = 1 << 20

// QueryRequest is the JSON form of a query
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is returned when the answer is delivered inline
type QueryResponse struct {
	RequestID string   `json:"request_id"`
	Delivery  string   `json:"delivery"`
	Text      string   `json:"text"`
	Messages  []string `json:"messages"`
	Provider  string   `json:"provider"`
	Model     string   `json:"model,omitempty"`
}

// QueryDispatcher answers one query over a delivery channel
type QueryDispatcher interface {
	HandleQuery(ctx context.Context, rawText string, ch dispatcher.Channel) *dispatcher.Outcome
}

// QueryHandler exposes the dispatcher over HTTP
type QueryHandler struct {
	dispatcher   QueryDispatcher
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewQueryHandler creates a new QueryHandler
func NewQueryHandler(d QueryDispatcher, maxBodyBytes int64, logger *zap.Logger) *QueryHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxQueryBytes
	}
	return &QueryHandler{
		dispatcher:   d,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// HandleQuery handles POST /api/v1/ai/query
// Accepts either {"query": "..."} or a text/plain body. Emptiness is left
// to the dispatcher so the response carries its error message.
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.WithDispatchRequestID(r.Context())
	requestID := middleware.GetRequestIDFromContext(ctx)

	query, err := h.readQuery(r)
	if err != nil {
		h.logger.Warn("failed to read query body",
			zap.String("request_id", requestID),
			zap.Error(err))
		if errors.Is(err, utils.ErrBodyTooLarge) {
			_ = utils.WriteJSON(w, http.StatusRequestEntityTooLarge, utils.ErrorResponse{
				Error:   "payload_too_large",
				Message: err.Error(),
			})
			return
		}
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	ch := &httpChannel{}
	out := h.dispatcher.HandleQuery(ctx, query, ch)

	if out.Err != nil {
		HandleDispatchError(w, out.Err, out.RequestID, h.logger)
		return
	}

	if out.DeliveryErr != nil {
		h.logger.Error("failed to deliver response",
			zap.String("request_id", out.RequestID),
			zap.Error(out.DeliveryErr))
		_ = utils.WriteInternalServerError(w, "failed to deliver response")
		return
	}

	if ch.file != nil {
		if err := utils.WriteAttachment(w, ch.file.Name, ch.file.Data); err != nil {
			h.logger.Error("failed to write attachment", zap.Error(err))
		}
		return
	}

	response := QueryResponse{
		RequestID: out.RequestID,
		Delivery:  string(dispatcher.FormInline),
		Messages:  ch.texts,
		Provider:  out.Provider,
		Model:     out.Model,
	}
	if out.Delivery != nil {
		response.Text = out.Delivery.Text
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write query response", zap.Error(err))
	}
}

func (h *QueryHandler) readQuery(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return utils.ReadText(r, h.maxBodyBytes)
	}

	var req QueryRequest
	if err := utils.DecodeJSON(r, &req, h.maxBodyBytes); err != nil {
		return "", err
	}
	return req.Query, nil
}

// httpChannel buffers what the dispatcher sends until the response is written
type httpChannel struct {
	mu    sync.Mutex
	texts []string
	file  *dispatcher.Attachment
}

func (c *httpChannel) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *httpChannel) SendFile(ctx context.Context, data []byte, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = &dispatcher.Attachment{Name: filename, Data: data}
	return nil
}
