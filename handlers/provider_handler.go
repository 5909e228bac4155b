package handlers

import (
	"net/http"
	"strconv"

	"github.com/upb/ai-dispatcher/middleware"
	"github.com/upb/ai-dispatcher/models"
	"github.com/upb/ai-dispatcher/repositories"
	"github.com/upb/ai-dispatcher/services/dispatcher"
	"github.com/upb/ai-dispatcher/services/providers"
	"github.com/upb/ai-dispatcher/utils"
	"go.uber.org/zap"
)

// DefaultDispatchListLimit is used when no ?limit= is given
const DefaultDispatchListLimit = 50

// ProviderAdmin exposes and replaces the active provider binding
type ProviderAdmin interface {
	Status() dispatcher.Status
	Reconfigure(update func(cfg providers.Config) providers.Config) error
}

// ProviderStatusResponse is the redacted view of the active binding
type ProviderStatusResponse struct {
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	SystemPrompt string   `json:"system_prompt"`
	APIKey       string   `json:"api_key"`
	BaseURL      string   `json:"base_url,omitempty"`
	Ready        bool     `json:"ready"`
	InitError    string   `json:"init_error,omitempty"`
	Registered   []string `json:"registered"`
}

// UpdateProviderRequest re-initializes the dispatcher.
// An omitted api_key keeps the stored credential.
type UpdateProviderRequest struct {
	Provider     string  `json:"provider" validate:"required,provider"`
	APIKey       string  `json:"api_key,omitempty"`
	Model        string  `json:"model,omitempty" validate:"omitempty,max=200"`
	SystemPrompt *string `json:"system_prompt,omitempty"`
	BaseURL      string  `json:"base_url,omitempty" validate:"omitempty,url"`
}

// DispatchListResponse lists recent audit records with totals per status
type DispatchListResponse struct {
	Records []*models.DispatchRecord         `json:"records"`
	Counts  map[models.DispatchStatus]int64 `json:"counts"`
}

// ProviderHandler handles the admin endpoints
type ProviderHandler struct {
	admin   ProviderAdmin
	records repositories.DispatchRecordRepository
	logger  *zap.Logger
}

// NewProviderHandler creates a new ProviderHandler. records may be nil when
// no database is configured.
func NewProviderHandler(admin ProviderAdmin, records repositories.DispatchRecordRepository, logger *zap.Logger) *ProviderHandler {
	return &ProviderHandler{
		admin:   admin,
		records: records,
		logger:  logger,
	}
}

// HandleGetProvider handles GET /api/v1/admin/provider
func (h *ProviderHandler) HandleGetProvider(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, newProviderStatusResponse(h.admin.Status())); err != nil {
		h.logger.Error("failed to write provider status", zap.Error(err))
	}
}

// HandleUpdateProvider handles PUT /api/v1/admin/provider
func (h *ProviderHandler) HandleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	var req UpdateProviderRequest
	if err := utils.DecodeJSON(r, &req, DefaultMaxQueryBytes); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	err := h.admin.Reconfigure(func(cfg providers.Config) providers.Config {
		kind, _ := providers.ParseKind(req.Provider)
		if kind != cfg.Provider {
			cfg.BaseURL = ""
		}
		cfg.Provider = kind
		if req.APIKey != "" {
			cfg.APIKey = req.APIKey
		}
		if req.Model != "" {
			cfg.Model = req.Model
		}
		if req.SystemPrompt != nil {
			cfg.SystemPrompt = *req.SystemPrompt
		}
		if req.BaseURL != "" {
			cfg.BaseURL = req.BaseURL
		}
		return cfg
	})

	subject := ""
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		subject = claims.Sub
	}
	h.logger.Info("provider reconfigured",
		zap.String("request_id", requestID),
		zap.String("subject", subject),
		zap.String("provider", req.Provider),
		zap.Bool("ready", err == nil))

	status := newProviderStatusResponse(h.admin.Status())
	if err != nil {
		code := http.StatusServiceUnavailable
		switch dispatcher.KindOf(err) {
		case dispatcher.KindNoAPIKey, dispatcher.KindInvalidProvider:
			code = http.StatusBadRequest
		}
		_ = utils.WriteJSON(w, code, utils.ErrorResponse{
			Error:   string(dispatcher.KindOf(err)),
			Message: err.Error(),
			Details: map[string]interface{}{"provider": status},
		})
		return
	}

	if err := utils.WriteOK(w, status); err != nil {
		h.logger.Error("failed to write provider status", zap.Error(err))
	}
}

// HandleListDispatches handles GET /api/v1/admin/dispatches
func (h *ProviderHandler) HandleListDispatches(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		_ = utils.WriteNotFound(w, "dispatch audit disabled")
		return
	}

	limit := DefaultDispatchListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			_ = utils.WriteBadRequest(w, "limit must be a positive integer", map[string]interface{}{"limit": raw})
			return
		}
		limit = parsed
	}

	ctx := r.Context()
	records, err := h.records.ListRecent(ctx, limit)
	if err != nil {
		h.logger.Error("failed to list dispatch records", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	counts, err := h.records.CountByStatus(ctx)
	if err != nil {
		h.logger.Error("failed to count dispatch records", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	if err := utils.WriteOK(w, DispatchListResponse{Records: records, Counts: counts}); err != nil {
		h.logger.Error("failed to write dispatch list", zap.Error(err))
	}
}

func newProviderStatusResponse(s dispatcher.Status) ProviderStatusResponse {
	registered := make([]string, 0, len(s.Registered))
	for _, kind := range s.Registered {
		registered = append(registered, string(kind))
	}
	return ProviderStatusResponse{
		Provider:     string(s.Config.Provider),
		Model:        s.Config.Model,
		SystemPrompt: s.Config.SystemPrompt,
		APIKey:       s.Config.APIKey,
		BaseURL:      s.Config.BaseURL,
		Ready:        s.Ready,
		InitError:    s.InitError,
		Registered:   registered,
	}
}
