package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/ai-dispatcher/services/dispatcher"
	"github.com/upb/ai-dispatcher/utils"
	"go.uber.org/zap"
)

// StatusForDispatchError maps a dispatch failure to an HTTP status code
func StatusForDispatchError(err *dispatcher.DispatchError) int {
	if err == nil {
		return http.StatusOK
	}

	switch err.Kind {
	case dispatcher.KindNoQuery:
		return http.StatusBadRequest
	case dispatcher.KindNoAPIKey,
		dispatcher.KindInvalidProvider,
		dispatcher.KindMissingLibrary,
		dispatcher.KindProviderUninitialized:
		return http.StatusServiceUnavailable
	case dispatcher.KindGenerationError:
		if errors.Is(err, dispatcher.ErrGenerationTimeout) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleDispatchError writes the user-facing "Error: ..." message as a JSON error body
func HandleDispatchError(w http.ResponseWriter, err *dispatcher.DispatchError, requestID string, logger *zap.Logger) {
	if err == nil {
		return
	}

	status := StatusForDispatchError(err)
	if status >= http.StatusInternalServerError {
		logger.Warn("dispatch failed",
			zap.String("request_id", requestID),
			zap.String("kind", string(err.Kind)),
			zap.Error(err))
	}

	if writeErr := utils.WriteJSON(w, status, utils.ErrorResponse{
		Error:   string(err.Kind),
		Message: err.UserMessage(),
		Details: map[string]interface{}{"request_id": requestID},
	}); writeErr != nil {
		logger.Error("failed to write dispatch error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
