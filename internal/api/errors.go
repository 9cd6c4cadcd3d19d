package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lexiqai/assist-gateway/internal/capability"
	"github.com/lexiqai/assist-gateway/internal/observability"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind capability.Kind) int {
	switch kind {
	case capability.KindValidation, capability.KindUnsupported:
		return http.StatusBadRequest
	case capability.KindDisabled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: "Internal server error", Details: err.Error()}
	status := http.StatusInternalServerError

	var capErr *capability.Error
	if errors.As(err, &capErr) {
		status = StatusFor(capErr.Kind)
		resp = ErrorResponse{Error: capErr.Message, Details: capErr.Details()}
	}

	logger := observability.LoggerFromContext(r.Context())
	if capability.IsClientError(err) {
		logger.Debug().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request rejected")
	} else {
		logger.Error().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
