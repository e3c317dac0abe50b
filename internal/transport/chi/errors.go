package chi

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/songrec/internal/domain"
	"github.com/kailas-cloud/songrec/internal/logger"
)

// Error codes returned in the "error" field.
const (
	codeBadRequest        = "bad_request"
	codeValidation        = "validation_failed"
	codeNotFound          = "not_found"
	codeAlreadyExists     = "already_exists"
	codeUnauthorized      = "unauthorized"
	codeRateLimited       = "rate_limited"
	codeUpstream          = "upstream_unavailable"
	codeEmbeddingProvider = "embedding_provider_error"
	codeQueueFull         = "queue_full"
	codeProviderNotReady  = "provider_not_ready"
	codeStoreUnavailable  = "store_unavailable"
	codeInternal          = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// sentinelHandler matches a single sentinel and answers with its own message, never the wrapped chain.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidation),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, codeAlreadyExists),
		sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusBadGateway, codeUpstream),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrQueueFull, http.StatusServiceUnavailable, codeQueueFull),
		sentinelHandler(domain.ErrProviderNotReady, http.StatusServiceUnavailable, codeProviderNotReady),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable),
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("request failed", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: code, Detail: detail})
}
