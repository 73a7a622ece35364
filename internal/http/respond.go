package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
	"github.com/fjod/go_cart/stripe-checkout/internal/payment"
	"github.com/go-chi/chi/v5/middleware"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps the domain error taxonomy onto HTTP statuses.
// Upstream and internal details are logged, never returned.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *domain.UpstreamError
	isUpstream := errors.As(err, &upstream)

	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Code:    "invalid_argument",
			Details: err.Error(),
		})
		return
	case errors.Is(err, domain.ErrNotFound):
		respondJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not found",
			Code:    "not_found",
			Details: err.Error(),
		})
		return
	}

	log.Printf("request %s failed: %v", getRequestID(r.Context()), err)

	switch {
	case errors.Is(err, payment.ErrCircuitOpen):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "payment processor temporarily unavailable")
	case (isUpstream && upstream.Timeout) || errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "upstream request timed out")
	case isUpstream:
		respondError(w, http.StatusBadGateway, "upstream_error", "payment processor request failed")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func getRequestID(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}
