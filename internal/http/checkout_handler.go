package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
)

const idempotencyKeyHeader = "Idempotency-Key"

// SessionCreator is implemented by checkout.Service.
type SessionCreator interface {
	CreateSession(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error)
}

type CheckoutHandler struct {
	sessions SessionCreator
	timeout  time.Duration
}

func NewCheckoutHandler(sessions SessionCreator, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		timeout:  timeout,
	}
}

// CartItemDTO is one cart line as the storefront sends it. Only id and
// quantity are used, price is accepted for compatibility and ignored.
type CartItemDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Price    int64  `json:"price,omitempty"`
	Quantity int    `json:"quantity"`
}

type CreatePaymentIntentRequestDTO struct {
	Products   []CartItemDTO `json:"products"`
	SuccessURL string        `json:"successUrl"`
	CancelURL  string        `json:"cancelUrl"`
}

// POST /api/checkout/create-payment-intent
func (h *CheckoutHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreatePaymentIntentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	items := make([]domain.LineItem, len(req.Products))
	for i, p := range req.Products {
		items[i] = domain.LineItem{
			Product:  domain.Product{ID: p.ID, Name: p.Name, Price: p.Price},
			Quantity: p.Quantity,
		}
	}

	session, err := h.sessions.CreateSession(ctx, domain.CheckoutRequest{
		Items:          items,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}
