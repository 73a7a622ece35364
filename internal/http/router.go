package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/stripe-checkout/internal/catalog"
	"github.com/fjod/go_cart/stripe-checkout/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Development        bool
	AllowedOrigins     []string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewRouter wires the checkout API. m and gatherer are optional.
func NewRouter(cfg RouterConfig, products catalog.Provider, sessions SessionCreator, m *metrics.ServerMetrics, gatherer prometheus.Gatherer) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	productHandler := NewProductHandler(products, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(sessions, cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Use(CORSMiddleware(cfg.Development, cfg.AllowedOrigins))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(BodyLimitMiddleware(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Handle("/metrics", metrics.Handler(gatherer))
	}

	r.Route("/api/checkout", func(r chi.Router) {
		r.Get("/products", productHandler.List)
		r.Post("/create-payment-intent", checkoutHandler.CreatePaymentIntent)
	})

	return otelhttp.NewHandler(r, "checkout-api")
}
