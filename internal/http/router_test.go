package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/stripe-checkout/internal/catalog"
	"github.com/fjod/go_cart/stripe-checkout/internal/checkout"
	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
	"github.com/fjod/go_cart/stripe-checkout/internal/metrics"
	"github.com/fjod/go_cart/stripe-checkout/internal/payment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processorMock struct {
	mu     sync.Mutex
	params []payment.IntentParams
}

func (m *processorMock) CreatePaymentIntent(_ context.Context, p payment.IntentParams) (payment.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = append(m.params, p)
	return payment.Intent{ID: "pi_test", ClientSecret: "pi_test_secret_abc", Amount: p.Amount, Currency: p.Currency}, nil
}

func newTestRouter(t *testing.T, cfg RouterConfig) (http.Handler, *processorMock) {
	t.Helper()
	processor := &processorMock{}
	products := catalog.NewStaticProvider()
	svc := checkout.NewService(checkout.Config{PublishableKey: "pk_test_1"}, products, processor, nil, nil)
	reg := prometheus.NewRegistry()
	return NewRouter(cfg, products, svc, metrics.NewServerMetrics(reg, "api"), reg), processor
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{Development: true})
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get("X-Request-ID"))
}

func TestRouter_TamperedPriceUsesCatalog(t *testing.T) {
	router, processor := newTestRouter(t, RouterConfig{Development: true})
	body := `{"products":[{"id":"prod_2","price":1,"quantity":1}],
		"successUrl":"http://localhost:3000/checkout/success","cancelUrl":"http://localhost:3000/"}`
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/checkout/create-payment-intent", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, recorder.Code)
	var session domain.CheckoutSession
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&session))
	assert.Equal(t, int64(4999), session.Amount)
	assert.Equal(t, "pk_test_1", session.PublishableKey)
	require.Len(t, processor.params, 1)
	assert.Equal(t, int64(4999), processor.params[0].Amount)
}

func TestRouter_OversizedQuantityIs400(t *testing.T) {
	router, processor := newTestRouter(t, RouterConfig{Development: true})
	body := `{"products":[{"id":"prod_1","quantity":6920989522402283000}],
		"successUrl":"http://localhost:3000/checkout/success","cancelUrl":"http://localhost:3000/"}`
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/checkout/create-payment-intent", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Empty(t, processor.params)
}

func TestRouter_UnknownProductIs404(t *testing.T) {
	router, processor := newTestRouter(t, RouterConfig{Development: true})
	body := `{"products":[{"id":"prod_404","quantity":1}],
		"successUrl":"http://localhost:3000/checkout/success","cancelUrl":"http://localhost:3000/"}`
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/checkout/create-payment-intent", strings.NewReader(body)))

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Empty(t, processor.params)
}

func TestRouter_BodyTooLarge(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{Development: true, MaxRequestBodySize: 16})
	body := `{"products":[{"id":"prod_1","quantity":1}]}`
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/checkout/create-payment-intent", strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)
}

func TestRouter_CORS(t *testing.T) {
	tests := []struct {
		name   string
		cfg    RouterConfig
		origin string
		want   string
	}{
		{"development allows any origin", RouterConfig{Development: true}, "http://evil.example", "*"},
		{"production allows configured origin", RouterConfig{AllowedOrigins: []string{"http://localhost:3000"}}, "http://localhost:3000", "http://localhost:3000"},
		{"production rejects other origins", RouterConfig{AllowedOrigins: []string{"http://localhost:3000"}}, "http://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, tt.cfg)
			request := httptest.NewRequest(http.MethodGet, "/api/checkout/products", nil)
			request.Header.Set("Origin", tt.origin)
			recorder := httptest.NewRecorder()

			router.ServeHTTP(recorder, request)

			assert.Equal(t, http.StatusOK, recorder.Code)
			assert.Equal(t, tt.want, recorder.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{Development: true, RequestTimeout: time.Second})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/checkout/products", nil))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `shop_api_http_requests_total{handler="/api/checkout/products",status="200"} 1`)
}
