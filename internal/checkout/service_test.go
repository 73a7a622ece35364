package checkout

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/fjod/go_cart/stripe-checkout/internal/catalog"
	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
	"github.com/fjod/go_cart/stripe-checkout/internal/events"
	"github.com/fjod/go_cart/stripe-checkout/internal/metrics"
	"github.com/fjod/go_cart/stripe-checkout/internal/payment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProcessor records every intent request it receives.
type mockProcessor struct {
	mu     sync.Mutex
	calls  []payment.IntentParams
	intent payment.Intent
	err    error
}

func (m *mockProcessor) CreatePaymentIntent(_ context.Context, params payment.IntentParams) (payment.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, params)
	return m.intent, m.err
}

type mockPublisher struct {
	keys   []string
	events []any
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, key string, event any) error {
	m.keys = append(m.keys, key)
	m.events = append(m.events, event)
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

type failingProvider struct{}

func (failingProvider) ListProducts(context.Context) ([]domain.Product, error) {
	return nil, errors.New("database is locked")
}

func (failingProvider) GetProduct(context.Context, string) (domain.Product, error) {
	return domain.Product{}, errors.New("database is locked")
}

func newTestService(processor *mockProcessor, publisher *mockPublisher) *Service {
	return NewService(Config{PublishableKey: "pk_test_123"}, catalog.NewStaticProvider(), processor, publisher, nil)
}

func line(id string, price int64, quantity int) domain.LineItem {
	return domain.LineItem{Product: domain.Product{ID: id, Price: price}, Quantity: quantity}
}

func validRequest(items ...domain.LineItem) domain.CheckoutRequest {
	return domain.CheckoutRequest{
		Items:      items,
		SuccessURL: "http://localhost:3000/checkout/success",
		CancelURL:  "http://localhost:3000/",
	}
}

func TestCreateSession_TwoShirtsAndCap(t *testing.T) {
	processor := &mockProcessor{intent: payment.Intent{ID: "pi_123", ClientSecret: "pi_123_secret_abc"}}
	publisher := &mockPublisher{}
	svc := newTestService(processor, publisher)

	req := validRequest(line("prod_1", 1999, 2), line("prod_3", 1499, 1))
	req.IdempotencyKey = "key-1"

	session, err := svc.CreateSession(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutSession{
		ClientSecret:   "pi_123_secret_abc",
		PublishableKey: "pk_test_123",
		SessionID:      "pi_123",
		Amount:         5497,
		Currency:       "usd",
	}, session)

	require.Len(t, processor.calls, 1)
	call := processor.calls[0]
	assert.Equal(t, int64(5497), call.Amount)
	assert.Equal(t, "usd", call.Currency)
	assert.Equal(t, []string{"klarna"}, call.PaymentMethodTypes)
	assert.Equal(t, map[string]string{"integration_check": "klarna_payment_element"}, call.Metadata)
	assert.Equal(t, "key-1", call.IdempotencyKey)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "pi_123", publisher.keys[0])
}

func TestCreateSession_IgnoresClientPrices(t *testing.T) {
	processor := &mockProcessor{intent: payment.Intent{ID: "pi_1", ClientSecret: "s"}}
	svc := newTestService(processor, &mockPublisher{})

	session, err := svc.CreateSession(context.Background(), validRequest(line("prod_2", 1, 1)))

	require.NoError(t, err)
	assert.Equal(t, int64(4999), session.Amount)
	assert.Equal(t, int64(4999), processor.calls[0].Amount)
}

func TestCreateSession_MergesDuplicateIDs(t *testing.T) {
	processor := &mockProcessor{intent: payment.Intent{ID: "pi_1", ClientSecret: "s"}}
	publisher := &mockPublisher{}
	svc := newTestService(processor, publisher)

	session, err := svc.CreateSession(context.Background(), validRequest(line("prod_1", 0, 1), line("prod_1", 0, 1), line("prod_3", 0, 1)))

	require.NoError(t, err)
	assert.Equal(t, int64(5497), session.Amount)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, 2, publisher.events[0].(events.PaymentIntentCreated).ItemCount)
}

func TestCreateSession_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		req      domain.CheckoutRequest
		expected error
	}{
		{"empty cart", validRequest(), ErrEmptyCart},
		{"zero quantity", validRequest(line("prod_1", 1999, 0)), ErrInvalidQuantity},
		{"relative success url", domain.CheckoutRequest{Items: []domain.LineItem{line("prod_1", 0, 1)}, SuccessURL: "/checkout/success", CancelURL: "http://localhost:3000/"}, ErrInvalidReturnURL},
		{"bad cancel scheme", domain.CheckoutRequest{Items: []domain.LineItem{line("prod_1", 0, 1)}, SuccessURL: "http://localhost:3000/ok", CancelURL: "javascript:alert(1)"}, ErrInvalidReturnURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &mockProcessor{}
			svc := newTestService(processor, &mockPublisher{})

			_, err := svc.CreateSession(context.Background(), tt.req)

			assert.ErrorIs(t, err, tt.expected)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			assert.Empty(t, processor.calls)
		})
	}
}

func TestCreateSession_QuantityThatWouldWrapTotal(t *testing.T) {
	processor := &mockProcessor{intent: payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}}
	svc := newTestService(processor, &mockPublisher{})

	// 1999 * 6920989522402283000 wraps int64 to a small positive amount.
	_, err := svc.CreateSession(context.Background(), validRequest(line("prod_1", 0, 6920989522402283000)))

	assert.ErrorIs(t, err, ErrQuantityTooLarge)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Empty(t, processor.calls)
}

func TestCreateSession_MergedQuantityCapped(t *testing.T) {
	tests := []struct {
		name  string
		items []domain.LineItem
	}{
		{"just over the cap", []domain.LineItem{line("prod_1", 0, MaxLineQuantity), line("prod_1", 0, 1)}},
		{"each line over the cap", []domain.LineItem{line("prod_1", 0, math.MaxInt), line("prod_1", 0, math.MaxInt)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &mockProcessor{}
			svc := newTestService(processor, &mockPublisher{})

			_, err := svc.CreateSession(context.Background(), validRequest(tt.items...))

			assert.ErrorIs(t, err, ErrQuantityTooLarge)
			assert.Empty(t, processor.calls)
		})
	}
}

func TestCreateSession_MaxQuantityAccepted(t *testing.T) {
	processor := &mockProcessor{intent: payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}}
	svc := newTestService(processor, &mockPublisher{})

	session, err := svc.CreateSession(context.Background(), validRequest(line("prod_1", 0, MaxLineQuantity)))

	require.NoError(t, err)
	assert.Equal(t, int64(1999*MaxLineQuantity), session.Amount)
}

func TestCreateSession_TotalOverflowRejected(t *testing.T) {
	products := catalog.NewStaticProvider(
		domain.Product{ID: "gold", Price: math.MaxInt64 / 2, Currency: "usd"},
		domain.Product{ID: "bar", Price: math.MaxInt64 / 4, Currency: "usd"},
	)
	tests := []struct {
		name  string
		items []domain.LineItem
	}{
		{"multiply", []domain.LineItem{line("gold", 0, 3)}},
		{"running sum", []domain.LineItem{line("gold", 0, 1), line("bar", 0, 3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &mockProcessor{}
			svc := NewService(Config{}, products, processor, nil, nil)

			_, err := svc.CreateSession(context.Background(), validRequest(tt.items...))

			assert.ErrorIs(t, err, ErrTotalOverflow)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			assert.Empty(t, processor.calls)
		})
	}
}

func TestCreateSession_UnknownProduct(t *testing.T) {
	processor := &mockProcessor{}
	svc := newTestService(processor, &mockPublisher{})

	_, err := svc.CreateSession(context.Background(), validRequest(line("prod_99", 100, 1)))

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, processor.calls)
}

func TestCreateSession_CurrencyMismatch(t *testing.T) {
	products := catalog.NewStaticProvider(domain.Product{ID: "eu_1", Price: 1000, Currency: "eur"})
	processor := &mockProcessor{}
	svc := NewService(Config{Currency: "usd"}, products, processor, nil, nil)

	_, err := svc.CreateSession(context.Background(), validRequest(line("eu_1", 0, 1)))

	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	assert.Empty(t, processor.calls)
}

func TestCreateSession_FreeProductsRejected(t *testing.T) {
	products := catalog.NewStaticProvider(domain.Product{ID: "free", Price: 0, Currency: "usd"})
	svc := NewService(Config{}, products, &mockProcessor{}, nil, nil)

	_, err := svc.CreateSession(context.Background(), validRequest(line("free", 0, 3)))

	assert.ErrorIs(t, err, ErrNonPositiveTotal)
}

func TestCreateSession_CatalogUnavailable(t *testing.T) {
	svc := NewService(Config{}, failingProvider{}, &mockProcessor{}, nil, nil)

	_, err := svc.CreateSession(context.Background(), validRequest(line("prod_1", 0, 1)))

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestCreateSession_ProcessorErrorIsUpstream(t *testing.T) {
	cause := errors.New("connection reset by peer")
	svc := newTestService(&mockProcessor{err: cause}, &mockPublisher{})

	_, err := svc.CreateSession(context.Background(), validRequest(line("prod_1", 0, 1)))

	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.ErrorIs(t, err, cause)
}

func TestCreateSession_PublishFailureIsNotFatal(t *testing.T) {
	publisher := &mockPublisher{err: errors.New("broker down")}
	svc := newTestService(&mockProcessor{intent: payment.Intent{ID: "pi_1", ClientSecret: "s"}}, publisher)

	session, err := svc.CreateSession(context.Background(), validRequest(line("prod_1", 0, 1)))

	require.NoError(t, err)
	assert.Equal(t, "pi_1", session.SessionID)
	assert.Len(t, publisher.events, 1)
}

func TestCreateSession_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCheckoutMetrics(reg)
	processor := &mockProcessor{intent: payment.Intent{ID: "pi_1", ClientSecret: "s"}}
	svc := NewService(Config{}, catalog.NewStaticProvider(), processor, nil, m)

	_, err := svc.CreateSession(context.Background(), validRequest(line("prod_1", 0, 2)))
	require.NoError(t, err)
	_, err = svc.CreateSession(context.Background(), validRequest())
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues("invalid_argument")))
	assert.Equal(t, 3998.0, testutil.ToFloat64(m.AmountMinor))
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "circuit_open", resultLabel(&domain.UpstreamError{Err: payment.ErrCircuitOpen}))
	assert.Equal(t, "upstream_error", resultLabel(&domain.UpstreamError{Err: errors.New("x")}))
	assert.Equal(t, "not_found", resultLabel(domain.ErrNotFound))
	assert.Equal(t, "internal_error", resultLabel(errors.New("x")))
}
