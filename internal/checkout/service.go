package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/stripe-checkout/internal/catalog"
	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
	"github.com/fjod/go_cart/stripe-checkout/internal/events"
	"github.com/fjod/go_cart/stripe-checkout/internal/logging"
	"github.com/fjod/go_cart/stripe-checkout/internal/metrics"
	"github.com/fjod/go_cart/stripe-checkout/internal/payment"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "checkout-api"

// MaxLineQuantity caps the quantity of a single product in one checkout,
// after duplicate lines are merged.
const MaxLineQuantity = 999

// PaymentProcessor creates the processor-side payment intent.
type PaymentProcessor interface {
	CreatePaymentIntent(ctx context.Context, params payment.IntentParams) (payment.Intent, error)
}

type Config struct {
	Currency          string
	PaymentMethodType string
	IntegrationTag    string
	PublishableKey    string
}

type Service struct {
	cfg       Config
	products  catalog.Provider
	processor PaymentProcessor
	publisher events.Publisher
	metrics   *metrics.CheckoutMetrics
	tracer    trace.Tracer
}

// NewService builds the initiator. publisher and m may be nil.
func NewService(cfg Config, products catalog.Provider, processor PaymentProcessor, publisher events.Publisher, m *metrics.CheckoutMetrics) *Service {
	if cfg.Currency == "" {
		cfg.Currency = domain.DefaultCurrency
	}
	if cfg.PaymentMethodType == "" {
		cfg.PaymentMethodType = "klarna"
	}
	if cfg.IntegrationTag == "" {
		cfg.IntegrationTag = "klarna_payment_element"
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		cfg:       cfg,
		products:  products,
		processor: processor,
		publisher: publisher,
		metrics:   m,
		tracer:    otel.Tracer("github.com/fjod/go_cart/stripe-checkout/internal/checkout"),
	}
}

// CreateSession prices the request from the catalog and asks the processor
// for a payment intent covering the total. Prices sent by the client are
// never used.
func (s *Service) CreateSession(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.CreateSession")
	defer span.End()

	session, err := s.createSession(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveSession(resultLabel(err), 0)
		return domain.CheckoutSession{}, err
	}

	span.SetAttributes(
		attribute.String("checkout.session_id", session.SessionID),
		attribute.Int64("checkout.amount", session.Amount),
		attribute.String("checkout.currency", session.Currency),
	)
	s.metrics.ObserveSession("created", session.Amount)
	return session, nil
}

func (s *Service) createSession(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		return domain.CheckoutSession{}, err
	}

	merged := mergeItems(req.Items)
	if err := validateQuantities(merged); err != nil {
		return domain.CheckoutSession{}, err
	}

	items, err := s.priceItems(ctx, merged)
	if err != nil {
		return domain.CheckoutSession{}, err
	}

	total, err := orderTotal(items)
	if err != nil {
		return domain.CheckoutSession{}, err
	}
	if total <= 0 {
		return domain.CheckoutSession{}, ErrNonPositiveTotal
	}

	intent, err := s.processor.CreatePaymentIntent(ctx, payment.IntentParams{
		Amount:             total,
		Currency:           s.cfg.Currency,
		PaymentMethodTypes: []string{s.cfg.PaymentMethodType},
		Metadata:           map[string]string{"integration_check": s.cfg.IntegrationTag},
		IdempotencyKey:     req.IdempotencyKey,
	})
	if err != nil {
		if !domain.IsUpstream(err) {
			err = &domain.UpstreamError{Op: "CreatePaymentIntent", Err: err}
		}
		return domain.CheckoutSession{}, fmt.Errorf("failed to create payment intent: %w", err)
	}

	session := domain.CheckoutSession{
		ClientSecret:   intent.ClientSecret,
		PublishableKey: s.cfg.PublishableKey,
		SessionID:      intent.ID,
		Amount:         total,
		Currency:       s.cfg.Currency,
	}

	s.publish(ctx, req, session, len(items))

	logging.Log(logging.Fields{
		Service:    serviceName,
		Event:      "payment_intent_created",
		RequestID:  middleware.GetReqID(ctx),
		SessionID:  session.SessionID,
		Status:     "ok",
		Amount:     session.Amount,
		Currency:   session.Currency,
		DurationMS: time.Since(start).Milliseconds(),
	})
	return session, nil
}

func (s *Service) publish(ctx context.Context, req domain.CheckoutRequest, session domain.CheckoutSession, itemCount int) {
	event := events.PaymentIntentCreated{
		Type:          events.TypePaymentIntentCreated,
		SessionID:     session.SessionID,
		Amount:        session.Amount,
		Currency:      session.Currency,
		PaymentMethod: s.cfg.PaymentMethodType,
		ItemCount:     itemCount,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		RequestID:     middleware.GetReqID(ctx),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, session.SessionID, event); err != nil {
		log.Printf("failed to publish %s for %s: %v", event.Type, session.SessionID, err)
	}
}

// priceItems replaces every product record with the catalog's version.
func (s *Service) priceItems(ctx context.Context, items []domain.LineItem) ([]domain.LineItem, error) {
	priced := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		product, err := s.products.GetProduct(ctx, item.Product.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to load product %q: %w", item.Product.ID, err)
		}
		if product.Currency == "" {
			product.Currency = domain.DefaultCurrency
		}
		if !strings.EqualFold(product.Currency, s.cfg.Currency) {
			return nil, fmt.Errorf("product %q priced in %s: %w", product.ID, product.Currency, ErrCurrencyMismatch)
		}
		if item.Product.Price != 0 && item.Product.Price != product.Price {
			log.Printf("ignoring client price %d for %s, catalog price is %d", item.Product.Price, product.ID, product.Price)
		}
		priced = append(priced, domain.LineItem{Product: product, Quantity: item.Quantity})
	}
	return priced, nil
}

func validateRequest(req domain.CheckoutRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyCart
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.Product.ID) == "" {
			return fmt.Errorf("product id is required: %w", domain.ErrInvalidArgument)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("product %q quantity %d: %w", item.Product.ID, item.Quantity, ErrInvalidQuantity)
		}
	}
	if err := validateQuantities(req.Items); err != nil {
		return err
	}
	if err := validateReturnURL(req.SuccessURL); err != nil {
		return fmt.Errorf("successUrl: %w", err)
	}
	if err := validateReturnURL(req.CancelURL); err != nil {
		return fmt.Errorf("cancelUrl: %w", err)
	}
	return nil
}

func validateQuantities(items []domain.LineItem) error {
	for _, item := range items {
		if item.Quantity > MaxLineQuantity {
			return fmt.Errorf("product %q quantity %d: %w", item.Product.ID, item.Quantity, ErrQuantityTooLarge)
		}
	}
	return nil
}

// orderTotal is domain.Total with every multiply and add checked for int64 overflow.
func orderTotal(items []domain.LineItem) (int64, error) {
	var total int64
	for _, item := range items {
		price, qty := item.Product.Price, int64(item.Quantity)
		if price < 0 {
			return 0, fmt.Errorf("product %q has negative price: %w", item.Product.ID, ErrNonPositiveTotal)
		}
		if price > 0 && qty > math.MaxInt64/price {
			return 0, fmt.Errorf("product %q: %w", item.Product.ID, ErrTotalOverflow)
		}
		subtotal := price * qty
		if total > math.MaxInt64-subtotal {
			return 0, ErrTotalOverflow
		}
		total += subtotal
	}
	return total, nil
}

func validateReturnURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidReturnURL
	}
	return nil
}

// mergeItems folds repeated product ids into one line, keeping first-seen order.
func mergeItems(items []domain.LineItem) []domain.LineItem {
	index := make(map[string]int, len(items))
	merged := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.Product.ID]; ok {
			// Saturate so the merged line still fails the quantity cap
			// instead of wrapping.
			if merged[i].Quantity > math.MaxInt-item.Quantity {
				merged[i].Quantity = math.MaxInt
			} else {
				merged[i].Quantity += item.Quantity
			}
			continue
		}
		index[item.Product.ID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, payment.ErrCircuitOpen):
		return "circuit_open"
	case domain.IsUpstream(err):
		return "upstream_error"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "internal_error"
	}
}
