package payment

import (
	"context"
	"log"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// IntentParams describes the payment intent to create.
type IntentParams struct {
	Amount             int64
	Currency           string
	PaymentMethodTypes []string
	Metadata           map[string]string
	IdempotencyKey     string
}

// Intent is the processor's confirmation handle.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
}

type BreakerSettings struct {
	MaxFailures uint32        // consecutive failures before opening
	OpenTimeout time.Duration // how long to stay open before probing
}

type ProcessorConfig struct {
	SecretKey string
	Timeout   time.Duration
	Breaker   BreakerSettings
	Backends  *stripe.Backends // nil uses the live Stripe API
}

// StripeProcessor creates PaymentIntents with the secret key. It owns its
// own client, no package level stripe.Key is used.
type StripeProcessor struct {
	api     *client.API
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
}

func NewStripeProcessor(cfg ProcessorConfig) *StripeProcessor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker.MaxFailures = 5
	}
	if cfg.Breaker.OpenTimeout <= 0 {
		cfg.Breaker.OpenTimeout = 30 * time.Second
	}

	maxFailures := cfg.Breaker.MaxFailures
	breaker := gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &StripeProcessor{
		api:     client.New(cfg.SecretKey, cfg.Backends),
		timeout: cfg.Timeout,
		breaker: breaker,
	}
}

func (p *StripeProcessor) CreatePaymentIntent(ctx context.Context, in IntentParams) (Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(in.Amount),
		Currency:           stripe.String(in.Currency),
		PaymentMethodTypes: stripe.StringSlice(in.PaymentMethodTypes),
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	pi, err := p.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return p.api.PaymentIntents.New(params)
	})
	if err != nil {
		return Intent{}, upstream(ctx, "stripe.CreatePaymentIntent", err)
	}

	return Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}, nil
}
