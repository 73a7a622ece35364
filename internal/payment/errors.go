package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v82"
)

// ErrCircuitOpen is wrapped into the UpstreamError returned while the
// breaker rejects calls to the processor.
var ErrCircuitOpen = errors.New("payment processor unavailable")

func upstream(ctx context.Context, op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.UpstreamError{Op: op, Err: fmt.Errorf("%w: %v", ErrCircuitOpen, err)}
	}
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	return &domain.UpstreamError{Op: op, Err: err, Timeout: timeout}
}

// isClientError reports a request the processor understood and refused;
// those say nothing about processor health.
func isClientError(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 && stripeErr.HTTPStatusCode != 429
}

func confirmationError(err error) (*domain.ConfirmationError, bool) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return nil, false
	}
	switch stripeErr.Type {
	case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
		return &domain.ConfirmationError{Code: string(stripeErr.Code), Message: stripeErr.Msg}, true
	}
	return nil, false
}
