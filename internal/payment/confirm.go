package payment

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// PaymentDetails is what the payment widget collects locally before
// anything is sent to the processor.
type PaymentDetails struct {
	Method          string // payment method type, e.g. "klarna"
	PaymentMethodID string // pm_... if the method was tokenized already
	Name            string
	Email           string
	Country         string // ISO 3166-1 alpha-2 billing country
}

func (d PaymentDetails) Validate() error {
	if d.PaymentMethodID != "" {
		if !strings.HasPrefix(d.PaymentMethodID, "pm_") {
			return fmt.Errorf("payment method id %q: %w", d.PaymentMethodID, domain.ErrInvalidArgument)
		}
		return nil
	}
	if d.Method == "" {
		return fmt.Errorf("payment method type is required: %w", domain.ErrInvalidArgument)
	}
	if _, err := mail.ParseAddress(d.Email); err != nil {
		return fmt.Errorf("email %q: %w", d.Email, domain.ErrInvalidArgument)
	}
	if len(d.Country) != 2 {
		return fmt.Errorf("billing country %q: %w", d.Country, domain.ErrInvalidArgument)
	}
	return nil
}

type ConfirmationStatus string

const (
	ConfirmationSucceeded        ConfirmationStatus = "succeeded"
	ConfirmationRequiresRedirect ConfirmationStatus = "requires_redirect"
)

// Confirmation is the processor's answer to a confirm or retrieve call.
type Confirmation struct {
	IntentID    string
	Status      ConfirmationStatus
	RedirectURL string
}

// StripeConfirmer confirms PaymentIntents the way Stripe.js does: with the
// publishable key and the intent's client secret.
type StripeConfirmer struct {
	backends *stripe.Backends
	timeout  time.Duration
}

func NewStripeConfirmer(backends *stripe.Backends, timeout time.Duration) *StripeConfirmer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &StripeConfirmer{backends: backends, timeout: timeout}
}

func (c *StripeConfirmer) Confirm(ctx context.Context, session domain.CheckoutSession, details PaymentDetails, returnURL string) (Confirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.PaymentIntentConfirmParams{
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	params.AddExtra("client_secret", session.ClientSecret)
	if details.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(details.PaymentMethodID)
	} else {
		params.AddExtra("payment_method_data[type]", details.Method)
		if details.Name != "" {
			params.AddExtra("payment_method_data[billing_details][name]", details.Name)
		}
		params.AddExtra("payment_method_data[billing_details][email]", details.Email)
		params.AddExtra("payment_method_data[billing_details][address][country]", strings.ToUpper(details.Country))
	}

	api := client.New(session.PublishableKey, c.backends)
	pi, err := api.PaymentIntents.Confirm(intentID(session.SessionID, session.ClientSecret), params)
	if err != nil {
		if confErr, ok := confirmationError(err); ok {
			return Confirmation{}, confErr
		}
		return Confirmation{}, upstream(ctx, "stripe.ConfirmPaymentIntent", err)
	}
	return toConfirmation(pi)
}

// Retrieve reads the intent after the customer returns from an external
// authorization page.
func (c *StripeConfirmer) Retrieve(ctx context.Context, publishableKey, id, clientSecret string) (Confirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExtra("client_secret", clientSecret)

	api := client.New(publishableKey, c.backends)
	pi, err := api.PaymentIntents.Get(intentID(id, clientSecret), params)
	if err != nil {
		return Confirmation{}, upstream(ctx, "stripe.RetrievePaymentIntent", err)
	}
	return toConfirmation(pi)
}

func toConfirmation(pi *stripe.PaymentIntent) (Confirmation, error) {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded,
		stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresCapture:
		return Confirmation{IntentID: pi.ID, Status: ConfirmationSucceeded}, nil
	case stripe.PaymentIntentStatusRequiresAction:
		if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil && pi.NextAction.RedirectToURL.URL != "" {
			return Confirmation{
				IntentID:    pi.ID,
				Status:      ConfirmationRequiresRedirect,
				RedirectURL: pi.NextAction.RedirectToURL.URL,
			}, nil
		}
		return Confirmation{}, &domain.ConfirmationError{Code: "unsupported_action", Message: "The payment requires an action this client cannot perform."}
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			return Confirmation{}, &domain.ConfirmationError{Code: string(pi.LastPaymentError.Code), Message: pi.LastPaymentError.Msg}
		}
		return Confirmation{}, &domain.ConfirmationError{Code: "payment_failed", Message: "The payment was not authorized."}
	case stripe.PaymentIntentStatusCanceled:
		return Confirmation{}, &domain.ConfirmationError{Code: "canceled", Message: "The payment was canceled."}
	default:
		return Confirmation{}, &domain.ConfirmationError{Code: string(pi.Status), Message: "The payment was not confirmed."}
	}
}

// intentID falls back to the id prefix of a client secret (pi_x_secret_y).
func intentID(id, clientSecret string) string {
	if id != "" {
		return id
	}
	if i := strings.Index(clientSecret, "_secret_"); i > 0 {
		return clientSecret[:i]
	}
	return clientSecret
}
