package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/fjod/go_cart/stripe-checkout/internal/cart"
	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
	"github.com/fjod/go_cart/stripe-checkout/internal/logging"
	"github.com/fjod/go_cart/stripe-checkout/internal/payment"
	"github.com/google/uuid"
)

type State string

const (
	StateIdle                         State = "idle"
	StateSubmitting                   State = "submitting"
	StateAwaitingExternalConfirmation State = "awaiting_external_confirmation"
	StateSucceeded                    State = "succeeded"
	StateFailed                       State = "failed"
	StateCancelled                    State = "cancelled"
)

// PendingKey is the storage key of a checkout waiting for an external redirect.
const PendingKey = "pendingCheckout"

// GenericErrorMessage is shown for every failure that is not a processor
// decision about the payment details.
const GenericErrorMessage = "An unexpected error occurred. Please try again."

var (
	ErrIllegalTransition = errors.New("illegal transition of checkout state")
	ErrCheckoutCancelled = errors.New("checkout was cancelled")
)

// SessionInitiator obtains a checkout session for a cart snapshot.
type SessionInitiator interface {
	CreatePaymentIntent(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error)
}

// Confirmer confirms a session with the payment processor.
type Confirmer interface {
	Confirm(ctx context.Context, session domain.CheckoutSession, details payment.PaymentDetails, returnURL string) (payment.Confirmation, error)
	Retrieve(ctx context.Context, publishableKey, id, clientSecret string) (payment.Confirmation, error)
}

// Cart is the part of cart.Store the flow needs.
type Cart interface {
	Len() int
	Snapshot() []domain.LineItem
	Clear() error
}

type Config struct {
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration // per network call
}

// Outcome tells the caller where the customer should go next.
type Outcome struct {
	State       State
	Destination string
	Message     string
}

type pendingCheckout struct {
	Session   domain.CheckoutSession `json:"session"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Flow drives one checkout attempt for one cart. Network calls run without
// holding the lock so Cancel can interrupt them.
type Flow struct {
	mu        sync.Mutex
	cfg       Config
	cart      Cart
	storage   cart.Storage
	sessions  SessionInitiator
	confirmer Confirmer
	newKey    func() string

	state       State
	destination string
	message     string
	lastErr     error
	session     *domain.CheckoutSession
	cleared     bool
	abort       context.CancelFunc
	attempt     int
}

// New restores a pending redirect checkout from storage when one exists.
func New(cfg Config, c Cart, storage cart.Storage, sessions SessionInitiator, confirmer Confirmer) *Flow {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	f := &Flow{
		cfg:       cfg,
		cart:      c,
		storage:   storage,
		sessions:  sessions,
		confirmer: confirmer,
		newKey:    uuid.NewString,
		state:     StateIdle,
	}
	if pending, ok := f.loadPending(); ok {
		f.session = &pending.Session
		f.state = StateAwaitingExternalConfirmation
	}
	return f
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *Flow) Outcome() Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcomeLocked()
}

// Submit validates details locally, creates a session for the current cart
// and confirms it. The two calls are strictly sequential.
func (f *Flow) Submit(ctx context.Context, details payment.PaymentDetails) (Outcome, error) {
	f.mu.Lock()
	if f.state != StateIdle && f.state != StateFailed {
		state := f.state
		f.mu.Unlock()
		return Outcome{State: state}, fmt.Errorf("submit from %s: %w", state, ErrIllegalTransition)
	}
	if f.cart.Len() == 0 {
		state := f.state
		f.mu.Unlock()
		return Outcome{State: state}, fmt.Errorf("cart is empty, nothing to checkout: %w", domain.ErrInvalidArgument)
	}
	if err := details.Validate(); err != nil {
		f.state = StateIdle
		f.mu.Unlock()
		return Outcome{State: StateIdle}, err
	}

	f.attempt++
	attempt := f.attempt
	f.state = StateSubmitting
	f.lastErr, f.message, f.destination = nil, "", ""
	ctx, abort := context.WithCancel(ctx)
	f.abort = abort
	req := domain.CheckoutRequest{
		Items:          f.cart.Snapshot(),
		SuccessURL:     f.cfg.SuccessURL,
		CancelURL:      f.cfg.CancelURL,
		IdempotencyKey: f.newKey(),
	}
	f.mu.Unlock()
	defer abort()

	callCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	session, err := f.sessions.CreatePaymentIntent(callCtx, req)
	cancel()

	f.mu.Lock()
	if f.attempt != attempt || f.state != StateSubmitting {
		defer f.mu.Unlock()
		return f.outcomeLocked(), ErrCheckoutCancelled
	}
	if err != nil {
		defer f.mu.Unlock()
		return f.failLocked(err), err
	}
	f.session = &session
	f.state = StateAwaitingExternalConfirmation
	f.mu.Unlock()

	callCtx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
	conf, err := f.confirmer.Confirm(callCtx, session, details, f.cfg.SuccessURL)
	cancel()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt != attempt || f.state != StateAwaitingExternalConfirmation {
		if err == nil && conf.Status == payment.ConfirmationSucceeded {
			log.Printf("payment %s confirmed after checkout was cancelled", session.SessionID)
		}
		return f.outcomeLocked(), ErrCheckoutCancelled
	}
	if err != nil {
		return f.failLocked(err), err
	}
	return f.applyConfirmationLocked(conf), nil
}

// Resume finishes a checkout after the customer returns from an external
// authorization page. returnURL carries payment_intent,
// payment_intent_client_secret and redirect_status.
func (f *Flow) Resume(ctx context.Context, returnURL string) (Outcome, error) {
	u, err := url.Parse(returnURL)
	if err != nil {
		return Outcome{}, fmt.Errorf("return url: %w", domain.ErrInvalidArgument)
	}
	q := u.Query()
	intentID := q.Get("payment_intent")
	clientSecret := q.Get("payment_intent_client_secret")
	redirectStatus := q.Get("redirect_status")

	f.mu.Lock()
	switch f.state {
	case StateSucceeded:
		defer f.mu.Unlock()
		return f.outcomeLocked(), nil
	case StateAwaitingExternalConfirmation:
	default:
		state := f.state
		f.mu.Unlock()
		return Outcome{State: state}, fmt.Errorf("resume from %s: %w", state, ErrIllegalTransition)
	}

	var session domain.CheckoutSession
	if f.session != nil {
		session = *f.session
	}
	if intentID != "" && session.SessionID != "" && intentID != session.SessionID {
		f.mu.Unlock()
		return Outcome{State: StateAwaitingExternalConfirmation}, fmt.Errorf("return url is for %s, pending checkout is %s: %w", intentID, session.SessionID, domain.ErrInvalidArgument)
	}

	switch redirectStatus {
	case "succeeded":
		defer f.mu.Unlock()
		return f.succeedLocked(), nil
	case "failed":
		defer f.mu.Unlock()
		err := &domain.ConfirmationError{Code: "redirect_failed", Message: "The payment was not authorized."}
		return f.failLocked(err), err
	}

	if intentID == "" {
		intentID = session.SessionID
	}
	if clientSecret == "" {
		clientSecret = session.ClientSecret
	}
	attempt := f.attempt
	f.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	conf, err := f.confirmer.Retrieve(callCtx, session.PublishableKey, intentID, clientSecret)
	cancel()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt != attempt || f.state != StateAwaitingExternalConfirmation {
		return f.outcomeLocked(), ErrCheckoutCancelled
	}
	if err != nil {
		return f.failLocked(err), err
	}
	return f.applyConfirmationLocked(conf), nil
}

// Cancel abandons the attempt. No call is made to the processor, an
// unconfirmed intent expires on its own.
func (f *Flow) Cancel() (Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateSucceeded:
		return f.outcomeLocked(), fmt.Errorf("cancel from %s: %w", f.state, ErrIllegalTransition)
	case StateCancelled:
		return f.outcomeLocked(), nil
	}

	if f.abort != nil {
		f.abort()
	}
	f.attempt++
	f.removePending()
	f.state = StateCancelled
	f.destination = f.cfg.CancelURL
	f.message = ""
	return f.outcomeLocked(), nil
}

// Retry moves a failed attempt back to Idle. The cart is kept.
func (f *Flow) Retry() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateFailed {
		return fmt.Errorf("retry from %s: %w", f.state, ErrIllegalTransition)
	}
	f.state = StateIdle
	f.session = nil
	f.lastErr, f.message, f.destination = nil, "", ""
	return nil
}

func (f *Flow) applyConfirmationLocked(conf payment.Confirmation) Outcome {
	switch conf.Status {
	case payment.ConfirmationSucceeded:
		return f.succeedLocked()
	case payment.ConfirmationRequiresRedirect:
		f.savePending()
		f.state = StateAwaitingExternalConfirmation
		f.destination = conf.RedirectURL
		return f.outcomeLocked()
	default:
		return f.failLocked(&domain.ConfirmationError{Code: string(conf.Status), Message: "The payment was not confirmed."})
	}
}

// succeedLocked clears the cart at most once per flow.
func (f *Flow) succeedLocked() Outcome {
	if !f.cleared {
		if err := f.cart.Clear(); err != nil {
			log.Printf("failed to clear cart after payment: %v", err)
		}
		f.cleared = true
	}
	f.removePending()
	f.state = StateSucceeded
	f.destination = f.cfg.SuccessURL
	f.message = ""
	f.lastErr = nil

	fields := logging.Fields{Service: "storefront", Event: "checkout_succeeded", Status: "ok"}
	if f.session != nil {
		fields.SessionID = f.session.SessionID
		fields.Amount = f.session.Amount
		fields.Currency = f.session.Currency
	}
	logging.Log(fields)
	return f.outcomeLocked()
}

// failLocked surfaces processor decisions verbatim and everything else as
// the generic retry message.
func (f *Flow) failLocked(err error) Outcome {
	f.removePending()
	f.state = StateFailed
	f.lastErr = err
	f.destination = ""

	var confErr *domain.ConfirmationError
	if errors.As(err, &confErr) && confErr.Message != "" {
		f.message = confErr.Message
	} else {
		f.message = GenericErrorMessage
	}

	fields := logging.Fields{Service: "storefront", Event: "checkout_failed", Status: "failed", Message: err.Error()}
	if f.session != nil {
		fields.SessionID = f.session.SessionID
	}
	logging.Log(fields)
	return f.outcomeLocked()
}

func (f *Flow) outcomeLocked() Outcome {
	return Outcome{State: f.state, Destination: f.destination, Message: f.message}
}

func (f *Flow) savePending() {
	if f.session == nil {
		return
	}
	data, err := json.Marshal(pendingCheckout{Session: *f.session, CreatedAt: time.Now().UTC()})
	if err != nil {
		log.Printf("failed to encode pending checkout: %v", err)
		return
	}
	if err := f.storage.Set(PendingKey, data); err != nil {
		log.Printf("failed to persist pending checkout %s: %v", f.session.SessionID, err)
	}
}

func (f *Flow) loadPending() (pendingCheckout, bool) {
	data, err := f.storage.Get(PendingKey)
	if err != nil {
		if !errors.Is(err, cart.ErrNotStored) {
			log.Printf("failed to read pending checkout: %v", err)
		}
		return pendingCheckout{}, false
	}
	var pending pendingCheckout
	if err := json.Unmarshal(data, &pending); err != nil || pending.Session.ClientSecret == "" {
		log.Printf("discarding unreadable pending checkout")
		f.removePending()
		return pendingCheckout{}, false
	}
	return pending, true
}

func (f *Flow) removePending() {
	if err := f.storage.Remove(PendingKey); err != nil {
		log.Printf("failed to remove pending checkout: %v", err)
	}
}
