package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/stripe-checkout/internal/catalog"
	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	productsPath      = "/api/checkout/products"
	paymentIntentPath = "/api/checkout/create-payment-intent"
)

// Client talks to the checkout API the way the storefront does.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type productDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	Quantity    int    `json:"quantity"`
	ImageURL    string `json:"imageUrl"`
}

type cartItemDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Price    int64  `json:"price,omitempty"`
	Quantity int    `json:"quantity"`
}

type paymentIntentRequestDTO struct {
	Products   []cartItemDTO `json:"products"`
	SuccessURL string        `json:"successUrl"`
	CancelURL  string        `json:"cancelUrl"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

func (c *Client) GetProducts(ctx context.Context) (catalog.List, error) {
	var res []productDTO
	if err := c.do(ctx, http.MethodGet, productsPath, nil, "", &res); err != nil {
		return nil, err
	}
	products := make(catalog.List, len(res))
	for i, p := range res {
		currency := p.Currency
		if currency == "" {
			currency = domain.DefaultCurrency
		}
		products[i] = domain.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Currency:    currency,
			ImageURL:    p.ImageURL,
		}
	}
	return products, nil
}

// CreatePaymentIntent asks the API for a checkout session covering req.
// req.IdempotencyKey, when set, is sent as the Idempotency-Key header.
func (c *Client) CreatePaymentIntent(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	body := paymentIntentRequestDTO{
		Products:   make([]cartItemDTO, len(req.Items)),
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}
	for i, item := range req.Items {
		body.Products[i] = cartItemDTO{
			ID:       item.Product.ID,
			Name:     item.Product.Name,
			Price:    item.Product.Price,
			Quantity: item.Quantity,
		}
	}

	var session domain.CheckoutSession
	if err := c.do(ctx, http.MethodPost, paymentIntentPath, body, req.IdempotencyKey, &session); err != nil {
		return domain.CheckoutSession{}, err
	}
	if session.ClientSecret == "" {
		return domain.CheckoutSession{}, &domain.UpstreamError{Op: "CreatePaymentIntent", Err: errors.New("response is missing clientSecret")}
	}
	return session, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.UpstreamError{Op: op, Err: err, Timeout: isTimeout(ctx, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.UpstreamError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	var res errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&res)
	msg := res.Error
	if res.Details != "" {
		msg = res.Details
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%s: %w", msg, domain.ErrInvalidArgument)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	case http.StatusGatewayTimeout:
		return &domain.UpstreamError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, msg), Timeout: true}
	default:
		return &domain.UpstreamError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, msg)}
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
