package domain

// CheckoutRequest is the immutable cart snapshot submitted for payment.
type CheckoutRequest struct {
	Items          []LineItem
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// CheckoutSession is the handle issued for one checkout attempt. Only the
// payment processor keeps state about it.
type CheckoutSession struct {
	ClientSecret   string `json:"clientSecret"`
	PublishableKey string `json:"publishableKey"`
	SessionID      string `json:"sessionId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}
