package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// UpstreamError reports a failed call to the payment processor or to the
// checkout API. It is always safe to retry the checkout attempt.
type UpstreamError struct {
	Op      string
	Err     error
	Timeout bool
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: upstream timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: upstream error: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ConfirmationError is returned when the processor rejects the payment
// details at confirmation time. Message is the processor's text.
type ConfirmationError struct {
	Code    string
	Message string
}

func (e *ConfirmationError) Error() string {
	if e.Code == "" {
		return "payment confirmation failed: " + e.Message
	}
	return fmt.Sprintf("payment confirmation failed (%s): %s", e.Code, e.Message)
}

// IsUpstream reports whether err is, or wraps, an *UpstreamError.
func IsUpstream(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}
