package checkout

import (
	"fmt"

	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
)

var (
	ErrEmptyCart        = fmt.Errorf("cart is empty, nothing to checkout: %w", domain.ErrInvalidArgument)
	ErrInvalidQuantity  = fmt.Errorf("quantity must be at least 1: %w", domain.ErrInvalidArgument)
	ErrInvalidReturnURL = fmt.Errorf("redirect url must be an absolute http(s) url: %w", domain.ErrInvalidArgument)
	ErrCurrencyMismatch = fmt.Errorf("product currency does not match checkout currency: %w", domain.ErrInvalidArgument)
	ErrNonPositiveTotal = fmt.Errorf("order total must be positive: %w", domain.ErrInvalidArgument)
	ErrQuantityTooLarge = fmt.Errorf("quantity exceeds the per-line maximum: %w", domain.ErrInvalidArgument)
	ErrTotalOverflow    = fmt.Errorf("order total is out of range: %w", domain.ErrInvalidArgument)
)
