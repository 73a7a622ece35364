package domain

import "fmt"

// DefaultCurrency is used for catalog items that do not carry their own currency.
const DefaultCurrency = "usd"

// Product is a catalog item. Price is in minor currency units (cents for usd).
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	ImageURL    string `json:"imageUrl"`
}

// FormatPrice renders an amount in minor units, e.g. 1999 usd -> "$19.99".
func FormatPrice(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	switch currency {
	case "", "usd":
		return fmt.Sprintf("%s$%d.%02d", sign, amount/100, amount%100)
	case "eur":
		return fmt.Sprintf("%s€%d.%02d", sign, amount/100, amount%100)
	case "gbp":
		return fmt.Sprintf("%s£%d.%02d", sign, amount/100, amount%100)
	default:
		return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, currency)
	}
}
