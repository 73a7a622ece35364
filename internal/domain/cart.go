package domain

// CartEntry is one line of a cart. ProductID is the uniqueness key.
type CartEntry struct {
	ProductID string
	Quantity  int
}

// LineItem is a cart entry resolved to its full product record.
type LineItem struct {
	Product  Product
	Quantity int
}

// Subtotal returns unit price times quantity.
func (l LineItem) Subtotal() int64 {
	return l.Product.Price * int64(l.Quantity)
}

// Total sums the subtotals of all line items.
func Total(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}
