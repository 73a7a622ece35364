package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/stripe-checkout/internal/catalog"
)

type ProductHandler struct {
	products catalog.Provider
	timeout  time.Duration
}

func NewProductHandler(products catalog.Provider, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		products: products,
		timeout:  timeout,
	}
}

// ProductResponse keeps the storefront wire format, quantity is always 1.
type ProductResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	Quantity    int    `json:"quantity"`
	ImageURL    string `json:"imageUrl"`
}

// GET /api/checkout/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.products.ListProducts(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res := make([]ProductResponse, len(products))
	for i, p := range products {
		res[i] = ProductResponse{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Currency:    p.Currency,
			Quantity:    1,
			ImageURL:    p.ImageURL,
		}
	}
	respondJSON(w, http.StatusOK, res)
}
