package catalog

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
)

// Provider is the source of purchasable products.
type Provider interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

// List is a fetched catalog, used client-side to resolve product ids.
type List []domain.Product

// Find returns the product with the given id or domain.ErrNotFound.
func (l List) Find(id string) (domain.Product, error) {
	for _, p := range l {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, fmt.Errorf("product %q: %w", id, domain.ErrNotFound)
}

// StaticProvider serves a fixed, in-memory set of products.
type StaticProvider struct {
	products List
}

func NewStaticProvider(products ...domain.Product) *StaticProvider {
	if len(products) == 0 {
		products = DefaultProducts()
	}
	list := make(List, len(products))
	copy(list, products)
	return &StaticProvider{products: list}
}

func (s *StaticProvider) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *StaticProvider) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	return s.products.Find(id)
}

// DefaultProducts is the demo catalog.
func DefaultProducts() []domain.Product {
	return []domain.Product{
		{
			ID:          "prod_1",
			Name:        "T-Shirt",
			Description: "Comfortable cotton t-shirt",
			Price:       1999,
			Currency:    domain.DefaultCurrency,
			ImageURL:    "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?auto=format&fit=crop&w=500&q=80",
		},
		{
			ID:          "prod_2",
			Name:        "Hoodie",
			Description: "Warm hoodie for cold days",
			Price:       4999,
			Currency:    domain.DefaultCurrency,
			ImageURL:    "https://images.unsplash.com/photo-1556821840-3a63f95609a7?auto=format&fit=crop&w=500&q=80",
		},
		{
			ID:          "prod_3",
			Name:        "Cap",
			Description: "Stylish cap with logo",
			Price:       1499,
			Currency:    domain.DefaultCurrency,
			ImageURL:    "https://images.unsplash.com/photo-1588850561407-ed78c282e89b?auto=format&fit=crop&w=500&q=80",
		},
	}
}
