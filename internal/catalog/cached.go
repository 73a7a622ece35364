package catalog

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
	"golang.org/x/sync/singleflight"
)

// loadTimeout bounds a shared catalog load. The load is detached from the
// caller that started it so one cancelled request cannot fail its waiters.
const loadTimeout = 5 * time.Second

// CachedProvider serves the catalog from a ProductCache and falls back to
// the wrapped provider on a miss. Cache errors never fail a read.
type CachedProvider struct {
	next  Provider
	cache ProductCache
	sfg   singleflight.Group // collapses concurrent misses
}

func NewCachedProvider(next Provider, cache ProductCache) *CachedProvider {
	return &CachedProvider{
		next:  next,
		cache: cache,
	}
}

func (c *CachedProvider) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ch := c.sfg.DoChan(productsCacheKey, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		products, err := c.cache.Get(ctx)
		if err == nil {
			return products, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("catalog cache get error: %v", err)
		}

		products, err = c.next.ListProducts(ctx)
		if err != nil {
			return nil, err
		}

		setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if errSet := c.cache.Set(setCtx, products); errSet != nil {
			log.Printf("catalog cache set error: %v", errSet)
		}

		return products, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}

	products := res.Val.([]domain.Product)
	out := make([]domain.Product, len(products))
	copy(out, products)
	return out, nil
}

func (c *CachedProvider) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	products, err := c.ListProducts(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	return List(products).Find(id)
}

// Invalidate drops the cached catalog.
func (c *CachedProvider) Invalidate(ctx context.Context) error {
	return c.cache.Delete(ctx)
}
