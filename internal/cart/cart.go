package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
)

// StorageKey is where the cart lives in client-local storage.
const StorageKey = "cartItems"

// Lookup resolves a product id against a catalog.
type Lookup interface {
	Find(id string) (domain.Product, error)
}

// Item is the persisted form of one cart line. It carries the product
// record resolved when the item was added.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	ImageURL    string `json:"imageUrl"`
	Quantity    int    `json:"quantity"`
}

type state struct {
	order []string
	lines map[string]domain.LineItem
}

func (s state) clone() state {
	c := state{
		order: make([]string, len(s.order)),
		lines: make(map[string]domain.LineItem, len(s.lines)),
	}
	copy(c.order, s.order)
	for k, v := range s.lines {
		c.lines[k] = v
	}
	return c
}

// Store is the client-local cart. Every mutation is persisted before it
// becomes visible; a failed write leaves the cart as it was.
type Store struct {
	mu      sync.Mutex
	storage Storage
	cur     state
}

// Load restores the cart from storage. Duplicate ids are merged and lines
// with a quantity below 1 are dropped.
func Load(storage Storage) (*Store, error) {
	s := &Store{
		storage: storage,
		cur:     state{lines: make(map[string]domain.LineItem)},
	}

	data, err := storage.Get(StorageKey)
	if errors.Is(err, ErrNotStored) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		log.Printf("discarding unreadable cart: %v", err)
		return s, nil
	}

	for _, item := range items {
		if item.ID == "" || item.Quantity < 1 {
			continue
		}
		if line, ok := s.cur.lines[item.ID]; ok {
			line.Quantity += item.Quantity
			s.cur.lines[item.ID] = line
			continue
		}
		s.cur.order = append(s.cur.order, item.ID)
		s.cur.lines[item.ID] = domain.LineItem{
			Product: domain.Product{
				ID:          item.ID,
				Name:        item.Name,
				Description: item.Description,
				Price:       item.Price,
				Currency:    item.Currency,
				ImageURL:    item.ImageURL,
			},
			Quantity: item.Quantity,
		}
	}

	return s, nil
}

// Add puts one unit of the product into the cart.
func (s *Store) Add(productID string, catalog Lookup) error {
	product, err := catalog.Find(productID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur.clone()
	if line, ok := next.lines[productID]; ok {
		line.Quantity++
		next.lines[productID] = line
	} else {
		next.order = append(next.order, productID)
		next.lines[productID] = domain.LineItem{Product: product, Quantity: 1}
	}
	return s.commit(next)
}

// Remove deletes the product from the cart; unknown ids are a no-op.
func (s *Store) Remove(productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur.clone()
	if _, ok := next.lines[productID]; ok {
		delete(next.lines, productID)
		for i, id := range next.order {
			if id == productID {
				next.order = append(next.order[:i], next.order[i+1:]...)
				break
			}
		}
	}
	return s.commit(next)
}

func (s *Store) SetQuantity(productID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("quantity %d for %q: must be at least 1: %w", quantity, productID, domain.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.cur.lines[productID]
	if !ok {
		return fmt.Errorf("product %q not in cart: %w", productID, domain.ErrNotFound)
	}

	next := s.cur.clone()
	line.Quantity = quantity
	next.lines[productID] = line
	return s.commit(next)
}

// Total returns the sum of price times quantity over all lines.
func (s *Store) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, line := range s.cur.lines {
		total += line.Subtotal()
	}
	return total
}

// Clear empties the cart and drops it from storage.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Remove(StorageKey); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.cur = state{lines: make(map[string]domain.LineItem)}
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cur.order)
}

// Entries returns the cart lines in insertion order.
func (s *Store) Entries() []domain.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CartEntry, 0, len(s.cur.order))
	for _, id := range s.cur.order {
		out = append(out, domain.CartEntry{ProductID: id, Quantity: s.cur.lines[id].Quantity})
	}
	return out
}

// Snapshot returns the lines resolved to products, in insertion order.
func (s *Store) Snapshot() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.LineItem, 0, len(s.cur.order))
	for _, id := range s.cur.order {
		out = append(out, s.cur.lines[id])
	}
	return out
}

func (s *Store) commit(next state) error {
	items := make([]Item, 0, len(next.order))
	for _, id := range next.order {
		line := next.lines[id]
		items = append(items, Item{
			ID:          line.Product.ID,
			Name:        line.Product.Name,
			Description: line.Product.Description,
			Price:       line.Product.Price,
			Currency:    line.Product.Currency,
			ImageURL:    line.Product.ImageURL,
			Quantity:    line.Quantity,
		})
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.storage.Set(StorageKey, data); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}

	s.cur = next
	return nil
}
