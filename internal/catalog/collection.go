package catalog

import (
	"sync"

	"storefront-catalog-service/internal/domain"
)

// Collection is the in-memory product list shared by every view. Every write bumps
// its version.
type Collection struct {
	mu       sync.RWMutex
	products []domain.Product
	version  uint64
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Reset replaces the whole list, e.g. after a reload from the store.
func (c *Collection) Reset(products []domain.Product) {
	next := cloneAll(products)
	c.mu.Lock()
	c.products = next
	c.version++
	c.mu.Unlock()
}

// ResetIfVersion replaces the whole list only if no write happened since version was
// read. It reports whether the list was replaced.
func (c *Collection) ResetIfVersion(products []domain.Product, version uint64) bool {
	next := cloneAll(products)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != version {
		return false
	}
	c.products = next
	c.version++
	return true
}

// Version returns the write counter.
func (c *Collection) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func cloneAll(products []domain.Product) []domain.Product {
	out := make([]domain.Product, len(products))
	for i, p := range products {
		out[i] = p.Clone()
	}
	return out
}

// Replace swaps in p for the entry with the same id. It is a no-op when the id is
// absent, so applying the same update twice leaves the same state.
func (c *Collection) Replace(p domain.Product) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.products {
		if c.products[i].ID == p.ID {
			c.products[i] = p.Clone()
			c.version++
			return true
		}
	}
	return false
}

// Add prepends p; newest products come first.
func (c *Collection) Add(p domain.Product) {
	c.mu.Lock()
	c.products = append([]domain.Product{p.Clone()}, c.products...)
	c.version++
	c.mu.Unlock()
}

// Remove drops the entry with the given id.
func (c *Collection) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.products {
		if c.products[i].ID == id {
			c.products = append(c.products[:i:i], c.products[i+1:]...)
			c.version++
			return true
		}
	}
	return false
}

// Get returns a copy of the product with the given id.
func (c *Collection) Get(id string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return domain.Product{}, false
}

// Snapshot returns a copy of the current list.
func (c *Collection) Snapshot() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.products)
}

// Len returns the number of products.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}
