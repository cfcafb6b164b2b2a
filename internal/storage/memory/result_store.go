// Package memory keeps extracted products in memory for the duration of a run.
package memory

import (
	"sync"

	"github.com/JakeFAU/catalog-scraper/internal/catalog"
)

// ResultStore collects products in completion order.
type ResultStore struct {
	mu       sync.RWMutex
	products []*catalog.ProductRecord
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{}
}

// Append records one product. Nil records are ignored.
func (s *ResultStore) Append(product *catalog.ProductRecord) {
	if product == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, product)
}

// Products returns a copy of the collected slice.
func (s *ResultStore) Products() []*catalog.ProductRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*catalog.ProductRecord(nil), s.products...)
}

// Len reports how many products were collected.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}
