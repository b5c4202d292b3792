package market

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/option"
)

// Registry indexes the markets of a node by address and by option kind.
// Markets are registered at genesis and never removed.
type Registry struct {
	mu      sync.RWMutex
	markets map[common.Address]*Market
	order   []*Market
	byKind  map[option.Kind]*Market
}

func NewRegistry() *Registry {
	return &Registry{
		markets: make(map[common.Address]*Market),
		byKind:  make(map[option.Kind]*Market),
	}
}

// Register adds m. One market per address and per kind.
func (r *Registry) Register(m *Market) error {
	if m == nil {
		return fmt.Errorf("cannot register nil market")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[m.Address()]; exists {
		return fmt.Errorf("market %s already registered", m.Address().Hex())
	}
	if _, exists := r.byKind[m.Kind()]; exists {
		return fmt.Errorf("%s market already registered", m.Kind())
	}
	r.markets[m.Address()] = m
	r.byKind[m.Kind()] = m
	r.order = append(r.order, m)
	return nil
}

// Get looks up a market by address.
func (r *Registry) Get(addr common.Address) (*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.markets[addr]
	if !exists {
		return nil, fmt.Errorf("market %s not found", addr.Hex())
	}
	return m, nil
}

// ByKind returns the call or put market.
func (r *Registry) ByKind(kind option.Kind) (*Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byKind[kind]
	return m, ok
}

// List returns markets in registration order.
func (r *Registry) List() []*Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Market(nil), r.order...)
}

// Option resolves an option contract issued by any registered market.
// Call inside a ledger View or Exec.
func (r *Registry) Option(addr common.Address) (*option.Contract, *Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.order {
		if c, ok := m.Option(addr); ok {
			return c, m, true
		}
	}
	return nil, nil, false
}

// BookOwner finds the market that opened book.
func (r *Registry) BookOwner(book common.Address) (*Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.order {
		if _, ok := m.Listing(book); ok {
			return m, true
		}
	}
	return nil, false
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
