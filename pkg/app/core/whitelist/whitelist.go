// Package whitelist restricts which issuing contract's asset of a given
// symbol the exchange accepts as a deposit. One entry per symbol, overwritten
// by set and cleared by remove; mutations are admin-only.
//
// The registry is an explicit dependency injected into the settlement router,
// not ambient state.
package whitelist

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tangelo-dex/tangelo/pkg/app/core"
	"github.com/tangelo-dex/tangelo/pkg/app/core/asset"
)

// Entry approves one issuing contract for a secondary symbol. The symbol's
// precision is fixed here and re-checked on every deposit.
type Entry struct {
	Symbol asset.Symbol   `json:"symbol"`
	Issuer common.Address `json:"issuer"`
}

type Registry struct {
	mu      sync.RWMutex
	admin   common.Address
	entries map[string]Entry // symbol code -> entry
}

func NewRegistry(admin common.Address) *Registry {
	return &Registry{
		admin:   admin,
		entries: make(map[string]Entry),
	}
}

// Authorize checks that the caller holds whitelist-mutation authority.
// Mutations are split from the check so the action layer can persist the
// change before touching the in-memory view.
func (r *Registry) Authorize(caller common.Address) error {
	if caller != r.admin {
		return fmt.Errorf("%w: whitelist mutation by %s", core.ErrUnauthorized, caller.Hex())
	}
	return nil
}

// Put records the approved issuer for a symbol, overwriting any prior entry.
// Authority must have been checked by the caller.
func (r *Registry) Put(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.Symbol.Code] = e
}

// Drop clears the entry; deposits of the symbol are rejected until re-set.
func (r *Registry) Drop(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, code)
}

// Get returns the entry for a symbol code.
func (r *Registry) Get(code string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[code]
	return e, ok
}

// AssertAccepted checks that a deposit of sym from the given originating
// contract is approved: entry present, issuer equal, precision equal.
func (r *Registry) AssertAccepted(sym asset.Symbol, origin common.Address) error {
	e, ok := r.Get(sym.Code)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotWhitelisted, sym.Code)
	}
	if e.Issuer != origin || e.Symbol.Precision != sym.Precision {
		return fmt.Errorf("%w: %s from %s", core.ErrNotWhitelisted, sym.Code, origin.Hex())
	}
	return nil
}

// Entries returns a copy of all live entries (for the API and persistence).
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}
