// Package ledger is the boundary to the host ledger's balance primitives.
//
// The exchange only ever sees transfers: inbound ones arrive through a
// deposit hook, outbound ones (settlement payouts, refunds) are issued
// through the Ledger interface. The in-memory implementation models the
// host's all-or-nothing semantics: if the deposit hook rejects a transfer,
// the transfer itself is rolled back with it.
package ledger

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tangelo-dex/tangelo/pkg/app/core/asset"
)

// Transfer is one value movement between accounts, carried out by the token
// contract identified by Origin.
type Transfer struct {
	Origin   common.Address // token contract executing the transfer
	From     common.Address
	To       common.Address
	Quantity asset.Asset
	Memo     string
}

// Ledger is what the exchange needs from the host: issue outbound transfers
// and read balances.
type Ledger interface {
	// Transfer moves quantity between accounts on the token contract at
	// origin. Fails without side effects on insufficient funds, or when the
	// deposit hook of the receiving party rejects the transfer.
	Transfer(t Transfer) error

	// Balance reads an account's balance of a symbol on a token contract.
	Balance(origin, account common.Address, code string) int64
}

// DepositHook observes inbound transfers to a watched account. An error
// aborts and unwinds the whole transfer.
type DepositHook func(t Transfer) error

type balanceKey struct {
	origin  common.Address
	account common.Address
	code    string
}

// Memory is an in-process ledger with per-token-contract balances, used by
// the node runtime and the tests.
type Memory struct {
	mu       sync.Mutex
	balances map[balanceKey]int64
	hooked   common.Address
	hook     DepositHook
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[balanceKey]int64)}
}

// Watch registers the deposit hook fired on every transfer to account.
func (m *Memory) Watch(account common.Address, hook DepositHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooked = account
	m.hook = hook
}

// Issue mints quantity to an account on the given token contract.
func (m *Memory) Issue(origin, to common.Address, q asset.Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey{origin, to, q.Symbol.Code}] += q.Amount
}

func (m *Memory) Balance(origin, account common.Address, code string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[balanceKey{origin, account, code}]
}

func (m *Memory) Transfer(t Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !t.Quantity.IsPositive() {
		return fmt.Errorf("transfer of non-positive quantity %s", t.Quantity)
	}
	fromKey := balanceKey{t.Origin, t.From, t.Quantity.Symbol.Code}
	toKey := balanceKey{t.Origin, t.To, t.Quantity.Symbol.Code}
	if m.balances[fromKey] < t.Quantity.Amount {
		return fmt.Errorf("insufficient funds: %s has %d, needs %s",
			t.From.Hex(), m.balances[fromKey], t.Quantity)
	}

	m.balances[fromKey] -= t.Quantity.Amount
	m.balances[toKey] += t.Quantity.Amount

	if m.hook != nil && t.To == m.hooked {
		// The hook runs inside the transfer: a rejection unwinds the value
		// movement, mirroring the host ledger's transaction semantics. The
		// lock is released so the hook can issue payouts through us.
		hook := m.hook
		m.mu.Unlock()
		err := hook(t)
		m.mu.Lock()
		if err != nil {
			m.balances[fromKey] += t.Quantity.Amount
			m.balances[toKey] -= t.Quantity.Amount
			return err
		}
	}
	return nil
}
