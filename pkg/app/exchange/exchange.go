// Package exchange is the settlement layer: it turns inbound ledger
// transfers into matched trades, books remainders as resting orders, and
// handles cancellation and whitelist administration.
//
// Every entry point is one atomic action: it either commits in full
// (persistence batch, ledger payouts, in-memory books, receipts) or fails
// before the first mutation.
package exchange

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tangelo-dex/tangelo/pkg/app/core"
	"github.com/tangelo-dex/tangelo/pkg/app/core/asset"
	"github.com/tangelo-dex/tangelo/pkg/app/core/book"
	"github.com/tangelo-dex/tangelo/pkg/app/core/engine"
	"github.com/tangelo-dex/tangelo/pkg/app/core/ledger"
	"github.com/tangelo-dex/tangelo/pkg/app/core/whitelist"
	"github.com/tangelo-dex/tangelo/pkg/storage"
	"github.com/tangelo-dex/tangelo/pkg/util"
)

// Config pins the exchange's identities: its own ledger account, the admin
// allowed to mutate the whitelist, and the canonical native asset.
type Config struct {
	Account        common.Address
	Admin          common.Address
	NativeSymbol   asset.Symbol
	NativeContract common.Address
}

type pair struct {
	buys  *book.Store
	sells *book.Store
}

// Exchange drives matching and settlement. Single-writer: the host ledger
// delivers one action at a time, so no internal locking beyond what the
// shared registries carry.
type Exchange struct {
	cfg    Config
	log    *zap.Logger
	ledger ledger.Ledger
	wl     *whitelist.Registry
	books  map[string]*pair // secondary symbol code -> book pair
	store  *storage.Store   // nil = in-memory only (tests)
	clock  util.Clock
	obs    []Observer
}

// Option tweaks construction.
type Option func(*Exchange)

func WithStore(s *storage.Store) Option { return func(e *Exchange) { e.store = s } }
func WithClock(c util.Clock) Option     { return func(e *Exchange) { e.clock = c } }

// New wires an exchange. If a persistent store is attached, books, id
// counters, and whitelist entries are rebuilt from it.
func New(cfg Config, l ledger.Ledger, wl *whitelist.Registry, log *zap.Logger, opts ...Option) (*Exchange, error) {
	e := &Exchange{
		cfg:    cfg,
		log:    log,
		ledger: l,
		wl:     wl,
		books:  make(map[string]*pair),
		clock:  util.RealClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store != nil {
		if err := e.rebuild(); err != nil {
			return nil, fmt.Errorf("rebuild from storage: %w", err)
		}
	}
	return e, nil
}

// Subscribe registers a receipt observer. Internal wiring only.
func (e *Exchange) Subscribe(o Observer) { e.obs = append(e.obs, o) }

func (e *Exchange) rebuild() error {
	if err := e.store.LoadWhitelist(func(w whitelist.Entry) error {
		e.wl.Put(w)
		return nil
	}); err != nil {
		return err
	}
	if err := e.store.LoadOrders(func(symbol string, side book.Side, o book.Order) error {
		return e.sideStore(symbol, side).Restore(o)
	}); err != nil {
		return err
	}
	return e.store.LoadNextIDs(func(symbol string, side book.Side, next uint64) error {
		e.sideStore(symbol, side).SetNextID(next)
		return nil
	})
}

func (e *Exchange) getPair(code string) *pair {
	p, ok := e.books[code]
	if !ok {
		p = &pair{buys: book.NewStore(book.Buy), sells: book.NewStore(book.Sell)}
		e.books[code] = p
	}
	return p
}

func (e *Exchange) sideStore(code string, side book.Side) *book.Store {
	p := e.getPair(code)
	if side == book.Buy {
		return p.buys
	}
	return p.sells
}

// Book returns copies of the resting orders on one side of a pair, in
// matching priority order.
func (e *Exchange) Book(code string, side book.Side) []book.Order {
	return e.sideStore(code, side).Orders()
}

// Symbols returns the codes of all pairs with live books.
func (e *Exchange) Symbols() []string {
	out := make([]string, 0, len(e.books))
	for code := range e.books {
		out = append(out, code)
	}
	return out
}

// Whitelist exposes the registry for read paths (API).
func (e *Exchange) Whitelist() *whitelist.Registry { return e.wl }

// Holding is one account balance on one token contract.
type Holding struct {
	Token   common.Address
	Balance asset.Asset
}

// Balances reads an account's ledger holdings of every tradable asset:
// the native asset first, then the whitelisted symbols in code order.
func (e *Exchange) Balances(account common.Address) []Holding {
	entries := e.wl.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Symbol.Code < entries[j].Symbol.Code })

	out := make([]Holding, 0, len(entries)+1)
	out = append(out, Holding{
		Token:   e.cfg.NativeContract,
		Balance: asset.New(e.cfg.NativeSymbol, e.ledger.Balance(e.cfg.NativeContract, account, e.cfg.NativeSymbol.Code)),
	})
	for _, w := range entries {
		out = append(out, Holding{
			Token:   w.Issuer,
			Balance: asset.New(w.Symbol, e.ledger.Balance(w.Issuer, account, w.Symbol.Code)),
		})
	}
	return out
}

// OnTransfer is the deposit hook: the host ledger invokes it for every value
// transfer into the exchange account. A returned error rejects the deposit
// and the host unwinds the transfer itself; no exchange state has changed.
func (e *Exchange) OnTransfer(t ledger.Transfer) error {
	// Outbound settlement and refunds pass through the same hook surface;
	// only inbound deposits carry intent.
	if t.To != e.cfg.Account || t.From == e.cfg.Account {
		return nil
	}

	isNative := t.Quantity.Symbol == e.cfg.NativeSymbol
	if isNative {
		if t.Origin != e.cfg.NativeContract {
			return fmt.Errorf("%w: %s", core.ErrInvalidNativeSource, t.Origin.Hex())
		}
	} else {
		if err := e.wl.AssertAccepted(t.Quantity.Symbol, t.Origin); err != nil {
			return err
		}
	}
	if !t.Quantity.IsPositive() {
		return fmt.Errorf("%w: deposit %s", core.ErrInvalidOrderSpec, t.Quantity)
	}

	intent, err := parseMemo(t.Memo)
	if err != nil {
		return err
	}

	if isNative {
		return e.buy(t, intent)
	}
	return e.sell(t, intent)
}

// buy handles a native deposit: an order to buy intent.Code with it.
func (e *Exchange) buy(t ledger.Transfer, intent tradeIntent) error {
	entry, ok := e.wl.Get(intent.Code)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotWhitelisted, intent.Code)
	}

	askAmount, price, err := counterTerms(t.Quantity.Amount, intent, entry.Symbol.Precision, true)
	if err != nil {
		return err
	}
	incoming := book.Order{
		Owner:     t.From,
		Bid:       t.Quantity,
		Ask:       asset.New(entry.Symbol, askAmount),
		UnitPrice: price,
		CreatedAt: e.clock.Now().UnixMilli(),
	}
	return e.settle(incoming, book.Buy, intent.Code)
}

// sell handles a whitelisted secondary deposit: an order to sell it for the
// native asset. The memo's symbol must name the deposited asset.
func (e *Exchange) sell(t ledger.Transfer, intent tradeIntent) error {
	if intent.Code != t.Quantity.Symbol.Code {
		return fmt.Errorf("%w: memo symbol %s, deposited %s",
			core.ErrInvalidOrderSpec, intent.Code, t.Quantity.Symbol.Code)
	}

	askAmount, price, err := counterTerms(t.Quantity.Amount, intent, e.cfg.NativeSymbol.Precision, false)
	if err != nil {
		return err
	}
	incoming := book.Order{
		Owner:     t.From,
		Bid:       t.Quantity,
		Ask:       asset.New(e.cfg.NativeSymbol, askAmount),
		UnitPrice: price,
		CreatedAt: e.clock.Now().UnixMilli(),
	}
	return e.settle(incoming, book.Sell, intent.Code)
}

// counterTerms resolves the memo intent into the counter-amount and the
// scaled unit price for a deposit of bidAmount. Buying: the bid is native and
// the counter is secondary; selling is the reverse. Both forms must resolve
// to an exact price so ranking and value accounting never diverge.
func counterTerms(bidAmount int64, intent tradeIntent, counterPrecision uint8, buying bool) (int64, uint64, error) {
	if intent.HasCounter {
		askAmount, err := intent.counterAmount(counterPrecision)
		if err != nil {
			return 0, 0, err
		}
		var price uint64
		if buying {
			price, err = asset.UnitPrice(bidAmount, askAmount)
		} else {
			price, err = asset.UnitPrice(askAmount, bidAmount)
		}
		if err != nil {
			return 0, 0, err
		}
		return askAmount, price, nil
	}

	scale := int64(asset.PriceScale)
	var askAmount int64
	var err error
	if buying {
		askAmount, err = exactMulDiv(bidAmount, scale, int64(intent.Price))
	} else {
		askAmount, err = exactMulDiv(bidAmount, int64(intent.Price), scale)
	}
	if err != nil {
		return 0, 0, err
	}
	if askAmount <= 0 {
		return 0, 0, fmt.Errorf("%w: counter-amount is zero at price %s",
			core.ErrInvalidOrderSpec, asset.PriceString(intent.Price))
	}
	return askAmount, intent.Price, nil
}

// exactMulDiv is MulDivFloor that additionally rejects inexact division, so
// a price-form memo always implies a whole number of counter sub-units.
func exactMulDiv(a, b, d int64) (int64, error) {
	floor, err := asset.MulDivFloor(a, b, d)
	if err != nil {
		return 0, err
	}
	ceil, err := asset.MulDivCeil(a, b, d)
	if err != nil {
		return 0, err
	}
	if floor != ceil {
		return 0, fmt.Errorf("%w: %d*%d not divisible by %d", core.ErrInvalidOrderSpec, a, b, d)
	}
	return floor, nil
}

// settle runs the matching pass and commits its plan: persistence batch,
// ledger payouts, in-memory book mutations, receipts. Ordered so that any
// failure happens before the first mutation.
func (e *Exchange) settle(incoming book.Order, side book.Side, code string) error {
	p := e.getPair(code)
	own, opposite := p.buys, p.sells
	if side == book.Sell {
		own, opposite = p.sells, p.buys
	}

	res, err := engine.Match(incoming, side, opposite)
	if err != nil {
		return err
	}

	// Resolve payout token contracts up front: a failure here must abort
	// before anything is written.
	nativeToken := e.cfg.NativeContract
	entry, ok := e.wl.Get(code)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotWhitelisted, code)
	}
	secondaryToken := entry.Issuer

	var bookedID uint64
	if res.Remainder != nil {
		bookedID = own.NextID()
	}
	if err := e.persistMatch(code, side, own, opposite, &res, bookedID); err != nil {
		return err
	}

	// Point of no return: the batch is on disk. Payouts below are covered by
	// locked value, so a ledger refusal is a broken invariant, not an input
	// error.
	for _, f := range res.Fills {
		e.payOut(tokenFor(f.ToMaker.Symbol, e.cfg.NativeSymbol, nativeToken, secondaryToken), f.Maker.Owner, f.ToMaker)
		e.payOut(tokenFor(f.ToTaker.Symbol, e.cfg.NativeSymbol, nativeToken, secondaryToken), incoming.Owner, f.ToTaker)
	}
	if res.Refund != nil {
		e.payOut(tokenFor(res.Refund.Symbol, e.cfg.NativeSymbol, nativeToken, secondaryToken), incoming.Owner, *res.Refund)
	}

	booked, err := res.Apply(opposite, own)
	if err != nil {
		// Stores and plan were computed together; a miss here is corruption.
		panic(fmt.Sprintf("apply staged match: %v", err))
	}

	now := e.clock.Now().UnixMilli()
	for _, f := range res.Fills {
		e.publish(Receipt{
			Kind:   ReceiptTrade,
			Symbol: code,
			Side:   side.Opposite(),
			Order:  f.Maker,
			Taker:  incoming.Owner,
			Paid:   f.ToMaker,
			Got:    f.ToTaker,
			Price:  asset.PriceString(f.Price),
			At:     now,
		})
	}
	if booked != nil {
		e.publish(Receipt{
			Kind:   ReceiptBooked,
			Symbol: code,
			Side:   side,
			Order:  *booked,
			Price:  asset.PriceString(booked.UnitPrice),
			At:     now,
		})
	}
	if res.Refund != nil {
		e.publish(Receipt{
			Kind:   ReceiptRefund,
			Symbol: code,
			Side:   side,
			Order:  incoming,
			Got:    *res.Refund,
			At:     now,
		})
	}

	e.log.Info("deposit settled",
		zap.String("symbol", code),
		zap.String("side", side.String()),
		zap.String("owner", incoming.Owner.Hex()),
		zap.String("bid", incoming.Bid.String()),
		zap.Int("fills", len(res.Fills)),
		zap.Bool("booked", booked != nil),
	)
	return nil
}

// persistMatch writes the whole staged plan as one pebble batch.
func (e *Exchange) persistMatch(code string, side book.Side, own, opposite *book.Store, res *engine.Result, bookedID uint64) error {
	if e.store == nil {
		return nil
	}
	b := e.store.NewBatch()
	defer b.Close()
	oppSide := side.Opposite()
	for _, id := range res.Removed {
		if err := b.DeleteOrder(code, oppSide, id); err != nil {
			return err
		}
	}
	for _, u := range res.Updated {
		m, ok := opposite.Get(u.ID)
		if !ok {
			return fmt.Errorf("%w: %s order %d", core.ErrOrderNotFound, oppSide, u.ID)
		}
		m.Bid.Amount = u.BidAmount
		m.Ask.Amount = u.AskAmount
		if err := b.PutOrder(code, oppSide, m); err != nil {
			return err
		}
	}
	if res.Remainder != nil {
		o := *res.Remainder
		o.ID = bookedID
		if err := b.PutOrder(code, side, o); err != nil {
			return err
		}
		if err := b.SetNextID(code, side, bookedID+1); err != nil {
			return err
		}
	}
	return b.Commit()
}

func tokenFor(sym, native asset.Symbol, nativeToken, secondaryToken common.Address) common.Address {
	if sym == native {
		return nativeToken
	}
	return secondaryToken
}

// payOut moves locked value from the exchange account to a counterparty.
// The value was deposited earlier, so refusal means corrupted accounting.
func (e *Exchange) payOut(token common.Address, to common.Address, q asset.Asset) {
	err := e.ledger.Transfer(ledger.Transfer{
		Origin:   token,
		From:     e.cfg.Account,
		To:       to,
		Quantity: q,
		Memo:     "settlement",
	})
	if err != nil {
		panic(fmt.Sprintf("settlement payout %s to %s: %v", q, to.Hex(), err))
	}
}

func (e *Exchange) publish(r Receipt) {
	for _, o := range e.obs {
		o.Publish(r)
	}
}
