package exchange

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tangelo-dex/tangelo/pkg/app/core"
	"github.com/tangelo-dex/tangelo/pkg/app/core/asset"
	"github.com/tangelo-dex/tangelo/pkg/app/core/book"
	"github.com/tangelo-dex/tangelo/pkg/app/core/ledger"
	"github.com/tangelo-dex/tangelo/pkg/app/core/whitelist"
)

// Actions are the exchange's externally callable units of work, each atomic.
// Deposits are not an Action: they arrive through the ledger's transfer hook.

type Action interface {
	isAction()
}

type CancelBuy struct {
	Caller common.Address
	Symbol string
	ID     uint64
}

type CancelSell struct {
	Caller common.Address
	Symbol string
	ID     uint64
}

type SetWhitelist struct {
	Caller common.Address
	Symbol asset.Symbol
	Issuer common.Address
}

type RemoveWhitelist struct {
	Caller common.Address
	Symbol string
}

func (CancelBuy) isAction()       {}
func (CancelSell) isAction()      {}
func (SetWhitelist) isAction()    {}
func (RemoveWhitelist) isAction() {}

// Apply dispatches a typed action to its handler.
func (e *Exchange) Apply(a Action) error {
	switch act := a.(type) {
	case CancelBuy:
		return e.cancel(book.Buy, act.Caller, act.Symbol, act.ID)
	case CancelSell:
		return e.cancel(book.Sell, act.Caller, act.Symbol, act.ID)
	case SetWhitelist:
		return e.setWhitelist(act)
	case RemoveWhitelist:
		return e.removeWhitelist(act)
	default:
		return fmt.Errorf("unknown action %T", a)
	}
}

// cancel removes a resting order and refunds its remaining locked value.
// The only path besides matching by which locked value leaves the books.
func (e *Exchange) cancel(side book.Side, caller common.Address, code string, id uint64) error {
	store := e.sideStore(code, side)
	o, ok := store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s order %d on %s", core.ErrOrderNotFound, side, id, code)
	}
	if o.Owner != caller {
		return fmt.Errorf("%w: %s order %d not owned by %s", core.ErrUnauthorized, side, id, caller.Hex())
	}

	// The refund token resolves through the whitelist, like settlement: a
	// delisted symbol's sell orders cannot be refunded until re-whitelisted.
	var token common.Address
	if o.Bid.Symbol == e.cfg.NativeSymbol {
		token = e.cfg.NativeContract
	} else {
		entry, ok := e.wl.Get(o.Bid.Symbol.Code)
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrNotWhitelisted, o.Bid.Symbol.Code)
		}
		token = entry.Issuer
	}

	if e.store != nil {
		b := e.store.NewBatch()
		defer b.Close()
		if err := b.DeleteOrder(code, side, id); err != nil {
			return err
		}
		if err := b.Commit(); err != nil {
			return err
		}
	}

	if err := e.ledger.Transfer(ledger.Transfer{
		Origin:   token,
		From:     e.cfg.Account,
		To:       o.Owner,
		Quantity: o.Bid,
		Memo:     "order cancelled",
	}); err != nil {
		panic(fmt.Sprintf("cancel refund %s to %s: %v", o.Bid, o.Owner.Hex(), err))
	}
	if _, err := store.Remove(id); err != nil {
		panic(fmt.Sprintf("remove cancelled order %d: %v", id, err))
	}

	e.publish(Receipt{
		Kind:   ReceiptCancelled,
		Symbol: code,
		Side:   side,
		Order:  o,
		Got:    o.Bid,
		Price:  asset.PriceString(o.UnitPrice),
		At:     e.clock.Now().UnixMilli(),
	})
	e.log.Info("order cancelled",
		zap.String("symbol", code),
		zap.String("side", side.String()),
		zap.Uint64("id", id),
		zap.String("refund", o.Bid.String()),
	)
	return nil
}

func (e *Exchange) setWhitelist(act SetWhitelist) error {
	if err := e.wl.Authorize(act.Caller); err != nil {
		return err
	}
	if act.Symbol.Code == e.cfg.NativeSymbol.Code {
		return fmt.Errorf("%w: cannot whitelist the native symbol", core.ErrInvalidOrderSpec)
	}
	entry := whitelist.Entry{Symbol: act.Symbol, Issuer: act.Issuer}
	if e.store != nil {
		b := e.store.NewBatch()
		defer b.Close()
		if err := b.PutWhitelist(entry); err != nil {
			return err
		}
		if err := b.Commit(); err != nil {
			return err
		}
	}
	e.wl.Put(entry)
	e.log.Info("whitelist set",
		zap.String("symbol", act.Symbol.Code),
		zap.Uint8("precision", act.Symbol.Precision),
		zap.String("issuer", act.Issuer.Hex()),
	)
	return nil
}

func (e *Exchange) removeWhitelist(act RemoveWhitelist) error {
	if err := e.wl.Authorize(act.Caller); err != nil {
		return err
	}
	if _, ok := e.wl.Get(act.Symbol); !ok {
		return fmt.Errorf("%w: %s", core.ErrNotWhitelisted, act.Symbol)
	}
	if e.store != nil {
		b := e.store.NewBatch()
		defer b.Close()
		if err := b.DeleteWhitelist(act.Symbol); err != nil {
			return err
		}
		if err := b.Commit(); err != nil {
			return err
		}
	}
	e.wl.Drop(act.Symbol)
	e.log.Info("whitelist removed", zap.String("symbol", act.Symbol))
	return nil
}
