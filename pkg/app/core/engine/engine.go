// Package engine implements the price-time priority matching pass.
//
// A match is computed as a plan against a read-only view of the opposite
// book: fills, maker removals/reductions, and the taker remainder are staged
// in a Result and applied only after the whole pass has succeeded. A failed
// pass leaves every store untouched.
package engine

import (
	"fmt"

	"github.com/tangelo-dex/tangelo/pkg/app/core"
	"github.com/tangelo-dex/tangelo/pkg/app/core/asset"
	"github.com/tangelo-dex/tangelo/pkg/app/core/book"
)

// Fill is one trade execution at the resting order's price.
type Fill struct {
	Maker   book.Order  // resting order state before this fill
	ToMaker asset.Asset // paid to the maker out of the taker's deposit
	ToTaker asset.Asset // paid to the taker out of the maker's locked bid
	Price   uint64      // resting order's unit price (scaled)
}

// Update is a maker remainder write-back.
type Update struct {
	ID        uint64
	BidAmount int64
	AskAmount int64
}

// Result is the staged outcome of one matching pass.
type Result struct {
	Fills   []Fill
	Removed []uint64 // fully consumed maker ids
	Updated []Update // partially consumed maker remainders

	// Remainder is the unmatched portion to book as a new resting order,
	// carrying the incoming order's original unit price. Nil if none.
	Remainder *book.Order

	// Refund is leftover deposit that cannot be booked because the incoming
	// ask was already satisfied in full; it goes straight back to the owner.
	Refund *asset.Asset
}

// Match runs one pass of an incoming order of the given side against the
// opposite store. The store is not mutated; apply the result with Apply.
func Match(in book.Order, side book.Side, opposite *book.Store) (Result, error) {
	if !in.Bid.IsPositive() || !in.Ask.IsPositive() || in.UnitPrice == 0 {
		return Result{}, fmt.Errorf("%w: bid=%s ask=%s price=%d",
			core.ErrInvalidOrderSpec, in.Bid, in.Ask, in.UnitPrice)
	}
	if opposite.Side() != side.Opposite() {
		return Result{}, fmt.Errorf("matching %s order against %s store", side, opposite.Side())
	}

	var res Result
	var scanErr error
	bidLeft := in.Bid.Amount // what the taker still offers
	askLeft := in.Ask.Amount // what the taker still wants

	opposite.Scan(func(m book.Order) bool {
		// Price-time priority: the walk is best-price-first, so the first
		// maker past the taker's limit ends the pass.
		if side == book.Buy && m.UnitPrice > in.UnitPrice {
			return false
		}
		if side == book.Sell && m.UnitPrice < in.UnitPrice {
			return false
		}

		var qty, pay int64 // qty in secondary units, pay in native units
		var err error
		if side == book.Buy {
			// Taker offers native, maker offers secondary (m.Bid) and asks
			// native (m.Ask). How much secondary the remaining budget buys
			// at the maker's ratio, floored:
			qty, err = asset.MulDivFloor(bidLeft, m.Bid.Amount, m.Ask.Amount)
			if err != nil {
				scanErr = err
				return false
			}
			if qty > m.Bid.Amount {
				qty = m.Bid.Amount
			}
			if qty <= 0 {
				return false // budget cannot afford one sub-unit at the best price
			}
			if qty == m.Bid.Amount {
				pay = m.Ask.Amount
			} else {
				// Round the native cost toward the resting seller.
				pay, err = asset.MulDivCeil(qty, m.Ask.Amount, m.Bid.Amount)
				if err != nil {
					scanErr = err
					return false
				}
			}
			res.Fills = append(res.Fills, Fill{
				Maker:   m,
				ToMaker: asset.New(in.Bid.Symbol, pay),
				ToTaker: asset.New(m.Bid.Symbol, qty),
				Price:   m.UnitPrice,
			})
			bidLeft -= pay
			askLeft -= qty
		} else {
			// Taker offers secondary, maker offers native (m.Bid) and asks
			// secondary (m.Ask).
			qty = bidLeft
			if qty > m.Ask.Amount {
				qty = m.Ask.Amount
			}
			if qty == m.Ask.Amount {
				pay = m.Bid.Amount
			} else {
				// Round the native payout toward the resting buyer.
				pay, err = asset.MulDivFloor(qty, m.Bid.Amount, m.Ask.Amount)
				if err != nil {
					scanErr = err
					return false
				}
			}
			if qty <= 0 || pay <= 0 {
				return false // sliver would trade for nothing
			}
			res.Fills = append(res.Fills, Fill{
				Maker:   m,
				ToMaker: asset.New(in.Bid.Symbol, qty),
				ToTaker: asset.New(m.Bid.Symbol, pay),
				Price:   m.UnitPrice,
			})
			bidLeft -= qty
			askLeft -= pay
		}

		makerBid := m.Bid.Amount
		makerAsk := m.Ask.Amount
		if side == book.Buy {
			makerBid -= qty
			makerAsk -= pay
		} else {
			makerBid -= pay
			makerAsk -= qty
		}
		if makerBid == 0 {
			res.Removed = append(res.Removed, m.ID)
		} else {
			res.Updated = append(res.Updated, Update{ID: m.ID, BidAmount: makerBid, AskAmount: makerAsk})
		}
		return bidLeft > 0
	})
	if scanErr != nil {
		return Result{}, scanErr
	}

	if bidLeft > 0 {
		if askLeft > 0 {
			res.Remainder = &book.Order{
				Owner:     in.Owner,
				Bid:       asset.New(in.Bid.Symbol, bidLeft),
				Ask:       asset.New(in.Ask.Symbol, askLeft),
				UnitPrice: in.UnitPrice,
				CreatedAt: in.CreatedAt,
			}
		} else {
			// Ask already satisfied in full at better prices: nothing valid
			// to book, the leftover deposit returns to the owner.
			left := asset.New(in.Bid.Symbol, bidLeft)
			res.Refund = &left
		}
	}
	return res, nil
}

// Apply commits the staged plan to the in-memory stores: maker removals and
// reductions on the opposite side, remainder booking on the incoming side.
// Returns the booked resting order, if any.
func (r *Result) Apply(opposite, own *book.Store) (*book.Order, error) {
	for _, id := range r.Removed {
		if _, err := opposite.Remove(id); err != nil {
			return nil, err
		}
	}
	for _, u := range r.Updated {
		if err := opposite.Reduce(u.ID, u.BidAmount, u.AskAmount); err != nil {
			return nil, err
		}
	}
	if r.Remainder == nil {
		return nil, nil
	}
	booked := own.Insert(*r.Remainder)
	return &booked, nil
}
