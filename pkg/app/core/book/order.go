// Package book holds the resting order stores: one buy store and one sell
// store per traded symbol, each with a primary id index and a price-ordered
// secondary index for the matching walk.
package book

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/tangelo-dex/tangelo/pkg/app/core/asset"
)

// Side of the book an order rests on.
type Side int8

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Order is one resting limit order. Bid is the value the owner locked into
// the exchange, Ask the value wanted in return. UnitPrice is always the
// scaled native-per-secondary ratio, regardless of side, so both books rank
// on the same axis.
type Order struct {
	ID        uint64         `json:"id"`
	Owner     common.Address `json:"owner"`
	Bid       asset.Asset    `json:"bid"`
	Ask       asset.Asset    `json:"ask"`
	UnitPrice uint64         `json:"unit_price"`
	CreatedAt int64          `json:"created_at"` // unix milliseconds, tie-break only
}
