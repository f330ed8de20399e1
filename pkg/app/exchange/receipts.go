package exchange

import (
	"go.uber.org/zap"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tangelo-dex/tangelo/pkg/app/core/asset"
	"github.com/tangelo-dex/tangelo/pkg/app/core/book"
)

// Receipt kinds. Receipts are emitted only by the exchange itself, after an
// action has fully committed; observers cannot inject them.
const (
	ReceiptTrade     = "trade"     // a fill happened at Order's price
	ReceiptBooked    = "booked"    // a remainder was booked as a resting order
	ReceiptCancelled = "cancelled" // a resting order was cancelled and refunded
	ReceiptRefund    = "refund"    // leftover deposit returned without booking
)

// Receipt records the terms of one trade or order lifecycle event for
// external observers and indexers.
type Receipt struct {
	Kind   string         `json:"kind"`
	Symbol string         `json:"symbol"` // traded secondary symbol code
	Side   book.Side      `json:"side"`   // side of Order
	Order  book.Order     `json:"order"`  // maker order state before the fill, or the booked/cancelled order
	Taker  common.Address `json:"taker"`
	Paid   asset.Asset    `json:"paid"`            // what the taker paid the maker
	Got    asset.Asset    `json:"got"`             // what the taker received
	Price  string         `json:"price,omitempty"` // execution price, decimal
	At     int64          `json:"at"`              // unix milliseconds
}

// Observer receives committed receipts. Registration happens at wiring time
// through Subscribe; there is no external registration surface.
type Observer interface {
	Publish(r Receipt)
}

// LogObserver writes every receipt to the structured log.
type LogObserver struct {
	Log *zap.Logger
}

func (o LogObserver) Publish(r Receipt) {
	o.Log.Info("receipt",
		zap.String("kind", r.Kind),
		zap.String("symbol", r.Symbol),
		zap.String("side", r.Side.String()),
		zap.Uint64("order_id", r.Order.ID),
		zap.String("owner", r.Order.Owner.Hex()),
		zap.String("bid", r.Order.Bid.String()),
		zap.String("ask", r.Order.Ask.String()),
		zap.String("price", r.Price),
		zap.Int64("at", r.At),
	)
}
