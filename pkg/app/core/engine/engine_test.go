package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tangelo-dex/tangelo/pkg/app/core"
	"github.com/tangelo-dex/tangelo/pkg/app/core/asset"
	"github.com/tangelo-dex/tangelo/pkg/app/core/book"
)

var (
	tng = asset.Symbol{Code: "TNG", Precision: 4}
	abc = asset.Symbol{Code: "ABC", Precision: 4}

	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

// makerSell offers abcAmt ABC against tngAmt TNG.
func makerSell(owner common.Address, abcAmt, tngAmt int64, at int64) book.Order {
	price, err := asset.UnitPrice(tngAmt, abcAmt)
	if err != nil {
		panic(err)
	}
	return book.Order{
		Owner:     owner,
		Bid:       asset.New(abc, abcAmt),
		Ask:       asset.New(tng, tngAmt),
		UnitPrice: price,
		CreatedAt: at,
	}
}

// takerBuy offers tngAmt TNG against abcAmt ABC.
func takerBuy(owner common.Address, tngAmt, abcAmt int64, at int64) book.Order {
	price, err := asset.UnitPrice(tngAmt, abcAmt)
	if err != nil {
		panic(err)
	}
	return book.Order{
		Owner:     owner,
		Bid:       asset.New(tng, tngAmt),
		Ask:       asset.New(abc, abcAmt),
		UnitPrice: price,
		CreatedAt: at,
	}
}

func TestMatchFullFill(t *testing.T) {
	sells := book.NewStore(book.Sell)
	m := sells.Insert(makerSell(alice, 1_000_000, 100_000, 1)) // 100 ABC at 0.1 TNG

	res, err := Match(takerBuy(bob, 100_000, 1_000_000, 2), book.Buy, sells)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res.Fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(res.Fills))
	}
	f := res.Fills[0]
	if f.ToMaker.Amount != 100_000 || f.ToMaker.Symbol != tng {
		t.Fatalf("to maker = %s", f.ToMaker)
	}
	if f.ToTaker.Amount != 1_000_000 || f.ToTaker.Symbol != abc {
		t.Fatalf("to taker = %s", f.ToTaker)
	}
	if f.Price != 1000 {
		t.Fatalf("fill price = %d, want 1000", f.Price)
	}
	if len(res.Removed) != 1 || res.Removed[0] != m.ID {
		t.Fatalf("removed = %v, want [%d]", res.Removed, m.ID)
	}
	if res.Remainder != nil || res.Refund != nil {
		t.Fatalf("full fill must leave no remainder and no refund: %+v", res)
	}
	// The store is a read-only view during Match.
	if sells.Len() != 1 {
		t.Fatal("match mutated the store")
	}
}

func TestMatchPartialMakerReduced(t *testing.T) {
	sells := book.NewStore(book.Sell)
	m := sells.Insert(makerSell(alice, 1_000_000, 100_000, 1))

	res, err := Match(takerBuy(bob, 40_000, 400_000, 2), book.Buy, sells)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res.Fills) != 1 || res.Fills[0].ToMaker.Amount != 40_000 || res.Fills[0].ToTaker.Amount != 400_000 {
		t.Fatalf("fills = %+v", res.Fills)
	}
	want := Update{ID: m.ID, BidAmount: 600_000, AskAmount: 60_000}
	if len(res.Updated) != 1 || res.Updated[0] != want {
		t.Fatalf("updated = %+v, want %+v", res.Updated, want)
	}
	if len(res.Removed) != 0 || res.Remainder != nil || res.Refund != nil {
		t.Fatalf("unexpected extras: %+v", res)
	}
}

func TestMatchRemainderBooked(t *testing.T) {
	sells := book.NewStore(book.Sell)
	sells.Insert(makerSell(alice, 1_000_000, 100_000, 1))

	res, err := Match(takerBuy(bob, 200_000, 2_000_000, 2), book.Buy, sells)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res.Fills) != 1 || res.Fills[0].ToTaker.Amount != 1_000_000 {
		t.Fatalf("fills = %+v", res.Fills)
	}
	if res.Remainder == nil {
		t.Fatal("want remainder")
	}
	if res.Remainder.Bid.Amount != 100_000 || res.Remainder.Ask.Amount != 1_000_000 {
		t.Fatalf("remainder = bid %s ask %s", res.Remainder.Bid, res.Remainder.Ask)
	}
	if res.Remainder.UnitPrice != 1000 {
		t.Fatalf("remainder keeps the taker's price, got %d", res.Remainder.UnitPrice)
	}
	if res.Refund != nil {
		t.Fatalf("refund = %s, want none", *res.Refund)
	}
}

func TestMatchRefundWhenAskSatisfiedEarly(t *testing.T) {
	// The maker offers more than the taker asks, at a better price than the
	// taker's limit. The taker's leftover budget has nothing left to want.
	sells := book.NewStore(book.Sell)
	sells.Insert(makerSell(alice, 1_500_000, 150_000, 1)) // price 1000

	in := book.Order{
		Owner:     bob,
		Bid:       asset.New(tng, 200_000),
		Ask:       asset.New(abc, 1_000_000),
		UnitPrice: 2000,
		CreatedAt: 2,
	}
	res, err := Match(in, book.Buy, sells)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res.Fills) != 1 || res.Fills[0].ToMaker.Amount != 150_000 || res.Fills[0].ToTaker.Amount != 1_500_000 {
		t.Fatalf("fills = %+v", res.Fills)
	}
	if res.Remainder != nil {
		t.Fatalf("remainder = %+v, want none", res.Remainder)
	}
	if res.Refund == nil || res.Refund.Amount != 50_000 || res.Refund.Symbol != tng {
		t.Fatalf("refund = %+v, want 5.0000 TNG", res.Refund)
	}
}

func TestMatchPricePriority(t *testing.T) {
	sells := book.NewStore(book.Sell)
	expensive := sells.Insert(makerSell(alice, 500_000, 100_000, 1)) // price 2000
	cheap := sells.Insert(makerSell(bob, 500_000, 50_000, 2))       // price 1000

	in := book.Order{
		Owner:     carol,
		Bid:       asset.New(tng, 150_000),
		Ask:       asset.New(abc, 750_000),
		UnitPrice: 2000,
		CreatedAt: 3,
	}
	res, err := Match(in, book.Buy, sells)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res.Fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(res.Fills))
	}
	if res.Fills[0].Maker.ID != cheap.ID || res.Fills[0].Price != 1000 {
		t.Fatalf("first fill against %d at %d, want the cheaper maker first", res.Fills[0].Maker.ID, res.Fills[0].Price)
	}
	if res.Fills[1].Maker.ID != expensive.ID || res.Fills[1].Price != 2000 {
		t.Fatalf("second fill = %+v", res.Fills[1])
	}
	// 50_000 TNG takes all of cheap, the remaining 100_000 takes all of expensive.
	if res.Fills[0].ToMaker.Amount != 50_000 || res.Fills[1].ToMaker.Amount != 100_000 {
		t.Fatalf("payments = %d, %d", res.Fills[0].ToMaker.Amount, res.Fills[1].ToMaker.Amount)
	}
}

func TestMatchTimePriority(t *testing.T) {
	sells := book.NewStore(book.Sell)
	first := sells.Insert(makerSell(alice, 400_000, 40_000, 1))
	second := sells.Insert(makerSell(bob, 400_000, 40_000, 2)) // same price 1000

	res, err := Match(takerBuy(carol, 60_000, 600_000, 3), book.Buy, sells)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res.Fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(res.Fills))
	}
	if res.Fills[0].Maker.ID != first.ID || res.Fills[1].Maker.ID != second.ID {
		t.Fatalf("fill order = %d, %d; want insertion order", res.Fills[0].Maker.ID, res.Fills[1].Maker.ID)
	}
	if len(res.Removed) != 1 || res.Removed[0] != first.ID {
		t.Fatalf("removed = %v", res.Removed)
	}
	want := Update{ID: second.ID, BidAmount: 200_000, AskAmount: 20_000}
	if len(res.Updated) != 1 || res.Updated[0] != want {
		t.Fatalf("updated = %+v, want %+v", res.Updated, want)
	}
}

func TestMatchStopsAtPriceLimit(t *testing.T) {
	sells := book.NewStore(book.Sell)
	sells.Insert(makerSell(alice, 500_000, 100_000, 1)) // price 2000

	res, err := Match(takerBuy(bob, 100_000, 1_000_000, 2), book.Buy, sells) // limit 1000
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res.Fills) != 0 {
		t.Fatalf("fills = %+v, want none past the limit", res.Fills)
	}
	if res.Remainder == nil || res.Remainder.Bid.Amount != 100_000 {
		t.Fatalf("the whole order should be booked, remainder = %+v", res.Remainder)
	}
}

func TestMatchIncomingSell(t *testing.T) {
	buys := book.NewStore(book.Buy)
	m := buys.Insert(takerBuy(alice, 100_000, 1_000_000, 1)) // resting buy at 1000

	in := book.Order{
		Owner:     bob,
		Bid:       asset.New(abc, 400_000),
		Ask:       asset.New(tng, 40_000),
		UnitPrice: 1000,
		CreatedAt: 2,
	}
	res, err := Match(in, book.Sell, buys)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res.Fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(res.Fills))
	}
	f := res.Fills[0]
	if f.ToMaker.Amount != 400_000 || f.ToMaker.Symbol != abc {
		t.Fatalf("to maker = %s", f.ToMaker)
	}
	if f.ToTaker.Amount != 40_000 || f.ToTaker.Symbol != tng {
		t.Fatalf("to taker = %s", f.ToTaker)
	}
	want := Update{ID: m.ID, BidAmount: 60_000, AskAmount: 600_000}
	if len(res.Updated) != 1 || res.Updated[0] != want {
		t.Fatalf("updated = %+v, want %+v", res.Updated, want)
	}
	if res.Remainder != nil || res.Refund != nil {
		t.Fatalf("unexpected extras: %+v", res)
	}
}

func TestMatchDeterministic(t *testing.T) {
	sells := book.NewStore(book.Sell)
	sells.Insert(makerSell(alice, 300_000, 60_000, 1))
	sells.Insert(makerSell(bob, 700_000, 70_000, 2))
	sells.Insert(makerSell(carol, 700_000, 70_000, 3))

	in := takerBuy(carol, 120_000, 1_200_000, 4)
	a, err := Match(in, book.Buy, sells)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	b, err := Match(in, book.Buy, sells)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same input, different plans:\n%+v\n%+v", a, b)
	}
}

func TestMatchRejectsBadInput(t *testing.T) {
	sells := book.NewStore(book.Sell)
	tests := []struct {
		name string
		in   book.Order
	}{
		{"zero bid", book.Order{Bid: asset.New(tng, 0), Ask: asset.New(abc, 1), UnitPrice: 1000}},
		{"zero ask", book.Order{Bid: asset.New(tng, 1), Ask: asset.New(abc, 0), UnitPrice: 1000}},
		{"zero price", book.Order{Bid: asset.New(tng, 1), Ask: asset.New(abc, 1), UnitPrice: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Match(tt.in, book.Buy, sells); !errors.Is(err, core.ErrInvalidOrderSpec) {
				t.Fatalf("err = %v, want ErrInvalidOrderSpec", err)
			}
		})
	}
}

func TestApplyCommitsPlan(t *testing.T) {
	sells := book.NewStore(book.Sell)
	buys := book.NewStore(book.Buy)
	removed := sells.Insert(makerSell(alice, 400_000, 40_000, 1))
	kept := sells.Insert(makerSell(bob, 400_000, 80_000, 2)) // price 2000, past the limit

	res, err := Match(takerBuy(carol, 100_000, 1_000_000, 3), book.Buy, sells)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	booked, err := res.Apply(sells, buys)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if _, ok := sells.Get(removed.ID); ok {
		t.Fatal("consumed maker still resting")
	}
	if _, ok := sells.Get(kept.ID); !ok {
		t.Fatal("maker past the taker's limit must be untouched")
	}
	if booked == nil {
		t.Fatal("want a booked remainder")
	}
	got, ok := buys.Get(booked.ID)
	if !ok {
		t.Fatal("booked remainder not in the buy store")
	}
	// 40_000 TNG spent on 400_000 ABC, 60_000 TNG rests asking 600_000 ABC.
	if got.Bid.Amount != 60_000 || got.Ask.Amount != 600_000 {
		t.Fatalf("booked = bid %s ask %s", got.Bid, got.Ask)
	}
}
