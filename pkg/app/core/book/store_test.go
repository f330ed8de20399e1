package book

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tangelo-dex/tangelo/pkg/app/core"
	"github.com/tangelo-dex/tangelo/pkg/app/core/asset"
)

var (
	tng = asset.Symbol{Code: "TNG", Precision: 4}
	abc = asset.Symbol{Code: "ABC", Precision: 4}

	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func sellOrder(owner common.Address, price uint64, abcAmt, tngAmt int64, at int64) Order {
	return Order{
		Owner:     owner,
		Bid:       asset.New(abc, abcAmt),
		Ask:       asset.New(tng, tngAmt),
		UnitPrice: price,
		CreatedAt: at,
	}
}

func TestInsertAssignsMonotonicIDs(t *testing.T) {
	s := NewStore(Sell)
	a := s.Insert(sellOrder(alice, 1000, 100, 10, 1))
	b := s.Insert(sellOrder(bob, 2000, 100, 20, 2))
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", a.ID, b.ID)
	}
	if s.NextID() != 3 {
		t.Fatalf("NextID = %d, want 3", s.NextID())
	}
}

func TestScanPriceTimePriority(t *testing.T) {
	tests := []struct {
		name   string
		side   Side
		prices []uint64
		want   []uint64 // expected id visit order (ids 1..n in insert order)
	}{
		{name: "sells ascending", side: Sell, prices: []uint64{3000, 1000, 2000}, want: []uint64{2, 3, 1}},
		{name: "buys descending", side: Buy, prices: []uint64{1000, 3000, 2000}, want: []uint64{2, 3, 1}},
		{name: "fifo at equal price", side: Sell, prices: []uint64{1000, 1000, 1000}, want: []uint64{1, 2, 3}},
		{name: "mixed", side: Sell, prices: []uint64{2000, 1000, 2000, 1000}, want: []uint64{2, 4, 1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(tt.side)
			for i, p := range tt.prices {
				s.Insert(sellOrder(alice, p, 100, 10, int64(i)))
			}
			var got []uint64
			s.Scan(func(o Order) bool {
				got = append(got, o.ID)
				return true
			})
			if len(got) != len(tt.want) {
				t.Fatalf("visited %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("visited %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRemoveKeepsIndexesConsistent(t *testing.T) {
	s := NewStore(Sell)
	o1 := s.Insert(sellOrder(alice, 1000, 100, 10, 1))
	o2 := s.Insert(sellOrder(bob, 1000, 200, 20, 2))
	o3 := s.Insert(sellOrder(alice, 2000, 100, 20, 3))

	if _, err := s.Remove(o1.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := s.Get(o1.ID); ok {
		t.Fatal("removed order still retrievable")
	}
	if p, ok := s.BestPrice(); !ok || p != 1000 {
		t.Fatalf("best price = %d, %v; want 1000 at head", p, ok)
	}

	if _, err := s.Remove(o2.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Level 1000 is now empty; the heap must have dropped it.
	if p, ok := s.BestPrice(); !ok || p != 2000 {
		t.Fatalf("best price = %d, %v; want 2000", p, ok)
	}

	if _, err := s.Remove(o2.ID); !errors.Is(err, core.ErrOrderNotFound) {
		t.Fatalf("second remove: err = %v, want ErrOrderNotFound", err)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
	_ = o3
}

func TestReduceWritesBackRemainder(t *testing.T) {
	s := NewStore(Sell)
	o := s.Insert(sellOrder(alice, 1000, 1_000_000, 100_000, 1))

	if err := s.Reduce(o.ID, 400_000, 40_000); err != nil {
		t.Fatalf("reduce: %v", err)
	}
	got, _ := s.Get(o.ID)
	if got.Bid.Amount != 400_000 || got.Ask.Amount != 40_000 {
		t.Fatalf("after reduce: bid=%d ask=%d", got.Bid.Amount, got.Ask.Amount)
	}
	if got.UnitPrice != 1000 {
		t.Fatalf("reduce must not change the ranking key, got %d", got.UnitPrice)
	}

	if err := s.Reduce(o.ID, 500_000, 40_000); err == nil {
		t.Fatal("growing a remainder must fail")
	}
	if err := s.Reduce(999, 1, 1); !errors.Is(err, core.ErrOrderNotFound) {
		t.Fatalf("reduce missing: %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(Buy)
	o := s.Insert(sellOrder(alice, 1000, 100, 10, 1))
	got, _ := s.Get(o.ID)
	got.Bid.Amount = 1
	again, _ := s.Get(o.ID)
	if again.Bid.Amount != 100 {
		t.Fatal("Get must hand out copies, store was mutated through one")
	}
}

func TestRestoreAdvancesNextID(t *testing.T) {
	s := NewStore(Sell)
	o := sellOrder(alice, 1000, 100, 10, 1)
	o.ID = 7
	if err := s.Restore(o); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := s.Restore(o); err == nil {
		t.Fatal("duplicate restore must fail")
	}
	if got := s.Insert(sellOrder(bob, 1000, 100, 10, 2)); got.ID != 8 {
		t.Fatalf("insert after restore: id = %d, want 8", got.ID)
	}
}

func TestLocked(t *testing.T) {
	s := NewStore(Sell)
	s.Insert(sellOrder(alice, 1000, 100, 10, 1))
	s.Insert(sellOrder(alice, 2000, 50, 10, 2))
	s.Insert(sellOrder(bob, 1000, 30, 3, 3))
	if got := s.Locked(alice); got != 150 {
		t.Fatalf("Locked(alice) = %d, want 150", got)
	}
	if got := s.Locked(bob); got != 30 {
		t.Fatalf("Locked(bob) = %d, want 30", got)
	}
}
