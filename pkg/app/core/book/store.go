package book

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tangelo-dex/tangelo/pkg/app/core"
)

type priceHeap interface {
	heap.Interface
	Peek() uint64
}

// Store is one side of a symbol's book. Primary index: order id. Secondary
// index: price heap over FIFO queues per price level, which yields the
// price-time priority walk. Both views are updated together on every insert
// and remove.
//
// The store owns its orders: Get/Scan/Remove hand out copies, callers never
// hold a live reference across operations.
type Store struct {
	side   Side
	orders map[uint64]*Order   // id -> order
	levels map[uint64][]uint64 // price -> FIFO of ids
	index  map[uint64]uint64   // id -> price
	prices priceHeap
	nextID uint64
}

func NewStore(side Side) *Store {
	var h priceHeap
	if side == Buy {
		h = &MaxPriceHeap{}
	} else {
		h = &MinPriceHeap{}
	}
	heap.Init(h)
	return &Store{
		side:   side,
		orders: make(map[uint64]*Order),
		levels: make(map[uint64][]uint64),
		index:  make(map[uint64]uint64),
		prices: h,
		nextID: 1,
	}
}

func (s *Store) Side() Side { return s.side }
func (s *Store) Len() int   { return len(s.orders) }

// NextID returns the id the next Insert will assign.
func (s *Store) NextID() uint64 { return s.nextID }

// SetNextID advances the id counter (startup rebuild). Never rewinds.
func (s *Store) SetNextID(next uint64) {
	if next > s.nextID {
		s.nextID = next
	}
}

// Insert books a new resting order, assigning the next monotonic id.
// Returns the stored copy.
func (s *Store) Insert(o Order) Order {
	o.ID = s.nextID
	s.nextID++
	s.put(o)
	return o
}

// Restore books an order that already carries an id (startup rebuild from
// persistence). The id counter is advanced past it.
func (s *Store) Restore(o Order) error {
	if o.ID == 0 {
		return fmt.Errorf("restore %s order without id", s.side)
	}
	if _, exists := s.orders[o.ID]; exists {
		return fmt.Errorf("duplicate %s order id %d", s.side, o.ID)
	}
	if o.ID >= s.nextID {
		s.nextID = o.ID + 1
	}
	s.put(o)
	return nil
}

func (s *Store) put(o Order) {
	cp := o
	s.orders[o.ID] = &cp
	if len(s.levels[o.UnitPrice]) == 0 {
		heap.Push(s.prices, o.UnitPrice)
	}
	s.levels[o.UnitPrice] = append(s.levels[o.UnitPrice], o.ID)
	s.index[o.ID] = o.UnitPrice
}

// Get fetches a copy of an order by id.
func (s *Store) Get(id uint64) (Order, bool) {
	o, ok := s.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Remove deletes an order from both indexes and returns its last state.
func (s *Store) Remove(id uint64) (Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s order %d", core.ErrOrderNotFound, s.side, id)
	}
	price := s.index[id]
	queue := s.levels[price]
	for i, qid := range queue {
		if qid == id {
			s.levels[price] = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(s.levels[price]) == 0 {
		delete(s.levels, price)
		s.removePrice(price)
	}
	delete(s.index, id)
	delete(s.orders, id)
	return *o, nil
}

// Reduce writes back a partially filled order's remaining bid and ask.
// Ranking (price, queue position) is unchanged: the remainder keeps its spot.
func (s *Store) Reduce(id uint64, bidAmount, askAmount int64) error {
	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s order %d", core.ErrOrderNotFound, s.side, id)
	}
	if bidAmount <= 0 || bidAmount > o.Bid.Amount || askAmount < 0 || askAmount > o.Ask.Amount {
		return fmt.Errorf("%w: reduce %s order %d to %d/%d", core.ErrArithmeticOverflow, s.side, id, bidAmount, askAmount)
	}
	o.Bid.Amount = bidAmount
	o.Ask.Amount = askAmount
	return nil
}

// BestPrice returns the best resting price: highest for buys, lowest for sells.
func (s *Store) BestPrice() (uint64, bool) {
	if s.prices.Len() == 0 {
		return 0, false
	}
	return s.prices.Peek(), true
}

// Scan walks the book in matching priority order (best price first, FIFO
// within a level), passing copies. Return false from fn to stop.
func (s *Store) Scan(fn func(Order) bool) {
	sorted := s.sortedPrices()
	for _, p := range sorted {
		for _, id := range s.levels[p] {
			if !fn(*s.orders[id]) {
				return
			}
		}
	}
}

// Orders returns all resting orders in matching priority order.
func (s *Store) Orders() []Order {
	out := make([]Order, 0, len(s.orders))
	s.Scan(func(o Order) bool {
		out = append(out, o)
		return true
	})
	return out
}

// Locked sums the bid amounts an owner has resting on this side.
func (s *Store) Locked(owner common.Address) int64 {
	var total int64
	for _, o := range s.orders {
		if o.Owner == owner {
			total += o.Bid.Amount
		}
	}
	return total
}

func (s *Store) sortedPrices() []uint64 {
	out := make([]uint64, 0, len(s.levels))
	for p := range s.levels {
		out = append(out, p)
	}
	if s.side == Buy {
		sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	}
	return out
}

// removePrice drops a price level from the heap (linear, but levels are few).
func (s *Store) removePrice(price uint64) {
	switch h := s.prices.(type) {
	case *MaxPriceHeap:
		for i := 0; i < h.Len(); i++ {
			if (*h)[i] == price {
				heap.Remove(h, i)
				return
			}
		}
	case *MinPriceHeap:
		for i := 0; i < h.Len(); i++ {
			if (*h)[i] == price {
				heap.Remove(h, i)
				return
			}
		}
	}
}
