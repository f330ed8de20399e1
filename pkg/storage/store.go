// Package storage persists the exchange's books and whitelist in Pebble.
//
// Every action commits its writes as one atomic batch, so the on-disk state
// never reflects a partially applied match. On startup the in-memory stores
// are rebuilt from a full scan.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/tangelo-dex/tangelo/pkg/app/core/book"
	"github.com/tangelo-dex/tangelo/pkg/app/core/whitelist"
)

type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Batch accumulates the writes of one action; Commit applies them atomically.
type Batch struct {
	b *pebble.Batch
}

func (s *Store) NewBatch() *Batch {
	return &Batch{b: s.db.NewBatch()}
}

func (b *Batch) PutOrder(symbol string, side book.Side, o book.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order %d: %w", o.ID, err)
	}
	return b.b.Set(orderKey(symbol, side, o.ID), data, nil)
}

func (b *Batch) DeleteOrder(symbol string, side book.Side, id uint64) error {
	return b.b.Delete(orderKey(symbol, side, id), nil)
}

func (b *Batch) SetNextID(symbol string, side book.Side, id uint64) error {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], id)
	return b.b.Set(nextIDKey(symbol, side), v[:], nil)
}

func (b *Batch) PutWhitelist(e whitelist.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal whitelist %s: %w", e.Symbol.Code, err)
	}
	return b.b.Set(whitelistKey(e.Symbol.Code), data, nil)
}

func (b *Batch) DeleteWhitelist(code string) error {
	return b.b.Delete(whitelistKey(code), nil)
}

// Commit flushes the batch with fsync.
func (b *Batch) Commit() error {
	return b.b.Commit(pebble.Sync)
}

func (b *Batch) Close() error { return b.b.Close() }

// LoadOrders scans all persisted orders in key order.
func (s *Store) LoadOrders(fn func(symbol string, side book.Side, o book.Order) error) error {
	return s.scan(orderPrefix(), func(key, val []byte) error {
		// o:<b|s>:<symbol>:<id BE8>: the id is fixed-width, so the symbol
		// is everything between the side byte and the trailing 9 bytes.
		rest := key[2:]
		if len(rest) < 11 {
			return fmt.Errorf("malformed order key %q", key)
		}
		side := sideFromByte(rest[0])
		symbol := string(rest[2 : len(rest)-9])
		var o book.Order
		if err := json.Unmarshal(val, &o); err != nil {
			return fmt.Errorf("unmarshal order %q: %w", key, err)
		}
		return fn(symbol, side, o)
	})
}

// LoadNextIDs scans the persisted per-store id counters.
func (s *Store) LoadNextIDs(fn func(symbol string, side book.Side, next uint64) error) error {
	return s.scan(nextIDPrefix(), func(key, val []byte) error {
		rest := key[2:]
		side := sideFromByte(rest[0])
		symbol := string(rest[2:])
		if len(val) != 8 {
			return fmt.Errorf("malformed next-id value for %q", key)
		}
		return fn(symbol, side, binary.BigEndian.Uint64(val))
	})
}

// LoadWhitelist scans all persisted whitelist entries.
func (s *Store) LoadWhitelist(fn func(e whitelist.Entry) error) error {
	return s.scan(whitelistPrefix(), func(key, val []byte) error {
		var e whitelist.Entry
		if err := json.Unmarshal(val, &e); err != nil {
			return fmt.Errorf("unmarshal whitelist %q: %w", key, err)
		}
		return fn(e)
	})
}

func (s *Store) scan(prefix []byte, fn func(key, val []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}
