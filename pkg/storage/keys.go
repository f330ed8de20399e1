package storage

import (
	"encoding/binary"

	"github.com/tangelo-dex/tangelo/pkg/app/core/book"
)

// Key layout, all prefixed per concern:
//
//	o:<b|s>:<symbol>:<id BE8>  resting order (JSON)
//	n:<b|s>:<symbol>           next order id (BE8)
//	w:<symbol>                 whitelist entry (JSON)
//
// The big-endian id keeps per-symbol order keys sorted by id, which makes the
// startup scan deterministic.

func sideByte(s book.Side) byte {
	if s == book.Buy {
		return 'b'
	}
	return 's'
}

func sideFromByte(b byte) book.Side {
	if b == 'b' {
		return book.Buy
	}
	return book.Sell
}

func orderKey(symbol string, side book.Side, id uint64) []byte {
	k := make([]byte, 0, 4+len(symbol)+9)
	k = append(k, 'o', ':', sideByte(side), ':')
	k = append(k, symbol...)
	k = append(k, ':')
	var idb [8]byte
	binary.BigEndian.PutUint64(idb[:], id)
	return append(k, idb[:]...)
}

func orderPrefix() []byte { return []byte("o:") }

func nextIDKey(symbol string, side book.Side) []byte {
	k := make([]byte, 0, 4+len(symbol))
	k = append(k, 'n', ':', sideByte(side), ':')
	return append(k, symbol...)
}

func nextIDPrefix() []byte { return []byte("n:") }

func whitelistKey(code string) []byte {
	return append([]byte("w:"), code...)
}

func whitelistPrefix() []byte { return []byte("w:") }

// prefixEnd returns the smallest key greater than every key with the prefix.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	end[len(end)-1]++
	return end
}
