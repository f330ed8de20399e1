package exchange

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tangelo-dex/tangelo/pkg/app/core"
	"github.com/tangelo-dex/tangelo/pkg/app/core/asset"
)

// Memo schema. Every deposit carries its trade intent in the transfer memo,
// in one of two delimited textual forms:
//
//	<SYMBOL>:<PRICE>    limit at PRICE, a decimal with at most 4 fractional
//	                    digits: native units per one whole secondary unit.
//	                    e.g. "ABC:0.2500"
//	<SYMBOL>:=<AMOUNT>  ask for exactly AMOUNT of the counter asset, a
//	                    decimal at that asset's precision. e.g. "ABC:=100"
//
// SYMBOL is always the secondary (non-native) symbol of the traded pair; the
// side is implied by the deposited asset. Anything else is rejected as an
// invalid order spec and the deposit bounces.

type tradeIntent struct {
	Code       string
	Price      uint64 // scaled unit price; zero in counter form
	Counter    decimal.Decimal
	HasCounter bool
}

func parseMemo(memo string) (tradeIntent, error) {
	memo = strings.TrimSpace(memo)
	i := strings.IndexByte(memo, ':')
	if i <= 0 || i == len(memo)-1 {
		return tradeIntent{}, fmt.Errorf("%w: memo %q", core.ErrInvalidOrderSpec, memo)
	}
	code, rest := memo[:i], memo[i+1:]
	if _, err := asset.NewSymbol(code, 0); err != nil {
		return tradeIntent{}, fmt.Errorf("%w: memo symbol %q", core.ErrInvalidOrderSpec, code)
	}

	if strings.HasPrefix(rest, "=") {
		d, err := decimal.NewFromString(rest[1:])
		if err != nil || d.Sign() <= 0 {
			return tradeIntent{}, fmt.Errorf("%w: memo counter-amount %q", core.ErrInvalidOrderSpec, rest)
		}
		return tradeIntent{Code: code, Counter: d, HasCounter: true}, nil
	}

	price, err := asset.ParsePrice(rest)
	if err != nil {
		return tradeIntent{}, err
	}
	return tradeIntent{Code: code, Price: price}, nil
}

// counterAmount converts the explicit counter form into sub-units at the
// counter asset's precision. Must land exactly on a sub-unit.
func (ti tradeIntent) counterAmount(precision uint8) (int64, error) {
	scaled := ti.Counter.Shift(int32(precision))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: counter-amount %s exceeds precision %d",
			core.ErrInvalidOrderSpec, ti.Counter, precision)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: counter-amount %s", core.ErrArithmeticOverflow, ti.Counter)
	}
	n := scaled.IntPart()
	if n <= 0 {
		return 0, fmt.Errorf("%w: counter-amount %s", core.ErrInvalidOrderSpec, ti.Counter)
	}
	return n, nil
}
