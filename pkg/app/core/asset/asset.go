// Package asset models exact fixed-precision asset quantities and the scaled
// unit price used to rank orders. All arithmetic is integer; decimal strings
// are converted with shopspring/decimal so no float ever touches a balance.
package asset

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tangelo-dex/tangelo/pkg/app/core"
)

// PriceScale is the fixed scale of unit prices: a price of 10_000 means one
// whole secondary unit costs exactly one whole native unit.
const PriceScale uint64 = 10_000

// MaxPrecision bounds symbol precision so amount<->decimal conversion cannot
// overflow int64 for realistic supplies.
const MaxPrecision uint8 = 12

// Symbol identifies an asset: code plus fixed decimal precision.
// "4,TNG" style: amounts are stored as int64 at 10^Precision sub-units.
type Symbol struct {
	Code      string `json:"code"`
	Precision uint8  `json:"precision"`
}

func NewSymbol(code string, precision uint8) (Symbol, error) {
	if code == "" || len(code) > 7 || precision > MaxPrecision {
		return Symbol{}, fmt.Errorf("%w: bad symbol %q/%d", core.ErrInvalidOrderSpec, code, precision)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return Symbol{}, fmt.Errorf("%w: symbol code must be A-Z: %q", core.ErrInvalidOrderSpec, code)
		}
	}
	return Symbol{Code: code, Precision: precision}, nil
}

func (s Symbol) String() string { return s.Code }

// Asset is an exact quantity of one symbol, in integer sub-units.
type Asset struct {
	Symbol Symbol `json:"symbol"`
	Amount int64  `json:"amount"`
}

func New(sym Symbol, amount int64) Asset {
	return Asset{Symbol: sym, Amount: amount}
}

// Parse reads the canonical textual form "10.0000 TNG". The number of
// fractional digits is the symbol precision, exactly as written.
func Parse(s string) (Asset, error) {
	parts := strings.Split(strings.TrimSpace(s), " ")
	if len(parts) != 2 {
		return Asset{}, fmt.Errorf("%w: asset %q", core.ErrInvalidOrderSpec, s)
	}
	var precision uint8
	if dot := strings.IndexByte(parts[0], '.'); dot >= 0 {
		frac := len(parts[0]) - dot - 1
		if frac == 0 || frac > int(MaxPrecision) {
			return Asset{}, fmt.Errorf("%w: asset %q", core.ErrInvalidOrderSpec, s)
		}
		precision = uint8(frac)
	}
	sym, err := NewSymbol(parts[1], precision)
	if err != nil {
		return Asset{}, err
	}
	d, err := decimal.NewFromString(parts[0])
	if err != nil {
		return Asset{}, fmt.Errorf("%w: asset amount %q", core.ErrInvalidOrderSpec, parts[0])
	}
	scaled := d.Shift(int32(precision))
	if !scaled.IsInteger() {
		return Asset{}, fmt.Errorf("%w: asset %q exceeds precision %d", core.ErrInvalidOrderSpec, s, precision)
	}
	if !scaled.BigInt().IsInt64() {
		return Asset{}, fmt.Errorf("%w: asset %q", core.ErrArithmeticOverflow, s)
	}
	return Asset{Symbol: sym, Amount: scaled.IntPart()}, nil
}

// String renders the canonical form with exactly Precision fractional digits.
func (a Asset) String() string {
	d := decimal.New(a.Amount, -int32(a.Symbol.Precision))
	return d.StringFixed(int32(a.Symbol.Precision)) + " " + a.Symbol.Code
}

// IsPositive reports whether the quantity is strictly positive.
func (a Asset) IsPositive() bool { return a.Amount > 0 }

// PriceString renders a scaled unit price as a decimal ("0.1000").
func PriceString(price uint64) string {
	return decimal.New(int64(price), -4).StringFixed(4)
}

// ParsePrice converts a decimal price string with at most 4 fractional digits
// into the scaled integer representation.
func ParsePrice(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: price %q", core.ErrInvalidOrderSpec, s)
	}
	scaled := d.Shift(4)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: price %q has more than 4 decimals", core.ErrInvalidOrderSpec, s)
	}
	if scaled.Sign() <= 0 || !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: price %q", core.ErrInvalidOrderSpec, s)
	}
	return uint64(scaled.IntPart()), nil
}
