package asset

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/tangelo-dex/tangelo/pkg/app/core"
)

// MulDivFloor computes floor(a*b/d) with a 128-bit intermediate, so the
// product never silently wraps. d must be non-zero and the quotient must fit
// an int64.
func MulDivFloor(a, b, d int64) (int64, error) {
	return mulDiv(a, b, d, false)
}

// MulDivCeil computes ceil(a*b/d). Rounding direction is always chosen by the
// caller: fills round toward the resting order.
func MulDivCeil(a, b, d int64) (int64, error) {
	return mulDiv(a, b, d, true)
}

func mulDiv(a, b, d int64, roundUp bool) (int64, error) {
	if a < 0 || b < 0 || d <= 0 {
		return 0, fmt.Errorf("%w: muldiv(%d,%d,%d)", core.ErrArithmeticOverflow, a, b, d)
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(d) {
		return 0, fmt.Errorf("%w: muldiv(%d,%d,%d)", core.ErrArithmeticOverflow, a, b, d)
	}
	q, r := bits.Div64(hi, lo, uint64(d))
	if roundUp && r != 0 {
		q++
	}
	if q > math.MaxInt64 {
		return 0, fmt.Errorf("%w: muldiv(%d,%d,%d)", core.ErrArithmeticOverflow, a, b, d)
	}
	return int64(q), nil
}

// UnitPrice derives the scaled ratio native/secondary. The ratio must be
// exact: a price that loses sub-units to truncation is rejected, so every
// resting order's bid and ask stay consistent with its ranking key.
func UnitPrice(native, secondary int64) (uint64, error) {
	if native <= 0 || secondary <= 0 {
		return 0, fmt.Errorf("%w: price %d/%d", core.ErrInvalidOrderSpec, native, secondary)
	}
	hi, lo := bits.Mul64(uint64(native), PriceScale)
	if hi >= uint64(secondary) {
		return 0, fmt.Errorf("%w: price %d/%d", core.ErrArithmeticOverflow, native, secondary)
	}
	q, r := bits.Div64(hi, lo, uint64(secondary))
	if r != 0 {
		return 0, fmt.Errorf("%w: price %d/%d not representable at scale %d",
			core.ErrInvalidOrderSpec, native, secondary, PriceScale)
	}
	if q == 0 || q > math.MaxInt64 {
		return 0, fmt.Errorf("%w: price %d/%d", core.ErrInvalidOrderSpec, native, secondary)
	}
	return q, nil
}
