package engine

import (
	"math"
	"math/bits"

	"github.com/streakvault/streakvault/internal/domain"
)

// Checked arithmetic over currency units and timestamps. Nothing in the
// engine saturates or wraps; any out-of-range intermediate aborts the whole
// operation with ErrArithmetic.

func addU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.ErrArithmetic
	}
	return sum, nil
}

func subU64(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, domain.ErrArithmetic
	}
	return diff, nil
}

func addI64(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, domain.ErrArithmetic
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, domain.ErrArithmetic
	}
	return a + b, nil
}

func mulI64(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	prod := a * b
	if prod/b != a {
		return 0, domain.ErrArithmetic
	}
	return prod, nil
}

// mulDivU64 computes floor(a*b/div) with a 128-bit intermediate so pool-sized
// products cannot overflow. Returns ErrArithmetic when div is zero or the
// quotient does not fit in 64 bits.
func mulDivU64(a, b, div uint64) (uint64, error) {
	if div == 0 {
		return 0, domain.ErrArithmetic
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= div {
		return 0, domain.ErrArithmetic
	}
	q, _ := bits.Div64(hi, lo, div)
	return q, nil
}
