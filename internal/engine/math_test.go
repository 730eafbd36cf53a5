package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streakvault/streakvault/internal/domain"
)

func TestAddU64(t *testing.T) {
	sum, err := addU64(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sum)

	_, err = addU64(math.MaxUint64, 1)
	assert.ErrorIs(t, err, domain.ErrArithmetic)
}

func TestSubU64(t *testing.T) {
	diff, err := subU64(5, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), diff)

	_, err = subU64(3, 5)
	assert.ErrorIs(t, err, domain.ErrArithmetic)
}

func TestAddI64(t *testing.T) {
	sum, err := addI64(-2, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum)

	_, err = addI64(math.MaxInt64, 1)
	assert.ErrorIs(t, err, domain.ErrArithmetic)

	_, err = addI64(math.MinInt64, -1)
	assert.ErrorIs(t, err, domain.ErrArithmetic)
}

func TestMulI64(t *testing.T) {
	prod, err := mulI64(90, 86_400)
	require.NoError(t, err)
	assert.Equal(t, int64(7_776_000), prod)

	prod, err = mulI64(0, math.MaxInt64)
	require.NoError(t, err)
	assert.Equal(t, int64(0), prod)

	_, err = mulI64(math.MaxInt64, 2)
	assert.ErrorIs(t, err, domain.ErrArithmetic)
}

func TestMulDivU64(t *testing.T) {
	// Floor division.
	q, err := mulDivU64(333, 1_960, 1_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(652), q)

	// Pool-sized products do not overflow the intermediate.
	q, err = mulDivU64(math.MaxUint64/2, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64/2), q)

	_, err = mulDivU64(1, 1, 0)
	assert.ErrorIs(t, err, domain.ErrArithmetic)

	// Quotient would not fit in 64 bits.
	_, err = mulDivU64(math.MaxUint64, math.MaxUint64, 1)
	assert.ErrorIs(t, err, domain.ErrArithmetic)
}
