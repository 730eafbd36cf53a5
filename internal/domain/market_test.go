package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketTotalPool(t *testing.T) {
	m := Market{TotalLongAmount: 100, TotalShortAmount: 300}
	total, err := m.TotalPool()
	require.NoError(t, err)
	assert.Equal(t, uint64(400), total)

	m = Market{TotalLongAmount: math.MaxUint64, TotalShortAmount: 1}
	_, err = m.TotalPool()
	assert.ErrorIs(t, err, ErrArithmetic)
}

func TestMarketStatusTerminal(t *testing.T) {
	assert.False(t, MarketStatusOpen.Terminal())
	assert.False(t, MarketStatusAwaitingResolution.Terminal())
	assert.True(t, MarketStatusResolvedLongsWin.Terminal())
	assert.True(t, MarketStatusResolvedShortsWin.Terminal())
	assert.True(t, MarketStatusCancelled.Terminal())
}

func TestWinningSideIsLong(t *testing.T) {
	long, ok := Market{Status: MarketStatusResolvedLongsWin}.WinningSideIsLong()
	assert.True(t, ok)
	assert.True(t, long)

	long, ok = Market{Status: MarketStatusResolvedShortsWin}.WinningSideIsLong()
	assert.True(t, ok)
	assert.False(t, long)

	_, ok = Market{Status: MarketStatusOpen}.WinningSideIsLong()
	assert.False(t, ok)

	_, ok = Market{Status: MarketStatusCancelled}.WinningSideIsLong()
	assert.False(t, ok)
}

func TestPositionCurrentTaskDeadline(t *testing.T) {
	p := UserPosition{}
	assert.Equal(t, int64(0), p.CurrentTaskDeadline(86_400))

	p = UserPosition{LastTaskTimestamp: 1_000, LockInEndTimestamp: 90_000}
	assert.Equal(t, int64(87_400), p.CurrentTaskDeadline(86_400))
}
