package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyDeterministic(t *testing.T) {
	assert.Equal(t, PositionKey("alice"), PositionKey("alice"))
	assert.NotEqual(t, PositionKey("alice"), PositionKey("bob"))
	assert.Len(t, PositionKey("alice"), 64) // hex sha256
}

func TestKeySeparatorPreventsConcatCollisions(t *testing.T) {
	assert.NotEqual(t, Key(KindBet, "ab", "c"), Key(KindBet, "a", "bc"))
	assert.NotEqual(t, Key(KindBet, "a"), Key(KindBet, "a", ""))
}

func TestMarketKeyPerCycle(t *testing.T) {
	a := MarketKey("alice", 1_000_100)
	b := MarketKey("alice", 1_000_200)
	c := MarketKey("bob", 1_000_100)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, MarketKey("alice", 1_000_100))
}

func TestKindsAreDisjoint(t *testing.T) {
	assert.NotEqual(t, Key(KindPosition, "x"), Key(KindMarket, "x"))
	assert.NotEqual(t, Key(KindMarket, "x"), Key(KindBet, "x"))
}
