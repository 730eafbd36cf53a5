package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Record kinds used for key derivation.
const (
	KindPosition = "position"
	KindMarket   = "market"
	KindBet      = "bet"
)

// Key derives the content-addressed storage key for a record from its kind
// and owning identities: hex(sha256(kind || 0x00 || owner1 || 0x00 || ...)).
// The same (kind, owners) tuple always maps to the same key, which is what
// makes duplicate initialization detectable by the storage layer alone.
func Key(kind string, owners ...string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, o := range owners {
		h.Write([]byte{0})
		h.Write([]byte(o))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PositionKey returns the storage key for a user's position record.
func PositionKey(user string) string {
	return Key(KindPosition, user)
}

// MarketKey returns the storage key for the market covering the task cycle
// that ends at taskDeadline for the given subject. One market per
// (subject, cycle) falls out of this derivation.
func MarketKey(subject string, taskDeadline int64) string {
	return Key(KindMarket, subject, strconv.FormatInt(taskDeadline, 10))
}

// BetKey returns the storage key for a bettor's bet on a market. At most one
// bet per (market, bettor) pair is enforced by uniqueness of this key.
func BetKey(marketID, bettor string) string {
	return Key(KindBet, marketID, bettor)
}
