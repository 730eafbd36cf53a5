package domain

// Bet is a single bettor's stake on one market. At most one bet exists per
// (market, bettor) pair; Claimed flips to true exactly once, even when the
// computed payout is zero.
type Bet struct {
	Key      string `json:"key"`
	MarketID string `json:"market_id"`
	Bettor   string `json:"bettor"`
	Amount   uint64 `json:"amount"`
	IsLong   bool   `json:"is_long"`
	Claimed  bool   `json:"claimed"`
	PlacedAt int64  `json:"placed_at"`
}

// Treasury is the platform fee accumulation record: a single running counter
// backed by the treasury balance account.
type Treasury struct {
	FeesCollected uint64 `json:"fees_collected"`
}
