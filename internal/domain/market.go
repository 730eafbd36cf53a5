package domain

// MarketStatus is the market lifecycle state. Transitions are strictly
// forward: Open -> AwaitingResolution -> one terminal Resolved* status.
type MarketStatus string

const (
	MarketStatusOpen               MarketStatus = "open"
	MarketStatusAwaitingResolution MarketStatus = "awaiting_resolution"
	MarketStatusResolvedLongsWin   MarketStatus = "resolved_longs_win"
	MarketStatusResolvedShortsWin  MarketStatus = "resolved_shorts_win"

	// MarketStatusCancelled is a reachable terminal tag reserved for future
	// administrative use. No operation currently transitions into it.
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Terminal reports whether the status is one of the end states.
func (s MarketStatus) Terminal() bool {
	switch s {
	case MarketStatusResolvedLongsWin, MarketStatusResolvedShortsWin, MarketStatusCancelled:
		return true
	default:
		return false
	}
}

// Market is a pooled long/short wager on whether the subject completes their
// task before the rolling deadline. Its escrow pool is the balance account
// EscrowAccount(ID); positions are 1:1 pooled, not priced.
type Market struct {
	ID      string `json:"id"`
	Creator string `json:"creator"`
	Subject string `json:"subject"`

	// SubjectPositionKey pins the subject's UserPosition record at creation
	// time. Resolution refuses to run against any other record.
	SubjectPositionKey string `json:"subject_position_key"`

	TotalLongAmount  uint64 `json:"total_long_amount"`
	TotalShortAmount uint64 `json:"total_short_amount"`

	CreatedAt    int64 `json:"created_at"`
	BettingEndsAt int64 `json:"betting_ends_at"`
	TaskDeadline int64 `json:"task_deadline"`
	ResolutionAt int64 `json:"resolution_at"`

	Status MarketStatus `json:"status"`

	PlatformFeeBps uint32 `json:"platform_fee_bps"`
	FeeClaimed     bool   `json:"fee_claimed"`
}

// TotalPool returns the combined long and short stake, or ErrArithmetic on
// overflow.
func (m Market) TotalPool() (uint64, error) {
	total := m.TotalLongAmount + m.TotalShortAmount
	if total < m.TotalLongAmount {
		return 0, ErrArithmetic
	}
	return total, nil
}

// WinningSideIsLong reports which side won a resolved market. The second
// return is false while the market is still unresolved or cancelled.
func (m Market) WinningSideIsLong() (bool, bool) {
	switch m.Status {
	case MarketStatusResolvedLongsWin:
		return true, true
	case MarketStatusResolvedShortsWin:
		return false, true
	default:
		return false, false
	}
}
