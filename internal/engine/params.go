// Package engine implements the market lifecycle and escrow-accounting core:
// user position bookkeeping, market creation and resolution, bet pooling,
// proportional payout, and fee extraction. The engine performs no I/O of its
// own; every operation runs inside a single Gateway.Atomic scope against a
// consistent snapshot, and either all of its writes and transfers commit or
// none do.
package engine

// Params holds the fixed protocol constants. They are not run-time
// configurable; the struct exists so tests can shrink the windows.
type Params struct {
	// TaskCycleSeconds is the length of one task cycle (one day).
	TaskCycleSeconds int64

	// GracePeriodSeconds separates the task deadline from the earliest
	// resolution instant.
	GracePeriodSeconds int64

	// DefaultFeeBps is the platform fee in basis points applied to each
	// market's pool at resolution (200 = 2.00%).
	DefaultFeeBps uint32

	// AutoBettingWindowSeconds is the betting window used for the market
	// created implicitly when a course starts (12h).
	AutoBettingWindowSeconds int64
}

// DefaultParams returns the production constants.
func DefaultParams() Params {
	return Params{
		TaskCycleSeconds:         86400,
		GracePeriodSeconds:       300,
		DefaultFeeBps:            200,
		AutoBettingWindowSeconds: 43200,
	}
}

// feeBpsDenominator converts basis points to a proportion.
const feeBpsDenominator = 10000
