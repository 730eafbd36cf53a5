package domain

import "errors"

// Every operation failure is one of these sentinel values, possibly wrapped
// with context. Detection of any of them aborts the whole operation before a
// single transfer or write commits.
var (
	// Input validation.
	ErrZeroAmount      = errors.New("amount must be greater than zero")
	ErrCannotBetOnSelf = errors.New("subject cannot bet on their own market")
	ErrAlreadyExists   = errors.New("already exists")
	ErrNotFound        = errors.New("not found")

	// State preconditions.
	ErrAlreadyStarted        = errors.New("course already started")
	ErrNotStarted            = errors.New("course not started")
	ErrNoDeposit             = errors.New("no deposit to lock in")
	ErrLockInNotEnded        = errors.New("lock-in period not ended")
	ErrLockInAlreadyEnded    = errors.New("lock-in period already ended")
	ErrSubjectNotStarted     = errors.New("subject has not started a course")
	ErrBettingWindowTooLong  = errors.New("betting window overlaps task deadline")
	ErrNotOpenForBets        = errors.New("market not open for bets")
	ErrWindowClosed          = errors.New("betting window closed")
	ErrNotReadyForResolution = errors.New("market not ready for resolution")
	ErrGracePeriodNotOver    = errors.New("resolution grace period not over")
	ErrAlreadyResolved       = errors.New("market already resolved")
	ErrFeeNotClaimed         = errors.New("platform fee not yet claimed")
	ErrAlreadyClaimed        = errors.New("winnings already claimed")
	ErrMarketNotSettled      = errors.New("market not fully settled")

	// Integrity mismatches.
	ErrNotOwner          = errors.New("caller does not own this record")
	ErrUserStateMismatch = errors.New("market does not reference this user state")

	// Arithmetic and funds.
	ErrArithmetic        = errors.New("arithmetic overflow or underflow")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Infrastructure.
	ErrLockHeld     = errors.New("lock already held")
	ErrUnauthorized = errors.New("unauthorized")
)
