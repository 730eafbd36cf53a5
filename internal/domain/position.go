package domain

// UserPosition is the per-user savings record: principal, externally credited
// yield, streak bookkeeping, and the lock-in window. All amounts are whole
// currency units; all timestamps are Unix seconds with 0 meaning "unset".
type UserPosition struct {
	Key   string `json:"key"`
	Owner string `json:"owner"`

	DepositAmount        uint64 `json:"deposit_amount"`
	InitialDepositAmount uint64 `json:"initial_deposit_amount"`
	AccruedYield         uint64 `json:"accrued_yield"`

	CurrentStreak uint32 `json:"current_streak"`
	MissCount     uint32 `json:"miss_count"`

	DepositTimestamp   int64 `json:"deposit_timestamp"`
	LastTaskTimestamp  int64 `json:"last_task_timestamp"`
	LockInEndTimestamp int64 `json:"lock_in_end_timestamp"`
}

// Started reports whether the owner has started a course. LockInEndTimestamp
// is the canonical signal: zero means not started.
func (p UserPosition) Started() bool {
	return p.LockInEndTimestamp != 0
}

// CurrentTaskDeadline returns the end of the task cycle the owner is
// currently in, or 0 when no course is active. Markets for this subject are
// keyed off this instant.
func (p UserPosition) CurrentTaskDeadline(taskCycleSeconds int64) int64 {
	if !p.Started() {
		return 0
	}
	return p.LastTaskTimestamp + taskCycleSeconds
}
