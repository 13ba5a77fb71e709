package domain

import "time"

// Limits carries the operational ceilings and fee configuration for account
// mutations. It is loaded once at process start and passed down explicitly;
// the domain never reads ambient configuration.
type Limits struct {
	DailyWithdraw          int64 // daily withdraw ceiling, minor currency units
	DailyTransfer          int64 // daily transfer ceiling, minor currency units
	TransferFeeBasisPoints int64 // transfer fee in basis points (100 = 1%)
}

// TransferFee computes the fee charged to the sender for transferring amount,
// truncated toward zero.
func (l Limits) TransferFee(amount int64) int64 {
	return amount * l.TransferFeeBasisPoints / 10_000
}

// LimitTracker accumulates amounts against a daily ceiling. The accumulated
// sum only counts while LastTransactionDate equals the current calendar day;
// on the first use of a new day the tracker resets lazily. The ceiling itself
// is configuration, not tracker state, and is passed into TrackAndCheck.
type LimitTracker struct {
	AccumulatedAmount   int64
	LastTransactionDate *time.Time // calendar date of the last tracked amount, nil if never used
}

// ResetIfNeeded zeroes the accumulated amount when today differs from the last
// transaction date (or the tracker was never used). The date stays unset until
// the next successful track, so a bare reset never gets persisted as activity.
func (t *LimitTracker) ResetIfNeeded(today time.Time) {
	if t.LastTransactionDate != nil && sameDay(*t.LastTransactionDate, today) {
		return
	}
	t.AccumulatedAmount = 0
	t.LastTransactionDate = nil
}

// TrackAndCheck adds amount to the daily accumulation if it fits under
// dailyLimit and returns the new accumulated amount. A failed check leaves the
// tracked amount unchanged. today must come from a single clock read per
// logical operation so one operation never straddles a date boundary.
func (t *LimitTracker) TrackAndCheck(amount, dailyLimit int64, today time.Time) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	t.ResetIfNeeded(today)

	if t.AccumulatedAmount+amount > dailyLimit {
		return 0, ErrDailyLimitExceeded
	}

	t.AccumulatedAmount += amount
	day := dateOnly(today)
	t.LastTransactionDate = &day
	return t.AccumulatedAmount, nil
}

// dateOnly truncates a timestamp to midnight of its calendar day.
func dateOnly(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
