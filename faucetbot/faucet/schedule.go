package faucet

import (
	"strconv"
	"time"
)

// Schedule maps wall-clock time to distribution months and payout amounts.
// All calendar math is UTC.
type Schedule struct {
	EpochYear  int
	EpochMonth time.Month
	BasePayout float64
}

// MonthIndex returns the number of calendar months since the epoch month.
// The epoch month itself is 0; times before the epoch yield negative values.
func (s Schedule) MonthIndex(now time.Time) int {
	now = now.UTC()
	return (now.Year()-s.EpochYear)*12 + int(now.Month()) - int(s.EpochMonth)
}

// PayoutAt returns the payout for the given distribution month. The base
// payout halves once per completed 6-month block. Halving is applied as
// repeated division by 2 so the values match the published payout table
// exactly, float drift included.
func (s Schedule) PayoutAt(monthIndex int) float64 {
	halvings := monthIndex / 6
	payout := s.BasePayout
	for i := 0; i < halvings; i++ {
		payout = payout / 2
	}
	return payout
}

// CapResetTime returns the first instant of the distribution month after
// monthIndex, i.e. when the global claim cap resets.
func (s Schedule) CapResetTime(monthIndex int) time.Time {
	epoch := time.Date(s.EpochYear, s.EpochMonth, 1, 0, 0, 0, 0, time.UTC)
	return epoch.AddDate(0, monthIndex+1, 0)
}

// FormatAmount renders a payout without trailing zeros (6000, 187.5).
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
