package models

import "github.com/uptrace/bun"

const (
	MilestoneMonthReset = "month_reset"
	MilestoneLowQuota   = "low_quota_warning"
)

// MilestoneState is a singleton row per milestone kind holding the month
// index at which that milestone last fired. -1 means never fired, which
// guarantees the first real month triggers it.
type MilestoneState struct {
	bun.BaseModel `bun:"table:milestones,alias:ms"`

	Kind       string `bun:"kind,pk"`
	MonthIndex int    `bun:"month_index,notnull,default:-1"`
}
