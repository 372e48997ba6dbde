package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ClaimRecord is the per-address ledger entry. One row per address that has
// ever claimed; rows are never deleted. ClaimsThisMonth is only meaningful
// relative to MonthIndex and is lazily rolled over on the next claim that
// lands in a newer month.
type ClaimRecord struct {
	bun.BaseModel `bun:"table:claims,alias:c"`

	Address         string    `bun:"address,pk"`
	LastClaimAt     time.Time `bun:"last_claim_at,notnull"`
	MonthIndex      int       `bun:"month_index,notnull"`
	ClaimsThisMonth int       `bun:"claims_this_month,notnull,default:0"`
	ClaimsAllTime   int       `bun:"claims_all_time,notnull,default:0"`
	LastAmount      float64   `bun:"last_amount,notnull,default:0"`
}
