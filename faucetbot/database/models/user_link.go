package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserLink maps a Discord user ID to the single address it may claim for.
// The one-user-per-address rule is enforced by lookup-before-write in the
// engine, not by a storage constraint.
type UserLink struct {
	bun.BaseModel `bun:"table:user_links,alias:ul"`

	UserID    string    `bun:"user_id,pk"`
	Address   string    `bun:"address,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
