package models

import (
	"time"

	"github.com/uptrace/bun"
)

// LinkedWebsite is an optional address -> URL mapping, independent of the
// claim ledger.
type LinkedWebsite struct {
	bun.BaseModel `bun:"table:linked_websites,alias:lw"`

	Address   string    `bun:"address,pk"`
	URL       string    `bun:"url,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
