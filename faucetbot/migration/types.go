package migration

// Legacy document shapes from the original Node.js faucet's MongoDB
// collections. Timestamps are unix milliseconds, months are distribution
// month indices.

type LegacyClaim struct {
	Address         string  `bson:"address"`
	Amount          float64 `bson:"amount"`
	LastClaim       int64   `bson:"last_claim"`
	Month           int32   `bson:"month"`
	ClaimsThisMonth int32   `bson:"claims_this_month"`
	Claims          int32   `bson:"claims"`
}

type LegacyMilestone struct {
	Type  string `bson:"type"`
	Month int32  `bson:"month"`
}

type LegacyUser struct {
	User    string `bson:"user"`
	Address string `bson:"address"`
}

type LegacyWebsite struct {
	Address string `bson:"address"`
	URL     string `bson:"url"`
}
