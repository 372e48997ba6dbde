package faucetbot

import (
	"fmt"
	"os"
	"time"

	"log/slog"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/xac-network/faucet-bot/faucetbot/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log    LogConfig         `toml:"log"`
	Bot    BotConfig         `toml:"bot"`
	DB     database.DBConfig `toml:"db"`
	Faucet FaucetConfig      `toml:"faucet"`
}

type BotConfig struct {
	DevGuilds       []snowflake.ID `toml:"dev_guilds"`
	Token           string         `toml:"token"`
	AnnounceChannel snowflake.ID   `toml:"announce_channel"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

// FaucetConfig holds the distribution parameters. Zero values fall back to
// the launch defaults via Normalize.
type FaucetConfig struct {
	EpochYear            int     `toml:"epoch_year"`
	EpochMonth           int     `toml:"epoch_month"`
	BasePayout           float64 `toml:"base_payout"`
	ClaimIntervalMinutes int     `toml:"claim_interval_minutes"`
	MonthlyCap           int     `toml:"monthly_cap"`
	LowQuotaThreshold    int     `toml:"low_quota_threshold"`
	Currency             string  `toml:"currency"`
}

// Normalize fills unset faucet parameters with the launch defaults:
// distribution began March 2023 at 6000 XAC, 23.5h between claims,
// 11111 claims per month, warning at 500 remaining.
func (c *FaucetConfig) Normalize() {
	if c.EpochYear == 0 {
		c.EpochYear = 2023
	}
	if c.EpochMonth == 0 {
		c.EpochMonth = 3
	}
	if c.BasePayout == 0 {
		c.BasePayout = 6000
	}
	if c.ClaimIntervalMinutes == 0 {
		c.ClaimIntervalMinutes = 1410
	}
	if c.MonthlyCap == 0 {
		c.MonthlyCap = 11111
	}
	if c.LowQuotaThreshold == 0 {
		c.LowQuotaThreshold = 500
	}
	if c.Currency == "" {
		c.Currency = "XAC"
	}
}

func (c FaucetConfig) ClaimInterval() time.Duration {
	return time.Duration(c.ClaimIntervalMinutes) * time.Minute
}
