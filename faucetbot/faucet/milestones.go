package faucet

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/xac-network/faucet-bot/faucetbot/database/models"
	"github.com/xac-network/faucet-bot/faucetbot/database/repositories"
)

// AnnounceFunc delivers a milestone announcement. The notifier never decides
// how announcements reach users; the host injects the transport.
type AnnounceFunc func(ctx context.Context, message string) error

// Notifier evaluates the two month-gated one-shot milestones: the month
// rollover (with its halving variant) and the low-remaining-quota warning.
// Each fires at most once per distinct month index; the mark-as-fired write
// is atomic, so concurrent evaluators cannot double-fire.
type Notifier struct {
	milestones repositories.MilestoneRepository
	claims     repositories.ClaimRepository

	schedule  Schedule
	cap       int
	threshold int
	currency  string

	now func() time.Time
}

// NotifierConfig carries the notifier's distribution parameters.
type NotifierConfig struct {
	Schedule          Schedule
	MonthlyCap        int
	LowQuotaThreshold int
	Currency          string
}

func NewNotifier(milestones repositories.MilestoneRepository, claims repositories.ClaimRepository, cfg NotifierConfig) *Notifier {
	return &Notifier{
		milestones: milestones,
		claims:     claims,
		schedule:   cfg.Schedule,
		cap:        cfg.MonthlyCap,
		threshold:  cfg.LowQuotaThreshold,
		currency:   cfg.Currency,
		now:        time.Now,
	}
}

// Run evaluates both milestones. Safe to call on every claim and on a
// periodic ticker; within a month all calls after the first firing are
// no-ops (except the low-quota re-poll while above the threshold).
func (n *Notifier) Run(ctx context.Context, announce AnnounceFunc) error {
	if err := n.checkMonthReset(ctx, announce); err != nil {
		return err
	}
	return n.checkLowQuota(ctx, announce)
}

func (n *Notifier) checkMonthReset(ctx context.Context, announce AnnounceFunc) error {
	current := n.schedule.MonthIndex(n.now())

	last, err := n.milestones.LastFiredMonth(ctx, models.MilestoneMonthReset)
	if err != nil {
		return err
	}
	if last == current {
		return nil
	}

	fired, err := n.milestones.MarkFired(ctx, models.MilestoneMonthReset, current)
	if err != nil {
		return err
	}
	if !fired {
		// Another evaluator won the month transition.
		return nil
	}

	slog.Info("Month rollover milestone fired",
		slog.String("type", "sys"),
		slog.Int("month_index", current))

	if err := announce(ctx, "It's a new month! Claims have been reset!"); err != nil {
		return err
	}
	if current%6 == 0 {
		payout := n.schedule.PayoutAt(current)
		msg := fmt.Sprintf("Payouts have been halved! The faucet now gives out %s %s.",
			FormatAmount(payout), n.currency)
		return announce(ctx, msg)
	}
	return nil
}

func (n *Notifier) checkLowQuota(ctx context.Context, announce AnnounceFunc) error {
	current := n.schedule.MonthIndex(n.now())

	last, err := n.milestones.LastFiredMonth(ctx, models.MilestoneLowQuota)
	if err != nil {
		return err
	}
	if last == current {
		return nil
	}

	used, err := n.claims.SumMonthClaims(ctx, current)
	if err != nil {
		return err
	}
	remaining := n.cap - used
	if remaining > n.threshold {
		// Nothing persisted on purpose: the check re-runs on every call
		// until the threshold is crossed this month.
		return nil
	}

	fired, err := n.milestones.MarkFired(ctx, models.MilestoneLowQuota, current)
	if err != nil {
		return err
	}
	if !fired {
		return nil
	}

	slog.Info("Low quota milestone fired",
		slog.String("type", "sys"),
		slog.Int("month_index", current),
		slog.Int("remaining", remaining))

	return announce(ctx, fmt.Sprintf("Less than %d claims remaining this month!", n.threshold))
}
