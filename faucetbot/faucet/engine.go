package faucet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"

	"github.com/xac-network/faucet-bot/faucetbot/database/models"
	"github.com/xac-network/faucet-bot/faucetbot/database/repositories"
)

const (
	claimUpdateRetries = 3
	statsCacheSize     = 8
	statsCacheTTL      = 30 * time.Second
)

// ErrClaimConflict is returned when a claim write keeps losing the
// compare-and-swap against concurrent claims for the same address.
var ErrClaimConflict = errors.New("claim record update conflicted")

// Config carries the distribution parameters of the faucet.
type Config struct {
	Schedule      Schedule
	ClaimInterval time.Duration
	MonthlyCap    int
}

// Engine is the eligibility and accounting core: claim ledger, global
// monthly quota, account directory and stats rollups. It holds no record
// state of its own; every operation re-reads the store before deciding.
type Engine struct {
	claims   repositories.ClaimRepository
	links    repositories.UserLinkRepository
	websites repositories.WebsiteRepository

	schedule Schedule
	interval time.Duration
	cap      int

	statsCache *lru.Cache
	now        func() time.Time
}

func NewEngine(
	claims repositories.ClaimRepository,
	links repositories.UserLinkRepository,
	websites repositories.WebsiteRepository,
	cfg Config,
) *Engine {
	cache, _ := lru.New(statsCacheSize)
	return &Engine{
		claims:     claims,
		links:      links,
		websites:   websites,
		schedule:   cfg.Schedule,
		interval:   cfg.ClaimInterval,
		cap:        cfg.MonthlyCap,
		statsCache: cache,
		now:        time.Now,
	}
}

// NormalizeAddress canonicalizes an address the way every interface of the
// engine expects it: trimmed and lowercased.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// CurrentMonth returns the distribution month index for the current time.
func (e *Engine) CurrentMonth() int {
	return e.schedule.MonthIndex(e.now())
}

// CurrentPayout returns the payout amount for the current month.
func (e *Engine) CurrentPayout() float64 {
	return e.schedule.PayoutAt(e.CurrentMonth())
}

// Eligibility is the result of a pre-claim check. NextClaimUnix is the
// later of the cooldown expiry and the cap reset, in unix seconds rounded
// up; 0 when no constraint applies.
type Eligibility struct {
	HasEnoughTime   bool
	UnderMonthlyCap bool
	NextClaimUnix   int64
}

// NextClaimTime reports whether the address may claim now, and if not, when.
func (e *Engine) NextClaimTime(ctx context.Context, address string) (Eligibility, error) {
	address = NormalizeAddress(address)
	now := e.now()
	month := e.schedule.MonthIndex(now)

	el := Eligibility{HasEnoughTime: true, UnderMonthlyCap: true}

	monthClaims, err := e.claims.SumMonthClaims(ctx, month)
	if err != nil {
		return Eligibility{}, err
	}

	var next time.Time
	if monthClaims >= e.cap {
		el.UnderMonthlyCap = false
		next = e.schedule.CapResetTime(month)
	}

	rec, err := e.claims.Find(ctx, address)
	if err != nil {
		return Eligibility{}, err
	}
	if rec != nil {
		readyAt := rec.LastClaimAt.Add(e.interval)
		if readyAt.After(now) {
			el.HasEnoughTime = false
			if readyAt.After(next) {
				next = readyAt
			}
		}
	}

	if !next.IsZero() {
		el.NextClaimUnix = ceilUnix(next)
	}
	return el, nil
}

// RecordClaim writes a claim into the ledger unconditionally. Eligibility is
// the caller's job (NextClaimTime); once invoked this always counts. The
// write is a read-modify-write guarded by a compare-and-swap on
// last_claim_at, retried a bounded number of times.
func (e *Engine) RecordClaim(ctx context.Context, address string, amount float64) error {
	address = NormalizeAddress(address)

	for attempt := 0; attempt < claimUpdateRetries; attempt++ {
		now := e.now()
		month := e.schedule.MonthIndex(now)

		rec, err := e.claims.Find(ctx, address)
		if err != nil {
			return err
		}

		if rec == nil {
			fresh := &models.ClaimRecord{
				Address:         address,
				LastClaimAt:     now,
				MonthIndex:      month,
				ClaimsThisMonth: 1,
				ClaimsAllTime:   1,
				LastAmount:      amount,
			}
			created, err := e.claims.InsertIfAbsent(ctx, fresh)
			if err != nil {
				return err
			}
			if created {
				e.statsCache.Purge()
				return nil
			}
			// Lost the insert race, re-read and go through the update path.
			continue
		}

		prevLastClaim := rec.LastClaimAt
		if rec.MonthIndex != month {
			// Lazy month rollover: the monthly counter restarts here, not
			// on a background sweep.
			rec.ClaimsThisMonth = 0
		}
		rec.ClaimsThisMonth++
		rec.ClaimsAllTime++
		rec.MonthIndex = month
		rec.LastAmount = amount
		rec.LastClaimAt = now

		updated, err := e.claims.UpdateIfUnchanged(ctx, rec, prevLastClaim)
		if err != nil {
			return err
		}
		if updated {
			e.statsCache.Purge()
			return nil
		}
	}

	slog.Error("Claim record update kept conflicting",
		slog.String("type", "db"),
		slog.String("address", address),
		slog.Int("attempts", claimUpdateRetries))
	return ErrClaimConflict
}

// Stats is the public rollup of faucet activity.
type Stats struct {
	MonthIndex      int
	PayoutAmount    float64
	ClaimsThisMonth int
	UniqueClaimants int
	TotalClaims     int
	ClaimsLast24h   int
}

type statsCacheEntry struct {
	stats    *Stats
	cachedAt time.Time
}

// Stats computes the aggregate rollups for the current month. Rollup queries
// run in parallel and the snapshot is cached briefly; stats reads are
// eventually consistent with concurrent claims by design.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	now := e.now()
	month := e.schedule.MonthIndex(now)

	if v, ok := e.statsCache.Get(month); ok {
		entry := v.(statsCacheEntry)
		if now.Sub(entry.cachedAt) < statsCacheTTL {
			return entry.stats, nil
		}
	}

	st := &Stats{
		MonthIndex:   month,
		PayoutAmount: e.schedule.PayoutAt(month),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := e.claims.SumMonthClaims(gctx, month)
		st.ClaimsThisMonth = v
		return err
	})
	g.Go(func() error {
		v, err := e.claims.CountClaimants(gctx)
		st.UniqueClaimants = v
		return err
	})
	g.Go(func() error {
		v, err := e.claims.TotalClaims(gctx)
		st.TotalClaims = v
		return err
	})
	g.Go(func() error {
		v, err := e.claims.CountActiveSince(gctx, now.Add(-24*time.Hour))
		st.ClaimsLast24h = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to aggregate faucet stats: %w", err)
	}

	e.statsCache.Add(month, statsCacheEntry{stats: st, cachedAt: now})
	return st, nil
}

// FindClaim returns the ledger record for an address, or nil when the
// address never claimed.
func (e *Engine) FindClaim(ctx context.Context, address string) (*models.ClaimRecord, error) {
	return e.claims.Find(ctx, NormalizeAddress(address))
}

// TopClaimants lists the addresses with the most all-time claims.
func (e *Engine) TopClaimants(ctx context.Context, limit int) ([]*models.ClaimRecord, error) {
	return e.claims.TopClaimants(ctx, limit)
}

// RegisterAddress links a user to an address. Returns false without writing
// when the address belongs to a different user, or when the user already
// has a link and allowChange is false. With allowChange the user's link is
// overwritten unconditionally.
func (e *Engine) RegisterAddress(ctx context.Context, userID string, address string, allowChange bool) (bool, error) {
	address = NormalizeAddress(address)

	byAddress, err := e.links.GetByAddress(ctx, address)
	if err != nil {
		return false, err
	}
	if byAddress != nil && byAddress.UserID != userID {
		return false, nil
	}

	link, err := e.links.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	if link != nil {
		if !allowChange {
			return false, nil
		}
		if err := e.links.UpdateAddress(ctx, userID, address); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := e.links.Create(ctx, &models.UserLink{UserID: userID, Address: address}); err != nil {
		return false, err
	}
	return true, nil
}

// LookupByUser returns the user's link, or nil when the user never registered.
func (e *Engine) LookupByUser(ctx context.Context, userID string) (*models.UserLink, error) {
	return e.links.GetByUserID(ctx, userID)
}

// LookupByAddress returns the link owning an address, or nil.
func (e *Engine) LookupByAddress(ctx context.Context, address string) (*models.UserLink, error) {
	return e.links.GetByAddress(ctx, NormalizeAddress(address))
}

// GetLinkedWebsite returns the website linked to an address, or nil.
func (e *Engine) GetLinkedWebsite(ctx context.Context, address string) (*models.LinkedWebsite, error) {
	return e.websites.Get(ctx, NormalizeAddress(address))
}

func (e *Engine) SetLinkedWebsite(ctx context.Context, address string, url string) error {
	return e.websites.Upsert(ctx, NormalizeAddress(address), url)
}

func (e *Engine) RemoveLinkedWebsite(ctx context.Context, address string) error {
	return e.websites.Delete(ctx, NormalizeAddress(address))
}

// ceilUnix converts to unix seconds, rounding partial seconds up so a
// "try again at" time is never earlier than the actual expiry.
func ceilUnix(t time.Time) int64 {
	secs := t.Unix()
	if t.Nanosecond() > 0 {
		secs++
	}
	return secs
}
