package faucet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xac-network/faucet-bot/faucetbot/database/models"
)

// fakeClaimRepo is an in-memory ClaimRepository with the same conflict
// semantics as the Postgres one: inserts skip existing rows and updates
// compare-and-swap on last_claim_at.
type fakeClaimRepo struct {
	mu      sync.Mutex
	records map[string]*models.ClaimRecord

	failCAS      bool
	stealInserts bool
}

func newFakeClaimRepo() *fakeClaimRepo {
	return &fakeClaimRepo{records: make(map[string]*models.ClaimRecord)}
}

func copyRecord(rec *models.ClaimRecord) *models.ClaimRecord {
	cp := *rec
	return &cp
}

func (f *fakeClaimRepo) Find(_ context.Context, address string) (*models.ClaimRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[address]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

func (f *fakeClaimRepo) InsertIfAbsent(_ context.Context, rec *models.ClaimRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stealInserts {
		// Simulate a concurrent writer creating the row first.
		f.stealInserts = false
		f.records[rec.Address] = &models.ClaimRecord{
			Address:         rec.Address,
			LastClaimAt:     rec.LastClaimAt.Add(-time.Second),
			MonthIndex:      rec.MonthIndex,
			ClaimsThisMonth: 1,
			ClaimsAllTime:   1,
			LastAmount:      rec.LastAmount,
		}
		return false, nil
	}
	if _, exists := f.records[rec.Address]; exists {
		return false, nil
	}
	f.records[rec.Address] = copyRecord(rec)
	return true, nil
}

func (f *fakeClaimRepo) UpdateIfUnchanged(_ context.Context, rec *models.ClaimRecord, prevLastClaimAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCAS {
		return false, nil
	}
	existing, ok := f.records[rec.Address]
	if !ok || !existing.LastClaimAt.Equal(prevLastClaimAt) {
		return false, nil
	}
	f.records[rec.Address] = copyRecord(rec)
	return true, nil
}

func (f *fakeClaimRepo) SumMonthClaims(_ context.Context, monthIndex int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := 0
	for _, rec := range f.records {
		if rec.MonthIndex == monthIndex {
			sum += rec.ClaimsThisMonth
		}
	}
	return sum, nil
}

func (f *fakeClaimRepo) TotalClaims(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := 0
	for _, rec := range f.records {
		sum += rec.ClaimsAllTime
	}
	return sum, nil
}

func (f *fakeClaimRepo) CountClaimants(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

func (f *fakeClaimRepo) CountActiveSince(_ context.Context, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, rec := range f.records {
		if rec.LastClaimAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeClaimRepo) TopClaimants(_ context.Context, limit int) ([]*models.ClaimRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.ClaimRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, copyRecord(rec))
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].ClaimsAllTime > out[i].ClaimsAllTime {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeLinkRepo struct {
	mu    sync.Mutex
	links map[string]*models.UserLink
}

func newFakeLinkRepo() *fakeLinkRepo {
	return &fakeLinkRepo{links: make(map[string]*models.UserLink)}
}

func (f *fakeLinkRepo) GetByUserID(_ context.Context, userID string) (*models.UserLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[userID]
	if !ok {
		return nil, nil
	}
	cp := *link
	return &cp, nil
}

func (f *fakeLinkRepo) GetByAddress(_ context.Context, address string) (*models.UserLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, link := range f.links {
		if link.Address == address {
			cp := *link
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeLinkRepo) Create(_ context.Context, link *models.UserLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *link
	f.links[link.UserID] = &cp
	return nil
}

func (f *fakeLinkRepo) UpdateAddress(_ context.Context, userID string, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if link, ok := f.links[userID]; ok {
		link.Address = address
	}
	return nil
}

type fakeWebsiteRepo struct {
	mu    sync.Mutex
	sites map[string]string
}

func newFakeWebsiteRepo() *fakeWebsiteRepo {
	return &fakeWebsiteRepo{sites: make(map[string]string)}
}

func (f *fakeWebsiteRepo) Get(_ context.Context, address string) (*models.LinkedWebsite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url, ok := f.sites[address]
	if !ok {
		return nil, nil
	}
	return &models.LinkedWebsite{Address: address, URL: url}, nil
}

func (f *fakeWebsiteRepo) Upsert(_ context.Context, address string, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sites[address] = url
	return nil
}

func (f *fakeWebsiteRepo) Delete(_ context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sites, address)
	return nil
}

type engineFixture struct {
	engine   *Engine
	claims   *fakeClaimRepo
	links    *fakeLinkRepo
	websites *fakeWebsiteRepo
	now      *time.Time
}

func newEngineFixture(t *testing.T, now time.Time) *engineFixture {
	t.Helper()

	fx := &engineFixture{
		claims:   newFakeClaimRepo(),
		links:    newFakeLinkRepo(),
		websites: newFakeWebsiteRepo(),
		now:      &now,
	}
	fx.engine = NewEngine(fx.claims, fx.links, fx.websites, Config{
		Schedule:      testSchedule,
		ClaimInterval: 1410 * time.Minute,
		MonthlyCap:    11111,
	})
	fx.engine.now = func() time.Time { return *fx.now }
	return fx
}

func (fx *engineFixture) advance(d time.Duration) {
	*fx.now = fx.now.Add(d)
}

func TestNormalizeAddress(t *testing.T) {
	require.Equal(t, "0xabc123", NormalizeAddress("  0xABC123 "))
	require.Equal(t, "0xabc123", NormalizeAddress("0xabc123"))
}

func TestEngine_RecordClaim_FirstClaim(t *testing.T) {
	now := time.Date(2023, time.July, 10, 12, 0, 0, 0, time.UTC)
	fx := newEngineFixture(t, now)

	require.NoError(t, fx.engine.RecordClaim(context.Background(), "0xAAA", 6000))

	rec, err := fx.engine.FindClaim(context.Background(), "0xaaa")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, 1, rec.ClaimsThisMonth)
	require.Equal(t, 1, rec.ClaimsAllTime)
	require.Equal(t, 4, rec.MonthIndex)
	require.Equal(t, float64(6000), rec.LastAmount)
	require.True(t, rec.LastClaimAt.Equal(now))
}

func TestEngine_RecordClaim_SameMonthIncrements(t *testing.T) {
	fx := newEngineFixture(t, time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, fx.engine.RecordClaim(context.Background(), "0xaaa", 6000))
	fx.advance(24 * time.Hour)
	require.NoError(t, fx.engine.RecordClaim(context.Background(), "0xaaa", 6000))

	rec, err := fx.engine.FindClaim(context.Background(), "0xaaa")
	require.NoError(t, err)
	require.Equal(t, 2, rec.ClaimsThisMonth)
	require.Equal(t, 2, rec.ClaimsAllTime)
}

func TestEngine_RecordClaim_MonthRollover(t *testing.T) {
	fx := newEngineFixture(t, time.Date(2023, time.July, 29, 0, 0, 0, 0, time.UTC))

	require.NoError(t, fx.engine.RecordClaim(context.Background(), "0xaaa", 6000))
	fx.advance(24 * time.Hour)
	require.NoError(t, fx.engine.RecordClaim(context.Background(), "0xaaa", 6000))

	// Cross into August: the monthly counter restarts, the all-time one keeps going.
	fx.advance(3 * 24 * time.Hour)
	require.NoError(t, fx.engine.RecordClaim(context.Background(), "0xaaa", 6000))

	rec, err := fx.engine.FindClaim(context.Background(), "0xaaa")
	require.NoError(t, err)
	require.Equal(t, 1, rec.ClaimsThisMonth)
	require.Equal(t, 3, rec.ClaimsAllTime)
	require.Equal(t, 5, rec.MonthIndex)
}

func TestEngine_RecordClaim_LostInsertRaceFallsThroughToUpdate(t *testing.T) {
	fx := newEngineFixture(t, time.Date(2023, time.July, 10, 0, 0, 0, 0, time.UTC))
	fx.claims.stealInserts = true

	require.NoError(t, fx.engine.RecordClaim(context.Background(), "0xaaa", 6000))

	rec, err := fx.engine.FindClaim(context.Background(), "0xaaa")
	require.NoError(t, err)
	require.Equal(t, 2, rec.ClaimsThisMonth)
	require.Equal(t, 2, rec.ClaimsAllTime)
}

func TestEngine_RecordClaim_ConflictAfterRetries(t *testing.T) {
	fx := newEngineFixture(t, time.Date(2023, time.July, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, fx.engine.RecordClaim(context.Background(), "0xaaa", 6000))

	fx.claims.failCAS = true
	fx.advance(48 * time.Hour)
	err := fx.engine.RecordClaim(context.Background(), "0xaaa", 6000)
	require.ErrorIs(t, err, ErrClaimConflict)
}

func TestEngine_NextClaimTime(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown address is ready immediately", func(t *testing.T) {
		fx := newEngineFixture(t, time.Date(2023, time.July, 10, 0, 0, 0, 0, time.UTC))

		el, err := fx.engine.NextClaimTime(ctx, "0xaaa")
		require.NoError(t, err)
		require.True(t, el.HasEnoughTime)
		require.True(t, el.UnderMonthlyCap)
		require.Zero(t, el.NextClaimUnix)
	})

	t.Run("cooldown blocks until last claim plus interval", func(t *testing.T) {
		now := time.Date(2023, time.July, 10, 12, 0, 0, 0, time.UTC)
		fx := newEngineFixture(t, now)
		require.NoError(t, fx.engine.RecordClaim(ctx, "0xaaa", 6000))

		fx.advance(time.Hour)
		el, err := fx.engine.NextClaimTime(ctx, "0xaaa")
		require.NoError(t, err)
		require.False(t, el.HasEnoughTime)
		require.True(t, el.UnderMonthlyCap)
		require.Equal(t, now.Add(1410*time.Minute).Unix(), el.NextClaimUnix)
	})

	t.Run("cooldown expiry with partial seconds rounds up", func(t *testing.T) {
		now := time.Date(2023, time.July, 10, 12, 0, 0, 500_000_000, time.UTC)
		fx := newEngineFixture(t, now)
		require.NoError(t, fx.engine.RecordClaim(ctx, "0xaaa", 6000))

		fx.advance(time.Hour)
		el, err := fx.engine.NextClaimTime(ctx, "0xaaa")
		require.NoError(t, err)
		require.Equal(t, now.Add(1410*time.Minute).Unix()+1, el.NextClaimUnix)
	})

	t.Run("exhausted cap blocks everyone until the month resets", func(t *testing.T) {
		fx := newEngineFixture(t, time.Date(2023, time.July, 10, 0, 0, 0, 0, time.UTC))
		fx.claims.records["0xwhale"] = &models.ClaimRecord{
			Address:         "0xwhale",
			LastClaimAt:     time.Date(2023, time.July, 9, 0, 0, 0, 0, time.UTC),
			MonthIndex:      4,
			ClaimsThisMonth: 11111,
			ClaimsAllTime:   11111,
		}

		el, err := fx.engine.NextClaimTime(ctx, "0xaaa")
		require.NoError(t, err)
		require.True(t, el.HasEnoughTime)
		require.False(t, el.UnderMonthlyCap)
		require.Equal(t, time.Date(2023, time.August, 1, 0, 0, 0, 0, time.UTC).Unix(), el.NextClaimUnix)
	})

	t.Run("later constraint wins when both apply", func(t *testing.T) {
		now := time.Date(2023, time.July, 31, 12, 0, 0, 0, time.UTC)
		fx := newEngineFixture(t, now)
		require.NoError(t, fx.engine.RecordClaim(ctx, "0xaaa", 6000))

		fx.claims.records["0xwhale"] = &models.ClaimRecord{
			Address:         "0xwhale",
			LastClaimAt:     now.Add(-time.Hour),
			MonthIndex:      4,
			ClaimsThisMonth: 11110,
			ClaimsAllTime:   11110,
		}

		el, err := fx.engine.NextClaimTime(ctx, "0xaaa")
		require.NoError(t, err)
		require.False(t, el.HasEnoughTime)
		require.False(t, el.UnderMonthlyCap)
		// Cooldown expires Aug 1 11:30, after the Aug 1 00:00 cap reset.
		require.Equal(t, now.Add(1410*time.Minute).Unix(), el.NextClaimUnix)
	})
}

func TestEngine_RegisterAddress(t *testing.T) {
	ctx := context.Background()
	fx := newEngineFixture(t, time.Date(2023, time.July, 10, 0, 0, 0, 0, time.UTC))

	ok, err := fx.engine.RegisterAddress(ctx, "alice", "0xA1", false)
	require.NoError(t, err)
	require.True(t, ok)

	link, err := fx.engine.LookupByUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, link)
	require.Equal(t, "0xa1", link.Address)

	// A second user cannot take alice's address.
	ok, err = fx.engine.RegisterAddress(ctx, "bob", "0xA1", false)
	require.NoError(t, err)
	require.False(t, ok)

	// Alice cannot re-register without the change flag.
	ok, err = fx.engine.RegisterAddress(ctx, "alice", "0xB2", false)
	require.NoError(t, err)
	require.False(t, ok)

	// With the change flag she can.
	ok, err = fx.engine.RegisterAddress(ctx, "alice", "0xB2", true)
	require.NoError(t, err)
	require.True(t, ok)

	link, err = fx.engine.LookupByUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "0xb2", link.Address)

	// 0xa1 is free again.
	ok, err = fx.engine.RegisterAddress(ctx, "bob", " 0xA1 ", false)
	require.NoError(t, err)
	require.True(t, ok)

	owner, err := fx.engine.LookupByAddress(ctx, "0xA1")
	require.NoError(t, err)
	require.NotNil(t, owner)
	require.Equal(t, "bob", owner.UserID)
}

func TestEngine_Stats(t *testing.T) {
	ctx := context.Background()
	fx := newEngineFixture(t, time.Date(2023, time.July, 10, 0, 0, 0, 0, time.UTC))

	require.NoError(t, fx.engine.RecordClaim(ctx, "0xaaa", 6000))
	fx.advance(30 * time.Hour)
	require.NoError(t, fx.engine.RecordClaim(ctx, "0xaaa", 6000))
	require.NoError(t, fx.engine.RecordClaim(ctx, "0xbbb", 6000))

	st, err := fx.engine.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, st.MonthIndex)
	require.Equal(t, float64(6000), st.PayoutAmount)
	require.Equal(t, 3, st.ClaimsThisMonth)
	require.Equal(t, 2, st.UniqueClaimants)
	require.Equal(t, 3, st.TotalClaims)
	require.Equal(t, 2, st.ClaimsLast24h)
}

func TestEngine_Stats_CachedUntilNextClaim(t *testing.T) {
	ctx := context.Background()
	fx := newEngineFixture(t, time.Date(2023, time.July, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, fx.engine.RecordClaim(ctx, "0xaaa", 6000))

	st, err := fx.engine.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.TotalClaims)

	// Mutating the store behind the cache's back does not show up...
	fx.claims.records["0xccc"] = &models.ClaimRecord{
		Address: "0xccc", LastClaimAt: *fx.now, MonthIndex: 4,
		ClaimsThisMonth: 1, ClaimsAllTime: 1,
	}
	st, err = fx.engine.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.TotalClaims)

	// ...but a claim through the engine invalidates the snapshot.
	fx.advance(30 * time.Hour)
	require.NoError(t, fx.engine.RecordClaim(ctx, "0xbbb", 6000))
	st, err = fx.engine.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, st.TotalClaims)
}

func TestEngine_LinkedWebsites(t *testing.T) {
	ctx := context.Background()
	fx := newEngineFixture(t, time.Date(2023, time.July, 10, 0, 0, 0, 0, time.UTC))

	site, err := fx.engine.GetLinkedWebsite(ctx, "0xaaa")
	require.NoError(t, err)
	require.Nil(t, site)

	require.NoError(t, fx.engine.SetLinkedWebsite(ctx, "0xAAA", "https://example.com"))
	site, err = fx.engine.GetLinkedWebsite(ctx, "0xaaa")
	require.NoError(t, err)
	require.NotNil(t, site)
	require.Equal(t, "https://example.com", site.URL)

	require.NoError(t, fx.engine.RemoveLinkedWebsite(ctx, "0xaaa"))
	site, err = fx.engine.GetLinkedWebsite(ctx, "0xaaa")
	require.NoError(t, err)
	require.Nil(t, site)
}

func TestEngine_TopClaimants(t *testing.T) {
	ctx := context.Background()
	fx := newEngineFixture(t, time.Date(2023, time.July, 10, 0, 0, 0, 0, time.UTC))

	for i, addr := range []string{"0xaaa", "0xbbb", "0xccc"} {
		fx.claims.records[addr] = &models.ClaimRecord{
			Address:       addr,
			LastClaimAt:   *fx.now,
			MonthIndex:    4,
			ClaimsAllTime: (i + 1) * 10,
		}
	}

	top, err := fx.engine.TopClaimants(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "0xccc", top[0].Address)
	require.Equal(t, "0xbbb", top[1].Address)
}
