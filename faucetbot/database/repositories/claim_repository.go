package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/uptrace/bun"
	"github.com/xac-network/faucet-bot/faucetbot/database/models"
)

// ClaimRepository is the keyed record store behind the claim ledger.
// Absence of a record is a valid state and is reported as (nil, nil).
type ClaimRepository interface {
	Find(ctx context.Context, address string) (*models.ClaimRecord, error)
	InsertIfAbsent(ctx context.Context, rec *models.ClaimRecord) (bool, error)
	UpdateIfUnchanged(ctx context.Context, rec *models.ClaimRecord, prevLastClaimAt time.Time) (bool, error)
	SumMonthClaims(ctx context.Context, monthIndex int) (int, error)
	TotalClaims(ctx context.Context) (int, error)
	CountClaimants(ctx context.Context) (int, error)
	CountActiveSince(ctx context.Context, since time.Time) (int, error)
	TopClaimants(ctx context.Context, limit int) ([]*models.ClaimRecord, error)
}

type claimRepository struct {
	db *bun.DB
}

func NewClaimRepository(db *bun.DB) ClaimRepository {
	return &claimRepository{db: db}
}

func (r *claimRepository) Find(ctx context.Context, address string) (*models.ClaimRecord, error) {
	rec := new(models.ClaimRecord)
	err := r.db.NewSelect().
		Model(rec).
		Where("address = ?", address).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find claim record: %w", err)
	}
	return rec, nil
}

// InsertIfAbsent creates the first record for an address. Returns false when
// another writer created the row first; the caller should re-read and retry.
func (r *claimRepository) InsertIfAbsent(ctx context.Context, rec *models.ClaimRecord) (bool, error) {
	res, err := r.db.NewInsert().
		Model(rec).
		On("CONFLICT (address) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert claim record: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows == 1, nil
}

// UpdateIfUnchanged writes the full record back, conditioned on
// last_claim_at still holding the value observed at read time. A false
// return means a concurrent claim won the race.
func (r *claimRepository) UpdateIfUnchanged(ctx context.Context, rec *models.ClaimRecord, prevLastClaimAt time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model(rec).
		Set("last_claim_at = ?", rec.LastClaimAt).
		Set("month_index = ?", rec.MonthIndex).
		Set("claims_this_month = ?", rec.ClaimsThisMonth).
		Set("claims_all_time = ?", rec.ClaimsAllTime).
		Set("last_amount = ?", rec.LastAmount).
		Where("address = ?", rec.Address).
		Where("last_claim_at = ?", prevLastClaimAt).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to update claim record: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rows == 0 {
		slog.Warn("Concurrent claim update detected",
			slog.String("type", "db"),
			slog.String("operation", "UpdateIfUnchanged"),
			slog.String("address", rec.Address))
	}
	return rows == 1, nil
}

// SumMonthClaims adds up claims_this_month across records stamped with the
// given month index. Records carrying an older month are stale and simply
// excluded; they are rolled over lazily on their next claim.
func (r *claimRepository) SumMonthClaims(ctx context.Context, monthIndex int) (int, error) {
	var total int
	err := r.db.NewSelect().
		Model((*models.ClaimRecord)(nil)).
		ColumnExpr("COALESCE(SUM(claims_this_month), 0)").
		Where("month_index = ?", monthIndex).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum month claims: %w", err)
	}
	return total, nil
}

func (r *claimRepository) TotalClaims(ctx context.Context) (int, error) {
	var total int
	err := r.db.NewSelect().
		Model((*models.ClaimRecord)(nil)).
		ColumnExpr("COALESCE(SUM(claims_all_time), 0)").
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum all-time claims: %w", err)
	}
	return total, nil
}

func (r *claimRepository) CountClaimants(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.ClaimRecord)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count claimants: %w", err)
	}
	return count, nil
}

func (r *claimRepository) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.ClaimRecord)(nil)).
		Where("last_claim_at > ?", since).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent claimants: %w", err)
	}
	return count, nil
}

func (r *claimRepository) TopClaimants(ctx context.Context, limit int) ([]*models.ClaimRecord, error) {
	var recs []*models.ClaimRecord
	err := r.db.NewSelect().
		Model(&recs).
		Order("claims_all_time DESC").
		Order("address ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list top claimants: %w", err)
	}
	return recs, nil
}
