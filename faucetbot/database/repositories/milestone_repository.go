package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/xac-network/faucet-bot/faucetbot/database/models"
)

// MilestoneRepository persists the month-gated one-shot latches.
type MilestoneRepository interface {
	// LastFiredMonth returns the month index the milestone last fired at,
	// or -1 when the milestone has never fired.
	LastFiredMonth(ctx context.Context, kind string) (int, error)
	// MarkFired atomically advances the milestone to the given month.
	// Returns true only for the writer that actually moved it, so
	// concurrent evaluators cannot double-fire within a month.
	MarkFired(ctx context.Context, kind string, monthIndex int) (bool, error)
}

type milestoneRepository struct {
	db *bun.DB
}

func NewMilestoneRepository(db *bun.DB) MilestoneRepository {
	return &milestoneRepository{db: db}
}

func (r *milestoneRepository) LastFiredMonth(ctx context.Context, kind string) (int, error) {
	st := new(models.MilestoneState)
	err := r.db.NewSelect().
		Model(st).
		Where("kind = ?", kind).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("failed to load milestone state: %w", err)
	}
	return st.MonthIndex, nil
}

func (r *milestoneRepository) MarkFired(ctx context.Context, kind string, monthIndex int) (bool, error) {
	st := &models.MilestoneState{
		Kind:       kind,
		MonthIndex: monthIndex,
	}

	res, err := r.db.NewInsert().
		Model(st).
		On("CONFLICT (kind) DO UPDATE").
		Set("month_index = EXCLUDED.month_index").
		Where("ms.month_index <> EXCLUDED.month_index").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to mark milestone fired: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows == 1, nil
}
