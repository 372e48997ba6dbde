package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/xac-network/faucet-bot/faucetbot/database/models"
)

// WebsiteRepository stores the optional address -> URL links.
type WebsiteRepository interface {
	Get(ctx context.Context, address string) (*models.LinkedWebsite, error)
	Upsert(ctx context.Context, address string, url string) error
	Delete(ctx context.Context, address string) error
}

type websiteRepository struct {
	db *bun.DB
}

func NewWebsiteRepository(db *bun.DB) WebsiteRepository {
	return &websiteRepository{db: db}
}

func (r *websiteRepository) Get(ctx context.Context, address string) (*models.LinkedWebsite, error) {
	site := new(models.LinkedWebsite)
	err := r.db.NewSelect().
		Model(site).
		Where("address = ?", address).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get linked website: %w", err)
	}
	return site, nil
}

func (r *websiteRepository) Upsert(ctx context.Context, address string, url string) error {
	site := &models.LinkedWebsite{
		Address:   address,
		URL:       url,
		UpdatedAt: time.Now(),
	}

	_, err := r.db.NewInsert().
		Model(site).
		On("CONFLICT (address) DO UPDATE").
		Set("url = EXCLUDED.url").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert linked website: %w", err)
	}
	return nil
}

func (r *websiteRepository) Delete(ctx context.Context, address string) error {
	_, err := r.db.NewDelete().
		Model((*models.LinkedWebsite)(nil)).
		Where("address = ?", address).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete linked website: %w", err)
	}
	return nil
}
