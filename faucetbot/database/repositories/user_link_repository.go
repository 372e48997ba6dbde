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

// UserLinkRepository is the account directory store. Uniqueness in both
// directions is enforced by the engine via lookup-before-write.
type UserLinkRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.UserLink, error)
	GetByAddress(ctx context.Context, address string) (*models.UserLink, error)
	Create(ctx context.Context, link *models.UserLink) error
	UpdateAddress(ctx context.Context, userID string, address string) error
}

type userLinkRepository struct {
	db *bun.DB
}

func NewUserLinkRepository(db *bun.DB) UserLinkRepository {
	return &userLinkRepository{db: db}
}

func (r *userLinkRepository) GetByUserID(ctx context.Context, userID string) (*models.UserLink, error) {
	link := new(models.UserLink)
	err := r.db.NewSelect().
		Model(link).
		Where("user_id = ?", userID).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user link: %w", err)
	}
	return link, nil
}

func (r *userLinkRepository) GetByAddress(ctx context.Context, address string) (*models.UserLink, error) {
	link := new(models.UserLink)
	err := r.db.NewSelect().
		Model(link).
		Where("address = ?", address).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user link by address: %w", err)
	}
	return link, nil
}

func (r *userLinkRepository) Create(ctx context.Context, link *models.UserLink) error {
	link.CreatedAt = time.Now()
	link.UpdatedAt = time.Now()
	if _, err := r.db.NewInsert().Model(link).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create user link: %w", err)
	}
	return nil
}

func (r *userLinkRepository) UpdateAddress(ctx context.Context, userID string, address string) error {
	_, err := r.db.NewUpdate().
		Model((*models.UserLink)(nil)).
		Set("address = ?", address).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update user link: %w", err)
	}
	return nil
}
