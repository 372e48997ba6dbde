package migration

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/xac-network/faucet-bot/faucetbot/database/models"
)

// Migrator copies the original faucet's MongoDB collections into Postgres.
// Inserts skip rows that already exist, so re-running after a partial
// failure is safe.
type Migrator struct {
	pgDB      *bun.DB
	mongoDB   *mongo.Database
	batchSize int
	collNames map[string]string
}

func NewMigrator(pgDB *bun.DB, mongoDB *mongo.Database) *Migrator {
	return &Migrator{
		pgDB:      pgDB,
		mongoDB:   mongoDB,
		batchSize: 500,
		collNames: map[string]string{
			"claims":          "claims",
			"milestones":      "milestones",
			"users":           "users",
			"linked_websites": "linked_websites",
		},
	}
}

// SetBatchSize overrides the default insert batch size.
func (m *Migrator) SetBatchSize(size int) {
	if size > 0 {
		m.batchSize = size
	}
}

// SetCollectionName remaps a legacy collection name.
func (m *Migrator) SetCollectionName(key, name string) {
	m.collNames[key] = name
}

func (m *Migrator) MigrateAll(ctx context.Context) error {
	start := time.Now()

	steps := []struct {
		name string
		fn   func(context.Context) (int, error)
	}{
		{"claims", m.migrateClaims},
		{"milestones", m.migrateMilestones},
		{"users", m.migrateUsers},
		{"linked_websites", m.migrateWebsites},
	}

	for _, step := range steps {
		stepStart := time.Now()
		count, err := step.fn(ctx)
		if err != nil {
			return fmt.Errorf("failed to migrate %s: %w", step.name, err)
		}
		slog.Info("Collection migrated",
			slog.String("type", "db"),
			slog.String("collection", step.name),
			slog.Int("rows", count),
			slog.Duration("took", time.Since(stepStart)))
	}

	slog.Info("Migration finished",
		slog.String("type", "db"),
		slog.Duration("took", time.Since(start)))
	return nil
}

func (m *Migrator) migrateClaims(ctx context.Context) (int, error) {
	cursor, err := m.mongoDB.Collection(m.collNames["claims"]).Find(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to query legacy claims: %w", err)
	}
	defer cursor.Close(ctx)

	var batch []*models.ClaimRecord
	total := 0

	for cursor.Next(ctx) {
		var legacy LegacyClaim
		if err := cursor.Decode(&legacy); err != nil {
			return total, fmt.Errorf("failed to decode legacy claim: %w", err)
		}

		batch = append(batch, &models.ClaimRecord{
			Address:         legacy.Address,
			LastClaimAt:     time.UnixMilli(legacy.LastClaim).UTC(),
			MonthIndex:      int(legacy.Month),
			ClaimsThisMonth: int(legacy.ClaimsThisMonth),
			ClaimsAllTime:   int(legacy.Claims),
			LastAmount:      legacy.Amount,
		})

		if len(batch) >= m.batchSize {
			n, err := m.insertClaims(ctx, batch)
			if err != nil {
				return total, err
			}
			total += n
			batch = batch[:0]
		}
	}
	if err := cursor.Err(); err != nil {
		return total, fmt.Errorf("legacy claims cursor failed: %w", err)
	}

	if len(batch) > 0 {
		n, err := m.insertClaims(ctx, batch)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (m *Migrator) insertClaims(ctx context.Context, batch []*models.ClaimRecord) (int, error) {
	res, err := m.pgDB.NewInsert().
		Model(&batch).
		On("CONFLICT (address) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to insert claim batch: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

func (m *Migrator) migrateMilestones(ctx context.Context) (int, error) {
	cursor, err := m.mongoDB.Collection(m.collNames["milestones"]).Find(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to query legacy milestones: %w", err)
	}
	defer cursor.Close(ctx)

	total := 0
	for cursor.Next(ctx) {
		var legacy LegacyMilestone
		if err := cursor.Decode(&legacy); err != nil {
			return total, fmt.Errorf("failed to decode legacy milestone: %w", err)
		}

		st := &models.MilestoneState{
			Kind:       translateMilestoneKind(legacy.Type),
			MonthIndex: int(legacy.Month),
		}
		res, err := m.pgDB.NewInsert().
			Model(st).
			On("CONFLICT (kind) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return total, fmt.Errorf("failed to insert milestone: %w", err)
		}
		if rows, err := res.RowsAffected(); err == nil {
			total += int(rows)
		}
	}
	return total, cursor.Err()
}

// translateMilestoneKind maps the original bot's milestone names to ours.
func translateMilestoneKind(legacy string) string {
	switch legacy {
	case "last_uses":
		return models.MilestoneLowQuota
	default:
		return legacy
	}
}

func (m *Migrator) migrateUsers(ctx context.Context) (int, error) {
	cursor, err := m.mongoDB.Collection(m.collNames["users"]).Find(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to query legacy users: %w", err)
	}
	defer cursor.Close(ctx)

	var batch []*models.UserLink
	total := 0
	now := time.Now()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := m.pgDB.NewInsert().
			Model(&batch).
			On("CONFLICT (user_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert user link batch: %w", err)
		}
		if rows, err := res.RowsAffected(); err == nil {
			total += int(rows)
		}
		batch = batch[:0]
		return nil
	}

	for cursor.Next(ctx) {
		var legacy LegacyUser
		if err := cursor.Decode(&legacy); err != nil {
			return total, fmt.Errorf("failed to decode legacy user: %w", err)
		}

		batch = append(batch, &models.UserLink{
			UserID:    legacy.User,
			Address:   legacy.Address,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if len(batch) >= m.batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return total, fmt.Errorf("legacy users cursor failed: %w", err)
	}
	return total, flush()
}

func (m *Migrator) migrateWebsites(ctx context.Context) (int, error) {
	cursor, err := m.mongoDB.Collection(m.collNames["linked_websites"]).Find(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to query legacy websites: %w", err)
	}
	defer cursor.Close(ctx)

	total := 0
	now := time.Now()

	for cursor.Next(ctx) {
		var legacy LegacyWebsite
		if err := cursor.Decode(&legacy); err != nil {
			return total, fmt.Errorf("failed to decode legacy website: %w", err)
		}

		site := &models.LinkedWebsite{
			Address:   legacy.Address,
			URL:       legacy.URL,
			UpdatedAt: now,
		}
		res, err := m.pgDB.NewInsert().
			Model(site).
			On("CONFLICT (address) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return total, fmt.Errorf("failed to insert website: %w", err)
		}
		if rows, err := res.RowsAffected(); err == nil {
			total += int(rows)
		}
	}
	return total, cursor.Err()
}
