package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/models"
)

var qb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

var entityColumns = []string{
	"entity_type",
	"id",
	"payload",
	"version",
	"updated_at",
	"cached_at",
	"locally_modified",
	"pending_sync",
	"deleted",
}

type entityRepository struct {
	*DB
	logger *logger.Logger
}

// NewEntityRepository wires an EntityRepository onto the cache database.
func NewEntityRepository(db *DB, logger *logger.Logger) EntityRepository {
	return &entityRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *entityRepository) degraded() bool {
	return r.DB == nil || r.DB.DB == nil || !r.DB.Healthy()
}

func (r *entityRepository) Get(ctx context.Context, entityType, id string) (models.Entity, error) {
	if r.degraded() {
		return models.Entity{}, ErrEntityNotFound
	}

	row := r.DB.QueryRowContext(ctx, getEntity, entityType, id)
	item, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Entity{}, ErrEntityNotFound
		}
		logger.FromContext(ctx).Err(err).
			Str("func", "entityRepository.Get").
			Str("entity_type", entityType).
			Str("id", id).
			Msg("failed to load entity")
		return models.Entity{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return item, nil
}

func (r *entityRepository) Put(ctx context.Context, entities ...models.Entity) error {
	if r.degraded() {
		return ErrStorageUnhealthy
	}

	log := logger.FromContext(ctx)
	now := time.Now()

	for _, item := range entities {
		item.CachedAt = now
		_, err := r.DB.ExecContext(ctx, upsertEntity,
			item.EntityType,
			item.ID,
			string(item.Payload),
			item.Version,
			item.UpdatedAt,
			item.CachedAt,
			item.LocallyModified,
			item.PendingSync,
			item.Deleted,
		)
		if err != nil {
			log.Err(err).
				Str("func", "entityRepository.Put").
				Str("entity_type", item.EntityType).
				Str("id", item.ID).
				Msg("failed to execute upsert for entity")
			return fmt.Errorf("failed to save entity (id=%s): %w", item.ID, err)
		}
	}

	return nil
}

func (r *entityRepository) Delete(ctx context.Context, entityType, id string) error {
	if r.degraded() {
		return ErrStorageUnhealthy
	}

	if _, err := r.DB.ExecContext(ctx, deleteEntity, entityType, id); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "entityRepository.Delete").
			Str("entity_type", entityType).
			Str("id", id).
			Msg("failed to delete entity")
		return fmt.Errorf("failed to delete entity (id=%s): %w", id, err)
	}

	return nil
}

func (r *entityRepository) QueryDirty(ctx context.Context, entityType string) ([]models.Entity, error) {
	if r.degraded() {
		return nil, nil
	}

	query, args, err := qb.Select(entityColumns...).
		From("entities").
		Where(squirrel.Eq{"entity_type": entityType}).
		Where(squirrel.Or{
			squirrel.Eq{"locally_modified": true},
			squirrel.Eq{"pending_sync": true},
		}).
		OrderBy("updated_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return r.queryEntities(ctx, "entityRepository.QueryDirty", query, args...)
}

func (r *entityRepository) QueryByType(ctx context.Context, entityType string, limit int) ([]models.Entity, error) {
	if r.degraded() {
		return nil, nil
	}

	builder := qb.Select(entityColumns...).
		From("entities").
		Where(squirrel.Eq{"entity_type": entityType, "deleted": false}).
		OrderBy("updated_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return r.queryEntities(ctx, "entityRepository.QueryByType", query, args...)
}

func (r *entityRepository) MarkModified(ctx context.Context, entityType, id string, modifiedAt time.Time) error {
	if r.degraded() {
		return ErrStorageUnhealthy
	}

	res, err := r.DB.ExecContext(ctx, markEntityModified, modifiedAt, time.Now(), entityType, id)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "entityRepository.MarkModified").
			Str("entity_type", entityType).
			Str("id", id).
			Msg("failed to mark entity modified")
		return fmt.Errorf("failed to mark entity modified (id=%s): %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (r *entityRepository) MarkSynced(ctx context.Context, entityType, id string, version int64) error {
	if r.degraded() {
		return ErrStorageUnhealthy
	}

	res, err := r.DB.ExecContext(ctx, markEntitySynced, version, time.Now(), entityType, id)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "entityRepository.MarkSynced").
			Str("entity_type", entityType).
			Str("id", id).
			Msg("failed to mark entity synced")
		return fmt.Errorf("failed to mark entity synced (id=%s): %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (r *entityRepository) EvictOlderThan(ctx context.Context, entityType string, ttl time.Duration) (int64, error) {
	if r.degraded() {
		return 0, nil
	}

	cutoff := time.Now().Add(-ttl)

	// Dirty rows hold unsynced work and are never eviction candidates.
	query, args, err := qb.Delete("entities").
		Where(squirrel.Eq{"entity_type": entityType}).
		Where(squirrel.Lt{"cached_at": cutoff}).
		Where(squirrel.Eq{"locally_modified": false, "pending_sync": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "entityRepository.EvictOlderThan").
			Str("entity_type", entityType).
			Msg("failed to evict expired entities")
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	evicted, _ := res.RowsAffected()
	return evicted, nil
}

func (r *entityRepository) LastSyncedAt(ctx context.Context, entityType string) (time.Time, error) {
	if r.degraded() {
		return time.Time{}, nil
	}

	var at time.Time
	err := r.DB.QueryRowContext(ctx, getLastSyncedAt, entityType).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return at, nil
}

func (r *entityRepository) SetLastSyncedAt(ctx context.Context, entityType string, at time.Time) error {
	if r.degraded() {
		return ErrStorageUnhealthy
	}

	if _, err := r.DB.ExecContext(ctx, upsertLastSyncedAt, entityType, at); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "entityRepository.SetLastSyncedAt").
			Str("entity_type", entityType).
			Msg("failed to record last sync time")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *entityRepository) queryEntities(ctx context.Context, caller, query string, args ...any) ([]models.Entity, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", caller).
			Msg("failed to execute entity query")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var items []models.Entity
	for rows.Next() {
		item, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (models.Entity, error) {
	var (
		item    models.Entity
		payload string
	)
	err := row.Scan(
		&item.EntityType,
		&item.ID,
		&payload,
		&item.Version,
		&item.UpdatedAt,
		&item.CachedAt,
		&item.LocallyModified,
		&item.PendingSync,
		&item.Deleted,
	)
	if err != nil {
		return models.Entity{}, err
	}
	item.Payload = []byte(payload)

	return item, nil
}
