package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/models"
)

type conflictRepository struct {
	*DB
	logger *logger.Logger
}

// NewConflictRepository wires a ConflictRepository onto the outbox database.
func NewConflictRepository(db *DB, logger *logger.Logger) ConflictRepository {
	return &conflictRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *conflictRepository) degraded() bool {
	return r.DB == nil || r.DB.DB == nil || !r.DB.Healthy()
}

func (r *conflictRepository) Save(ctx context.Context, conflict models.ConflictInfo) error {
	if r.degraded() {
		return ErrStorageUnhealthy
	}

	localSnap, err := json.Marshal(conflict.Local)
	if err != nil {
		return fmt.Errorf("encode local snapshot: %w", err)
	}
	remoteSnap, err := json.Marshal(conflict.Remote)
	if err != nil {
		return fmt.Errorf("encode remote snapshot: %w", err)
	}

	if conflict.Status == "" {
		conflict.Status = models.ConflictStatusPending
	}

	_, err = r.DB.ExecContext(ctx, upsertConflict,
		conflict.EntityType,
		conflict.EntityID,
		string(localSnap),
		string(remoteSnap),
		conflict.DetectedAt,
		conflict.Status,
	)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "conflictRepository.Save").
			Str("entity_type", conflict.EntityType).
			Str("entity_id", conflict.EntityID).
			Msg("failed to persist pending conflict")
		return fmt.Errorf("failed to save conflict (id=%s): %w", conflict.EntityID, err)
	}

	return nil
}

func (r *conflictRepository) Get(ctx context.Context, entityType, entityID string) (models.ConflictInfo, error) {
	if r.degraded() {
		return models.ConflictInfo{}, ErrConflictNotFound
	}

	row := r.DB.QueryRowContext(ctx, getConflict, entityType, entityID)
	conflict, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ConflictInfo{}, ErrConflictNotFound
		}
		return models.ConflictInfo{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return conflict, nil
}

func (r *conflictRepository) Pending(ctx context.Context, entityType string) ([]models.ConflictInfo, error) {
	if r.degraded() {
		return nil, nil
	}

	builder := qb.Select(
		"entity_type",
		"entity_id",
		"local_snapshot",
		"remote_snapshot",
		"detected_at",
		"status",
	).
		From("conflicts").
		Where(squirrel.Eq{"status": models.ConflictStatusPending}).
		OrderBy("detected_at ASC")
	if entityType != "" {
		builder = builder.Where(squirrel.Eq{"entity_type": entityType})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "conflictRepository.Pending").
			Msg("failed to query pending conflicts")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var conflicts []models.ConflictInfo
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		conflicts = append(conflicts, conflict)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return conflicts, nil
}

func (r *conflictRepository) Remove(ctx context.Context, entityType, entityID string) error {
	if r.degraded() {
		return ErrStorageUnhealthy
	}

	res, err := r.DB.ExecContext(ctx, deleteConflict, entityType, entityID)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "conflictRepository.Remove").
			Str("entity_type", entityType).
			Str("entity_id", entityID).
			Msg("failed to remove conflict")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflictNotFound
	}

	return nil
}

func (r *conflictRepository) Clear(ctx context.Context, entityType string) (int64, error) {
	if r.degraded() {
		return 0, nil
	}

	builder := qb.Delete("conflicts")
	if entityType != "" {
		builder = builder.Where(squirrel.Eq{"entity_type": entityType})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "conflictRepository.Clear").
			Msg("failed to clear conflicts")
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	cleared, _ := res.RowsAffected()
	return cleared, nil
}

func scanConflict(row rowScanner) (models.ConflictInfo, error) {
	var (
		conflict   models.ConflictInfo
		localSnap  string
		remoteSnap string
	)
	err := row.Scan(
		&conflict.EntityType,
		&conflict.EntityID,
		&localSnap,
		&remoteSnap,
		&conflict.DetectedAt,
		&conflict.Status,
	)
	if err != nil {
		return models.ConflictInfo{}, err
	}

	if err = json.Unmarshal([]byte(localSnap), &conflict.Local); err != nil {
		return models.ConflictInfo{}, fmt.Errorf("decode local snapshot: %w", err)
	}
	if err = json.Unmarshal([]byte(remoteSnap), &conflict.Remote); err != nil {
		return models.ConflictInfo{}, fmt.Errorf("decode remote snapshot: %w", err)
	}

	return conflict, nil
}
