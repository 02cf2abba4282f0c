// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaar Labs

package store

const (
	upsertEntity = `
		INSERT INTO entities (
			entity_type,
			id,
			payload,
			version,
			updated_at,
			cached_at,
			locally_modified,
			pending_sync,
			deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, id) DO UPDATE SET
			payload          = excluded.payload,
			version          = excluded.version,
			updated_at       = excluded.updated_at,
			cached_at        = excluded.cached_at,
			locally_modified = excluded.locally_modified,
			pending_sync     = excluded.pending_sync,
			deleted          = excluded.deleted;`

	getEntity = `
		SELECT
			entity_type,
			id,
			payload,
			version,
			updated_at,
			cached_at,
			locally_modified,
			pending_sync,
			deleted
		FROM entities
		WHERE entity_type = ? AND id = ?;`

	deleteEntity = `
		DELETE FROM entities
		WHERE entity_type = ? AND id = ?;`

	markEntityModified = `
		UPDATE entities SET
			locally_modified = TRUE,
			pending_sync     = TRUE,
			updated_at       = ?,
			cached_at        = ?
		WHERE entity_type = ? AND id = ?;`

	markEntitySynced = `
		UPDATE entities SET
			locally_modified = FALSE,
			pending_sync     = FALSE,
			version          = ?,
			cached_at        = ?
		WHERE entity_type = ? AND id = ?;`

	getLastSyncedAt = `
		SELECT last_synced_at
		FROM sync_meta
		WHERE entity_type = ?;`

	upsertLastSyncedAt = `
		INSERT INTO sync_meta (entity_type, last_synced_at)
		VALUES (?, ?)
		ON CONFLICT (entity_type) DO UPDATE SET
			last_synced_at = excluded.last_synced_at;`

	enqueueOperation = `
		INSERT INTO operations (
			id,
			entity_type,
			entity_id,
			operation,
			payload,
			ts,
			retry_count,
			status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`

	markOperationSending = `
		UPDATE operations SET status = 'sending'
		WHERE id = ?;`

	markOperationSent = `
		DELETE FROM operations
		WHERE id = ?;`

	markOperationFailed = `
		UPDATE operations SET
			retry_count = retry_count + 1,
			status      = CASE WHEN retry_count + 1 >= ? THEN 'dead' ELSE 'failed' END
		WHERE id = ?;`

	purgeDeadOperations = `
		DELETE FROM operations
		WHERE status = 'dead';`

	upsertConflict = `
		INSERT INTO conflicts (
			entity_type,
			entity_id,
			local_snapshot,
			remote_snapshot,
			detected_at,
			status
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			local_snapshot  = excluded.local_snapshot,
			remote_snapshot = excluded.remote_snapshot,
			detected_at     = excluded.detected_at,
			status          = excluded.status;`

	getConflict = `
		SELECT
			entity_type,
			entity_id,
			local_snapshot,
			remote_snapshot,
			detected_at,
			status
		FROM conflicts
		WHERE entity_type = ? AND entity_id = ? AND status = 'pending';`

	deleteConflict = `
		DELETE FROM conflicts
		WHERE entity_type = ? AND entity_id = ?;`
)
