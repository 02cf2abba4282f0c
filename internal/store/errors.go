package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrEntityNotFound is returned when a query targets an entity
	// (identified by entity_type and id) that is not present in the cache.
	ErrEntityNotFound = errors.New("entity not found in local cache")

	// ErrOperationNotFound is returned when a queue status update targets an
	// operation id that does not exist.
	ErrOperationNotFound = errors.New("queued operation not found")

	// ErrConflictNotFound is returned when a manual resolution targets an
	// entity with no pending conflict on record.
	ErrConflictNotFound = errors.New("pending conflict not found")

	// ErrStorageUnhealthy is returned when the underlying SQLite file could
	// not be opened and the one-shot recovery (discard and recreate the
	// database file) also failed. Read paths degrade to empty results so the
	// engine can keep operating network-only; write paths surface this error.
	ErrStorageUnhealthy = errors.New("local storage unhealthy")
)

// Low-level database operation errors, wrapped by repository methods when a
// SQL-level operation fails before any domain logic can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails (e.g. invalid argument count or unsupported type).
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to execute statement")

	// ErrScanningRow is returned when scanning column values from a result
	// row into a destination struct fails.
	ErrScanningRow = errors.New("failed to scan row")
)
