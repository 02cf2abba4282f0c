package adapter

import "errors"

// Sentinel errors mapped from transport failures. The optimistic update
// manager classifies these into retry/rollback categories, so keeping the
// set small and stable matters more than per-status fidelity.
var (
	// ErrNetworkUnavailable is returned when the request never reached the
	// backend (DNS failure, connection refused, timeout).
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrRemoteRejected is returned for server-side failures (5xx).
	ErrRemoteRejected = errors.New("remote rejected request")

	// ErrValidation is returned when the backend rejected the payload (400).
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is returned for authentication/authorization failures
	// (401, 403).
	ErrUnauthorized = errors.New("client unauthorized")

	// ErrNotFound is returned when the target entity does not exist on the
	// backend (404).
	ErrNotFound = errors.New("entity not found on backend")

	// ErrVersionConflict is returned when the backend's optimistic-locking
	// check fails (409): another device modified the entity first.
	ErrVersionConflict = errors.New("version conflict")
)
