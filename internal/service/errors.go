package service

import "errors"

var (
	// ErrInvalidDataProvided is returned when an optimistic update is
	// constructed with a blank entity id or empty optimistic value.
	ErrInvalidDataProvided = errors.New("invalid data provided")

	// ErrInvalidTransition is returned (wrapped, with the attempted states)
	// when an optimistic update lifecycle call is made from a state that
	// does not allow it. Confirmed and RolledBack are terminal.
	ErrInvalidTransition = errors.New("invalid update state transition")

	// ErrConflictUnresolved is returned by Resolve under the manual strategy:
	// the conflict has been queued for a human decision and the entity's
	// prior state is left untouched.
	ErrConflictUnresolved = errors.New("conflict requires manual resolution")
)
