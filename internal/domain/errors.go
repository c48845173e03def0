package domain

import "errors"

// Failure taxonomy returned by the application service. Adapters branch on
// these with errors.Is to pick transport status codes.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("duplicate habit name")
	ErrHabitArchived = errors.New("habit is archived")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrAlreadyUndone = errors.New("event already undone")

	// ErrConsistencyFault marks an internal invariant violation (an aggregate
	// counter would go negative, or an event references a missing habit). It
	// is a bug, not a user error: the enclosing transaction is aborted and
	// the caller must not retry.
	ErrConsistencyFault = errors.New("aggregate consistency fault")
)
