package workflow

import "errors"

var (
	// ErrIllegalTransition is returned when no transition is defined for the
	// (current state, action) pair
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrRoleDenied is returned when a transition exists but the caller's
	// role is not allowed to perform it
	ErrRoleDenied = errors.New("role not allowed for this transition")

	// ErrInvalidState is returned when an entity carries a state the machine
	// does not know about
	ErrInvalidState = errors.New("invalid state")
)
