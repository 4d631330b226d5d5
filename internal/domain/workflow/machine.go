package workflow

// Machine tracks the current state of one entity and validates role-gated
// transitions against a static table. Unknown (state, action) pairs are
// illegal by default.
type Machine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the action has a transition defined in the
	// current state, regardless of role
	CanFire(action Action) bool

	// Peek validates the transition without applying it and returns the
	// target state. Fails with ErrIllegalTransition or ErrRoleDenied.
	Peek(action Action, role Role) (State, error)

	// Fire attempts the transition, moving to the target state if allowed
	Fire(action Action, role Role) error

	// PermittedActions returns all actions with a transition defined in the
	// current state
	PermittedActions() []Action
}
