package workflow

import "fmt"

// Builder builds a configured state machine table
type Builder interface {
	// Configure returns a state configuration for the given state
	Configure(state State) StateConfiguration

	// Build creates a new machine instance positioned at the given state.
	// Fails with ErrInvalidState if the state was never declared.
	Build(initial State) (Machine, error)
}

// StateConfiguration declares outgoing transitions for one state
type StateConfiguration interface {
	// Permit allows the action to transition to the target state when the
	// caller holds one of the given roles. An empty role list denies the
	// transition to everyone, which is never useful; callers always pass at
	// least one role.
	Permit(action Action, to State, roles ...Role) StateConfiguration
}

type transition struct {
	to    State
	roles []Role
}

type stateConfig struct {
	builder     *builder
	from        State
	transitions map[Action]transition
}

type builder struct {
	configurations map[State]*stateConfig
	declared       map[State]bool
}

type machine struct {
	current        State
	configurations map[State]*stateConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() Builder {
	return &builder{
		configurations: make(map[State]*stateConfig),
		declared:       make(map[State]bool),
	}
}

// Configure returns a state configuration for the given state
func (b *builder) Configure(state State) StateConfiguration {
	b.declared[state] = true

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{
			builder:     b,
			from:        state,
			transitions: make(map[Action]transition),
		}
		b.configurations[state] = config
	}

	return config
}

// Build creates a new machine instance positioned at the given state
func (b *builder) Build(initial State) (Machine, error) {
	if !b.declared[initial] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, initial)
	}

	// Copy configurations so machines stay independent of the builder
	configsCopy := make(map[State]*stateConfig, len(b.configurations))
	for state, config := range b.configurations {
		transitionsCopy := make(map[Action]transition, len(config.transitions))
		for action, t := range config.transitions {
			transitionsCopy[action] = transition{
				to:    t.to,
				roles: append([]Role{}, t.roles...),
			}
		}
		configsCopy[state] = &stateConfig{
			from:        state,
			transitions: transitionsCopy,
		}
	}

	return &machine{
		current:        initial,
		configurations: configsCopy,
	}, nil
}

// Permit allows the action to transition to the target state for the roles
func (c *stateConfig) Permit(action Action, to State, roles ...Role) StateConfiguration {
	if _, dup := c.transitions[action]; dup {
		panic(fmt.Sprintf("duplicate transition %s from state %s", action, c.from))
	}

	// Declare the target so terminal states are buildable
	c.builder.declared[to] = true

	c.transitions[action] = transition{to: to, roles: roles}
	return c
}

// State returns the current state
func (m *machine) State() State {
	return m.current
}

// CanFire returns true if the action has a transition defined in the current state
func (m *machine) CanFire(action Action) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}
	_, exists = config.transitions[action]
	return exists
}

// Peek validates the transition without applying it
func (m *machine) Peek(action Action, role Role) (State, error) {
	config, exists := m.configurations[m.current]
	if !exists {
		return "", fmt.Errorf("%w: action %s from state %s", ErrIllegalTransition, action, m.current)
	}

	t, exists := config.transitions[action]
	if !exists {
		return "", fmt.Errorf("%w: action %s from state %s", ErrIllegalTransition, action, m.current)
	}

	for _, allowed := range t.roles {
		if allowed.Matches(role) {
			return t.to, nil
		}
	}

	return "", fmt.Errorf("%w: role %s cannot %s from state %s", ErrRoleDenied, role, action, m.current)
}

// Fire attempts the transition, moving to the target state if allowed
func (m *machine) Fire(action Action, role Role) error {
	to, err := m.Peek(action, role)
	if err != nil {
		return err
	}
	m.current = to
	return nil
}

// PermittedActions returns all actions with a transition defined in the current state
func (m *machine) PermittedActions() []Action {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Action{}
	}

	actions := make([]Action, 0, len(config.transitions))
	for action := range config.transitions {
		actions = append(actions, action)
	}

	return actions
}
