package workflow

import (
	"context"
	"errors"

	domainwf "github.com/buildflow/procurement/internal/domain/workflow"
)

// ErrConflict is returned when the entity's stored status no longer matches
// the status that was read: a concurrent transition won the race. Callers
// should re-read and retry if the action still applies.
var ErrConflict = errors.New("conflicting concurrent transition")

// Actor identifies who is attempting a transition
type Actor struct {
	ID   string
	Role domainwf.Role
}

// Result describes a committed transition
type Result struct {
	EntityType domainwf.EntityType
	EntityID   int64
	FromStatus string
	ToStatus   string
}

// Engine orchestrates status transitions: load, validate against the
// transition table, apply a conditional update, append history, and emit a
// side-effect event. All status writes go through here.
type Engine interface {
	// AttemptTransition validates and applies one transition. Fails with
	// port.ErrNotFound, domain workflow.ErrIllegalTransition /
	// workflow.ErrRoleDenied, or ErrConflict.
	AttemptTransition(ctx context.Context, entityType domainwf.EntityType, id int64, action domainwf.Action, actor Actor, opts ...TransitionOption) (*Result, error)

	// CurrentStatus returns the entity's stored status
	CurrentStatus(ctx context.Context, entityType domainwf.EntityType, id int64) (string, error)
}

// transitionRequest collects per-call options
type transitionRequest struct {
	payload       interface{}
	note          string
	correlationID string
	eventData     map[string]interface{}
}

// TransitionOption configures a single AttemptTransition call
type TransitionOption func(*transitionRequest)

// WithPayload attaches the entity-specific sub-record written atomically
// with the status change (finance decision, file metadata, warehouse action)
func WithPayload(payload interface{}) TransitionOption {
	return func(r *transitionRequest) {
		r.payload = payload
	}
}

// WithNote attaches a free-form note to the history record
func WithNote(note string) TransitionOption {
	return func(r *transitionRequest) {
		r.note = note
	}
}

// WithCorrelation links the emitted event to an existing correlation chain
func WithCorrelation(correlationID string) TransitionOption {
	return func(r *transitionRequest) {
		r.correlationID = correlationID
	}
}

// WithEventData merges extra key-value pairs into the emitted event payload
func WithEventData(data map[string]interface{}) TransitionOption {
	return func(r *transitionRequest) {
		if r.eventData == nil {
			r.eventData = make(map[string]interface{}, len(data))
		}
		for k, v := range data {
			r.eventData[k] = v
		}
	}
}
