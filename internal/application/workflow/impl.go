package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/buildflow/procurement/internal/application/dispatcher"
	"github.com/buildflow/procurement/internal/application/port"
	"github.com/buildflow/procurement/internal/domain/entity"
	"github.com/buildflow/procurement/internal/domain/event"
	domainwf "github.com/buildflow/procurement/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	stores      map[domainwf.EntityType]port.TransitionStore
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	now         func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting side-effect events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets a logger for the engine
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides the engine clock, for tests
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine over the per-entity stores
func NewEngine(
	stores map[domainwf.EntityType]port.TransitionStore,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		stores:      stores,
		historyRepo: historyRepo,
		txManager:   txManager,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CurrentStatus returns the entity's stored status
func (e *engineImpl) CurrentStatus(ctx context.Context, entityType domainwf.EntityType, id int64) (string, error) {
	store, ok := e.stores[entityType]
	if !ok {
		return "", fmt.Errorf("no store registered for entity type %s", entityType)
	}
	return store.GetStatus(ctx, id)
}

// AttemptTransition validates and applies one transition
func (e *engineImpl) AttemptTransition(
	ctx context.Context,
	entityType domainwf.EntityType,
	id int64,
	action domainwf.Action,
	actor Actor,
	opts ...TransitionOption,
) (*Result, error) {
	req := &transitionRequest{}
	for _, opt := range opts {
		opt(req)
	}

	store, ok := e.stores[entityType]
	if !ok {
		return nil, fmt.Errorf("no store registered for entity type %s", entityType)
	}

	from, err := store.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}

	machine, err := MachineFor(entityType, domainwf.State(from))
	if err != nil {
		return nil, fmt.Errorf("entity %s/%d: %w", entityType, id, err)
	}

	to, err := machine.Peek(action, actor.Role)
	if err != nil {
		return nil, err
	}

	// Apply the conditional update and the history record in one
	// transaction. The update is predicated on the status read above, so a
	// concurrent transition makes it a no-op and we surface Conflict.
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		applied, err := store.ApplyTransition(txCtx, id, from, to.String(), req.payload)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("%s/%d %s: %w", entityType, id, action, ErrConflict)
		}

		rec := &entity.TransitionRecord{
			EntityType: entityType.String(),
			EntityID:   id,
			Action:     action.String(),
			ActorRole:  actor.Role.String(),
			ActorID:    actor.ID,
			FromStatus: from,
			ToStatus:   to.String(),
			Note:       req.note,
			Timestamp:  e.now(),
		}
		if err := e.historyRepo.Append(txCtx, rec); err != nil {
			return fmt.Errorf("append history: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.logger != nil {
		e.logger.Info("Transition applied",
			"entity_type", entityType,
			"entity_id", id,
			"action", action,
			"actor_role", actor.Role,
			"from", from,
			"to", to,
		)
	}

	e.emit(ctx, entityType, id, action, from, to.String(), req)

	return &Result{
		EntityType: entityType,
		EntityID:   id,
		FromStatus: from,
		ToStatus:   to.String(),
	}, nil
}

// emit queues the side-effect event for a committed transition
func (e *engineImpl) emit(ctx context.Context, entityType domainwf.EntityType, id int64, action domainwf.Action, from, to string, req *transitionRequest) {
	if e.dispatcher == nil {
		return
	}

	eventType, ok := EventTypeFor(entityType, action)
	if !ok {
		return
	}

	var evt *event.Event
	if req.correlationID != "" {
		evt = event.NewWithCorrelation(eventType, entityType.String(), id, req.eventData, req.correlationID)
	} else {
		evt = event.New(eventType, entityType.String(), id, req.eventData)
	}
	evt.WithStatuses(from, to)

	// Async so a slow handler never blocks the caller's request
	e.dispatcher.DispatchAsync(ctx, evt)
}
