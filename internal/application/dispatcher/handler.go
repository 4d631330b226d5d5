package dispatcher

import (
	"context"

	"github.com/buildflow/procurement/internal/domain/event"
)

// Handler processes domain events. Handlers must tolerate being re-run for
// the same event (at-least-once delivery).
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}
