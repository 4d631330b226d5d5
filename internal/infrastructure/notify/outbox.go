package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/buildflow/procurement/internal/application/port"
	"github.com/buildflow/procurement/internal/infrastructure/persistence/sqlite"
)

// Outbox implements port.Notifier by recording notifications in the
// database. A delivery channel (email, chat) reads the table; the
// application only guarantees the record exists.
type Outbox struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOutbox creates a database-backed notifier
func NewOutbox(db *sql.DB, logger *zap.Logger) *Outbox {
	return &Outbox{
		db:     db,
		logger: logger,
	}
}

// Send records one notification for the recipient
func (o *Outbox) Send(ctx context.Context, recipient, template string, data map[string]interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode notification payload: %w", err)
	}

	_, err = o.executor(ctx).ExecContext(ctx, `
		INSERT INTO notifications (recipient, template, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, recipient, template, string(payload), time.Now())
	if err != nil {
		o.logger.Error("Failed to record notification",
			zap.String("recipient", recipient),
			zap.String("template", template),
			zap.Error(err))
		return fmt.Errorf("failed to record notification: %w", err)
	}

	o.logger.Info("Notification queued",
		zap.String("recipient", recipient),
		zap.String("template", template))
	return nil
}

func (o *Outbox) executor(ctx context.Context) interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
} {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return o.db
}

// Verify interface compliance
var _ port.Notifier = (*Outbox)(nil)
