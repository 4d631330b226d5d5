package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/buildflow/procurement/internal/application/port"
	"github.com/buildflow/procurement/internal/domain/entity"
)

// HistoryRepository implements port.HistoryRepository on SQLite. The table
// is append-only; records are never updated or deleted.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new transition history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts a transition record
func (r *HistoryRepository) Append(ctx context.Context, rec *entity.TransitionRecord) error {
	query := `
		INSERT INTO transition_history (
			entity_type, entity_id, action, actor_role, actor_id,
			from_status, to_status, note, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := pick(ctx, r.db).ExecContext(ctx, query,
		rec.EntityType,
		rec.EntityID,
		rec.Action,
		rec.ActorRole,
		rec.ActorID,
		rec.FromStatus,
		rec.ToStatus,
		rec.Note,
		rec.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append transition record",
			zap.String("entity_type", rec.EntityType),
			zap.Int64("entity_id", rec.EntityID),
			zap.Error(err))
		return fmt.Errorf("failed to append transition record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListByEntity retrieves the transition trail of one entity, oldest first
func (r *HistoryRepository) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.TransitionRecord, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor_role, actor_id,
			from_status, to_status, note, timestamp
		FROM transition_history
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY id
	`

	rows, err := pick(ctx, r.db).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to list transition history",
			zap.String("entity_type", entityType),
			zap.Int64("entity_id", entityID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list transition history: %w", err)
	}
	defer rows.Close()

	var records []*entity.TransitionRecord
	for rows.Next() {
		var rec entity.TransitionRecord
		err := rows.Scan(
			&rec.ID,
			&rec.EntityType,
			&rec.EntityID,
			&rec.Action,
			&rec.ActorRole,
			&rec.ActorID,
			&rec.FromStatus,
			&rec.ToStatus,
			&rec.Note,
			&rec.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
