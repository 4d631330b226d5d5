package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/buildflow/procurement/internal/application/port"
	"github.com/buildflow/procurement/internal/domain/entity"
)

// WarrantyRepository implements port.WarrantyRepository on SQLite
type WarrantyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWarrantyRepository creates a new warranty repository
func NewWarrantyRepository(db *sql.DB, logger *zap.Logger) port.WarrantyRepository {
	return &WarrantyRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new warranty
func (r *WarrantyRepository) Create(ctx context.Context, w *entity.Warranty) error {
	query := `
		INSERT INTO warranties (
			project_ref, client_ref, item_ref, order_id, start_date, end_date,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := pick(ctx, r.db).ExecContext(ctx, query,
		w.ProjectRef,
		w.ClientRef,
		w.ItemRef,
		w.OrderID,
		w.StartDate,
		w.EndDate,
		w.Status,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create warranty", zap.Error(err))
		return fmt.Errorf("failed to create warranty: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	w.ID = id
	return nil
}

const warrantyColumns = `
	SELECT id, project_ref, client_ref, item_ref, order_id, start_date, end_date,
		status, created_at, updated_at
	FROM warranties
`

// GetByID retrieves a warranty by ID
func (r *WarrantyRepository) GetByID(ctx context.Context, id int64) (*entity.Warranty, error) {
	var w entity.Warranty
	err := pick(ctx, r.db).QueryRowContext(ctx, warrantyColumns+` WHERE id = ?`, id).Scan(
		&w.ID,
		&w.ProjectRef,
		&w.ClientRef,
		&w.ItemRef,
		&w.OrderID,
		&w.StartDate,
		&w.EndDate,
		&w.Status,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get warranty", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get warranty: %w", err)
	}
	return &w, nil
}

// ListByOrderID retrieves the warranties spawned by an order
func (r *WarrantyRepository) ListByOrderID(ctx context.Context, orderID int64) ([]*entity.Warranty, error) {
	rows, err := pick(ctx, r.db).QueryContext(ctx, warrantyColumns+` WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		r.logger.Error("Failed to list warranties", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to list warranties: %w", err)
	}
	defer rows.Close()

	var warranties []*entity.Warranty
	for rows.Next() {
		var w entity.Warranty
		err := rows.Scan(
			&w.ID,
			&w.ProjectRef,
			&w.ClientRef,
			&w.ItemRef,
			&w.OrderID,
			&w.StartDate,
			&w.EndDate,
			&w.Status,
			&w.CreatedAt,
			&w.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan warranty: %w", err)
		}
		warranties = append(warranties, &w)
	}
	return warranties, rows.Err()
}

// GetStatus returns the warranty's stored status
func (r *WarrantyRepository) GetStatus(ctx context.Context, id int64) (string, error) {
	var status string
	err := pick(ctx, r.db).QueryRowContext(ctx,
		`SELECT status FROM warranties WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", port.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get warranty status: %w", err)
	}
	return status, nil
}

// ApplyTransition conditionally moves the warranty between statuses
func (r *WarrantyRepository) ApplyTransition(ctx context.Context, id int64, from, to string, _ interface{}) (bool, error) {
	result, err := pick(ctx, r.db).ExecContext(ctx,
		`UPDATE warranties SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now(), id, from,
	)
	if err != nil {
		r.logger.Error("Failed to apply warranty transition",
			zap.Int64("id", id), zap.String("from", from), zap.String("to", to), zap.Error(err))
		return false, fmt.Errorf("failed to apply warranty transition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Verify interface compliance
var _ port.WarrantyRepository = (*WarrantyRepository)(nil)
