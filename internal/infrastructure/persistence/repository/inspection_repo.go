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

// InspectionRepository implements port.InspectionRequestRepository on SQLite
type InspectionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInspectionRepository creates a new inspection request repository
func NewInspectionRepository(db *sql.DB, logger *zap.Logger) port.InspectionRequestRepository {
	return &InspectionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new inspection request
func (r *InspectionRepository) Create(ctx context.Context, req *entity.InspectionRequest) error {
	query := `
		INSERT INTO inspection_requests (project_ref, client_ref, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := pick(ctx, r.db).ExecContext(ctx, query,
		req.ProjectRef,
		req.ClientRef,
		req.Status,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create inspection request", zap.Error(err))
		return fmt.Errorf("failed to create inspection request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	req.ID = id
	return nil
}

// GetByID retrieves an inspection request by ID
func (r *InspectionRepository) GetByID(ctx context.Context, id int64) (*entity.InspectionRequest, error) {
	query := `
		SELECT id, project_ref, client_ref, status, created_at, updated_at
		FROM inspection_requests
		WHERE id = ?
	`

	var req entity.InspectionRequest
	err := pick(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&req.ID,
		&req.ProjectRef,
		&req.ClientRef,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get inspection request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get inspection request: %w", err)
	}
	return &req, nil
}

// SetStatus updates the inspection request status
func (r *InspectionRepository) SetStatus(ctx context.Context, id int64, status string) error {
	result, err := pick(ctx, r.db).ExecContext(ctx,
		`UPDATE inspection_requests SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	if err != nil {
		r.logger.Error("Failed to set inspection status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set inspection status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return port.ErrNotFound
	}
	return nil
}

// Verify interface compliance
var _ port.InspectionRequestRepository = (*InspectionRepository)(nil)
