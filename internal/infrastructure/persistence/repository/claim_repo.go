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

// ClaimRepository implements port.WarrantyClaimRepository on SQLite
type ClaimRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new warranty claim repository
func NewClaimRepository(db *sql.DB, logger *zap.Logger) port.WarrantyClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new claim
func (r *ClaimRepository) Create(ctx context.Context, claim *entity.WarrantyClaim) error {
	query := `
		INSERT INTO warranty_claims (
			warranty_id, client_ref, issue, proof_ref, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := pick(ctx, r.db).ExecContext(ctx, query,
		claim.WarrantyID,
		claim.ClientRef,
		claim.Issue,
		claim.ProofRef,
		claim.Status,
		claim.CreatedAt,
		claim.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create claim", zap.Error(err))
		return fmt.Errorf("failed to create claim: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	claim.ID = id
	return nil
}

const claimColumns = `
	SELECT id, warranty_id, client_ref, issue, proof_ref, status, reviewer_ref,
		shipped_replacement, shipped_at, created_at, updated_at
	FROM warranty_claims
`

func scanClaim(row rowScanner) (*entity.WarrantyClaim, error) {
	var (
		claim     entity.WarrantyClaim
		reviewer  sql.NullString
		shipped   sql.NullBool
		shippedAt sql.NullTime
	)

	err := row.Scan(
		&claim.ID,
		&claim.WarrantyID,
		&claim.ClientRef,
		&claim.Issue,
		&claim.ProofRef,
		&claim.Status,
		&reviewer,
		&shipped,
		&shippedAt,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	claim.ReviewerRef = reviewer.String
	if shipped.Valid && shipped.Bool {
		claim.Warehouse = &entity.WarehouseAction{
			ShippedReplacement: true,
			ShippedAt:          shippedAt.Time,
		}
	}
	return &claim, nil
}

// GetByID retrieves a claim by ID
func (r *ClaimRepository) GetByID(ctx context.Context, id int64) (*entity.WarrantyClaim, error) {
	claim, err := scanClaim(pick(ctx, r.db).QueryRowContext(ctx, claimColumns+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get claim", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}

// ListByWarrantyID retrieves the claims filed against a warranty
func (r *ClaimRepository) ListByWarrantyID(ctx context.Context, warrantyID int64) ([]*entity.WarrantyClaim, error) {
	rows, err := pick(ctx, r.db).QueryContext(ctx, claimColumns+` WHERE warranty_id = ? ORDER BY id`, warrantyID)
	if err != nil {
		r.logger.Error("Failed to list claims", zap.Int64("warranty_id", warrantyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var claims []*entity.WarrantyClaim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

// GetStatus returns the claim's current status
func (r *ClaimRepository) GetStatus(ctx context.Context, id int64) (string, error) {
	var status string
	err := pick(ctx, r.db).QueryRowContext(ctx,
		`SELECT status FROM warranty_claims WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", port.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get claim status: %w", err)
	}
	return status, nil
}

// ApplyTransition conditionally moves the claim between statuses, writing
// the reviewer or the shipment record in the same statement.
func (r *ClaimRepository) ApplyTransition(ctx context.Context, id int64, from, to string, payload interface{}) (bool, error) {
	var (
		result sql.Result
		err    error
	)
	ex := pick(ctx, r.db)

	switch p := payload.(type) {
	case *entity.ReviewDecision:
		// The first review action claims the case; later decisions keep
		// the original reviewer ref.
		result, err = ex.ExecContext(ctx, `
			UPDATE warranty_claims
			SET status = ?, reviewer_ref = COALESCE(reviewer_ref, ?), updated_at = ?
			WHERE id = ? AND status = ?
		`, to, p.ReviewerRef, time.Now(), id, from)
	case *entity.WarehouseAction:
		result, err = ex.ExecContext(ctx, `
			UPDATE warranty_claims
			SET status = ?, shipped_replacement = ?, shipped_at = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, to, p.ShippedReplacement, p.ShippedAt, time.Now(), id, from)
	default:
		result, err = ex.ExecContext(ctx, `
			UPDATE warranty_claims
			SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, to, time.Now(), id, from)
	}
	if err != nil {
		r.logger.Error("Failed to apply claim transition",
			zap.Int64("id", id), zap.String("from", from), zap.String("to", to), zap.Error(err))
		return false, fmt.Errorf("failed to apply claim transition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Verify interface compliance
var _ port.WarrantyClaimRepository = (*ClaimRepository)(nil)
