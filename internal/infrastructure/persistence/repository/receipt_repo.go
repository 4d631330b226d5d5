package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/buildflow/procurement/internal/application/port"
	"github.com/buildflow/procurement/internal/domain/entity"
)

// ReceiptRepository implements port.PaymentReceiptRepository on SQLite
type ReceiptRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReceiptRepository creates a new payment receipt repository
func NewReceiptRepository(db *sql.DB, logger *zap.Logger) port.PaymentReceiptRepository {
	return &ReceiptRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new receipt. The unique index on upload_token guarantees
// no two receipts ever share a token.
func (r *ReceiptRepository) Create(ctx context.Context, receipt *entity.PaymentReceipt) error {
	query := `
		INSERT INTO payment_receipts (
			linked_request_id, client_ref, amount, due_date, upload_token,
			token_expires, upload_attempts, is_token_used, status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := pick(ctx, r.db).ExecContext(ctx, query,
		receipt.LinkedRequestID,
		receipt.ClientRef,
		receipt.Amount.String(),
		receipt.DueDate,
		receipt.UploadToken,
		receipt.TokenExpires,
		receipt.UploadAttempts,
		receipt.IsTokenUsed,
		receipt.Status,
		receipt.CreatedAt,
		receipt.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create receipt", zap.Error(err))
		return fmt.Errorf("failed to create receipt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	receipt.ID = id
	return nil
}

const receiptColumns = `
	SELECT id, linked_request_id, client_ref, amount, due_date, upload_token,
		token_expires, upload_attempts, is_token_used, status,
		file_path, file_original_name, file_size, file_mime,
		uploader_ip, uploader_agent,
		verifier_ref, verified_at, rejection_reason,
		created_at, updated_at
	FROM payment_receipts
`

func scanReceipt(row rowScanner) (*entity.PaymentReceipt, error) {
	var (
		receipt       entity.PaymentReceipt
		amount        string
		filePath      sql.NullString
		fileName      sql.NullString
		fileSize      sql.NullInt64
		fileMIME      sql.NullString
		uploaderIP    sql.NullString
		uploaderAgent sql.NullString
		verifier      sql.NullString
		verifiedAt    sql.NullTime
		reason        sql.NullString
	)

	err := row.Scan(
		&receipt.ID,
		&receipt.LinkedRequestID,
		&receipt.ClientRef,
		&amount,
		&receipt.DueDate,
		&receipt.UploadToken,
		&receipt.TokenExpires,
		&receipt.UploadAttempts,
		&receipt.IsTokenUsed,
		&receipt.Status,
		&filePath,
		&fileName,
		&fileSize,
		&fileMIME,
		&uploaderIP,
		&uploaderAgent,
		&verifier,
		&verifiedAt,
		&reason,
		&receipt.CreatedAt,
		&receipt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	receipt.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount on receipt %d: %w", receipt.ID, err)
	}

	if filePath.Valid {
		receipt.File = &entity.FileMeta{
			Path:          filePath.String,
			OriginalName:  fileName.String,
			Size:          fileSize.Int64,
			MIME:          fileMIME.String,
			UploaderIP:    uploaderIP.String,
			UploaderAgent: uploaderAgent.String,
		}
	}
	receipt.VerifierRef = verifier.String
	if verifiedAt.Valid {
		receipt.VerifiedAt = &verifiedAt.Time
	}
	receipt.RejectionReason = reason.String
	return &receipt, nil
}

// GetByID retrieves a receipt by ID
func (r *ReceiptRepository) GetByID(ctx context.Context, id int64) (*entity.PaymentReceipt, error) {
	receipt, err := scanReceipt(pick(ctx, r.db).QueryRowContext(ctx, receiptColumns+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get receipt", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return receipt, nil
}

// GetByToken retrieves a receipt by its upload token
func (r *ReceiptRepository) GetByToken(ctx context.Context, token string) (*entity.PaymentReceipt, error) {
	receipt, err := scanReceipt(pick(ctx, r.db).QueryRowContext(ctx, receiptColumns+` WHERE upload_token = ?`, token))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get receipt by token", zap.Error(err))
		return nil, fmt.Errorf("failed to get receipt by token: %w", err)
	}
	return receipt, nil
}

// IncrementAttempts bumps the attempt counter in one atomic update
func (r *ReceiptRepository) IncrementAttempts(ctx context.Context, token string) (bool, error) {
	result, err := pick(ctx, r.db).ExecContext(ctx,
		`UPDATE payment_receipts SET upload_attempts = upload_attempts + 1, updated_at = ? WHERE upload_token = ?`,
		time.Now(), token,
	)
	if err != nil {
		r.logger.Error("Failed to increment upload attempts", zap.Error(err))
		return false, fmt.Errorf("failed to increment upload attempts: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListStaleAwaiting returns receipts still awaiting upload whose token
// expired before the given instant
func (r *ReceiptRepository) ListStaleAwaiting(ctx context.Context, before time.Time, limit int) ([]*entity.PaymentReceipt, error) {
	rows, err := pick(ctx, r.db).QueryContext(ctx,
		receiptColumns+` WHERE status = ? AND token_expires < ? ORDER BY token_expires LIMIT ?`,
		entity.ReceiptStatusAwaitingUpload, before, limit,
	)
	if err != nil {
		r.logger.Error("Failed to list stale receipts", zap.Error(err))
		return nil, fmt.Errorf("failed to list stale receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*entity.PaymentReceipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}

// GetStatus returns the receipt's current status
func (r *ReceiptRepository) GetStatus(ctx context.Context, id int64) (string, error) {
	var status string
	err := pick(ctx, r.db).QueryRowContext(ctx,
		`SELECT status FROM payment_receipts WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", port.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get receipt status: %w", err)
	}
	return status, nil
}

// ApplyTransition conditionally moves the receipt between statuses. The
// transition into uploaded additionally claims the one-time token: the
// predicate includes is_token_used = 0 and the same statement flips the
// flag, so at most one concurrent upload can win.
func (r *ReceiptRepository) ApplyTransition(ctx context.Context, id int64, from, to string, payload interface{}) (bool, error) {
	var (
		result sql.Result
		err    error
	)
	ex := pick(ctx, r.db)

	switch {
	case to == entity.ReceiptStatusUploaded:
		meta, ok := payload.(*entity.FileMeta)
		if !ok {
			return false, fmt.Errorf("upload transition needs file metadata")
		}
		result, err = ex.ExecContext(ctx, `
			UPDATE payment_receipts
			SET status = ?, is_token_used = 1,
				file_path = ?, file_original_name = ?, file_size = ?, file_mime = ?,
				uploader_ip = ?, uploader_agent = ?, updated_at = ?
			WHERE id = ? AND status = ? AND is_token_used = 0
		`, to, meta.Path, meta.OriginalName, meta.Size, meta.MIME,
			meta.UploaderIP, meta.UploaderAgent, time.Now(), id, from)

	default:
		if vd, ok := payload.(*entity.VerifyDecision); ok {
			var verifiedAt interface{}
			if to == entity.ReceiptStatusVerified {
				verifiedAt = time.Now()
			}
			result, err = ex.ExecContext(ctx, `
				UPDATE payment_receipts
				SET status = ?, verifier_ref = ?, verified_at = ?, rejection_reason = ?, updated_at = ?
				WHERE id = ? AND status = ?
			`, to, vd.VerifierRef, verifiedAt, vd.Reason, time.Now(), id, from)
		} else {
			result, err = ex.ExecContext(ctx, `
				UPDATE payment_receipts
				SET status = ?, updated_at = ?
				WHERE id = ? AND status = ?
			`, to, time.Now(), id, from)
		}
	}
	if err != nil {
		r.logger.Error("Failed to apply receipt transition",
			zap.Int64("id", id), zap.String("from", from), zap.String("to", to), zap.Error(err))
		return false, fmt.Errorf("failed to apply receipt transition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Verify interface compliance
var _ port.PaymentReceiptRepository = (*ReceiptRepository)(nil)
