package port

import (
	"context"
	"errors"
	"time"

	"github.com/buildflow/procurement/internal/domain/entity"
)

// ErrNotFound is returned by repositories when the requested entity does
// not exist
var ErrNotFound = errors.New("entity not found")

// TransitionStore is the uniform surface the workflow engine needs from an
// entity repository. ApplyTransition must be a single conditional update
// predicated on the current status (and any entity-specific one-time
// predicates), returning false when zero rows changed.
type TransitionStore interface {
	// GetStatus returns the entity's current status, or ErrNotFound
	GetStatus(ctx context.Context, id int64) (string, error)

	// ApplyTransition conditionally moves the entity from one status to
	// another, applying the typed payload's sub-record columns in the same
	// statement. Returns false when the predicate no longer held.
	ApplyTransition(ctx context.Context, id int64, from, to string, payload interface{}) (bool, error)
}

// PurchaseOrderRepository defines persistence operations for PurchaseOrder
type PurchaseOrderRepository interface {
	TransitionStore
	Create(ctx context.Context, order *entity.PurchaseOrder) error
	GetByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error)
	ReplaceItems(ctx context.Context, id int64, items []entity.LineItem) error
	List(ctx context.Context, status string, limit, offset int) ([]*entity.PurchaseOrder, error)
}

// WarrantyRepository defines persistence operations for Warranty
type WarrantyRepository interface {
	TransitionStore
	Create(ctx context.Context, w *entity.Warranty) error
	GetByID(ctx context.Context, id int64) (*entity.Warranty, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]*entity.Warranty, error)
}

// WarrantyClaimRepository defines persistence operations for WarrantyClaim
type WarrantyClaimRepository interface {
	TransitionStore
	Create(ctx context.Context, claim *entity.WarrantyClaim) error
	GetByID(ctx context.Context, id int64) (*entity.WarrantyClaim, error)
	ListByWarrantyID(ctx context.Context, warrantyID int64) ([]*entity.WarrantyClaim, error)
}

// PaymentReceiptRepository defines persistence operations for PaymentReceipt
type PaymentReceiptRepository interface {
	TransitionStore
	Create(ctx context.Context, receipt *entity.PaymentReceipt) error
	GetByID(ctx context.Context, id int64) (*entity.PaymentReceipt, error)
	GetByToken(ctx context.Context, token string) (*entity.PaymentReceipt, error)

	// IncrementAttempts bumps the upload-attempt counter in a single atomic
	// update. Returns false when no receipt carries the token.
	IncrementAttempts(ctx context.Context, token string) (bool, error)

	// ListStaleAwaiting returns receipts still awaiting upload whose token
	// expired before the given instant
	ListStaleAwaiting(ctx context.Context, before time.Time, limit int) ([]*entity.PaymentReceipt, error)
}

// InspectionRequestRepository defines persistence operations for the linked
// inspection requests
type InspectionRequestRepository interface {
	Create(ctx context.Context, req *entity.InspectionRequest) error
	GetByID(ctx context.Context, id int64) (*entity.InspectionRequest, error)
	SetStatus(ctx context.Context, id int64, status string) error
}

// HistoryRepository defines persistence operations for the append-only
// transition audit trail
type HistoryRepository interface {
	Append(ctx context.Context, rec *entity.TransitionRecord) error
	ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.TransitionRecord, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
