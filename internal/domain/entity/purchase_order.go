package entity

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Purchase order lifecycle statuses
const (
	OrderStatusDraft           = "Draft"
	OrderStatusPendingApproval = "PendingFinanceApproval"
	OrderStatusApproved        = "Approved"
	OrderStatusRejected        = "Rejected"
	OrderStatusSentToSupplier  = "SentToSupplier"
	OrderStatusInProgress      = "InProgress"
	OrderStatusDelivered       = "Delivered"
	OrderStatusClosed          = "Closed"
)

// Purchase order origins
const (
	OrderOriginReorderAlert = "ReorderAlert"
	OrderOriginManual       = "Manual"
	OrderOriginProjectMR    = "ProjectMR"
)

// ErrInvalidLineItem is returned when a line item carries a negative
// quantity or unit price
var ErrInvalidLineItem = errors.New("line item quantity and unit price must be >= 0")

// LineItem is a single material line on a purchase order
type LineItem struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"order_id"`
	MaterialRef    string          `json:"material_ref"`
	Description    string          `json:"description,omitempty"`
	Quantity       int64           `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	WarrantyPeriod string          `json:"warranty_period,omitempty"`
}

// Subtotal returns quantity x unit price
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(li.Quantity))
}

// Validate checks the non-negativity invariant
func (li LineItem) Validate() error {
	if li.Quantity < 0 || li.UnitPrice.IsNegative() {
		return ErrInvalidLineItem
	}
	return nil
}

// FinanceApproval is the finance decision sub-record, present only after a
// finance actor decided. Immutable once set.
type FinanceApproval struct {
	ApproverRef string    `json:"approver_ref"`
	Decision    string    `json:"decision"`
	Note        string    `json:"note,omitempty"`
	DecidedAt   time.Time `json:"decided_at"`
}

// PurchaseOrder is a procurement order moving through the approval pipeline
type PurchaseOrder struct {
	ID           int64            `json:"id"`
	Origin       string           `json:"origin"`
	ProjectRef   string           `json:"project_ref"`
	SupplierRef  string           `json:"supplier_ref"`
	RequesterRef string           `json:"requester_ref"`
	Items        []LineItem       `json:"items"`
	Total        decimal.Decimal  `json:"total"`
	Status       string           `json:"status"`
	Finance      *FinanceApproval `json:"finance_approval,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ComputeTotal sums quantity x unit price over the current line items. The
// stored total is always recomputed from items, never taken from a caller.
func ComputeTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Subtotal())
	}
	return total
}

// ValidateItems checks every line item's invariant
func ValidateItems(items []LineItem) error {
	for _, li := range items {
		if err := li.Validate(); err != nil {
			return err
		}
	}
	return nil
}
