package workflow

import "strings"

// EntityType identifies which workflow an entity belongs to
type EntityType string

const (
	EntityPurchaseOrder  EntityType = "purchase_order"
	EntityWarranty       EntityType = "warranty"
	EntityWarrantyClaim  EntityType = "warranty_claim"
	EntityPaymentReceipt EntityType = "payment_receipt"
)

// String returns the string representation of the entity type
func (e EntityType) String() string {
	return string(e)
}

// IsValid returns true if the entity type is one of the known workflows
func (e EntityType) IsValid() bool {
	switch e {
	case EntityPurchaseOrder, EntityWarranty, EntityWarrantyClaim, EntityPaymentReceipt:
		return true
	default:
		return false
	}
}

// State represents a workflow state
type State string

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// Action represents an operation that can cause a state transition
type Action string

const (
	// Purchase order actions
	ActionSubmit      Action = "submit"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionSend        Action = "send"
	ActionSupplierAck Action = "supplierAck"
	ActionDeliver     Action = "deliver"
	ActionClose       Action = "close"

	// Warranty / warranty claim actions
	ActionFileClaim       Action = "fileClaim"
	ActionStartReview     Action = "startReview"
	ActionShipReplacement Action = "shipReplacement"

	// Payment receipt actions
	ActionUpload Action = "upload"
	ActionExpire Action = "expire"
	ActionVerify Action = "verify"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// Role is the caller's role claim. Comparisons are case-insensitive.
type Role string

const (
	RoleProcurement Role = "procurement"
	RoleFinance     Role = "finance"
	RoleSupplier    Role = "supplier"
	RoleWarehouse   Role = "warehouse"
	RoleClient      Role = "client"
	RoleSystem      Role = "system"
	RoleAnonymous   Role = "anonymous"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// Matches reports whether two role claims refer to the same role
func (r Role) Matches(other Role) bool {
	return strings.EqualFold(string(r), string(other))
}
