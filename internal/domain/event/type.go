package event

// Type identifies the type of domain event
type Type string

const (
	// Purchase order transitions
	TypeOrderSubmitted    Type = "purchase_order.submitted"
	TypeOrderApproved     Type = "purchase_order.approved"
	TypeOrderRejected     Type = "purchase_order.rejected"
	TypeOrderSent         Type = "purchase_order.sent"
	TypeOrderAcknowledged Type = "purchase_order.acknowledged"
	TypeOrderDelivered    Type = "purchase_order.delivered"
	TypeOrderClosed       Type = "purchase_order.closed"

	// Warranty transitions
	TypeWarrantyClaimed  Type = "warranty.claimed"
	TypeWarrantyReplaced Type = "warranty.replaced"

	// Warranty claim lifecycle
	TypeClaimSubmitted    Type = "warranty_claim.submitted"
	TypeClaimReviewStart  Type = "warranty_claim.review_started"
	TypeClaimApproved     Type = "warranty_claim.approved"
	TypeClaimRejected     Type = "warranty_claim.rejected"
	TypeClaimReplaced     Type = "warranty_claim.replaced"

	// Payment receipt lifecycle
	TypeReceiptIssued   Type = "payment_receipt.issued"
	TypeReceiptUploaded Type = "payment_receipt.uploaded"
	TypeReceiptExpired  Type = "payment_receipt.expired"
	TypeReceiptVerified Type = "payment_receipt.verified"
	TypeReceiptRejected Type = "payment_receipt.rejected"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeOrderSubmitted, TypeOrderApproved, TypeOrderRejected,
		TypeOrderSent, TypeOrderAcknowledged, TypeOrderDelivered, TypeOrderClosed,
		TypeWarrantyClaimed, TypeWarrantyReplaced,
		TypeClaimSubmitted, TypeClaimReviewStart, TypeClaimApproved,
		TypeClaimRejected, TypeClaimReplaced,
		TypeReceiptIssued, TypeReceiptUploaded, TypeReceiptExpired,
		TypeReceiptVerified, TypeReceiptRejected:
		return true
	default:
		return false
	}
}
