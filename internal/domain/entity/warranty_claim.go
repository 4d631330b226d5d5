package entity

import "time"

// Warranty claim statuses
const (
	ClaimStatusSubmitted   = "Submitted"
	ClaimStatusUnderReview = "UnderReview"
	ClaimStatusApproved    = "Approved"
	ClaimStatusRejected    = "Rejected"
	ClaimStatusReplaced    = "Replaced"
)

// WarehouseAction records the replacement shipment, set only when the claim
// reaches Replaced.
type WarehouseAction struct {
	ShippedReplacement bool      `json:"shipped_replacement"`
	ShippedAt          time.Time `json:"shipped_at"`
}

// WarrantyClaim is a client-filed claim against an active warranty
type WarrantyClaim struct {
	ID          int64            `json:"id"`
	WarrantyID  int64            `json:"warranty_id"`
	ClientRef   string           `json:"client_ref"`
	Issue       string           `json:"issue"`
	ProofRef    string           `json:"proof_ref,omitempty"`
	Status      string           `json:"status"`
	ReviewerRef string           `json:"reviewer_ref,omitempty"`
	Warehouse   *WarehouseAction `json:"warehouse_action,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ReviewDecision is the transition payload for finance review actions on a
// claim. Sets the reviewer ref on the first review action.
type ReviewDecision struct {
	ReviewerRef string `json:"reviewer_ref"`
	Note        string `json:"note,omitempty"`
}
