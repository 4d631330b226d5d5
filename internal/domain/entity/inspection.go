package entity

import "time"

// Inspection request statuses relevant to the payment flow
const (
	InspectionStatusPending          = "pending"
	InspectionStatusPaymentRequested = "payment_requested"
	InspectionStatusPaymentVerified  = "payment_verified"
)

// InspectionRequest is the linked entity updated when its payment receipt
// is verified
type InspectionRequest struct {
	ID         int64     `json:"id"`
	ProjectRef string    `json:"project_ref"`
	ClientRef  string    `json:"client_ref"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
