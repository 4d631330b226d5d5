package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment receipt statuses
const (
	ReceiptStatusAwaitingUpload = "awaiting_upload"
	ReceiptStatusUploaded       = "uploaded"
	ReceiptStatusExpired        = "expired"
	ReceiptStatusVerified       = "verified"
	ReceiptStatusRejected       = "rejected"
)

// FileMeta describes the uploaded receipt file, set only on a successful
// upload through the one-time token link.
type FileMeta struct {
	Path          string `json:"path"`
	OriginalName  string `json:"original_name"`
	Size          int64  `json:"size"`
	MIME          string `json:"mime"`
	UploaderIP    string `json:"uploader_ip,omitempty"`
	UploaderAgent string `json:"uploader_agent,omitempty"`
}

// VerifyDecision is the transition payload for the finance verify/reject
// actions. Reason is required when rejecting.
type VerifyDecision struct {
	VerifierRef string `json:"verifier_ref"`
	Remarks     string `json:"remarks,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// PaymentReceipt tracks a requested payment and its one-time upload token.
// The token is consumable exactly once; the used flag flips atomically with
// the transition to uploaded.
type PaymentReceipt struct {
	ID              int64           `json:"id"`
	LinkedRequestID int64           `json:"linked_request_id"`
	ClientRef       string          `json:"client_ref"`
	Amount          decimal.Decimal `json:"amount"`
	DueDate         time.Time       `json:"due_date"`
	UploadToken     string          `json:"-"`
	TokenExpires    time.Time       `json:"token_expires"`
	UploadAttempts  int             `json:"upload_attempts"`
	IsTokenUsed     bool            `json:"is_token_used"`
	Status          string          `json:"status"`
	File            *FileMeta       `json:"file,omitempty"`
	VerifierRef     string          `json:"verifier_ref,omitempty"`
	VerifiedAt      *time.Time      `json:"verified_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TokenExpired reports whether the upload token is past its expiry
func (r *PaymentReceipt) TokenExpired(now time.Time) bool {
	return now.After(r.TokenExpires)
}
