package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buildflow/procurement/internal/application/dispatcher"
	"github.com/buildflow/procurement/internal/application/port"
	"github.com/buildflow/procurement/internal/application/token"
	appwf "github.com/buildflow/procurement/internal/application/workflow"
	"github.com/buildflow/procurement/internal/domain/entity"
	"github.com/buildflow/procurement/internal/domain/event"
	"github.com/buildflow/procurement/internal/domain/workflow"
)

// DefaultTokenTTL is the upload-link lifetime when no override is configured.
const DefaultTokenTTL = 72 * time.Hour

// CreateReceiptRequest carries the fields needed to request a payment.
type CreateReceiptRequest struct {
	LinkedRequestID int64           `json:"linked_request_id"`
	ClientRef       string          `json:"client_ref"`
	Amount          decimal.Decimal `json:"amount"`
	DueDate         time.Time       `json:"due_date"`
}

// UploadRequest carries one upload through the one-time token link.
type UploadRequest struct {
	FileName  string
	Content   io.Reader
	IP        string
	UserAgent string
}

// ReceiptService manages payment receipts: requesting payment, the one-time
// upload, and the finance review.
type ReceiptService struct {
	receipts    port.PaymentReceiptRepository
	inspections port.InspectionRequestRepository
	history     port.HistoryRepository
	txManager   port.TransactionManager
	engine      appwf.Engine
	issuer      *token.Issuer
	blobs       port.BlobStore
	events      dispatcher.Dispatcher
	tokenTTL    time.Duration
	logger      Logger
	now         func() time.Time
}

// ReceiptOption configures optional ReceiptService behavior
type ReceiptOption func(*ReceiptService)

// WithTokenTTL overrides the upload-link lifetime
func WithTokenTTL(ttl time.Duration) ReceiptOption {
	return func(s *ReceiptService) {
		s.tokenTTL = ttl
	}
}

// WithReceiptClock overrides the clock, for tests
func WithReceiptClock(now func() time.Time) ReceiptOption {
	return func(s *ReceiptService) {
		s.now = now
	}
}

// NewReceiptService creates a receipt service with its dependencies.
func NewReceiptService(
	receipts port.PaymentReceiptRepository,
	inspections port.InspectionRequestRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	engine appwf.Engine,
	issuer *token.Issuer,
	blobs port.BlobStore,
	events dispatcher.Dispatcher,
	logger Logger,
	opts ...ReceiptOption,
) *ReceiptService {
	s := &ReceiptService{
		receipts:    receipts,
		inspections: inspections,
		history:     history,
		txManager:   txManager,
		engine:      engine,
		issuer:      issuer,
		blobs:       blobs,
		events:      events,
		tokenTTL:    DefaultTokenTTL,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create requests a payment: mints a fresh upload token, persists the
// receipt awaiting upload and flags the linked inspection request. The token
// travels to the client only through the issued notification.
func (s *ReceiptService) Create(ctx context.Context, req CreateReceiptRequest) (*entity.PaymentReceipt, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if req.ClientRef == "" {
		return nil, fmt.Errorf("%w: client_ref is required", ErrValidation)
	}
	if req.LinkedRequestID != 0 {
		if _, err := s.inspections.GetByID(ctx, req.LinkedRequestID); err != nil {
			return nil, err
		}
	}

	tok, expiresAt, err := s.issuer.Mint(s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to mint upload token: %w", err)
	}

	now := s.now()
	receipt := &entity.PaymentReceipt{
		LinkedRequestID: req.LinkedRequestID,
		ClientRef:       req.ClientRef,
		Amount:          req.Amount,
		DueDate:         req.DueDate,
		UploadToken:     tok,
		TokenExpires:    expiresAt,
		Status:          entity.ReceiptStatusAwaitingUpload,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.receipts.Create(txCtx, receipt); err != nil {
			return fmt.Errorf("failed to create receipt: %w", err)
		}
		if req.LinkedRequestID != 0 {
			if err := s.inspections.SetStatus(txCtx, req.LinkedRequestID, entity.InspectionStatusPaymentRequested); err != nil {
				return fmt.Errorf("failed to flag inspection request: %w", err)
			}
		}
		rec := &entity.TransitionRecord{
			EntityType: string(workflow.EntityPaymentReceipt),
			EntityID:   receipt.ID,
			Action:     "create",
			ActorRole:  string(workflow.RoleFinance),
			FromStatus: "",
			ToStatus:   entity.ReceiptStatusAwaitingUpload,
			Timestamp:  now,
		}
		if err := s.history.Append(txCtx, rec); err != nil {
			return fmt.Errorf("failed to record receipt creation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		// The raw token travels only inside this event, toward the
		// notification that builds the client's upload link.
		evt := event.New(event.TypeReceiptIssued, string(workflow.EntityPaymentReceipt), receipt.ID, map[string]interface{}{
			"client_ref":        receipt.ClientRef,
			"linked_request_id": receipt.LinkedRequestID,
			"upload_token":      tok,
			"token_expires":     expiresAt.Format(time.RFC3339),
			"amount":            receipt.Amount.String(),
		}).WithStatuses("", entity.ReceiptStatusAwaitingUpload)
		s.events.DispatchAsync(ctx, evt)
	}

	s.logger.Info("payment receipt requested",
		"receipt_id", receipt.ID,
		"client_ref", receipt.ClientRef,
		"amount", receipt.Amount.String(),
		"token_expires", expiresAt)
	return receipt, nil
}

// Get returns a receipt, lazily expiring a stale awaiting-upload token so
// readers never see an awaiting receipt with a dead link.
func (s *ReceiptService) Get(ctx context.Context, id int64) (*entity.PaymentReceipt, error) {
	receipt, err := s.receipts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if receipt.Status == entity.ReceiptStatusAwaitingUpload && receipt.TokenExpired(s.now()) {
		if _, err := s.engine.AttemptTransition(ctx,
			workflow.EntityPaymentReceipt, receipt.ID, workflow.ActionExpire,
			appwf.Actor{ID: "lazy-expire", Role: workflow.RoleSystem},
		); err != nil && !errors.Is(err, appwf.ErrConflict) {
			s.logger.Error("failed to expire stale receipt", "receipt_id", receipt.ID, "error", err)
		}
		return s.receipts.GetByID(ctx, id)
	}
	return receipt, nil
}

// Upload consumes the one-time token and attaches the uploaded file in one
// conditional transition. Exactly one concurrent upload for a token can
// succeed; losers surface as an already-used token.
func (s *ReceiptService) Upload(ctx context.Context, tok string, req UploadRequest) (*entity.PaymentReceipt, error) {
	if req.FileName == "" || req.Content == nil {
		return nil, fmt.Errorf("%w: a receipt file is required", ErrValidation)
	}

	receipt, err := s.issuer.Consume(ctx, tok)
	if err != nil {
		return nil, err
	}

	meta, err := s.blobs.SaveUploaded(ctx, fmt.Sprintf("receipts/%d", receipt.ID), req.FileName, req.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to store receipt file: %w", err)
	}
	meta.UploaderIP = req.IP
	meta.UploaderAgent = req.UserAgent

	_, err = s.engine.AttemptTransition(ctx,
		workflow.EntityPaymentReceipt, receipt.ID, workflow.ActionUpload,
		appwf.Actor{ID: req.IP, Role: workflow.RoleAnonymous},
		appwf.WithPayload(meta),
		appwf.WithEventData(map[string]interface{}{
			"client_ref":        receipt.ClientRef,
			"linked_request_id": receipt.LinkedRequestID,
			"file_name":         meta.OriginalName,
		}),
	)
	if err != nil {
		// Losing the conditional update means another upload with the same
		// token got there first.
		if errors.Is(err, appwf.ErrConflict) {
			return nil, token.ErrTokenUsed
		}
		return nil, err
	}

	s.logger.Info("payment receipt uploaded",
		"receipt_id", receipt.ID,
		"file", meta.OriginalName,
		"size", meta.Size)
	return s.receipts.GetByID(ctx, receipt.ID)
}

// Review applies the finance verify or reject decision. A rejection must
// carry a reason.
func (s *ReceiptService) Review(ctx context.Context, id int64, decision string, actor appwf.Actor, remarks, reason string) (*entity.PaymentReceipt, error) {
	var action workflow.Action
	switch decision {
	case entity.ReceiptStatusVerified:
		action = workflow.ActionVerify
	case entity.ReceiptStatusRejected:
		if reason == "" {
			return nil, fmt.Errorf("%w: a rejection reason is required", ErrValidation)
		}
		action = workflow.ActionReject
	default:
		return nil, fmt.Errorf("%w: unknown review decision %q", ErrValidation, decision)
	}

	receipt, err := s.receipts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.engine.AttemptTransition(ctx,
		workflow.EntityPaymentReceipt, id, action, actor,
		appwf.WithPayload(&entity.VerifyDecision{
			VerifierRef: actor.ID,
			Remarks:     remarks,
			Reason:      reason,
		}),
		appwf.WithEventData(map[string]interface{}{
			"client_ref":        receipt.ClientRef,
			"linked_request_id": receipt.LinkedRequestID,
			"reason":            reason,
		}),
	); err != nil {
		return nil, err
	}
	return s.receipts.GetByID(ctx, id)
}

// ExpireStale sweeps awaiting-upload receipts whose token expired, moving
// each through the expire transition. Returns how many were expired. Safe to
// run concurrently with uploads: the conditional update settles races.
func (s *ReceiptService) ExpireStale(ctx context.Context, limit int) (int, error) {
	stale, err := s.receipts.ListStaleAwaiting(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, r := range stale {
		_, err := s.engine.AttemptTransition(ctx,
			workflow.EntityPaymentReceipt, r.ID, workflow.ActionExpire,
			appwf.Actor{ID: "sweeper", Role: workflow.RoleSystem},
			appwf.WithEventData(map[string]interface{}{
				"client_ref": r.ClientRef,
			}),
		)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, appwf.ErrConflict), errors.Is(err, workflow.ErrIllegalTransition):
			// An upload slipped in between the listing and the sweep.
		default:
			s.logger.Error("failed to expire receipt", "receipt_id", r.ID, "error", err)
		}
	}
	return expired, nil
}

// History returns the full transition trail of a receipt.
func (s *ReceiptService) History(ctx context.Context, id int64) ([]*entity.TransitionRecord, error) {
	return s.history.ListByEntity(ctx, string(workflow.EntityPaymentReceipt), id)
}
