package service

import (
	"context"
	"fmt"
	"time"

	"github.com/buildflow/procurement/internal/application/dispatcher"
	"github.com/buildflow/procurement/internal/application/port"
	appwf "github.com/buildflow/procurement/internal/application/workflow"
	"github.com/buildflow/procurement/internal/domain/entity"
	"github.com/buildflow/procurement/internal/domain/event"
	"github.com/buildflow/procurement/internal/domain/workflow"
)

// DefaultClaimGraceDays is how long past a warranty's end date a claim may
// still be filed when no override is configured.
const DefaultClaimGraceDays = 90

// FileClaimRequest carries the fields a client submits with a new claim.
type FileClaimRequest struct {
	WarrantyID int64  `json:"warranty_id"`
	ClientRef  string `json:"client_ref"`
	Issue      string `json:"issue"`
	ProofRef   string `json:"proof_ref"`
}

// ClaimService manages warranty claims from filing through review to
// replacement.
type ClaimService struct {
	claims     port.WarrantyClaimRepository
	warranties port.WarrantyRepository
	history    port.HistoryRepository
	txManager  port.TransactionManager
	engine     appwf.Engine
	events     dispatcher.Dispatcher
	graceDays  int
	logger     Logger
	now        func() time.Time
}

// ClaimOption configures optional ClaimService behavior
type ClaimOption func(*ClaimService)

// WithClaimGraceDays overrides the post-expiry filing window. A negative
// value disables the window entirely.
func WithClaimGraceDays(days int) ClaimOption {
	return func(s *ClaimService) {
		s.graceDays = days
	}
}

// WithClaimClock overrides the clock, for tests
func WithClaimClock(now func() time.Time) ClaimOption {
	return func(s *ClaimService) {
		s.now = now
	}
}

// NewClaimService creates a claim service with its dependencies.
func NewClaimService(
	claims port.WarrantyClaimRepository,
	warranties port.WarrantyRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	engine appwf.Engine,
	events dispatcher.Dispatcher,
	logger Logger,
	opts ...ClaimOption,
) *ClaimService {
	s := &ClaimService{
		claims:     claims,
		warranties: warranties,
		history:    history,
		txManager:  txManager,
		engine:     engine,
		events:     events,
		graceDays:  DefaultClaimGraceDays,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var statusToClaimAction = map[string]workflow.Action{
	entity.ClaimStatusUnderReview: workflow.ActionStartReview,
	entity.ClaimStatusApproved:    workflow.ActionApprove,
	entity.ClaimStatusRejected:    workflow.ActionReject,
	entity.ClaimStatusReplaced:    workflow.ActionShipReplacement,
}

// File opens a claim against a warranty. Claims against Claimed or Replaced
// warranties are refused, and expired warranties accept claims only inside
// the grace window.
func (s *ClaimService) File(ctx context.Context, req FileClaimRequest) (*entity.WarrantyClaim, error) {
	if req.Issue == "" {
		return nil, fmt.Errorf("%w: issue description is required", ErrValidation)
	}

	w, err := s.warranties.GetByID(ctx, req.WarrantyID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	switch w.DisplayStatus(now) {
	case entity.WarrantyStatusActive:
	case entity.WarrantyStatusExpired:
		if s.graceDays >= 0 && now.After(w.EndDate.AddDate(0, 0, s.graceDays)) {
			return nil, fmt.Errorf("%w: warranty %d expired %s",
				ErrClaimWindowClosed, w.ID, w.EndDate.Format("2006-01-02"))
		}
	default:
		return nil, fmt.Errorf("%w: warranty %d already has a claim in flight", ErrValidation, w.ID)
	}

	claim := &entity.WarrantyClaim{
		WarrantyID: req.WarrantyID,
		ClientRef:  req.ClientRef,
		Issue:      req.Issue,
		ProofRef:   req.ProofRef,
		Status:     entity.ClaimStatusSubmitted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.claims.Create(txCtx, claim); err != nil {
			return fmt.Errorf("failed to create claim: %w", err)
		}
		rec := &entity.TransitionRecord{
			EntityType: string(workflow.EntityWarrantyClaim),
			EntityID:   claim.ID,
			Action:     "create",
			ActorRole:  string(workflow.RoleClient),
			ActorID:    req.ClientRef,
			FromStatus: "",
			ToStatus:   entity.ClaimStatusSubmitted,
			Timestamp:  now,
		}
		if err := s.history.Append(txCtx, rec); err != nil {
			return fmt.Errorf("failed to record claim creation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Flag the warranty as Claimed through the engine so the claim event and
	// warranty transition share one audit trail. A concurrent duplicate claim
	// losing this race is fine: the claim itself is already recorded.
	if _, err := s.engine.AttemptTransition(ctx,
		workflow.EntityWarranty, w.ID, workflow.ActionFileClaim,
		appwf.Actor{ID: req.ClientRef, Role: workflow.RoleClient},
		appwf.WithNote(fmt.Sprintf("claim %d filed", claim.ID)),
		appwf.WithEventData(map[string]interface{}{
			"claim_id":   claim.ID,
			"client_ref": req.ClientRef,
		}),
	); err != nil {
		s.logger.Error("warranty not flagged as claimed",
			"warranty_id", w.ID,
			"claim_id", claim.ID,
			"error", err)
	}

	if s.events != nil {
		evt := event.New(event.TypeClaimSubmitted, string(workflow.EntityWarrantyClaim), claim.ID, map[string]interface{}{
			"warranty_id": claim.WarrantyID,
			"client_ref":  claim.ClientRef,
		}).WithStatuses("", entity.ClaimStatusSubmitted)
		s.events.DispatchAsync(ctx, evt)
	}

	s.logger.Info("warranty claim filed",
		"claim_id", claim.ID,
		"warranty_id", req.WarrantyID,
		"client_ref", req.ClientRef)
	return claim, nil
}

// Get returns a single claim.
func (s *ClaimService) Get(ctx context.Context, id int64) (*entity.WarrantyClaim, error) {
	return s.claims.GetByID(ctx, id)
}

// ListByWarranty returns the claims filed against a warranty.
func (s *ClaimService) ListByWarranty(ctx context.Context, warrantyID int64) ([]*entity.WarrantyClaim, error) {
	return s.claims.ListByWarrantyID(ctx, warrantyID)
}

// Decide drives the claim workflow toward the requested target status.
// Finance review decisions record the reviewer; the warehouse shipment
// records the shipment time.
func (s *ClaimService) Decide(ctx context.Context, id int64, target string, actor appwf.Actor, note string) (*entity.WarrantyClaim, error) {
	action, ok := statusToClaimAction[target]
	if !ok {
		return nil, fmt.Errorf("%w: unknown target status %q", ErrValidation, target)
	}

	claim, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	opts := []appwf.TransitionOption{
		appwf.WithNote(note),
		appwf.WithEventData(map[string]interface{}{
			"warranty_id": claim.WarrantyID,
			"client_ref":  claim.ClientRef,
		}),
	}
	switch action {
	case workflow.ActionShipReplacement:
		opts = append(opts, appwf.WithPayload(&entity.WarehouseAction{
			ShippedReplacement: true,
			ShippedAt:          s.now(),
		}))
	default:
		opts = append(opts, appwf.WithPayload(&entity.ReviewDecision{
			ReviewerRef: actor.ID,
			Note:        note,
		}))
	}

	if _, err := s.engine.AttemptTransition(ctx, workflow.EntityWarrantyClaim, id, action, actor, opts...); err != nil {
		return nil, err
	}
	return s.claims.GetByID(ctx, id)
}

// History returns the full transition trail of a claim.
func (s *ClaimService) History(ctx context.Context, id int64) ([]*entity.TransitionRecord, error) {
	return s.history.ListByEntity(ctx, string(workflow.EntityWarrantyClaim), id)
}
