package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildflow/procurement/internal/application/dispatcher"
	"github.com/buildflow/procurement/internal/application/port"
	appwf "github.com/buildflow/procurement/internal/application/workflow"
	"github.com/buildflow/procurement/internal/domain/entity"
	"github.com/buildflow/procurement/internal/domain/event"
	"github.com/buildflow/procurement/internal/domain/workflow"
)

// Notification template names. The notifier resolves these to channel
// specific content.
const (
	TplOrderAwaitingApproval = "order_awaiting_approval"
	TplOrderDecided          = "order_decided"
	TplOrderSent             = "order_sent_to_supplier"
	TplClaimReceived         = "claim_received"
	TplClaimDecided          = "claim_decided"
	TplClaimReplaced         = "claim_replacement_shipped"
	TplReceiptUploadLink     = "receipt_upload_link"
	TplReceiptUploaded       = "receipt_uploaded"
	TplReceiptReviewed       = "receipt_reviewed"
)

// Well-known team recipients for role-addressed notifications
const (
	RecipientFinanceTeam   = "finance-team"
	RecipientWarehouseTeam = "warehouse-team"
)

// SideEffects binds committed-transition events to their follow-up actions.
// Every handler is safe to re-run: delivery is at least once.
type SideEffects struct {
	orders      port.PurchaseOrderRepository
	claims      port.WarrantyClaimRepository
	inspections port.InspectionRequestRepository
	warranties  *WarrantyService
	engine      appwf.Engine
	notifier    port.Notifier
	logger      Logger
}

// NewSideEffects creates the side-effect handler set.
func NewSideEffects(
	orders port.PurchaseOrderRepository,
	claims port.WarrantyClaimRepository,
	inspections port.InspectionRequestRepository,
	warranties *WarrantyService,
	engine appwf.Engine,
	notifier port.Notifier,
	logger Logger,
) *SideEffects {
	return &SideEffects{
		orders:      orders,
		claims:      claims,
		inspections: inspections,
		warranties:  warranties,
		engine:      engine,
		notifier:    notifier,
		logger:      logger,
	}
}

// Register subscribes all handlers on the dispatcher.
func (se *SideEffects) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeOrderSubmitted, "notify-finance-of-order", se.onOrderSubmitted)
	d.SubscribeNamed(event.TypeOrderApproved, "notify-requester-approved", se.onOrderDecided)
	d.SubscribeNamed(event.TypeOrderRejected, "notify-requester-rejected", se.onOrderDecided)
	d.SubscribeNamed(event.TypeOrderSent, "notify-supplier", se.onOrderSent)
	d.SubscribeNamed(event.TypeOrderDelivered, "spawn-warranties", se.onOrderDelivered)

	d.SubscribeNamed(event.TypeClaimSubmitted, "notify-finance-of-claim", se.onClaimSubmitted)
	d.SubscribeNamed(event.TypeClaimApproved, "notify-claim-approved", se.onClaimDecided)
	d.SubscribeNamed(event.TypeClaimApproved, "notify-warehouse-to-ship", se.onClaimApprovedWarehouse)
	d.SubscribeNamed(event.TypeClaimRejected, "notify-claim-rejected", se.onClaimDecided)
	d.SubscribeNamed(event.TypeClaimReplaced, "close-warranty", se.onClaimReplaced)
	d.SubscribeNamed(event.TypeClaimReplaced, "notify-replacement-shipped", se.onClaimReplacedNotify)

	d.SubscribeNamed(event.TypeReceiptIssued, "send-upload-link", se.onReceiptIssued)
	d.SubscribeNamed(event.TypeReceiptUploaded, "notify-finance-of-upload", se.onReceiptUploaded)
	d.SubscribeNamed(event.TypeReceiptVerified, "flag-inspection-paid", se.onReceiptVerified)
	d.SubscribeNamed(event.TypeReceiptVerified, "notify-receipt-verified", se.onReceiptReviewed)
	d.SubscribeNamed(event.TypeReceiptRejected, "notify-receipt-rejected", se.onReceiptReviewed)
}

func (se *SideEffects) onOrderSubmitted(ctx context.Context, evt *event.Event) error {
	return se.notifier.Send(ctx, RecipientFinanceTeam, TplOrderAwaitingApproval, map[string]interface{}{
		"order_id": evt.EntityID,
	})
}

func (se *SideEffects) onOrderDecided(ctx context.Context, evt *event.Event) error {
	order, err := se.orders.GetByID(ctx, evt.EntityID)
	if err != nil {
		return err
	}
	return se.notifier.Send(ctx, order.RequesterRef, TplOrderDecided, map[string]interface{}{
		"order_id": order.ID,
		"decision": evt.ToStatus,
	})
}

func (se *SideEffects) onOrderSent(ctx context.Context, evt *event.Event) error {
	order, err := se.orders.GetByID(ctx, evt.EntityID)
	if err != nil {
		return err
	}
	return se.notifier.Send(ctx, order.SupplierRef, TplOrderSent, map[string]interface{}{
		"order_id": order.ID,
		"total":    order.Total.String(),
	})
}

// onOrderDelivered spawns warranties for the delivered items. The creation
// is idempotent so redelivered events are harmless.
func (se *SideEffects) onOrderDelivered(ctx context.Context, evt *event.Event) error {
	_, err := se.warranties.CreateForDeliveredOrder(ctx, evt.EntityID)
	return err
}

func (se *SideEffects) onClaimSubmitted(ctx context.Context, evt *event.Event) error {
	return se.notifier.Send(ctx, RecipientFinanceTeam, TplClaimReceived, map[string]interface{}{
		"claim_id":    evt.EntityID,
		"warranty_id": evt.GetPayloadInt("warranty_id"),
	})
}

func (se *SideEffects) onClaimDecided(ctx context.Context, evt *event.Event) error {
	return se.notifier.Send(ctx, evt.GetPayloadString("client_ref"), TplClaimDecided, map[string]interface{}{
		"claim_id": evt.EntityID,
		"decision": evt.ToStatus,
	})
}

func (se *SideEffects) onClaimApprovedWarehouse(ctx context.Context, evt *event.Event) error {
	return se.notifier.Send(ctx, RecipientWarehouseTeam, TplClaimDecided, map[string]interface{}{
		"claim_id":    evt.EntityID,
		"warranty_id": evt.GetPayloadInt("warranty_id"),
		"decision":    evt.ToStatus,
	})
}

// onClaimReplaced moves the claimed warranty to Replaced. Races and replays
// settle on the warranty's conditional update.
func (se *SideEffects) onClaimReplaced(ctx context.Context, evt *event.Event) error {
	warrantyID := evt.GetPayloadInt("warranty_id")
	if warrantyID == 0 {
		claim, err := se.claims.GetByID(ctx, evt.EntityID)
		if err != nil {
			return err
		}
		warrantyID = claim.WarrantyID
	}

	_, err := se.engine.AttemptTransition(ctx,
		workflow.EntityWarranty, warrantyID, workflow.ActionShipReplacement,
		appwf.Actor{ID: fmt.Sprintf("claim-%d", evt.EntityID), Role: workflow.RoleSystem},
		appwf.WithNote(fmt.Sprintf("replacement shipped for claim %d", evt.EntityID)),
	)
	if err != nil && !errors.Is(err, workflow.ErrIllegalTransition) && !errors.Is(err, appwf.ErrConflict) {
		return err
	}
	return nil
}

func (se *SideEffects) onClaimReplacedNotify(ctx context.Context, evt *event.Event) error {
	return se.notifier.Send(ctx, evt.GetPayloadString("client_ref"), TplClaimReplaced, map[string]interface{}{
		"claim_id": evt.EntityID,
	})
}

func (se *SideEffects) onReceiptIssued(ctx context.Context, evt *event.Event) error {
	return se.notifier.Send(ctx, evt.GetPayloadString("client_ref"), TplReceiptUploadLink, map[string]interface{}{
		"receipt_id":    evt.EntityID,
		"upload_token":  evt.GetPayloadString("upload_token"),
		"token_expires": evt.GetPayloadString("token_expires"),
		"amount":        evt.GetPayloadString("amount"),
	})
}

func (se *SideEffects) onReceiptUploaded(ctx context.Context, evt *event.Event) error {
	return se.notifier.Send(ctx, RecipientFinanceTeam, TplReceiptUploaded, map[string]interface{}{
		"receipt_id": evt.EntityID,
		"file_name":  evt.GetPayloadString("file_name"),
	})
}

// onReceiptVerified flags the linked inspection request as paid. Setting the
// same status twice is a no-op.
func (se *SideEffects) onReceiptVerified(ctx context.Context, evt *event.Event) error {
	requestID := evt.GetPayloadInt("linked_request_id")
	if requestID == 0 {
		return nil
	}
	return se.inspections.SetStatus(ctx, requestID, entity.InspectionStatusPaymentVerified)
}

func (se *SideEffects) onReceiptReviewed(ctx context.Context, evt *event.Event) error {
	return se.notifier.Send(ctx, evt.GetPayloadString("client_ref"), TplReceiptReviewed, map[string]interface{}{
		"receipt_id": evt.EntityID,
		"decision":   evt.ToStatus,
		"reason":     evt.GetPayloadString("reason"),
	})
}
