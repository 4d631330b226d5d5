package workflow

import (
	"fmt"

	"github.com/buildflow/procurement/internal/domain/entity"
	"github.com/buildflow/procurement/internal/domain/event"
	domainwf "github.com/buildflow/procurement/internal/domain/workflow"
)

// BuildPurchaseOrderMachine creates a state machine positioned at the given
// purchase order status
func BuildPurchaseOrderMachine(current domainwf.State) (domainwf.Machine, error) {
	b := domainwf.NewBuilder()

	b.Configure(domainwf.State(entity.OrderStatusDraft)).
		Permit(domainwf.ActionSubmit, domainwf.State(entity.OrderStatusPendingApproval), domainwf.RoleProcurement)

	b.Configure(domainwf.State(entity.OrderStatusPendingApproval)).
		Permit(domainwf.ActionApprove, domainwf.State(entity.OrderStatusApproved), domainwf.RoleFinance).
		Permit(domainwf.ActionReject, domainwf.State(entity.OrderStatusRejected), domainwf.RoleFinance)

	b.Configure(domainwf.State(entity.OrderStatusApproved)).
		Permit(domainwf.ActionSend, domainwf.State(entity.OrderStatusSentToSupplier), domainwf.RoleProcurement, domainwf.RoleSystem)

	b.Configure(domainwf.State(entity.OrderStatusSentToSupplier)).
		Permit(domainwf.ActionSupplierAck, domainwf.State(entity.OrderStatusInProgress), domainwf.RoleSupplier)

	b.Configure(domainwf.State(entity.OrderStatusInProgress)).
		Permit(domainwf.ActionDeliver, domainwf.State(entity.OrderStatusDelivered), domainwf.RoleSupplier, domainwf.RoleProcurement)

	b.Configure(domainwf.State(entity.OrderStatusDelivered)).
		Permit(domainwf.ActionClose, domainwf.State(entity.OrderStatusClosed), domainwf.RoleProcurement, domainwf.RoleFinance)

	// Rejected and Closed are terminal

	return b.Build(current)
}

// BuildWarrantyMachine creates a state machine for warranty elevation.
// Expired is derived from dates at read time, never fired through here.
func BuildWarrantyMachine(current domainwf.State) (domainwf.Machine, error) {
	b := domainwf.NewBuilder()

	b.Configure(domainwf.State(entity.WarrantyStatusActive)).
		Permit(domainwf.ActionFileClaim, domainwf.State(entity.WarrantyStatusClaimed), domainwf.RoleSystem, domainwf.RoleClient)

	b.Configure(domainwf.State(entity.WarrantyStatusClaimed)).
		Permit(domainwf.ActionShipReplacement, domainwf.State(entity.WarrantyStatusReplaced), domainwf.RoleSystem, domainwf.RoleWarehouse)

	return b.Build(current)
}

// BuildWarrantyClaimMachine creates a state machine positioned at the given
// claim status
func BuildWarrantyClaimMachine(current domainwf.State) (domainwf.Machine, error) {
	b := domainwf.NewBuilder()

	b.Configure(domainwf.State(entity.ClaimStatusSubmitted)).
		Permit(domainwf.ActionStartReview, domainwf.State(entity.ClaimStatusUnderReview), domainwf.RoleFinance).
		Permit(domainwf.ActionApprove, domainwf.State(entity.ClaimStatusApproved), domainwf.RoleFinance).
		Permit(domainwf.ActionReject, domainwf.State(entity.ClaimStatusRejected), domainwf.RoleFinance)

	b.Configure(domainwf.State(entity.ClaimStatusUnderReview)).
		Permit(domainwf.ActionApprove, domainwf.State(entity.ClaimStatusApproved), domainwf.RoleFinance).
		Permit(domainwf.ActionReject, domainwf.State(entity.ClaimStatusRejected), domainwf.RoleFinance)

	b.Configure(domainwf.State(entity.ClaimStatusApproved)).
		Permit(domainwf.ActionShipReplacement, domainwf.State(entity.ClaimStatusReplaced), domainwf.RoleWarehouse)

	return b.Build(current)
}

// BuildPaymentReceiptMachine creates a state machine positioned at the given
// receipt status
func BuildPaymentReceiptMachine(current domainwf.State) (domainwf.Machine, error) {
	b := domainwf.NewBuilder()

	b.Configure(domainwf.State(entity.ReceiptStatusAwaitingUpload)).
		Permit(domainwf.ActionUpload, domainwf.State(entity.ReceiptStatusUploaded), domainwf.RoleAnonymous).
		Permit(domainwf.ActionExpire, domainwf.State(entity.ReceiptStatusExpired), domainwf.RoleSystem)

	b.Configure(domainwf.State(entity.ReceiptStatusUploaded)).
		Permit(domainwf.ActionVerify, domainwf.State(entity.ReceiptStatusVerified), domainwf.RoleFinance).
		Permit(domainwf.ActionReject, domainwf.State(entity.ReceiptStatusRejected), domainwf.RoleFinance)

	return b.Build(current)
}

// MachineFor builds the machine for an entity type positioned at its
// current status
func MachineFor(entityType domainwf.EntityType, current domainwf.State) (domainwf.Machine, error) {
	switch entityType {
	case domainwf.EntityPurchaseOrder:
		return BuildPurchaseOrderMachine(current)
	case domainwf.EntityWarranty:
		return BuildWarrantyMachine(current)
	case domainwf.EntityWarrantyClaim:
		return BuildWarrantyClaimMachine(current)
	case domainwf.EntityPaymentReceipt:
		return BuildPaymentReceiptMachine(current)
	default:
		return nil, fmt.Errorf("unknown entity type: %s", entityType)
	}
}

// transitionEvents maps each committed transition to the domain event it emits
var transitionEvents = map[domainwf.EntityType]map[domainwf.Action]event.Type{
	domainwf.EntityPurchaseOrder: {
		domainwf.ActionSubmit:      event.TypeOrderSubmitted,
		domainwf.ActionApprove:     event.TypeOrderApproved,
		domainwf.ActionReject:      event.TypeOrderRejected,
		domainwf.ActionSend:        event.TypeOrderSent,
		domainwf.ActionSupplierAck: event.TypeOrderAcknowledged,
		domainwf.ActionDeliver:     event.TypeOrderDelivered,
		domainwf.ActionClose:       event.TypeOrderClosed,
	},
	domainwf.EntityWarranty: {
		domainwf.ActionFileClaim:       event.TypeWarrantyClaimed,
		domainwf.ActionShipReplacement: event.TypeWarrantyReplaced,
	},
	domainwf.EntityWarrantyClaim: {
		domainwf.ActionStartReview:     event.TypeClaimReviewStart,
		domainwf.ActionApprove:         event.TypeClaimApproved,
		domainwf.ActionReject:          event.TypeClaimRejected,
		domainwf.ActionShipReplacement: event.TypeClaimReplaced,
	},
	domainwf.EntityPaymentReceipt: {
		domainwf.ActionUpload: event.TypeReceiptUploaded,
		domainwf.ActionExpire: event.TypeReceiptExpired,
		domainwf.ActionVerify: event.TypeReceiptVerified,
		domainwf.ActionReject: event.TypeReceiptRejected,
	},
}

// EventTypeFor returns the event emitted for a committed transition, and
// whether one is defined
func EventTypeFor(entityType domainwf.EntityType, action domainwf.Action) (event.Type, bool) {
	actions, ok := transitionEvents[entityType]
	if !ok {
		return "", false
	}
	typ, ok := actions[action]
	return typ, ok
}
