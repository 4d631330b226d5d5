package workflow

import (
	"errors"
	"testing"

	"github.com/buildflow/procurement/internal/domain/entity"
	domainwf "github.com/buildflow/procurement/internal/domain/workflow"
)

// tableEntry is one row of the authoritative transition tables
type tableEntry struct {
	from   string
	action domainwf.Action
	roles  []domainwf.Role
	to     string
}

var orderTable = []tableEntry{
	{entity.OrderStatusDraft, domainwf.ActionSubmit, []domainwf.Role{domainwf.RoleProcurement}, entity.OrderStatusPendingApproval},
	{entity.OrderStatusPendingApproval, domainwf.ActionApprove, []domainwf.Role{domainwf.RoleFinance}, entity.OrderStatusApproved},
	{entity.OrderStatusPendingApproval, domainwf.ActionReject, []domainwf.Role{domainwf.RoleFinance}, entity.OrderStatusRejected},
	{entity.OrderStatusApproved, domainwf.ActionSend, []domainwf.Role{domainwf.RoleProcurement, domainwf.RoleSystem}, entity.OrderStatusSentToSupplier},
	{entity.OrderStatusSentToSupplier, domainwf.ActionSupplierAck, []domainwf.Role{domainwf.RoleSupplier}, entity.OrderStatusInProgress},
	{entity.OrderStatusInProgress, domainwf.ActionDeliver, []domainwf.Role{domainwf.RoleSupplier, domainwf.RoleProcurement}, entity.OrderStatusDelivered},
	{entity.OrderStatusDelivered, domainwf.ActionClose, []domainwf.Role{domainwf.RoleProcurement, domainwf.RoleFinance}, entity.OrderStatusClosed},
}

var claimTable = []tableEntry{
	{entity.ClaimStatusSubmitted, domainwf.ActionStartReview, []domainwf.Role{domainwf.RoleFinance}, entity.ClaimStatusUnderReview},
	{entity.ClaimStatusSubmitted, domainwf.ActionApprove, []domainwf.Role{domainwf.RoleFinance}, entity.ClaimStatusApproved},
	{entity.ClaimStatusSubmitted, domainwf.ActionReject, []domainwf.Role{domainwf.RoleFinance}, entity.ClaimStatusRejected},
	{entity.ClaimStatusUnderReview, domainwf.ActionApprove, []domainwf.Role{domainwf.RoleFinance}, entity.ClaimStatusApproved},
	{entity.ClaimStatusUnderReview, domainwf.ActionReject, []domainwf.Role{domainwf.RoleFinance}, entity.ClaimStatusRejected},
	{entity.ClaimStatusApproved, domainwf.ActionShipReplacement, []domainwf.Role{domainwf.RoleWarehouse}, entity.ClaimStatusReplaced},
}

var receiptTable = []tableEntry{
	{entity.ReceiptStatusAwaitingUpload, domainwf.ActionUpload, []domainwf.Role{domainwf.RoleAnonymous}, entity.ReceiptStatusUploaded},
	{entity.ReceiptStatusAwaitingUpload, domainwf.ActionExpire, []domainwf.Role{domainwf.RoleSystem}, entity.ReceiptStatusExpired},
	{entity.ReceiptStatusUploaded, domainwf.ActionVerify, []domainwf.Role{domainwf.RoleFinance}, entity.ReceiptStatusVerified},
	{entity.ReceiptStatusUploaded, domainwf.ActionReject, []domainwf.Role{domainwf.RoleFinance}, entity.ReceiptStatusRejected},
}

var warrantyTable = []tableEntry{
	{entity.WarrantyStatusActive, domainwf.ActionFileClaim, []domainwf.Role{domainwf.RoleSystem, domainwf.RoleClient}, entity.WarrantyStatusClaimed},
	{entity.WarrantyStatusClaimed, domainwf.ActionShipReplacement, []domainwf.Role{domainwf.RoleSystem, domainwf.RoleWarehouse}, entity.WarrantyStatusReplaced},
}

var allStates = map[domainwf.EntityType][]string{
	domainwf.EntityPurchaseOrder: {
		entity.OrderStatusDraft, entity.OrderStatusPendingApproval,
		entity.OrderStatusApproved, entity.OrderStatusRejected,
		entity.OrderStatusSentToSupplier, entity.OrderStatusInProgress,
		entity.OrderStatusDelivered, entity.OrderStatusClosed,
	},
	domainwf.EntityWarranty: {
		entity.WarrantyStatusActive, entity.WarrantyStatusClaimed, entity.WarrantyStatusReplaced,
	},
	domainwf.EntityWarrantyClaim: {
		entity.ClaimStatusSubmitted, entity.ClaimStatusUnderReview,
		entity.ClaimStatusApproved, entity.ClaimStatusRejected, entity.ClaimStatusReplaced,
	},
	domainwf.EntityPaymentReceipt: {
		entity.ReceiptStatusAwaitingUpload, entity.ReceiptStatusUploaded,
		entity.ReceiptStatusExpired, entity.ReceiptStatusVerified, entity.ReceiptStatusRejected,
	},
}

var allActions = []domainwf.Action{
	domainwf.ActionSubmit, domainwf.ActionApprove, domainwf.ActionReject,
	domainwf.ActionSend, domainwf.ActionSupplierAck, domainwf.ActionDeliver,
	domainwf.ActionClose, domainwf.ActionFileClaim, domainwf.ActionStartReview,
	domainwf.ActionShipReplacement, domainwf.ActionUpload, domainwf.ActionExpire,
	domainwf.ActionVerify,
}

var tables = map[domainwf.EntityType][]tableEntry{
	domainwf.EntityPurchaseOrder:  orderTable,
	domainwf.EntityWarranty:       warrantyTable,
	domainwf.EntityWarrantyClaim:  claimTable,
	domainwf.EntityPaymentReceipt: receiptTable,
}

func TestTables_EveryListedTransitionIsLegal(t *testing.T) {
	for entityType, table := range tables {
		for _, e := range table {
			for _, role := range e.roles {
				m, err := MachineFor(entityType, domainwf.State(e.from))
				if err != nil {
					t.Fatalf("%s: MachineFor(%s) failed: %v", entityType, e.from, err)
				}
				if err := m.Fire(e.action, role); err != nil {
					t.Errorf("%s: %s -(%s, %s)-> failed: %v", entityType, e.from, e.action, role, err)
					continue
				}
				if got := m.State().String(); got != e.to {
					t.Errorf("%s: %s -(%s)-> %s, want %s", entityType, e.from, e.action, got, e.to)
				}
			}
		}
	}
}

func TestTables_UnknownPairsAreIllegalByDefault(t *testing.T) {
	for entityType, states := range allStates {
		listed := make(map[string]map[domainwf.Action]bool)
		for _, e := range tables[entityType] {
			if listed[e.from] == nil {
				listed[e.from] = make(map[domainwf.Action]bool)
			}
			listed[e.from][e.action] = true
		}

		for _, from := range states {
			for _, action := range allActions {
				if listed[from][action] {
					continue
				}
				m, err := MachineFor(entityType, domainwf.State(from))
				if err != nil {
					t.Fatalf("%s: MachineFor(%s) failed: %v", entityType, from, err)
				}
				err = m.Fire(action, domainwf.RoleSystem)
				if !errors.Is(err, domainwf.ErrIllegalTransition) && !errors.Is(err, domainwf.ErrRoleDenied) {
					t.Errorf("%s: %s -(%s)-> unexpectedly allowed (err=%v)", entityType, from, action, err)
				}
			}
		}
	}
}

func TestTables_UnlistedRolesAreDenied(t *testing.T) {
	deniedProbe := map[domainwf.Role]bool{}
	for _, r := range []domainwf.Role{
		domainwf.RoleProcurement, domainwf.RoleFinance, domainwf.RoleSupplier,
		domainwf.RoleWarehouse, domainwf.RoleClient, domainwf.RoleSystem, domainwf.RoleAnonymous,
	} {
		deniedProbe[r] = true
	}

	for entityType, table := range tables {
		for _, e := range table {
			allowed := make(map[domainwf.Role]bool)
			for _, r := range e.roles {
				allowed[r] = true
			}
			for role := range deniedProbe {
				if allowed[role] {
					continue
				}
				m, err := MachineFor(entityType, domainwf.State(e.from))
				if err != nil {
					t.Fatalf("MachineFor failed: %v", err)
				}
				if err := m.Fire(e.action, role); !errors.Is(err, domainwf.ErrRoleDenied) {
					t.Errorf("%s: %s -(%s, %s)-> error = %v, want ErrRoleDenied", entityType, e.from, e.action, role, err)
				}
			}
		}
	}
}

func TestMachineFor_InvalidState(t *testing.T) {
	_, err := MachineFor(domainwf.EntityPurchaseOrder, "Bogus")
	if !errors.Is(err, domainwf.ErrInvalidState) {
		t.Errorf("MachineFor(Bogus) error = %v, want ErrInvalidState", err)
	}
}

func TestMachineFor_UnknownEntityType(t *testing.T) {
	if _, err := MachineFor("supplier", "Draft"); err == nil {
		t.Error("MachineFor(supplier) should fail")
	}
}

func TestEventTypeFor(t *testing.T) {
	typ, ok := EventTypeFor(domainwf.EntityPurchaseOrder, domainwf.ActionApprove)
	if !ok || typ != "purchase_order.approved" {
		t.Errorf("EventTypeFor(order, approve) = %s, %v", typ, ok)
	}

	if _, ok := EventTypeFor(domainwf.EntityPurchaseOrder, domainwf.ActionUpload); ok {
		t.Error("EventTypeFor(order, upload) should not be defined")
	}
}

func TestTables_EveryTransitionEmitsAnEvent(t *testing.T) {
	for entityType, table := range tables {
		for _, e := range table {
			if _, ok := EventTypeFor(entityType, e.action); !ok {
				t.Errorf("%s/%s has no event type mapped", entityType, e.action)
			}
		}
	}
}
