package service

import (
	"context"
	"fmt"
	"time"

	"github.com/buildflow/procurement/internal/application/port"
	appwf "github.com/buildflow/procurement/internal/application/workflow"
	"github.com/buildflow/procurement/internal/domain/entity"
	"github.com/buildflow/procurement/internal/domain/workflow"
)

// CreateOrderRequest carries the fields needed to open a new purchase order.
type CreateOrderRequest struct {
	Origin       string            `json:"origin"`
	ProjectRef   string            `json:"project_ref"`
	SupplierRef  string            `json:"supplier_ref"`
	RequesterRef string            `json:"requester_ref"`
	Items        []entity.LineItem `json:"items"`
}

// OrderService manages purchase orders through their approval and
// fulfillment pipeline.
type OrderService struct {
	orders    port.PurchaseOrderRepository
	history   port.HistoryRepository
	txManager port.TransactionManager
	engine    appwf.Engine
	logger    Logger
	now       func() time.Time
}

// NewOrderService creates an order service with its dependencies.
func NewOrderService(
	orders port.PurchaseOrderRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	engine appwf.Engine,
	logger Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		history:   history,
		txManager: txManager,
		engine:    engine,
		logger:    logger,
		now:       time.Now,
	}
}

// validateOrderItems applies the order-level item rules: at least one line,
// every line with a positive quantity and non-negative price.
func validateOrderItems(items []entity.LineItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: an order needs at least one line item", ErrValidation)
	}
	for _, li := range items {
		if li.MaterialRef == "" {
			return fmt.Errorf("%w: material_ref is required on every line item", ErrValidation)
		}
		if li.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive for %s", ErrValidation, li.MaterialRef)
		}
		if err := li.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return nil
}

// statusToOrderAction maps a requested target status to the workflow action
// that reaches it. Unknown targets are validation errors, not transitions.
var statusToOrderAction = map[string]workflow.Action{
	entity.OrderStatusPendingApproval: workflow.ActionSubmit,
	entity.OrderStatusApproved:        workflow.ActionApprove,
	entity.OrderStatusRejected:        workflow.ActionReject,
	entity.OrderStatusSentToSupplier:  workflow.ActionSend,
	entity.OrderStatusInProgress:      workflow.ActionSupplierAck,
	entity.OrderStatusDelivered:       workflow.ActionDeliver,
	entity.OrderStatusClosed:          workflow.ActionClose,
}

// Create validates the request, computes the total server-side and persists
// a new order in Draft together with its opening history record.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*entity.PurchaseOrder, error) {
	switch req.Origin {
	case entity.OrderOriginReorderAlert, entity.OrderOriginManual, entity.OrderOriginProjectMR:
	default:
		return nil, fmt.Errorf("%w: unknown order origin %q", ErrValidation, req.Origin)
	}
	if req.SupplierRef == "" {
		return nil, fmt.Errorf("%w: supplier_ref is required", ErrValidation)
	}
	if err := validateOrderItems(req.Items); err != nil {
		return nil, err
	}

	order := &entity.PurchaseOrder{
		Origin:       req.Origin,
		ProjectRef:   req.ProjectRef,
		SupplierRef:  req.SupplierRef,
		RequesterRef: req.RequesterRef,
		Items:        req.Items,
		Total:        entity.ComputeTotal(req.Items),
		Status:       entity.OrderStatusDraft,
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.orders.Create(txCtx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		record := &entity.TransitionRecord{
			EntityType: string(workflow.EntityPurchaseOrder),
			EntityID:   order.ID,
			Action:     "create",
			ActorRole:  string(workflow.RoleProcurement),
			ActorID:    req.RequesterRef,
			FromStatus: "",
			ToStatus:   entity.OrderStatusDraft,
			Timestamp:  s.now(),
		}
		if err := s.history.Append(txCtx, record); err != nil {
			return fmt.Errorf("failed to record order creation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase order created",
		"order_id", order.ID,
		"origin", order.Origin,
		"total", order.Total.String())
	return order, nil
}

// Get returns a single order with its line items.
func (s *OrderService) Get(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	return s.orders.GetByID(ctx, id)
}

// List returns orders filtered by status when status is non-empty.
func (s *OrderService) List(ctx context.Context, status string, limit, offset int) ([]*entity.PurchaseOrder, error) {
	return s.orders.List(ctx, status, limit, offset)
}

// ReplaceItems swaps the full line item set of a Draft order and recomputes
// the total in the same statement. Orders past Draft are immutable.
func (s *OrderService) ReplaceItems(ctx context.Context, id int64, items []entity.LineItem) (*entity.PurchaseOrder, error) {
	if err := validateOrderItems(items); err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusDraft {
		return nil, fmt.Errorf("%w: only Draft orders are editable", ErrValidation)
	}
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.orders.ReplaceItems(txCtx, id, items)
	})
	if err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, id)
}

// ChangeStatus drives the order workflow toward the requested target status.
// The finance decision is captured alongside approve and reject transitions.
func (s *OrderService) ChangeStatus(ctx context.Context, id int64, target string, actor appwf.Actor, note string) (*entity.PurchaseOrder, error) {
	action, ok := statusToOrderAction[target]
	if !ok {
		return nil, fmt.Errorf("%w: unknown target status %q", ErrValidation, target)
	}

	opts := []appwf.TransitionOption{appwf.WithNote(note)}
	if action == workflow.ActionApprove || action == workflow.ActionReject {
		opts = append(opts, appwf.WithPayload(&entity.FinanceApproval{
			ApproverRef: actor.ID,
			Decision:    target,
			Note:        note,
			DecidedAt:   s.now(),
		}))
	}
	opts = append(opts, appwf.WithEventData(map[string]interface{}{
		"actor_id": actor.ID,
	}))

	if _, err := s.engine.AttemptTransition(ctx, workflow.EntityPurchaseOrder, id, action, actor, opts...); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, id)
}

// History returns the full transition trail of an order.
func (s *OrderService) History(ctx context.Context, id int64) ([]*entity.TransitionRecord, error) {
	return s.history.ListByEntity(ctx, string(workflow.EntityPurchaseOrder), id)
}
