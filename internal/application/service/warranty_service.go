package service

import (
	"context"
	"fmt"
	"time"

	"github.com/buildflow/procurement/internal/application/port"
	"github.com/buildflow/procurement/internal/domain/entity"
	"github.com/buildflow/procurement/internal/domain/workflow"
)

// WarrantyService manages warranties created when orders are delivered.
type WarrantyService struct {
	warranties port.WarrantyRepository
	orders     port.PurchaseOrderRepository
	history    port.HistoryRepository
	txManager  port.TransactionManager
	logger     Logger
	now        func() time.Time
}

// NewWarrantyService creates a warranty service with its dependencies.
func NewWarrantyService(
	warranties port.WarrantyRepository,
	orders port.PurchaseOrderRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	logger Logger,
) *WarrantyService {
	return &WarrantyService{
		warranties: warranties,
		orders:     orders,
		history:    history,
		txManager:  txManager,
		logger:     logger,
		now:        time.Now,
	}
}

// Get returns a warranty with its date-derived display status applied.
func (s *WarrantyService) Get(ctx context.Context, id int64) (*entity.Warranty, error) {
	w, err := s.warranties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Status = w.DisplayStatus(s.now())
	return w, nil
}

// ListByOrder returns the warranties spawned by a delivered order, with
// display statuses applied.
func (s *WarrantyService) ListByOrder(ctx context.Context, orderID int64) ([]*entity.Warranty, error) {
	list, err := s.warranties.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, w := range list {
		w.Status = w.DisplayStatus(now)
	}
	return list, nil
}

// History returns the full transition trail of a warranty.
func (s *WarrantyService) History(ctx context.Context, id int64) ([]*entity.TransitionRecord, error) {
	return s.history.ListByEntity(ctx, string(workflow.EntityWarranty), id)
}

// CreateForDeliveredOrder creates one Active warranty per line item carrying
// a warranty period on the given order. Idempotent: a second call for the
// same order is a no-op, so delivery events may be redelivered safely.
func (s *WarrantyService) CreateForDeliveredOrder(ctx context.Context, orderID int64) ([]*entity.Warranty, error) {
	existing, err := s.warranties.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	start := s.now()
	var created []*entity.Warranty
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, item := range order.Items {
			if item.WarrantyPeriod == "" {
				continue
			}
			end, err := entity.WarrantyEnd(start, item.WarrantyPeriod)
			if err != nil {
				s.logger.Error("skipping warranty with bad period",
					"order_id", orderID,
					"material_ref", item.MaterialRef,
					"period", item.WarrantyPeriod,
					"error", err)
				continue
			}
			w := &entity.Warranty{
				ProjectRef: order.ProjectRef,
				ClientRef:  order.RequesterRef,
				ItemRef:    item.MaterialRef,
				OrderID:    orderID,
				StartDate:  start,
				EndDate:    end,
				Status:     entity.WarrantyStatusActive,
				CreatedAt:  start,
				UpdatedAt:  start,
			}
			if err := s.warranties.Create(txCtx, w); err != nil {
				return fmt.Errorf("failed to create warranty for %s: %w", item.MaterialRef, err)
			}
			rec := &entity.TransitionRecord{
				EntityType: string(workflow.EntityWarranty),
				EntityID:   w.ID,
				Action:     "create",
				ActorRole:  string(workflow.RoleSystem),
				ActorID:    "delivery",
				FromStatus: "",
				ToStatus:   entity.WarrantyStatusActive,
				Note:       fmt.Sprintf("order %d delivered", orderID),
				Timestamp:  start,
			}
			if err := s.history.Append(txCtx, rec); err != nil {
				return fmt.Errorf("failed to record warranty creation: %w", err)
			}
			created = append(created, w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("warranties created for delivered order",
		"order_id", orderID,
		"count", len(created))
	return created, nil
}
