package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/buildflow/procurement/internal/application/port"
	"github.com/buildflow/procurement/internal/domain/entity"
)

// OrderRepository implements port.PurchaseOrderRepository on SQLite
type OrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new purchase order repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) port.PurchaseOrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new order and its line items
func (r *OrderRepository) Create(ctx context.Context, order *entity.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (
			origin, project_ref, supplier_ref, requester_ref, total, status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	ex := pick(ctx, r.db)
	result, err := ex.ExecContext(ctx, query,
		order.Origin,
		order.ProjectRef,
		order.SupplierRef,
		order.RequesterRef,
		order.Total.String(),
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create order", zap.Error(err))
		return fmt.Errorf("failed to create order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	order.ID = id

	for i := range order.Items {
		if err := r.insertItem(ctx, ex, id, &order.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepository) insertItem(ctx context.Context, ex executor, orderID int64, item *entity.LineItem) error {
	query := `
		INSERT INTO purchase_order_items (
			order_id, material_ref, description, quantity, unit_price, warranty_period
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := ex.ExecContext(ctx, query,
		orderID,
		item.MaterialRef,
		item.Description,
		item.Quantity,
		item.UnitPrice.String(),
		item.WarrantyPeriod,
	)
	if err != nil {
		r.logger.Error("Failed to insert line item", zap.Int64("order_id", orderID), zap.Error(err))
		return fmt.Errorf("failed to insert line item: %w", err)
	}

	itemID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = itemID
	item.OrderID = orderID
	return nil
}

// GetByID retrieves an order with its line items and finance decision
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	query := `
		SELECT id, origin, project_ref, supplier_ref, requester_ref, total, status,
			approver_ref, finance_decision, finance_note, decided_at,
			created_at, updated_at
		FROM purchase_orders
		WHERE id = ?
	`

	ex := pick(ctx, r.db)
	order, err := scanOrder(ex.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get order", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := r.listItems(ctx, ex, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// rowScanner lets scanOrder work over both Row and Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*entity.PurchaseOrder, error) {
	var (
		order      entity.PurchaseOrder
		total      string
		approver   sql.NullString
		decision   sql.NullString
		note       sql.NullString
		decidedAt  sql.NullTime
	)

	err := row.Scan(
		&order.ID,
		&order.Origin,
		&order.ProjectRef,
		&order.SupplierRef,
		&order.RequesterRef,
		&total,
		&order.Status,
		&approver,
		&decision,
		&note,
		&decidedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("corrupt total on order %d: %w", order.ID, err)
	}
	order.Total = t

	if approver.Valid {
		order.Finance = &entity.FinanceApproval{
			ApproverRef: approver.String,
			Decision:    decision.String,
			Note:        note.String,
			DecidedAt:   decidedAt.Time,
		}
	}
	return &order, nil
}

func (r *OrderRepository) listItems(ctx context.Context, ex executor, orderID int64) ([]entity.LineItem, error) {
	query := `
		SELECT id, order_id, material_ref, description, quantity, unit_price, warranty_period
		FROM purchase_order_items
		WHERE order_id = ?
		ORDER BY id
	`

	rows, err := ex.QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to list line items", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	var items []entity.LineItem
	for rows.Next() {
		var (
			item  entity.LineItem
			price string
		)
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.MaterialRef,
			&item.Description,
			&item.Quantity,
			&price,
			&item.WarrantyPeriod,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		item.UnitPrice, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("corrupt unit price on item %d: %w", item.ID, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ReplaceItems swaps the full line item set and stores the recomputed total.
// The order update is predicated on Draft so a concurrent submit cannot be
// overwritten. Call inside a transaction.
func (r *OrderRepository) ReplaceItems(ctx context.Context, id int64, items []entity.LineItem) error {
	ex := pick(ctx, r.db)

	total := entity.ComputeTotal(items)
	result, err := ex.ExecContext(ctx,
		`UPDATE purchase_orders SET total = ?, updated_at = ? WHERE id = ? AND status = ?`,
		total.String(), time.Now(), id, entity.OrderStatusDraft,
	)
	if err != nil {
		r.logger.Error("Failed to update order total", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update order total: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return port.ErrNotFound
	}

	if _, err := ex.ExecContext(ctx, `DELETE FROM purchase_order_items WHERE order_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear line items: %w", err)
	}
	for i := range items {
		if err := r.insertItem(ctx, ex, id, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

// List retrieves orders with optional status filter and pagination
func (r *OrderRepository) List(ctx context.Context, status string, limit, offset int) ([]*entity.PurchaseOrder, error) {
	query := `
		SELECT id, origin, project_ref, supplier_ref, requester_ref, total, status,
			approver_ref, finance_decision, finance_note, decided_at,
			created_at, updated_at
		FROM purchase_orders
	`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	ex := pick(ctx, r.db)
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list orders", zap.Error(err))
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*entity.PurchaseOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, order := range orders {
		items, err := r.listItems(ctx, ex, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
	}
	return orders, nil
}

// GetStatus returns the order's current status
func (r *OrderRepository) GetStatus(ctx context.Context, id int64) (string, error) {
	var status string
	err := pick(ctx, r.db).QueryRowContext(ctx,
		`SELECT status FROM purchase_orders WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", port.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get order status: %w", err)
	}
	return status, nil
}

// ApplyTransition conditionally moves the order between statuses. A finance
// decision payload is written in the same statement, predicated on no prior
// decision so it can never be overwritten.
func (r *OrderRepository) ApplyTransition(ctx context.Context, id int64, from, to string, payload interface{}) (bool, error) {
	var (
		result sql.Result
		err    error
	)
	ex := pick(ctx, r.db)

	if fa, ok := payload.(*entity.FinanceApproval); ok {
		result, err = ex.ExecContext(ctx, `
			UPDATE purchase_orders
			SET status = ?, approver_ref = ?, finance_decision = ?, finance_note = ?,
				decided_at = ?, updated_at = ?
			WHERE id = ? AND status = ? AND approver_ref IS NULL
		`, to, fa.ApproverRef, fa.Decision, fa.Note, fa.DecidedAt, time.Now(), id, from)
	} else {
		result, err = ex.ExecContext(ctx, `
			UPDATE purchase_orders
			SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, to, time.Now(), id, from)
	}
	if err != nil {
		r.logger.Error("Failed to apply order transition",
			zap.Int64("id", id), zap.String("from", from), zap.String("to", to), zap.Error(err))
		return false, fmt.Errorf("failed to apply order transition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Verify interface compliance
var _ port.PurchaseOrderRepository = (*OrderRepository)(nil)
