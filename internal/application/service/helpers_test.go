package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/buildflow/procurement/internal/application/port"
	"github.com/buildflow/procurement/internal/domain/entity"
)

// nopLogger discards everything
type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// nopTx runs the function without a real transaction
type nopTx struct{}

func (nopTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memHistory is an in-memory append-only history store
type memHistory struct {
	mu      sync.Mutex
	records []*entity.TransitionRecord
}

func (h *memHistory) Append(_ context.Context, rec *entity.TransitionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

func (h *memHistory) ListByEntity(_ context.Context, entityType string, entityID int64) ([]*entity.TransitionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*entity.TransitionRecord
	for _, r := range h.records {
		if r.EntityType == entityType && r.EntityID == entityID {
			out = append(out, r)
		}
	}
	return out, nil
}

// memOrders is an in-memory PurchaseOrderRepository with conditional
// transition semantics matching the real store
type memOrders struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*entity.PurchaseOrder
}

func newMemOrders() *memOrders {
	return &memOrders{items: make(map[int64]*entity.PurchaseOrder)}
}

func (m *memOrders) Create(_ context.Context, o *entity.PurchaseOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = m.nextID
	cp := *o
	m.items[o.ID] = &cp
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id int64) (*entity.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) ReplaceItems(_ context.Context, id int64, items []entity.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[id]
	if !ok {
		return port.ErrNotFound
	}
	if o.Status != entity.OrderStatusDraft {
		return fmt.Errorf("order %d is not editable", id)
	}
	o.Items = items
	o.Total = entity.ComputeTotal(items)
	return nil
}

func (m *memOrders) List(_ context.Context, status string, limit, offset int) ([]*entity.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.PurchaseOrder
	for _, o := range m.items {
		if status == "" || o.Status == status {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memOrders) GetStatus(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[id]
	if !ok {
		return "", port.ErrNotFound
	}
	return o.Status, nil
}

func (m *memOrders) ApplyTransition(_ context.Context, id int64, from, to string, payload interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[id]
	if !ok {
		return false, port.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	if fa, ok := payload.(*entity.FinanceApproval); ok {
		if o.Finance != nil {
			return false, nil
		}
		o.Finance = fa
	}
	o.Status = to
	return true, nil
}

// memWarranties is an in-memory WarrantyRepository
type memWarranties struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*entity.Warranty
}

func newMemWarranties() *memWarranties {
	return &memWarranties{items: make(map[int64]*entity.Warranty)}
}

func (m *memWarranties) Create(_ context.Context, w *entity.Warranty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	w.ID = m.nextID
	cp := *w
	m.items[w.ID] = &cp
	return nil
}

func (m *memWarranties) GetByID(_ context.Context, id int64) (*entity.Warranty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.items[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memWarranties) ListByOrderID(_ context.Context, orderID int64) ([]*entity.Warranty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Warranty
	for _, w := range m.items {
		if w.OrderID == orderID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memWarranties) GetStatus(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.items[id]
	if !ok {
		return "", port.ErrNotFound
	}
	return w.Status, nil
}

func (m *memWarranties) ApplyTransition(_ context.Context, id int64, from, to string, _ interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.items[id]
	if !ok {
		return false, port.ErrNotFound
	}
	if w.Status != from {
		return false, nil
	}
	w.Status = to
	return true, nil
}

// memClaims is an in-memory WarrantyClaimRepository
type memClaims struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*entity.WarrantyClaim
}

func newMemClaims() *memClaims {
	return &memClaims{items: make(map[int64]*entity.WarrantyClaim)}
}

func (m *memClaims) Create(_ context.Context, c *entity.WarrantyClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.items[c.ID] = &cp
	return nil
}

func (m *memClaims) GetByID(_ context.Context, id int64) (*entity.WarrantyClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memClaims) ListByWarrantyID(_ context.Context, warrantyID int64) ([]*entity.WarrantyClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.WarrantyClaim
	for _, c := range m.items {
		if c.WarrantyID == warrantyID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memClaims) GetStatus(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return "", port.ErrNotFound
	}
	return c.Status, nil
}

func (m *memClaims) ApplyTransition(_ context.Context, id int64, from, to string, payload interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return false, port.ErrNotFound
	}
	if c.Status != from {
		return false, nil
	}
	switch p := payload.(type) {
	case *entity.ReviewDecision:
		// first review action wins, like the COALESCE in the SQL repo
		if c.ReviewerRef == "" {
			c.ReviewerRef = p.ReviewerRef
		}
	case *entity.WarehouseAction:
		c.Warehouse = p
	}
	c.Status = to
	return true, nil
}

// memReceipts is an in-memory PaymentReceiptRepository. The transition into
// uploaded additionally checks and flips the one-time token flag, matching
// the real store's single conditional update.
type memReceipts struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*entity.PaymentReceipt
}

func newMemReceipts() *memReceipts {
	return &memReceipts{items: make(map[int64]*entity.PaymentReceipt)}
}

func (m *memReceipts) Create(_ context.Context, r *entity.PaymentReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	cp := *r
	m.items[r.ID] = &cp
	return nil
}

func (m *memReceipts) GetByID(_ context.Context, id int64) (*entity.PaymentReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memReceipts) GetByToken(_ context.Context, token string) (*entity.PaymentReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.items {
		if r.UploadToken == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *memReceipts) IncrementAttempts(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.items {
		if r.UploadToken == token {
			r.UploadAttempts++
			return true, nil
		}
	}
	return false, nil
}

func (m *memReceipts) ListStaleAwaiting(_ context.Context, before time.Time, limit int) ([]*entity.PaymentReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.PaymentReceipt
	for _, r := range m.items {
		if r.Status == entity.ReceiptStatusAwaitingUpload && before.After(r.TokenExpires) {
			cp := *r
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memReceipts) GetStatus(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return "", port.ErrNotFound
	}
	return r.Status, nil
}

func (m *memReceipts) ApplyTransition(_ context.Context, id int64, from, to string, payload interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return false, port.ErrNotFound
	}
	if r.Status != from {
		return false, nil
	}
	if to == entity.ReceiptStatusUploaded {
		if r.IsTokenUsed {
			return false, nil
		}
		r.IsTokenUsed = true
		if meta, ok := payload.(*entity.FileMeta); ok {
			r.File = meta
		}
	}
	if vd, ok := payload.(*entity.VerifyDecision); ok {
		r.VerifierRef = vd.VerifierRef
		r.RejectionReason = vd.Reason
	}
	r.Status = to
	return true, nil
}

// memInspections is an in-memory InspectionRequestRepository
type memInspections struct {
	mu    sync.Mutex
	items map[int64]*entity.InspectionRequest
}

func newMemInspections() *memInspections {
	return &memInspections{items: make(map[int64]*entity.InspectionRequest)}
}

func (m *memInspections) Create(_ context.Context, req *entity.InspectionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID == 0 {
		req.ID = int64(len(m.items) + 1)
	}
	cp := *req
	m.items[req.ID] = &cp
	return nil
}

func (m *memInspections) GetByID(_ context.Context, id int64) (*entity.InspectionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memInspections) SetStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return port.ErrNotFound
	}
	r.Status = status
	return nil
}

// memNotifier records sent notifications
type memNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

type sentNotification struct {
	Recipient string
	Template  string
	Data      map[string]interface{}
}

func (n *memNotifier) Send(_ context.Context, recipient, template string, data map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Recipient: recipient, Template: template, Data: data})
	return nil
}

func (n *memNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentNotification, len(n.sent))
	copy(out, n.sent)
	return out
}
