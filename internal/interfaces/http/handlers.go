package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/buildflow/procurement/internal/application/port"
	"github.com/buildflow/procurement/internal/application/service"
	"github.com/buildflow/procurement/internal/application/token"
	appwf "github.com/buildflow/procurement/internal/application/workflow"
	"github.com/buildflow/procurement/internal/domain/entity"
	"github.com/buildflow/procurement/internal/domain/workflow"
)

// OrderService is the purchase-order surface the handlers depend on
type OrderService interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (*entity.PurchaseOrder, error)
	Get(ctx context.Context, id int64) (*entity.PurchaseOrder, error)
	List(ctx context.Context, status string, limit, offset int) ([]*entity.PurchaseOrder, error)
	ReplaceItems(ctx context.Context, id int64, items []entity.LineItem) (*entity.PurchaseOrder, error)
	ChangeStatus(ctx context.Context, id int64, target string, actor appwf.Actor, note string) (*entity.PurchaseOrder, error)
	History(ctx context.Context, id int64) ([]*entity.TransitionRecord, error)
}

// WarrantyService is the warranty read surface the handlers depend on
type WarrantyService interface {
	Get(ctx context.Context, id int64) (*entity.Warranty, error)
	History(ctx context.Context, id int64) ([]*entity.TransitionRecord, error)
}

// ClaimService is the warranty-claim surface the handlers depend on
type ClaimService interface {
	File(ctx context.Context, req service.FileClaimRequest) (*entity.WarrantyClaim, error)
	Get(ctx context.Context, id int64) (*entity.WarrantyClaim, error)
	ListByWarranty(ctx context.Context, warrantyID int64) ([]*entity.WarrantyClaim, error)
	Decide(ctx context.Context, id int64, target string, actor appwf.Actor, note string) (*entity.WarrantyClaim, error)
}

// ReceiptService is the payment-receipt surface the handlers depend on
type ReceiptService interface {
	Create(ctx context.Context, req service.CreateReceiptRequest) (*entity.PaymentReceipt, error)
	Get(ctx context.Context, id int64) (*entity.PaymentReceipt, error)
	Upload(ctx context.Context, tok string, req service.UploadRequest) (*entity.PaymentReceipt, error)
	Review(ctx context.Context, id int64, decision string, actor appwf.Actor, remarks, reason string) (*entity.PaymentReceipt, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	orders     OrderService
	warranties WarrantyService
	claims     ClaimService
	receipts   ReceiptService
	logger     Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	orders OrderService,
	warranties WarrantyService,
	claims ClaimService,
	receipts ReceiptService,
	logger Logger,
) *Handlers {
	return &Handlers{
		orders:     orders,
		warranties: warranties,
		claims:     claims,
		receipts:   receipts,
		logger:     logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ChangeStatusRequest carries a target-status request body
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// ReplaceItemsRequest carries the new line items for a draft order
type ReplaceItemsRequest struct {
	Items []entity.LineItem `json:"items" binding:"required"`
}

// VerifyReceiptRequest carries the finance decision on an uploaded receipt
type VerifyReceiptRequest struct {
	Status          string `json:"status" binding:"required"`
	FinanceRemarks  string `json:"financeRemarks"`
	RejectionReason string `json:"rejectionReason"`
}

// CreatedReceiptResponse returns the new receipt together with the upload
// token. This is the only API response that ever carries the token.
type CreatedReceiptResponse struct {
	Receipt     *entity.PaymentReceipt `json:"receipt"`
	UploadToken string                 `json:"upload_token"`
}

// respondError maps domain errors onto HTTP status codes
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, port.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, workflow.ErrRoleDenied):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, appwf.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, workflow.ErrIllegalTransition),
		errors.Is(err, workflow.ErrInvalidState),
		errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrClaimWindowClosed),
		errors.Is(err, entity.ErrInvalidLineItem),
		errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, token.ErrTokenUsed),
		errors.Is(err, token.ErrTokenExpired),
		errors.Is(err, token.ErrTooManyAttempts):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		h.logger.Error("Request failed", "error", err)
	}

	c.JSON(status, Response{Success: false, Error: msg})
}

func (h *Handlers) respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// pathID parses a numeric path parameter, responding 400 on garbage
func (h *Handlers) pathID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid " + name,
		})
		return 0, false
	}
	return id, true
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	h.respondOK(c, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// CreateOrder handles POST /api/purchase-orders
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	if req.RequesterRef == "" {
		req.RequesterRef = actorFromContext(c).ID
	}

	order, err := h.orders.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: order})
}

// ListOrders handles GET /api/purchase-orders
func (h *Handlers) ListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := h.orders.List(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, orders)
}

// GetOrder handles GET /api/purchase-orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, order)
}

// ChangeOrderStatus handles PUT /api/purchase-orders/:id. The body names
// the target status; legality and role checks happen in the workflow.
func (h *Handlers) ChangeOrderStatus(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "status is required"})
		return
	}

	order, err := h.orders.ChangeStatus(c.Request.Context(), id, req.Status, actorFromContext(c), req.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, order)
}

// ReplaceOrderItems handles PUT /api/purchase-orders/:id/items
func (h *Handlers) ReplaceOrderItems(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ReplaceItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "items are required"})
		return
	}

	order, err := h.orders.ReplaceItems(c.Request.Context(), id, req.Items)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, order)
}

// OrderHistory handles GET /api/purchase-orders/:id/history
func (h *Handlers) OrderHistory(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	records, err := h.orders.History(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, records)
}

// GetWarranty handles GET /api/warranties/:id
func (h *Handlers) GetWarranty(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	warranty, err := h.warranties.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, warranty)
}

// ListWarrantyClaims handles GET /api/warranties/:id/claims
func (h *Handlers) ListWarrantyClaims(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	claims, err := h.claims.ListByWarranty(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, claims)
}

// WarrantyHistory handles GET /api/warranties/:id/history
func (h *Handlers) WarrantyHistory(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	records, err := h.warranties.History(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, records)
}

// FileClaim handles POST /api/warranty-claims
func (h *Handlers) FileClaim(c *gin.Context) {
	var req service.FileClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	if req.ClientRef == "" {
		req.ClientRef = actorFromContext(c).ID
	}

	claim, err := h.claims.File(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: claim})
}

// GetClaim handles GET /api/warranty-claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	claim, err := h.claims.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, claim)
}

// DecideClaim handles POST /api/warranty-claims/:id/decision
func (h *Handlers) DecideClaim(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "status is required"})
		return
	}

	claim, err := h.claims.Decide(c.Request.Context(), id, req.Status, actorFromContext(c), req.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, claim)
}

// CreateReceipt handles POST /api/payment-receipts
func (h *Handlers) CreateReceipt(c *gin.Context) {
	var req service.CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	receipt, err := h.receipts.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data: CreatedReceiptResponse{
			Receipt:     receipt,
			UploadToken: receipt.UploadToken,
		},
	})
}

// GetReceipt handles GET /api/payment-receipts/:id
func (h *Handlers) GetReceipt(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	receipt, err := h.receipts.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, receipt)
}

// UploadReceipt handles POST /payment-receipt/upload/:token. Anonymous:
// the one-time token is the credential.
func (h *Handlers) UploadReceipt(c *gin.Context) {
	tok := c.Param("token")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "a file part named 'file' is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer file.Close()

	receipt, err := h.receipts.Upload(c.Request.Context(), tok, service.UploadRequest{
		FileName:  fileHeader.Filename,
		Content:   file,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, receipt)
}

// VerifyReceipt handles PATCH /api/payment-receipt/verify/:receiptId
func (h *Handlers) VerifyReceipt(c *gin.Context) {
	id, ok := h.pathID(c, "receiptId")
	if !ok {
		return
	}
	var req VerifyReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "status is required"})
		return
	}

	receipt, err := h.receipts.Review(c.Request.Context(), id, req.Status, actorFromContext(c), req.FinanceRemarks, req.RejectionReason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, receipt)
}
