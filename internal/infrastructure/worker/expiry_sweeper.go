package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/buildflow/procurement/internal/application/service"
)

// ExpirySweeper periodically moves awaiting-upload receipts with a dead
// token to expired. It is a safety net behind lazy expiry on read: either
// path may win, the conditional update keeps them from colliding.
type ExpirySweeper struct {
	receipts *service.ReceiptService
	logger   *zap.Logger

	interval  time.Duration
	batchSize int

	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// SweeperOption configures the sweeper
type SweeperOption func(*ExpirySweeper)

// WithInterval overrides the sweep interval
func WithInterval(d time.Duration) SweeperOption {
	return func(s *ExpirySweeper) {
		s.interval = d
	}
}

// WithBatchSize overrides how many receipts one sweep handles
func WithBatchSize(n int) SweeperOption {
	return func(s *ExpirySweeper) {
		s.batchSize = n
	}
}

// NewExpirySweeper creates a sweeper over the receipt service
func NewExpirySweeper(receipts *service.ReceiptService, logger *zap.Logger, opts ...SweeperOption) *ExpirySweeper {
	s := &ExpirySweeper{
		receipts:  receipts,
		logger:    logger,
		interval:  5 * time.Minute,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the sweep loop
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("expiry sweeper is already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.isRunning = true

	s.logger.Info("ExpirySweeper started",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize))

	go s.loop()
	return nil
}

// Stop halts the sweep loop
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}

	s.logger.Info("ExpirySweeper stopped")
}

// Name returns the worker name for identification
func (s *ExpirySweeper) Name() string {
	return "ExpirySweeper"
}

func (s *ExpirySweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Sweep immediately on start
	s.sweep()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	n, err := s.receipts.ExpireStale(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("Sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Expired stale upload links", zap.Int("count", n))
	}
}
