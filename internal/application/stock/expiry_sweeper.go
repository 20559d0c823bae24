package stock

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/stock"
)

// ExpirySweeper periodically flags expired batches across the whole ledger
// so they stop appearing in availability even when nobody touches the
// product. Selection paths mark expiry on their own; the sweeper only keeps
// idle stock honest.
type ExpirySweeper struct {
	batchRepo stock.BatchRepository
	interval  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewExpirySweeper creates a sweeper that runs every interval
func NewExpirySweeper(batchRepo stock.BatchRepository, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpirySweeper{
		batchRepo: batchRepo,
		interval:  interval,
		logger:    logger.Named("expiry_sweeper"),
	}
}

// Start launches the background sweep loop. It runs one sweep immediately
// and then on every tick until Stop is called.
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(runCtx)
	s.logger.Info("expiry sweeper started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish
func (s *ExpirySweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ExpirySweeper) loop(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	count, err := s.batchRepo.MarkAllExpired(ctx, time.Now())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		s.logger.Info("expiry sweep flagged batches", zap.Int64("count", count))
	}
}
