package expiration

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"coordy/internal/logging"
	"coordy/internal/repositories"
)

const (
	DefaultSweepInterval  = time.Hour
	DefaultSweepBatchSize = 100
)

// SweepStats reports one sweep over all clients with due charges.
type SweepStats struct {
	Clients        int
	Failed         int
	ExpiredPoints  int64
	DeductedPoints int64
}

// Scheduler periodically runs the processor for every client owning due
// charges.
type Scheduler struct {
	mu        sync.Mutex
	processor *Processor
	repo      repositories.LedgerRepository
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewScheduler(processor *Processor, repo repositories.LedgerRepository, interval time.Duration, batchSize int, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &Scheduler{
		processor: processor,
		repo:      repo,
		interval:  interval,
		batchSize: batchSize,
		logger:    logging.OrNop(logger).Named("expiration_scheduler"),
	}
}

// Start sweeps once immediately and then every interval until Stop or ctx
// cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("starting expiration scheduler", zap.Duration("interval", s.interval))

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runSweep(ctx)
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("stopping expiration scheduler")
				return
			case <-ticker.C:
				s.runSweep(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) runSweep(ctx context.Context) {
	stats, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("expiration sweep failed", zap.Error(err))
		return
	}
	if stats.Clients > 0 {
		s.logger.Info("expiration sweep finished",
			zap.Int("clients", stats.Clients),
			zap.Int("failed", stats.Failed),
			zap.Int64("expired_points", stats.ExpiredPoints),
			zap.Int64("deducted_points", stats.DeductedPoints))
	}
}

// Sweep processes all clients with due charges in batches. A failing
// client is logged and skipped for the rest of the sweep.
func (s *Scheduler) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	failed := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		limit := s.batchSize + len(failed)
		ids, err := s.repo.ClientsWithExpirableCharges(ctx, s.processor.now(), limit)
		if err != nil {
			return stats, err
		}

		progressed := false
		for _, id := range ids {
			if _, skip := failed[id]; skip {
				continue
			}
			result, err := s.processor.ProcessExpiredPoints(ctx, id)
			if err != nil {
				s.logger.Error("failed to expire points", zap.String("client_id", id), zap.Error(err))
				failed[id] = struct{}{}
				stats.Failed++
				continue
			}
			progressed = true
			stats.Clients++
			stats.ExpiredPoints += result.ExpiredPoints
			stats.DeductedPoints += result.DeductedPoints
		}

		if !progressed || len(ids) < limit {
			return stats, nil
		}
	}
}
