package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GrantWorker retries achievement grants that could not be applied right
// after their transaction committed.
type GrantWorker struct {
	guard     *GrantGuard
	log       *zap.Logger
	interval  time.Duration
	batchSize int
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewGrantWorker(guard *GrantGuard, logger *zap.Logger, interval time.Duration) *GrantWorker {
	return &GrantWorker{
		guard:     guard,
		log:       logger.Named("grant_worker"),
		interval:  interval,
		batchSize: 100,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background retry loop.
func (w *GrantWorker) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("grant retry worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *GrantWorker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("grant retry worker stopped")
}

func (w *GrantWorker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.retry()
		}
	}
}

func (w *GrantWorker) retry() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	applied, failed, err := w.RunOnce(ctx)
	if err != nil {
		w.log.Error("failed to list pending grants", zap.Error(err))
		return
	}
	if applied > 0 || failed > 0 {
		w.log.Info("pending grants retried", zap.Int("applied", applied), zap.Int("failed", failed))
	}
}

// RunOnce processes one batch of due grants.
func (w *GrantWorker) RunOnce(ctx context.Context) (applied, failed int, err error) {
	ids, err := w.guard.duePending(ctx, w.batchSize)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		if err := w.guard.processPending(ctx, id); err != nil {
			failed++
			w.log.Warn("pending grant failed", zap.Uint("pending_id", id), zap.Error(err))
			continue
		}
		applied++
	}
	return applied, failed, nil
}
