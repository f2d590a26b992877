package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/activity-point/api-go/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Publisher delivers a batch of events; the batch succeeds or fails as a
// whole.
type Publisher interface {
	Publish(ctx context.Context, events []models.OutboxEvent) error
}

// Dispatcher drains the outbox table and delivers events through a Publisher.
type Dispatcher struct {
	db               *gorm.DB
	publisher        Publisher
	log              *zap.Logger
	pollInterval     time.Duration
	batchSize        int
	claimTTL         time.Duration
	shutdownComplete chan struct{}
}

func NewDispatcher(db *gorm.DB, publisher Publisher, log *zap.Logger, pollInterval time.Duration, batchSize int) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{
		db:               db,
		publisher:        publisher,
		log:              log.Named("outbox"),
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		claimTTL:         time.Minute,
		shutdownComplete: make(chan struct{}),
	}
}

// Start runs the polling loop until ctx is cancelled. It should be called in
// a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if _, err := d.ProcessBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("dispatch failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Start has returned.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// ProcessBatch claims up to batchSize events, publishes them and marks them
// published. It returns the number of events delivered.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	start := time.Now()

	events, err := d.claim(ctx)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	ids := eventIDs(events)
	if err := d.publisher.Publish(ctx, events); err != nil {
		failedCounter.Add(float64(len(events)))
		if releaseErr := d.release(ctx, ids, err); releaseErr != nil {
			return 0, releaseErr
		}
		return 0, fmt.Errorf("publish %d events: %w", len(events), err)
	}

	deliveredCounter.Add(float64(len(events)))
	if err := d.markPublished(ctx, ids); err != nil {
		return 0, err
	}
	d.log.Debug("batch delivered", zap.Int("events", len(events)))
	return len(events), nil
}

func (d *Dispatcher) claim(ctx context.Context) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	now := time.Now().UTC()

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("published_at IS NULL").
			Where("(claimed_at IS NULL OR claimed_at < ?)", now.Add(-d.claimTTL)).
			Order("created_at").
			Limit(d.batchSize).
			Find(&events).Error
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		return tx.Model(&models.OutboxEvent{}).
			Where("id IN ?", eventIDs(events)).
			Update("claimed_at", now).Error
	})
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	return events, nil
}

func (d *Dispatcher) markPublished(ctx context.Context, ids []string) error {
	err := d.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id IN ?", ids).
		Update("published_at", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("mark outbox events published: %w", err)
	}
	return nil
}

// release makes the events claimable again and records the failure.
func (d *Dispatcher) release(ctx context.Context, ids []string, cause error) error {
	err := d.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"claimed_at": nil,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause.Error(),
		}).Error
	if err != nil {
		return fmt.Errorf("release outbox events: %w", err)
	}
	return nil
}

func eventIDs(events []models.OutboxEvent) []string {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	return ids
}
