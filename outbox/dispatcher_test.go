package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/activity-point/api-go/models"
	"github.com/activity-point/api-go/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubPublisher struct {
	batches [][]models.OutboxEvent
	err     error
}

func (p *stubPublisher) Publish(_ context.Context, events []models.OutboxEvent) error {
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, events)
	return nil
}

func recordEvents(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	recorder := NewRecorder(true)
	for i := 0; i < n; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			return recorder.Record(tx, EventActivityCreated, "activity:1", map[string]int{"seq": i})
		})
		require.NoError(t, err)
	}
}

func TestDisabledRecorderWritesNothing(t *testing.T) {
	db := testutil.OpenTestDB(t)

	require.NoError(t, NewRecorder(false).Record(db, EventActivityCreated, "activity:1", map[string]int{}))

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	db := testutil.OpenTestDB(t)
	recordEvents(t, db, 3)

	publisher := &stubPublisher{}
	d := NewDispatcher(db, publisher, zap.NewNop(), time.Second, 2)

	n, err := d.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = d.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = d.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	require.Len(t, publisher.batches, 2)
	assert.Contains(t, publisher.batches[0][0].Payload, `"seq"`)

	var pending int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("published_at IS NULL").Count(&pending).Error)
	assert.Zero(t, pending)
}

func TestProcessBatchReleasesOnFailure(t *testing.T) {
	db := testutil.OpenTestDB(t)
	recordEvents(t, db, 2)

	publisher := &stubPublisher{err: errors.New("broker down")}
	d := NewDispatcher(db, publisher, zap.NewNop(), time.Second, 10)

	_, err := d.ProcessBatch(context.Background())
	require.Error(t, err)

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Nil(t, ev.ClaimedAt)
		assert.Nil(t, ev.PublishedAt)
		assert.Equal(t, 1, ev.Attempts)
		assert.Equal(t, "broker down", ev.LastError)
	}

	publisher.err = nil
	n, err := d.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStartStopsOnCancel(t *testing.T) {
	db := testutil.OpenTestDB(t)
	recordEvents(t, db, 1)

	publisher := &stubPublisher{}
	d := NewDispatcher(db, publisher, zap.NewNop(), 10*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Start(ctx)
	require.Eventually(t, func() bool {
		var count int64
		db.Model(&models.OutboxEvent{}).Where("published_at IS NOT NULL").Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	d.Wait()
}
