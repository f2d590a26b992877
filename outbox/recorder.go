// Package outbox persists domain events in the caller's transaction and
// delivers them to Kafka.
package outbox

import (
	"encoding/json"
	"fmt"

	"github.com/activity-point/api-go/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EventActivityCreated    = "activity.created"
	EventPresenceConfirmed  = "presence.confirmed"
	EventActivityCompleted  = "activity.completed"
	EventAchievementGranted = "achievement.granted"
	EventUserLeveledUp      = "user.leveled_up"
)

// Recorder writes outbox rows. A disabled recorder drops events so that
// deployments without a broker do not accumulate rows.
type Recorder struct {
	enabled bool
}

func NewRecorder(enabled bool) *Recorder {
	return &Recorder{enabled: enabled}
}

// Record must be called with the transaction that carries the state change.
func (r *Recorder) Record(tx *gorm.DB, eventType, aggregateID string, payload interface{}) error {
	if r == nil || !r.enabled {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}

	event := models.OutboxEvent{
		ID:          uuid.NewString(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     string(data),
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("record %s: %w", eventType, err)
	}
	return nil
}
