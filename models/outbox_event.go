package models

import "time"

type OutboxEvent struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
	EventType   string     `gorm:"not null;type:varchar(60)" json:"eventType"`
	AggregateID string     `gorm:"not null;type:varchar(60)" json:"aggregateId"`
	Payload     string     `gorm:"not null;type:text" json:"payload"`
	ClaimedAt   *time.Time `json:"claimedAt,omitempty"`
	PublishedAt *time.Time `gorm:"index" json:"publishedAt,omitempty"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"lastError,omitempty"`
}
