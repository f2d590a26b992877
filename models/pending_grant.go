package models

import "time"

// PendingGrant is an achievement grant queued inside an orchestrator
// transaction and applied after commit, or later by the retry worker.
type PendingGrant struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	UserID          uint       `gorm:"not null;index" json:"userId"`
	AchievementName string     `gorm:"not null;type:varchar(80)" json:"achievementName"`
	Attempts        int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt   time.Time  `gorm:"not null;index" json:"nextAttemptAt"`
	LastError       string     `gorm:"type:text" json:"lastError,omitempty"`
	DeadAt          *time.Time `gorm:"index" json:"deadAt,omitempty"`
}
