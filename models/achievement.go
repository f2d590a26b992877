package models

import "time"

type Achievement struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Name        string    `gorm:"uniqueIndex;not null;type:varchar(80)" json:"name"`
	Description string    `gorm:"not null" json:"description"`
	Criterion   string    `gorm:"not null;type:varchar(50)" json:"criterion"`
}

// UserAchievement is unique per (user, achievement); the index is the
// authority for grant-once semantics.
type UserAchievement struct {
	ID            uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint         `gorm:"not null;uniqueIndex:idx_user_achievement" json:"userId"`
	AchievementID uint         `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievementId"`
	Achievement   *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
	UnlockedAt    time.Time    `gorm:"not null" json:"unlockedAt"`
}
