package models

import "time"

type Preference struct {
	ID        uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time     `json:"createdAt"`
	UserID    uint          `gorm:"not null;uniqueIndex:idx_user_preference" json:"userId"`
	TypeID    uint          `gorm:"not null;uniqueIndex:idx_user_preference" json:"typeId"`
	Type      *ActivityType `gorm:"foreignKey:TypeID" json:"type,omitempty"`
}
