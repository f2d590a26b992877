package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt    `gorm:"index" json:"-"`
	Name         string            `gorm:"not null" json:"name"`
	Email        string            `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	Password     string            `gorm:"not null" json:"-"` // Don't expose password in JSON
	Avatar       string            `json:"avatar"`
	XP           int64             `gorm:"column:xp;not null;default:0" json:"xp"`
	Level        int               `gorm:"not null;default:1" json:"level"`
	Achievements []UserAchievement `gorm:"foreignKey:UserID" json:"achievements,omitempty"`
	Preferences  []Preference      `gorm:"foreignKey:UserID" json:"preferences,omitempty"`
}
