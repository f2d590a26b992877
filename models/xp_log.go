package models

import "time"

// XPLog is the audit trail of every accrual applied to a user.
type XPLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	UserID     uint      `gorm:"not null;index" json:"userId"`
	ActivityID *uint     `gorm:"index" json:"activityId,omitempty"`
	Action     string    `gorm:"not null;type:varchar(50)" json:"action"` // "create_activity", "confirm_presence", etc.
	Points     int       `gorm:"not null;default:0" json:"points"`
	XPAfter    int64     `gorm:"column:xp_after;not null" json:"xpAfter"`
}
