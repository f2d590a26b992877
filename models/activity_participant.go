package models

import "time"

// ActivityParticipant links a user to an activity. ConfirmedAt is set at most
// once, by presence confirmation or check-in.
type ActivityParticipant struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ActivityID  uint       `gorm:"not null;uniqueIndex:idx_activity_participant" json:"activityId"`
	Activity    *Activity  `gorm:"foreignKey:ActivityID" json:"activity,omitempty"`
	UserID      uint       `gorm:"not null;uniqueIndex:idx_activity_participant;index" json:"userId"`
	User        *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Approved    bool       `gorm:"not null;default:false" json:"approved"`
	ConfirmedAt *time.Time `json:"confirmedAt"`
}
