package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Activity struct {
	ID               uint                  `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
	DeletedAt        gorm.DeletedAt        `gorm:"index" json:"-"`
	Title            string                `gorm:"not null;type:varchar(120)" json:"title"`
	Description      string                `gorm:"not null;type:text" json:"description"`
	TypeID           uint                  `gorm:"not null;index" json:"typeId"`
	Type             *ActivityType         `gorm:"foreignKey:TypeID" json:"type,omitempty"`
	CreatorID        uint                  `gorm:"not null;index" json:"creatorId"`
	Creator          *User                 `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	ConfirmationCode string                `gorm:"not null;type:varchar(16)" json:"confirmationCode,omitempty"`
	Image            string                `json:"image"`
	Private          bool                  `gorm:"not null;default:false" json:"private"`
	ScheduledDate    time.Time             `gorm:"not null;index" json:"scheduledDate"`
	CompletedAt      *time.Time            `json:"completedAt"`
	Latitude         float64               `gorm:"not null;type:decimal(10,8)" json:"latitude"`
	Longitude        float64               `gorm:"not null;type:decimal(11,8)" json:"longitude"`
	Tags             pq.StringArray        `gorm:"type:text[]" json:"tags"`
	Participants     []ActivityParticipant `gorm:"foreignKey:ActivityID" json:"participants,omitempty"`
}

type ActivityType struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"uniqueIndex;not null;type:varchar(60)" json:"name"`
	Description string `json:"description"`
}
