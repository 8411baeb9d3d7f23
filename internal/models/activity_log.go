package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLog is an append-only audit record. It does not use BaseModel
// because rows are never updated.
type ActivityLog struct {
	ID        uuid.UUID              `json:"id" gorm:"type:uuid;primaryKey"`
	Action    string                 `json:"action" gorm:"type:varchar(50);not null;index"`
	Entity    string                 `json:"entity" gorm:"type:varchar(30);not null;index"`
	EntityID  *uuid.UUID             `json:"entityID,omitempty" gorm:"type:uuid;index"`
	UserID    *uuid.UUID             `json:"userID,omitempty" gorm:"type:uuid;index"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" gorm:"type:jsonb;serializer:json"`
	IPAddress string                 `json:"ipAddress" gorm:"type:varchar(45);not null;default:''"`
	UserAgent string                 `json:"userAgent" gorm:"type:text;not null;default:''"`
	CreatedAt time.Time              `json:"createdAt" gorm:"not null;index"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
}

func (a *ActivityLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}
