package models

import "github.com/google/uuid"

// MindmapShare grants one user view (and optionally edit) access to one
// mindmap. The grantee is never the owner.
type MindmapShare struct {
	BaseModel
	MindmapID uuid.UUID `json:"mindmapID" gorm:"type:uuid;not null;index;uniqueIndex:idx_mindmap_user"`
	UserID    uuid.UUID `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_mindmap_user"`
	CanEdit   bool      `json:"canEdit" gorm:"not null;default:false"`

	Mindmap Mindmap `json:"-" gorm:"foreignKey:MindmapID;references:ID"`
	User    User    `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
}

func (MindmapShare) TableName() string {
	return "mindmap_shares"
}
