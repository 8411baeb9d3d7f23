package models

import "github.com/google/uuid"

type MindmapVisibility string

const (
	VisibilityPrivate MindmapVisibility = "PRIVATE"
	VisibilityPublic  MindmapVisibility = "PUBLIC"
	VisibilityShared  MindmapVisibility = "SHARED"
)

// Mindmap is a graph-structured document. The node/edge graph in Data is
// opaque to the backend; only the editor interprets it.
type Mindmap struct {
	BaseModel
	Title       string                 `json:"title" gorm:"type:varchar(255);not null"`
	Description *string                `json:"description,omitempty" gorm:"type:text"`
	Data        map[string]interface{} `json:"data" gorm:"type:jsonb;serializer:json;not null"`
	Thumbnail   *string                `json:"thumbnail,omitempty" gorm:"type:text"`
	Visibility  MindmapVisibility      `json:"visibility" gorm:"type:varchar(20);not null;default:'PRIVATE';index"`
	IsFavorite  bool                   `json:"isFavorite" gorm:"not null;default:false"`
	IsArchived  bool                   `json:"isArchived" gorm:"not null;default:false;index"`
	ShareToken  *string                `json:"shareToken,omitempty" gorm:"type:varchar(64);uniqueIndex"`
	OwnerID     uuid.UUID              `json:"ownerID" gorm:"type:uuid;not null;index"`

	Owner  User           `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Shares []MindmapShare `json:"shares,omitempty" gorm:"foreignKey:MindmapID;constraint:OnDelete:CASCADE"`
}

func (Mindmap) TableName() string {
	return "mindmaps"
}
