package models

// Setting is a mutable configuration row (feature flags, SMTP config,
// cache tuning). Services read settings per call through the cache layer
// rather than once at startup.
type Setting struct {
	BaseModel
	Key         string                 `json:"key" gorm:"type:varchar(100);uniqueIndex;not null"`
	Value       map[string]interface{} `json:"value" gorm:"type:jsonb;serializer:json;not null"`
	Description string                 `json:"description" gorm:"type:text;not null;default:''"`
}

func (Setting) TableName() string {
	return "settings"
}
