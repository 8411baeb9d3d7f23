package models

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "ADMIN"
	UserRoleUser  UserRole = "USER"
)

type User struct {
	BaseModel
	Email        string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string     `json:"-" gorm:"type:text;not null"`
	FirstName    string     `json:"firstName" gorm:"type:varchar(100);not null"`
	LastName     string     `json:"lastName" gorm:"type:varchar(100);not null"`
	Avatar       *string    `json:"avatar,omitempty" gorm:"type:text"`
	Role         UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'USER'"`
	IsActive     bool       `json:"isActive" gorm:"not null;default:true"`
	IsVerified   bool       `json:"isVerified" gorm:"not null;default:false"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`

	Mindmaps []Mindmap      `json:"-" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Shares   []MindmapShare `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// DisplayName is what anonymous share-link viewers see instead of the
// owner's email.
func (u *User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

// PublicProfile is the reduced owner representation attached to public
// and share-token responses.
type PublicProfile struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
}

func (u *User) PublicProfile() PublicProfile {
	return PublicProfile{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
}
