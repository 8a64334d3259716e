package models

import (
	"time"

	"gorm.io/gorm"
)

// UserType distinguishes readers from content-publishing innovators.
type UserType string

const (
	UserTypeReader    UserType = "reader"
	UserTypeInnovator UserType = "innovator"
)

// User represents a platform user. Email is the login identifier.
type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Email          string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password       string         `gorm:"size:255" json:"-"` // bcrypt hash
	Fullname       string         `gorm:"size:100;not null" json:"fullname"`
	UserType       UserType       `gorm:"size:20;default:reader" json:"user_type"`
	Role           string         `gorm:"size:50;default:user" json:"role"` // admin, user
	Institution    string         `gorm:"size:200" json:"institution"`
	ResearchArea   string         `gorm:"size:100" json:"research_area"`
	ProfilePicture string         `gorm:"size:500" json:"profile_picture"` // storage key
	EmailVerified  bool           `gorm:"default:false" json:"email_verified"`
	VerifyToken    string         `gorm:"size:64;index" json:"-"` // sha256 of the emailed token
	VerifyExpires  *time.Time     `json:"-"`
	IsActive       bool           `gorm:"default:true" json:"is_active"`
	LastLogin      *time.Time     `json:"last_login"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

// IsInnovator reports whether the user may publish content.
func (u *User) IsInnovator() bool {
	return u.UserType == UserTypeInnovator
}
