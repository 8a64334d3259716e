package models

import "time"

// AccessGrant records that a user may view a specific paid content item.
// At most one row exists per (user, content) pair; revocation keeps the row
// with HasAccess=false so history is preservable.
type AccessGrant struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UserID      uint        `gorm:"uniqueIndex:idx_grant_user_content;not null" json:"user_id"`
	ContentType ContentType `gorm:"uniqueIndex:idx_grant_user_content;size:10;not null" json:"content_type"`
	ContentID   uint        `gorm:"uniqueIndex:idx_grant_user_content;not null" json:"content_id"`
	HasAccess   bool        `gorm:"default:true" json:"has_access"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (AccessGrant) TableName() string { return "access_grants" }
