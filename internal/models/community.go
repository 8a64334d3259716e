package models

import "time"

// Community is a member-gated discussion group created by a user.
type Community struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatorID   uint      `gorm:"index;not null" json:"creator_id"`
	Creator     *User     `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	PictureKey  string    `gorm:"size:500" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Community) TableName() string { return "communities" }

// CommunityMember records membership; one row per (community, user).
type CommunityMember struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CommunityID uint      `gorm:"uniqueIndex:idx_community_member;not null" json:"community_id"`
	UserID      uint      `gorm:"uniqueIndex:idx_community_member;not null" json:"user_id"`
	User        *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (CommunityMember) TableName() string { return "community_members" }

// CommunityMessage is one entry in a community feed: text, a PDF
// attachment, or both.
type CommunityMessage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CommunityID uint      `gorm:"index;not null" json:"community_id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	User        *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Body        string    `gorm:"type:text" json:"body"`
	FileKey     string    `gorm:"size:500" json:"-"`
	Filename    string    `gorm:"size:255" json:"filename,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (CommunityMessage) TableName() string { return "community_messages" }

// HasFile reports whether the message carries an attachment.
func (m *CommunityMessage) HasFile() bool { return m.FileKey != "" }
