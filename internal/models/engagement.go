package models

import "time"

// PostLike records that a user liked a media post. One row per
// (post, user) pair; liking again removes the row.
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"uniqueIndex:idx_like_pair;not null" json:"post_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_like_pair;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (PostLike) TableName() string { return "post_likes" }

// PostComment is a comment left on a media post.
type PostComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func (PostComment) TableName() string { return "post_comments" }
