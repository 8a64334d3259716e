package models

import "time"

// Follow records that one user follows another.
type Follow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"uniqueIndex:idx_follow_pair;not null" json:"follower_id"`
	Follower    *User     `gorm:"foreignKey:FollowerID" json:"follower,omitempty"`
	FollowingID uint      `gorm:"uniqueIndex:idx_follow_pair;not null" json:"following_id"`
	Following   *User     `gorm:"foreignKey:FollowingID" json:"following,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Follow) TableName() string { return "follows" }
