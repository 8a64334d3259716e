package models

import "time"

// Message is a direct message between two users.
type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SenderID    uint      `gorm:"index:idx_msg_pair;not null" json:"sender_id"`
	Sender      *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	RecipientID uint      `gorm:"index:idx_msg_pair;not null" json:"recipient_id"`
	Recipient   *User     `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	Read        bool      `gorm:"column:is_read;default:false" json:"read"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (Message) TableName() string { return "messages" }
