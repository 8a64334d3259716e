package services

import (
	"errors"

	"github.com/innovasus/innovasus/internal/models"
	"gorm.io/gorm"
)

var (
	ErrSelfMessage      = errors.New("cannot message yourself")
	ErrRecipientMissing = errors.New("recipient not found")
	ErrEmptyMessage     = errors.New("message body is empty")
)

type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

type SendMessageRequest struct {
	RecipientID uint   `json:"recipient_id" binding:"required"`
	Body        string `json:"body" binding:"required,max=5000"`
}

func (s *MessageService) Send(senderID uint, req *SendMessageRequest) (*models.Message, error) {
	if req.RecipientID == senderID {
		return nil, ErrSelfMessage
	}
	if req.Body == "" {
		return nil, ErrEmptyMessage
	}

	var count int64
	s.db.Model(&models.User{}).Where("id = ? AND is_active = ?", req.RecipientID, true).Count(&count)
	if count == 0 {
		return nil, ErrRecipientMissing
	}

	msg := models.Message{
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Body:        req.Body,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// Conversation summarizes the exchange with one partner.
type Conversation struct {
	Partner     models.User    `json:"partner"`
	LastMessage models.Message `json:"last_message"`
	Unread      int64          `json:"unread"`
}

// Conversations lists every partner the user has exchanged messages with,
// most recent exchange first.
func (s *MessageService) Conversations(userID uint) ([]Conversation, error) {
	var messages []models.Message
	if err := s.db.Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at DESC").Find(&messages).Error; err != nil {
		return nil, err
	}

	seen := make(map[uint]bool)
	var conversations []Conversation
	for _, msg := range messages {
		partnerID := msg.SenderID
		if partnerID == userID {
			partnerID = msg.RecipientID
		}
		if seen[partnerID] {
			continue
		}
		seen[partnerID] = true

		var partner models.User
		if err := s.db.First(&partner, partnerID).Error; err != nil {
			continue
		}

		var unread int64
		s.db.Model(&models.Message{}).
			Where("sender_id = ? AND recipient_id = ? AND is_read = ?", partnerID, userID, false).
			Count(&unread)

		conversations = append(conversations, Conversation{
			Partner:     partner,
			LastMessage: msg,
			Unread:      unread,
		})
	}

	return conversations, nil
}

// Thread returns the full exchange between two users, oldest first, and
// marks the partner's messages as read.
func (s *MessageService) Thread(userID, partnerID uint) ([]models.Message, error) {
	var messages []models.Message
	if err := s.db.Where(
		"(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
		userID, partnerID, partnerID, userID).
		Order("created_at ASC").Find(&messages).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&models.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND is_read = ?", partnerID, userID, false).
		Update("is_read", true).Error; err != nil {
		return nil, err
	}

	return messages, nil
}

// UnreadCount returns the number of unread messages across all partners.
func (s *MessageService) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
