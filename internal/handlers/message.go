package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/innovasus/innovasus/internal/middleware"
	"github.com/innovasus/innovasus/internal/services"
	"github.com/innovasus/innovasus/pkg/response"
	"gorm.io/gorm"
)

type MessageHandler struct {
	messageService *services.MessageService
}

func NewMessageHandler(db *gorm.DB) *MessageHandler {
	return &MessageHandler{
		messageService: services.NewMessageService(db),
	}
}

// Send delivers a direct message
// POST /api/messages
func (h *MessageHandler) Send(c *gin.Context) {
	var req services.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.messageService.Send(middleware.GetUserID(c), &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSelfMessage), errors.Is(err, services.ErrEmptyMessage):
			response.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrRecipientMissing):
			response.NotFound(c, "recipient not found")
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Created(c, msg)
}

// Conversations lists the caller's conversations, most recent first
// GET /api/messages/conversations
func (h *MessageHandler) Conversations(c *gin.Context) {
	conversations, err := h.messageService.Conversations(middleware.GetUserID(c))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, conversations)
}

// Thread returns the exchange with one partner and marks it read
// GET /api/messages/thread/:partner_id
func (h *MessageHandler) Thread(c *gin.Context) {
	partnerID, err := strconv.ParseUint(c.Param("partner_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid partner id")
		return
	}

	messages, err := h.messageService.Thread(middleware.GetUserID(c), uint(partnerID))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, messages)
}

// UnreadCount returns the caller's unread message count
// GET /api/messages/unread
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.messageService.UnreadCount(middleware.GetUserID(c))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"unread": count})
}
