package services

import (
	"errors"
	"testing"

	"github.com/innovasus/innovasus/internal/models"
	"gorm.io/gorm"
)

func newMessageTestService(t *testing.T) (*MessageService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	if err := db.AutoMigrate(&models.Message{}); err != nil {
		t.Fatalf("failed to migrate messages: %v", err)
	}
	return NewMessageService(db), db
}

func TestSendMessage_Validation(t *testing.T) {
	svc, db := newMessageTestService(t)
	ana := seedUser(t, db, "ana@example.com", "user")
	bia := seedUser(t, db, "bia@example.com", "user")
	db.Model(&models.User{}).Where("id = ?", bia.ID).Update("is_active", false)

	if _, err := svc.Send(ana.ID, &SendMessageRequest{RecipientID: ana.ID, Body: "hi"}); !errors.Is(err, ErrSelfMessage) {
		t.Errorf("self message: err = %v, expected ErrSelfMessage", err)
	}
	if _, err := svc.Send(ana.ID, &SendMessageRequest{RecipientID: 9999, Body: "hi"}); !errors.Is(err, ErrRecipientMissing) {
		t.Errorf("unknown recipient: err = %v, expected ErrRecipientMissing", err)
	}
	// Disabled accounts cannot be messaged.
	if _, err := svc.Send(ana.ID, &SendMessageRequest{RecipientID: bia.ID, Body: "hi"}); !errors.Is(err, ErrRecipientMissing) {
		t.Errorf("disabled recipient: err = %v, expected ErrRecipientMissing", err)
	}
	if _, err := svc.Send(ana.ID, &SendMessageRequest{RecipientID: bia.ID, Body: ""}); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty body: err = %v, expected ErrEmptyMessage", err)
	}
}

func TestMessageThread(t *testing.T) {
	svc, db := newMessageTestService(t)
	ana := seedUser(t, db, "ana@example.com", "user")
	bia := seedUser(t, db, "bia@example.com", "user")

	if _, err := svc.Send(ana.ID, &SendMessageRequest{RecipientID: bia.ID, Body: "hello"}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if _, err := svc.Send(bia.ID, &SendMessageRequest{RecipientID: ana.ID, Body: "hi back"}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if _, err := svc.Send(ana.ID, &SendMessageRequest{RecipientID: bia.ID, Body: "how are you"}); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	unread, err := svc.UnreadCount(bia.ID)
	if err != nil {
		t.Fatalf("UnreadCount error: %v", err)
	}
	if unread != 2 {
		t.Errorf("bia unread = %d, expected 2", unread)
	}

	thread, err := svc.Thread(bia.ID, ana.ID)
	if err != nil {
		t.Fatalf("Thread error: %v", err)
	}
	if len(thread) != 3 {
		t.Fatalf("thread length = %d, expected 3", len(thread))
	}
	if thread[0].Body != "hello" || thread[2].Body != "how are you" {
		t.Errorf("thread not in chronological order: %q ... %q", thread[0].Body, thread[2].Body)
	}

	// Opening the thread marks ana's messages as read.
	unread, _ = svc.UnreadCount(bia.ID)
	if unread != 0 {
		t.Errorf("bia unread after reading thread = %d, expected 0", unread)
	}
	// Ana's own unread count is untouched.
	unread, _ = svc.UnreadCount(ana.ID)
	if unread != 1 {
		t.Errorf("ana unread = %d, expected 1", unread)
	}
}

func TestConversations(t *testing.T) {
	svc, db := newMessageTestService(t)
	ana := seedUser(t, db, "ana@example.com", "user")
	bia := seedUser(t, db, "bia@example.com", "user")
	caio := seedUser(t, db, "caio@example.com", "user")

	if _, err := svc.Send(ana.ID, &SendMessageRequest{RecipientID: bia.ID, Body: "to bia"}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if _, err := svc.Send(caio.ID, &SendMessageRequest{RecipientID: ana.ID, Body: "from caio"}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if _, err := svc.Send(caio.ID, &SendMessageRequest{RecipientID: ana.ID, Body: "again"}); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	conversations, err := svc.Conversations(ana.ID)
	if err != nil {
		t.Fatalf("Conversations error: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("conversations = %d, expected 2", len(conversations))
	}

	byPartner := make(map[uint]Conversation)
	for _, conv := range conversations {
		byPartner[conv.Partner.ID] = conv
	}

	if conv, ok := byPartner[caio.ID]; !ok {
		t.Error("conversation with caio missing")
	} else {
		if conv.Unread != 2 {
			t.Errorf("caio conversation unread = %d, expected 2", conv.Unread)
		}
		if conv.LastMessage.Body != "again" {
			t.Errorf("caio last message = %q, expected %q", conv.LastMessage.Body, "again")
		}
	}
	if conv, ok := byPartner[bia.ID]; !ok {
		t.Error("conversation with bia missing")
	} else if conv.Unread != 0 {
		t.Errorf("bia conversation unread = %d, expected 0", conv.Unread)
	}
}
