package services

import (
	"errors"
	"testing"

	"github.com/innovasus/innovasus/internal/models"
	"gorm.io/gorm"
)

func newInteractionTestService(t *testing.T) (*InteractionService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	if err := db.AutoMigrate(&models.PostLike{}, &models.PostComment{}); err != nil {
		t.Fatalf("failed to migrate engagement tables: %v", err)
	}
	return NewInteractionService(db), db
}

func TestToggleLike(t *testing.T) {
	svc, db := newInteractionTestService(t)
	owner := seedUser(t, db, "owner@example.com", "user")
	reader := seedUser(t, db, "reader@example.com", "user")
	second := seedUser(t, db, "second@example.com", "user")
	post := seedMediaPost(t, db, owner.ID, models.PaymentFree)

	if _, err := svc.ToggleLike(reader.ID, 999); !errors.Is(err, ErrMediaMissing) {
		t.Errorf("like unknown post: err = %v, expected ErrMediaMissing", err)
	}

	result, err := svc.ToggleLike(reader.ID, post.ID)
	if err != nil {
		t.Fatalf("ToggleLike error: %v", err)
	}
	if !result.Liked || result.Count != 1 {
		t.Errorf("first toggle: liked = %v count = %d, expected true/1", result.Liked, result.Count)
	}

	result, err = svc.ToggleLike(second.ID, post.ID)
	if err != nil {
		t.Fatalf("ToggleLike second user error: %v", err)
	}
	if !result.Liked || result.Count != 2 {
		t.Errorf("second user toggle: liked = %v count = %d, expected true/2", result.Liked, result.Count)
	}

	var rows int64
	db.Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&rows)
	if rows != 2 {
		t.Errorf("expected 2 like rows, got %d", rows)
	}

	// Toggling again removes the like.
	result, err = svc.ToggleLike(reader.ID, post.ID)
	if err != nil {
		t.Fatalf("ToggleLike removal error: %v", err)
	}
	if result.Liked || result.Count != 1 {
		t.Errorf("removal toggle: liked = %v count = %d, expected false/1", result.Liked, result.Count)
	}

	count, err := svc.LikeCount(post.ID)
	if err != nil {
		t.Fatalf("LikeCount error: %v", err)
	}
	if count != 1 {
		t.Errorf("LikeCount = %d, expected 1", count)
	}
}

func TestComments(t *testing.T) {
	svc, db := newInteractionTestService(t)
	owner := seedUser(t, db, "owner@example.com", "user")
	reader := seedUser(t, db, "reader@example.com", "user")
	post := seedMediaPost(t, db, owner.ID, models.PaymentFree)

	if _, err := svc.AddComment(reader.ID, post.ID, "   "); !errors.Is(err, ErrEmptyComment) {
		t.Errorf("blank comment: err = %v, expected ErrEmptyComment", err)
	}
	if _, err := svc.AddComment(reader.ID, 999, "hello"); !errors.Is(err, ErrMediaMissing) {
		t.Errorf("comment on unknown post: err = %v, expected ErrMediaMissing", err)
	}
	if _, err := svc.Comments(999); !errors.Is(err, ErrMediaMissing) {
		t.Errorf("list on unknown post: err = %v, expected ErrMediaMissing", err)
	}

	first, err := svc.AddComment(reader.ID, post.ID, "  great work  ")
	if err != nil {
		t.Fatalf("AddComment error: %v", err)
	}
	if first.Body != "great work" {
		t.Errorf("comment body = %q, expected trimmed text", first.Body)
	}

	if _, err := svc.AddComment(owner.ID, post.ID, "thanks"); err != nil {
		t.Fatalf("AddComment reply error: %v", err)
	}

	list, err := svc.Comments(post.ID)
	if err != nil {
		t.Fatalf("Comments error: %v", err)
	}
	if list.Count != 2 || len(list.Items) != 2 {
		t.Fatalf("expected 2 comments, got count=%d len=%d", list.Count, len(list.Items))
	}
	if list.Items[0].ID != first.ID {
		t.Error("comments should be ordered oldest first")
	}
	if list.Items[0].User == nil || list.Items[0].User.ID != reader.ID {
		t.Error("comments should carry their author")
	}
}
