package services

import (
	"context"
	"errors"
	"testing"

	"github.com/innovasus/innovasus/internal/models"
	"gorm.io/gorm"
)

func newUserTestService(t *testing.T) (*UserService, *gorm.DB, *memStorage) {
	t.Helper()
	db := newTestDB(t)
	if err := db.AutoMigrate(&models.Follow{}); err != nil {
		t.Fatalf("failed to migrate follows: %v", err)
	}
	store := newMemStorage()
	return NewUserService(db, store), db, store
}

func TestFollowUnfollow(t *testing.T) {
	svc, _, _ := newUserTestService(t)
	db := svc.db
	ana := seedUser(t, db, "ana@example.com", "user")
	bia := seedUser(t, db, "bia@example.com", "user")

	if err := svc.Follow(ana.ID, ana.ID); !errors.Is(err, ErrSelfFollow) {
		t.Errorf("self follow: err = %v, expected ErrSelfFollow", err)
	}
	if err := svc.Follow(ana.ID, 9999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("follow missing user: err = %v, expected ErrUserNotFound", err)
	}

	if err := svc.Follow(ana.ID, bia.ID); err != nil {
		t.Fatalf("Follow error: %v", err)
	}
	// Repeating is a no-op, not an error.
	if err := svc.Follow(ana.ID, bia.ID); err != nil {
		t.Fatalf("repeated Follow error: %v", err)
	}

	var count int64
	db.Model(&models.Follow{}).Count(&count)
	if count != 1 {
		t.Errorf("follow rows = %d, expected 1", count)
	}

	following, err := svc.IsFollowing(ana.ID, bia.ID)
	if err != nil || !following {
		t.Errorf("IsFollowing = %v, %v, expected true", following, err)
	}
	if following, _ = svc.IsFollowing(bia.ID, ana.ID); following {
		t.Error("IsFollowing reversed = true, expected false")
	}

	if err := svc.Unfollow(ana.ID, bia.ID); err != nil {
		t.Fatalf("Unfollow error: %v", err)
	}
	if err := svc.Unfollow(ana.ID, bia.ID); err != nil {
		t.Fatalf("repeated Unfollow error: %v", err)
	}
	if following, _ = svc.IsFollowing(ana.ID, bia.ID); following {
		t.Error("still following after Unfollow")
	}
}

func TestFollowerLists(t *testing.T) {
	svc, db, _ := newUserTestService(t)
	ana := seedUser(t, db, "ana@example.com", "user")
	bia := seedUser(t, db, "bia@example.com", "user")
	caio := seedUser(t, db, "caio@example.com", "user")

	if err := svc.Follow(bia.ID, ana.ID); err != nil {
		t.Fatalf("Follow error: %v", err)
	}
	if err := svc.Follow(caio.ID, ana.ID); err != nil {
		t.Fatalf("Follow error: %v", err)
	}
	if err := svc.Follow(ana.ID, bia.ID); err != nil {
		t.Fatalf("Follow error: %v", err)
	}

	followers, err := svc.Followers(ana.ID)
	if err != nil {
		t.Fatalf("Followers error: %v", err)
	}
	if len(followers) != 2 {
		t.Errorf("followers = %d, expected 2", len(followers))
	}

	following, err := svc.Following(ana.ID)
	if err != nil {
		t.Fatalf("Following error: %v", err)
	}
	if len(following) != 1 || following[0].ID != bia.ID {
		t.Errorf("following = %+v, expected only bia", following)
	}

	profile, err := svc.GetProfile(ana.ID)
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}
	if profile.Followers != 2 || profile.Following != 1 {
		t.Errorf("profile counts = %d/%d, expected 2/1", profile.Followers, profile.Following)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	svc, _, _ := newUserTestService(t)

	if _, err := svc.GetProfile(9999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, expected ErrUserNotFound", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, db, _ := newUserTestService(t)
	ana := seedUser(t, db, "ana@example.com", "user")

	updated, err := svc.UpdateProfile(ana.ID, &UpdateProfileRequest{
		Fullname:     "Ana Souza",
		Institution:  "Fiocruz",
		ResearchArea: "telehealth",
	})
	if err != nil {
		t.Fatalf("UpdateProfile error: %v", err)
	}
	if updated.Fullname != "Ana Souza" || updated.Institution != "Fiocruz" {
		t.Errorf("profile not updated: %+v", updated)
	}

	// Empty fullname keeps the existing one, other fields are replaced.
	updated, err = svc.UpdateProfile(ana.ID, &UpdateProfileRequest{Institution: ""})
	if err != nil {
		t.Fatalf("UpdateProfile error: %v", err)
	}
	if updated.Fullname != "Ana Souza" {
		t.Errorf("fullname cleared by empty update, got %q", updated.Fullname)
	}
	if updated.Institution != "" {
		t.Errorf("institution = %q, expected cleared", updated.Institution)
	}
}

func TestSetProfilePicture(t *testing.T) {
	svc, db, store := newUserTestService(t)
	ana := seedUser(t, db, "ana@example.com", "user")
	ctx := context.Background()

	_, err := svc.SetProfilePicture(ctx, ana.ID, ProofUpload{Filename: "cv.pdf", Content: []byte("x")})
	if !errors.Is(err, ErrBadFileType) {
		t.Errorf("non-image upload: err = %v, expected ErrBadFileType", err)
	}

	url, err := svc.SetProfilePicture(ctx, ana.ID, ProofUpload{Filename: "me.png", ContentType: "image/png", Content: []byte("png1")})
	if err != nil {
		t.Fatalf("SetProfilePicture error: %v", err)
	}
	if url == "" {
		t.Error("empty avatar URL")
	}

	var stored models.User
	db.First(&stored, ana.ID)
	firstKey := stored.ProfilePicture
	if firstKey == "" {
		t.Fatal("profile picture key not stored")
	}

	// Replacing discards the old blob.
	if _, err := svc.SetProfilePicture(ctx, ana.ID, ProofUpload{Filename: "me2.png", ContentType: "image/png", Content: []byte("png2")}); err != nil {
		t.Fatalf("second SetProfilePicture error: %v", err)
	}
	if _, ok := store.blobs[firstKey]; ok {
		t.Error("old avatar blob not deleted after replacement")
	}
}

func TestUserSearch(t *testing.T) {
	svc, db, _ := newUserTestService(t)
	ana := seedUser(t, db, "ana@example.com", "user")
	db.Model(&models.User{}).Where("id = ?", ana.ID).
		Updates(map[string]interface{}{"fullname": "Ana Souza", "institution": "Fiocruz"})
	bia := seedUser(t, db, "bia@example.com", "user")
	db.Model(&models.User{}).Where("id = ?", bia.ID).
		Updates(map[string]interface{}{"fullname": "Bia Lima", "is_active": false})

	res, err := svc.Search(&UserSearchRequest{Search: "Souza"})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if res.Total != 1 || len(res.Items) != 1 || res.Items[0].ID != ana.ID {
		t.Errorf("search by name: got total %d items %d", res.Total, len(res.Items))
	}

	// Disabled accounts never appear.
	res, err = svc.Search(&UserSearchRequest{Search: "Lima"})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("disabled user surfaced in search, total = %d", res.Total)
	}
}
