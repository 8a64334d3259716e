package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/innovasus/innovasus/internal/models"
)

func upload(name string, size int) ProofUpload {
	return ProofUpload{Filename: name, Content: make([]byte, size)}
}

func TestMediaCreate_Validation(t *testing.T) {
	svc := &MediaService{}
	ctx := context.Background()
	innovator := &models.User{ID: 1, UserType: models.UserTypeInnovator, Role: "user"}
	reader := &models.User{ID: 2, UserType: models.UserTypeReader, Role: "user"}
	req := &CreateMediaPostRequest{Title: "T"}

	_, err := svc.Create(ctx, reader, req, []ProofUpload{upload("a.jpg", 1)})
	if !errors.Is(err, ErrNotInnovator) {
		t.Errorf("reader publish: err = %v, expected ErrNotInnovator", err)
	}

	_, err = svc.Create(ctx, innovator, req, nil)
	if !errors.Is(err, ErrNoFiles) {
		t.Errorf("no files: err = %v, expected ErrNoFiles", err)
	}

	var many []ProofUpload
	for i := 0; i < maxMediaFiles+1; i++ {
		many = append(many, upload(fmt.Sprintf("f%d.jpg", i), 1))
	}
	_, err = svc.Create(ctx, innovator, req, many)
	if !errors.Is(err, ErrTooManyFiles) {
		t.Errorf("11 files: err = %v, expected ErrTooManyFiles", err)
	}

	_, err = svc.Create(ctx, innovator, req, []ProofUpload{upload("big.jpg", maxMediaFileSize+1)})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("oversized file: err = %v, expected ErrFileTooLarge", err)
	}

	// Five files just under the per-file cap blow the total cap.
	var heavy []ProofUpload
	for i := 0; i < 5; i++ {
		heavy = append(heavy, upload(fmt.Sprintf("h%d.mp4", i), maxMediaFileSize-1))
	}
	_, err = svc.Create(ctx, innovator, req, heavy)
	if !errors.Is(err, ErrPostTooLarge) {
		t.Errorf("oversized post: err = %v, expected ErrPostTooLarge", err)
	}

	_, err = svc.Create(ctx, innovator, req, []ProofUpload{upload("tool.exe", 1)})
	if !errors.Is(err, ErrBadFileType) {
		t.Errorf("bad extension: err = %v, expected ErrBadFileType", err)
	}
}

func TestDetectFileCategory(t *testing.T) {
	cases := []struct {
		filename string
		want     models.FileCategory
	}{
		{"photo.jpg", models.FileImage},
		{"photo.JPEG", models.FileImage},
		{"clip.webp", models.FileImage},
		{"talk.mp4", models.FileVideo},
		{"talk.MKV", models.FileVideo},
		{"paper.pdf", models.FileDocument},
		{"deck.pptx", models.FileDocument},
		{"deck.ppt", models.FileDocument},
		{"tool.exe", ""},
		{"noext", ""},
	}
	for _, tc := range cases {
		if got := models.DetectFileCategory(tc.filename); got != tc.want {
			t.Errorf("DetectFileCategory(%q) = %q, expected %q", tc.filename, got, tc.want)
		}
	}
}

func TestMediaCreateAndView(t *testing.T) {
	db := newTestDB(t)
	storage := newMemStorage()
	access := NewAccessService(db, storage, nil)
	svc := NewMediaService(db, storage, access)

	owner := seedUser(t, db, "owner@example.com", "user")
	reader := seedUser(t, db, "reader@example.com", "user")

	price := 12.5
	post, err := svc.Create(context.Background(), owner, &CreateMediaPostRequest{
		Title:   "Field results",
		Payment: models.PaymentPaid,
		Price:   &price,
	}, []ProofUpload{
		{Filename: "photo.jpg", Content: []byte("img")},
		{Filename: "results.pdf", Content: []byte("doc")},
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(post.Files) != 2 {
		t.Fatalf("files = %d, expected 2", len(post.Files))
	}

	view, err := svc.Get(reader.ID, post.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if view.CanView {
		t.Error("reader CanView = true for paid post, expected false")
	}
	for _, f := range view.Files {
		switch f.Category {
		case models.FileImage:
			if !f.CanView || f.URL == "" {
				t.Errorf("image %s withheld from gated viewer, expected visible", f.Filename)
			}
		case models.FileDocument:
			if f.CanView || f.URL != "" {
				t.Errorf("document %s visible to gated viewer, expected withheld", f.Filename)
			}
		}
	}

	// Owner sees everything.
	ownerView, err := svc.Get(owner.ID, post.ID)
	if err != nil {
		t.Fatalf("Get as owner error: %v", err)
	}
	for _, f := range ownerView.Files {
		if !f.CanView || f.URL == "" {
			t.Errorf("owner cannot see %s", f.Filename)
		}
	}

	// Per-file URL resolution applies the same asymmetry.
	for _, f := range post.Files {
		url, err := svc.FileURL(reader.ID, post.ID, f.ID)
		switch f.Category {
		case models.FileImage:
			if err != nil || url == "" {
				t.Errorf("FileURL for image: url=%q err=%v, expected resolvable", url, err)
			}
		case models.FileDocument:
			if !errors.Is(err, ErrAccessDenied) {
				t.Errorf("FileURL for gated document: err = %v, expected ErrAccessDenied", err)
			}
		}
		if url, err := svc.FileURL(owner.ID, post.ID, f.ID); err != nil || url == "" {
			t.Errorf("FileURL as owner for %s: url=%q err=%v", f.Filename, url, err)
		}
	}
	if _, err := svc.FileURL(reader.ID, post.ID, 9999); !errors.Is(err, ErrMediaMissing) {
		t.Errorf("FileURL unknown file: err = %v, expected ErrMediaMissing", err)
	}
}

func TestMediaDelete_RemovesBlobs(t *testing.T) {
	db := newTestDB(t)
	storage := newMemStorage()
	access := NewAccessService(db, storage, nil)
	svc := NewMediaService(db, storage, access)

	owner := seedUser(t, db, "owner@example.com", "user")

	post, err := svc.Create(context.Background(), owner, &CreateMediaPostRequest{Title: "T"},
		[]ProofUpload{{Filename: "a.jpg", Content: []byte("x")}, {Filename: "b.mp4", Content: []byte("y")}})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := svc.Delete(context.Background(), owner, post.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if len(storage.blobs) != 0 {
		t.Errorf("%d blobs remain after delete, expected 0", len(storage.blobs))
	}
	if _, err := svc.Get(owner.ID, post.ID); !errors.Is(err, ErrMediaMissing) {
		t.Errorf("get after delete: err = %v, expected ErrMediaMissing", err)
	}
}
