package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/innovasus/innovasus/internal/config"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"paper.pdf", "paper.pdf"},
		{"my results (final).pdf", "my_results__final_.pdf"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"résumé.pdf", "r_sum_.pdf"},
		{"", "unnamed"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, expected %q", tc.in, got, tc.want)
		}
	}
}

func TestLocalStorage_SaveOpenDelete(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage error: %v", err)
	}

	ctx := context.Background()
	key, err := storage.Save(ctx, SaveInput{
		Content:     []byte("hello"),
		Filename:    "note.pdf",
		ContentType: "application/pdf",
		Prefix:      "articles",
	})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if !strings.HasPrefix(key, "articles/") {
		t.Errorf("key = %q, expected articles/ prefix", key)
	}
	if !strings.HasSuffix(key, "note.pdf") {
		t.Errorf("key = %q, expected note.pdf suffix", key)
	}

	reader, err := storage.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	content, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(content) != "hello" {
		t.Errorf("content = %q, expected %q", content, "hello")
	}

	if got := storage.URL(key); got != "/files/"+key {
		t.Errorf("URL = %q, expected %q", got, "/files/"+key)
	}

	if err := storage.Delete(ctx, key); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := storage.Open(ctx, key); err == nil {
		t.Error("Open after delete succeeded, expected error")
	}

	// Deleting a missing key is not an error.
	if err := storage.Delete(ctx, key); err != nil {
		t.Errorf("second Delete error: %v, expected nil", err)
	}
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage error: %v", err)
	}

	for _, key := range []string{"../outside.txt", "a/../../outside.txt", "/etc/passwd"} {
		if _, err := storage.Open(context.Background(), key); !errors.Is(err, ErrStorage) {
			t.Errorf("Open(%q): err = %v, expected ErrStorage", key, err)
		}
	}
}

func TestLocalStorage_EmptyContent(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage error: %v", err)
	}

	_, err = storage.Save(context.Background(), SaveInput{Filename: "x.pdf", Prefix: "articles"})
	if !errors.Is(err, ErrStorage) {
		t.Errorf("Save with no content: err = %v, expected ErrStorage", err)
	}
}

func TestNewStorage_UnknownDriver(t *testing.T) {
	_, err := NewStorage(&config.StorageConfig{Driver: "bogus"})
	if err == nil {
		t.Error("NewStorage with unknown driver succeeded, expected error")
	}
}
