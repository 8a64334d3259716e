package models

import (
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"
)

// FileCategory classifies a media attachment. Only document attachments of a
// paid post are gated; images and videos are always viewable.
type FileCategory string

const (
	FileImage    FileCategory = "image"
	FileVideo    FileCategory = "video"
	FileDocument FileCategory = "document"
)

// MediaPost represents a multi-file media publication.
type MediaPost struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       uint           `gorm:"index;not null" json:"user_id"`
	User         *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title        string         `gorm:"size:200;not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	ResearchArea string         `gorm:"size:100" json:"research_area"`
	Payment      PaymentType    `gorm:"size:10;default:free" json:"payment_type"`
	Price        *float64       `json:"price,omitempty"` // set iff Payment == paid
	Files        []MediaFile    `gorm:"foreignKey:PostID" json:"files,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (MediaPost) TableName() string { return "media_posts" }

// Ref returns the gate-facing reference for this post.
func (p *MediaPost) Ref() ContentRef {
	return ContentRef{Type: ContentMedia, ID: p.ID}
}

// Info returns the gate-facing view of this post.
func (p *MediaPost) Info() ContentInfo {
	return ContentInfo{Ref: p.Ref(), OwnerID: p.UserID, Payment: p.Payment, Price: p.Price}
}

// MediaFile is a single attachment of a MediaPost.
type MediaFile struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	PostID    uint         `gorm:"index;not null" json:"post_id"`
	Filename  string       `gorm:"size:255;not null" json:"filename"`
	Key       string       `gorm:"size:500;not null" json:"-"` // blob storage key
	Category  FileCategory `gorm:"size:20;not null" json:"category"`
	Size      int64        `json:"size"`
	CreatedAt time.Time    `json:"created_at"`
}

func (MediaFile) TableName() string { return "media_files" }

var (
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}
	videoExtensions = []string{".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm", ".mkv"}
	docExtensions   = []string{".pdf", ".pptx", ".ppt"}
)

// DetectFileCategory classifies a filename by extension. Returns an empty
// category for unsupported extensions.
func DetectFileCategory(filename string) FileCategory {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range imageExtensions {
		if ext == e {
			return FileImage
		}
	}
	for _, e := range videoExtensions {
		if ext == e {
			return FileVideo
		}
	}
	for _, e := range docExtensions {
		if ext == e {
			return FileDocument
		}
	}
	return ""
}
