package models

import (
	"time"

	"gorm.io/gorm"
)

// Article represents a published research article (PDF + metadata).
// Payment type and price are fixed at publish time; there is no edit flow.
type Article struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       uint           `gorm:"index;not null" json:"user_id"`
	User         *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title        string         `gorm:"size:255;not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	ResearchArea string         `gorm:"size:100" json:"research_area"`
	PDFKey       string         `gorm:"size:500;not null" json:"-"` // blob storage key
	Payment      PaymentType    `gorm:"size:10;default:free" json:"payment_type"`
	Price        *float64       `json:"price,omitempty"` // set iff Payment == paid
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Article) TableName() string { return "articles" }

// Ref returns the gate-facing reference for this article.
func (a *Article) Ref() ContentRef {
	return ContentRef{Type: ContentArticle, ID: a.ID}
}

// Info returns the gate-facing view of this article.
func (a *Article) Info() ContentInfo {
	return ContentInfo{Ref: a.Ref(), OwnerID: a.UserID, Payment: a.Payment, Price: a.Price}
}
