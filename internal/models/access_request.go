package models

import "time"

// RequestStatus is the state of an access request. The only transition is
// pending → approved; a request that is never approved simply stays pending.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
)

// AccessRequest is a user's claim of payment for a paid content item, backed
// by an uploaded payment-slip artifact. One row per (user, content) pair;
// resubmission overwrites the proof on the existing row.
type AccessRequest struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	UserID      uint          `gorm:"uniqueIndex:idx_request_user_content;not null" json:"user_id"`
	User        *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ContentType ContentType   `gorm:"uniqueIndex:idx_request_user_content;size:10;not null" json:"content_type"`
	ContentID   uint          `gorm:"uniqueIndex:idx_request_user_content;not null" json:"content_id"`
	ProofKey    string        `gorm:"size:500;not null" json:"-"` // payment slip in blob storage
	Status      RequestStatus `gorm:"size:20;default:pending;index" json:"status"`
	ApprovedBy  *uint         `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time    `json:"approved_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (AccessRequest) TableName() string { return "access_requests" }

// IsApproved reports whether the request reached its terminal state.
func (r *AccessRequest) IsApproved() bool {
	return r.Status == RequestApproved
}
