package services

import (
	"context"
	"errors"
	"time"

	"github.com/innovasus/innovasus/internal/models"
	"github.com/innovasus/innovasus/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Access gate errors. Each rejection reason is distinct so the handler layer
// can surface a specific message to the requester.
var (
	ErrContentNotFound = errors.New("content not found")
	ErrRequestNotFound = errors.New("access request not found")
	ErrContentFree     = errors.New("content is free, no access request needed")
	ErrOwnerRequest    = errors.New("owner does not need access")
	ErrAlreadyGranted  = errors.New("access already granted")
	ErrAlreadyApproved = errors.New("access request already approved")
	ErrRequestPending  = errors.New("access request already pending")
	ErrProofRequired   = errors.New("payment proof required")
	ErrNotAdmin        = errors.New("admin access required")
)

// AccessService is the content access and monetization gate: it decides who
// may view paid content and runs the payment-slip request/approval workflow.
type AccessService struct {
	db      *gorm.DB
	storage Storage
	queue   TaskQueue // optional; notification emails are enqueued here
}

func NewAccessService(db *gorm.DB, storage Storage, queue TaskQueue) *AccessService {
	return &AccessService{db: db, storage: storage, queue: queue}
}

// resolveContent loads the gate-facing view of a content item.
func (s *AccessService) resolveContent(ref models.ContentRef) (models.ContentInfo, error) {
	switch ref.Type {
	case models.ContentArticle:
		var a models.Article
		if err := s.db.First(&a, ref.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ContentInfo{}, ErrContentNotFound
			}
			return models.ContentInfo{}, err
		}
		return a.Info(), nil
	case models.ContentMedia:
		var p models.MediaPost
		if err := s.db.First(&p, ref.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ContentInfo{}, ErrContentNotFound
			}
			return models.ContentInfo{}, err
		}
		return p.Info(), nil
	default:
		return models.ContentInfo{}, ErrContentNotFound
	}
}

// hasGrant reports whether an active grant row exists for (userID, ref).
func (s *AccessService) hasGrant(userID uint, ref models.ContentRef) (bool, error) {
	var count int64
	err := s.db.Model(&models.AccessGrant{}).
		Where("user_id = ? AND content_type = ? AND content_id = ? AND has_access = ?",
			userID, ref.Type, ref.ID, true).
		Count(&count).Error
	return count > 0, err
}

// CanViewInfo applies the access rule to an already-resolved content item.
// Precedence: free content is always viewable; anonymous viewers (id 0) never
// see paid content; owners always see their own content; everyone else needs
// an active grant.
func (s *AccessService) CanViewInfo(viewerID uint, info models.ContentInfo) (bool, error) {
	if !info.IsPaid() {
		return true, nil
	}
	if viewerID == 0 {
		return false, nil
	}
	if viewerID == info.OwnerID {
		return true, nil
	}
	return s.hasGrant(viewerID, info.Ref)
}

// CanView decides whether the viewer may see the full content item.
// It is a pure read; absent grants mean "no access", not an error.
func (s *AccessService) CanView(viewerID uint, ref models.ContentRef) (bool, error) {
	info, err := s.resolveContent(ref)
	if err != nil {
		return false, err
	}
	return s.CanViewInfo(viewerID, info)
}

// CanViewFile decides whether the viewer may fetch a media attachment.
// Only document attachments are gated; image and video attachments of a paid
// post stay viewable.
func (s *AccessService) CanViewFile(viewerID uint, file *models.MediaFile) (bool, error) {
	if file.Category != models.FileDocument {
		return true, nil
	}
	return s.CanView(viewerID, models.ContentRef{Type: models.ContentMedia, ID: file.PostID})
}

// ProofUpload is the payment-slip artifact attached to an access request.
type ProofUpload struct {
	Filename    string
	ContentType string
	Content     []byte
}

func (p ProofUpload) empty() bool { return len(p.Content) == 0 }

// SubmitAccessRequest records a payment claim for a paid content item.
//
// Rejections, in precedence order: content not found, free content, owner
// self-request, access already granted (or previously approved), request
// already pending, missing proof. A pending resubmission overwrites the proof
// on the existing row before the pending rejection is reported, so the latest
// slip is always the one reviewed. The proof is uploaded before any row is
// written; a storage failure aborts the whole submission.
func (s *AccessService) SubmitAccessRequest(ctx context.Context, requesterID uint, ref models.ContentRef, proof ProofUpload) (*models.AccessRequest, error) {
	info, err := s.resolveContent(ref)
	if err != nil {
		return nil, err
	}

	if !info.IsPaid() {
		return nil, ErrContentFree
	}
	if requesterID == info.OwnerID {
		return nil, ErrOwnerRequest
	}

	var existing models.AccessRequest
	found := true
	err = s.db.Where("user_id = ? AND content_type = ? AND content_id = ?",
		requesterID, ref.Type, ref.ID).First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		found = false
	}

	if found && existing.IsApproved() {
		return nil, ErrAlreadyApproved
	}

	granted, err := s.hasGrant(requesterID, ref)
	if err != nil {
		return nil, err
	}
	if granted {
		return nil, ErrAlreadyGranted
	}

	if found {
		// Resubmission while pending: replace the slip, keep the single row.
		if !proof.empty() {
			key, err := s.storage.Save(ctx, SaveInput{
				Content:     proof.Content,
				Filename:    proof.Filename,
				ContentType: proof.ContentType,
				Prefix:      "slips",
			})
			if err != nil {
				return nil, err
			}
			oldKey := existing.ProofKey
			if err := s.db.Model(&existing).Update("proof_key", key).Error; err != nil {
				return nil, err
			}
			if oldKey != "" && oldKey != key {
				if derr := s.storage.Delete(ctx, oldKey); derr != nil {
					logger.Warn().Err(derr).Str("key", oldKey).Msg("failed to delete replaced payment slip")
				}
			}
		}
		return nil, ErrRequestPending
	}

	if proof.empty() {
		return nil, ErrProofRequired
	}

	key, err := s.storage.Save(ctx, SaveInput{
		Content:     proof.Content,
		Filename:    proof.Filename,
		ContentType: proof.ContentType,
		Prefix:      "slips",
	})
	if err != nil {
		return nil, err
	}

	request := models.AccessRequest{
		UserID:      requesterID,
		ContentType: ref.Type,
		ContentID:   ref.ID,
		ProofKey:    key,
		Status:      models.RequestPending,
	}

	// Upsert on the natural key so a concurrent double-submission collapses
	// into one pending row instead of surfacing a conflict. Only the proof is
	// updated on conflict; an already-approved row is never demoted.
	err = s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "content_type"}, {Name: "content_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"proof_key":  key,
			"updated_at": time.Now(),
		}),
	}).Create(&request).Error
	if err != nil {
		return nil, err
	}

	s.notify(NotifyRequestSubmitted, request.ID)
	return &request, nil
}

// ApproveAccessRequest converts a pending request into an access grant.
// Admin-only. The grant upsert happens before the request is marked approved,
// inside one transaction, so a reader never observes an approved request
// without its grant and a crash leaves the request pending (safe to retry).
// Idempotent: re-approving an approved request changes nothing.
func (s *AccessService) ApproveAccessRequest(requestID uint, approver *models.User) (*models.AccessRequest, error) {
	if approver == nil || approver.Role != "admin" {
		return nil, ErrNotAdmin
	}

	var request models.AccessRequest
	if err := s.db.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	if request.IsApproved() {
		// Ensure the grant exists even if a previous approval was interrupted.
		if err := s.upsertGrant(s.db, request.UserID, request.ContentType, request.ContentID); err != nil {
			return nil, err
		}
		return &request, nil
	}

	now := time.Now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.upsertGrant(tx, request.UserID, request.ContentType, request.ContentID); err != nil {
			return err
		}
		return tx.Model(&request).Updates(map[string]interface{}{
			"status":      models.RequestApproved,
			"approved_by": approver.ID,
			"approved_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.notify(NotifyRequestApproved, request.ID)
	return &request, nil
}

func (s *AccessService) upsertGrant(tx *gorm.DB, userID uint, contentType models.ContentType, contentID uint) error {
	grant := models.AccessGrant{
		UserID:      userID,
		ContentType: contentType,
		ContentID:   contentID,
		HasAccess:   true,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "content_type"}, {Name: "content_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"has_access": true,
			"updated_at": time.Now(),
		}),
	}).Create(&grant).Error
}

type PendingRequestListRequest struct {
	Page     int `form:"page" binding:"min=1"`
	PageSize int `form:"page_size" binding:"min=1,max=100"`
}

type PendingRequestListResponse struct {
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
	Items    []models.AccessRequest `json:"items"`
}

// ListAllPending returns every pending request, admin scope.
func (s *AccessService) ListAllPending(req *PendingRequestListRequest) (*PendingRequestListResponse, error) {
	query := s.db.Model(&models.AccessRequest{}).Where("status = ?", models.RequestPending)
	return s.listPending(query, req)
}

// ListPendingForOwner returns pending requests against content owned by the
// given user.
func (s *AccessService) ListPendingForOwner(ownerID uint, req *PendingRequestListRequest) (*PendingRequestListResponse, error) {
	var articleIDs []uint
	if err := s.db.Model(&models.Article{}).Where("user_id = ?", ownerID).Pluck("id", &articleIDs).Error; err != nil {
		return nil, err
	}
	var mediaIDs []uint
	if err := s.db.Model(&models.MediaPost{}).Where("user_id = ?", ownerID).Pluck("id", &mediaIDs).Error; err != nil {
		return nil, err
	}

	query := s.db.Model(&models.AccessRequest{}).
		Where("status = ?", models.RequestPending).
		Where(
			s.db.Where("content_type = ? AND content_id IN ?", models.ContentArticle, idsOrZero(articleIDs)).
				Or("content_type = ? AND content_id IN ?", models.ContentMedia, idsOrZero(mediaIDs)),
		)
	return s.listPending(query, req)
}

// idsOrZero keeps the IN clause valid when the owner has no content.
func idsOrZero(ids []uint) []uint {
	if len(ids) == 0 {
		return []uint{0}
	}
	return ids
}

func (s *AccessService) listPending(query *gorm.DB, req *PendingRequestListRequest) (*PendingRequestListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var total int64
	query.Count(&total)

	var requests []models.AccessRequest
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("User").Offset(offset).Limit(req.PageSize).
		Order("created_at ASC").Find(&requests).Error; err != nil {
		return nil, err
	}

	return &PendingRequestListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    requests,
	}, nil
}

// GetRequest loads a single access request by id.
func (s *AccessService) GetRequest(id uint) (*models.AccessRequest, error) {
	var request models.AccessRequest
	if err := s.db.Preload("User").First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &request, nil
}

func (s *AccessService) notify(kind string, requestID uint) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(&NotificationTask{Kind: kind, RequestID: requestID}); err != nil {
		logger.Warn().Err(err).Str("kind", kind).Uint("request_id", requestID).
			Msg("failed to enqueue notification")
	}
}
