package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/innovasus/innovasus/internal/models"
	"github.com/innovasus/innovasus/pkg/logger"
	"gorm.io/gorm"
)

const (
	maxMediaFiles     = 10
	maxMediaFileSize  = 50 << 20  // per file
	maxMediaTotalSize = 200 << 20 // per post
)

var (
	ErrNoFiles      = errors.New("media post requires at least one file")
	ErrTooManyFiles = fmt.Errorf("media post is limited to %d files", maxMediaFiles)
	ErrFileTooLarge = errors.New("file exceeds the 50MB per-file limit")
	ErrPostTooLarge = errors.New("post exceeds the 200MB total limit")
	ErrBadFileType  = errors.New("unsupported file extension")
	ErrMediaMissing = errors.New("media post not found")
	ErrAccessDenied = errors.New("access to this file is restricted")
)

type MediaService struct {
	db      *gorm.DB
	storage Storage
	access  *AccessService
}

func NewMediaService(db *gorm.DB, storage Storage, access *AccessService) *MediaService {
	return &MediaService{db: db, storage: storage, access: access}
}

type CreateMediaPostRequest struct {
	Title        string             `form:"title" binding:"required,max=200"`
	Description  string             `form:"description"`
	ResearchArea string             `form:"research_area" binding:"max=100"`
	Payment      models.PaymentType `form:"payment_type" binding:"omitempty,oneof=free paid"`
	Price        *float64           `form:"price"`
}

// MediaFileView is a file as seen by a particular viewer. URL is withheld
// for gated document attachments.
type MediaFileView struct {
	models.MediaFile
	CanView bool   `json:"can_view"`
	URL     string `json:"url,omitempty"`
}

// MediaPostView is a post as seen by a particular viewer. CanView reports
// full access; images and videos stay visible either way.
type MediaPostView struct {
	models.MediaPost
	CanView bool            `json:"can_view"`
	Files   []MediaFileView `json:"files"`
}

// Create publishes a media post from a batch of uploads. All files are
// validated before any byte is stored, so a rejected batch leaves nothing
// behind.
func (s *MediaService) Create(ctx context.Context, author *models.User, req *CreateMediaPostRequest, uploads []ProofUpload) (*models.MediaPost, error) {
	if !author.IsInnovator() && author.Role != "admin" {
		return nil, ErrNotInnovator
	}
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}
	if len(uploads) > maxMediaFiles {
		return nil, ErrTooManyFiles
	}

	payment, price, err := normalizePayment(req.Payment, req.Price)
	if err != nil {
		return nil, err
	}

	var totalSize int64
	categories := make([]models.FileCategory, len(uploads))
	for i, up := range uploads {
		if len(up.Content) == 0 {
			return nil, ErrNoFiles
		}
		if int64(len(up.Content)) > maxMediaFileSize {
			return nil, ErrFileTooLarge
		}
		totalSize += int64(len(up.Content))
		if totalSize > maxMediaTotalSize {
			return nil, ErrPostTooLarge
		}
		category := models.DetectFileCategory(up.Filename)
		if category == "" {
			return nil, ErrBadFileType
		}
		categories[i] = category
	}

	var keys []string
	cleanup := func() {
		for _, key := range keys {
			if err := s.storage.Delete(ctx, key); err != nil {
				logger.Warnf("[Media] Failed to remove orphaned blob %s: %v", key, err)
			}
		}
	}

	files := make([]models.MediaFile, 0, len(uploads))
	for i, up := range uploads {
		key, err := s.storage.Save(ctx, SaveInput{
			Content:     up.Content,
			Filename:    up.Filename,
			ContentType: up.ContentType,
			Prefix:      "media",
		})
		if err != nil {
			cleanup()
			return nil, err
		}
		keys = append(keys, key)
		files = append(files, models.MediaFile{
			Filename: SanitizeFilename(up.Filename),
			Key:      key,
			Category: categories[i],
			Size:     int64(len(up.Content)),
		})
	}

	post := models.MediaPost{
		UserID:       author.ID,
		Title:        req.Title,
		Description:  req.Description,
		ResearchArea: req.ResearchArea,
		Payment:      payment,
		Price:        price,
		Files:        files,
	}
	if err := s.db.Create(&post).Error; err != nil {
		cleanup()
		return nil, err
	}

	return &post, nil
}

type MediaListRequest struct {
	Page         int    `form:"page" binding:"min=0"`
	PageSize     int    `form:"page_size" binding:"min=0,max=100"`
	Search       string `form:"search"`
	ResearchArea string `form:"research_area"`
	Payment      string `form:"payment_type" binding:"omitempty,oneof=free paid"`
	UserID       uint   `form:"user_id"`
}

type MediaListResponse struct {
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Items    []MediaPostView `json:"items"`
}

// List returns media posts with per-viewer gate evaluation applied.
func (s *MediaService) List(viewerID uint, req *MediaListRequest) (*MediaListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.MediaPost{})

	if req.Search != "" {
		like := "%" + req.Search + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", like, like)
	}
	if req.ResearchArea != "" {
		query = query.Where("research_area = ?", req.ResearchArea)
	}
	if req.Payment != "" {
		query = query.Where("payment = ?", req.Payment)
	}
	if req.UserID != 0 {
		query = query.Where("user_id = ?", req.UserID)
	}

	var total int64
	query.Count(&total)

	var posts []models.MediaPost
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("User").Preload("Files").Offset(offset).Limit(req.PageSize).
		Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, err
	}

	items := make([]MediaPostView, 0, len(posts))
	for i := range posts {
		view, err := s.view(viewerID, &posts[i])
		if err != nil {
			return nil, err
		}
		items = append(items, *view)
	}

	return &MediaListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// Get returns one post with the gate applied for the viewer.
func (s *MediaService) Get(viewerID uint, id uint) (*MediaPostView, error) {
	var post models.MediaPost
	if err := s.db.Preload("User").Preload("Files").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMediaMissing
		}
		return nil, err
	}
	return s.view(viewerID, &post)
}

func (s *MediaService) view(viewerID uint, post *models.MediaPost) (*MediaPostView, error) {
	canView, err := s.access.CanViewInfo(viewerID, post.Info())
	if err != nil {
		return nil, err
	}

	view := MediaPostView{MediaPost: *post, CanView: canView}
	view.MediaPost.Files = nil

	for i := range post.Files {
		file := post.Files[i]
		// Documents inherit the post gate; images and videos are open.
		fileVisible := canView || file.Category != models.FileDocument
		fv := MediaFileView{MediaFile: file, CanView: fileVisible}
		if fileVisible {
			fv.URL = s.storage.URL(file.Key)
		}
		view.Files = append(view.Files, fv)
	}

	return &view, nil
}

// FileURL resolves the serving URL for one attachment, subject to the gate.
// Returns ErrAccessDenied when the viewer cannot see a gated document.
func (s *MediaService) FileURL(viewerID uint, postID, fileID uint) (string, error) {
	var file models.MediaFile
	if err := s.db.Where("id = ? AND post_id = ?", fileID, postID).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrMediaMissing
		}
		return "", err
	}

	canView, err := s.access.CanViewFile(viewerID, &file)
	if err != nil {
		return "", err
	}
	if !canView {
		return "", ErrAccessDenied
	}

	return s.storage.URL(file.Key), nil
}

// Delete removes a post, its blobs, and any grants or requests that point at
// it. Owner or admin only.
func (s *MediaService) Delete(ctx context.Context, actor *models.User, id uint) error {
	var post models.MediaPost
	if err := s.db.Preload("Files").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMediaMissing
		}
		return err
	}

	if post.UserID != actor.ID && actor.Role != "admin" {
		return ErrNotOwner
	}

	var proofKeys []string
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AccessRequest{}).
			Where("content_type = ? AND content_id = ?", models.ContentMedia, id).
			Pluck("proof_key", &proofKeys).Error; err != nil {
			return err
		}
		if err := tx.Where("content_type = ? AND content_id = ?", models.ContentMedia, id).
			Delete(&models.AccessRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("content_type = ? AND content_id = ?", models.ContentMedia, id).
			Delete(&models.AccessGrant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.MediaFile{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	}); err != nil {
		return err
	}

	for _, file := range post.Files {
		if err := s.storage.Delete(ctx, file.Key); err != nil {
			logger.Warnf("[Media] Failed to delete blob %s: %v", file.Key, err)
		}
	}
	for _, key := range proofKeys {
		if key == "" {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			logger.Warnf("[Media] Failed to delete proof blob %s: %v", key, err)
		}
	}

	return nil
}
