package handlers

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/innovasus/innovasus/internal/middleware"
	"github.com/innovasus/innovasus/internal/models"
	"github.com/innovasus/innovasus/internal/services"
	"github.com/innovasus/innovasus/pkg/response"
	"gorm.io/gorm"
)

// FileHandler streams blobs from local storage. The same view rules that
// withhold URLs in the API apply here, so a guessed key is not a bypass.
type FileHandler struct {
	db            *gorm.DB
	storage       services.Storage
	accessService *services.AccessService
}

func NewFileHandler(db *gorm.DB, storage services.Storage, access *services.AccessService) *FileHandler {
	return &FileHandler{db: db, storage: storage, accessService: access}
}

// Serve streams one stored file
// GET /files/*key
func (h *FileHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		response.NotFound(c, "file not found")
		return
	}

	allowed, err := h.mayServe(middleware.GetUserID(c), middleware.GetRole(c), key)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	if !allowed {
		response.Forbidden(c, "access to this file is restricted")
		return
	}

	reader, err := h.storage.Open(c.Request.Context(), key)
	if err != nil {
		response.NotFound(c, "file not found")
		return
	}
	defer reader.Close()

	c.Status(200)
	_, _ = io.Copy(c.Writer, reader)
}

// mayServe applies the per-prefix visibility rules.
func (h *FileHandler) mayServe(viewerID uint, role string, key string) (bool, error) {
	switch {
	case strings.HasPrefix(key, "avatars/"), strings.HasPrefix(key, "communities/"):
		return true, nil

	case strings.HasPrefix(key, "community-files/"):
		// Feed attachments follow the feed: members only.
		var msg models.CommunityMessage
		if err := h.db.Where("file_key = ?", key).First(&msg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Orphan blob; nothing references it, nothing gates it.
				return true, nil
			}
			return false, err
		}
		var count int64
		if err := h.db.Model(&models.CommunityMember{}).
			Where("community_id = ? AND user_id = ?", msg.CommunityID, viewerID).
			Count(&count).Error; err != nil {
			return false, err
		}
		return count > 0 && viewerID != 0, nil

	case strings.HasPrefix(key, "articles/"):
		var article models.Article
		if err := h.db.Where("pdf_key = ?", key).First(&article).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Orphan blob; nothing references it, nothing gates it.
				return true, nil
			}
			return false, err
		}
		return h.accessService.CanViewInfo(viewerID, article.Info())

	case strings.HasPrefix(key, "media/"):
		var file models.MediaFile
		if err := h.db.Where(&models.MediaFile{Key: key}).First(&file).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return true, nil
			}
			return false, err
		}
		return h.accessService.CanViewFile(viewerID, &file)

	case strings.HasPrefix(key, "slips/"):
		// Payment slips: requester, content owner, and admins only.
		if role == "admin" {
			return true, nil
		}
		var request models.AccessRequest
		if err := h.db.Where("proof_key = ?", key).First(&request).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		if request.UserID == viewerID && viewerID != 0 {
			return true, nil
		}
		ownerID, err := h.contentOwner(request.ContentType, request.ContentID)
		if err != nil {
			return false, err
		}
		return ownerID == viewerID && viewerID != 0, nil

	default:
		return false, nil
	}
}

func (h *FileHandler) contentOwner(contentType models.ContentType, contentID uint) (uint, error) {
	switch contentType {
	case models.ContentArticle:
		var a models.Article
		if err := h.db.Select("user_id").First(&a, contentID).Error; err != nil {
			return 0, err
		}
		return a.UserID, nil
	case models.ContentMedia:
		var p models.MediaPost
		if err := h.db.Select("user_id").First(&p, contentID).Error; err != nil {
			return 0, err
		}
		return p.UserID, nil
	}
	return 0, nil
}
