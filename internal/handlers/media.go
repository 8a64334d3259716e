package handlers

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/innovasus/innovasus/internal/middleware"
	"github.com/innovasus/innovasus/internal/services"
	"github.com/innovasus/innovasus/pkg/response"
	"gorm.io/gorm"
)

type MediaHandler struct {
	mediaService       *services.MediaService
	interactionService *services.InteractionService
	authService        *services.AuthService
}

func NewMediaHandler(db *gorm.DB, storage services.Storage, access *services.AccessService, auth *services.AuthService) *MediaHandler {
	return &MediaHandler{
		mediaService:       services.NewMediaService(db, storage, access),
		interactionService: services.NewInteractionService(db),
		authService:        auth,
	}
}

// Create publishes a media post from a multipart form with a "files" field
// POST /api/media
func (h *MediaHandler) Create(c *gin.Context) {
	var req services.CreateMediaPostRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "multipart form required")
		return
	}

	var uploads []services.ProofUpload
	for _, fileHeader := range form.File["files"] {
		file, err := fileHeader.Open()
		if err != nil {
			response.ServerError(c, err.Error())
			return
		}
		content, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			response.ServerError(c, err.Error())
			return
		}
		uploads = append(uploads, services.ProofUpload{
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Content:     content,
		})
	}

	author, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		response.Unauthorized(c, "user not found")
		return
	}

	post, err := h.mediaService.Create(c.Request.Context(), author, &req, uploads)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotInnovator):
			response.Forbidden(c, err.Error())
		case errors.Is(err, services.ErrNoFiles),
			errors.Is(err, services.ErrTooManyFiles),
			errors.Is(err, services.ErrFileTooLarge),
			errors.Is(err, services.ErrPostTooLarge),
			errors.Is(err, services.ErrBadFileType),
			errors.Is(err, services.ErrPriceRequired):
			response.BadRequest(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	services.LogInfo("media", "create", "media post published", &author.ID, c.ClientIP(), c.Request.UserAgent(),
		gin.H{"post_id": post.ID, "files": len(post.Files), "payment_type": post.Payment})
	response.Created(c, post)
}

// List returns media posts visible to the caller
// GET /api/media
func (h *MediaHandler) List(c *gin.Context) {
	var req services.MediaListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.mediaService.List(middleware.GetUserID(c), &req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, resp)
}

// Get returns one media post with the gate applied
// GET /api/media/:id
func (h *MediaHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid media post id")
		return
	}

	view, err := h.mediaService.Get(middleware.GetUserID(c), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrMediaMissing) {
			response.NotFound(c, "media post not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, view)
}

// FileURL resolves the serving URL of one attachment for the caller
// GET /api/media/:id/files/:file_id/url
func (h *MediaHandler) FileURL(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid media post id")
		return
	}
	fileID, err := strconv.ParseUint(c.Param("file_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid file id")
		return
	}

	url, err := h.mediaService.FileURL(middleware.GetUserID(c), uint(id), uint(fileID))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMediaMissing):
			response.NotFound(c, "file not found")
		case errors.Is(err, services.ErrAccessDenied):
			response.Forbidden(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Success(c, gin.H{"url": url})
}

// ToggleLike likes or unlikes a media post for the caller
// POST /api/media/:id/like
func (h *MediaHandler) ToggleLike(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid media post id")
		return
	}

	result, err := h.interactionService.ToggleLike(middleware.GetUserID(c), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrMediaMissing) {
			response.NotFound(c, "media post not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, result)
}

// Comments lists a post's comments, oldest first
// GET /api/media/:id/comments
func (h *MediaHandler) Comments(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid media post id")
		return
	}

	list, err := h.interactionService.Comments(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrMediaMissing) {
			response.NotFound(c, "media post not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, list)
}

type addCommentRequest struct {
	Body string `json:"body" binding:"required,max=2000"`
}

// AddComment leaves a comment on a media post
// POST /api/media/:id/comments
func (h *MediaHandler) AddComment(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid media post id")
		return
	}

	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	comment, err := h.interactionService.AddComment(middleware.GetUserID(c), uint(id), req.Body)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyComment):
			response.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrMediaMissing):
			response.NotFound(c, "media post not found")
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Created(c, comment)
}

// Delete removes a media post, owner or admin only
// DELETE /api/media/:id
func (h *MediaHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid media post id")
		return
	}

	actor, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		response.Unauthorized(c, "user not found")
		return
	}

	if err := h.mediaService.Delete(c.Request.Context(), actor, uint(id)); err != nil {
		switch {
		case errors.Is(err, services.ErrMediaMissing):
			response.NotFound(c, "media post not found")
		case errors.Is(err, services.ErrNotOwner):
			response.Forbidden(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	services.LogInfo("media", "delete", "media post deleted", &actor.ID, c.ClientIP(), c.Request.UserAgent(),
		gin.H{"post_id": id})
	response.Success(c, gin.H{"deleted": true})
}
