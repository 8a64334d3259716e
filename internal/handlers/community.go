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

type CommunityHandler struct {
	communityService *services.CommunityService
}

func NewCommunityHandler(db *gorm.DB, storage services.Storage) *CommunityHandler {
	return &CommunityHandler{
		communityService: services.NewCommunityService(db, storage),
	}
}

// readUpload pulls one optional file field out of a multipart form.
func readUpload(c *gin.Context, field string) (*services.ProofUpload, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		// Absent field is fine; the form itself may not even be multipart.
		return nil, nil
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &services.ProofUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

// Create opens a new community, optional "picture" file field
// POST /api/communities
func (h *CommunityHandler) Create(c *gin.Context) {
	var req services.CreateCommunityRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	picture, err := readUpload(c, "picture")
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	community, err := h.communityService.Create(c.Request.Context(), userID, &req, picture)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCommunityNameTaken):
			response.Conflict(c, err.Error())
		case errors.Is(err, services.ErrBadFileType):
			response.BadRequest(c, "community picture must be an image")
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	services.LogInfo("community", "create", "community created", &userID, c.ClientIP(), c.Request.UserAgent(),
		gin.H{"community_id": community.ID, "name": community.Name})
	response.Created(c, community)
}

// List returns all communities with the caller's membership flags
// GET /api/communities
func (h *CommunityHandler) List(c *gin.Context) {
	views, err := h.communityService.List(middleware.GetUserID(c))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, views)
}

// Get returns one community with its member list, members only
// GET /api/communities/:id
func (h *CommunityHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid community id")
		return
	}

	detail, err := h.communityService.Get(middleware.GetUserID(c), uint(id))
	if err != nil {
		communityError(c, err)
		return
	}
	response.Success(c, detail)
}

type inviteRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// Invite adds a followed user to the community, members only
// POST /api/communities/:id/invite
func (h *CommunityHandler) Invite(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid community id")
		return
	}

	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actorID := middleware.GetUserID(c)
	if err := h.communityService.Invite(actorID, uint(id), req.UserID); err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			response.NotFound(c, "user not found")
		case errors.Is(err, services.ErrNotFollowing):
			response.BadRequest(c, err.Error())
		default:
			communityError(c, err)
		}
		return
	}

	services.LogInfo("community", "invite", "member invited", &actorID, c.ClientIP(), c.Request.UserAgent(),
		gin.H{"community_id": id, "user_id": req.UserID})
	response.Success(c, gin.H{"invited": true})
}

// Messages returns the community feed oldest first, members only
// GET /api/communities/:id/messages
func (h *CommunityHandler) Messages(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid community id")
		return
	}

	messages, err := h.communityService.Messages(middleware.GetUserID(c), uint(id))
	if err != nil {
		communityError(c, err)
		return
	}
	response.Success(c, messages)
}

// PostMessage appends to the community feed, members only. Multipart with
// a "body" field, an optional PDF "file" field, or both
// POST /api/communities/:id/messages
func (h *CommunityHandler) PostMessage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid community id")
		return
	}

	file, err := readUpload(c, "file")
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	msg, err := h.communityService.PostMessage(
		c.Request.Context(), middleware.GetUserID(c), uint(id), c.PostForm("body"), file)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyCommunityPost):
			response.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrNotPDF):
			response.BadRequest(c, "community attachments must be PDFs")
		default:
			communityError(c, err)
		}
		return
	}
	response.Created(c, msg)
}

// communityError maps the shared community lookup failures.
func communityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrCommunityMissing):
		response.NotFound(c, "community not found")
	case errors.Is(err, services.ErrNotMember):
		response.Forbidden(c, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}
