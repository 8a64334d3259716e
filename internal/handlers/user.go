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

// maxAvatarSize bounds profile picture uploads.
const maxAvatarSize = 5 << 20

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(db *gorm.DB, storage services.Storage) *UserHandler {
	return &UserHandler{
		userService: services.NewUserService(db, storage),
	}
}

// GetProfile returns a user's public profile
// GET /api/users/:id
func (h *UserHandler) GetProfile(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	profile, err := h.userService.GetProfile(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, profile)
}

// UpdateProfile updates the caller's own profile
// PUT /api/users/me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(middleware.GetUserID(c), &req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, user)
}

// UploadAvatar replaces the caller's profile picture
// POST /api/users/me/avatar
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "avatar file required")
		return
	}
	if fileHeader.Size > maxAvatarSize {
		response.BadRequest(c, "avatar exceeds the 5MB limit")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	url, err := h.userService.SetProfilePicture(c.Request.Context(), middleware.GetUserID(c), services.ProofUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		if errors.Is(err, services.ErrBadFileType) {
			response.BadRequest(c, "avatar must be an image")
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"profile_picture_url": url})
}

// Search lists users matching the query filters
// GET /api/users
func (h *UserHandler) Search(c *gin.Context) {
	var req services.UserSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.userService.Search(&req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, resp)
}

// Follow makes the caller follow another user
// POST /api/users/:id/follow
func (h *UserHandler) Follow(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	if err := h.userService.Follow(middleware.GetUserID(c), uint(id)); err != nil {
		switch {
		case errors.Is(err, services.ErrSelfFollow):
			response.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			response.NotFound(c, "user not found")
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Success(c, gin.H{"following": true})
}

// Unfollow removes a follow relation
// DELETE /api/users/:id/follow
func (h *UserHandler) Unfollow(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	if err := h.userService.Unfollow(middleware.GetUserID(c), uint(id)); err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"following": false})
}

// Followers lists the users following the given user
// GET /api/users/:id/followers
func (h *UserHandler) Followers(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	users, err := h.userService.Followers(uint(id))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, users)
}

// Following lists the users the given user follows
// GET /api/users/:id/following
func (h *UserHandler) Following(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	users, err := h.userService.Following(uint(id))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, users)
}
