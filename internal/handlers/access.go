package handlers

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/innovasus/innovasus/internal/middleware"
	"github.com/innovasus/innovasus/internal/models"
	"github.com/innovasus/innovasus/internal/services"
	"github.com/innovasus/innovasus/pkg/response"
)

// maxProofSize bounds payment slip uploads.
const maxProofSize = 10 << 20

type AccessHandler struct {
	accessService *services.AccessService
	authService   *services.AuthService
}

func NewAccessHandler(access *services.AccessService, auth *services.AuthService) *AccessHandler {
	return &AccessHandler{accessService: access, authService: auth}
}

func parseContentRef(c *gin.Context, contentType, contentID string) (models.ContentRef, bool) {
	var ref models.ContentRef
	switch models.ContentType(contentType) {
	case models.ContentArticle:
		ref.Type = models.ContentArticle
	case models.ContentMedia:
		ref.Type = models.ContentMedia
	default:
		response.BadRequest(c, "content_type must be 'article' or 'media'")
		return ref, false
	}

	id, err := strconv.ParseUint(contentID, 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid content_id")
		return ref, false
	}
	ref.ID = uint(id)
	return ref, true
}

// Check reports whether the caller can view a content item
// GET /api/access/check?content_type=article&content_id=1
func (h *AccessHandler) Check(c *gin.Context) {
	ref, ok := parseContentRef(c, c.Query("content_type"), c.Query("content_id"))
	if !ok {
		return
	}

	canView, err := h.accessService.CanView(middleware.GetUserID(c), ref)
	if err != nil {
		if errors.Is(err, services.ErrContentNotFound) {
			response.NotFound(c, "content not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"can_view": canView})
}

// Submit files a payment claim with its slip
// POST /api/access/requests (multipart: content_type, content_id, proof)
func (h *AccessHandler) Submit(c *gin.Context) {
	ref, ok := parseContentRef(c, c.PostForm("content_type"), c.PostForm("content_id"))
	if !ok {
		return
	}

	var proof services.ProofUpload
	if fileHeader, err := c.FormFile("proof"); err == nil {
		if fileHeader.Size > maxProofSize {
			response.BadRequest(c, "payment slip exceeds the 10MB limit")
			return
		}
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
		proof = services.ProofUpload{
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Content:     content,
		}
	}

	userID := middleware.GetUserID(c)
	request, err := h.accessService.SubmitAccessRequest(c.Request.Context(), userID, ref, proof)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrContentNotFound):
			response.NotFound(c, "content not found")
		case errors.Is(err, services.ErrContentFree),
			errors.Is(err, services.ErrOwnerRequest),
			errors.Is(err, services.ErrProofRequired):
			response.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrAlreadyGranted),
			errors.Is(err, services.ErrAlreadyApproved),
			errors.Is(err, services.ErrRequestPending):
			response.Conflict(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	services.LogInfo("access", "submit", "access request submitted", &userID, c.ClientIP(), c.Request.UserAgent(),
		gin.H{"request_id": request.ID, "content_type": ref.Type, "content_id": ref.ID})
	response.Created(c, request)
}

// PendingForOwner lists pending requests against the caller's content
// GET /api/access/requests/pending
func (h *AccessHandler) PendingForOwner(c *gin.Context) {
	var req services.PendingRequestListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.accessService.ListPendingForOwner(middleware.GetUserID(c), &req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, resp)
}

// AdminListPending lists every pending request
// GET /api/admin/access/requests
func (h *AccessHandler) AdminListPending(c *gin.Context) {
	var req services.PendingRequestListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.accessService.ListAllPending(&req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, resp)
}

// AdminApprove confirms a payment claim and opens the grant
// POST /api/admin/access/requests/:id/approve
func (h *AccessHandler) AdminApprove(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return
	}

	approver, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		response.Unauthorized(c, "user not found")
		return
	}

	request, err := h.accessService.ApproveAccessRequest(uint(id), approver)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRequestNotFound):
			response.NotFound(c, "request not found")
		case errors.Is(err, services.ErrNotAdmin):
			response.Forbidden(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	services.LogInfo("access", "approve", "access request approved", &approver.ID, c.ClientIP(), c.Request.UserAgent(),
		gin.H{"request_id": request.ID, "requester_id": request.UserID})
	response.Success(c, request)
}
