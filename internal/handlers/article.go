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

// maxArticlePDFSize bounds article PDF uploads.
const maxArticlePDFSize = 50 << 20

type ArticleHandler struct {
	articleService *services.ArticleService
	authService    *services.AuthService
}

func NewArticleHandler(db *gorm.DB, storage services.Storage, access *services.AccessService, auth *services.AuthService) *ArticleHandler {
	return &ArticleHandler{
		articleService: services.NewArticleService(db, storage, access),
		authService:    auth,
	}
}

// Create publishes an article from a multipart form
// POST /api/articles
func (h *ArticleHandler) Create(c *gin.Context) {
	var req services.CreateArticleRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	fileHeader, err := c.FormFile("pdf")
	if err != nil {
		response.BadRequest(c, "pdf file required")
		return
	}
	if fileHeader.Size > maxArticlePDFSize {
		response.BadRequest(c, "pdf exceeds the 50MB limit")
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

	author, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		response.Unauthorized(c, "user not found")
		return
	}

	article, err := h.articleService.Create(c.Request.Context(), author, &req, services.ProofUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotInnovator):
			response.Forbidden(c, err.Error())
		case errors.Is(err, services.ErrPDFRequired),
			errors.Is(err, services.ErrNotPDF),
			errors.Is(err, services.ErrPriceRequired):
			response.BadRequest(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	services.LogInfo("article", "create", "article published", &author.ID, c.ClientIP(), c.Request.UserAgent(),
		gin.H{"article_id": article.ID, "payment_type": article.Payment})
	response.Created(c, article)
}

// List returns articles visible to the caller, gate evaluated per item
// GET /api/articles
func (h *ArticleHandler) List(c *gin.Context) {
	var req services.ArticleListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.articleService.List(middleware.GetUserID(c), &req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, resp)
}

// Get returns one article with the gate applied
// GET /api/articles/:id
func (h *ArticleHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid article id")
		return
	}

	view, err := h.articleService.Get(middleware.GetUserID(c), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrArticleMissing) {
			response.NotFound(c, "article not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, view)
}

// Delete removes an article, owner or admin only
// DELETE /api/articles/:id
func (h *ArticleHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid article id")
		return
	}

	actor, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		response.Unauthorized(c, "user not found")
		return
	}

	if err := h.articleService.Delete(c.Request.Context(), actor, uint(id)); err != nil {
		switch {
		case errors.Is(err, services.ErrArticleMissing):
			response.NotFound(c, "article not found")
		case errors.Is(err, services.ErrNotOwner):
			response.Forbidden(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	services.LogInfo("article", "delete", "article deleted", &actor.ID, c.ClientIP(), c.Request.UserAgent(),
		gin.H{"article_id": id})
	response.Success(c, gin.H{"deleted": true})
}
