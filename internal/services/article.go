package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/innovasus/innovasus/internal/models"
	"github.com/innovasus/innovasus/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrPriceRequired  = errors.New("paid content requires a price greater than zero")
	ErrPDFRequired    = errors.New("article requires a PDF file")
	ErrNotPDF         = errors.New("article file must be a PDF")
	ErrNotOwner       = errors.New("only the owner may modify this content")
	ErrNotInnovator   = errors.New("only innovators may publish content")
	ErrArticleMissing = errors.New("article not found")
)

type ArticleService struct {
	db      *gorm.DB
	storage Storage
	access  *AccessService
}

func NewArticleService(db *gorm.DB, storage Storage, access *AccessService) *ArticleService {
	return &ArticleService{db: db, storage: storage, access: access}
}

type CreateArticleRequest struct {
	Title        string             `form:"title" binding:"required,max=255"`
	Description  string             `form:"description"`
	ResearchArea string             `form:"research_area" binding:"max=100"`
	Payment      models.PaymentType `form:"payment_type" binding:"omitempty,oneof=free paid"`
	Price        *float64           `form:"price"`
}

// ArticleView is an article as seen by a particular viewer. PDFURL is only
// populated when the gate lets the viewer through.
type ArticleView struct {
	models.Article
	CanView bool   `json:"can_view"`
	PDFURL  string `json:"pdf_url,omitempty"`
}

// normalizePayment applies the free/paid pricing rules shared by articles
// and media posts: paid needs a positive price, free never carries one.
func normalizePayment(payment models.PaymentType, price *float64) (models.PaymentType, *float64, error) {
	if payment == "" {
		payment = models.PaymentFree
	}
	if payment == models.PaymentPaid {
		if price == nil || *price <= 0 {
			return "", nil, ErrPriceRequired
		}
		return payment, price, nil
	}
	return payment, nil, nil
}

// Create publishes an article. The PDF goes to blob storage first; a failed
// insert removes the orphaned blob.
func (s *ArticleService) Create(ctx context.Context, author *models.User, req *CreateArticleRequest, pdf ProofUpload) (*models.Article, error) {
	if !author.IsInnovator() && author.Role != "admin" {
		return nil, ErrNotInnovator
	}
	if len(pdf.Content) == 0 {
		return nil, ErrPDFRequired
	}
	if strings.ToLower(filepath.Ext(pdf.Filename)) != ".pdf" {
		return nil, ErrNotPDF
	}

	payment, price, err := normalizePayment(req.Payment, req.Price)
	if err != nil {
		return nil, err
	}

	key, err := s.storage.Save(ctx, SaveInput{
		Content:     pdf.Content,
		Filename:    pdf.Filename,
		ContentType: pdf.ContentType,
		Prefix:      "articles",
	})
	if err != nil {
		return nil, err
	}

	article := models.Article{
		UserID:       author.ID,
		Title:        req.Title,
		Description:  req.Description,
		ResearchArea: req.ResearchArea,
		PDFKey:       key,
		Payment:      payment,
		Price:        price,
	}
	if err := s.db.Create(&article).Error; err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			logger.Warnf("[Article] Failed to remove orphaned blob %s: %v", key, delErr)
		}
		return nil, err
	}

	return &article, nil
}

type ArticleListRequest struct {
	Page         int    `form:"page" binding:"min=0"`
	PageSize     int    `form:"page_size" binding:"min=0,max=100"`
	Search       string `form:"search"`
	ResearchArea string `form:"research_area"`
	Payment      string `form:"payment_type" binding:"omitempty,oneof=free paid"`
	UserID       uint   `form:"user_id"`
}

type ArticleListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []ArticleView `json:"items"`
}

// List returns articles with per-viewer gate evaluation applied to each item.
func (s *ArticleService) List(viewerID uint, req *ArticleListRequest) (*ArticleListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.Article{})

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

	var articles []models.Article
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("User").Offset(offset).Limit(req.PageSize).
		Order("created_at DESC").Find(&articles).Error; err != nil {
		return nil, err
	}

	items := make([]ArticleView, 0, len(articles))
	for i := range articles {
		view, err := s.view(viewerID, &articles[i])
		if err != nil {
			return nil, err
		}
		items = append(items, *view)
	}

	return &ArticleListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// Get returns one article with the gate applied for the viewer.
func (s *ArticleService) Get(viewerID uint, id uint) (*ArticleView, error) {
	var article models.Article
	if err := s.db.Preload("User").First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArticleMissing
		}
		return nil, err
	}
	return s.view(viewerID, &article)
}

func (s *ArticleService) view(viewerID uint, article *models.Article) (*ArticleView, error) {
	canView, err := s.access.CanViewInfo(viewerID, article.Info())
	if err != nil {
		return nil, err
	}

	view := ArticleView{Article: *article, CanView: canView}
	if canView {
		view.PDFURL = s.storage.URL(article.PDFKey)
	}
	return &view, nil
}

// Delete removes an article, its PDF blob, and any grants or requests that
// point at it. Owner or admin only.
func (s *ArticleService) Delete(ctx context.Context, actor *models.User, id uint) error {
	var article models.Article
	if err := s.db.First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrArticleMissing
		}
		return err
	}

	if article.UserID != actor.ID && actor.Role != "admin" {
		return ErrNotOwner
	}

	var proofKeys []string
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AccessRequest{}).
			Where("content_type = ? AND content_id = ?", models.ContentArticle, id).
			Pluck("proof_key", &proofKeys).Error; err != nil {
			return err
		}
		if err := tx.Where("content_type = ? AND content_id = ?", models.ContentArticle, id).
			Delete(&models.AccessRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("content_type = ? AND content_id = ?", models.ContentArticle, id).
			Delete(&models.AccessGrant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&article).Error
	}); err != nil {
		return err
	}

	// Blob cleanup is best effort; the rows are already gone.
	if err := s.storage.Delete(ctx, article.PDFKey); err != nil {
		logger.Warnf("[Article] Failed to delete blob %s: %v", article.PDFKey, err)
	}
	for _, key := range proofKeys {
		if key == "" {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			logger.Warnf("[Article] Failed to delete proof blob %s: %v", key, err)
		}
	}

	return nil
}
