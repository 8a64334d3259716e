package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/innovasus/innovasus/internal/models"
	"github.com/innovasus/innovasus/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCommunityNameTaken = errors.New("a community with this name already exists")
	ErrCommunityMissing   = errors.New("community not found")
	ErrNotMember          = errors.New("only community members can do this")
	ErrNotFollowing       = errors.New("you can only invite users you follow")
	ErrEmptyCommunityPost = errors.New("a message or a file is required")
)

// CommunityService manages member-gated discussion groups. The community
// feed is only readable and writable by members; new members join by
// invitation from an existing member.
type CommunityService struct {
	db      *gorm.DB
	storage Storage
}

func NewCommunityService(db *gorm.DB, storage Storage) *CommunityService {
	return &CommunityService{db: db, storage: storage}
}

type CreateCommunityRequest struct {
	Name        string `form:"name" binding:"required,max=100"`
	Description string `form:"description"`
}

// Create opens a new community. The creator becomes its first member.
// The picture is optional and must be an image.
func (s *CommunityService) Create(ctx context.Context, creatorID uint, req *CreateCommunityRequest, picture *ProofUpload) (*models.Community, error) {
	var count int64
	s.db.Model(&models.Community{}).Where("name = ?", req.Name).Count(&count)
	if count > 0 {
		return nil, ErrCommunityNameTaken
	}

	var pictureKey string
	if picture != nil && !picture.empty() {
		if models.DetectFileCategory(picture.Filename) != models.FileImage {
			return nil, ErrBadFileType
		}
		key, err := s.storage.Save(ctx, SaveInput{
			Content:     picture.Content,
			Filename:    picture.Filename,
			ContentType: picture.ContentType,
			Prefix:      "communities",
		})
		if err != nil {
			return nil, err
		}
		pictureKey = key
	}

	community := models.Community{
		Name:        req.Name,
		Description: req.Description,
		CreatorID:   creatorID,
		PictureKey:  pictureKey,
	}
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&community).Error; err != nil {
			return err
		}
		member := models.CommunityMember{CommunityID: community.ID, UserID: creatorID}
		return tx.Create(&member).Error
	}); err != nil {
		if pictureKey != "" {
			if derr := s.storage.Delete(ctx, pictureKey); derr != nil {
				logger.Warnf("[Community] Failed to remove orphaned picture %s: %v", pictureKey, derr)
			}
		}
		return nil, err
	}

	return &community, nil
}

// CommunityView is a community as listed to a particular viewer.
type CommunityView struct {
	models.Community
	MemberCount int64  `json:"member_count"`
	IsMember    bool   `json:"is_member"`
	PictureURL  string `json:"picture_url,omitempty"`
}

// List returns every community with member counts and the viewer's
// membership flag. Listing is open; the feed itself is not.
func (s *CommunityService) List(viewerID uint) ([]CommunityView, error) {
	var communities []models.Community
	if err := s.db.Preload("Creator").Order("name ASC").Find(&communities).Error; err != nil {
		return nil, err
	}

	views := make([]CommunityView, 0, len(communities))
	for i := range communities {
		c := communities[i]
		view := CommunityView{Community: c}
		s.db.Model(&models.CommunityMember{}).
			Where("community_id = ?", c.ID).Count(&view.MemberCount)
		if viewerID != 0 {
			member, err := s.isMember(c.ID, viewerID)
			if err != nil {
				return nil, err
			}
			view.IsMember = member
		}
		if c.PictureKey != "" {
			view.PictureURL = s.storage.URL(c.PictureKey)
		}
		views = append(views, view)
	}
	return views, nil
}

// CommunityDetail is the members-only view of a community.
type CommunityDetail struct {
	models.Community
	Members    []models.User `json:"members"`
	PictureURL string        `json:"picture_url,omitempty"`
}

// Get returns the community with its member list. Members only.
func (s *CommunityService) Get(viewerID, id uint) (*CommunityDetail, error) {
	community, err := s.requireMember(id, viewerID)
	if err != nil {
		return nil, err
	}

	var members []models.User
	if err := s.db.Joins("JOIN community_members ON community_members.user_id = users.id").
		Where("community_members.community_id = ?", id).
		Order("community_members.created_at ASC").Find(&members).Error; err != nil {
		return nil, err
	}

	detail := CommunityDetail{Community: *community, Members: members}
	if community.PictureKey != "" {
		detail.PictureURL = s.storage.URL(community.PictureKey)
	}
	return &detail, nil
}

// Invite adds a user the actor follows to the community. The actor must be
// a member. Idempotent for users who already joined.
func (s *CommunityService) Invite(actorID, communityID, userID uint) error {
	if _, err := s.requireMember(communityID, actorID); err != nil {
		return err
	}

	var count int64
	s.db.Model(&models.User{}).Where("id = ? AND is_active = ?", userID, true).Count(&count)
	if count == 0 {
		return ErrUserNotFound
	}

	var follows int64
	s.db.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", actorID, userID).
		Count(&follows)
	if follows == 0 {
		return ErrNotFollowing
	}

	member := models.CommunityMember{CommunityID: communityID, UserID: userID}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "community_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&member).Error
}

// CommunityMessageView is a feed entry with its attachment resolved to a URL.
type CommunityMessageView struct {
	models.CommunityMessage
	FileURL string `json:"file_url,omitempty"`
}

// Messages returns the community feed, oldest first. Members only.
func (s *CommunityService) Messages(viewerID, communityID uint) ([]CommunityMessageView, error) {
	if _, err := s.requireMember(communityID, viewerID); err != nil {
		return nil, err
	}

	var messages []models.CommunityMessage
	if err := s.db.Preload("User").
		Where("community_id = ?", communityID).
		Order("created_at ASC").Find(&messages).Error; err != nil {
		return nil, err
	}

	views := make([]CommunityMessageView, 0, len(messages))
	for i := range messages {
		view := CommunityMessageView{CommunityMessage: messages[i]}
		if messages[i].HasFile() {
			view.FileURL = s.storage.URL(messages[i].FileKey)
		}
		views = append(views, view)
	}
	return views, nil
}

// PostMessage appends to the community feed. Members only. A post needs a
// body, a PDF attachment, or both.
func (s *CommunityService) PostMessage(ctx context.Context, viewerID, communityID uint, body string, file *ProofUpload) (*models.CommunityMessage, error) {
	if _, err := s.requireMember(communityID, viewerID); err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	hasFile := file != nil && !file.empty()
	if body == "" && !hasFile {
		return nil, ErrEmptyCommunityPost
	}

	msg := models.CommunityMessage{
		CommunityID: communityID,
		UserID:      viewerID,
		Body:        body,
	}

	if hasFile {
		if strings.ToLower(filepath.Ext(file.Filename)) != ".pdf" {
			return nil, ErrNotPDF
		}
		key, err := s.storage.Save(ctx, SaveInput{
			Content:     file.Content,
			Filename:    file.Filename,
			ContentType: file.ContentType,
			Prefix:      "community-files",
		})
		if err != nil {
			return nil, err
		}
		msg.FileKey = key
		msg.Filename = SanitizeFilename(file.Filename)
	}

	if err := s.db.Create(&msg).Error; err != nil {
		if msg.FileKey != "" {
			if derr := s.storage.Delete(ctx, msg.FileKey); derr != nil {
				logger.Warnf("[Community] Failed to remove orphaned blob %s: %v", msg.FileKey, derr)
			}
		}
		return nil, err
	}
	return &msg, nil
}

// IsMember reports whether the user belongs to the community.
func (s *CommunityService) IsMember(communityID, userID uint) (bool, error) {
	return s.isMember(communityID, userID)
}

func (s *CommunityService) isMember(communityID, userID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.CommunityMember{}).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Count(&count).Error
	return count > 0, err
}

// requireMember loads the community and checks the viewer belongs to it.
func (s *CommunityService) requireMember(communityID, viewerID uint) (*models.Community, error) {
	var community models.Community
	if err := s.db.First(&community, communityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommunityMissing
		}
		return nil, err
	}

	member, err := s.isMember(communityID, viewerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotMember
	}
	return &community, nil
}
