package services

import (
	"context"
	"errors"

	"github.com/innovasus/innovasus/internal/models"
	"github.com/innovasus/innovasus/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrSelfFollow   = errors.New("cannot follow yourself")
)

type UserService struct {
	db      *gorm.DB
	storage Storage
}

func NewUserService(db *gorm.DB, storage Storage) *UserService {
	return &UserService{db: db, storage: storage}
}

// Profile is the public face of a user plus follower counts.
type Profile struct {
	models.User
	Followers         int64  `json:"followers"`
	Following         int64  `json:"following"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
}

func (s *UserService) GetProfile(id uint) (*Profile, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var followers, following int64
	s.db.Model(&models.Follow{}).Where("following_id = ?", id).Count(&followers)
	s.db.Model(&models.Follow{}).Where("follower_id = ?", id).Count(&following)

	profile := Profile{User: user, Followers: followers, Following: following}
	if user.ProfilePicture != "" {
		profile.ProfilePictureURL = s.storage.URL(user.ProfilePicture)
	}
	return &profile, nil
}

type UpdateProfileRequest struct {
	Fullname     string `json:"fullname" binding:"omitempty,max=100"`
	Institution  string `json:"institution" binding:"max=200"`
	ResearchArea string `json:"research_area" binding:"max=100"`
}

func (s *UserService) UpdateProfile(id uint, req *UpdateProfileRequest) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, ErrUserNotFound
	}

	if req.Fullname != "" {
		user.Fullname = req.Fullname
	}
	user.Institution = req.Institution
	user.ResearchArea = req.ResearchArea

	if err := s.db.Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SetProfilePicture stores the new picture and drops the old blob.
func (s *UserService) SetProfilePicture(ctx context.Context, id uint, upload ProofUpload) (string, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return "", ErrUserNotFound
	}

	if models.DetectFileCategory(upload.Filename) != models.FileImage {
		return "", ErrBadFileType
	}

	key, err := s.storage.Save(ctx, SaveInput{
		Content:     upload.Content,
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		Prefix:      "avatars",
	})
	if err != nil {
		return "", err
	}

	oldKey := user.ProfilePicture
	if err := s.db.Model(&user).Update("profile_picture", key).Error; err != nil {
		return "", err
	}

	if oldKey != "" {
		if err := s.storage.Delete(ctx, oldKey); err != nil {
			logger.Warnf("[User] Failed to delete old avatar %s: %v", oldKey, err)
		}
	}

	return s.storage.URL(key), nil
}

type UserSearchRequest struct {
	Page         int    `form:"page" binding:"min=0"`
	PageSize     int    `form:"page_size" binding:"min=0,max=100"`
	Search       string `form:"search"`
	UserType     string `form:"user_type" binding:"omitempty,oneof=reader innovator"`
	ResearchArea string `form:"research_area"`
}

type UserSearchResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []models.User `json:"items"`
}

func (s *UserService) Search(req *UserSearchRequest) (*UserSearchResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.User{}).Where("is_active = ?", true)

	if req.Search != "" {
		like := "%" + req.Search + "%"
		query = query.Where("fullname LIKE ? OR institution LIKE ?", like, like)
	}
	if req.UserType != "" {
		query = query.Where("user_type = ?", req.UserType)
	}
	if req.ResearchArea != "" {
		query = query.Where("research_area = ?", req.ResearchArea)
	}

	var total int64
	query.Count(&total)

	var users []models.User
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).
		Order("fullname ASC").Find(&users).Error; err != nil {
		return nil, err
	}

	return &UserSearchResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    users,
	}, nil
}

// Follow makes followerID follow followingID. Idempotent.
func (s *UserService) Follow(followerID, followingID uint) error {
	if followerID == followingID {
		return ErrSelfFollow
	}

	var count int64
	s.db.Model(&models.User{}).Where("id = ?", followingID).Count(&count)
	if count == 0 {
		return ErrUserNotFound
	}

	follow := models.Follow{FollowerID: followerID, FollowingID: followingID}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "follower_id"}, {Name: "following_id"}},
		DoNothing: true,
	}).Create(&follow).Error
}

// Unfollow removes the relation. Succeeds even if it did not exist.
func (s *UserService) Unfollow(followerID, followingID uint) error {
	return s.db.Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{}).Error
}

// Followers lists the users following the given user.
func (s *UserService) Followers(id uint) ([]models.User, error) {
	var users []models.User
	err := s.db.Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.following_id = ?", id).
		Order("follows.created_at DESC").Find(&users).Error
	return users, err
}

// Following lists the users the given user follows.
func (s *UserService) Following(id uint) ([]models.User, error) {
	var users []models.User
	err := s.db.Joins("JOIN follows ON follows.following_id = users.id").
		Where("follows.follower_id = ?", id).
		Order("follows.created_at DESC").Find(&users).Error
	return users, err
}

// IsFollowing reports whether follower follows following.
func (s *UserService) IsFollowing(followerID, followingID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	return count > 0, err
}
