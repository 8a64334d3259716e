package services

import (
	"errors"
	"strings"

	"github.com/innovasus/innovasus/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrEmptyComment = errors.New("comment body is empty")

// InteractionService handles likes and comments on media posts. Neither is
// gated: engaging with a post does not require access to its documents.
type InteractionService struct {
	db *gorm.DB
}

func NewInteractionService(db *gorm.DB) *InteractionService {
	return &InteractionService{db: db}
}

// LikeResult reports the state after a toggle.
type LikeResult struct {
	PostID uint  `json:"post_id"`
	Liked  bool  `json:"liked"`
	Count  int64 `json:"count"`
}

// ToggleLike likes the post for the user, or removes the like if it
// already exists.
func (s *InteractionService) ToggleLike(userID, postID uint) (*LikeResult, error) {
	if err := s.postExists(postID); err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.Model(&models.PostLike{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&existing).Error; err != nil {
		return nil, err
	}

	liked := existing == 0
	if liked {
		like := models.PostLike{PostID: postID, UserID: userID}
		if err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&like).Error; err != nil {
			return nil, err
		}
	} else {
		if err := s.db.Where("post_id = ? AND user_id = ?", postID, userID).
			Delete(&models.PostLike{}).Error; err != nil {
			return nil, err
		}
	}

	var count int64
	if err := s.db.Model(&models.PostLike{}).
		Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return nil, err
	}
	return &LikeResult{PostID: postID, Liked: liked, Count: count}, nil
}

// LikeCount returns the number of likes on a post.
func (s *InteractionService) LikeCount(postID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

// CommentList is a post's comments plus the total, oldest first.
type CommentList struct {
	Count int64                `json:"count"`
	Items []models.PostComment `json:"items"`
}

// Comments lists the comments on a post, oldest first.
func (s *InteractionService) Comments(postID uint) (*CommentList, error) {
	if err := s.postExists(postID); err != nil {
		return nil, err
	}

	var comments []models.PostComment
	if err := s.db.Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC").Find(&comments).Error; err != nil {
		return nil, err
	}
	return &CommentList{Count: int64(len(comments)), Items: comments}, nil
}

// AddComment appends a comment to a post. The body must not be blank.
func (s *InteractionService) AddComment(userID, postID uint, body string) (*models.PostComment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyComment
	}
	if err := s.postExists(postID); err != nil {
		return nil, err
	}

	comment := models.PostComment{PostID: postID, UserID: userID, Body: body}
	if err := s.db.Create(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (s *InteractionService) postExists(postID uint) error {
	var count int64
	if err := s.db.Model(&models.MediaPost{}).Where("id = ?", postID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrMediaMissing
	}
	return nil
}
