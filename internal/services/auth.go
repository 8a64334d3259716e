package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/innovasus/innovasus/internal/config"
	"github.com/innovasus/innovasus/internal/models"
	"github.com/innovasus/innovasus/internal/utils"
	"github.com/innovasus/innovasus/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserDisabled       = errors.New("user is disabled")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidVerifyToken = errors.New("invalid or expired verification token")
)

// verifyTokenTTL bounds how long an emailed verification link stays valid.
const verifyTokenTTL = 48 * time.Hour

type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
	queue     TaskQueue
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, queue TaskQueue) *AuthService {
	return &AuthService{db: db, jwtConfig: jwtCfg, queue: queue}
}

type RegisterRequest struct {
	Email        string          `json:"email" binding:"required,email"`
	Password     string          `json:"password" binding:"required,min=8"`
	Fullname     string          `json:"fullname" binding:"required,max=100"`
	UserType     models.UserType `json:"user_type" binding:"omitempty,oneof=reader innovator"`
	Institution  string          `json:"institution" binding:"max=200"`
	ResearchArea string          `json:"research_area" binding:"max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
	User            *models.User
}

type RefreshResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
}

// Register creates an inactive-until-verified account and queues the
// verification email. The emailed token is stored hashed, like a password.
func (s *AuthService) Register(req *RegisterRequest) (*models.User, error) {
	var count int64
	s.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count)
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	userType := req.UserType
	if userType == "" {
		userType = models.UserTypeReader
	}

	token, tokenHash, err := generateOpaqueToken()
	if err != nil {
		return nil, err
	}
	expires := time.Now().Add(verifyTokenTTL)

	user := models.User{
		Email:         req.Email,
		Password:      hashedPassword,
		Fullname:      req.Fullname,
		UserType:      userType,
		Role:          "user",
		Institution:   req.Institution,
		ResearchArea:  req.ResearchArea,
		VerifyToken:   tokenHash,
		VerifyExpires: &expires,
		IsActive:      true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(&NotificationTask{
			Kind:   NotifyVerifyEmail,
			UserID: user.ID,
			Token:  token,
		}); err != nil {
			logger.Warnf("[Auth] Failed to enqueue verification email for user %d: %v", user.ID, err)
		}
	}

	return &user, nil
}

// VerifyEmail activates the account matching the emailed token.
func (s *AuthService) VerifyEmail(token string) error {
	if token == "" {
		return ErrInvalidVerifyToken
	}

	hash := hashOpaqueToken(token)

	var user models.User
	if err := s.db.Where("verify_token = ?", hash).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidVerifyToken
		}
		return err
	}

	if user.VerifyExpires == nil || time.Now().After(*user.VerifyExpires) {
		return ErrInvalidVerifyToken
	}

	return s.db.Model(&user).Updates(map[string]interface{}{
		"email_verified": true,
		"verify_token":   "",
		"verify_expires": nil,
	}).Error
}

// ResendVerification rotates the verification token and queues a fresh email.
// Succeeds silently for unknown or already verified addresses.
func (s *AuthService) ResendVerification(email string) error {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}

	token, tokenHash, err := generateOpaqueToken()
	if err != nil {
		return err
	}
	expires := time.Now().Add(verifyTokenTTL)

	if err := s.db.Model(&user).Updates(map[string]interface{}{
		"verify_token":   tokenHash,
		"verify_expires": expires,
	}).Error; err != nil {
		return err
	}

	if s.queue != nil {
		return s.queue.Enqueue(&NotificationTask{
			Kind:   NotifyVerifyEmail,
			UserID: user.ID,
			Token:  token,
		})
	}
	return nil
}

// Login authenticates a user and issues an access/refresh token pair.
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	var user models.User
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	accessHours := s.accessTokenExpireHours()
	refreshHours := s.refreshTokenExpireHours()

	token, err := utils.GenerateToken(user.ID, user.Email, user.Role, accessHours)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshHash, err := generateOpaqueToken()
	if err != nil {
		return nil, err
	}

	refreshExpireAt := time.Now().Add(time.Duration(refreshHours) * time.Hour)
	refreshRecord := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		ExpiresAt:   refreshExpireAt,
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}
	if err := s.db.Create(&refreshRecord).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	s.db.Save(&user)

	return &LoginResult{
		AccessToken:     token,
		AccessExpireAt:  time.Now().Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refreshToken,
		RefreshExpireAt: refreshExpireAt,
		User:            &user,
	}, nil
}

// Refresh rotates a refresh token: the old one is revoked and linked to its
// replacement so reuse of a rotated token is detectable.
func (s *AuthService) Refresh(refreshToken string, clientIP, userAgent string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token required")
	}

	hash := hashOpaqueToken(refreshToken)

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", hash).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("invalid refresh token")
		}
		return nil, err
	}

	if stored.RevokedAt != nil {
		return nil, errors.New("refresh token revoked")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, errors.New("refresh token expired")
	}

	var user models.User
	if err := s.db.First(&user, stored.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("user not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	accessHours := s.accessTokenExpireHours()
	refreshHours := s.refreshTokenExpireHours()

	newAccessToken, err := utils.GenerateToken(user.ID, user.Email, user.Role, accessHours)
	if err != nil {
		return nil, err
	}

	newRefreshToken, newRefreshHash, err := generateOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newRefresh := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   newRefreshHash,
		ExpiresAt:   now.Add(time.Duration(refreshHours) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newRefresh).Error; err != nil {
			return err
		}
		return tx.Model(&stored).Updates(map[string]interface{}{
			"revoked_at":           now,
			"replaced_by_token_id": newRefresh.ID,
		}).Error
	}); err != nil {
		return nil, err
	}

	return &RefreshResult{
		AccessToken:     newAccessToken,
		AccessExpireAt:  time.Now().Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    newRefreshToken,
		RefreshExpireAt: newRefresh.ExpiresAt,
	}, nil
}

func (s *AuthService) RevokeRefreshToken(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	hash := hashOpaqueToken(refreshToken)
	now := time.Now()
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Update("revoked_at", now).Error
}

// PurgeExpiredRefreshTokens deletes refresh tokens past their expiry.
// Invoked by the daily scheduler.
func (s *AuthService) PurgeExpiredRefreshTokens() (int64, error) {
	result := s.db.Where("expires_at < ?", time.Now()).Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}

func (s *AuthService) accessTokenExpireHours() int {
	if s.jwtConfig.ExpireHour > 0 {
		return s.jwtConfig.ExpireHour
	}
	return 24
}

func (s *AuthService) refreshTokenExpireHours() int {
	if s.jwtConfig.RefreshExpireHours > 0 {
		return s.jwtConfig.RefreshExpireHours
	}
	return 720
}

func generateOpaqueToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	tokenHash = hashOpaqueToken(token)
	return token, tokenHash, nil
}

func hashOpaqueToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateAdminIfNotExists creates the default admin account on first boot.
func (s *AuthService) CreateAdminIfNotExists() error {
	var count int64
	s.db.Model(&models.User{}).Where("role = ?", "admin").Count(&count)

	if count == 0 {
		hashedPassword, err := utils.HashPassword("admin")
		if err != nil {
			return err
		}

		admin := models.User{
			Email:         "admin@innovasus.local",
			Password:      hashedPassword,
			Fullname:      "Administrator",
			UserType:      models.UserTypeInnovator,
			Role:          "admin",
			EmailVerified: true,
			IsActive:      true,
		}

		return s.db.Create(&admin).Error
	}

	return nil
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return errors.New("user not found")
	}

	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return errors.New("incorrect old password")
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	user.Password = hashedPassword
	return s.db.Save(&user).Error
}
