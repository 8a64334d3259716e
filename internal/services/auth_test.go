package services

import (
	"errors"
	"testing"

	"github.com/innovasus/innovasus/internal/config"
	"github.com/innovasus/innovasus/internal/models"
	"github.com/innovasus/innovasus/internal/utils"
	"gorm.io/gorm"
)

// recordQueue captures enqueued notifications for inspection.
type recordQueue struct {
	tasks []*NotificationTask
}

func (q *recordQueue) Enqueue(task *NotificationTask) error {
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordQueue) IsAsync() bool { return false }
func (q *recordQueue) Close() error  { return nil }

func (q *recordQueue) last() *NotificationTask {
	if len(q.tasks) == 0 {
		return nil
	}
	return q.tasks[len(q.tasks)-1]
}

func newAuthTestService(t *testing.T) (*AuthService, *gorm.DB, *recordQueue) {
	t.Helper()
	db := newTestDB(t)
	if err := db.AutoMigrate(&models.RefreshToken{}); err != nil {
		t.Fatalf("failed to migrate refresh tokens: %v", err)
	}
	queue := &recordQueue{}
	utils.SetJWTSecret("test-secret")
	jwtCfg := &config.JWTConfig{Secret: "test-secret", ExpireHour: 1, RefreshExpireHours: 24}
	return NewAuthService(db, jwtCfg, queue), db, queue
}

func registerReq(email string) *RegisterRequest {
	return &RegisterRequest{
		Email:    email,
		Password: "s3cret-pass",
		Fullname: "Ana Silva",
		UserType: models.UserTypeInnovator,
	}
}

func TestRegister_QueuesVerification(t *testing.T) {
	svc, db, queue := newAuthTestService(t)

	user, err := svc.Register(registerReq("ana@example.com"))
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if user.EmailVerified {
		t.Error("EmailVerified = true at registration, expected false")
	}
	if user.Password == "s3cret-pass" {
		t.Error("password stored in plain text")
	}

	task := queue.last()
	if task == nil || task.Kind != NotifyVerifyEmail {
		t.Fatalf("verification email not queued, got %+v", task)
	}
	if task.Token == "" {
		t.Error("queued task has no verification token")
	}

	// The stored token is a hash, never the emailed value.
	var stored models.User
	if err := db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if stored.VerifyToken == task.Token {
		t.Error("verification token stored unhashed")
	}

	_, err = svc.Register(registerReq("ana@example.com"))
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate register: err = %v, expected ErrEmailTaken", err)
	}
}

func TestLogin_RequiresVerifiedEmail(t *testing.T) {
	svc, _, queue := newAuthTestService(t)

	if _, err := svc.Register(registerReq("ana@example.com")); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	login := &LoginRequest{Email: "ana@example.com", Password: "s3cret-pass"}
	_, err := svc.Login(login, "127.0.0.1", "test-agent")
	if !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("login before verification: err = %v, expected ErrEmailNotVerified", err)
	}

	if err := svc.VerifyEmail(queue.last().Token); err != nil {
		t.Fatalf("VerifyEmail error: %v", err)
	}

	result, err := svc.Login(login, "127.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("login after verification error: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Error("login result missing tokens")
	}
	if result.User.LastLogin == nil {
		t.Error("LastLogin not recorded")
	}

	_, err = svc.Login(&LoginRequest{Email: "ana@example.com", Password: "wrong"}, "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, expected ErrInvalidCredentials", err)
	}
	_, err = svc.Login(&LoginRequest{Email: "nobody@example.com", Password: "x"}, "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v, expected ErrInvalidCredentials", err)
	}
}

func TestVerifyEmail_BadToken(t *testing.T) {
	svc, _, _ := newAuthTestService(t)

	if err := svc.VerifyEmail(""); !errors.Is(err, ErrInvalidVerifyToken) {
		t.Errorf("empty token: err = %v, expected ErrInvalidVerifyToken", err)
	}
	if err := svc.VerifyEmail("deadbeef"); !errors.Is(err, ErrInvalidVerifyToken) {
		t.Errorf("unknown token: err = %v, expected ErrInvalidVerifyToken", err)
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, db, queue := newAuthTestService(t)

	if _, err := svc.Register(registerReq("ana@example.com")); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := svc.VerifyEmail(queue.last().Token); err != nil {
		t.Fatalf("VerifyEmail error: %v", err)
	}
	login, err := svc.Login(&LoginRequest{Email: "ana@example.com", Password: "s3cret-pass"}, "", "")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	refreshed, err := svc.Refresh(login.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("refresh token not rotated")
	}

	// The old token is revoked and linked to its replacement.
	if _, err := svc.Refresh(login.RefreshToken, "", ""); err == nil {
		t.Error("reusing a rotated refresh token succeeded, expected rejection")
	}

	var revoked models.RefreshToken
	if err := db.Where("token_hash = ?", hashOpaqueToken(login.RefreshToken)).First(&revoked).Error; err != nil {
		t.Fatalf("failed to load old token: %v", err)
	}
	if revoked.RevokedAt == nil || revoked.ReplacedByTokenID == nil {
		t.Error("old token missing revocation linkage")
	}
}

func TestRevokeRefreshToken(t *testing.T) {
	svc, _, queue := newAuthTestService(t)

	if _, err := svc.Register(registerReq("ana@example.com")); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := svc.VerifyEmail(queue.last().Token); err != nil {
		t.Fatalf("VerifyEmail error: %v", err)
	}
	login, err := svc.Login(&LoginRequest{Email: "ana@example.com", Password: "s3cret-pass"}, "", "")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	if err := svc.RevokeRefreshToken(login.RefreshToken); err != nil {
		t.Fatalf("RevokeRefreshToken error: %v", err)
	}
	if _, err := svc.Refresh(login.RefreshToken, "", ""); err == nil {
		t.Error("refresh with revoked token succeeded, expected rejection")
	}
}

func TestCreateAdminIfNotExists(t *testing.T) {
	svc, db, _ := newAuthTestService(t)

	if err := svc.CreateAdminIfNotExists(); err != nil {
		t.Fatalf("CreateAdminIfNotExists error: %v", err)
	}
	// Second call is a no-op.
	if err := svc.CreateAdminIfNotExists(); err != nil {
		t.Fatalf("second CreateAdminIfNotExists error: %v", err)
	}

	var admins int64
	db.Model(&models.User{}).Where("role = ?", "admin").Count(&admins)
	if admins != 1 {
		t.Errorf("admin count = %d, expected 1", admins)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, queue := newAuthTestService(t)

	user, err := svc.Register(registerReq("ana@example.com"))
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := svc.VerifyEmail(queue.last().Token); err != nil {
		t.Fatalf("VerifyEmail error: %v", err)
	}

	err = svc.ChangePassword(user.ID, &ChangePasswordRequest{OldPassword: "wrong", NewPassword: "new-password"})
	if err == nil {
		t.Error("change with wrong old password succeeded, expected failure")
	}

	err = svc.ChangePassword(user.ID, &ChangePasswordRequest{OldPassword: "s3cret-pass", NewPassword: "new-password"})
	if err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}

	if _, err := svc.Login(&LoginRequest{Email: "ana@example.com", Password: "new-password"}, "", ""); err != nil {
		t.Errorf("login with new password error: %v", err)
	}
	if _, err := svc.Login(&LoginRequest{Email: "ana@example.com", Password: "s3cret-pass"}, "", ""); err == nil {
		t.Error("login with old password succeeded after change")
	}
}
