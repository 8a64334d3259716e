package services

import (
	"fmt"
	"strings"

	"github.com/innovasus/innovasus/internal/models"
	"github.com/innovasus/innovasus/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// SchedulerService owns the recurring housekeeping jobs: purging expired
// refresh tokens, trimming old system logs, and mailing admins a digest of
// requests still waiting for review.
type SchedulerService struct {
	db            *gorm.DB
	authService   *AuthService
	logService    *SystemLogService
	emailService  *EmailService
	accessService *AccessService
	cronScheduler *cron.Cron
	digestEntryID cron.EntryID
}

func NewSchedulerService(db *gorm.DB, auth *AuthService, logs *SystemLogService, email *EmailService, access *AccessService) *SchedulerService {
	return &SchedulerService{
		db:            db,
		authService:   auth,
		logService:    logs,
		emailService:  email,
		accessService: access,
	}
}

func (s *SchedulerService) Start() {
	s.cronScheduler = cron.New()

	// Housekeeping runs in the quiet hours.
	if _, err := s.cronScheduler.AddFunc("0 3 * * *", s.runHousekeeping); err != nil {
		logger.Errorf("[Scheduler] Failed to add housekeeping job: %v", err)
	}

	s.scheduleDigest()

	s.cronScheduler.Start()
	logger.Infof("[Scheduler] Started")
}

func (s *SchedulerService) Stop() {
	if s.cronScheduler != nil {
		s.cronScheduler.Stop()
	}
}

func (s *SchedulerService) runHousekeeping() {
	purged, err := s.authService.PurgeExpiredRefreshTokens()
	if err != nil {
		logger.Errorf("[Scheduler] Refresh token purge failed: %v", err)
	} else if purged > 0 {
		logger.Infof("[Scheduler] Purged %d expired refresh tokens", purged)
	}

	s.logService.RunCleanup()
}

func (s *SchedulerService) scheduleDigest() {
	if s.digestEntryID != 0 {
		s.cronScheduler.Remove(s.digestEntryID)
	}

	digestTime := s.digestTime()
	parts := strings.Split(digestTime, ":")
	hour := "8"
	minute := "0"
	if len(parts) == 2 {
		hour = parts[0]
		minute = parts[1]
	}

	cronExpr := fmt.Sprintf("%s %s * * *", minute, hour)

	entryID, err := s.cronScheduler.AddFunc(cronExpr, func() {
		if err := s.SendPendingDigest(); err != nil {
			logger.Errorf("[Scheduler] Pending digest failed: %v", err)
		}
	})
	if err != nil {
		logger.Errorf("[Scheduler] Failed to add digest job: %v", err)
		return
	}

	s.digestEntryID = entryID
	logger.Infof("[Scheduler] Pending digest scheduled at %s (cron: %s)", digestTime, cronExpr)
}

func (s *SchedulerService) digestTime() string {
	var config models.SystemConfig
	if err := s.db.Where("config_key = ?", "digest_time").First(&config).Error; err != nil {
		return "08:00"
	}
	return config.Value
}

func (s *SchedulerService) digestEnabled() bool {
	var config models.SystemConfig
	if err := s.db.Where("config_key = ?", "email_admin_digest").First(&config).Error; err != nil {
		return false
	}
	return config.Value == "true"
}

// SendPendingDigest mails every admin a summary of requests still pending.
// Skips silently when the digest is disabled or nothing is waiting.
func (s *SchedulerService) SendPendingDigest() error {
	if !s.digestEnabled() {
		return nil
	}

	pending, err := s.accessService.ListAllPending(&PendingRequestListRequest{Page: 1, PageSize: 100})
	if err != nil {
		return err
	}
	if pending.Total == 0 {
		return nil
	}

	var recipients []string
	if err := s.db.Model(&models.User{}).
		Where("role = ? AND is_active = ?", "admin", true).
		Pluck("email", &recipients).Error; err != nil {
		return err
	}

	return s.emailService.SendPendingDigest(recipients, pending.Items)
}
