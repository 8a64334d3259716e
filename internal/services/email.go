package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/innovasus/innovasus/internal/config"
	"github.com/innovasus/innovasus/internal/models"
	"github.com/innovasus/innovasus/pkg/logger"
	"gorm.io/gorm"
)

// EmailService sends transactional email: address verification, access
// request notifications to content owners, approval notifications to
// requesters. It is the processor behind the notification task queue.
type EmailService struct {
	db  *gorm.DB
	cfg *config.SMTPConfig
}

func NewEmailService(db *gorm.DB, cfg *config.SMTPConfig) *EmailService {
	return &EmailService{db: db, cfg: cfg}
}

func (s *EmailService) enabled() bool {
	if !s.cfg.Enabled || s.cfg.Host == "" {
		return false
	}
	var toggle models.SystemConfig
	if err := s.db.Where("config_key = ?", "email_enabled").First(&toggle).Error; err == nil {
		return toggle.Value == "true"
	}
	return true
}

// Process dispatches a notification task. Used as the worker/queue processor.
func (s *EmailService) Process(ctx context.Context, task *NotificationTask) error {
	switch task.Kind {
	case NotifyVerifyEmail:
		return s.sendVerification(task.UserID, task.Token)
	case NotifyRequestSubmitted:
		return s.sendRequestSubmitted(task.RequestID)
	case NotifyRequestApproved:
		return s.sendRequestApproved(task.RequestID)
	default:
		logger.Warnf("[Email] unknown notification kind %q", task.Kind)
		return nil
	}
}

func (s *EmailService) sendVerification(userID uint, token string) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return err
	}

	baseURL := "http://localhost:8080"
	if config.GlobalConfig != nil {
		baseURL = config.GlobalConfig.Server.BaseURL
	}
	link := fmt.Sprintf("%s/api/auth/verify-email?token=%s", baseURL, token)

	var sb strings.Builder
	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>Welcome to InnovaSUS, %s!</h2>", user.Fullname))
	sb.WriteString("<p>Confirm your email address to activate your account:</p>")
	sb.WriteString(fmt.Sprintf("<p><a href=\"%s\">Verify my email</a></p>", link))
	sb.WriteString("<p style=\"color: #888; font-size: 12px;\">The link expires in 48 hours.</p>")
	sb.WriteString("</body></html>")

	return s.send([]string{user.Email}, "[InnovaSUS] Verify your email", sb.String())
}

// requestContext resolves the request plus the pieces the emails need.
func (s *EmailService) requestContext(requestID uint) (*models.AccessRequest, *models.User, string, error) {
	var request models.AccessRequest
	if err := s.db.Preload("User").First(&request, requestID).Error; err != nil {
		return nil, nil, "", err
	}

	var ownerID uint
	var title string
	switch request.ContentType {
	case models.ContentArticle:
		var a models.Article
		if err := s.db.First(&a, request.ContentID).Error; err != nil {
			return nil, nil, "", err
		}
		ownerID, title = a.UserID, a.Title
	case models.ContentMedia:
		var p models.MediaPost
		if err := s.db.First(&p, request.ContentID).Error; err != nil {
			return nil, nil, "", err
		}
		ownerID, title = p.UserID, p.Title
	default:
		return nil, nil, "", errors.New("unknown content type")
	}

	var owner models.User
	if err := s.db.First(&owner, ownerID).Error; err != nil {
		return nil, nil, "", err
	}

	return &request, &owner, title, nil
}

func (s *EmailService) sendRequestSubmitted(requestID uint) error {
	request, owner, title, err := s.requestContext(requestID)
	if err != nil {
		return err
	}

	requester := "a user"
	if request.User != nil {
		requester = request.User.Fullname
	}

	var sb strings.Builder
	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString("<h2>New access request</h2>")
	sb.WriteString(fmt.Sprintf("<p><b>%s</b> uploaded a payment slip for <b>%s</b>.</p>", requester, title))
	sb.WriteString("<p>An administrator will review the slip and approve the request.</p>")
	sb.WriteString("</body></html>")

	return s.send([]string{owner.Email}, fmt.Sprintf("[InnovaSUS] Access request for %q", title), sb.String())
}

func (s *EmailService) sendRequestApproved(requestID uint) error {
	request, _, title, err := s.requestContext(requestID)
	if err != nil {
		return err
	}
	if request.User == nil {
		return errors.New("request has no user")
	}

	var sb strings.Builder
	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString("<h2>Access approved</h2>")
	sb.WriteString(fmt.Sprintf("<p>Your payment for <b>%s</b> was confirmed. You now have full access.</p>", title))
	sb.WriteString("</body></html>")

	return s.send([]string{request.User.Email}, fmt.Sprintf("[InnovaSUS] Access to %q approved", title), sb.String())
}

// SendPendingDigest mails admins a summary of pending requests. Invoked by
// the daily scheduler.
func (s *EmailService) SendPendingDigest(recipients []string, pending []models.AccessRequest) error {
	if len(recipients) == 0 || len(pending) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>%d access request(s) awaiting review</h2>", len(pending)))
	sb.WriteString("<table style=\"border-collapse: collapse;\">")
	for _, r := range pending {
		who := fmt.Sprintf("user %d", r.UserID)
		if r.User != nil {
			who = r.User.Fullname
		}
		sb.WriteString(fmt.Sprintf(
			"<tr><td style=\"padding: 6px; border: 1px solid #ddd;\">%s</td><td style=\"padding: 6px; border: 1px solid #ddd;\">%s #%d</td><td style=\"padding: 6px; border: 1px solid #ddd;\">%s</td></tr>",
			who, r.ContentType, r.ContentID, r.CreatedAt.Format("2006-01-02")))
	}
	sb.WriteString("</table>")
	sb.WriteString("</body></html>")

	return s.send(recipients, "[InnovaSUS] Pending access requests", sb.String())
}

func (s *EmailService) send(to []string, subject, body string) error {
	if !s.enabled() {
		logger.Debug().Strs("to", to).Str("subject", subject).Msg("email disabled, skipping send")
		return nil
	}
	if len(to) == 0 {
		return nil
	}

	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}

	headers := make(map[string]string)
	headers["From"] = from
	headers["To"] = strings.Join(to, ",")
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var message strings.Builder
	for k, v := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	var err error
	if s.cfg.UseTLS {
		err = s.sendTLS(addr, auth, from, to, message.String())
	} else {
		err = smtp.SendMail(addr, auth, from, to, []byte(message.String()))
	}

	if err != nil {
		logger.Infof("[Email] Failed to send email: %v", err)
		return err
	}

	logger.Infof("[Email] Sent %q to %v", subject, to)
	return nil
}

func (s *EmailService) sendTLS(addr string, auth smtp.Auth, from string, to []string, message string) error {
	tlsConfig := &tls.Config{
		ServerName: s.cfg.Host,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}

	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}

	if _, err = w.Write([]byte(message)); err != nil {
		return err
	}

	return w.Close()
}
