package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/indexpilot/indexpilot/internal/config"
)

// AddressResolver maps a user ID to an email address. User profiles live
// with the auth collaborator, outside the engine.
type AddressResolver interface {
	EmailFor(ctx context.Context, userID string) (string, error)
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT,default=587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM,default=alerts@indexpilot.dev"`
}

// SMTPSender sends plain-text notification mail. Every public method
// spawns a goroutine and swallows errors after logging them.
type SMTPSender struct {
	cfg     SMTPConfig
	resolve AddressResolver
	log     *zap.Logger

	// swappable for tests
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig, resolve AddressResolver, log *zap.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:     cfg,
		resolve: resolve,
		log:     log.Named("notify"),
		send:    smtp.SendMail,
	}
}

func (s *SMTPSender) Completion(ctx context.Context, userID, jobName string, success, failed, total int) {
	subject := fmt.Sprintf("Indexing job completed: %s", jobName)
	body := fmt.Sprintf(
		"Your indexing job %q finished.\n\nSubmitted: %d of %d URLs\nFailed: %d\n",
		jobName, success, total, failed,
	)
	s.deliver(ctx, userID, subject, body)
}

func (s *SMTPSender) Failure(ctx context.Context, userID, jobName, reason string) {
	subject := fmt.Sprintf("Indexing job failed: %s", jobName)
	body := fmt.Sprintf("Your indexing job %q failed.\n\nReason: %s\n", jobName, reason)
	s.deliver(ctx, userID, subject, body)
}

func (s *SMTPSender) Paused(ctx context.Context, userID, jobName, reason string) {
	subject := fmt.Sprintf("Indexing job paused: %s", jobName)
	body := fmt.Sprintf("Your indexing job %q was paused.\n\n%s\n", jobName, reason)
	s.deliver(ctx, userID, subject, body)
}

func (s *SMTPSender) Resumed(ctx context.Context, userID, jobName string) {
	subject := fmt.Sprintf("Indexing job resumed: %s", jobName)
	body := fmt.Sprintf("Your indexing job %q was automatically resumed after the quota reset.\n", jobName)
	s.deliver(ctx, userID, subject, body)
}

func (s *SMTPSender) QuotaAlert(ctx context.Context, userID, accountName string, usage, limit, percentage int, level config.AlertLevel) {
	titles := map[config.AlertLevel]string{
		config.AlertWarning:   "Quota warning",
		config.AlertCritical:  "Quota critical",
		config.AlertExhausted: "Quota exhausted",
	}
	subject := fmt.Sprintf("%s: %s (%d%% used)", titles[level], accountName, percentage)
	body := fmt.Sprintf(
		"Service account %q has used %d of %d daily requests (%d%%).\n",
		accountName, usage, limit, percentage,
	)
	s.deliver(ctx, userID, subject, body)
}

func (s *SMTPSender) deliver(ctx context.Context, userID, subject, body string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("notification panic recovered", zap.Any("panic", r))
			}
		}()

		to, err := s.resolve.EmailFor(ctx, userID)
		if err != nil {
			s.log.Warn("resolve notification address failed",
				zap.String("user_id", userID), zap.Error(err))
			return
		}

		msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
			s.cfg.From, to, subject, body)

		addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
		var auth smtp.Auth
		if s.cfg.Username != "" {
			auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		}

		if err := s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
			s.log.Warn("send notification failed",
				zap.String("user_id", userID),
				zap.String("subject", subject),
				zap.Error(err),
			)
		}
	}()
}
