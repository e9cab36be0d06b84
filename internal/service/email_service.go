package service

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	cfg "github.com/Geotechcompany/synovora/configs"
)

// EmailService sends post content to recipients over SMTP.
type EmailService struct {
	conf cfg.SMTP
}

func NewEmailService(conf cfg.SMTP) *EmailService {
	return &EmailService{conf: conf}
}

func (s *EmailService) Configured() bool {
	return s.conf.Host != "" && s.conf.User != "" && s.conf.Password != ""
}

func (s *EmailService) Send(recipients []string, subject, intro, content string) error {
	if !s.Configured() {
		return fmt.Errorf("SMTP is not configured")
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients provided")
	}

	from := s.conf.From
	if from == "" {
		from = s.conf.User
	}

	var body strings.Builder
	if intro != "" {
		body.WriteString(intro)
		body.WriteString("\n\n")
	}
	body.WriteString(content)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s",
		from, strings.Join(recipients, ", "), subject, body.String())

	auth := smtp.PlainAuth("", s.conf.User, s.conf.Password, s.conf.Host)
	addr := s.conf.Host + ":" + s.conf.Port

	if err := smtp.SendMail(addr, auth, from, recipients, []byte(msg)); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
