package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/citylistings/listing-service/internal/config"
)

// Mailer sends owner-facing notifications. The HTTP layer calls it off the
// request path; a failed send never fails the originating request.
type Mailer interface {
	SendListingCreatedEmail(toEmail, listingTitle string) error
}

type SMTPMailer struct {
	cfg config.SMTPConfig
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendListingCreatedEmail(toEmail, listingTitle string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.Email)
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", "Your listing is live")
	msg.SetBody("text/plain", fmt.Sprintf("Your listing '%s' has been published.", listingTitle))

	d := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Email, m.cfg.Password)
	return d.DialAndSend(msg)
}
