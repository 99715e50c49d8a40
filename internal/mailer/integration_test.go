package mailer

import (
	"os"
	"testing"

	"github.com/citylistings/listing-service/internal/config"
)

// Needs a reachable SMTP server; gated on TEST_RECEIVER_EMAIL.
func TestSendListingCreatedEmail_Integration(t *testing.T) {
	to := os.Getenv("TEST_RECEIVER_EMAIL")
	if to == "" {
		t.Skip("TEST_RECEIVER_EMAIL not set, skipping integration test")
	}

	m := NewSMTPMailer(config.SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     587,
		Email:    os.Getenv("SMTP_EMAIL"),
		Password: os.Getenv("SMTP_PASSWORD"),
	})
	if err := m.SendListingCreatedEmail(to, "Integration Test Listing"); err != nil {
		t.Errorf("failed to send email: %v", err)
	}
}
