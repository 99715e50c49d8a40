package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type MockMailer struct {
	SentTo    []string
	LastTitle string
}

func (m *MockMailer) SendListingCreatedEmail(toEmail, listingTitle string) error {
	m.SentTo = append(m.SentTo, toEmail)
	m.LastTitle = listingTitle
	return nil
}

func TestMailerInterface(t *testing.T) {
	var m Mailer = &MockMailer{}
	err := m.SendListingCreatedEmail("owner@example.com", "Deep tissue massage")

	assert.NoError(t, err)
	mock := m.(*MockMailer)
	assert.Equal(t, []string{"owner@example.com"}, mock.SentTo)
	assert.Equal(t, "Deep tissue massage", mock.LastTitle)
}
