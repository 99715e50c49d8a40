package nats

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects emitted by the listing service. Consumers (search indexing,
// moderation) subscribe to the wildcard listing.>.
const (
	SubjectListingCreated = "listing.created"
	SubjectListingUpdated = "listing.updated"
	SubjectListingDeleted = "listing.deleted"
	SubjectPhotoDeleted   = "listing.photo.deleted"
	SubjectPhoneRevealed  = "listing.phone.revealed"
)

// ListingEvent is the common envelope for all listing.> subjects.
type ListingEvent struct {
	ListingID string    `json:"listingId"`
	OwnerID   string    `json:"ownerId,omitempty"`
	Title     string    `json:"title,omitempty"`
	City      string    `json:"city,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher struct {
	conn *nats.Conn
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn}, nil
}

func (p *Publisher) Publish(ctx context.Context, subject string, event ListingEvent) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, data)
}

func (p *Publisher) Close() {
	p.conn.Close()
}
