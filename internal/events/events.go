// internal/events/events.go
package events

import (
	"context"
	"time"
)

const (
	CampaignStarted  = "campaign.started"
	CampaignFinished = "campaign.finished"
	MessageSent      = "message.sent"
	MessageFailed    = "message.failed"
)

// Event is one dispatch lifecycle notification, consumed by downstream
// analytics. Publication is best effort and never blocks the dispatch loop.
type Event struct {
	Type         string    `json:"type"`
	CampaignID   string    `json:"campaign_id"`
	CampaignName string    `json:"campaign_name"`
	Recipient    string    `json:"recipient,omitempty"`
	Sender       string    `json:"sender,omitempty"`
	Status       string    `json:"status,omitempty"`
	At           time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, ev Event) error { return nil }
