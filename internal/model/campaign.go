// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	StatusScheduled  CampaignStatus = "scheduled"
	StatusInProgress CampaignStatus = "in_progress"
	StatusSent       CampaignStatus = "sent"
	StatusPartial    CampaignStatus = "partial"
	StatusFailed     CampaignStatus = "failed"
)

// SenderAutoRotate is the sender_mode sentinel that makes the dispatcher
// pick the sending account from the pool of currently active gateway accounts.
const SenderAutoRotate = "auto_rotate"

type Campaign struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Message           string         `json:"message"`
	SenderMode        string         `json:"sender_mode"`
	RotationBatchSize int            `json:"rotation_batch_size"`
	CurrentSender     string         `json:"current_sender,omitempty"`
	SentSinceRotation int            `json:"sent_since_rotation"`
	Status            CampaignStatus `json:"status"`
	ScheduledAt       *time.Time     `json:"scheduled_at,omitempty"`
	MinDelaySeconds   int            `json:"min_delay_seconds"`
	MaxDelaySeconds   int            `json:"max_delay_seconds"`
	Recipients        []Recipient    `json:"recipients"`
	Cursor            int            `json:"cursor"`
	SentCount         int            `json:"sent_count"`
	FailedCount       int            `json:"failed_count"`
	CreatedAt         time.Time      `json:"created_at"`
}

// Rotating reports whether the campaign picks its sender from the active pool.
func (c *Campaign) Rotating() bool {
	return c.SenderMode == SenderAutoRotate
}

// Exhausted reports whether every recipient has been processed.
func (c *Campaign) Exhausted() bool {
	return c.Cursor >= len(c.Recipients)
}

// Clone returns a deep copy; the recipient slice is never shared.
func (c *Campaign) Clone() *Campaign {
	dup := *c
	dup.Recipients = make([]Recipient, len(c.Recipients))
	copy(dup.Recipients, c.Recipients)
	if c.ScheduledAt != nil {
		t := *c.ScheduledAt
		dup.ScheduledAt = &t
	}
	return &dup
}
