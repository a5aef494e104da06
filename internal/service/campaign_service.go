// internal/service/campaign_service.go
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/wabroadcast/backend/internal/errors"
	"github.com/wabroadcast/backend/internal/gateway"
	"github.com/wabroadcast/backend/internal/model"
	"github.com/wabroadcast/backend/internal/store"
)

// CampaignService is the admission layer: create/list/delete campaigns over
// the store. Dispatch itself is owned by the dispatcher; this service never
// touches recipient state after creation. Store must be the same Guard the
// dispatcher writes through, so admission writes cannot clobber a tick's
// just-persisted recipient state.
type CampaignService struct {
	Store   *store.Guard
	Gateway gateway.Client

	// Now decides the initial status of a scheduled campaign; tests pin it.
	Now func() time.Time
}

type CreateCampaignInput struct {
	Name              string
	Message           string
	Recipients        []string
	SenderMode        string
	MinDelaySeconds   int
	MaxDelaySeconds   int
	RotationBatchSize int
	ScheduledAt       *time.Time
}

// CampaignDetails is a campaign plus aggregate per-status recipient counts.
type CampaignDetails struct {
	*model.Campaign
	Stats map[string]int `json:"stats"`
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create validates the request, assigns id and initial status and appends
// the campaign to the store.
func (s *CampaignService) Create(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, appErrors.NewValidation("name", "must not be empty")
	}
	if in.Message == "" {
		return nil, appErrors.NewValidation("message", "must not be empty")
	}
	if strings.TrimSpace(in.SenderMode) == "" {
		return nil, appErrors.NewValidation("sender_mode", "must be an account id or "+model.SenderAutoRotate)
	}
	if len(in.Recipients) == 0 {
		return nil, appErrors.NewValidation("recipients", "must not be empty")
	}
	for _, number := range in.Recipients {
		if strings.TrimSpace(number) == "" {
			return nil, appErrors.NewValidation("recipients", "recipient number must not be empty")
		}
	}
	if in.MinDelaySeconds < 0 || in.MaxDelaySeconds < 0 {
		return nil, appErrors.NewValidation("min_delay_seconds", "delays must not be negative")
	}
	if in.MinDelaySeconds > in.MaxDelaySeconds {
		return nil, appErrors.NewValidation("min_delay_seconds", "must not exceed max_delay_seconds")
	}
	if in.RotationBatchSize < 0 {
		return nil, appErrors.NewValidation("rotation_batch_size", "must be positive")
	}
	if in.RotationBatchSize == 0 {
		in.RotationBatchSize = 1
	}

	now := s.now()
	c := &model.Campaign{
		ID:                uuid.NewString(),
		Name:              in.Name,
		Message:           in.Message,
		SenderMode:        in.SenderMode,
		RotationBatchSize: in.RotationBatchSize,
		Status:            model.StatusInProgress,
		ScheduledAt:       in.ScheduledAt,
		MinDelaySeconds:   in.MinDelaySeconds,
		MaxDelaySeconds:   in.MaxDelaySeconds,
		Recipients:        make([]model.Recipient, 0, len(in.Recipients)),
		CreatedAt:         now,
	}
	if in.ScheduledAt != nil && in.ScheduledAt.After(now) {
		c.Status = model.StatusScheduled
	}
	for _, number := range in.Recipients {
		c.Recipients = append(c.Recipients, model.Recipient{
			Number:         number,
			DeliveryStatus: model.DeliveryPending,
		})
	}

	err := s.Store.Update(ctx, func(campaigns []*model.Campaign) ([]*model.Campaign, bool) {
		return append(campaigns, c), true
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns the full campaign list in creation order.
func (s *CampaignService) List(ctx context.Context) ([]*model.Campaign, error) {
	return s.Store.Load(ctx)
}

// Get returns one campaign with its aggregate recipient stats.
func (s *CampaignService) Get(ctx context.Context, id string) (*CampaignDetails, error) {
	campaigns, err := s.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range campaigns {
		if c.ID == id {
			stats := map[string]int{
				"total":   len(c.Recipients),
				"pending": 0,
				"sent":    0,
				"failed":  0,
			}
			for _, r := range c.Recipients {
				stats[string(r.DeliveryStatus)]++
			}
			return &CampaignDetails{Campaign: c, Stats: stats}, nil
		}
	}
	return nil, appErrors.NewCampaignNotFound(id)
}

// Delete removes a campaign unconditionally, mid-flight included. Deleting
// an unknown id is not an error.
func (s *CampaignService) Delete(ctx context.Context, id string) error {
	return s.Store.Update(ctx, func(campaigns []*model.Campaign) ([]*model.Campaign, bool) {
		kept := campaigns[:0]
		removed := false
		for _, c := range campaigns {
			if c.ID == id {
				removed = true
				continue
			}
			kept = append(kept, c)
		}
		return kept, removed
	})
}

// ListAccounts passes the gateway's active sending accounts through to the
// UI so it can offer a sender picker.
func (s *CampaignService) ListAccounts(ctx context.Context) ([]gateway.Account, error) {
	return s.Gateway.ListActiveAccounts(ctx)
}
