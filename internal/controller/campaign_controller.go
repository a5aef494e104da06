// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/wabroadcast/backend/internal/errors"
	"github.com/wabroadcast/backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name              string   `json:"name"`
		Message           string   `json:"message"`
		Recipients        []string `json:"recipients"`
		SenderMode        string   `json:"sender_mode"`
		MinDelaySeconds   int      `json:"min_delay_seconds"`
		MaxDelaySeconds   int      `json:"max_delay_seconds"`
		RotationBatchSize int      `json:"rotation_batch_size"`
		ScheduledAt       *string  `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	in := service.CreateCampaignInput{
		Name:              body.Name,
		Message:           body.Message,
		Recipients:        body.Recipients,
		SenderMode:        body.SenderMode,
		MinDelaySeconds:   body.MinDelaySeconds,
		MaxDelaySeconds:   body.MaxDelaySeconds,
		RotationBatchSize: body.RotationBatchSize,
	}
	if body.ScheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *body.ScheduledAt)
		if err != nil {
			http.Error(w, "invalid scheduled_at: "+err.Error(), http.StatusBadRequest)
			return
		}
		in.ScheduledAt = &t
	}

	campaign, err := c.CampaignService.Create(r.Context(), in)
	if err != nil {
		var ve *appErrors.ValidationError
		if errors.As(err, &ve) {
			http.Error(w, ve.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := c.CampaignService.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": campaigns,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	details, err := c.CampaignService.Get(r.Context(), id)
	if err != nil {
		var nf *appErrors.ErrCampaignNotFound
		if errors.As(err, &nf) {
			http.Error(w, nf.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.CampaignService.Delete(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})
}

func (c *CampaignController) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := c.CampaignService.ListAccounts(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": accounts,
	})
}
