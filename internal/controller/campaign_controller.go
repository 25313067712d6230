// internal/controller/campaign_controller.go
package controller

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/newsflow/internal/errors"
	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/pkg/httputil"
	"github.com/unclebandit/newsflow/internal/repository"
	"github.com/unclebandit/newsflow/internal/service"
)

type CampaignController struct {
	Repo     repository.CampaignRepositoryInterface
	Tracking *service.TrackingService
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := c.Repo.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	log.Println("📊 Loaded", len(campaigns), "campaigns")
	httputil.OK(w, campaigns)
}

func (c *CampaignController) ReplaceCampaigns(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Campaigns *[]model.Campaign `json:"campaigns"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.Campaigns == nil {
		httputil.BadRequest(w, "campaigns array is required")
		return
	}

	if err := c.Repo.ReplaceAll(r.Context(), *body.Campaigns); err != nil {
		httputil.InternalError(w, err)
		return
	}
	log.Println("✅ Saved", len(*body.Campaigns), "campaigns")
	httputil.OK(w, countResponse{Success: true, Count: len(*body.Campaigns)})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id := model.ParseID(chi.URLParam(r, "id"))

	campaign, err := c.Repo.GetByID(r.Context(), id)
	if appErrors.IsCampaignNotFound(err) {
		httputil.NotFound(w, "Campaign not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, campaign)
}

// ReconcileCampaign rebuilds the campaign's opened/clicked view from the
// tracking log.
func (c *CampaignController) ReconcileCampaign(w http.ResponseWriter, r *http.Request) {
	id := model.ParseID(chi.URLParam(r, "id"))

	changes, err := c.Tracking.Reconcile(r.Context(), id)
	if appErrors.IsCampaignNotFound(err) {
		httputil.NotFound(w, "Campaign not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	log.Printf("🔁 Reconciled campaign %s: %d changes", id, changes)
	httputil.OK(w, map[string]any{"success": true, "changes": changes})
}
