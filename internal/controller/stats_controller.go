package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/pkg/httputil"
	"github.com/unclebandit/newsflow/internal/service"
)

type StatsController struct {
	Tracking *service.TrackingService
}

func (c *StatsController) ListTrackingEvents(w http.ResponseWriter, r *http.Request) {
	events, err := c.Tracking.Events.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, events)
}

func (c *StatsController) CampaignStats(w http.ResponseWriter, r *http.Request) {
	id := model.ParseID(chi.URLParam(r, "campaignId"))

	stats, err := c.Tracking.QueryCampaignStats(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

const (
	AppName    = "NewsFlow Server"
	AppVersion = "1.0.0"
)

type HealthController struct {
	Now func() time.Time
}

func (c *HealthController) Root(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	httputil.OK(w, map[string]any{
		"status":    "ok",
		"app":       AppName,
		"version":   AppVersion,
		"timestamp": now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "healthy"})
}
