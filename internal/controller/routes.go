// internal/controller/routes.go
package controller

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unclebandit/newsflow/internal/handler"
	"github.com/unclebandit/newsflow/internal/queue"
	"github.com/unclebandit/newsflow/internal/repository"
	"github.com/unclebandit/newsflow/internal/service"
)

// Dependencies is everything the router hands out to controllers.
type Dependencies struct {
	Subscribers repository.SubscriberRepositoryInterface
	Campaigns   repository.CampaignRepositoryInterface
	Batches     repository.BatchRepositoryInterface
	Tracking    *service.TrackingService
	Newsletter  *service.NewsletterService
	// Queue is optional; without it the queued send endpoint answers 503.
	Queue queue.Queue
	// AccessLog enables chi's request logger.
	AccessLog bool
}

// NewRouter builds the HTTP surface. CORS is open: the dashboard is served
// from wherever the operator likes and tracking hits come from mail clients.
func NewRouter(d Dependencies) *chi.Mux {
	r := chi.NewRouter()

	if d.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	health := &HealthController{}
	subscribers := &SubscriberController{Repo: d.Subscribers}
	campaigns := &CampaignController{Repo: d.Campaigns, Tracking: d.Tracking}
	batches := &BatchController{Repo: d.Batches}
	newsletters := &NewsletterController{Service: d.Newsletter, Queue: d.Queue}
	stats := &StatsController{Tracking: d.Tracking}
	tracking := &handler.TrackingHandler{Tracker: d.Tracking}
	webhooks := &handler.WebhookHandler{Queue: d.Queue}

	r.Get("/", health.Root)
	r.Get("/health", health.Health)

	r.Get("/subscribers", subscribers.ListSubscribers)
	r.Post("/subscribers", subscribers.ReplaceSubscribers)

	r.Get("/campaigns", campaigns.ListCampaigns)
	r.Post("/campaigns", campaigns.ReplaceCampaigns)
	r.Get("/campaigns/{id}", campaigns.GetCampaign)
	r.Post("/campaigns/{id}/reconcile", campaigns.ReconcileCampaign)

	r.Get("/pending-batches", batches.ListBatches)
	r.Post("/pending-batches", batches.ReplaceBatches)

	r.Post("/send-email", newsletters.SendEmail)
	r.Post("/send-newsletter", newsletters.SendNewsletter)
	r.Post("/send-newsletter/queue", newsletters.QueueNewsletter)

	r.Get("/track/open/{campaignId}/{email}", tracking.Open)
	r.Get("/track/click/{campaignId}/{email}", tracking.Click)

	r.Get("/tracking-events", stats.ListTrackingEvents)
	r.Get("/campaign-stats/{campaignId}", stats.CampaignStats)

	r.Post("/webhook/resend", webhooks.Resend)
	return r
}
