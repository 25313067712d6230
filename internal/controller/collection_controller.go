package controller

import (
	"log"
	"net/http"

	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/pkg/httputil"
	"github.com/unclebandit/newsflow/internal/repository"
)

type countResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

type SubscriberController struct {
	Repo repository.SubscriberRepositoryInterface
}

func (c *SubscriberController) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subscribers, err := c.Repo.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	log.Println("📋 Loaded", len(subscribers), "subscribers")
	httputil.OK(w, subscribers)
}

// ReplaceSubscribers stores the list, collapsing duplicate addresses.
func (c *SubscriberController) ReplaceSubscribers(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Subscribers *[]model.Subscriber `json:"subscribers"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.Subscribers == nil {
		httputil.BadRequest(w, "subscribers array is required")
		return
	}

	count, err := c.Repo.ReplaceAll(r.Context(), *body.Subscribers)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	log.Println("✅ Saved", count, "subscribers")
	httputil.OK(w, countResponse{Success: true, Count: count})
}

type BatchController struct {
	Repo repository.BatchRepositoryInterface
}

func (c *BatchController) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := c.Repo.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	log.Println("⏳ Loaded", len(batches), "pending batches")
	httputil.OK(w, batches)
}

func (c *BatchController) ReplaceBatches(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Batches *[]model.PendingBatch `json:"batches"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.Batches == nil {
		httputil.BadRequest(w, "batches array is required")
		return
	}

	if err := c.Repo.ReplaceAll(r.Context(), *body.Batches); err != nil {
		httputil.InternalError(w, err)
		return
	}
	log.Println("✅ Saved", len(*body.Batches), "pending batches")
	httputil.OK(w, countResponse{Success: true, Count: len(*body.Batches)})
}
