// internal/handler/tracking_handler.go
package handler

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/pkg/logger"
	"github.com/unclebandit/newsflow/internal/service"
)

// pixelGIF is a 1x1 transparent GIF.
var pixelGIF, _ = base64.StdEncoding.DecodeString("R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7")

// Tracker is the part of the tracking service the handlers need.
type Tracker interface {
	Track(ctx context.Context, eventType model.EventType, campaignID model.ID, email string, url *string) error
}

// TrackingHandler serves the open pixel and click redirect. Both always
// answer the client, whatever happens to the event.
type TrackingHandler struct {
	Tracker Tracker
}

func NewTrackingHandler(t *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{Tracker: t}
}

func (h *TrackingHandler) Open(w http.ResponseWriter, r *http.Request) {
	campaignID, email := trackingParams(r)
	log.Printf("👁️  Email opened - Campaign: %s, Email: %s", campaignID, logger.RedactEmail(email))

	// Record the event even if the mail client hangs up on us.
	_ = h.Tracker.Track(context.WithoutCancel(r.Context()), model.EventOpen, campaignID, email, nil)

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", strconv.Itoa(len(pixelGIF)))
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelGIF)
}

func (h *TrackingHandler) Click(w http.ResponseWriter, r *http.Request) {
	campaignID, email := trackingParams(r)
	target := r.URL.Query().Get("url")
	log.Printf("🖱️  Link clicked - Campaign: %s, Email: %s, URL: %s", campaignID, logger.RedactEmail(email), target)

	var recorded *string
	if target != "" {
		recorded = &target
	}
	_ = h.Tracker.Track(context.WithoutCancel(r.Context()), model.EventClick, campaignID, email, recorded)

	http.Redirect(w, r, redirectTarget(target), http.StatusFound)
}

// trackingParams reads campaignId and email from the path. chi matches on
// the raw path when it is escaped, so the email may still be encoded.
func trackingParams(r *http.Request) (model.ID, string) {
	campaignID := model.ParseID(unescape(chi.URLParam(r, "campaignId")))
	email := unescape(chi.URLParam(r, "email"))
	return campaignID, email
}

func unescape(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return v
	}
	return s
}

// redirectTarget only follows absolute http(s) links; anything else lands
// on the root page.
func redirectTarget(target string) string {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "/"
	}
	return target
}
