package controller

import (
	"log"
	"net/http"
	"strings"

	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/pkg/httputil"
	"github.com/unclebandit/newsflow/internal/pkg/logger"
	"github.com/unclebandit/newsflow/internal/queue"
	"github.com/unclebandit/newsflow/internal/service"
)

type NewsletterController struct {
	Service *service.NewsletterService
	Queue   queue.Queue
}

// SendEmail sends one untracked email. Provider failures are reported in
// the body with a 200, as the dashboard expects.
func (c *NewsletterController) SendEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		HTML    string `json:"html"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.To) == "" {
		httputil.BadRequest(w, "to is required")
		return
	}

	log.Println("📧 Sending test email to:", logger.RedactEmail(body.To))
	res, err := c.Service.SendEmail(r.Context(), body.To, body.Subject, body.HTML)
	if err != nil {
		log.Println("❌ Error:", err)
		httputil.OK(w, map[string]any{"success": false, "error": err.Error()})
		return
	}
	log.Println("✅ Test email sent!")
	httputil.OK(w, map[string]any{"success": true, "data": res})
}

type sendNewsletterBody struct {
	Subscribers *[]model.Subscriber `json:"subscribers"`
	Subject     string              `json:"subject"`
	HTML        string              `json:"html"`
	CampaignID  model.ID            `json:"campaignId"`
	ServerURL   string              `json:"serverUrl"`
	Personalize bool                `json:"personalize"`
}

func decodeSendRequest(w http.ResponseWriter, r *http.Request) (service.SendRequest, bool) {
	var body sendNewsletterBody
	if !httputil.Decode(w, r, &body) {
		return service.SendRequest{}, false
	}
	if body.Subscribers == nil {
		httputil.BadRequest(w, "subscribers array is required")
		return service.SendRequest{}, false
	}
	return service.SendRequest{
		Subscribers: *body.Subscribers,
		Subject:     body.Subject,
		HTML:        body.HTML,
		CampaignID:  body.CampaignID,
		ServerURL:   body.ServerURL,
		Personalize: body.Personalize,
	}, true
}

// SendNewsletter runs the whole batch before answering; expect roughly
// 600ms per subscriber.
func (c *NewsletterController) SendNewsletter(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSendRequest(w, r)
	if !ok {
		return
	}
	result := c.Service.SendCampaign(r.Context(), req)
	httputil.OK(w, result)
}

// QueueNewsletter hands the batch to the send worker and returns at once.
func (c *NewsletterController) QueueNewsletter(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSendRequest(w, r)
	if !ok {
		return
	}
	if c.Queue == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "send queue is not configured")
		return
	}
	if err := c.Queue.Publish(queue.TopicNewsletterSends, service.SendJob{Request: req}); err != nil {
		httputil.InternalError(w, err)
		return
	}
	log.Printf("📥 Queued newsletter for campaign %s (%d subscribers)", req.CampaignID, len(req.Subscribers))
	httputil.Accepted(w, map[string]any{"queued": true, "campaignId": req.CampaignID})
}
