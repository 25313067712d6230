package service

import (
	"context"
	"log"

	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/pkg/logger"
	"github.com/unclebandit/newsflow/internal/queue"
)

// SendJob is the payload published on queue.TopicNewsletterSends.
type SendJob struct {
	Request SendRequest `json:"request"`
}

// SendWorker runs queued newsletter sends.
type SendWorker struct {
	Newsletter *NewsletterService
	// Done is called with each finished batch; optional.
	Done func(job SendJob, result *SendResult)
}

func NewSendWorker(newsletter *NewsletterService) *SendWorker {
	return &SendWorker{Newsletter: newsletter}
}

// Start subscribes the worker to the newsletter topic.
func (w *SendWorker) Start(q queue.Queue) error {
	return q.Subscribe(queue.TopicNewsletterSends, w.Handle)
}

// Handle processes one job. It never returns an error: a batch that already
// reached some recipients must not be re-run by queue retries.
func (w *SendWorker) Handle(payload any) error {
	var job SendJob
	if err := queue.Decode(payload, &job); err != nil {
		log.Println("⚠️ Invalid newsletter job:", err)
		return nil
	}

	ctx := context.Background()
	log.Printf("📩 Processing queued newsletter for campaign %s", job.Request.CampaignID)

	result := w.Newsletter.SendCampaign(ctx, job.Request)
	if err := w.Newsletter.RecordDeliveries(ctx, job.Request.CampaignID, result.SentRecipients); err != nil {
		log.Println("⚠️ Failed to record deliveries:", err)
	}

	log.Printf("✅ Queued newsletter for campaign %s done: sent=%d failed=%d",
		job.Request.CampaignID, result.Sent, result.Failed)

	if w.Done != nil {
		w.Done(job, result)
	}
	return nil
}

// StartEventLog consumes tracking and provider events and logs them. It
// keeps both topics drained until something downstream needs them.
func StartEventLog(q queue.Queue) error {
	if err := q.Subscribe(queue.TopicTrackingEvents, func(payload any) error {
		var ev model.TrackingEvent
		if err := queue.Decode(payload, &ev); err != nil {
			log.Println("⚠️ Invalid tracking event:", err)
			return nil
		}
		logger.Debug("tracking event", "type", string(ev.Type), "campaign", ev.CampaignID.String(), "email", ev.Email)
		return nil
	}); err != nil {
		return err
	}
	return q.Subscribe(queue.TopicProviderEvents, func(payload any) error {
		var ev struct {
			Type string `json:"type"`
		}
		if err := queue.Decode(payload, &ev); err != nil {
			log.Println("⚠️ Invalid provider event:", err)
			return nil
		}
		log.Println("📬 Provider event:", ev.Type)
		return nil
	})
}
