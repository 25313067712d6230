package service

import (
	"context"
	"sync"
	"testing"

	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/queue"
)

func TestSendWorkerProcessesQueuedJob(t *testing.T) {
	_, repo := newTrackingService(t, oneCampaign)
	sender := &MockSender{}
	newsletter := &NewsletterService{Sender: sender, Pacer: &recordingPacer{}, Campaigns: repo}

	var wg sync.WaitGroup
	wg.Add(1)
	var got *SendResult
	worker := NewSendWorker(newsletter)
	worker.Done = func(job SendJob, result *SendResult) {
		got = result
		wg.Done()
	}

	q := queue.NewInMemoryQueue()
	if err := worker.Start(q); err != nil {
		t.Fatal(err)
	}

	job := SendJob{Request: SendRequest{
		Subscribers: subscribers("bob@example.com", "carol@example.com"),
		Subject:     "Queued",
		HTML:        "<p>hi</p>",
		CampaignID:  model.NumericID(1712345678901),
	}}
	if err := q.Publish(queue.TopicNewsletterSends, job); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	q.Wait()

	if got.Sent != 2 {
		t.Fatalf("expected 2 sent, got %+v", got)
	}

	c, err := repo.GetByID(context.Background(), model.ParseID("1712345678901"))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Recipients) != 3 {
		t.Fatalf("expected carol to be added to recipients, got %d", len(c.Recipients))
	}
	if c.Recipients[1].SentAt == nil {
		t.Error("expected bob to be marked as sent")
	}
}

func TestSendWorkerNeverAsksForRetry(t *testing.T) {
	worker := NewSendWorker(&NewsletterService{Sender: &MockSender{}, Pacer: &recordingPacer{}})

	if err := worker.Handle([]byte(`{not json`)); err != nil {
		t.Errorf("invalid job must be dropped, got %v", err)
	}
}

func TestStartEventLogDrainsTopics(t *testing.T) {
	q := queue.NewInMemoryQueue()
	if err := q.Publish(queue.TopicTrackingEvents, model.TrackingEvent{Type: model.EventOpen}); err == nil {
		t.Fatal("expected publish without consumers to fail")
	}

	if err := StartEventLog(q); err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(queue.TopicTrackingEvents, model.TrackingEvent{Type: model.EventOpen, CampaignID: model.ParseID("1")}); err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(queue.TopicProviderEvents, map[string]string{"type": "email.delivered"}); err != nil {
		t.Fatal(err)
	}
	q.Wait()
}
