// Package app wires configuration into repositories, services and the queue.
// The server, the worker and the CLI all start from Build.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/unclebandit/newsflow/internal/config"
	"github.com/unclebandit/newsflow/internal/mailer"
	"github.com/unclebandit/newsflow/internal/pkg/logger"
	"github.com/unclebandit/newsflow/internal/queue"
	"github.com/unclebandit/newsflow/internal/repository"
	"github.com/unclebandit/newsflow/internal/service"
	"github.com/unclebandit/newsflow/internal/store"
)

type App struct {
	Config *config.Config
	Store  store.Backend
	Queue  queue.Queue

	Subscribers *repository.SubscriberRepository
	Campaigns   *repository.CampaignRepository
	Batches     *repository.BatchRepository
	Events      *repository.EventRepository

	Tracking   *service.TrackingService
	Newsletter *service.NewsletterService
}

// Build opens storage and the mail provider described by cfg. Jobs go to
// RabbitMQ or Kafka when one is configured and stay in process otherwise.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	backend, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	sender, err := mailer.New(ctx, cfg.Mail)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("mail provider: %w", err)
	}

	q, err := openQueue(cfg.Queue)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("connect queue: %w", err)
	}

	a := &App{
		Config:      cfg,
		Store:       backend,
		Queue:       q,
		Subscribers: &repository.SubscriberRepository{Store: backend},
		Campaigns:   &repository.CampaignRepository{Store: backend},
		Batches:     &repository.BatchRepository{Store: backend},
		Events:      &repository.EventRepository{Store: backend, Capacity: cfg.Tracking.EventLogCapacity},
	}
	a.Tracking = &service.TrackingService{
		Events:    a.Events,
		Campaigns: a.Campaigns,
		Queue:     q,
	}
	a.Newsletter = &service.NewsletterService{
		Sender: sender,
		Pacer: &service.FixedPacer{
			Interval: cfg.Send.Interval(),
			Jitter:   cfg.Send.Jitter(),
			Cap:      cfg.Send.Cap(),
		},
		BaseURL:   cfg.Server.PublicURL,
		Templates: service.NewTemplateService(),
		Campaigns: a.Campaigns,
	}
	return a, nil
}

func openQueue(cfg config.QueueConfig) (queue.Queue, error) {
	switch {
	case cfg.AMQPURL != "":
		q, err := queue.DialAMQP(cfg.AMQPURL)
		if err != nil {
			return nil, err
		}
		log.Println("🐇 Connected to RabbitMQ")
		return q, nil
	case len(cfg.KafkaBrokers) > 0:
		q, err := queue.DialKafka(cfg.KafkaBrokers, cfg.KafkaGroupID)
		if err != nil {
			return nil, err
		}
		log.Printf("📨 Connected to Kafka (%d brokers)", len(cfg.KafkaBrokers))
		return q, nil
	default:
		return queue.NewInMemoryQueue(), nil
	}
}

// InProcessQueue reports whether jobs are handled inside this process.
func (a *App) InProcessQueue() bool {
	_, ok := a.Queue.(*queue.InMemoryQueue)
	return ok
}

// Close drains in-process jobs and releases the queue and storage.
func (a *App) Close() error {
	var errs []error
	switch q := a.Queue.(type) {
	case *queue.InMemoryQueue:
		q.Wait()
	case *queue.AMQPQueue:
		errs = append(errs, q.Close())
	case *queue.KafkaQueue:
		errs = append(errs, q.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}
