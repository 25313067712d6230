package repository

import (
	"context"
	"fmt"

	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/store"
)

// SubscriberRepositoryInterface defines methods used by controllers and the CLI
type SubscriberRepositoryInterface interface {
	List(ctx context.Context) ([]model.Subscriber, error)
	// ReplaceAll de-duplicates by email and returns how many were stored.
	ReplaceAll(ctx context.Context, subscribers []model.Subscriber) (int, error)
}

type SubscriberRepository struct {
	Store store.Backend
}

func (r *SubscriberRepository) List(ctx context.Context) ([]model.Subscriber, error) {
	data, err := r.Store.Read(ctx, KeySubscribers)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return decodeList[model.Subscriber](KeySubscribers, data), nil
}

func (r *SubscriberRepository) ReplaceAll(ctx context.Context, subscribers []model.Subscriber) (int, error) {
	deduped := model.DedupeSubscribers(subscribers)
	data, err := encodeList(KeySubscribers, deduped)
	if err != nil {
		return 0, err
	}
	if err := r.Store.Write(ctx, KeySubscribers, data); err != nil {
		return 0, fmt.Errorf("save subscribers: %w", err)
	}
	return len(deduped), nil
}
