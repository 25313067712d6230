package repository

import (
	"context"
	"fmt"

	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/store"
)

type EventRepositoryInterface interface {
	// Append adds ev at the end of the log and drops the oldest events
	// beyond capacity.
	Append(ctx context.Context, ev model.TrackingEvent) error
	List(ctx context.Context) ([]model.TrackingEvent, error)
}

// EventRepository is the bounded tracking-event log.
type EventRepository struct {
	Store    store.Backend
	Capacity int
}

func (r *EventRepository) capacity() int {
	if r.Capacity <= 0 {
		return model.DefaultEventLogCapacity
	}
	return r.Capacity
}

func (r *EventRepository) Append(ctx context.Context, ev model.TrackingEvent) error {
	limit := r.capacity()
	err := r.Store.Update(ctx, KeyTrackingEvents, func(current []byte) ([]byte, error) {
		events := decodeList[model.TrackingEvent](KeyTrackingEvents, current)
		events = append(events, ev)
		if len(events) > limit {
			events = events[len(events)-limit:]
		}
		return encodeList(KeyTrackingEvents, events)
	})
	if err != nil {
		return fmt.Errorf("append tracking event: %w", err)
	}
	return nil
}

func (r *EventRepository) List(ctx context.Context) ([]model.TrackingEvent, error) {
	data, err := r.Store.Read(ctx, KeyTrackingEvents)
	if err != nil {
		return nil, fmt.Errorf("list tracking events: %w", err)
	}
	return decodeList[model.TrackingEvent](KeyTrackingEvents, data), nil
}
