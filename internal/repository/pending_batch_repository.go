package repository

import (
	"context"
	"fmt"

	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/store"
)

type BatchRepositoryInterface interface {
	List(ctx context.Context) ([]model.PendingBatch, error)
	ReplaceAll(ctx context.Context, batches []model.PendingBatch) error
	// Remove deletes the first batch match accepts and reports whether one was found.
	Remove(ctx context.Context, match func(index int, b model.PendingBatch) bool) (bool, error)
}

// BatchRepository stores pending batches as opaque JSON values.
type BatchRepository struct {
	Store store.Backend
}

func (r *BatchRepository) List(ctx context.Context) ([]model.PendingBatch, error) {
	data, err := r.Store.Read(ctx, KeyPendingBatches)
	if err != nil {
		return nil, fmt.Errorf("list pending batches: %w", err)
	}
	return decodeList[model.PendingBatch](KeyPendingBatches, data), nil
}

func (r *BatchRepository) ReplaceAll(ctx context.Context, batches []model.PendingBatch) error {
	data, err := encodeList(KeyPendingBatches, batches)
	if err != nil {
		return err
	}
	if err := r.Store.Write(ctx, KeyPendingBatches, data); err != nil {
		return fmt.Errorf("save pending batches: %w", err)
	}
	return nil
}

func (r *BatchRepository) Remove(ctx context.Context, match func(index int, b model.PendingBatch) bool) (bool, error) {
	var removed bool
	err := r.Store.Update(ctx, KeyPendingBatches, func(current []byte) ([]byte, error) {
		removed = false
		batches := decodeList[model.PendingBatch](KeyPendingBatches, current)
		for i, b := range batches {
			if match(i, b) {
				removed = true
				batches = append(batches[:i], batches[i+1:]...)
				return encodeList(KeyPendingBatches, batches)
			}
		}
		return nil, store.ErrSkipWrite
	})
	if err != nil {
		return false, fmt.Errorf("remove pending batch: %w", err)
	}
	return removed, nil
}
