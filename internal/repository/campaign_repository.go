package repository

import (
	"context"
	"errors"
	"fmt"

	appErrors "github.com/unclebandit/newsflow/internal/errors"
	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/store"
)

type CampaignRepositoryInterface interface {
	List(ctx context.Context) ([]model.Campaign, error)
	ReplaceAll(ctx context.Context, campaigns []model.Campaign) error
	GetByID(ctx context.Context, id model.ID) (*model.Campaign, error)
	// Update runs fn on the campaign with the given id inside one store
	// update. fn reports whether it changed anything; nothing is written
	// when it did not.
	Update(ctx context.Context, id model.ID, fn func(c *model.Campaign) (bool, error)) (bool, error)
}

type CampaignRepository struct {
	Store store.Backend
}

func (r *CampaignRepository) List(ctx context.Context) ([]model.Campaign, error) {
	data, err := r.Store.Read(ctx, KeyCampaigns)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return decodeList[model.Campaign](KeyCampaigns, data), nil
}

func (r *CampaignRepository) ReplaceAll(ctx context.Context, campaigns []model.Campaign) error {
	data, err := encodeList(KeyCampaigns, campaigns)
	if err != nil {
		return err
	}
	if err := r.Store.Write(ctx, KeyCampaigns, data); err != nil {
		return fmt.Errorf("save campaigns: %w", err)
	}
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id model.ID) (*model.Campaign, error) {
	campaigns, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range campaigns {
		if campaigns[i].ID.Equal(id) {
			return &campaigns[i], nil
		}
	}
	return nil, appErrors.NewCampaignNotFound(id.String())
}

func (r *CampaignRepository) Update(ctx context.Context, id model.ID, fn func(c *model.Campaign) (bool, error)) (bool, error) {
	var changed bool
	err := r.Store.Update(ctx, KeyCampaigns, func(current []byte) ([]byte, error) {
		changed = false
		campaigns := decodeList[model.Campaign](KeyCampaigns, current)

		var target *model.Campaign
		for i := range campaigns {
			if campaigns[i].ID.Equal(id) {
				target = &campaigns[i]
				break
			}
		}
		if target == nil {
			return nil, appErrors.NewCampaignNotFound(id.String())
		}

		ok, err := fn(target)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, store.ErrSkipWrite
		}
		changed = true
		return encodeList(KeyCampaigns, campaigns)
	})
	if err != nil {
		var nf *appErrors.ErrCampaignNotFound
		if errors.As(err, &nf) {
			return false, nf
		}
		return false, fmt.Errorf("update campaign %s: %w", id, err)
	}
	return changed, nil
}
