package sponsor

import (
	"context"

	"github.com/core-coin/go-core/v2/common"

	"github.com/core-coin/adsponsor/internal/models"
)

// CreateAd registers a new active advertisement. reward_amount is stored
// but plays no part in fees or payouts.
func (s *Sponsor) CreateAd(ctx context.Context, caller common.Address, p models.CreateAdParams) (*models.Advertisement, error) {
	var ad *models.Advertisement
	err := s.repo.Atomic(ctx, func(tx models.Store) error {
		state, err := tx.GetPoolState(ctx)
		if err != nil {
			return err
		}
		if err := requireAdmin(state, caller); err != nil {
			return err
		}
		if err := requireNotPaused(state); err != nil {
			return err
		}
		if err := s.validateAd(p); err != nil {
			return err
		}
		ad = &models.Advertisement{
			ID:              p.ID,
			URL:             p.URL,
			Content:         p.Content,
			RewardAmount:    p.RewardAmount,
			DisplayDuration: p.DisplayDuration,
			IsActive:        true,
			CreatedAt:       s.now(),
		}
		return tx.CreateAdvertisement(ctx, ad)
	})
	return s.adResult("create_ad", models.EventAdCreated, caller, ad, err)
}

// ToggleAd flips is_active. Pending requests referencing the ad are unaffected.
func (s *Sponsor) ToggleAd(ctx context.Context, caller common.Address, id string) (*models.Advertisement, error) {
	var ad *models.Advertisement
	err := s.repo.Atomic(ctx, func(tx models.Store) error {
		state, err := tx.GetPoolState(ctx)
		if err != nil {
			return err
		}
		if err := requireAdmin(state, caller); err != nil {
			return err
		}
		if ad, err = tx.GetAdvertisement(ctx, id); err != nil {
			return err
		}
		ad.IsActive = !ad.IsActive
		return tx.UpdateAdvertisement(ctx, ad)
	})
	return s.adResult("toggle_ad", models.EventAdToggled, caller, ad, err)
}

// GetAd returns the advertisement with the given id.
func (s *Sponsor) GetAd(ctx context.Context, id string) (*models.Advertisement, error) {
	return s.repo.GetAdvertisement(ctx, id)
}

// ListAds returns all advertisements, or only active ones.
func (s *Sponsor) ListAds(ctx context.Context, activeOnly bool) ([]*models.Advertisement, error) {
	return s.repo.ListAdvertisements(ctx, activeOnly)
}

func (s *Sponsor) adResult(op string, eventType models.EventType, caller common.Address, ad *models.Advertisement, err error) (*models.Advertisement, error) {
	var event *models.Event
	if err == nil {
		event = models.NewEvent(eventType, caller, s.now())
		event.AdID = ad.ID
		event.Content = ad.Content
		event.Flag = ad.IsActive
		s.logger.Info("Advertisement updated", "operation", op, "ad", ad.ID, "active", ad.IsActive)
	}
	s.finish(op, err, event)
	if err != nil {
		return nil, err
	}
	return ad, nil
}
