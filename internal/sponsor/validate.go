package sponsor

import (
	"github.com/core-coin/go-core/v2/common"

	"github.com/core-coin/adsponsor/internal/models"
	"github.com/core-coin/adsponsor/pkg/validation"
)

func requireAdmin(state *models.PoolState, caller common.Address) error {
	if validation.IsZeroAddress(caller) || caller != state.Admin {
		return models.ErrUnauthorized
	}
	return nil
}

func requireOwner(request *models.Request, caller common.Address) error {
	if validation.IsZeroAddress(caller) || caller != request.User {
		return models.ErrUnauthorized
	}
	return nil
}

func requireNotPaused(state *models.PoolState) error {
	if state.IsPaused {
		return models.ErrProgramPaused
	}
	return nil
}

func requirePending(request *models.Request) error {
	if request.Status.IsTerminal() {
		return models.ErrInvalidStatus
	}
	return nil
}

func requireFunds(state *models.PoolState, fee uint64) error {
	if state.TotalFunds < fee {
		return models.ErrInsufficientProgramFunds
	}
	return nil
}

// validateAd checks the fields of a new advertisement in declaration order.
func (s *Sponsor) validateAd(p models.CreateAdParams) error {
	if !validation.WithinLength(p.ID, s.params.MaxAdIDLength) {
		return models.ErrInvalidAdID
	}
	if !validation.HasSecureScheme(p.URL) || len(p.URL) > s.params.MaxAdURLLength {
		return models.ErrInvalidAdURL
	}
	if !validation.WithinLength(p.Content, s.params.MaxAdContentLength) {
		return models.ErrInvalidAdContent
	}
	if p.RewardAmount < s.params.MinAdReward {
		return models.ErrRewardTooLow
	}
	if p.DisplayDuration < s.params.MinDisplayDuration {
		return models.ErrInvalidDisplayTime
	}
	return nil
}
