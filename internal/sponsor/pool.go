package sponsor

import (
	"context"

	"github.com/core-coin/go-core/v2/common"

	"github.com/core-coin/adsponsor/internal/models"
	"github.com/core-coin/adsponsor/pkg/checked"
	"github.com/core-coin/adsponsor/pkg/validation"
)

// Initialize creates the pool. A zero admin makes the caller the admin.
func (s *Sponsor) Initialize(ctx context.Context, caller, admin common.Address) (*models.PoolState, error) {
	if validation.IsZeroAddress(admin) {
		admin = caller
	}
	state := &models.PoolState{
		Admin:              admin,
		FeePerAd:           s.params.DefaultFeePerAd,
		BaseTransactionFee: s.params.DefaultBaseFee,
		CreatedAt:          s.now(),
	}

	var err error
	if validation.IsZeroAddress(admin) {
		err = models.ErrUnauthorized
	} else {
		err = s.repo.CreatePoolState(ctx, state)
	}

	var event *models.Event
	if err == nil {
		event = models.NewEvent(models.EventInitialized, admin, state.CreatedAt)
		s.logger.Info("Pool initialized", "admin", validation.FormatAddress(admin), "pool", validation.FormatAddress(s.PoolAddress()))
	}
	s.finish("initialize", err, event)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Deposit moves amount from the admin into the pool.
func (s *Sponsor) Deposit(ctx context.Context, caller common.Address, amount uint64) (*models.PoolState, error) {
	var state *models.PoolState
	err := s.atomic(ctx, func(tx models.Store, transfer transferFunc) error {
		var err error
		if state, err = tx.GetPoolState(ctx); err != nil {
			return err
		}
		if err := requireAdmin(state, caller); err != nil {
			return err
		}
		if amount == 0 || amount > s.params.MaxSingleDeposit {
			return models.ErrInvalidAmount
		}
		if err := requireNotPaused(state); err != nil {
			return err
		}
		if state.TotalFunds, err = checked.Add(state.TotalFunds, amount); err != nil {
			return err
		}
		if err := tx.UpdatePoolState(ctx, state); err != nil {
			return err
		}
		return transfer(models.Leg{From: caller, To: s.PoolAddress(), Amount: amount, Signer: caller})
	})
	return s.poolResult("deposit", models.EventDeposited, caller, amount, state, err)
}

// Withdraw moves amount from the pool back to the admin.
func (s *Sponsor) Withdraw(ctx context.Context, caller common.Address, amount uint64) (*models.PoolState, error) {
	var state *models.PoolState
	err := s.atomic(ctx, func(tx models.Store, transfer transferFunc) error {
		var err error
		if state, err = tx.GetPoolState(ctx); err != nil {
			return err
		}
		if err := requireAdmin(state, caller); err != nil {
			return err
		}
		if amount == 0 {
			return models.ErrInvalidAmount
		}
		if err := requireFunds(state, amount); err != nil {
			return err
		}
		if state.TotalFunds, err = checked.Sub(state.TotalFunds, amount); err != nil {
			return err
		}
		if err := tx.UpdatePoolState(ctx, state); err != nil {
			return err
		}
		return transfer(models.Leg{From: s.PoolAddress(), To: caller, Amount: amount, Authority: &s.authority})
	})
	return s.poolResult("withdraw", models.EventWithdrawn, caller, amount, state, err)
}

// SetBaseFee changes the flat part of the fee for requests initiated from now on.
func (s *Sponsor) SetBaseFee(ctx context.Context, caller common.Address, fee uint64) (*models.PoolState, error) {
	state, err := s.updatePool(ctx, caller, func(state *models.PoolState) error {
		if fee == 0 {
			return models.ErrInvalidFee
		}
		state.BaseTransactionFee = fee
		return nil
	})
	return s.poolResult("set_base_fee", models.EventBaseFeeUpdated, caller, fee, state, err)
}

// SetFeePerAd changes the recorded per-ad fee.
func (s *Sponsor) SetFeePerAd(ctx context.Context, caller common.Address, fee uint64) (*models.PoolState, error) {
	state, err := s.updatePool(ctx, caller, func(state *models.PoolState) error {
		if fee == 0 {
			return models.ErrInvalidFee
		}
		state.FeePerAd = fee
		return nil
	})
	return s.poolResult("set_fee_per_ad", models.EventFeePerAdUpdated, caller, fee, state, err)
}

// TogglePause flips the pause flag. It is allowed while paused.
func (s *Sponsor) TogglePause(ctx context.Context, caller common.Address) (*models.PoolState, error) {
	state, err := s.updatePool(ctx, caller, func(state *models.PoolState) error {
		state.IsPaused = !state.IsPaused
		return nil
	})
	return s.poolResult("toggle_pause", models.EventPauseToggled, caller, 0, state, err)
}

// Stats returns a snapshot of the pool.
func (s *Sponsor) Stats(ctx context.Context) (*models.Stats, error) {
	state, err := s.repo.GetPoolState(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Stats{
		Admin:              state.Admin,
		PoolAddress:        s.PoolAddress(),
		TotalFunds:         state.TotalFunds,
		TotalAdsViewed:     state.TotalAdsViewed,
		TotalTransactions:  state.TotalTransactions,
		FeePerAd:           state.FeePerAd,
		BaseTransactionFee: state.BaseTransactionFee,
		IsPaused:           state.IsPaused,
	}, nil
}

// QuoteFee returns the fee a request for amount would lock in right now.
func (s *Sponsor) QuoteFee(ctx context.Context, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, models.ErrInvalidAmount
	}
	state, err := s.repo.GetPoolState(ctx)
	if err != nil {
		return 0, err
	}
	return CalculateFee(state.BaseTransactionFee, amount)
}

// updatePool applies an admin-only change to the pool state.
func (s *Sponsor) updatePool(ctx context.Context, caller common.Address, apply func(*models.PoolState) error) (*models.PoolState, error) {
	var state *models.PoolState
	err := s.repo.Atomic(ctx, func(tx models.Store) error {
		var err error
		if state, err = tx.GetPoolState(ctx); err != nil {
			return err
		}
		if err := requireAdmin(state, caller); err != nil {
			return err
		}
		if err := apply(state); err != nil {
			return err
		}
		return tx.UpdatePoolState(ctx, state)
	})
	return state, err
}

func (s *Sponsor) poolResult(op string, eventType models.EventType, caller common.Address, amount uint64, state *models.PoolState, err error) (*models.PoolState, error) {
	var event *models.Event
	if err == nil {
		event = models.NewEvent(eventType, caller, s.now())
		event.Amount = amount
		event.TotalFunds = state.TotalFunds
		event.Flag = state.IsPaused
		s.logger.Info("Pool updated", "operation", op, "amount", amount, "total_funds", state.TotalFunds, "paused", state.IsPaused)
	}
	s.finish(op, err, event)
	if err != nil {
		return nil, err
	}
	return state, nil
}
