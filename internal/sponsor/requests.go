package sponsor

import (
	"context"
	"errors"

	"github.com/core-coin/go-core/v2/common"

	"github.com/core-coin/adsponsor/internal/models"
	"github.com/core-coin/adsponsor/pkg/checked"
	"github.com/core-coin/adsponsor/pkg/validation"
)

// Initiate opens a pending request. The fee is computed here from the
// current base fee and stays fixed for the life of the request.
func (s *Sponsor) Initiate(ctx context.Context, caller common.Address, p models.InitiateParams) (*models.Request, error) {
	var (
		request *models.Request
		ad      *models.Advertisement
	)
	err := s.repo.Atomic(ctx, func(tx models.Store) error {
		if validation.IsZeroAddress(caller) {
			return models.ErrUnauthorized
		}
		state, err := tx.GetPoolState(ctx)
		if err != nil {
			return err
		}
		if err := requireNotPaused(state); err != nil {
			return err
		}
		if validation.IsZeroAddress(p.Recipient) {
			return models.ErrInvalidRecipient
		}
		if p.Amount == 0 {
			return models.ErrInvalidAmount
		}
		if ad, err = tx.GetAdvertisement(ctx, p.SelectedAdID); err != nil {
			return err
		}
		if !ad.IsActive {
			return models.ErrAdNotActive
		}
		fee, err := CalculateFee(state.BaseTransactionFee, p.Amount)
		if err != nil {
			return err
		}
		if err := requireFunds(state, fee); err != nil {
			return err
		}

		now := s.now()
		expiresAt, err := checked.AddInt64(now, s.params.TransactionTimeout)
		if err != nil {
			return err
		}
		started := now
		request = &models.Request{
			ID:                 models.RequestKey(caller, p.Nonce),
			User:               caller,
			Nonce:              p.Nonce,
			Recipient:          p.Recipient,
			Amount:             p.Amount,
			CalculatedFee:      fee,
			Status:             models.RequestStatusPending,
			SelectedAdID:       ad.ID,
			CreatedAt:          now,
			ExpiresAt:          expiresAt,
			AdDisplayStartedAt: &started,
		}
		return tx.CreateRequest(ctx, request)
	})

	var event *models.Event
	if err == nil {
		event = models.NewEvent(models.EventTransactionInitiated, caller, request.CreatedAt)
		event.RequestID = request.ID
		event.Recipient = request.Recipient
		event.Amount = request.Amount
		event.Sponsored = request.CalculatedFee
		event.AdID = ad.ID
		event.Content = ad.Content
		s.logger.Info("Request initiated",
			"request", request.ID,
			"user", validation.FormatAddress(caller),
			"amount", request.Amount,
			"fee", request.CalculatedFee,
			"ad", ad.ID,
		)
	}
	s.finish("initiate", err, event)
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Settle completes a pending request once the viewer proved the ad was shown
// long enough. The user's transfer to the recipient and the pool's fee
// payment are applied as one atomic transfer together with the counters.
func (s *Sponsor) Settle(ctx context.Context, caller common.Address, p models.SettleParams) (*models.Request, error) {
	var (
		request *models.Request
		state   *models.PoolState
	)
	err := s.atomic(ctx, func(tx models.Store, transfer transferFunc) error {
		// The pool row is locked first, as in every other writer.
		var err error
		if state, err = tx.GetPoolState(ctx); err != nil {
			return err
		}
		if request, err = tx.GetRequest(ctx, p.RequestID); err != nil {
			return err
		}
		if err := requireOwner(request, caller); err != nil {
			return err
		}
		if err := requirePending(request); err != nil {
			return err
		}
		now := s.now()
		if now > request.ExpiresAt {
			return models.ErrRequestExpired
		}
		if p.AdID != request.SelectedAdID {
			return models.ErrAdMismatch
		}
		ad, err := tx.GetAdvertisement(ctx, request.SelectedAdID)
		if errors.Is(err, models.ErrAdNotFound) {
			return models.ErrAdMismatch
		} else if err != nil {
			return err
		}
		if request.AdDisplayStartedAt == nil {
			return models.ErrAdNotStarted
		}
		elapsed := now - *request.AdDisplayStartedAt
		if p.ReportedViewDuration < ad.DisplayDuration || elapsed < ad.DisplayDuration {
			return models.ErrInsufficientViewTime
		}
		if err := requireFunds(state, request.CalculatedFee); err != nil {
			return err
		}

		if state.TotalFunds, err = checked.Sub(state.TotalFunds, request.CalculatedFee); err != nil {
			return err
		}
		if state.TotalAdsViewed, err = checked.Inc(state.TotalAdsViewed); err != nil {
			return err
		}
		if state.TotalTransactions, err = checked.Inc(state.TotalTransactions); err != nil {
			return err
		}
		if ad.ViewCount, err = checked.Inc(ad.ViewCount); err != nil {
			return err
		}
		viewed := p.ReportedViewDuration
		request.Status = models.RequestStatusCompleted
		request.CompletedAt = &now
		request.AdViewDuration = &viewed

		if err := tx.UpdatePoolState(ctx, state); err != nil {
			return err
		}
		if err := tx.UpdateAdvertisement(ctx, ad); err != nil {
			return err
		}
		if err := tx.UpdateRequest(ctx, request); err != nil {
			return err
		}
		return transfer(s.settlementLegs(request)...)
	})

	var event *models.Event
	if err == nil {
		event = models.NewEvent(models.EventTransactionCompleted, caller, *request.CompletedAt)
		event.RequestID = request.ID
		event.Recipient = request.Recipient
		event.Amount = request.Amount
		event.Sponsored = request.CalculatedFee
		event.AdID = request.SelectedAdID
		event.TotalFunds = state.TotalFunds
		s.logger.Info("Request settled",
			"request", request.ID,
			"amount", request.Amount,
			"fee", request.CalculatedFee,
			"total_funds", state.TotalFunds,
		)
	}
	s.finish("settle", err, event)
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *Sponsor) settlementLegs(request *models.Request) []models.Leg {
	legs := []models.Leg{{
		From:   request.User,
		To:     request.Recipient,
		Amount: request.Amount,
		Signer: request.User,
	}}
	if request.CalculatedFee > 0 {
		sink := s.params.FeeSink
		if validation.IsZeroAddress(sink) {
			sink = request.User
		}
		legs = append(legs, models.Leg{
			From:      s.PoolAddress(),
			To:        sink,
			Amount:    request.CalculatedFee,
			Authority: &s.authority,
		})
	}
	return legs
}

// Cancel closes a pending request without moving funds. Expired requests
// may still be cancelled.
func (s *Sponsor) Cancel(ctx context.Context, caller common.Address, requestID string) (*models.Request, error) {
	var request *models.Request
	err := s.repo.Atomic(ctx, func(tx models.Store) error {
		var err error
		if request, err = tx.GetRequest(ctx, requestID); err != nil {
			return err
		}
		if err := requireOwner(request, caller); err != nil {
			return err
		}
		if err := requirePending(request); err != nil {
			return err
		}
		now := s.now()
		request.Status = models.RequestStatusCancelled
		request.CancelledAt = &now
		return tx.UpdateRequest(ctx, request)
	})

	var event *models.Event
	if err == nil {
		event = models.NewEvent(models.EventRequestCancelled, caller, *request.CancelledAt)
		event.RequestID = request.ID
		event.AdID = request.SelectedAdID
		s.logger.Info("Request cancelled", "request", request.ID)
	}
	s.finish("cancel", err, event)
	if err != nil {
		return nil, err
	}
	return request, nil
}

// GetRequest returns the request with the given id.
func (s *Sponsor) GetRequest(ctx context.Context, requestID string) (*models.Request, error) {
	return s.repo.GetRequest(ctx, requestID)
}

// ListRequests returns the requests made by user.
func (s *Sponsor) ListRequests(ctx context.Context, user common.Address) ([]*models.Request, error) {
	return s.repo.ListRequestsByUser(ctx, user)
}
