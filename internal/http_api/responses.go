package http_api

import (
	"github.com/core-coin/adsponsor/internal/models"
	"github.com/core-coin/adsponsor/pkg/validation"
)

// PoolResponse is the JSON view of the pool. Addresses are hex encoded.
type PoolResponse struct {
	Admin              string `json:"admin"`
	PoolAddress        string `json:"pool_address,omitempty"`
	TotalFunds         uint64 `json:"total_funds"`
	TotalAdsViewed     uint64 `json:"total_ads_viewed"`
	TotalTransactions  uint64 `json:"total_transactions"`
	FeePerAd           uint64 `json:"fee_per_ad"`
	BaseTransactionFee uint64 `json:"base_transaction_fee"`
	IsPaused           bool   `json:"is_paused"`
}

// RequestResponse is the JSON view of a request.
type RequestResponse struct {
	ID                 string               `json:"id"`
	User               string               `json:"user"`
	Nonce              uint64               `json:"nonce"`
	Recipient          string               `json:"recipient"`
	Amount             uint64               `json:"amount"`
	CalculatedFee      uint64               `json:"calculated_fee"`
	Status             models.RequestStatus `json:"status"`
	SelectedAdID       string               `json:"selected_ad_id"`
	CreatedAt          int64                `json:"created_at"`
	ExpiresAt          int64                `json:"expires_at"`
	AdDisplayStartedAt *int64               `json:"ad_display_started_at,omitempty"`
	CompletedAt        *int64               `json:"completed_at,omitempty"`
	CancelledAt        *int64               `json:"cancelled_at,omitempty"`
	AdViewDuration     *int64               `json:"ad_view_duration,omitempty"`
}

func poolFromState(state *models.PoolState) PoolResponse {
	return PoolResponse{
		Admin:              validation.FormatAddress(state.Admin),
		TotalFunds:         state.TotalFunds,
		TotalAdsViewed:     state.TotalAdsViewed,
		TotalTransactions:  state.TotalTransactions,
		FeePerAd:           state.FeePerAd,
		BaseTransactionFee: state.BaseTransactionFee,
		IsPaused:           state.IsPaused,
	}
}

func poolFromStats(stats *models.Stats) PoolResponse {
	return PoolResponse{
		Admin:              validation.FormatAddress(stats.Admin),
		PoolAddress:        validation.FormatAddress(stats.PoolAddress),
		TotalFunds:         stats.TotalFunds,
		TotalAdsViewed:     stats.TotalAdsViewed,
		TotalTransactions:  stats.TotalTransactions,
		FeePerAd:           stats.FeePerAd,
		BaseTransactionFee: stats.BaseTransactionFee,
		IsPaused:           stats.IsPaused,
	}
}

func requestResponse(r *models.Request) RequestResponse {
	return RequestResponse{
		ID:                 r.ID,
		User:               validation.FormatAddress(r.User),
		Nonce:              r.Nonce,
		Recipient:          validation.FormatAddress(r.Recipient),
		Amount:             r.Amount,
		CalculatedFee:      r.CalculatedFee,
		Status:             r.Status,
		SelectedAdID:       r.SelectedAdID,
		CreatedAt:          r.CreatedAt,
		ExpiresAt:          r.ExpiresAt,
		AdDisplayStartedAt: r.AdDisplayStartedAt,
		CompletedAt:        r.CompletedAt,
		CancelledAt:        r.CancelledAt,
		AdViewDuration:     r.AdViewDuration,
	}
}

func requestResponses(requests []*models.Request) []RequestResponse {
	out := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		out = append(out, requestResponse(r))
	}
	return out
}
