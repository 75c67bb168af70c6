package models

import (
	"context"

	"github.com/core-coin/go-core/v2/common"
)

// CreateAdParams describes a new advertisement.
type CreateAdParams struct {
	ID              string
	URL             string
	Content         string
	RewardAmount    uint64
	DisplayDuration int64
}

// InitiateParams describes a new transfer request.
type InitiateParams struct {
	Recipient    common.Address
	Amount       uint64
	SelectedAdID string
	Nonce        uint64
}

// SettleParams carries the viewer's proof for a pending request.
type SettleParams struct {
	RequestID string
	// AdID must name the ad selected at initiation.
	AdID string
	// ReportedViewDuration is the client's claim in seconds. It is checked
	// against the trusted clock, never trusted alone.
	ReportedViewDuration int64
}

// SponsorI is the fee-sponsorship protocol. caller is the authenticated
// identity on whose behalf the operation runs.
type SponsorI interface {
	// Pool accounting
	Initialize(ctx context.Context, caller, admin common.Address) (*PoolState, error)
	Deposit(ctx context.Context, caller common.Address, amount uint64) (*PoolState, error)
	Withdraw(ctx context.Context, caller common.Address, amount uint64) (*PoolState, error)
	SetBaseFee(ctx context.Context, caller common.Address, fee uint64) (*PoolState, error)
	SetFeePerAd(ctx context.Context, caller common.Address, fee uint64) (*PoolState, error)
	TogglePause(ctx context.Context, caller common.Address) (*PoolState, error)
	Stats(ctx context.Context) (*Stats, error)
	QuoteFee(ctx context.Context, amount uint64) (uint64, error)

	// Advertisement registry
	CreateAd(ctx context.Context, caller common.Address, params CreateAdParams) (*Advertisement, error)
	ToggleAd(ctx context.Context, caller common.Address, id string) (*Advertisement, error)
	GetAd(ctx context.Context, id string) (*Advertisement, error)
	ListAds(ctx context.Context, activeOnly bool) ([]*Advertisement, error)

	// Request state machine
	Initiate(ctx context.Context, caller common.Address, params InitiateParams) (*Request, error)
	Settle(ctx context.Context, caller common.Address, params SettleParams) (*Request, error)
	Cancel(ctx context.Context, caller common.Address, requestID string) (*Request, error)
	GetRequest(ctx context.Context, requestID string) (*Request, error)
	ListRequests(ctx context.Context, user common.Address) ([]*Request, error)
}
