package models

import (
	"context"

	"github.com/core-coin/go-core/v2/common"
)

// Store reads and writes protocol records addressed by derived keys.
// Create fails when a record already exists at the key.
type Store interface {
	CreatePoolState(ctx context.Context, state *PoolState) error
	GetPoolState(ctx context.Context) (*PoolState, error)
	UpdatePoolState(ctx context.Context, state *PoolState) error

	CreateAdvertisement(ctx context.Context, ad *Advertisement) error
	GetAdvertisement(ctx context.Context, id string) (*Advertisement, error)
	UpdateAdvertisement(ctx context.Context, ad *Advertisement) error
	ListAdvertisements(ctx context.Context, activeOnly bool) ([]*Advertisement, error)

	CreateRequest(ctx context.Context, request *Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	UpdateRequest(ctx context.Context, request *Request) error
	ListRequestsByUser(ctx context.Context, user common.Address) ([]*Request, error)
}

// Repository is a Store whose mutations can be grouped. Atomic runs fn with
// exclusive access to the pool; if fn returns an error nothing it wrote is kept.
type Repository interface {
	Store
	Atomic(ctx context.Context, fn func(tx Store) error) error
	Close() error
}
