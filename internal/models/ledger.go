package models

import (
	"context"

	"github.com/core-coin/go-core/v2/common"
)

// Leg is one value movement inside an atomic transfer. A leg is authorized
// either by Signer being the debited address or by an Authority over it.
type Leg struct {
	From      common.Address
	To        common.Address
	Amount    uint64
	Signer    common.Address
	Authority *Authority
}

// TransferReceipt identifies an applied atomic transfer.
type TransferReceipt struct {
	ID   string
	Legs []Leg
}

// Ledger moves value between addressable balances. AtomicTransfer applies
// all legs or none of them.
type Ledger interface {
	Balance(ctx context.Context, addr common.Address) (uint64, error)
	AtomicTransfer(ctx context.Context, legs ...Leg) (*TransferReceipt, error)
	// Revert undoes a previously applied transfer.
	Revert(ctx context.Context, receipt *TransferReceipt) error
	Credit(ctx context.Context, addr common.Address, amount uint64) error
}
