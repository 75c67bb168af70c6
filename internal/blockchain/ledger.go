package blockchain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/core-coin/go-core/v2/common"
	"github.com/google/uuid"

	"github.com/core-coin/adsponsor/internal/models"
	"github.com/core-coin/adsponsor/pkg/checked"
	"github.com/core-coin/adsponsor/pkg/logger"
)

// MemoryLedger is an in-process ledger holding balances of Core addresses.
// Every AtomicTransfer is applied under one lock, so concurrent transfers
// never observe each other's partial effects.
type MemoryLedger struct {
	logger *logger.Logger

	mu       sync.Mutex
	balances map[common.Address]uint64
	applied  map[string]*models.TransferReceipt
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger(logger *logger.Logger) *MemoryLedger {
	return &MemoryLedger{
		logger:   logger,
		balances: make(map[common.Address]uint64),
		applied:  make(map[string]*models.TransferReceipt),
	}
}

// Balance returns the balance held by addr.
func (l *MemoryLedger) Balance(_ context.Context, addr common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr], nil
}

// Credit mints amount into addr. Used to seed development balances.
func (l *MemoryLedger) Credit(_ context.Context, addr common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, err := checked.Add(l.balances[addr], amount)
	if err != nil {
		return fmt.Errorf("failed to credit %x: %w", addr.Bytes(), err)
	}
	l.balances[addr] = balance
	return nil
}

// AtomicTransfer applies all legs or none.
func (l *MemoryLedger) AtomicTransfer(ctx context.Context, legs ...models.Leg) (*models.TransferReceipt, error) {
	if len(legs) == 0 {
		return nil, fmt.Errorf("empty transfer: %w", models.ErrInvalidAmount)
	}
	for i, leg := range legs {
		if err := authorize(leg); err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.apply(legs, false); err != nil {
		return nil, err
	}

	receipt := &models.TransferReceipt{ID: uuid.NewString(), Legs: append([]models.Leg(nil), legs...)}
	l.applied[receipt.ID] = receipt
	l.logger.Debug("Atomic transfer applied", "receipt", receipt.ID, "legs", len(legs))
	return receipt, nil
}

// Revert undoes an applied transfer by moving every leg back. A receipt can
// be reverted once.
func (l *MemoryLedger) Revert(_ context.Context, receipt *models.TransferReceipt) error {
	if receipt == nil {
		return errors.New("nil receipt")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.applied[receipt.ID]; !ok {
		return fmt.Errorf("unknown receipt %s", receipt.ID)
	}
	if err := l.apply(receipt.Legs, true); err != nil {
		return fmt.Errorf("failed to revert transfer %s: %w", receipt.ID, err)
	}
	delete(l.applied, receipt.ID)
	l.logger.Warn("Atomic transfer reverted", "receipt", receipt.ID)
	return nil
}

// apply stages every leg on a scratch copy of the touched balances and only
// writes them back if all legs succeed. Caller holds l.mu.
func (l *MemoryLedger) apply(legs []models.Leg, reverse bool) error {
	staged := make(map[common.Address]uint64)
	get := func(addr common.Address) uint64 {
		if v, ok := staged[addr]; ok {
			return v
		}
		return l.balances[addr]
	}

	for i, leg := range legs {
		from, to := leg.From, leg.To
		if reverse {
			from, to = to, from
		}

		debited, err := checked.Sub(get(from), leg.Amount)
		if err != nil {
			return fmt.Errorf("leg %d: %x: %w", i, from.Bytes(), models.ErrInsufficientBalance)
		}
		staged[from] = debited

		credited, err := checked.Add(get(to), leg.Amount)
		if err != nil {
			return fmt.Errorf("leg %d: %x: %w", i, to.Bytes(), err)
		}
		staged[to] = credited
	}

	for addr, balance := range staged {
		l.balances[addr] = balance
	}
	return nil
}

func authorize(leg models.Leg) error {
	if leg.Amount == 0 {
		return models.ErrInvalidAmount
	}
	if leg.Authority != nil {
		if !leg.Authority.Authorizes(leg.From) {
			return models.ErrInvalidAuthority
		}
		return nil
	}
	if leg.From == (common.Address{}) || leg.Signer != leg.From {
		return models.ErrUnauthorized
	}
	return nil
}
