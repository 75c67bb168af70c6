package sponsor

import (
	"context"
	"fmt"

	"github.com/core-coin/go-core/v2/common"

	"github.com/core-coin/adsponsor/internal/metrics"
	"github.com/core-coin/adsponsor/internal/models"
	"github.com/core-coin/adsponsor/pkg/logger"
)

// Params are the deployment constants of the protocol.
type Params struct {
	// TransactionTimeout is how long a request may stay pending, in seconds.
	TransactionTimeout int64
	MaxSingleDeposit   uint64
	DefaultBaseFee     uint64
	DefaultFeePerAd    uint64
	MinAdReward        uint64
	MinDisplayDuration int64
	MaxAdIDLength      int
	MaxAdURLLength     int
	MaxAdContentLength int
	// FeeSink receives sponsored fees. When zero the requesting user is
	// reimbursed instead.
	FeeSink common.Address
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		TransactionTimeout: 300,
		MaxSingleDeposit:   1_000_000_000_000,
		DefaultBaseFee:     5000,
		DefaultFeePerAd:    5000,
		MinAdReward:        1000,
		MinDisplayDuration: 5,
		MaxAdIDLength:      32,
		MaxAdURLLength:     200,
		MaxAdContentLength: 500,
	}
}

// Sponsor is the fee-sponsorship protocol: it holds the custodial pool,
// the ad registry and the request state machine. Every operation runs in a
// single repository transaction; ledger transfers are the last step of that
// transaction and are reverted if the transaction fails to commit.
type Sponsor struct {
	logger  *logger.Logger
	params  Params
	metrics *metrics.Metrics

	repo        models.Repository
	ledger      models.Ledger
	clock       models.Clock
	notificator models.NotificationService

	authority models.Authority
}

// NewSponsor creates a new Sponsor instance. metrics may be nil.
func NewSponsor(
	repo models.Repository,
	ledger models.Ledger,
	clock models.Clock,
	notificator models.NotificationService,
	metrics *metrics.Metrics,
	logger *logger.Logger,
	params Params,
) *Sponsor {
	return &Sponsor{
		logger:      logger,
		params:      params,
		metrics:     metrics,
		repo:        repo,
		ledger:      ledger,
		clock:       clock,
		notificator: notificator,
		authority:   models.DeriveAuthority(models.PoolSeed),
	}
}

// PoolAddress is the ledger address holding the pool's custody.
func (s *Sponsor) PoolAddress() common.Address {
	return s.authority.Address()
}

// Params returns the protocol constants in use.
func (s *Sponsor) Params() Params {
	return s.params
}

func (s *Sponsor) now() int64 {
	return s.clock.Now().Unix()
}

// transferFunc moves value on the ledger. It must be the last call of an
// atomic callback.
type transferFunc func(legs ...models.Leg) error

// atomic runs fn in one repository transaction and compensates the ledger if
// the transaction does not commit after the transfer was applied.
func (s *Sponsor) atomic(ctx context.Context, fn func(tx models.Store, transfer transferFunc) error) error {
	var receipt *models.TransferReceipt
	err := s.repo.Atomic(ctx, func(tx models.Store) error {
		receipt = nil
		return fn(tx, func(legs ...models.Leg) error {
			r, err := s.ledger.AtomicTransfer(ctx, legs...)
			if err != nil {
				return err
			}
			receipt = r
			return nil
		})
	})
	if err != nil && receipt != nil {
		if rerr := s.ledger.Revert(context.WithoutCancel(ctx), receipt); rerr != nil {
			s.logger.Error("Failed to revert ledger transfer", "receipt", receipt.ID, "error", rerr)
			return fmt.Errorf("%w (ledger revert failed: %v)", err, rerr)
		}
	}
	return err
}

// finish logs and records the outcome of an operation and publishes its
// event when it succeeded.
func (s *Sponsor) finish(op string, err error, event *models.Event) {
	if err != nil {
		s.logger.Debug("Operation rejected", "operation", op, "code", models.ErrorCode(err), "error", err)
		s.metrics.OperationFailed(op, models.ErrorCode(err))
		return
	}
	if event != nil && s.notificator != nil {
		s.notificator.Notify(event)
	}
}
