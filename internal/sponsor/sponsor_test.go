package sponsor

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	bclock "github.com/raulk/clock"
	"github.com/core-coin/go-core/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/adsponsor/internal/blockchain"
	"github.com/core-coin/adsponsor/internal/clock"
	"github.com/core-coin/adsponsor/internal/metrics"
	"github.com/core-coin/adsponsor/internal/models"
	"github.com/core-coin/adsponsor/internal/repository"
	"github.com/core-coin/adsponsor/pkg/logger"
)

var (
	admin     = common.BytesToAddress([]byte{0xad})
	user      = common.BytesToAddress([]byte{0x01})
	stranger  = common.BytesToAddress([]byte{0x02})
	recipient = common.BytesToAddress([]byte{0x0e})
	feeSink   = common.BytesToAddress([]byte{0xfe})
)

const (
	adminBalance = 5_000_000
	userBalance  = 500_000
)

type recorder struct {
	mu     sync.Mutex
	events []*models.Event
}

func (r *recorder) Notify(event *models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]models.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func (r *recorder) last() *models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

type fixture struct {
	ctx    context.Context
	s      *Sponsor
	repo   models.Repository
	ledger *blockchain.MemoryLedger
	clock  *bclock.Mock
	events *recorder
}

func newFixture(t *testing.T, opts ...func(*Params)) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, repository.NewMemoryRepository(logger.NewNop()), opts...)
}

func newFixtureWithRepo(t *testing.T, repo models.Repository, opts ...func(*Params)) *fixture {
	t.Helper()
	ctx := context.Background()
	params := DefaultParams()
	params.FeeSink = feeSink
	for _, opt := range opts {
		opt(&params)
	}

	ledger := blockchain.NewMemoryLedger(logger.NewNop())
	require.NoError(t, ledger.Credit(ctx, admin, adminBalance))
	require.NoError(t, ledger.Credit(ctx, user, userBalance))

	f := &fixture{
		ctx:    ctx,
		repo:   repo,
		ledger: ledger,
		clock:  clock.NewMock(time.Unix(1_700_000_000, 0)),
		events: &recorder{},
	}
	f.s = NewSponsor(repo, ledger, f.clock, f.events, metrics.New(), logger.NewNop(), params)
	return f
}

// funded initializes the pool, deposits 1,000,000 and creates ad A1.
func funded(t *testing.T, opts ...func(*Params)) *fixture {
	t.Helper()
	f := newFixture(t, opts...)
	f.setup(t)
	return f
}

func (f *fixture) setup(t *testing.T) {
	t.Helper()
	_, err := f.s.Initialize(f.ctx, admin, common.Address{})
	require.NoError(t, err)
	_, err = f.s.Deposit(f.ctx, admin, 1_000_000)
	require.NoError(t, err)
	_, err = f.s.CreateAd(f.ctx, admin, adParams("A1"))
	require.NoError(t, err)
}

func adParams(id string) models.CreateAdParams {
	return models.CreateAdParams{
		ID:              id,
		URL:             "https://ads.example.com/" + id,
		Content:         "Watch this",
		RewardAmount:    1000,
		DisplayDuration: 5,
	}
}

func (f *fixture) balance(t *testing.T, addr common.Address) uint64 {
	t.Helper()
	b, err := f.ledger.Balance(f.ctx, addr)
	require.NoError(t, err)
	return b
}

func (f *fixture) totalFunds(t *testing.T) uint64 {
	t.Helper()
	stats, err := f.s.Stats(f.ctx)
	require.NoError(t, err)
	return stats.TotalFunds
}

func (f *fixture) initiate(t *testing.T, nonce uint64) *models.Request {
	t.Helper()
	req, err := f.s.Initiate(f.ctx, user, models.InitiateParams{
		Recipient:    recipient,
		Amount:       100_000,
		SelectedAdID: "A1",
		Nonce:        nonce,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) settle(req *models.Request, viewed int64) (*models.Request, error) {
	return f.s.Settle(f.ctx, user, models.SettleParams{RequestID: req.ID, AdID: req.SelectedAdID, ReportedViewDuration: viewed})
}

func TestInitialize(t *testing.T) {
	f := newFixture(t)

	_, err := f.s.Stats(f.ctx)
	require.ErrorIs(t, err, models.ErrNotInitialized)

	state, err := f.s.Initialize(f.ctx, admin, common.Address{})
	require.NoError(t, err)
	assert.Equal(t, admin, state.Admin)
	assert.Equal(t, uint64(5000), state.BaseTransactionFee)
	assert.Equal(t, uint64(5000), state.FeePerAd)
	assert.False(t, state.IsPaused)
	assert.Zero(t, state.TotalFunds)

	_, err = f.s.Initialize(f.ctx, stranger, stranger)
	assert.ErrorIs(t, err, models.ErrAlreadyInitialized)

	stats, err := f.s.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, admin, stats.Admin)
	assert.Equal(t, f.s.PoolAddress(), stats.PoolAddress)
	assert.Equal(t, []models.EventType{models.EventInitialized}, f.events.types())
}

func TestInitializeWithExplicitAdmin(t *testing.T) {
	f := newFixture(t)
	state, err := f.s.Initialize(f.ctx, stranger, admin)
	require.NoError(t, err)
	assert.Equal(t, admin, state.Admin)

	_, err = newFixture(t).s.Initialize(f.ctx, common.Address{}, common.Address{})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestDeposit(t *testing.T) {
	f := newFixture(t)
	_, err := f.s.Initialize(f.ctx, admin, common.Address{})
	require.NoError(t, err)

	state, err := f.s.Deposit(f.ctx, admin, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), state.TotalFunds)
	assert.Equal(t, uint64(adminBalance-1_000_000), f.balance(t, admin))
	assert.Equal(t, uint64(1_000_000), f.balance(t, f.s.PoolAddress()))

	event := f.events.last()
	require.NotNil(t, event)
	assert.Equal(t, models.EventDeposited, event.Type)
	assert.Equal(t, uint64(1_000_000), event.Amount)
	assert.Equal(t, uint64(1_000_000), event.TotalFunds)
}

func TestDepositRejections(t *testing.T) {
	tests := []struct {
		name   string
		caller common.Address
		amount uint64
		paused bool
		err    error
	}{
		{"non admin", stranger, 100, false, models.ErrUnauthorized},
		{"zero amount", admin, 0, false, models.ErrInvalidAmount},
		{"above single deposit cap", admin, 1_000_000_000_001, false, models.ErrInvalidAmount},
		{"paused", admin, 100, true, models.ErrProgramPaused},
		{"admin cannot cover it", admin, adminBalance + 1, false, models.ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.s.Initialize(f.ctx, admin, common.Address{})
			require.NoError(t, err)
			if tt.paused {
				_, err = f.s.TogglePause(f.ctx, admin)
				require.NoError(t, err)
			}

			_, err = f.s.Deposit(f.ctx, tt.caller, tt.amount)
			assert.ErrorIs(t, err, tt.err)
			assert.Zero(t, f.totalFunds(t))
			assert.Equal(t, uint64(adminBalance), f.balance(t, admin))
			assert.Zero(t, f.balance(t, f.s.PoolAddress()))
		})
	}
}

func TestDepositAtCap(t *testing.T) {
	f := newFixture(t, func(p *Params) { p.MaxSingleDeposit = 1_000 })
	_, err := f.s.Initialize(f.ctx, admin, common.Address{})
	require.NoError(t, err)

	_, err = f.s.Deposit(f.ctx, admin, 1_000)
	require.NoError(t, err)
	_, err = f.s.Deposit(f.ctx, admin, 1_001)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestDepositsAccumulate(t *testing.T) {
	tests := []struct {
		name   string
		first  uint64
		second uint64
	}{
		{"small then large", 1_500, 250_000},
		{"large then small", 250_000, 1_500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := funded(t)
			initial := f.totalFunds(t)

			_, err := f.s.Deposit(f.ctx, admin, tt.first)
			require.NoError(t, err)
			state, err := f.s.Deposit(f.ctx, admin, tt.second)
			require.NoError(t, err)

			want := initial + tt.first + tt.second
			assert.Equal(t, want, state.TotalFunds)
			assert.Equal(t, want, f.totalFunds(t))
			assert.Equal(t, want, f.balance(t, f.s.PoolAddress()))
			assert.Equal(t, uint64(adminBalance)-want, f.balance(t, admin))
		})
	}
}

func TestDepositOverflow(t *testing.T) {
	f := newFixture(t, func(p *Params) { p.MaxSingleDeposit = math.MaxUint64 })
	require.NoError(t, f.ledger.Credit(f.ctx, admin, math.MaxUint64-adminBalance))
	_, err := f.s.Initialize(f.ctx, admin, common.Address{})
	require.NoError(t, err)

	_, err = f.s.Deposit(f.ctx, admin, math.MaxUint64-1)
	require.NoError(t, err)

	_, err = f.s.Deposit(f.ctx, admin, 2)
	require.ErrorIs(t, err, models.ErrMathOverflow)
	assert.Equal(t, uint64(math.MaxUint64-1), f.totalFunds(t))
	assert.Equal(t, uint64(math.MaxUint64-1), f.balance(t, f.s.PoolAddress()))
	assert.Equal(t, uint64(1), f.balance(t, admin))
	assert.Equal(t, models.EventDeposited, f.events.last().Type)
}

func TestWithdraw(t *testing.T) {
	f := funded(t)

	_, err := f.s.Withdraw(f.ctx, admin, 1_000_001)
	require.ErrorIs(t, err, models.ErrInsufficientProgramFunds)
	_, err = f.s.Withdraw(f.ctx, admin, 0)
	require.ErrorIs(t, err, models.ErrInvalidAmount)
	_, err = f.s.Withdraw(f.ctx, stranger, 1)
	require.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Equal(t, uint64(1_000_000), f.totalFunds(t))

	state, err := f.s.Withdraw(f.ctx, admin, 400_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(600_000), state.TotalFunds)
	assert.Equal(t, uint64(600_000), f.balance(t, f.s.PoolAddress()))
	assert.Equal(t, uint64(adminBalance-600_000), f.balance(t, admin))
	assert.Equal(t, models.EventWithdrawn, f.events.last().Type)

	// Withdrawing is not a fund-intake operation and stays open while paused.
	_, err = f.s.TogglePause(f.ctx, admin)
	require.NoError(t, err)
	state, err = f.s.Withdraw(f.ctx, admin, 600_000)
	require.NoError(t, err)
	assert.Zero(t, state.TotalFunds)
}

func TestFeeSettings(t *testing.T) {
	f := funded(t)

	_, err := f.s.SetBaseFee(f.ctx, admin, 0)
	assert.ErrorIs(t, err, models.ErrInvalidFee)
	_, err = f.s.SetBaseFee(f.ctx, stranger, 10)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = f.s.SetFeePerAd(f.ctx, admin, 0)
	assert.ErrorIs(t, err, models.ErrInvalidFee)
	_, err = f.s.SetFeePerAd(f.ctx, stranger, 10)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	state, err := f.s.SetBaseFee(f.ctx, admin, 7000)
	require.NoError(t, err)
	assert.Equal(t, uint64(7000), state.BaseTransactionFee)
	assert.Equal(t, models.EventBaseFeeUpdated, f.events.last().Type)

	state, err = f.s.SetFeePerAd(f.ctx, admin, 8000)
	require.NoError(t, err)
	assert.Equal(t, uint64(8000), state.FeePerAd)
	assert.Equal(t, models.EventFeePerAdUpdated, f.events.last().Type)
}

func TestTogglePause(t *testing.T) {
	f := funded(t)

	_, err := f.s.TogglePause(f.ctx, stranger)
	require.ErrorIs(t, err, models.ErrUnauthorized)

	state, err := f.s.TogglePause(f.ctx, admin)
	require.NoError(t, err)
	assert.True(t, state.IsPaused)
	assert.True(t, f.events.last().Flag)

	_, err = f.s.CreateAd(f.ctx, admin, adParams("A2"))
	assert.ErrorIs(t, err, models.ErrProgramPaused)
	_, err = f.s.Initiate(f.ctx, user, models.InitiateParams{Recipient: recipient, Amount: 1, SelectedAdID: "A1"})
	assert.ErrorIs(t, err, models.ErrProgramPaused)

	state, err = f.s.TogglePause(f.ctx, admin)
	require.NoError(t, err)
	assert.False(t, state.IsPaused)
}

func TestQuoteFee(t *testing.T) {
	f := funded(t)

	fee, err := f.s.QuoteFee(f.ctx, 100_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(5100), fee)

	fee, err = f.s.QuoteFee(f.ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), fee, "sub-1000 amounts truncate to the base fee")

	_, err = f.s.QuoteFee(f.ctx, 0)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestCreateAdValidation(t *testing.T) {
	long := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = 'a'
		}
		return string(b)
	}

	tests := []struct {
		name   string
		mutate func(*models.CreateAdParams)
		err    error
	}{
		{"empty id", func(p *models.CreateAdParams) { p.ID = "" }, models.ErrInvalidAdID},
		{"long id", func(p *models.CreateAdParams) { p.ID = long(33) }, models.ErrInvalidAdID},
		{"plain http", func(p *models.CreateAdParams) { p.URL = "http://ads.example.com" }, models.ErrInvalidAdURL},
		{"long url", func(p *models.CreateAdParams) { p.URL = "https://" + long(193) }, models.ErrInvalidAdURL},
		{"empty content", func(p *models.CreateAdParams) { p.Content = "" }, models.ErrInvalidAdContent},
		{"long content", func(p *models.CreateAdParams) { p.Content = long(501) }, models.ErrInvalidAdContent},
		{"low reward", func(p *models.CreateAdParams) { p.RewardAmount = 999 }, models.ErrRewardTooLow},
		{"short display", func(p *models.CreateAdParams) { p.DisplayDuration = 4 }, models.ErrInvalidDisplayTime},
		{"first violation wins", func(p *models.CreateAdParams) { p.URL = ""; p.RewardAmount = 0 }, models.ErrInvalidAdURL},
	}

	f := funded(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := adParams("A2")
			tt.mutate(&p)
			_, err := f.s.CreateAd(f.ctx, admin, p)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	ads, err := f.s.ListAds(f.ctx, false)
	require.NoError(t, err)
	assert.Len(t, ads, 1)
}

func TestCreateAd(t *testing.T) {
	f := funded(t)

	_, err := f.s.CreateAd(f.ctx, stranger, adParams("A2"))
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = f.s.CreateAd(f.ctx, admin, adParams("A1"))
	assert.ErrorIs(t, err, models.ErrAdExists)

	p := adParams("A2")
	p.URL = "https://x.io"
	ad, err := f.s.CreateAd(f.ctx, admin, p)
	require.NoError(t, err)
	assert.True(t, ad.IsActive)
	assert.Zero(t, ad.ViewCount)

	event := f.events.last()
	assert.Equal(t, models.EventAdCreated, event.Type)
	assert.Equal(t, "A2", event.AdID)
}

func TestToggleAd(t *testing.T) {
	f := funded(t)
	pending := f.initiate(t, 1)

	_, err := f.s.ToggleAd(f.ctx, stranger, "A1")
	require.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = f.s.ToggleAd(f.ctx, admin, "missing")
	require.ErrorIs(t, err, models.ErrAdNotFound)

	ad, err := f.s.ToggleAd(f.ctx, admin, "A1")
	require.NoError(t, err)
	assert.False(t, ad.IsActive)

	active, err := f.s.ListAds(f.ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = f.s.Initiate(f.ctx, user, models.InitiateParams{Recipient: recipient, Amount: 100_000, SelectedAdID: "A1", Nonce: 2})
	assert.ErrorIs(t, err, models.ErrAdNotActive)

	// Deactivation blocks new requests only.
	f.clock.Add(5 * time.Second)
	settled, err := f.settle(pending, 5)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, settled.Status)
}

func TestInitiateRejections(t *testing.T) {
	valid := models.InitiateParams{Recipient: recipient, Amount: 100_000, SelectedAdID: "A1", Nonce: 1}

	tests := []struct {
		name   string
		caller common.Address
		mutate func(*models.InitiateParams)
		err    error
	}{
		{"zero caller", common.Address{}, func(*models.InitiateParams) {}, models.ErrUnauthorized},
		{"zero recipient", user, func(p *models.InitiateParams) { p.Recipient = common.Address{} }, models.ErrInvalidRecipient},
		{"zero amount", user, func(p *models.InitiateParams) { p.Amount = 0 }, models.ErrInvalidAmount},
		{"unknown ad", user, func(p *models.InitiateParams) { p.SelectedAdID = "nope" }, models.ErrAdNotFound},
	}

	f := funded(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := f.s.Initiate(f.ctx, tt.caller, p)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	requests, err := f.s.ListRequests(f.ctx, user)
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestInitiate(t *testing.T) {
	f := funded(t)
	now := f.clock.Now().Unix()

	req := f.initiate(t, 7)
	assert.Equal(t, models.RequestKey(user, 7), req.ID)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Equal(t, uint64(5100), req.CalculatedFee)
	assert.Equal(t, now, req.CreatedAt)
	assert.Equal(t, now+300, req.ExpiresAt)
	require.NotNil(t, req.AdDisplayStartedAt)
	assert.Equal(t, now, *req.AdDisplayStartedAt)

	event := f.events.last()
	assert.Equal(t, models.EventTransactionInitiated, event.Type)
	assert.Equal(t, "Watch this", event.Content)
	assert.Equal(t, uint64(5100), event.Sponsored)

	// Initiating moves nothing.
	assert.Equal(t, uint64(1_000_000), f.totalFunds(t))
	assert.Equal(t, uint64(userBalance), f.balance(t, user))

	_, err := f.s.Initiate(f.ctx, user, models.InitiateParams{Recipient: recipient, Amount: 1, SelectedAdID: "A1", Nonce: 7})
	assert.ErrorIs(t, err, models.ErrRequestExists)

	// A second nonce opens an independent request.
	other := f.initiate(t, 8)
	assert.NotEqual(t, req.ID, other.ID)
	list, err := f.s.ListRequests(f.ctx, user)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestInitiateRequiresPoolFunds(t *testing.T) {
	f := newFixture(t)
	_, err := f.s.Initialize(f.ctx, admin, common.Address{})
	require.NoError(t, err)
	_, err = f.s.CreateAd(f.ctx, admin, adParams("A1"))
	require.NoError(t, err)
	_, err = f.s.Deposit(f.ctx, admin, 5099)
	require.NoError(t, err)

	_, err = f.s.Initiate(f.ctx, user, models.InitiateParams{Recipient: recipient, Amount: 100_000, SelectedAdID: "A1"})
	assert.ErrorIs(t, err, models.ErrInsufficientProgramFunds)

	_, err = f.s.Initiate(f.ctx, user, models.InitiateParams{Recipient: recipient, Amount: 99_000, SelectedAdID: "A1"})
	assert.NoError(t, err, "fee of 5099 is exactly covered")
}

func TestSettle(t *testing.T) {
	f := funded(t)
	req := f.initiate(t, 1)
	require.Equal(t, uint64(5000+100), req.CalculatedFee)

	f.clock.Add(5 * time.Second)
	settled, err := f.settle(req, 5)
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusCompleted, settled.Status)
	require.NotNil(t, settled.CompletedAt)
	assert.Equal(t, f.clock.Now().Unix(), *settled.CompletedAt)
	require.NotNil(t, settled.AdViewDuration)
	assert.Equal(t, int64(5), *settled.AdViewDuration)

	assert.Equal(t, uint64(100_000), f.balance(t, recipient))
	assert.Equal(t, uint64(userBalance-100_000), f.balance(t, user))
	assert.Equal(t, uint64(5100), f.balance(t, feeSink))
	assert.Equal(t, uint64(1_000_000-5100), f.balance(t, f.s.PoolAddress()))

	stats, err := f.s.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000-5100), stats.TotalFunds)
	assert.Equal(t, uint64(1), stats.TotalAdsViewed)
	assert.Equal(t, uint64(1), stats.TotalTransactions)

	ad, err := f.s.GetAd(f.ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ad.ViewCount)

	stored, err := f.s.GetRequest(f.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, stored.Status)

	event := f.events.last()
	assert.Equal(t, models.EventTransactionCompleted, event.Type)
	assert.Equal(t, uint64(100_000), event.Amount)
	assert.Equal(t, uint64(5100), event.Sponsored)
	assert.Equal(t, uint64(1_000_000-5100), event.TotalFunds)
}

func TestSettleReimbursesUserWithoutFeeSink(t *testing.T) {
	f := funded(t, func(p *Params) { p.FeeSink = common.Address{} })
	req := f.initiate(t, 1)
	f.clock.Add(5 * time.Second)

	_, err := f.settle(req, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(userBalance-100_000+5100), f.balance(t, user))
	assert.Equal(t, uint64(100_000), f.balance(t, recipient))
}

func TestSettleRejections(t *testing.T) {
	tests := []struct {
		name    string
		wait    time.Duration
		caller  common.Address
		adID    string
		viewed  int64
		prepare func(t *testing.T, f *fixture)
		err     error
	}{
		{name: "reported view too short", wait: 5 * time.Second, viewed: 2, err: models.ErrInsufficientViewTime},
		{name: "clock says too early", wait: 3 * time.Second, viewed: 5, err: models.ErrInsufficientViewTime},
		{name: "negative report", wait: 10 * time.Second, viewed: -1, err: models.ErrInsufficientViewTime},
		{name: "expired", wait: 301 * time.Second, viewed: 5, err: models.ErrRequestExpired},
		{name: "expired wins over short view", wait: 301 * time.Second, viewed: 0, err: models.ErrRequestExpired},
		{name: "wrong ad", wait: 5 * time.Second, adID: "A2", viewed: 5, err: models.ErrAdMismatch},
		{name: "not the requester", wait: 5 * time.Second, caller: stranger, viewed: 5, err: models.ErrUnauthorized},
		{
			name: "pool drained since initiation", wait: 5 * time.Second, viewed: 5,
			prepare: func(t *testing.T, f *fixture) {
				_, err := f.s.Withdraw(f.ctx, admin, 1_000_000-5099)
				require.NoError(t, err)
			},
			err: models.ErrInsufficientProgramFunds,
		},
		{
			name: "user cannot cover the transfer", wait: 5 * time.Second, viewed: 5,
			prepare: func(t *testing.T, f *fixture) {
				_, err := f.ledger.AtomicTransfer(f.ctx, models.Leg{From: user, To: stranger, Amount: userBalance - 1, Signer: user})
				require.NoError(t, err)
			},
			err: models.ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := funded(t)
			req := f.initiate(t, 1)
			if tt.prepare != nil {
				tt.prepare(t, f)
			}
			funds := f.totalFunds(t)
			userBefore := f.balance(t, user)
			f.clock.Add(tt.wait)

			caller := user
			if tt.caller != (common.Address{}) {
				caller = tt.caller
			}
			adID := "A1"
			if tt.adID != "" {
				adID = tt.adID
			}
			_, err := f.s.Settle(f.ctx, caller, models.SettleParams{RequestID: req.ID, AdID: adID, ReportedViewDuration: tt.viewed})
			require.ErrorIs(t, err, tt.err)

			stored, err := f.s.GetRequest(f.ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, models.RequestStatusPending, stored.Status)
			assert.Nil(t, stored.CompletedAt)
			assert.Equal(t, funds, f.totalFunds(t))
			assert.Equal(t, userBefore, f.balance(t, user))
			assert.Zero(t, f.balance(t, recipient))
			assert.Zero(t, f.balance(t, feeSink))

			ad, err := f.s.GetAd(f.ctx, "A1")
			require.NoError(t, err)
			assert.Zero(t, ad.ViewCount)
		})
	}
}

func TestSettleAtExpiryBoundary(t *testing.T) {
	f := funded(t)
	req := f.initiate(t, 1)

	f.clock.Add(300 * time.Second)
	require.Equal(t, req.ExpiresAt, f.clock.Now().Unix())
	_, err := f.settle(req, 300)
	assert.NoError(t, err)
}

func TestSettleTwice(t *testing.T) {
	f := funded(t)
	req := f.initiate(t, 1)
	f.clock.Add(5 * time.Second)

	_, err := f.settle(req, 5)
	require.NoError(t, err)
	funds := f.totalFunds(t)

	_, err = f.settle(req, 5)
	assert.ErrorIs(t, err, models.ErrInvalidStatus)
	assert.Equal(t, funds, f.totalFunds(t))
	assert.Equal(t, uint64(100_000), f.balance(t, recipient))
}

func TestConcurrentSettlesShareOneFee(t *testing.T) {
	f := newFixture(t)
	_, err := f.s.Initialize(f.ctx, admin, common.Address{})
	require.NoError(t, err)
	_, err = f.s.CreateAd(f.ctx, admin, adParams("A1"))
	require.NoError(t, err)
	_, err = f.s.Deposit(f.ctx, admin, 5100)
	require.NoError(t, err)

	reqs := []*models.Request{f.initiate(t, 1), f.initiate(t, 2)}
	f.clock.Add(5 * time.Second)

	errs := make([]error, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *models.Request) {
			defer wg.Done()
			_, errs[i] = f.settle(req, 5)
		}(i, req)
	}
	wg.Wait()

	var settled int
	for _, err := range errs {
		if err == nil {
			settled++
			continue
		}
		assert.ErrorIs(t, err, models.ErrInsufficientProgramFunds)
	}
	assert.Equal(t, 1, settled)
	assert.Zero(t, f.totalFunds(t))
	assert.Zero(t, f.balance(t, f.s.PoolAddress()))
	assert.Equal(t, uint64(5100), f.balance(t, feeSink))
	assert.Equal(t, uint64(100_000), f.balance(t, recipient))
}

func TestSettleUnknownRequest(t *testing.T) {
	f := funded(t)
	_, err := f.s.Settle(f.ctx, user, models.SettleParams{RequestID: "missing", AdID: "A1", ReportedViewDuration: 5})
	assert.ErrorIs(t, err, models.ErrRequestNotFound)
}

func TestFeeIsLockedAtInitiation(t *testing.T) {
	f := funded(t)
	req := f.initiate(t, 1)

	_, err := f.s.SetBaseFee(f.ctx, admin, 9000)
	require.NoError(t, err)
	f.clock.Add(5 * time.Second)

	settled, err := f.settle(req, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5100), settled.CalculatedFee)
	assert.Equal(t, uint64(5100), f.balance(t, feeSink))
	assert.Equal(t, uint64(1_000_000-5100), f.totalFunds(t))

	next := f.initiate(t, 2)
	assert.Equal(t, uint64(9100), next.CalculatedFee)
}

func TestSettleWhilePaused(t *testing.T) {
	f := funded(t)
	req := f.initiate(t, 1)
	_, err := f.s.TogglePause(f.ctx, admin)
	require.NoError(t, err)
	f.clock.Add(5 * time.Second)

	_, err = f.settle(req, 5)
	assert.NoError(t, err)
}

func TestCancel(t *testing.T) {
	f := funded(t)
	req := f.initiate(t, 1)

	_, err := f.s.Cancel(f.ctx, stranger, req.ID)
	require.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.s.TogglePause(f.ctx, admin)
	require.NoError(t, err)

	cancelled, err := f.s.Cancel(f.ctx, user, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, models.EventRequestCancelled, f.events.last().Type)

	_, err = f.s.Cancel(f.ctx, user, req.ID)
	assert.ErrorIs(t, err, models.ErrInvalidStatus)

	f.clock.Add(5 * time.Second)
	_, err = f.settle(req, 5)
	assert.ErrorIs(t, err, models.ErrInvalidStatus)

	assert.Equal(t, uint64(1_000_000), f.totalFunds(t))
	assert.Equal(t, uint64(userBalance), f.balance(t, user))
}

func TestCancelExpiredRequest(t *testing.T) {
	f := funded(t)
	req := f.initiate(t, 1)
	f.clock.Add(time.Hour)

	cancelled, err := f.s.Cancel(f.ctx, user, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, cancelled.Status)
}

func TestEventsFollowCommits(t *testing.T) {
	f := funded(t)
	req := f.initiate(t, 1)
	f.clock.Add(2 * time.Second)
	_, err := f.settle(req, 2)
	require.Error(t, err)

	assert.Equal(t, []models.EventType{
		models.EventInitialized,
		models.EventDeposited,
		models.EventAdCreated,
		models.EventTransactionInitiated,
	}, f.events.types())
}

var errCommit = errors.New("commit failed")

// failingCommitRepo runs the callback but never commits it.
type failingCommitRepo struct {
	models.Repository
	fail bool
}

func (r *failingCommitRepo) Atomic(ctx context.Context, fn func(tx models.Store) error) error {
	return r.Repository.Atomic(ctx, func(tx models.Store) error {
		if err := fn(tx); err != nil {
			return err
		}
		if r.fail {
			return errCommit
		}
		return nil
	})
}

func TestLedgerRevertedWhenCommitFails(t *testing.T) {
	repo := &failingCommitRepo{Repository: repository.NewMemoryRepository(logger.NewNop())}
	f := newFixtureWithRepo(t, repo)
	f.setup(t)
	req := f.initiate(t, 1)
	f.clock.Add(5 * time.Second)

	repo.fail = true
	_, err := f.settle(req, 5)
	require.ErrorIs(t, err, errCommit)

	assert.Equal(t, uint64(userBalance), f.balance(t, user))
	assert.Zero(t, f.balance(t, recipient))
	assert.Zero(t, f.balance(t, feeSink))
	assert.Equal(t, uint64(1_000_000), f.balance(t, f.s.PoolAddress()))
	assert.Equal(t, uint64(1_000_000), f.totalFunds(t))

	repo.fail = false
	_, err = f.settle(req, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), f.balance(t, recipient))
}

func TestCalculateFee(t *testing.T) {
	fee, err := CalculateFee(5000, 100_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(5100), fee)

	fee, err = CalculateFee(5000, 1999)
	require.NoError(t, err)
	assert.Equal(t, uint64(5001), fee)

	_, err = CalculateFee(^uint64(0), 1000)
	assert.ErrorIs(t, err, models.ErrMathOverflow)
}
