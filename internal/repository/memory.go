package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/core-coin/go-core/v2/common"

	"github.com/core-coin/adsponsor/internal/models"
	"github.com/core-coin/adsponsor/pkg/logger"
)

// MemoryRepository keeps all records in process memory. Atomic holds a single
// writer lock and buffers writes in an overlay that is merged only when the
// callback succeeds.
type MemoryRepository struct {
	logger *logger.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	data    *memoryData
}

type memoryData struct {
	pool     *models.PoolState
	ads      map[string]*models.Advertisement
	requests map[string]*models.Request
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository(logger *logger.Logger) *MemoryRepository {
	return &MemoryRepository{
		logger: logger,
		data: &memoryData{
			ads:      make(map[string]*models.Advertisement),
			requests: make(map[string]*models.Request),
		},
	}
}

func (r *MemoryRepository) Close() error {
	return nil
}

// Atomic runs fn against a buffered view of the repository.
func (r *MemoryRepository) Atomic(ctx context.Context, fn func(tx models.Store) error) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx := &memoryTx{
		base:     r,
		ads:      make(map[string]*models.Advertisement),
		requests: make(map[string]*models.Request),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.pool != nil {
		r.data.pool = tx.pool
	}
	for key, ad := range tx.ads {
		r.data.ads[key] = ad
	}
	for key, req := range tx.requests {
		r.data.requests[key] = req
	}
	return nil
}

func (r *MemoryRepository) run(ctx context.Context, fn func(tx models.Store) error) error {
	return r.Atomic(ctx, fn)
}

func (r *MemoryRepository) CreatePoolState(ctx context.Context, state *models.PoolState) error {
	return r.run(ctx, func(tx models.Store) error { return tx.CreatePoolState(ctx, state) })
}

func (r *MemoryRepository) GetPoolState(_ context.Context) (*models.PoolState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.data.pool == nil {
		return nil, models.ErrNotInitialized
	}
	return clonePool(r.data.pool), nil
}

func (r *MemoryRepository) UpdatePoolState(ctx context.Context, state *models.PoolState) error {
	return r.run(ctx, func(tx models.Store) error { return tx.UpdatePoolState(ctx, state) })
}

func (r *MemoryRepository) CreateAdvertisement(ctx context.Context, ad *models.Advertisement) error {
	return r.run(ctx, func(tx models.Store) error { return tx.CreateAdvertisement(ctx, ad) })
}

func (r *MemoryRepository) GetAdvertisement(_ context.Context, id string) (*models.Advertisement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ad, ok := r.data.ads[models.AdKey(id)]
	if !ok {
		return nil, models.ErrAdNotFound
	}
	return cloneAd(ad), nil
}

func (r *MemoryRepository) UpdateAdvertisement(ctx context.Context, ad *models.Advertisement) error {
	return r.run(ctx, func(tx models.Store) error { return tx.UpdateAdvertisement(ctx, ad) })
}

func (r *MemoryRepository) ListAdvertisements(_ context.Context, activeOnly bool) ([]*models.Advertisement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return filterAds(r.data.ads, nil, activeOnly), nil
}

func (r *MemoryRepository) CreateRequest(ctx context.Context, request *models.Request) error {
	return r.run(ctx, func(tx models.Store) error { return tx.CreateRequest(ctx, request) })
}

func (r *MemoryRepository) GetRequest(_ context.Context, id string) (*models.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.data.requests[id]
	if !ok {
		return nil, models.ErrRequestNotFound
	}
	return cloneRequest(req), nil
}

func (r *MemoryRepository) UpdateRequest(ctx context.Context, request *models.Request) error {
	return r.run(ctx, func(tx models.Store) error { return tx.UpdateRequest(ctx, request) })
}

func (r *MemoryRepository) ListRequestsByUser(_ context.Context, user common.Address) ([]*models.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return filterRequests(r.data.requests, nil, user), nil
}

// memoryTx sees committed data plus its own uncommitted writes.
type memoryTx struct {
	base *MemoryRepository

	pool     *models.PoolState
	ads      map[string]*models.Advertisement
	requests map[string]*models.Request
}

func (tx *memoryTx) committed() *memoryData {
	return tx.base.data
}

func (tx *memoryTx) currentPool() *models.PoolState {
	if tx.pool != nil {
		return tx.pool
	}
	tx.base.mu.RLock()
	defer tx.base.mu.RUnlock()
	return tx.committed().pool
}

func (tx *memoryTx) currentAd(key string) (*models.Advertisement, bool) {
	if ad, ok := tx.ads[key]; ok {
		return ad, true
	}
	tx.base.mu.RLock()
	defer tx.base.mu.RUnlock()
	ad, ok := tx.committed().ads[key]
	return ad, ok
}

func (tx *memoryTx) currentRequest(id string) (*models.Request, bool) {
	if req, ok := tx.requests[id]; ok {
		return req, true
	}
	tx.base.mu.RLock()
	defer tx.base.mu.RUnlock()
	req, ok := tx.committed().requests[id]
	return req, ok
}

func (tx *memoryTx) CreatePoolState(_ context.Context, state *models.PoolState) error {
	if tx.currentPool() != nil {
		return models.ErrAlreadyInitialized
	}
	state.Key = models.PoolStateKey()
	tx.pool = clonePool(state)
	return nil
}

func (tx *memoryTx) GetPoolState(_ context.Context) (*models.PoolState, error) {
	pool := tx.currentPool()
	if pool == nil {
		return nil, models.ErrNotInitialized
	}
	return clonePool(pool), nil
}

func (tx *memoryTx) UpdatePoolState(_ context.Context, state *models.PoolState) error {
	if tx.currentPool() == nil {
		return models.ErrNotInitialized
	}
	state.Key = models.PoolStateKey()
	tx.pool = clonePool(state)
	return nil
}

func (tx *memoryTx) CreateAdvertisement(_ context.Context, ad *models.Advertisement) error {
	key := models.AdKey(ad.ID)
	if _, ok := tx.currentAd(key); ok {
		return models.ErrAdExists
	}
	ad.Key = key
	tx.ads[key] = cloneAd(ad)
	return nil
}

func (tx *memoryTx) GetAdvertisement(_ context.Context, id string) (*models.Advertisement, error) {
	ad, ok := tx.currentAd(models.AdKey(id))
	if !ok {
		return nil, models.ErrAdNotFound
	}
	return cloneAd(ad), nil
}

func (tx *memoryTx) UpdateAdvertisement(_ context.Context, ad *models.Advertisement) error {
	key := models.AdKey(ad.ID)
	if _, ok := tx.currentAd(key); !ok {
		return models.ErrAdNotFound
	}
	ad.Key = key
	tx.ads[key] = cloneAd(ad)
	return nil
}

func (tx *memoryTx) ListAdvertisements(_ context.Context, activeOnly bool) ([]*models.Advertisement, error) {
	tx.base.mu.RLock()
	defer tx.base.mu.RUnlock()
	return filterAds(tx.committed().ads, tx.ads, activeOnly), nil
}

func (tx *memoryTx) CreateRequest(_ context.Context, request *models.Request) error {
	if _, ok := tx.currentRequest(request.ID); ok {
		return models.ErrRequestExists
	}
	tx.requests[request.ID] = cloneRequest(request)
	return nil
}

func (tx *memoryTx) GetRequest(_ context.Context, id string) (*models.Request, error) {
	req, ok := tx.currentRequest(id)
	if !ok {
		return nil, models.ErrRequestNotFound
	}
	return cloneRequest(req), nil
}

func (tx *memoryTx) UpdateRequest(_ context.Context, request *models.Request) error {
	if _, ok := tx.currentRequest(request.ID); !ok {
		return models.ErrRequestNotFound
	}
	tx.requests[request.ID] = cloneRequest(request)
	return nil
}

func (tx *memoryTx) ListRequestsByUser(_ context.Context, user common.Address) ([]*models.Request, error) {
	tx.base.mu.RLock()
	defer tx.base.mu.RUnlock()
	return filterRequests(tx.committed().requests, tx.requests, user), nil
}

func filterAds(base, overlay map[string]*models.Advertisement, activeOnly bool) []*models.Advertisement {
	merged := make(map[string]*models.Advertisement, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}

	ads := make([]*models.Advertisement, 0, len(merged))
	for _, ad := range merged {
		if activeOnly && !ad.IsActive {
			continue
		}
		ads = append(ads, cloneAd(ad))
	}
	sort.Slice(ads, func(i, j int) bool {
		if ads[i].CreatedAt != ads[j].CreatedAt {
			return ads[i].CreatedAt < ads[j].CreatedAt
		}
		return ads[i].ID < ads[j].ID
	})
	return ads
}

func filterRequests(base, overlay map[string]*models.Request, user common.Address) []*models.Request {
	merged := make(map[string]*models.Request, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}

	requests := make([]*models.Request, 0)
	for _, req := range merged {
		if req.User != user {
			continue
		}
		requests = append(requests, cloneRequest(req))
	}
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].CreatedAt != requests[j].CreatedAt {
			return requests[i].CreatedAt < requests[j].CreatedAt
		}
		return requests[i].Nonce < requests[j].Nonce
	})
	return requests
}

func clonePool(p *models.PoolState) *models.PoolState {
	c := *p
	return &c
}

func cloneAd(a *models.Advertisement) *models.Advertisement {
	c := *a
	return &c
}

func cloneRequest(r *models.Request) *models.Request {
	c := *r
	c.AdDisplayStartedAt = cloneInt64(r.AdDisplayStartedAt)
	c.CompletedAt = cloneInt64(r.CompletedAt)
	c.CancelledAt = cloneInt64(r.CancelledAt)
	c.AdViewDuration = cloneInt64(r.AdViewDuration)
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
