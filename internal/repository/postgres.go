package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/core-coin/go-core/v2/common"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/core-coin/adsponsor/internal/models"
	"github.com/core-coin/adsponsor/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (*PostgresDB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.AutoMigrate(&models.PoolState{}, &models.Advertisement{}, &models.Request{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

// Atomic runs fn inside a database transaction. The pool state row is locked
// on first read, which serializes every operation that touches the pool.
func (db *PostgresDB) Atomic(ctx context.Context, fn func(tx models.Store) error) error {
	return db.Conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&postgresTx{conn: tx})
	})
}

func (db *PostgresDB) store(ctx context.Context) *postgresTx {
	return &postgresTx{conn: db.Conn.WithContext(ctx), readOnly: true}
}

func (db *PostgresDB) CreatePoolState(ctx context.Context, state *models.PoolState) error {
	return db.store(ctx).CreatePoolState(ctx, state)
}

func (db *PostgresDB) GetPoolState(ctx context.Context) (*models.PoolState, error) {
	return db.store(ctx).GetPoolState(ctx)
}

func (db *PostgresDB) UpdatePoolState(ctx context.Context, state *models.PoolState) error {
	return db.store(ctx).UpdatePoolState(ctx, state)
}

func (db *PostgresDB) CreateAdvertisement(ctx context.Context, ad *models.Advertisement) error {
	return db.store(ctx).CreateAdvertisement(ctx, ad)
}

func (db *PostgresDB) GetAdvertisement(ctx context.Context, id string) (*models.Advertisement, error) {
	return db.store(ctx).GetAdvertisement(ctx, id)
}

func (db *PostgresDB) UpdateAdvertisement(ctx context.Context, ad *models.Advertisement) error {
	return db.store(ctx).UpdateAdvertisement(ctx, ad)
}

func (db *PostgresDB) ListAdvertisements(ctx context.Context, activeOnly bool) ([]*models.Advertisement, error) {
	return db.store(ctx).ListAdvertisements(ctx, activeOnly)
}

func (db *PostgresDB) CreateRequest(ctx context.Context, request *models.Request) error {
	return db.store(ctx).CreateRequest(ctx, request)
}

func (db *PostgresDB) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	return db.store(ctx).GetRequest(ctx, id)
}

func (db *PostgresDB) UpdateRequest(ctx context.Context, request *models.Request) error {
	return db.store(ctx).UpdateRequest(ctx, request)
}

func (db *PostgresDB) ListRequestsByUser(ctx context.Context, user common.Address) ([]*models.Request, error) {
	return db.store(ctx).ListRequestsByUser(ctx, user)
}

// postgresTx implements models.Store on a gorm handle. Outside a transaction
// (readOnly) rows are read without locks.
type postgresTx struct {
	conn     *gorm.DB
	readOnly bool
}

func (t *postgresTx) locked() *gorm.DB {
	if t.readOnly {
		return t.conn
	}
	return t.conn.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *postgresTx) CreatePoolState(_ context.Context, state *models.PoolState) error {
	state.Key = models.PoolStateKey()
	if err := t.conn.Create(state).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrAlreadyInitialized
		}
		return fmt.Errorf("failed to create pool state: %w", err)
	}
	return nil
}

func (t *postgresTx) GetPoolState(_ context.Context) (*models.PoolState, error) {
	var state models.PoolState
	if err := t.locked().Where("record_key = ?", models.PoolStateKey()).First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to get pool state: %w", err)
	}
	return &state, nil
}

func (t *postgresTx) UpdatePoolState(_ context.Context, state *models.PoolState) error {
	state.Key = models.PoolStateKey()
	res := t.conn.Model(&models.PoolState{}).Where("record_key = ?", state.Key).Select("*").Updates(state)
	if res.Error != nil {
		return fmt.Errorf("failed to update pool state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotInitialized
	}
	return nil
}

func (t *postgresTx) CreateAdvertisement(_ context.Context, ad *models.Advertisement) error {
	ad.Key = models.AdKey(ad.ID)
	if err := t.conn.Create(ad).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrAdExists
		}
		return fmt.Errorf("failed to create advertisement: %w", err)
	}
	return nil
}

func (t *postgresTx) GetAdvertisement(_ context.Context, id string) (*models.Advertisement, error) {
	var ad models.Advertisement
	if err := t.locked().Where("record_key = ?", models.AdKey(id)).First(&ad).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrAdNotFound
		}
		return nil, fmt.Errorf("failed to get advertisement: %w", err)
	}
	return &ad, nil
}

func (t *postgresTx) UpdateAdvertisement(_ context.Context, ad *models.Advertisement) error {
	ad.Key = models.AdKey(ad.ID)
	res := t.conn.Model(&models.Advertisement{}).Where("record_key = ?", ad.Key).Select("*").Updates(ad)
	if res.Error != nil {
		return fmt.Errorf("failed to update advertisement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrAdNotFound
	}
	return nil
}

func (t *postgresTx) ListAdvertisements(_ context.Context, activeOnly bool) ([]*models.Advertisement, error) {
	var ads []*models.Advertisement
	query := t.conn.Order("created_at ASC, ad_id ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&ads).Error; err != nil {
		return nil, fmt.Errorf("failed to list advertisements: %w", err)
	}
	return ads, nil
}

func (t *postgresTx) CreateRequest(_ context.Context, request *models.Request) error {
	if err := t.conn.Create(request).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrRequestExists
		}
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (t *postgresTx) GetRequest(_ context.Context, id string) (*models.Request, error) {
	var request models.Request
	if err := t.locked().Where("id = ?", id).First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return &request, nil
}

func (t *postgresTx) UpdateRequest(_ context.Context, request *models.Request) error {
	res := t.conn.Model(&models.Request{}).Where("id = ?", request.ID).Select("*").Updates(request)
	if res.Error != nil {
		return fmt.Errorf("failed to update request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrRequestNotFound
	}
	return nil
}

func (t *postgresTx) ListRequestsByUser(_ context.Context, user common.Address) ([]*models.Request, error) {
	var requests []*models.Request
	if err := t.conn.Where("user_address = ?", user.Bytes()).Order("created_at ASC, nonce ASC").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}
