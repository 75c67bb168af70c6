package models

import "github.com/core-coin/go-core/v2/common"

// PoolState is the singleton custodial pool. TotalFunds always equals net
// deposits minus withdrawals minus sponsored fees.
type PoolState struct {
	// Key is the derived storage key, see PoolStateKey.
	Key string `json:"-" gorm:"column:record_key;primaryKey;size:64"`
	// Admin is the only identity allowed to fund, drain and configure the pool.
	Admin common.Address `json:"admin" gorm:"column:admin;type:bytea;not null"`
	// TotalFunds is the custodial balance available for sponsoring fees.
	TotalFunds uint64 `json:"total_funds" gorm:"column:total_funds;not null"`
	// TotalAdsViewed counts settled requests, one ad view each.
	TotalAdsViewed uint64 `json:"total_ads_viewed" gorm:"column:total_ads_viewed;not null"`
	// TotalTransactions counts settled transfers.
	TotalTransactions uint64 `json:"total_transactions" gorm:"column:total_transactions;not null"`
	// FeePerAd is configurable but not used by settlement.
	FeePerAd uint64 `json:"fee_per_ad" gorm:"column:fee_per_ad;not null"`
	// BaseTransactionFee is the flat part of every calculated fee.
	BaseTransactionFee uint64 `json:"base_transaction_fee" gorm:"column:base_transaction_fee;not null"`
	// IsPaused blocks deposits, ad creation and new requests.
	IsPaused bool `json:"is_paused" gorm:"column:is_paused;not null"`
	// CreatedAt is the unix time of initialization.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at"`
}

// TableName specifies the table name for GORM
func (PoolState) TableName() string {
	return "pool_states"
}

// Stats is a read-only view of the pool.
type Stats struct {
	Admin              common.Address `json:"admin"`
	PoolAddress        common.Address `json:"pool_address"`
	TotalFunds         uint64         `json:"total_funds"`
	TotalAdsViewed     uint64         `json:"total_ads_viewed"`
	TotalTransactions  uint64         `json:"total_transactions"`
	FeePerAd           uint64         `json:"fee_per_ad"`
	BaseTransactionFee uint64         `json:"base_transaction_fee"`
	IsPaused           bool           `json:"is_paused"`
}
