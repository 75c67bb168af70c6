package models

import "github.com/core-coin/go-core/v2/common"

// RequestStatus is the lifecycle state of a Request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed. Only a
// pending request can still move.
func (s RequestStatus) IsTerminal() bool {
	return s != RequestStatusPending
}

// Request is a user's instruction to send Amount to Recipient once the
// selected ad has been watched.
type Request struct {
	// ID is the derived storage key, see RequestKey.
	ID    string         `json:"id" gorm:"column:id;primaryKey;size:64"`
	User  common.Address `json:"user" gorm:"column:user_address;type:bytea;index;not null"`
	Nonce uint64         `json:"nonce" gorm:"column:nonce;not null"`
	// Recipient receives exactly Amount on settlement.
	Recipient common.Address `json:"recipient" gorm:"column:recipient;type:bytea;not null"`
	Amount    uint64         `json:"amount" gorm:"column:amount;not null"`
	// CalculatedFee is fixed at initiation and never re-derived.
	CalculatedFee uint64        `json:"calculated_fee" gorm:"column:calculated_fee;not null"`
	Status        RequestStatus `json:"status" gorm:"column:status;size:16;index;not null"`
	SelectedAdID  string        `json:"selected_ad_id" gorm:"column:selected_ad_id;index;not null"`
	CreatedAt     int64         `json:"created_at" gorm:"column:created_at"`
	ExpiresAt     int64         `json:"expires_at" gorm:"column:expires_at"`

	AdDisplayStartedAt *int64 `json:"ad_display_started_at,omitempty" gorm:"column:ad_display_started_at"`
	CompletedAt        *int64 `json:"completed_at,omitempty" gorm:"column:completed_at"`
	CancelledAt        *int64 `json:"cancelled_at,omitempty" gorm:"column:cancelled_at"`
	AdViewDuration     *int64 `json:"ad_view_duration,omitempty" gorm:"column:ad_view_duration"`
}

// TableName specifies the table name for GORM
func (Request) TableName() string {
	return "requests"
}
