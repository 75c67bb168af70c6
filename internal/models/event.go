package models

import (
	"fmt"

	"github.com/core-coin/go-core/v2/common"
	"github.com/google/uuid"
)

// EventType names a state transition observers can subscribe to.
type EventType string

const (
	EventInitialized          EventType = "initialized"
	EventDeposited            EventType = "deposited"
	EventWithdrawn            EventType = "withdrawn"
	EventAdCreated            EventType = "ad_created"
	EventAdToggled            EventType = "ad_toggled"
	EventTransactionInitiated EventType = "transaction_initiated"
	EventTransactionCompleted EventType = "transaction_completed"
	EventRequestCancelled     EventType = "request_cancelled"
	EventBaseFeeUpdated       EventType = "base_fee_updated"
	EventFeePerAdUpdated      EventType = "fee_per_ad_updated"
	EventPauseToggled         EventType = "pause_toggled"
)

// Event is an advisory notification about a committed state transition.
// Only the fields relevant to Type are set.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       EventType      `json:"type"`
	Actor      common.Address `json:"actor"`
	Amount     uint64         `json:"amount,omitempty"`
	Sponsored  uint64         `json:"sponsored,omitempty"`
	TotalFunds uint64         `json:"total_funds"`
	AdID       string         `json:"ad_id,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Recipient  common.Address `json:"recipient"`
	Content    string         `json:"content,omitempty"`
	Flag       bool           `json:"flag,omitempty"`
	Timestamp  int64          `json:"timestamp"`
}

// NewEvent stamps a fresh event id.
func NewEvent(eventType EventType, actor common.Address, timestamp int64) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Actor:     actor,
		Timestamp: timestamp,
	}
}

func (e *Event) String() string {
	switch e.Type {
	case EventDeposited, EventWithdrawn:
		return fmt.Sprintf("Pool %s %d by %x. Total funds: %d", e.Type, e.Amount, e.Actor.Bytes(), e.TotalFunds)
	case EventTransactionCompleted:
		return fmt.Sprintf("Request %s settled: %d sent to %x, fee %d sponsored. Total funds: %d",
			e.RequestID, e.Amount, e.Recipient.Bytes(), e.Sponsored, e.TotalFunds)
	case EventTransactionInitiated:
		return fmt.Sprintf("Request %s opened: %d to %x, fee %d, ad %s", e.RequestID, e.Amount, e.Recipient.Bytes(), e.Sponsored, e.AdID)
	case EventAdCreated, EventAdToggled:
		return fmt.Sprintf("Ad %s %s (active: %t)", e.AdID, e.Type, e.Flag)
	case EventRequestCancelled:
		return fmt.Sprintf("Request %s cancelled by %x", e.RequestID, e.Actor.Bytes())
	case EventPauseToggled:
		return fmt.Sprintf("Pool paused: %t", e.Flag)
	default:
		return fmt.Sprintf("%s by %x (amount %d, total funds %d)", e.Type, e.Actor.Bytes(), e.Amount, e.TotalFunds)
	}
}

// NotificationService delivers events to external observers.
type NotificationService interface {
	Notify(event *Event)
}
