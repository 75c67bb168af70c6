package models

import (
	"errors"

	"github.com/core-coin/adsponsor/pkg/checked"
)

// Every check performed by the service fails with exactly one of these.
var (
	ErrUnauthorized             = errors.New("unauthorized")
	ErrNotInitialized           = errors.New("pool not initialized")
	ErrAlreadyInitialized       = errors.New("pool already initialized")
	ErrProgramPaused            = errors.New("program is paused")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidFee               = errors.New("invalid fee")
	ErrInvalidRecipient         = errors.New("invalid recipient")
	ErrInvalidAdID              = errors.New("invalid ad id")
	ErrInvalidAdURL             = errors.New("invalid ad url")
	ErrInvalidAdContent         = errors.New("invalid ad content")
	ErrInvalidDisplayTime       = errors.New("display duration below minimum")
	ErrRewardTooLow             = errors.New("reward amount below minimum")
	ErrAdNotFound               = errors.New("ad not found")
	ErrAdExists                 = errors.New("ad already exists")
	ErrAdNotActive              = errors.New("ad is not active")
	ErrAdMismatch               = errors.New("ad does not match request")
	ErrAdNotStarted             = errors.New("ad display not started")
	ErrInsufficientViewTime     = errors.New("insufficient ad view time")
	ErrInsufficientProgramFunds = errors.New("insufficient program funds to cover fee")
	ErrRequestNotFound          = errors.New("request not found")
	ErrRequestExists            = errors.New("request already exists")
	ErrInvalidStatus            = errors.New("invalid request status")
	ErrRequestExpired           = errors.New("request expired")
	ErrMathOverflow             = checked.ErrOverflow
	ErrMathUnderflow            = checked.ErrUnderflow
	ErrInsufficientBalance      = errors.New("insufficient ledger balance")
	ErrInvalidAuthority         = errors.New("invalid transfer authority")
)

// ErrorCode returns a stable machine-readable code for a service error, or
// "internal" when err is not one of the kinds above.
func ErrorCode(err error) string {
	for _, k := range errorCodes {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrUnauthorized, "unauthorized"},
	{ErrNotInitialized, "not_initialized"},
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrProgramPaused, "program_paused"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInvalidFee, "invalid_fee"},
	{ErrInvalidRecipient, "invalid_recipient"},
	{ErrInvalidAdID, "invalid_ad_id"},
	{ErrInvalidAdURL, "invalid_ad_url"},
	{ErrInvalidAdContent, "invalid_ad_content"},
	{ErrInvalidDisplayTime, "invalid_display_time"},
	{ErrRewardTooLow, "reward_too_low"},
	{ErrAdNotFound, "ad_not_found"},
	{ErrAdExists, "ad_exists"},
	{ErrAdNotActive, "ad_not_active"},
	{ErrAdMismatch, "ad_mismatch"},
	{ErrAdNotStarted, "ad_not_started"},
	{ErrInsufficientViewTime, "insufficient_view_time"},
	{ErrInsufficientProgramFunds, "insufficient_program_funds"},
	{ErrRequestNotFound, "request_not_found"},
	{ErrRequestExists, "request_exists"},
	{ErrInvalidStatus, "invalid_status"},
	{ErrRequestExpired, "request_expired"},
	{ErrMathOverflow, "math_overflow"},
	{ErrMathUnderflow, "math_underflow"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrInvalidAuthority, "invalid_authority"},
}
