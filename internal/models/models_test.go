package models

import (
	"fmt"
	"testing"

	"github.com/core-coin/go-core/v2/common"
	"github.com/stretchr/testify/assert"
)

func TestDeriveKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, PoolStateKey(), PoolStateKey())
	assert.Equal(t, AdKey("A1"), AdKey("A1"))
	assert.NotEqual(t, AdKey("A1"), AdKey("A2"))
	assert.Len(t, PoolStateKey(), 64)
}

func TestRequestKeySeparatesUsersAndNonces(t *testing.T) {
	alice := common.BytesToAddress([]byte{0xa1})
	bob := common.BytesToAddress([]byte{0xb0})

	assert.Equal(t, RequestKey(alice, 1), RequestKey(alice, 1))
	assert.NotEqual(t, RequestKey(alice, 1), RequestKey(alice, 2))
	assert.NotEqual(t, RequestKey(alice, 1), RequestKey(bob, 1))
}

func TestAuthority(t *testing.T) {
	pool := DeriveAuthority(PoolSeed)
	assert.Equal(t, DeriveAuthority(PoolSeed).Address(), pool.Address())
	assert.NotEqual(t, common.Address{}, pool.Address())
	assert.True(t, pool.Authorizes(pool.Address()))
	assert.False(t, pool.Authorizes(common.BytesToAddress([]byte{1})))

	other := DeriveAuthority("other")
	assert.False(t, other.Authorizes(pool.Address()))

	var forged Authority
	assert.False(t, forged.Authorizes(common.Address{}))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "unauthorized", ErrorCode(ErrUnauthorized))
	assert.Equal(t, "request_expired", ErrorCode(fmt.Errorf("settle: %w", ErrRequestExpired)))
	assert.Equal(t, "internal", ErrorCode(fmt.Errorf("boom")))
}

func TestRequestStatusIsTerminal(t *testing.T) {
	assert.False(t, RequestStatusPending.IsTerminal())
	assert.True(t, RequestStatusCompleted.IsTerminal())
	assert.True(t, RequestStatusCancelled.IsTerminal())
}
