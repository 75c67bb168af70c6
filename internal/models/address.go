package models

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/core-coin/go-core/v2/common"
	"golang.org/x/crypto/sha3"
)

const (
	// PoolSeed is the seed of the singleton pool state record and of the
	// authority that controls the pool's custodial balance.
	PoolSeed = "state"

	adSeed        = "ad"
	requestSeed   = "request"
	authoritySeed = "authority"
)

// DeriveKey returns the storage key for a record addressed by the given seeds.
func DeriveKey(seeds ...[]byte) string {
	h := sha3.New256()
	for _, s := range seeds {
		h.Write(s)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PoolStateKey is the key of the singleton PoolState record.
func PoolStateKey() string {
	return DeriveKey([]byte(PoolSeed))
}

// AdKey is the key of the advertisement with the given id.
func AdKey(id string) string {
	return DeriveKey([]byte(adSeed), []byte(id))
}

// RequestKey is the key of the request opened by user with the given nonce.
// It doubles as the request id handed out to callers.
func RequestKey(user common.Address, nonce uint64) string {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], nonce)
	return DeriveKey([]byte(requestSeed), user.Bytes(), n[:])
}

// Authority lets the holder move funds out of a derived custodial address
// without an external signer. The zero value authorizes nothing.
type Authority struct {
	seed    string
	address common.Address
}

// DeriveAuthority returns the authority for the custodial address derived
// from seed.
func DeriveAuthority(seed string) Authority {
	return Authority{seed: seed, address: deriveAuthorityAddress(seed)}
}

func deriveAuthorityAddress(seed string) common.Address {
	sum := sha3.Sum256(append([]byte(authoritySeed), seed...))
	return common.BytesToAddress(sum[:common.AddressLength])
}

// Address is the custodial address controlled by the authority.
func (a Authority) Address() common.Address {
	return a.address
}

// Authorizes reports whether the authority may debit addr.
func (a Authority) Authorizes(addr common.Address) bool {
	if a.seed == "" {
		return false
	}
	return a.address == addr && deriveAuthorityAddress(a.seed) == addr
}
