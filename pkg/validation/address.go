package validation

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/core-coin/go-core/v2/common"
)

// ValidateAddress validates a blockchain address format
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	normalized := NormalizeAddress(addr)

	// 44 hex characters = 22 bytes
	if len(normalized) != common.AddressLength*2 {
		return fmt.Errorf("invalid address length: expected %d characters (without 0x), got %d", common.AddressLength*2, len(normalized))
	}

	if _, err := hex.DecodeString(normalized); err != nil {
		return fmt.Errorf("invalid hex address: %w", err)
	}

	return nil
}

// NormalizeAddress converts an address to lowercase without 0x prefix
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.TrimPrefix(addr, "0x")
	addr = strings.TrimPrefix(addr, "0X")
	return strings.ToLower(addr)
}

// ParseAddress validates an address and decodes it. The checksum byte is
// not verified, so addresses from any network ID are accepted.
func ParseAddress(addr string) (common.Address, error) {
	if err := ValidateAddress(addr); err != nil {
		return common.Address{}, err
	}
	raw, err := hex.DecodeString(NormalizeAddress(addr))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid hex address: %w", err)
	}
	return common.BytesToAddress(raw), nil
}

// FormatAddress renders an address the way ParseAddress accepts it.
func FormatAddress(addr common.Address) string {
	return hex.EncodeToString(addr.Bytes())
}

// IsZeroAddress reports whether addr is the empty identity.
func IsZeroAddress(addr common.Address) bool {
	return addr == common.Address{}
}
