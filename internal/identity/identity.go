// Package identity parses and normalizes the on-ledger identifiers:
// 20-byte account addresses and 32-byte API identifiers.
package identity

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAddress = errors.New("invalid_address")
	ErrInvalidApiID   = errors.New("invalid_api_id")
	ErrInvalidUsageID = errors.New("invalid_usage_id")
)

var hash32Pattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// ParseAddress parses a 0x-prefixed 20-byte hex address.
func ParseAddress(value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, ErrInvalidAddress
	}
	return common.HexToAddress(value), nil
}

// ParseApiID parses a 0x-prefixed 32-byte hex API identifier.
// HexToHash silently pads short input, so length is checked first.
func ParseApiID(value string) (common.Hash, error) {
	value = strings.TrimSpace(value)
	if !hash32Pattern.MatchString(value) {
		return common.Hash{}, ErrInvalidApiID
	}
	return common.HexToHash(value), nil
}

// ParseUsageID parses a 0x-prefixed 32-byte hex usage identifier. Same
// shape as an apiID, but malformed input names the right identifier.
func ParseUsageID(value string) (common.Hash, error) {
	value = strings.TrimSpace(value)
	if !hash32Pattern.MatchString(value) {
		return common.Hash{}, ErrInvalidUsageID
	}
	return common.HexToHash(value), nil
}

// AddressHex returns the canonical lowercase hex form used as a storage key.
func AddressHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// HashHex returns the canonical lowercase hex form used as a storage key.
func HashHex(h common.Hash) string {
	return strings.ToLower(h.Hex())
}

// IsZeroAddress reports whether addr is the zero address.
func IsZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}
