package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var hexAddressPattern = regexp.MustCompile("^[0-9a-fA-F]{40}$")

// DeadAddress is the conventional burn sink with no known private key.
var DeadAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// IsEvmAddress checks whether address is a 20-byte hex address, with or without 0x.
func IsEvmAddress(address string) bool {
	address = strings.TrimSpace(address)
	if address == "" {
		return false
	}
	if strings.HasPrefix(strings.ToLower(address), "0x") {
		address = address[2:]
	}
	return hexAddressPattern.MatchString(address)
}

// NormalizeAddress lowercases an EVM address and adds the 0x prefix if missing.
// Non-EVM input is returned unchanged.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if !IsEvmAddress(address) {
		return address
	}
	if strings.HasPrefix(strings.ToLower(address), "0x") {
		return strings.ToLower(address)
	}
	return "0x" + strings.ToLower(address)
}

// ParseAddress parses an EVM address and rejects malformed input.
func ParseAddress(address string) (common.Address, error) {
	if !IsEvmAddress(address) {
		return common.Address{}, fmt.Errorf("invalid EVM address %q", address)
	}
	return common.HexToAddress(NormalizeAddress(address)), nil
}

// ParseNonZeroAddress parses an EVM address and rejects the zero address.
func ParseNonZeroAddress(name, address string) (common.Address, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", name, err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s must not be the zero address", name)
	}
	return addr, nil
}

// SortAddresses orders a pair the way AMM factories do (token0 < token1).
func SortAddresses(a, b common.Address) (common.Address, common.Address) {
	if strings.Compare(strings.ToLower(a.Hex()), strings.ToLower(b.Hex())) > 0 {
		return b, a
	}
	return a, b
}
