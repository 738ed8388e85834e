package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the decimal precision of the ledger's native asset (wei).
const NativeDecimals = 18

// ParseUnits converts a human decimal amount ("2", "0.5") into base units with
// the given number of decimals. Amounts finer than the precision are rejected.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", amount)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	return scaled.BigInt(), nil
}

// ParseEther converts a native-asset amount into wei.
func ParseEther(amount string) (*big.Int, error) {
	return ParseUnits(amount, NativeDecimals)
}

// FormatUnits renders base units as a decimal string.
func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ParseFraction parses a fraction in (0,1].
func ParseFraction(fraction string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(fraction))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid fraction %q: %w", fraction, err)
	}
	if !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("fraction %s must be in (0,1]", d.String())
	}
	return d, nil
}
