package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUnits formats an amount of the smallest unit as a decimal string in whole units, the
// way wallets display balances: "1.5", "0.0001", and "2.0" for whole amounts.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0.0"
	}

	s := decimal.NewFromBigInt(amount, -int32(decimals)).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}

	return s
}

// ParseUnits parses a decimal amount in whole units into the smallest unit. Negative amounts
// and amounts finer than the smallest unit are rejected.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty amount")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: must not be negative", s)
	}

	d = d.Shift(int32(decimals))
	if !d.IsInteger() {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimals", s, decimals)
	}

	return d.BigInt(), nil
}

// FormatEther formats wei as ether.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, 18)
}

// ParseEther parses an ether amount into wei.
func ParseEther(s string) (*big.Int, error) {
	return ParseUnits(s, 18)
}
