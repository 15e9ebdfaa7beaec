// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// MaxDecimals is the largest decimals value accepted by the unit helpers.
const MaxDecimals = 77

var (
	errEmptyAmount     = errors.New("amount cannot be empty")
	errInvalidAmount   = errors.New("invalid amount")
	errExcessPrecision = errors.New("amount has more fractional digits than the asset")
	errInvalidDecimals = errors.New("invalid decimals")
)

// ParseUnits converts a human-readable amount to base units
// e.g., "0.01" with 18 decimals -> 10000000000000000
func ParseUnits(amount string, decimals int) (*uint256.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: %d", errInvalidDecimals, decimals)
	}
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, errEmptyAmount
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, fmt.Errorf("%w: %q", errInvalidAmount, amount)
	}

	frac = strings.TrimRight(frac, "0")
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: %q has %d decimals", errExcessPrecision, amount, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	combined := strings.TrimLeft(whole+frac, "0")
	if combined == "" {
		combined = "0"
	}
	result, err := uint256.FromDecimal(combined)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", errInvalidAmount, amount, err)
	}
	return result, nil
}

// FormatUnits converts base units to a human-readable amount
// e.g., 10000000000000000 with 18 decimals -> "0.01"
func FormatUnits(amount *uint256.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	str := amount.Dec()
	if decimals <= 0 {
		return str
	}
	if len(str) <= decimals {
		str = strings.Repeat("0", decimals-len(str)+1) + str
	}

	insertPos := len(str) - decimals
	whole := str[:insertPos]
	frac := strings.TrimRight(str[insertPos:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
