// Package core provides the bill record model and its normalization from raw rows.
//
// This file contains helpers for reading amounts out of loosely typed cells
// and rounding them for display.
package core

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a cell value into a decimal amount.
//
// It accepts JSON numbers, numeric strings with either dot (12.34) or comma
// (12,34) decimal separators, and an optional leading currency sign.
//
// Examples:
//
//	ParseAmount(12.5)      -> 12.5, nil
//	ParseAmount("12,50")   -> 12.5, nil
//	ParseAmount("€ 7.20")  -> 7.2, nil
//	ParseAmount("abc")     -> 0, ErrInvalidAmount
func ParseAmount(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, ErrInvalidAmount
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimPrefix(s, "€")
		s = strings.TrimSpace(s)
		if s == "" {
			return decimal.Zero, ErrInvalidAmount
		}
		// Thousands separators are not used in the sheet; a single comma is a decimal comma.
		s = strings.ReplaceAll(s, ",", ".")
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, ErrInvalidAmount
		}
		return d, nil
	default:
		return decimal.Zero, ErrInvalidAmount
	}
}

// Round2 rounds half away from zero to two decimals, the precision every
// currency and percentage figure is reported with.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
