// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing spreadsheet amounts and converting
// between cents and decimal representations.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

var currencySymbols = []string{"$", "€", "£", "₹"}

// ParseAmount converts a spreadsheet cell into Money.
//
// Accepted inputs carry an optional sign or accounting parentheses, an
// optional currency symbol, comma thousands separators, and either a plain
// decimal or an exponent form. Fractions beyond cents are rounded half away
// from zero. Empty or unparsable cells, NaN and infinities report false.
//
// Examples:
//   ParseAmount("1,234.50") -> {123450}, true
//   ParseAmount("(12.345)") -> {-1235}, true
//   ParseAmount("₹ 100")    -> {10000}, true
//   ParseAmount("n/a")      -> {0}, false
func ParseAmount(s string) (Money, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	for _, sym := range currencySymbols {
		s = strings.TrimPrefix(s, sym)
		s = strings.TrimSuffix(s, sym)
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return Money{}, false
	}

	cents, ok := parseDecimalCents(s)
	if !ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return Money{}, false
		}
		scaled := math.Round(f * 100)
		if scaled > math.MaxInt64/2 {
			return Money{}, false
		}
		cents = int64(scaled)
	}
	if neg {
		cents = -cents
	}
	return Money{Cents: cents}, true
}

// parseDecimalCents parses unsigned "123", "123.4" or ".45" exactly.
func parseDecimalCents(s string) (int64, bool) {
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return 0, false
	}
	if intPart == "" {
		intPart = "0"
	}
	// Larger values fall back to float parsing.
	if len(intPart) > 15 {
		return 0, false
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return 0, false
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, false
	}
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	return iv*100 + frac, true
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Float64 returns the decimal value for chart scaling and display.
// Use cents for calculations.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount with two decimals and comma thousands, e.g. "-1,234.50".
func (m Money) String() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	rem := cents % 100
	b.WriteByte('.')
	b.WriteByte(byte('0' + rem/10))
	b.WriteByte(byte('0' + rem%10))
	return b.String()
}
