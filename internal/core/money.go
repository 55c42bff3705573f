// Package core provides amount parsing and handling utilities.
//
// Amounts travel as decimal strings end to end: JSON numbers are captured
// verbatim, stored as string-encoded numbers, and parsed back on read.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountInput is the raw amount exactly as the caller sent it. It accepts a
// JSON number, a JSON string, or null. Any other JSON value is kept verbatim
// and fails ParseAmount.
type AmountInput string

// UnmarshalJSON implements json.Unmarshaler.
func (a *AmountInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*a = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AmountInput(s)
	default:
		*a = AmountInput(data)
	}
	return nil
}

// MarshalJSON writes a parseable amount as a JSON number and anything else
// as a string, so a round trip through DecodePayload is lossless.
func (a AmountInput) MarshalJSON() ([]byte, error) {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return []byte("null"), nil
	}
	if d, err := ParseAmount(s); err == nil {
		return []byte(d.String()), nil
	}
	return json.Marshal(string(a))
}

// IsEmpty reports whether no amount was supplied.
func (a AmountInput) IsEmpty() bool {
	return strings.TrimSpace(string(a)) == ""
}

// Decimal exponent range of a finite, non-zero float64.
const (
	maxAmountExponent = 308
	minAmountExponent = -324
)

// ParseAmount converts a decimal string to a finite amount.
//
// Surrounding whitespace is ignored. Exponent notation is accepted
// ("1e3" -> 1000). Empty input, non-numeric text, NaN and infinities are
// rejected with ErrInvalidAmount, and so is any value a float64 cannot hold
// ("1e400", "1e-400"). Sign is not restricted.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsZero() {
		return decimal.Zero, nil
	}

	// Check the magnitude before any conversion that would expand it.
	digits := int64(len(new(big.Int).Abs(d.Coefficient()).String()))
	magnitude := int64(d.Exponent()) + digits - 1
	if magnitude > maxAmountExponent || magnitude < minAmountExponent {
		return decimal.Zero, ErrInvalidAmount
	}
	if math.IsInf(d.InexactFloat64(), 0) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount in its canonical storage form.
func FormatAmount(d decimal.Decimal) string {
	return d.String()
}
