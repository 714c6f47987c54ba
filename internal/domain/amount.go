package domain

import (
	"strings" // Input trimming

	"github.com/shopspring/decimal" // Fixed-point money
)

// maxAmount caps any single operation at what DECIMAL(19,2) can hold.
var maxAmount = decimal.RequireFromString("99999999999999999.99")

// ParseAmount parses a decimal string into a scale-2 fixed-point amount.
// Amounts cross the wire as strings to avoid floating-point misrepresentation.
// Rejects non-numeric input, non-positive values, values with more than 2
// fractional digits, and values too large for the balance column.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount // Not a number
	}
	if d.Exponent() < -2 {
		return decimal.Zero, ErrInvalidAmount // More than 2 fractional digits
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount // Zero or negative
	}
	if d.GreaterThan(maxAmount) {
		return decimal.Zero, ErrInvalidAmount // Overflows DECIMAL(19,2)
	}
	return d, nil
}
