package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

type Token struct {
	Symbol    string
	Precision int32
	Minted    int64
	Burned    int64
}

func (t Token) Circulating() int64 {
	return t.Minted - t.Burned
}

// Format renders minor units in major units, e.g. 1234 -> "12.34 PAY".
func (t Token) Format(minor int64) string {
	return decimal.New(minor, -t.Precision).StringFixed(t.Precision) + " " + t.Symbol
}

func (t Token) ToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -t.Precision)
}

// ParseAmount converts a major-unit string into minor units. Amounts with
// more decimal places than the token supports are rejected, not rounded.
func (t Token) ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("ParseAmount: %w", ErrInvalidAmount)
	}
	minor := d.Shift(t.Precision)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("ParseAmount: %w", ErrInvalidPrecision)
	}
	if !minor.IsPositive() {
		return 0, fmt.Errorf("ParseAmount: %w", ErrInvalidAmount)
	}
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, fmt.Errorf("ParseAmount: %w", ErrInvalidAmount)
	}
	return minor.IntPart(), nil
}
