// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ═══════════════════════════════════════════════════════════════════════════
// Percentage Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percentage is a completion percentage stored in hundredths of a percent,
// so 33.33% is Percentage(3333). All arithmetic stays in integers.
type Percentage int

const (
	// MinPercentage is 0.00%.
	MinPercentage Percentage = 0
	// MaxPercentage is 100.00%.
	MaxPercentage Percentage = 10000
)

// IsValid checks if the value is within 0..100%.
func (p Percentage) IsValid() bool {
	return p >= MinPercentage && p <= MaxPercentage
}

// IsComplete reports whether the value is exactly 100%.
func (p Percentage) IsComplete() bool {
	return p == MaxPercentage
}

// Hundredths returns the raw integer value.
func (p Percentage) Hundredths() int {
	return int(p)
}

// Float64 returns the value as a percentage number, e.g. 33.33.
func (p Percentage) Float64() float64 {
	return float64(p) / 100
}

// String formats the value with exactly two decimals.
func (p Percentage) String() string {
	sign := ""
	v := int(p)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON encodes the value as a JSON number with two decimals.
func (p Percentage) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalJSON decodes a JSON number, rounding to hundredths.
func (p *Percentage) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*p = Percentage(math.Round(f * 100))
	return nil
}

// NewPercentage converts a caller-supplied percentage number (0..100) with
// half-up rounding to hundredths.
func NewPercentage(value float64) (Percentage, error) {
	if math.IsNaN(value) || value < 0 || value > 100 {
		return 0, ErrInvalidPercentage
	}
	return Percentage(math.Floor(value*100 + 0.5)), nil
}

// PercentageOf returns 100*part/whole rounded half-up to hundredths.
// A zero or negative whole yields 0; results above 100% are clamped.
func PercentageOf(part, whole int) Percentage {
	if whole <= 0 || part <= 0 {
		return MinPercentage
	}
	if part >= whole {
		return MaxPercentage
	}
	p := Percentage(DivRoundHalfUp(int64(part)*int64(MaxPercentage), int64(whole)))
	if p == MaxPercentage {
		// Only a fully completed course may report 100%.
		p = MaxPercentage - 1
	}
	return p
}

// AveragePercentage returns the mean of values rounded half-up to hundredths.
func AveragePercentage(values []Percentage) Percentage {
	if len(values) == 0 {
		return MinPercentage
	}
	var sum int64
	for _, v := range values {
		sum += int64(v)
	}
	return Percentage(DivRoundHalfUp(sum, int64(len(values))))
}

// DivRoundHalfUp divides two non-negative integers rounding half away from zero.
func DivRoundHalfUp(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	return (2*num + den) / (2 * den)
}

// ═══════════════════════════════════════════════════════════════════════════
// Money Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Money is an amount in minor units (cents). The platform is single-currency.
type Money int64

// Cents returns the raw amount in minor units.
func (m Money) Cents() int64 {
	return int64(m)
}

// Add returns the sum of two amounts.
func (m Money) Add(other Money) Money {
	return m + other
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m == 0
}

// String formats the amount as a decimal with two places, e.g. "49.99".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON decodes a JSON number of major units.
func (m *Money) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	*m = Money(math.Round(f * 100))
	return nil
}

// NewMoney creates an amount from cents, rejecting negatives.
func NewMoney(cents int64) (Money, error) {
	if cents < 0 {
		return 0, NewDomainError("money", "Validate", ErrNegativeValue, "amount cannot be negative")
	}
	return Money(cents), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Rating Value Object
// ═══════════════════════════════════════════════════════════════════════════

const (
	// MinRating is the lowest star rating.
	MinRating = 1
	// MaxRating is the highest star rating.
	MaxRating = 5
)

// ValidateRating checks the 1..5 star range.
func ValidateRating(r int) error {
	if r < MinRating || r > MaxRating {
		return ErrInvalidRating
	}
	return nil
}

// AverageRating returns the mean of a rating sum over count reviews, rounded
// half-up to two decimals. Zero reviews yield 0.
func AverageRating(sum, count int) float64 {
	if count <= 0 {
		return 0
	}
	return float64(DivRoundHalfUp(int64(sum)*100, int64(count))) / 100
}
