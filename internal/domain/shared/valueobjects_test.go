package shared

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentageOf(t *testing.T) {
	tests := []struct {
		name        string
		part, whole int
		want        Percentage
	}{
		{"no lessons", 0, 0, 0},
		{"none completed", 0, 4, 0},
		{"one of four", 1, 4, 2500},
		{"all of four", 4, 4, 10000},
		{"one third", 1, 3, 3333},
		{"two thirds rounds up", 2, 3, 6667},
		{"one sixth", 1, 6, 1667},
		{"half-up on exact half", 1, 8, 1250},
		{"1 of 16 is 6.25", 1, 16, 625},
		{"1 of 32 rounds 3.125 up", 1, 32, 313},
		{"over-complete clamps", 5, 4, 10000},
		{"negative whole", 1, -1, 0},
		{"huge course stays below 100", 29999, 30000, 9999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PercentageOf(tt.part, tt.whole))
		})
	}
}

func TestPercentageOf_NeverHitsHundredEarly(t *testing.T) {
	for whole := 1; whole <= 500; whole++ {
		for part := 0; part < whole; part++ {
			require.Less(t, int(PercentageOf(part, whole)), int(MaxPercentage), "part=%d whole=%d", part, whole)
		}
		require.Equal(t, MaxPercentage, PercentageOf(whole, whole))
	}

	// 99.995% rounds to 100.00 but the course is not finished.
	assert.Equal(t, Percentage(9999), PercentageOf(19999, 20000))
	assert.Equal(t, Percentage(9999), PercentageOf(199999, 200000))
	assert.Equal(t, MaxPercentage, PercentageOf(20000, 20000))
}

func TestPercentage_Format(t *testing.T) {
	assert.Equal(t, "33.33", Percentage(3333).String())
	assert.Equal(t, "100.00", MaxPercentage.String())
	assert.Equal(t, "0.05", Percentage(5).String())

	data, err := json.Marshal(struct {
		P Percentage `json:"p"`
	}{P: 2500})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":25.00}`, string(data))

	var p Percentage
	require.NoError(t, json.Unmarshal([]byte(`66.666`), &p))
	assert.Equal(t, Percentage(6667), p)
}

func TestNewPercentage(t *testing.T) {
	p, err := NewPercentage(12.34)
	require.NoError(t, err)
	assert.Equal(t, Percentage(1234), p)

	p, err = NewPercentage(100)
	require.NoError(t, err)
	assert.True(t, p.IsComplete())

	_, err = NewPercentage(100.01)
	assert.True(t, IsValidation(err))
	_, err = NewPercentage(-1)
	assert.ErrorIs(t, err, ErrInvalidPercentage)
}

func TestAveragePercentage(t *testing.T) {
	assert.Equal(t, Percentage(0), AveragePercentage(nil))
	assert.Equal(t, Percentage(5000), AveragePercentage([]Percentage{2500, 7500}))
	assert.Equal(t, Percentage(2501), AveragePercentage([]Percentage{10000, 0, 1, 1}))
}

func TestMoney(t *testing.T) {
	m := Money(5000).Add(Money(5000)).Add(Money(5000))
	assert.Equal(t, int64(15000), m.Cents())
	assert.Equal(t, "150.00", m.String())

	var decoded Money
	require.NoError(t, json.Unmarshal([]byte(`49.99`), &decoded))
	assert.Equal(t, Money(4999), decoded)

	_, err := NewMoney(-1)
	assert.ErrorIs(t, err, ErrNegativeValue)
}

func TestAverageRating(t *testing.T) {
	assert.Equal(t, 0.0, AverageRating(0, 0))
	assert.Equal(t, 4.5, AverageRating(9, 2))
	assert.Equal(t, 4.33, AverageRating(13, 3))
	assert.Equal(t, 4.67, AverageRating(14, 3))
	assert.ErrorIs(t, ValidateRating(6), ErrInvalidRating)
	assert.NoError(t, ValidateRating(5))
}

func TestDomainError_Detail(t *testing.T) {
	err := ErrAlreadyEnrolled.Detail("student %s already in course %s", "s1", "c1")
	assert.True(t, errors.Is(err, ErrAlreadyEnrolled))
	assert.True(t, IsAlreadyExists(err))
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "student s1 already in course c1")

	assert.True(t, IsPrecondition(ErrCourseNotAvailable))
	assert.True(t, IsInvalidState(ErrInvalidTransition))
	assert.True(t, IsConflict(ErrConcurrencyConflict))
	assert.True(t, IsValidation(ErrNegativeMinutes))
}
