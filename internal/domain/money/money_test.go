package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"59.97", 5997},
		{"42", 4200},
		{"0", 0},
		{"0.005", 1},
		{"10.004", 1000},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MinorUnits(decimal.RequireFromString(tc.in)), tc.in)
	}
}

func TestLineTotal_NoFloatDrift(t *testing.T) {
	got := LineTotal(decimal.RequireFromString("19.99"), 3)
	assert.True(t, got.Equal(decimal.RequireFromString("59.97")), got.String())
	assert.Equal(t, "59.97", Format(got))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "42.00", Format(decimal.NewFromInt(42)))
	assert.Equal(t, "0.10", Format(decimal.RequireFromString("0.1")))
}
