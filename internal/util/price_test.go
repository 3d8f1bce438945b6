package util

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name     string
		x        string
		tick     string
		expected string
	}{
		{"basic rounding down", "1.2345", "0.01", "1.23"},
		{"tie rounds away from zero", "1.235", "0.01", "1.24"},
		{"negative tie rounds away from zero", "-1.235", "0.01", "-1.24"},
		{"larger tick size", "1.27", "0.05", "1.25"},
		{"exact multiple", "1.25", "0.05", "1.25"},
		{"quarter point futures tick", "4512.38", "0.25", "4512.5"},
		{"zero tick returns input", "1.2345", "0", "1.2345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundToTick(d(tt.x), d(tt.tick))
			if !result.Equal(d(tt.expected)) {
				t.Errorf("RoundToTick(%s, %s) = %s, expected %s", tt.x, tt.tick, result, tt.expected)
			}
		})
	}
}

func TestRoundPrice(t *testing.T) {
	if got := RoundPrice(d("97.456"), 2); !got.Equal(d("97.46")) {
		t.Errorf("RoundPrice = %s, want 97.46", got)
	}
	if got := RoundPrice(d("102"), 2); !got.Equal(d("102")) {
		t.Errorf("RoundPrice = %s, want 102", got)
	}
}
