package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommission(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		notional float64
		rate     float64
		want     float64
	}{
		{"standard taker fee", 89.0, 0.00075, 0.06675},
		{"zero rate", 89.0, 0, 0},
		{"zero notional", 0, 0.00075, 0},
		{"negative notional clamps to zero", -89.0, 0.00075, 0},
		{"negative rate clamps to zero", 89.0, -0.001, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, Commission(tt.notional, tt.rate), 1e-12)
		})
	}
}
