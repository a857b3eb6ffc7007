package fleet

import (
	"testing"

	"fleet_remote/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		code  models.BotStatus
		label string
		color string
	}{
		{"open", "Trading", "green"},
		{"waiting", "Waiting for signal", "yellow"},
		{"searching", "Searching for coin", "orange"},
		{" OPEN ", "Trading", "green"},
		{"closed", "Unknown", "grey"},
		{"", "Unknown", "grey"},
		{"unknown", "Unknown", "grey"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			got := DeriveStatus(tt.code)
			assert.Equal(t, tt.label, got.Label)
			assert.Equal(t, tt.color, got.ColorToken)
			assert.NotEmpty(t, got.Glyph)
		})
	}
}

func TestDeriveStatusUnknownKeepsCategory(t *testing.T) {
	assert.Equal(t, models.BotStatusUnknown, DeriveStatus("liquidated").Status)
}
