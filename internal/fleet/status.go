package fleet

import (
	"strings"

	"fleet_remote/internal/models"
)

// StatusCategory is the display bucket for a raw bot status code.
type StatusCategory struct {
	Status     models.BotStatus
	Label      string
	ColorToken string
	Glyph      string
}

var (
	categoryTrading   = StatusCategory{Status: models.BotStatusOpen, Label: "Trading", ColorToken: "green", Glyph: "🟢"}
	categoryWaiting   = StatusCategory{Status: models.BotStatusWaiting, Label: "Waiting for signal", ColorToken: "yellow", Glyph: "🟡"}
	categorySearching = StatusCategory{Status: models.BotStatusSearching, Label: "Searching for coin", ColorToken: "orange", Glyph: "🔍"}
	categoryUnknown   = StatusCategory{Status: models.BotStatusUnknown, Label: "Unknown", ColorToken: "grey", Glyph: "⚪"}
)

// DeriveStatus maps any status code to a category. Never fails.
func DeriveStatus(code models.BotStatus) StatusCategory {
	switch models.BotStatus(strings.ToLower(strings.TrimSpace(string(code)))) {
	case models.BotStatusOpen:
		return categoryTrading
	case models.BotStatusWaiting:
		return categoryWaiting
	case models.BotStatusSearching:
		return categorySearching
	default:
		return categoryUnknown
	}
}
