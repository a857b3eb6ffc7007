package models

// BotStatus is the raw status code reported by the backend.
type BotStatus string

const (
	BotStatusOpen      BotStatus = "open"
	BotStatusWaiting   BotStatus = "waiting"
	BotStatusSearching BotStatus = "searching"
	BotStatusUnknown   BotStatus = "unknown"
)

// Bot is one trading worker as the backend reports it. Read-only on the client.
type Bot struct {
	BotID            string    `json:"bot_id"`
	Symbol           *string   `json:"symbol"` // nil while searching
	Status           BotStatus `json:"status"`
	Leverage         int       `json:"lev"`
	PercentOfBalance float64   `json:"percent"`
	TakeProfitPct    float64   `json:"tp"`
	StopLossPct      float64   `json:"sl"`
	ROITriggerPct    *float64  `json:"roi_trigger,omitempty"`
	EntryPrice       *float64  `json:"entry,omitempty"`
	CurrentPrice     *float64  `json:"current_price,omitempty"`
	AverageDownCount int       `json:"average_down_count"`

	// telemetry the backend sends along; not used by the core
	Side         *string  `json:"side,omitempty"`
	Quantity     *float64 `json:"qty,omitempty"`
	PositionOpen bool     `json:"position_open"`
	StrategyName string   `json:"strategy_name,omitempty"`
}

// SymbolOr returns the bot symbol or def while the bot is still searching.
func (b Bot) SymbolOr(def string) string {
	if b.Symbol == nil || *b.Symbol == "" {
		return def
	}
	return *b.Symbol
}
