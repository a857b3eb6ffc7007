package models

// CommandOutcome is the backend verdict for a mutating command.
type CommandOutcome struct {
	Accepted bool   `json:"success"`
	Message  string `json:"message"`
}

// Position is an open exchange position as served by /api/positions.
type Position struct {
	Symbol           string  `json:"symbol"`
	Side             string  `json:"side"` // LONG/SHORT
	PositionAmt      float64 `json:"positionAmt"`
	EntryPrice       float64 `json:"entryPrice"`
	UnrealizedProfit float64 `json:"unRealizedProfit"`
	Leverage         float64 `json:"leverage"`
}
