package models

import "time"

// SystemInfo is the aggregate view served by /api/system-info.
type SystemInfo struct {
	TotalBots          int     `json:"total_bots"`
	TradingBots        int     `json:"trading_bots"`
	SearchingBots      int     `json:"searching_bots"`
	TotalUnrealizedPnl float64 `json:"total_unrealized_pnl"`

	WaitingBots     int     `json:"waiting_bots"`
	TotalLongCount  int     `json:"total_long_count"`
	TotalShortCount int     `json:"total_short_count"`
	TotalLongPnl    float64 `json:"total_long_pnl"`
	TotalShortPnl   float64 `json:"total_short_pnl"`
}

// FleetSnapshot is one consistent, point-in-time view of the fleet.
// It is built from a single fully successful poll and never patched.
type FleetSnapshot struct {
	TotalBots          int       `json:"total_bots"`
	TradingBots        int       `json:"trading_bots"`
	SearchingBots      int       `json:"searching_bots"`
	WaitingBots        int       `json:"waiting_bots"`
	TotalUnrealizedPnl float64   `json:"total_unrealized_pnl"`
	TotalLongCount     int       `json:"total_long_count"`
	TotalShortCount    int       `json:"total_short_count"`
	TotalLongPnl       float64   `json:"total_long_pnl"`
	TotalShortPnl      float64   `json:"total_short_pnl"`
	Balance            float64   `json:"balance"`
	Bots               []Bot     `json:"bots"`
	AsOf               time.Time `json:"as_of"`
}

// NewFleetSnapshot merges the three poll results.
func NewFleetSnapshot(info SystemInfo, bots []Bot, balance float64, asOf time.Time) FleetSnapshot {
	if bots == nil {
		bots = []Bot{}
	}
	return FleetSnapshot{
		TotalBots:          info.TotalBots,
		TradingBots:        info.TradingBots,
		SearchingBots:      info.SearchingBots,
		WaitingBots:        info.WaitingBots,
		TotalUnrealizedPnl: info.TotalUnrealizedPnl,
		TotalLongCount:     info.TotalLongCount,
		TotalShortCount:    info.TotalShortCount,
		TotalLongPnl:       info.TotalLongPnl,
		TotalShortPnl:      info.TotalShortPnl,
		Balance:            balance,
		Bots:               bots,
		AsOf:               asOf,
	}
}

// FindBot looks a bot up by id.
func (s FleetSnapshot) FindBot(botID string) (Bot, bool) {
	for _, b := range s.Bots {
		if b.BotID == botID {
			return b, true
		}
	}
	return Bot{}, false
}
