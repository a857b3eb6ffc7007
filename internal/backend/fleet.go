package backend

import (
	"context"
	"net/http"

	"fleet_remote/internal/models"
)

// SystemInfo GET /api/system-info
func (c *Client) SystemInfo(ctx context.Context) (models.SystemInfo, error) {
	var info models.SystemInfo
	if err := c.do(ctx, http.MethodGet, "/api/system-info", nil, &info); err != nil {
		return models.SystemInfo{}, err
	}
	return info, nil
}

// Bots GET /api/bots. Order is kept as the backend sends it.
func (c *Client) Bots(ctx context.Context) ([]models.Bot, error) {
	bots := make([]models.Bot, 0)
	if err := c.do(ctx, http.MethodGet, "/api/bots", nil, &bots); err != nil {
		return nil, err
	}
	return bots, nil
}

// Balance GET /api/balance
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var wrap struct {
		Balance *float64 `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/balance", nil, &wrap); err != nil {
		return 0, err
	}
	// the backend answers {"balance": null} when the exchange call failed
	if wrap.Balance == nil {
		return 0, &RejectedError{Status: http.StatusOK, Message: "balance unavailable"}
	}
	return *wrap.Balance, nil
}

// Positions GET /api/positions
func (c *Client) Positions(ctx context.Context) ([]models.Position, error) {
	positions := make([]models.Position, 0)
	if err := c.do(ctx, http.MethodGet, "/api/positions", nil, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}
