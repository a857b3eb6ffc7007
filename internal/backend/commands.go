package backend

import (
	"context"
	"errors"
	"net/http"

	"fleet_remote/internal/models"
)

// StopAllID is the bot_id the backend treats as "every bot".
const StopAllID = "all"

type connectRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// AddBotPayload is the /api/add-bot body.
type AddBotPayload struct {
	Symbol     *string  `json:"symbol"`
	Leverage   int      `json:"lev"`
	Percent    float64  `json:"percent"`
	TakeProfit float64  `json:"tp"`
	StopLoss   float64  `json:"sl"`
	ROITrigger *float64 `json:"roi_trigger"`
	BotMode    string   `json:"bot_mode"`
	BotCount   int      `json:"bot_count"`
}

type stopBotRequest struct {
	BotID string `json:"bot_id"`
}

// NewAddBotPayload maps a creation request onto the wire body. One call
// covers every dynamic worker, the backend fans out bot_count itself.
func NewAddBotPayload(req models.BotCreationRequest) AddBotPayload {
	p := AddBotPayload{
		Leverage:   req.Leverage,
		Percent:    req.PercentOfBalance,
		TakeProfit: req.TakeProfitPct,
		StopLoss:   req.StopLossPct,
		ROITrigger: req.ROITriggerPct,
		BotCount:   1,
	}
	switch m := req.Mode.(type) {
	case models.StaticMode:
		sym := m.Symbol
		p.Symbol = &sym
		p.BotMode = m.Name()
	case models.DynamicMode:
		p.BotMode = m.Name()
		p.BotCount = m.Count
	}
	return p
}

// Connect POST /api/connect
func (c *Client) Connect(ctx context.Context, creds models.Credentials) (models.CommandOutcome, error) {
	return c.command(ctx, "/api/connect", connectRequest{APIKey: creds.APIKey, APISecret: creds.APISecret})
}

// AddBot POST /api/add-bot
func (c *Client) AddBot(ctx context.Context, req models.BotCreationRequest) (models.CommandOutcome, error) {
	return c.command(ctx, "/api/add-bot", NewAddBotPayload(req))
}

// StopBot POST /api/stop-bot, botID may be StopAllID.
func (c *Client) StopBot(ctx context.Context, botID string) (models.CommandOutcome, error) {
	return c.command(ctx, "/api/stop-bot", stopBotRequest{BotID: botID})
}

// command posts and folds HTTP-level rejections into a not-accepted outcome,
// so callers only see an error for transport failures.
func (c *Client) command(ctx context.Context, path string, body any) (models.CommandOutcome, error) {
	var out models.CommandOutcome
	err := c.do(ctx, http.MethodPost, path, body, &out)
	if err == nil {
		return out, nil
	}
	var rej *RejectedError
	if errors.As(err, &rej) {
		msg := rej.Message
		if msg == "" {
			msg = rej.Error()
		}
		return models.CommandOutcome{Accepted: false, Message: msg}, nil
	}
	return models.CommandOutcome{}, err
}
