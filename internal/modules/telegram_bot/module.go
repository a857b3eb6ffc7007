package telegram

import (
	"context"

	"fleet_remote/internal/backend"
	"fleet_remote/internal/fleet"
	"fleet_remote/internal/journal"
	"fleet_remote/internal/modules/config"
	"fleet_remote/internal/modules/telegram_bot/service"
	"fleet_remote/internal/notify"
	"fleet_remote/internal/session"
	"fleet_remote/internal/vault"
	"fleet_remote/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
)

// Operator is how the app reaches the human: confirmations and notices go
// to the Telegram chat when a token is configured, otherwise to the log and
// every confirmation is declined.
type Operator struct {
	fx.Out

	Confirmer fleet.Confirmer
	Notifier  notify.Notifier
	Bot       *tgbot.BotAPI
	Chat      *notify.Telegram
}

func NewOperator(cfg *config.Config) (Operator, error) {
	if !cfg.TelegramEnabled() {
		logger.Warn("[TG] no token configured, commands needing confirmation will be declined")
		return Operator{Confirmer: notify.Deny{}, Notifier: notify.NewStdout()}, nil
	}

	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return Operator{}, err
	}
	logger.Info("[TG] authorized as @%s", b.Self.UserName)

	chat := notify.NewTelegram(b, cfg.Telegram.ChatID, cfg.Telegram.ConfirmTimeout)
	return Operator{Confirmer: chat, Notifier: chat, Bot: b, Chat: chat}, nil
}

// Params ...
type Params struct {
	fx.In

	Ctx     context.Context
	LC      fx.Lifecycle
	Bot     *tgbot.BotAPI
	Chat    *notify.Telegram
	Gate    *session.Gate
	Vault   *vault.Vault
	Sync    *fleet.Synchronizer
	Disp    *fleet.Dispatcher
	Client  *backend.Client
	Journal journal.Reader
}

// Run starts the chat loop when Telegram is enabled.
func Run(p Params) {
	if p.Bot == nil || p.Chat == nil {
		return
	}

	t := service.NewTelegram(service.Deps{
		Updates:   p.Bot,
		API:       p.Bot,
		Notifier:  p.Chat,
		Session:   p.Gate,
		Stored:    p.Vault,
		Fleet:     p.Sync,
		Commands:  p.Disp,
		Positions: p.Client,
		Journal:   p.Journal,
	})

	p.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			t.Start(p.Ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			t.Stop()
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(NewOperator),
		fx.Invoke(Run),
	)
}
