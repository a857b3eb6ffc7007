package service

import (
	"context"
	"sync"

	"fleet_remote/internal/fleet"
	"fleet_remote/internal/journal"
	"fleet_remote/internal/models"
	"fleet_remote/internal/notify"
	"fleet_remote/internal/session"
	"fleet_remote/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Updater is the long-poll side of *tgbot.BotAPI.
type Updater interface {
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

// Session is the part of the session gate the chat drives.
type Session interface {
	Connect(ctx context.Context, apiKey, apiSecret string) (models.CommandOutcome, error)
	Clear(ctx context.Context) error
	State() session.State
	Credentials() (models.Credentials, bool)
}

// Stored gives back the vault pair for a bare /connect.
type Stored interface {
	Load(ctx context.Context) (models.Credentials, bool, error)
}

// Fleet is the read side of the synchronizer.
type Fleet interface {
	RefreshNow(ctx context.Context) (models.FleetSnapshot, error)
	Current() (models.FleetSnapshot, bool)
}

// Commands are the confirmed mutations.
type Commands interface {
	CreateBots(ctx context.Context, req models.BotCreationRequest) (models.CommandOutcome, error)
	StopOne(ctx context.Context, botID string) (models.CommandOutcome, error)
	StopAll(ctx context.Context) (models.CommandOutcome, error)
}

// Positions reads open exchange positions.
type Positions interface {
	Positions(ctx context.Context) ([]models.Position, error)
}

// Deps ...
type Deps struct {
	Updates   Updater
	API       notify.BotAPI
	Notifier  *notify.Telegram
	Session   Session
	Stored    Stored
	Fleet     Fleet
	Commands  Commands
	Positions Positions
	Journal   journal.Reader
}

// Telegram serves the operator chat. Only messages from the configured chat
// are handled, everything else is dropped.
type Telegram struct {
	Deps
	chatID int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTelegram(d Deps) *Telegram {
	if d.Journal == nil {
		d.Journal = journal.Nop{}
	}
	return &Telegram{Deps: d, chatID: d.Notifier.ChatID()}
}

// Start runs the update loop in the background.
func (t *Telegram) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}
	ctx, t.cancel = context.WithCancel(ctx)

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.Updates.GetUpdatesChan(u)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(ctx, update)
			}
		}
	}()
	logger.Info("[TG] serving chat %d", t.chatID)
}

// Stop ends polling, cancels pending confirmations and waits for running
// handlers.
func (t *Telegram) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	t.Updates.StopReceivingUpdates()
	t.wg.Wait()
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbot.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.Message.Chat == nil || cb.Message.Chat.ID != t.chatID {
			return
		}
		t.Notifier.HandleCallback(cb)
		return
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	if msg.Chat.ID != t.chatID {
		logger.Warn("[TG] ignoring /%s from chat %d", msg.Command(), msg.Chat.ID)
		return
	}

	// handlers may block on a confirmation that arrives through this loop
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.handleCommand(ctx, msg)
	}()
}

func (t *Telegram) send(text string) { t.Notifier.Send(text) }

func (t *Telegram) deleteMessage(msgID int) {
	if _, err := t.API.Request(tgbot.NewDeleteMessage(t.chatID, msgID)); err != nil {
		logger.Warn("[TG] could not delete message with credentials: %v", err)
	}
}

var _ Commands = (*fleet.Dispatcher)(nil)
