package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fleet_remote/internal/fleet"
	"fleet_remote/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const (
	verbConfirm = "CONF"
	verbReject  = "REJ"
	sep         = "::"

	// DefaultConfirmTimeout applies when none is configured.
	DefaultConfirmTimeout = 60 * time.Second
)

// BotAPI is the part of *tgbot.BotAPI the notifier uses.
type BotAPI interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
	Request(c tgbot.Chattable) (*tgbot.APIResponse, error)
}

// Telegram sends notifications to one chat and asks confirmations there with
// an inline keyboard. Callbacks must be routed to HandleCallback by whoever
// owns the update loop.
type Telegram struct {
	api     BotAPI
	chatID  int64
	timeout time.Duration

	mu       sync.Mutex
	pendings map[string]*pending
}

type pending struct {
	ch     chan bool
	msgID  int
	prompt string
}

var (
	_ Notifier        = (*Telegram)(nil)
	_ fleet.Confirmer = (*Telegram)(nil)
)

func NewTelegram(api BotAPI, chatID int64, timeout time.Duration) *Telegram {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &Telegram{
		api:      api,
		chatID:   chatID,
		timeout:  timeout,
		pendings: make(map[string]*pending),
	}
}

// ChatID ...
func (t *Telegram) ChatID() int64 { return t.chatID }

func (t *Telegram) Send(msg string) {
	if t == nil || t.api == nil || t.chatID == 0 {
		return
	}
	if _, err := t.api.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Warn("[TG] send: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Confirm posts the prompt with confirm/reject buttons and waits for the
// answer, the timeout or ctx, whichever comes first.
func (t *Telegram) Confirm(ctx context.Context, c fleet.Confirmation) bool {
	if t == nil || t.api == nil || t.chatID == 0 {
		return false
	}

	token := uuid.NewString()
	p := &pending{ch: make(chan bool, 1), prompt: c.Prompt}

	yes := "✅ Confirm"
	if c.Strong() {
		yes = "⛔️ " + c.Phrase
	}
	kb := tgbot.NewInlineKeyboardMarkup(tgbot.NewInlineKeyboardRow(
		tgbot.NewInlineKeyboardButtonData(yes, verbConfirm+sep+token),
		tgbot.NewInlineKeyboardButtonData("❌ Cancel", verbReject+sep+token),
	))
	msg := tgbot.NewMessage(t.chatID, c.Prompt)
	msg.ReplyMarkup = kb

	// register before sending so a fast click is not lost
	t.mu.Lock()
	t.pendings[token] = p
	t.mu.Unlock()

	sent, err := t.api.Send(msg)
	if err != nil {
		logger.Warn("[TG] confirm prompt: %v", err)
		t.drop(token)
		return false
	}
	t.mu.Lock()
	p.msgID = sent.MessageID
	t.mu.Unlock()

	tmr := time.NewTimer(t.timeout)
	defer tmr.Stop()

	select {
	case ok := <-p.ch:
		return ok
	case <-tmr.C:
		t.drop(token)
		t.closePrompt(sent.MessageID, c.Prompt, "⏳ Timed out")
		return false
	case <-ctx.Done():
		t.drop(token)
		t.closePrompt(sent.MessageID, c.Prompt, "⛔️ Cancelled")
		return false
	}
}

// HandleCallback resolves a pending confirmation. Unknown or stale tokens are
// acknowledged and ignored.
func (t *Telegram) HandleCallback(cb *tgbot.CallbackQuery) {
	if t == nil || t.api == nil || cb == nil {
		return
	}

	// stop the client spinner
	_, _ = t.api.Request(tgbot.NewCallback(cb.ID, ""))

	verb, token, ok := strings.Cut(cb.Data, sep)
	if !ok || token == "" || (verb != verbConfirm && verb != verbReject) {
		return
	}

	t.mu.Lock()
	p, found := t.pendings[token]
	delete(t.pendings, token)
	t.mu.Unlock()
	if !found {
		return
	}

	accepted := verb == verbConfirm
	p.ch <- accepted

	status := "❌ Cancelled"
	if accepted {
		status = "✅ Confirmed"
	}
	t.closePrompt(p.msgID, p.prompt, status)
}

// Pending reports how many confirmations are waiting for an answer.
func (t *Telegram) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pendings)
}

func (t *Telegram) drop(token string) {
	t.mu.Lock()
	delete(t.pendings, token)
	t.mu.Unlock()
}

func (t *Telegram) closePrompt(msgID int, prompt, status string) {
	if msgID == 0 {
		return
	}
	rm := tgbot.InlineKeyboardMarkup{InlineKeyboard: [][]tgbot.InlineKeyboardButton{}}
	_, _ = t.api.Request(tgbot.NewEditMessageReplyMarkup(t.chatID, msgID, rm))
	_, _ = t.api.Request(tgbot.NewEditMessageText(t.chatID, msgID, fmt.Sprintf("%s\n\n%s", prompt, status)))
}
