package service

import (
	"context"
	"time"

	"fleet_remote/internal/fleet"
	"fleet_remote/internal/models"
	"fleet_remote/internal/render"
	"fleet_remote/internal/session"
	"fleet_remote/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = "🤖 Fleet remote\n\n" +
	"/connect <api_key> <api_secret> - open a session (bare /connect reuses the stored keys)\n" +
	"/logout - close the session and forget the keys\n" +
	"/status - fleet summary\n" +
	"/bots - running bots\n" +
	"/positions - open exchange positions\n" +
	"/refresh - poll now\n" +
	"/add static|dynamic ... - create bots\n" +
	"/stop <bot_id> - stop one bot\n" +
	"/stopall - stop every bot\n" +
	"/history [n] - last commands"

const notConnected = "🔒 Not connected. " + usageConnect

func (t *Telegram) handleCommand(ctx context.Context, msg *tgbot.Message) {
	args := msg.CommandArguments()

	switch msg.Command() {
	case "start", "help":
		t.send(helpText)
		return
	case "connect":
		t.handleConnect(ctx, msg.MessageID, args)
		return
	case "logout":
		t.handleLogout(ctx)
		return
	}

	if t.Session.State() != session.Session {
		t.send(notConnected)
		return
	}

	switch msg.Command() {
	case "status":
		t.handleStatus()
	case "bots":
		t.handleBots()
	case "positions":
		t.handlePositions(ctx)
	case "refresh":
		t.handleRefresh(ctx)
	case "add":
		t.handleAdd(ctx, args)
	case "stop":
		t.handleStop(ctx, args)
	case "stopall":
		t.handleStopAll(ctx)
	case "history":
		t.handleHistory(ctx, args)
	default:
		t.send("Unknown command. /help")
	}
}

func (t *Telegram) handleConnect(ctx context.Context, msgID int, args string) {
	key, secret, err := parseConnect(args)
	if key != "" {
		// never leave the secret sitting in the chat
		t.deleteMessage(msgID)
	}
	if err != nil {
		t.send(err.Error())
		return
	}

	if key == "" {
		creds, ok, lErr := t.Stored.Load(ctx)
		if lErr != nil {
			logger.Warn("[TG] loading stored credentials: %v", lErr)
		}
		if !ok {
			t.send("No stored keys. " + usageConnect)
			return
		}
		key, secret = creds.APIKey, creds.APISecret
		t.send("🔑 Connecting with stored key " + creds.Masked() + "…")
	} else {
		t.send("🔑 Connecting…")
	}

	out, err := t.Session.Connect(ctx, key, secret)
	if err != nil {
		t.send(render.Error(err))
		return
	}
	t.send(render.Outcome(out))
}

func (t *Telegram) handleLogout(ctx context.Context) {
	if err := t.Session.Clear(ctx); err != nil {
		t.send("⚠️ Logged out, but the stored keys could not be removed: " + err.Error())
		return
	}
	t.send("👋 Logged out, stored keys removed")
}

func (t *Telegram) handleStatus() {
	snap, ok := t.Fleet.Current()
	if !ok {
		t.send("⏳ No data yet, try /refresh")
		return
	}
	t.send(render.Snapshot(snap, time.Now()))
}

func (t *Telegram) handleBots() {
	snap, ok := t.Fleet.Current()
	if !ok {
		t.send("⏳ No data yet, try /refresh")
		return
	}
	t.send(render.Bots(snap.Bots))
}

func (t *Telegram) handlePositions(ctx context.Context) {
	ps, err := t.Positions.Positions(ctx)
	if err != nil {
		t.send(render.Error(err))
		return
	}
	t.send(render.Positions(ps))
}

func (t *Telegram) handleRefresh(ctx context.Context) {
	snap, err := t.Fleet.RefreshNow(ctx)
	if err != nil {
		logger.Warn("[TG] refresh: %v", err)
		t.send("❌ Refresh failed, showing the last known state")
		t.handleStatus()
		return
	}
	t.send(render.Snapshot(snap, time.Now()))
}

func (t *Telegram) handleAdd(ctx context.Context, args string) {
	form, err := parseAdd(args)
	if err != nil {
		t.send(err.Error())
		return
	}
	req, err := fleet.ParseCreation(form)
	if err != nil {
		t.send(render.Error(err))
		return
	}
	t.reply(t.Commands.CreateBots(ctx, req))
}

func (t *Telegram) handleStop(ctx context.Context, args string) {
	id, err := parseStop(args)
	if err != nil {
		t.send(err.Error())
		return
	}
	t.reply(t.Commands.StopOne(ctx, id))
}

func (t *Telegram) handleStopAll(ctx context.Context) {
	t.reply(t.Commands.StopAll(ctx))
}

func (t *Telegram) handleHistory(ctx context.Context, args string) {
	entries, err := t.Journal.Recent(ctx, parseLimit(args))
	if err != nil {
		logger.Warn("[TG] history: %v", err)
		t.send("❌ Command history is unavailable")
		return
	}
	t.send(render.History(entries, time.Now()))
}

func (t *Telegram) reply(out models.CommandOutcome, err error) {
	if err != nil {
		t.send(render.Error(err))
		return
	}
	t.send(render.Outcome(out))
}
