// Package render turns fleet state into operator text for the chat bot and
// the CLI.
package render

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fleet_remote/internal/backend"
	"fleet_remote/internal/fleet"
	"fleet_remote/internal/journal"
	"fleet_remote/internal/models"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
)

// Money formats an amount with thousands separators and two decimals.
func Money(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

// PnL is Money with an explicit sign.
func PnL(v float64) string {
	if v > 0 {
		return "+" + Money(v)
	}
	return Money(v)
}

func optFloat(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return humanize.FtoaWithDigits(*v, 6) + unit
}

// Snapshot is the dashboard summary.
func Snapshot(s models.FleetSnapshot, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Fleet (updated %s)\n", humanize.RelTime(s.AsOf, now, "ago", "from now"))
	fmt.Fprintf(&b, "Balance: %s USDC\n", Money(s.Balance))
	fmt.Fprintf(&b, "Unrealized PnL: %s\n", PnL(s.TotalUnrealizedPnl))
	fmt.Fprintf(&b, "Bots: %d total, %d trading, %d searching", s.TotalBots, s.TradingBots, s.SearchingBots)
	if s.WaitingBots > 0 {
		fmt.Fprintf(&b, ", %d waiting", s.WaitingBots)
	}
	b.WriteString("\n")
	if s.TotalLongCount+s.TotalShortCount > 0 {
		fmt.Fprintf(&b, "Long: %d (%s)  Short: %d (%s)\n",
			s.TotalLongCount, PnL(s.TotalLongPnl), s.TotalShortCount, PnL(s.TotalShortPnl))
	}
	return b.String()
}

// Bot is one line block per bot.
func Bot(bot models.Bot) string {
	cat := fleet.DeriveStatus(bot.Status)
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s  [%s]\n", cat.Glyph, bot.BotID, bot.SymbolOr("searching…"), cat.Label)
	fmt.Fprintf(&b, "   lev %dx, %s%% of balance, TP %s%%, SL %s%%",
		bot.Leverage,
		humanize.FtoaWithDigits(bot.PercentOfBalance, 4),
		humanize.FtoaWithDigits(bot.TakeProfitPct, 4),
		humanize.FtoaWithDigits(bot.StopLossPct, 4),
	)
	if bot.ROITriggerPct != nil {
		fmt.Fprintf(&b, ", ROI trigger %s", optFloat(bot.ROITriggerPct, "%"))
	}
	b.WriteString("\n")
	if bot.EntryPrice != nil || bot.CurrentPrice != nil {
		fmt.Fprintf(&b, "   entry %s → %s", optFloat(bot.EntryPrice, ""), optFloat(bot.CurrentPrice, ""))
		if bot.AverageDownCount > 0 {
			fmt.Fprintf(&b, ", averaged down %s", english.Plural(bot.AverageDownCount, "time", "times"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Bots lists the fleet in backend order.
func Bots(bots []models.Bot) string {
	if len(bots) == 0 {
		return "📭 No bots running"
	}
	var b strings.Builder
	for _, bot := range bots {
		b.WriteString(Bot(bot))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Positions lists open exchange positions.
func Positions(ps []models.Position) string {
	if len(ps) == 0 {
		return "📭 No open positions"
	}
	var b strings.Builder
	b.WriteString("📈 Open positions:\n")
	for _, p := range ps {
		fmt.Fprintf(&b, "- %s [%s] qty %s @ %s, lev %sx, PnL %s\n",
			p.Symbol, p.Side,
			humanize.FtoaWithDigits(p.PositionAmt, 6),
			humanize.FtoaWithDigits(p.EntryPrice, 6),
			humanize.FtoaWithDigits(p.Leverage, 2),
			PnL(p.UnrealizedProfit),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Outcome renders a command verdict.
func Outcome(out models.CommandOutcome) string {
	if out.Accepted {
		if out.Message == "" {
			return "✅ Done"
		}
		return "✅ " + out.Message
	}
	if out.Message == "" {
		return "❌ Rejected"
	}
	return "❌ " + out.Message
}

// History renders journal entries, newest first.
func History(entries []journal.Entry, now time.Time) string {
	if len(entries) == 0 {
		return "📭 No commands recorded"
	}
	var b strings.Builder
	for _, e := range entries {
		mark := "✅"
		switch {
		case e.Error != "":
			mark = "⚠️"
		case !e.Accepted:
			mark = "❌"
		}
		fmt.Fprintf(&b, "%s %s %s (%s)", mark, e.Command, e.Target, humanize.RelTime(e.At, now, "ago", "from now"))
		if e.Message != "" {
			fmt.Fprintf(&b, ": %s", e.Message)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Error turns a command or read failure into operator text. Transport causes
// stay in the log.
func Error(err error) string {
	var verr *fleet.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, fleet.ErrDeclined):
		return "🚫 Cancelled"
	case errors.As(err, &verr):
		return "⚠️ " + verr.Message
	default:
		return "❌ " + backend.UserMessage(err)
	}
}
