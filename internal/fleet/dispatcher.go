package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleet_remote/internal/backend"
	"fleet_remote/internal/journal"
	"fleet_remote/internal/models"
	"fleet_remote/pkg/logger"
)

// ErrDeclined is returned when the operator did not confirm a command.
var ErrDeclined = errors.New("command not confirmed")

// NothingToStop is the outcome message of StopAll on an empty fleet.
const NothingToStop = "nothing to stop"

// Action names a mutating command.
type Action string

const (
	ActionCreate  Action = "add_bot"
	ActionStop    Action = "stop_bot"
	ActionStopAll Action = "stop_all"
)

// Confirmation is what the operator is asked before a command is sent.
type Confirmation struct {
	Action Action
	Prompt string
	// Phrase is set for strong confirmations, the operator has to repeat it.
	Phrase string
}

// Strong reports whether the confirmation needs the phrase typed back.
func (c Confirmation) Strong() bool { return c.Phrase != "" }

// Confirmer asks the operator and reports the answer. Timeouts and cancelled
// contexts count as a decline.
type Confirmer interface {
	Confirm(ctx context.Context, c Confirmation) bool
}

// ConfirmFunc adapts a plain function to Confirmer.
type ConfirmFunc func(ctx context.Context, c Confirmation) bool

func (f ConfirmFunc) Confirm(ctx context.Context, c Confirmation) bool { return f(ctx, c) }

// Commander is the mutating side of the backend.
type Commander interface {
	AddBot(ctx context.Context, req models.BotCreationRequest) (models.CommandOutcome, error)
	StopBot(ctx context.Context, botID string) (models.CommandOutcome, error)
}

// Refresher is what the dispatcher needs from the synchronizer.
type Refresher interface {
	RefreshNow(ctx context.Context) (models.FleetSnapshot, error)
	Current() (models.FleetSnapshot, bool)
}

// Dispatcher sends fleet commands: validate, confirm, call, refresh.
type Dispatcher struct {
	backend Commander
	fleet   Refresher
	confirm Confirmer
	journal journal.Recorder
	now     func() time.Time
}

func NewDispatcher(cmd Commander, fleet Refresher, confirm Confirmer, rec journal.Recorder) *Dispatcher {
	if rec == nil {
		rec = journal.Nop{}
	}
	return &Dispatcher{
		backend: cmd,
		fleet:   fleet,
		confirm: confirm,
		journal: rec,
		now:     time.Now,
	}
}

// CreateBots provisions one static bot or Count dynamic bots with a single
// backend call.
func (d *Dispatcher) CreateBots(ctx context.Context, req models.BotCreationRequest) (models.CommandOutcome, error) {
	if err := Validate(req); err != nil {
		return models.CommandOutcome{}, err
	}

	c := Confirmation{Action: ActionCreate, Prompt: DescribeCreation(req) + "?"}
	if !d.confirm.Confirm(ctx, c) {
		return models.CommandOutcome{}, ErrDeclined
	}

	out, err := d.backend.AddBot(ctx, req)
	d.record(ctx, ActionCreate, creationTarget(req), out, err)
	return d.finish(ctx, ActionCreate, out, err)
}

// StopOne stops a single bot by id.
func (d *Dispatcher) StopOne(ctx context.Context, botID string) (models.CommandOutcome, error) {
	botID = strings.TrimSpace(botID)
	if botID == "" {
		return models.CommandOutcome{}, invalid(RuleBotID, "bot id is required")
	}
	// the backend reads this id as "every bot", which must go through StopAll
	if strings.EqualFold(botID, backend.StopAllID) {
		return models.CommandOutcome{}, invalid(RuleBotID, "use stop-all to stop every bot")
	}

	name := botID
	if snap, ok := d.fleet.Current(); ok {
		if b, found := snap.FindBot(botID); found && b.Symbol != nil {
			name = fmt.Sprintf("%s (%s)", botID, *b.Symbol)
		}
	}

	c := Confirmation{Action: ActionStop, Prompt: fmt.Sprintf("Stop bot %s?", name)}
	if !d.confirm.Confirm(ctx, c) {
		return models.CommandOutcome{}, ErrDeclined
	}

	out, err := d.backend.StopBot(ctx, botID)
	d.record(ctx, ActionStop, botID, out, err)
	return d.finish(ctx, ActionStop, out, err)
}

// StopAll stops every bot. The emptiness check uses the last committed
// snapshot, nothing is fetched for it.
func (d *Dispatcher) StopAll(ctx context.Context) (models.CommandOutcome, error) {
	snap, ok := d.fleet.Current()
	if !ok || len(snap.Bots) == 0 {
		return models.CommandOutcome{Accepted: false, Message: NothingToStop}, nil
	}

	n := len(snap.Bots)
	phrase := fmt.Sprintf("stop ALL %d bots", n)
	c := Confirmation{
		Action: ActionStopAll,
		Prompt: fmt.Sprintf("This will stop ALL %d bots and close their positions. Type %q to confirm.", n, phrase),
		Phrase: phrase,
	}
	if !d.confirm.Confirm(ctx, c) {
		return models.CommandOutcome{}, ErrDeclined
	}

	out, err := d.backend.StopBot(ctx, backend.StopAllID)
	d.record(ctx, ActionStopAll, backend.StopAllID, out, err)
	return d.finish(ctx, ActionStopAll, out, err)
}

func (d *Dispatcher) finish(ctx context.Context, a Action, out models.CommandOutcome, err error) (models.CommandOutcome, error) {
	if err != nil {
		logger.Error("[CMD] %s failed: %v", a, err)
		return models.CommandOutcome{}, fmt.Errorf("%s: %w", a, err)
	}
	if !out.Accepted {
		logger.Warn("[CMD] %s rejected: %s", a, out.Message)
		return out, nil
	}

	logger.Info("[CMD] %s accepted: %s", a, out.Message)
	if _, rErr := d.fleet.RefreshNow(ctx); rErr != nil {
		logger.Warn("[CMD] refresh after %s failed: %v", a, rErr)
	}
	return out, nil
}

func (d *Dispatcher) record(ctx context.Context, a Action, target string, out models.CommandOutcome, err error) {
	e := journal.Entry{
		Command:  string(a),
		Target:   target,
		Accepted: err == nil && out.Accepted,
		Message:  out.Message,
		At:       d.now(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	if jErr := d.journal.Record(ctx, e); jErr != nil {
		logger.Warn("[CMD] journal: %v", jErr)
	}
}

// DescribeCreation renders a creation request for prompts and logs.
func DescribeCreation(req models.BotCreationRequest) string {
	var b strings.Builder
	switch m := req.Mode.(type) {
	case models.StaticMode:
		fmt.Fprintf(&b, "Create static bot %s", m.Symbol)
	case models.DynamicMode:
		if m.Count == 1 {
			b.WriteString("Create 1 dynamic bot")
		} else {
			fmt.Fprintf(&b, "Create %d dynamic bots", m.Count)
		}
	}
	fmt.Fprintf(&b, ": leverage %dx, %g%% of balance, TP %g%%, SL %g%%",
		req.Leverage, req.PercentOfBalance, req.TakeProfitPct, req.StopLossPct)
	if req.ROITriggerPct != nil {
		fmt.Fprintf(&b, ", ROI trigger %g%%", *req.ROITriggerPct)
	}
	return b.String()
}

func creationTarget(req models.BotCreationRequest) string {
	switch m := req.Mode.(type) {
	case models.StaticMode:
		return m.Symbol
	case models.DynamicMode:
		return fmt.Sprintf("dynamic x%d", m.Count)
	}
	return ""
}
