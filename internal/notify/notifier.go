package notify

import (
	"context"
	"fmt"

	"fleet_remote/internal/fleet"
	"fleet_remote/pkg/logger"
)

// Notifier pushes plain messages to the operator.
type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Stdout logs notifications instead of delivering them.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { logger.Info("[NOTIFY] %s", msg) }
func (s *Stdout) Sendf(format string, args ...any) { s.Send(fmt.Sprintf(format, args...)) }

// AutoConfirm accepts everything. Only for an explicit --yes.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(_ context.Context, c fleet.Confirmation) bool {
	logger.Info("[CONFIRM] auto-yes: %s", c.Prompt)
	return true
}

// Deny declines everything, for a daemon with no operator channel.
type Deny struct{}

func (Deny) Confirm(_ context.Context, c fleet.Confirmation) bool {
	logger.Warn("[CONFIRM] no operator channel, declined: %s", c.Prompt)
	return false
}
