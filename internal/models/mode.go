package models

// BotMode is either StaticMode or DynamicMode.
type BotMode interface {
	botMode()
	// Name is the wire value of bot_mode.
	Name() string
}

// StaticMode binds the bot to an instrument picked by the operator.
type StaticMode struct {
	Symbol string
}

// DynamicMode lets the backend pick instruments, one worker per Count.
type DynamicMode struct {
	Count int
}

func (StaticMode) botMode()  {}
func (DynamicMode) botMode() {}

func (StaticMode) Name() string  { return "static" }
func (DynamicMode) Name() string { return "dynamic" }

// BotCreationRequest is what the operator asks the backend to provision.
type BotCreationRequest struct {
	Mode             BotMode
	Leverage         int
	PercentOfBalance float64
	TakeProfitPct    float64
	StopLossPct      float64
	ROITriggerPct    *float64 // nil = no ROI trigger
}
