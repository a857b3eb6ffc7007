package fleet

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"fleet_remote/internal/models"
)

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = errors.New("invalid bot request")

// Validation rules, checked in this order.
const (
	RuleMode       = "mode"
	RuleSymbol     = "symbol"
	RuleLeverage   = "leverage"
	RulePercent    = "percent_of_balance"
	RuleTakeProfit = "take_profit"
	RuleStopLoss   = "stop_loss"
	RuleBotCount   = "bot_count"
	RuleROITrigger = "roi_trigger"
	RuleBotID      = "bot_id"
)

const (
	minLeverage     = 1
	maxLeverage     = 100
	minPercent      = 0.1
	maxPercent      = 100.0
	minDynamicCount = 1
	maxDynamicCount = 10
)

// ValidationError names the first rule a creation request broke.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// Validate checks a creation request locally and stops at the first violation.
func Validate(req models.BotCreationRequest) error {
	var dynamic *models.DynamicMode
	switch m := req.Mode.(type) {
	case models.StaticMode:
		if err := checkSymbol(m.Symbol); err != nil {
			return err
		}
	case models.DynamicMode:
		dynamic = &m
	default:
		return invalid(RuleMode, "bot mode must be static or dynamic")
	}

	if err := checkLeverage(req.Leverage); err != nil {
		return err
	}
	if err := checkPercent(req.PercentOfBalance); err != nil {
		return err
	}
	if err := checkTakeProfit(req.TakeProfitPct); err != nil {
		return err
	}
	if err := checkStopLoss(req.StopLossPct); err != nil {
		return err
	}
	if dynamic != nil {
		if err := checkCount(dynamic.Count); err != nil {
			return err
		}
	}
	if req.ROITriggerPct != nil {
		return checkROI(*req.ROITriggerPct)
	}
	return nil
}

func checkSymbol(s string) error {
	if strings.TrimSpace(s) == "" {
		return invalid(RuleSymbol, "symbol is required for a static bot")
	}
	return nil
}

func checkLeverage(v int) error {
	if v < minLeverage || v > maxLeverage {
		return invalid(RuleLeverage, "leverage must be between %d and %d, got %d", minLeverage, maxLeverage, v)
	}
	return nil
}

// NaN fails every comparison, so the negated forms reject it too.
func checkPercent(v float64) error {
	if !(v >= minPercent && v <= maxPercent) {
		return invalid(RulePercent, "percent of balance must be between %g and %g", minPercent, maxPercent)
	}
	return nil
}

func checkTakeProfit(v float64) error {
	if !(v > 0) || math.IsInf(v, 1) {
		return invalid(RuleTakeProfit, "take profit must be greater than 0")
	}
	return nil
}

func checkStopLoss(v float64) error {
	if !(v >= 0) || math.IsInf(v, 1) {
		return invalid(RuleStopLoss, "stop loss must be 0 or greater")
	}
	return nil
}

func checkCount(v int) error {
	if v < minDynamicCount || v > maxDynamicCount {
		return invalid(RuleBotCount, "bot count must be between %d and %d, got %d", minDynamicCount, maxDynamicCount, v)
	}
	return nil
}

func checkROI(v float64) error {
	if !(v > 0) || math.IsInf(v, 1) {
		return invalid(RuleROITrigger, "ROI trigger must be greater than 0")
	}
	return nil
}

// CreationForm is the raw text an operator typed, before parsing.
type CreationForm struct {
	Mode       string // static|dynamic
	Symbol     string
	Count      string
	Leverage   string
	Percent    string
	TakeProfit string
	StopLoss   string
	ROITrigger string // blank = no trigger
}

// ParseCreation builds a request from form fields, field by field in rule
// order. A field that does not parse fails with its own rule.
func ParseCreation(f CreationForm) (models.BotCreationRequest, error) {
	var req models.BotCreationRequest

	mode := strings.ToLower(strings.TrimSpace(f.Mode))
	if mode != "static" && mode != "dynamic" {
		return req, invalid(RuleMode, "bot mode must be static or dynamic, got %q", f.Mode)
	}

	symbol := strings.ToUpper(strings.TrimSpace(f.Symbol))
	if mode == "static" {
		if err := checkSymbol(symbol); err != nil {
			return req, err
		}
	}

	lev, err := strconv.Atoi(strings.TrimSpace(f.Leverage))
	if err != nil {
		return req, invalid(RuleLeverage, "leverage must be a whole number between %d and %d", minLeverage, maxLeverage)
	}
	if err := checkLeverage(lev); err != nil {
		return req, err
	}
	req.Leverage = lev

	if req.PercentOfBalance, err = parseFloat(f.Percent); err != nil {
		return req, invalid(RulePercent, "percent of balance must be between %g and %g", minPercent, maxPercent)
	}
	if err := checkPercent(req.PercentOfBalance); err != nil {
		return req, err
	}

	if req.TakeProfitPct, err = parseFloat(f.TakeProfit); err != nil {
		return req, invalid(RuleTakeProfit, "take profit must be greater than 0")
	}
	if err := checkTakeProfit(req.TakeProfitPct); err != nil {
		return req, err
	}

	if req.StopLossPct, err = parseFloat(f.StopLoss); err != nil {
		return req, invalid(RuleStopLoss, "stop loss must be 0 or greater")
	}
	if err := checkStopLoss(req.StopLossPct); err != nil {
		return req, err
	}

	if mode == "static" {
		req.Mode = models.StaticMode{Symbol: symbol}
	} else {
		count, err := strconv.Atoi(strings.TrimSpace(f.Count))
		if err != nil {
			return req, invalid(RuleBotCount, "bot count must be a whole number between %d and %d", minDynamicCount, maxDynamicCount)
		}
		if err := checkCount(count); err != nil {
			return req, err
		}
		req.Mode = models.DynamicMode{Count: count}
	}

	if raw := strings.TrimSpace(f.ROITrigger); raw != "" {
		v, err := parseFloat(raw)
		if err != nil {
			return req, invalid(RuleROITrigger, "ROI trigger must be greater than 0")
		}
		if err := checkROI(v); err != nil {
			return req, err
		}
		req.ROITriggerPct = &v
	}
	return req, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
