package service

import (
	"fmt"
	"strconv"
	"strings"

	"fleet_remote/internal/fleet"
)

const (
	usageConnect = "Usage: /connect <api_key> <api_secret>"
	usageAdd     = "Usage:\n" +
		"/add static <SYMBOL> <leverage> <percent> <tp> <sl> [roi]\n" +
		"/add dynamic <count> <leverage> <percent> <tp> <sl> [roi]"
	usageStop = "Usage: /stop <bot_id>"

	defaultHistory = 10
	maxHistory     = 50
)

// parseConnect splits "/connect key secret". Both empty means reuse the
// stored pair.
func parseConnect(args string) (key, secret string, err error) {
	f := strings.Fields(args)
	switch len(f) {
	case 0:
		return "", "", nil
	case 2:
		return f[0], f[1], nil
	default:
		return "", "", fmt.Errorf("%s", usageConnect)
	}
}

// parseAdd maps positional arguments onto the creation form. Values are not
// checked here, ParseCreation does that with the proper rule.
func parseAdd(args string) (fleet.CreationForm, error) {
	f := strings.Fields(args)
	if len(f) < 6 || len(f) > 7 {
		return fleet.CreationForm{}, fmt.Errorf("%s", usageAdd)
	}

	form := fleet.CreationForm{
		Mode:       f[0],
		Leverage:   f[2],
		Percent:    strings.TrimSuffix(f[3], "%"),
		TakeProfit: strings.TrimSuffix(f[4], "%"),
		StopLoss:   strings.TrimSuffix(f[5], "%"),
	}
	if strings.EqualFold(f[0], "dynamic") {
		form.Count = f[1]
	} else {
		form.Symbol = f[1]
	}
	if len(f) == 7 {
		form.ROITrigger = strings.TrimSuffix(f[6], "%")
	}
	return form, nil
}

func parseStop(args string) (string, error) {
	f := strings.Fields(args)
	if len(f) != 1 {
		return "", fmt.Errorf("%s", usageStop)
	}
	return f[0], nil
}

func parseLimit(args string) int {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || n <= 0 {
		return defaultHistory
	}
	return min(n, maxHistory)
}
