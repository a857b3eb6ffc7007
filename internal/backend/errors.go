package backend

import (
	"errors"
	"fmt"
)

// TransportMessage is what the operator sees when the backend cannot be
// reached. The underlying cause only goes to the log.
const TransportMessage = "cannot reach the server, check the connection and try again"

// ErrTransport marks network, timeout and undecodable-response failures.
var ErrTransport = errors.New("backend transport failure")

// RejectedError is a non-2xx answer from a reachable backend.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend rejected request: http %d", e.Status)
	}
	return fmt.Sprintf("backend rejected request: http %d: %s", e.Status, e.Message)
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }

// UserMessage turns any client error into operator-facing text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rej *RejectedError
	if errors.As(err, &rej) && rej.Message != "" {
		return rej.Message
	}
	if IsTransport(err) {
		return TransportMessage
	}
	return err.Error()
}

type transportError struct {
	cause error
}

func (e *transportError) Error() string { return ErrTransport.Error() + ": " + e.cause.Error() }
func (e *transportError) Unwrap() []error {
	return []error{ErrTransport, e.cause}
}
