package notify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"fleet_remote/internal/fleet"
)

// Terminal asks confirmations on a line-oriented console. Strong
// confirmations need the exact phrase typed back.
type Terminal struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

var _ fleet.Confirmer = (*Terminal)(nil)

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

func (t *Terminal) Send(msg string)                  { fmt.Fprintln(t.out, msg) }
func (t *Terminal) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

func (t *Terminal) Confirm(ctx context.Context, c fleet.Confirmation) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.out, c.Prompt)
	if c.Strong() {
		fmt.Fprintf(t.out, "Type %q to confirm: ", c.Phrase)
	} else {
		fmt.Fprint(t.out, "Proceed? [y/N]: ")
	}

	line, ok := t.readLine(ctx)
	if !ok {
		fmt.Fprintln(t.out)
		return false
	}
	if c.Strong() {
		return line == c.Phrase
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true
	}
	return false
}

type lineResult struct {
	line string
	err  error
}

func (t *Terminal) readLine(ctx context.Context) (string, bool) {
	ch := make(chan lineResult, 1)
	go func() {
		s, err := t.in.ReadString('\n')
		ch <- lineResult{line: s, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", false
	case r := <-ch:
		if r.err != nil && (r.err != io.EOF || r.line == "") {
			return "", false
		}
		return strings.TrimSpace(r.line), true
	}
}
