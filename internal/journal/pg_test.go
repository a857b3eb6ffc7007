package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleet_remote/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeTx struct {
	calls   []execCall
	execErr error
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeTx) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...interface{}) pgx.Row { return nil }

type fakeManager struct {
	tx       *fakeTx
	inTxRuns int
}

func (m *fakeManager) RunMaster(ctx context.Context, fn func(ctxTx context.Context, tx db.Transaction) error) error {
	m.inTxRuns++
	return fn(ctx, m.tx)
}

func (m *fakeManager) Conn() db.Transaction { return m.tx }

func TestPgRecorderRecord(t *testing.T) {
	m := &fakeManager{tx: &fakeTx{}}
	r := NewPgRecorder(m)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := r.Record(context.Background(), Entry{
		Command:  "stop_bot",
		Target:   "b1",
		Accepted: true,
		Message:  "stopped",
		At:       at,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.inTxRuns)
	require.Len(t, m.tx.calls, 1)
	assert.Contains(t, m.tx.calls[0].sql, "INSERT INTO command_journal")
	assert.Equal(t, []any{"stop_bot", "b1", true, "stopped", "", at}, m.tx.calls[0].args)
}

func TestPgRecorderDefaultsTimestamp(t *testing.T) {
	m := &fakeManager{tx: &fakeTx{}}
	r := NewPgRecorder(m)
	fixed := time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	require.NoError(t, r.Record(context.Background(), Entry{Command: "stop_all", Target: "all"}))
	assert.Equal(t, fixed, m.tx.calls[0].args[5])
}

func TestPgRecorderWrapsErrors(t *testing.T) {
	boom := errors.New("connection reset")
	m := &fakeManager{tx: &fakeTx{execErr: boom}}
	r := NewPgRecorder(m)

	err := r.Record(context.Background(), Entry{Command: "add_bot"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "journal.Record")

	err = r.EnsureSchema(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, m.tx.calls[1].sql, "CREATE TABLE IF NOT EXISTS command_journal")
}
