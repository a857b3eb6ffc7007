package journal

import (
	"context"
	"fmt"
	"time"

	"fleet_remote/pkg/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS command_journal (
	id          BIGSERIAL PRIMARY KEY,
	command     TEXT        NOT NULL,
	target      TEXT        NOT NULL DEFAULT '',
	accepted    BOOLEAN     NOT NULL,
	message     TEXT        NOT NULL DEFAULT '',
	error       TEXT        NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
)`

const insertEntry = `
INSERT INTO command_journal (command, target, accepted, message, error, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const selectRecent = `
SELECT command, target, accepted, message, error, created_at
FROM command_journal
ORDER BY id DESC
LIMIT $1`

// PgRecorder writes the journal to Postgres.
type PgRecorder struct {
	db  db.TxManager
	now func() time.Time
}

var (
	_ Recorder = (*PgRecorder)(nil)
	_ Reader   = (*PgRecorder)(nil)
)

func NewPgRecorder(tx db.TxManager) *PgRecorder {
	return &PgRecorder{db: tx, now: time.Now}
}

// EnsureSchema creates the journal table when it is missing.
func (r *PgRecorder) EnsureSchema(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("journal.EnsureSchema: %w", err)
		}
	}()
	_, err = r.db.Conn().Exec(ctx, schema)
	return err
}

func (r *PgRecorder) Record(ctx context.Context, e Entry) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("journal.Record: %w", err)
		}
	}()
	if e.At.IsZero() {
		e.At = r.now()
	}
	return r.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, insertEntry, e.Command, e.Target, e.Accepted, e.Message, e.Error, e.At.UTC())
		return err
	})
}

// Recent returns the newest entries first.
func (r *PgRecorder) Recent(ctx context.Context, limit int) (out []Entry, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("journal.Recent: %w", err)
		}
	}()
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Conn().Query(ctx, selectRecent, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e Entry
		if err = rows.Scan(&e.Command, &e.Target, &e.Accepted, &e.Message, &e.Error, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
