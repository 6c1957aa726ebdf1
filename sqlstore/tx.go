package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mickamy/dirtry"
	"github.com/mickamy/dirtry/document"
	"github.com/mickamy/dirtry/internal/buffer"
	"github.com/mickamy/dirtry/internal/query"
)

// entry is one journaled save.
type entry struct {
	table  string
	op     string
	id     any
	before map[string]any // UPDATE only
	after  map[string]any
	meta   dirtry.Meta
}

// Tx wraps a *sql.Tx and buffers journal entries until it commits.
// Tx implements document.Persister, so several documents can be saved in one
// transaction. Their ledgers are cleared as each save returns; when the
// transaction rolls back or fails to commit, every saved document gets its
// pending changes and persisted flag back.
type Tx struct {
	*sql.Tx
	s      *Store
	buf    *buffer.Buffer[entry]
	ctx    context.Context
	rewind []func()
}

// Begin starts a transaction that journals the documents it persists.
func (s *Store) Begin(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	t, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to begin: %w", err)
	}
	return &Tx{Tx: t, s: s, buf: buffer.New[entry](), ctx: ctx}, nil
}

// Persist inserts d when it is new and otherwise updates its changed columns.
// A persisted document without changes is not written.
func (t *Tx) Persist(ctx context.Context, d *document.Document) error {
	checkpoint := d.Checkpoint()
	schema := d.Schema()
	table := TableName(schema)
	var e entry
	if !d.Persisted() {
		cols := schema.Columns()
		args := make([]any, len(cols))
		after := make(map[string]any, len(cols))
		for i, c := range cols {
			v := d.Get(c)
			after[c] = v
			enc, err := encodeValue(v)
			if err != nil {
				return fmt.Errorf("sqlstore: failed to encode %q: %w", c, err)
			}
			args[i] = enc
		}
		if _, err := t.Tx.ExecContext(ctx, query.Insert(table, cols), args...); err != nil {
			return fmt.Errorf("sqlstore: failed to insert into %s: %w", table, err)
		}
		e = entry{table: table, op: query.OpInsert, id: d.ID(), after: after}
	} else {
		changes := d.Changes()
		if len(changes) == 0 {
			t.rewind = append(t.rewind, checkpoint)
			return nil
		}
		cols := make([]string, 0, len(changes))
		for c := range changes {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		args := make([]any, 0, len(cols)+1)
		for _, c := range cols {
			enc, err := encodeValue(changes[c].New)
			if err != nil {
				return fmt.Errorf("sqlstore: failed to encode %q: %w", c, err)
			}
			args = append(args, enc)
		}
		args = append(args, d.ID())
		res, err := t.Tx.ExecContext(ctx, query.Update(table, cols, schema.IdentityKey()), args...)
		if err != nil {
			return fmt.Errorf("sqlstore: failed to update %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s %v", ErrNotFound, table, d.ID())
		}
		before, after := dirtry.Split(changes)
		e = entry{table: table, op: query.OpUpdate, id: d.ID(), before: before, after: after}
	}
	t.rewind = append(t.rewind, checkpoint)
	if !dirtry.Skipped(ctx) {
		e.meta = dirtry.MetaFrom(ctx)
		t.buf.Add(e)
	}
	t.s.log.Debug("persisted",
		zap.String("table", table),
		zap.String("op", e.op),
		zap.Any("id", e.id),
		zap.Int("pending_journal", t.buf.Len()),
	)
	return nil
}

// Commit flushes buffered journal entries into their changes tables before
// commit. The transaction is rolled back when the flush fails.
func (t *Tx) Commit() error {
	if err := t.flush(); err != nil {
		_ = t.Tx.Rollback()
		t.restore()
		return err
	}
	if err := t.Tx.Commit(); err != nil {
		t.restore()
		return err
	}
	t.rewind = nil
	return nil
}

// Rollback drops buffered journal entries, rolls back the transaction and
// restores the change state of every document saved through it.
func (t *Tx) Rollback() error {
	t.buf.Reset()
	t.restore()
	return t.Tx.Rollback()
}

// restore rewinds saved documents, latest first.
func (t *Tx) restore() {
	for i := len(t.rewind) - 1; i >= 0; i-- {
		t.rewind[i]()
	}
	t.rewind = nil
}

func (t *Tx) flush() error {
	entries := t.buf.Drain()
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		changesTable := t.s.cfg.ChangesTableName(e.table)
		if changesTable == "" {
			return fmt.Errorf("sqlstore: invalid changes table identifier for %q", e.table)
		}
		if t.s.cfg.SkipIfNotExists {
			var exists bool
			if err := t.Tx.QueryRowContext(t.ctx, query.TableExists(changesTable)).Scan(&exists); err != nil {
				return fmt.Errorf("sqlstore: failed to look up %s: %w", changesTable, err)
			}
			if !exists {
				continue
			}
		}
		beforeJSON, err := marshalJournal(t.s.applyRedact(e.before))
		if err != nil {
			return fmt.Errorf("sqlstore: failed to marshal before: %w", err)
		}
		afterJSON, err := marshalJournal(t.s.applyRedact(e.after))
		if err != nil {
			return fmt.Errorf("sqlstore: failed to marshal after: %w", err)
		}
		if _, err := t.Tx.ExecContext(
			t.ctx,
			query.InsertJournal(changesTable),
			fmt.Sprint(e.id),
			e.op,
			e.meta.Operator,
			e.meta.TraceID,
			e.meta.Reason,
			beforeJSON,
			afterJSON,
		); err != nil {
			return fmt.Errorf("sqlstore: failed to insert into %s: %w", changesTable, err)
		}
	}
	t.s.log.Debug("journal flushed", zap.Int("entries", len(entries)))
	return nil
}

// marshalJournal renders m as JSON; a nil map is stored as SQL NULL.
func marshalJournal(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
