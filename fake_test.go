package fedds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type execResult int64

func (r execResult) RowsAffected() int64 { return int64(r) }

type fakeConn struct {
	statements []string
	closed     int
	onExec     func(stmt string, args []any) (int64, error)
	onQuery    func(stmt string, args []any) (Rows, error)
	tx         *fakeTx
	beginErr   error
}

func (c *fakeConn) Exec(_ context.Context, stmt string, args ...any) (ExecResult, error) {
	c.statements = append(c.statements, stmt)
	if c.onExec == nil {
		return execResult(0), nil
	}
	n, err := c.onExec(stmt, args)
	if err != nil {
		return nil, err
	}
	return execResult(n), nil
}

func (c *fakeConn) Query(_ context.Context, stmt string, args ...any) (Rows, error) {
	c.statements = append(c.statements, stmt)
	if c.onQuery == nil {
		return &fakeRows{}, nil
	}
	return c.onQuery(stmt, args)
}

func (c *fakeConn) Begin(context.Context) (Tx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	c.tx = &fakeTx{}
	return c.tx, nil
}

func (c *fakeConn) Close() error {
	c.closed++
	return nil
}

type fakeRows struct {
	cols   []string
	data   [][]any
	pos    int
	closed int
}

func singleValue(v any) *fakeRows {
	return &fakeRows{cols: []string{"v"}, data: [][]any{{v}}}
}

func (r *fakeRows) Close() error { r.closed++; return nil }
func (r *fakeRows) Err() error   { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return errors.New("scan: destination count mismatch")
	}
	for i, d := range dest {
		*(d.(*any)) = row[i]
	}
	return nil
}

func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }

type fakeTx struct {
	statements []string
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, stmt string, _ ...any) (ExecResult, error) {
	t.statements = append(t.statements, stmt)
	return execResult(1), nil
}

func (t *fakeTx) Query(_ context.Context, stmt string, _ ...any) (Rows, error) {
	t.statements = append(t.statements, stmt)
	return singleValue(int64(7)), nil
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { t.rolledBack = true; return nil }

// fakeOpener hands out a new fakeConn per Open, failing first with the
// queued errors.
type fakeOpener struct {
	errs    []error
	partial bool
	setup   func(*fakeConn)
	calls   int
	opened  []*fakeConn
}

func (o *fakeOpener) Open(context.Context) (Conn, error) {
	o.calls++
	var err error
	if len(o.errs) > 0 {
		err, o.errs = o.errs[0], o.errs[1:]
	}
	if err != nil && !o.partial {
		return nil, err
	}
	c := &fakeConn{}
	if o.setup != nil {
		o.setup(c)
	}
	o.opened = append(o.opened, c)
	if err != nil {
		return c, err
	}
	return c, nil
}

type detectingOpener struct {
	fakeOpener
	transient error
}

func (o *detectingOpener) IsTransient(err error) bool { return errors.Is(err, o.transient) }

// instantPolicy retries without waiting.
func instantPolicy(t *testing.T, attempts int) *Policy {
	t.Helper()
	p, err := NewRetryPolicy(RetryConfig{Strategy: StrategyFixed, MaxAttempts: attempts})
	require.NoError(t, err)
	return p
}

// fakeClock replaces the policy's timer and records the waits it was asked
// for.
type fakeClock struct {
	waits []time.Duration
}

func (c *fakeClock) after(d time.Duration) <-chan time.Time {
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	ch <- time.Time{}.Add(d)
	return ch
}

func newTestDB(t *testing.T, opener Opener, opts ...Option) *Database {
	t.Helper()
	opts = append([]Option{WithRetryPolicy(instantPolicy(t, 3))}, opts...)
	db, err := New(opener, opts...)
	require.NoError(t, err)
	return db
}
