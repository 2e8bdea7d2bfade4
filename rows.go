package fedds

import (
	"context"
	"errors"
	"sync"
)

// ownedRows closes the connection it was read from when it is closed.
type ownedRows struct {
	Rows
	conn    Conn
	release func(Conn)
	once    sync.Once
}

func (r *ownedRows) Close() error {
	var err error
	r.once.Do(func() {
		err = r.Rows.Close()
		r.release(r.conn)
	})
	return err
}

// emptyRows is returned for skipped commands.
type emptyRows struct{}

func (emptyRows) Close() error               { return nil }
func (emptyRows) Err() error                 { return nil }
func (emptyRows) Next() bool                 { return false }
func (emptyRows) Scan(...any) error          { return errors.New("fedds: no rows") }
func (emptyRows) Columns() ([]string, error) { return nil, nil }

// ownedTx releases its connection once the transaction ends.
type ownedTx struct {
	Tx
	conn    Conn
	release func(Conn)
	once    sync.Once
}

func (t *ownedTx) Commit(ctx context.Context) error {
	err := t.Tx.Commit(ctx)
	t.done()
	return err
}

func (t *ownedTx) Rollback(ctx context.Context) error {
	err := t.Tx.Rollback(ctx)
	t.done()
	return err
}

func (t *ownedTx) done() {
	t.once.Do(func() { t.release(t.conn) })
}
