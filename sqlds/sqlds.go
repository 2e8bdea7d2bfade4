// Package sqlds implements a data storage provider over any database/sql
// driver. Every opened connection is a dedicated *sql.Conn taken from the
// pool, so session state such as a federation context stays with it until
// it is closed.
package sqlds

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dronm/fedds"
)

const ProviderID = "sql"

type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Transient classifies driver errors worth retrying.
	Transient func(error) bool
}

func init() {
	fedds.Register(ProviderID, func(cfg any) (fedds.Provider, error) {
		c, ok := cfg.(*Config)
		if !ok {
			return nil, errors.New("sqlds: config must be *sqlds.Config")
		}
		return New(c)
	})
}

func New(c *Config) (*Provider, error) {
	if c.Driver == "" {
		return nil, errors.New("sqlds: Driver is required")
	}
	if c.DSN == "" {
		return nil, errors.New("sqlds: DSN is required")
	}

	db, err := sql.Open(c.Driver, c.DSN)
	if err != nil {
		return nil, err
	}
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
	return &Provider{db: db, transient: c.Transient}, nil
}

//
// ---------- Provider ----------
//

type Provider struct {
	db        *sql.DB
	transient func(error) bool
}

// DB exposes the underlying pool.
func (p *Provider) DB() *sql.DB { return p.db }

func (p *Provider) Open(ctx context.Context) (fedds.Conn, error) {
	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &conn{c: c}, nil
}

func (p *Provider) IsTransient(err error) bool {
	return p.transient != nil && p.transient(err)
}

func (p *Provider) Close() error {
	return p.db.Close()
}

//
// ---------- Conn ----------
//

type conn struct {
	c *sql.Conn
}

func (c *conn) Exec(ctx context.Context, query string, args ...any) (fedds.ExecResult, error) {
	res, err := c.c.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return newResult(res), nil
}

func (c *conn) Query(ctx context.Context, query string, args ...any) (fedds.Rows, error) {
	rows, err := c.c.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *conn) Begin(ctx context.Context) (fedds.Tx, error) {
	tx, err := c.c.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

func (c *conn) Close() error {
	return c.c.Close()
}

//
// ---------- Tx ----------
//

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (fedds.ExecResult, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return newResult(res), nil
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...any) (fedds.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *sqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *sqlTx) Rollback(context.Context) error { return t.tx.Rollback() }

// result reports -1 when the driver cannot count affected rows.
type result int64

func newResult(res sql.Result) result {
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return result(n)
}

func (r result) RowsAffected() int64 { return int64(r) }
