// Package pgds implements a PostgreSQL data storage provider
// based on pgx/pgxpool. Each opened connection is a pool connection
// leased for the duration of one command, fan-out or row stream.
package pgds

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dronm/fedds"
)

const ProviderID = "pg"

type dbHandle interface {
	acquire(ctx context.Context) (*pgxpool.Conn, error)
	close() error
}

// OnDBNotification is a callback for PostgreSQL LISTEN/NOTIFY.
type OnDBNotification = pgconn.NotificationHandler

//
// ---------- Config ----------
//

type Config struct {
	ConnStr        string
	MaxConns       int32
	OnNotification OnDBNotification
}

//
// ---------- Provider registration ----------
//

func init() {
	fedds.Register(ProviderID, func(cfg any) (fedds.Provider, error) {
		return New(cfg)
	})
}

func New(cfg any) (*Provider, error) {
	c, ok := cfg.(*Config)
	if !ok {
		return nil, errors.New("pgds: config must be *pgds.Config")
	}
	if c.ConnStr == "" {
		return nil, errors.New("pgds: ConnStr is required")
	}
	return &Provider{db: newDB(c)}, nil
}

//
// ---------- Provider ----------
//

type Provider struct {
	db dbHandle
}

func (p *Provider) Open(ctx context.Context) (fedds.Conn, error) {
	c, err := p.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pgConn{pc: c}, nil
}

// IsTransient reports connection failures, serialization failures,
// deadlocks and server shutdowns.
func (p *Provider) IsTransient(err error) bool {
	return IsTransient(err)
}

func (p *Provider) Close() error {
	return p.db.close()
}

func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"53300", // too_many_connections
			"57P01", // admin_shutdown
			"57P02", // crash_shutdown
			"57P03": // cannot_connect_now
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

//
// ---------- db ----------
//

type db struct {
	connStr  string
	maxConns int32
	onNotif  OnDBNotification

	mu   sync.Mutex
	pool *pgxpool.Pool
}

func newDB(c *Config) *db {
	return &db{
		connStr:  c.ConnStr,
		maxConns: c.MaxConns,
		onNotif:  c.OnNotification,
	}
}

func (d *db) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	d.mu.Lock()
	if d.pool == nil {
		cfg, err := pgxpool.ParseConfig(d.connStr)
		if err != nil {
			d.mu.Unlock()
			return nil, err
		}
		if d.maxConns > 0 {
			cfg.MaxConns = d.maxConns
		}
		if d.onNotif != nil {
			cfg.ConnConfig.OnNotification = d.onNotif
		}
		d.pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			d.mu.Unlock()
			return nil, err
		}
	}
	pool := d.pool
	d.mu.Unlock()

	return pool.Acquire(ctx)
}

func (d *db) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	return nil
}

//
// ---------- Conn ----------
//

type pgConn struct {
	pc *pgxpool.Conn
}

func (c *pgConn) Exec(
	ctx context.Context,
	sql string,
	args ...any,
) (fedds.ExecResult, error) {
	return c.pc.Exec(ctx, sql, args...)
}

func (c *pgConn) Query(
	ctx context.Context,
	sql string,
	args ...any,
) (fedds.Rows, error) {
	rows, err := c.pc.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &pgRows{rows: rows}, nil
}

func (c *pgConn) Begin(ctx context.Context) (fedds.Tx, error) {
	tx, err := c.pc.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

// Close hands the connection back to the pool.
func (c *pgConn) Close() error {
	c.pc.Release()
	return nil
}

//
// ---------- Tx ----------
//

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Exec(ctx context.Context, sql string, args ...any) (fedds.ExecResult, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t *pgTx) Query(ctx context.Context, sql string, args ...any) (fedds.Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &pgRows{rows: rows}, nil
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

//
// ---------- Rows ----------
//

type pgRows struct {
	rows pgx.Rows
}

func (r *pgRows) Close() error {
	r.rows.Close()
	return r.rows.Err()
}

func (r *pgRows) Err() error {
	return r.rows.Err()
}

func (r *pgRows) Next() bool {
	return r.rows.Next()
}

func (r *pgRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *pgRows) Columns() ([]string, error) {
	fields := r.rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	return cols, nil
}
