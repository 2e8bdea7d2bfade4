package fedds

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dronm/fedds/telemetry"
)

// Database runs commands against one database, retrying transient
// failures and switching each connection into its federation target.
// A Database is immutable and safe for concurrent use; every call works
// on its own connection.
type Database struct {
	opener  Opener
	target  FederationTarget
	policy  RetryPolicy
	log     zerolog.Logger
	metrics telemetry.Collector
}

type Option func(*Database)

// WithFederation sets the federation context. The default is
// FederationNone.
func WithFederation(t FederationTarget) Option {
	return func(db *Database) { db.target = t }
}

// WithRetryPolicy replaces the default policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(db *Database) { db.policy = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(db *Database) { db.log = l }
}

func WithCollector(c telemetry.Collector) Option {
	return func(db *Database) { db.metrics = c }
}

// New builds a handle over opener. Without WithRetryPolicy the handle uses
// DefaultRetryPolicy, extended with the opener's own transient detection
// when it implements TransientDetector.
func New(opener Opener, opts ...Option) (*Database, error) {
	if opener == nil {
		return nil, fmt.Errorf("fedds: opener is nil")
	}
	db := &Database{
		opener:  opener,
		log:     zerolog.Nop(),
		metrics: telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(db)
	}
	if err := db.target.Validate(); err != nil {
		return nil, err
	}
	if db.policy == nil {
		db.policy = DefaultRetryPolicy().ForBackend(opener)
	}
	if db.metrics == nil {
		db.metrics = telemetry.Noop()
	}
	db.log = db.log.With().Str("federation_type", db.target.Type.String()).Logger()
	return db, nil
}

// Target returns the federation target the handle was built with.
func (db *Database) Target() FederationTarget { return db.target }

// OpenConnection returns a connection already switched into the handle's
// federation context. The caller owns it and must Close it.
func (db *Database) OpenConnection(ctx context.Context) (Conn, error) {
	return db.acquire(ctx)
}

// Exec runs a command that returns no rows and reports the rows affected.
// On a FederationAll handle the command runs once on every member and the
// result is always 0. A failure on any member stops the fan-out; members
// already visited keep their changes.
func (db *Database) Exec(ctx context.Context, cmd Command) (int64, error) {
	if cmd.tx != nil {
		return db.execNonQuery(ctx, cmd, nil)
	}

	if db.target.Type == FederationAll {
		conn, err := db.open(ctx)
		if err != nil {
			return 0, err
		}
		defer db.release(conn)
		return db.fanout(ctx, cmd, conn)
	}

	conn, err := db.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer db.release(conn)
	return db.execNonQuery(ctx, cmd, conn)
}

// Scalar returns the first column of the first row, or nil when the
// command yields no rows.
func (db *Database) Scalar(ctx context.Context, cmd Command) (any, error) {
	if cmd.tx != nil {
		return db.execScalar(ctx, cmd, nil)
	}

	conn, err := db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer db.release(conn)
	return db.execScalar(ctx, cmd, conn)
}

// Query runs cmd and returns its rows. The rows own the connection they
// were read from: closing them closes it.
func (db *Database) Query(ctx context.Context, cmd Command) (Rows, error) {
	if cmd.tx != nil {
		rows, err := db.execReader(ctx, cmd, nil)
		if err != nil || rows != nil {
			return rows, err
		}
		return emptyRows{}, nil
	}

	conn, err := db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.execReader(ctx, cmd, conn)
	if err != nil {
		db.release(conn)
		return nil, err
	}
	if rows == nil {
		db.release(conn)
		return emptyRows{}, nil
	}
	return &ownedRows{Rows: rows, conn: conn, release: db.release}, nil
}

// Begin starts a transaction on a new connection in the handle's
// federation context. Commit or Rollback releases the connection.
func (db *Database) Begin(ctx context.Context) (Tx, error) {
	conn, err := db.acquire(ctx)
	if err != nil {
		return nil, err
	}

	var tx Tx
	err = db.retry(ctx, "begin", func(ctx context.Context) error {
		var err error
		tx, err = conn.Begin(ctx)
		return err
	})
	if err != nil {
		db.release(conn)
		return nil, &Error{Kind: ErrCommandExecution, Statement: "BEGIN", Err: err}
	}
	return &ownedTx{Tx: tx, conn: conn, release: db.release}, nil
}

// retry runs op under the handle's policy, counting every repeated
// attempt.
func (db *Database) retry(ctx context.Context, operation string, op func(context.Context) error) error {
	attempt := 0
	return db.policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			db.metrics.IncRetry(operation)
		}
		err := op(ctx)
		if err != nil {
			db.log.Debug().Err(err).Str("operation", operation).Int("attempt", attempt).Msg("attempt failed")
		}
		return err
	})
}
