package fedds

import (
	"context"

	"github.com/dronm/fedds/telemetry"
)

// open leases a connection under the retry policy. A connection the
// backend handed back together with an error is closed before the attempt
// is retried or the error returned.
func (db *Database) open(ctx context.Context) (Conn, error) {
	var conn Conn
	err := db.retry(ctx, "open", func(ctx context.Context) error {
		c, err := db.opener.Open(ctx)
		if err != nil {
			if c != nil {
				db.release(c)
			}
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		db.metrics.IncConnection(telemetry.OutcomeError)
		return nil, &Error{Kind: ErrConnection, Err: err}
	}
	db.metrics.IncConnection(telemetry.OutcomeOK)
	return conn, nil
}

// acquire opens a connection and switches it into the handle's own
// federation context.
func (db *Database) acquire(ctx context.Context) (Conn, error) {
	conn, err := db.open(ctx)
	if err != nil {
		return nil, err
	}
	if err := db.applyDefaultContext(ctx, conn); err != nil {
		db.release(conn)
		return nil, err
	}
	return conn, nil
}

func (db *Database) release(conn Conn) {
	if err := conn.Close(); err != nil {
		db.log.Warn().Err(err).Msg("close connection")
	}
}
