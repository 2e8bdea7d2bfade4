package fedds

import (
	"context"
	"time"

	"github.com/dronm/fedds/telemetry"
)

// prepare binds cmd to its transaction, or to conn when it has none.
// It reports false for command kinds the executor cannot run.
func (db *Database) prepare(cmd Command, conn Queryer) (Queryer, bool) {
	if cmd.Kind != KindSQL {
		db.log.Warn().Stringer("kind", cmd.Kind).Str("statement", cmd.Text).Msg("unsupported command kind, skipped")
		return nil, false
	}
	if cmd.tx != nil {
		return cmd.tx, true
	}
	return conn, true
}

func (db *Database) execNonQuery(ctx context.Context, cmd Command, conn Queryer) (int64, error) {
	q, ok := db.prepare(cmd, conn)
	if !ok {
		db.metrics.ObserveCommand("exec", telemetry.OutcomeSkip, 0)
		return 0, nil
	}

	var affected int64
	err := db.run(ctx, "exec", cmd, func(ctx context.Context) error {
		res, err := q.Exec(ctx, cmd.Text, cmd.Args...)
		if err != nil {
			return err
		}
		affected = res.RowsAffected()
		return nil
	})
	return affected, err
}

func (db *Database) execScalar(ctx context.Context, cmd Command, conn Queryer) (any, error) {
	q, ok := db.prepare(cmd, conn)
	if !ok {
		db.metrics.ObserveCommand("scalar", telemetry.OutcomeSkip, 0)
		return nil, nil
	}

	var value any
	err := db.run(ctx, "scalar", cmd, func(ctx context.Context) error {
		v, err := scalar(ctx, q, cmd)
		value = v
		return err
	})
	return value, err
}

// execReader returns nil rows and no error for unsupported commands.
func (db *Database) execReader(ctx context.Context, cmd Command, conn Queryer) (Rows, error) {
	q, ok := db.prepare(cmd, conn)
	if !ok {
		db.metrics.ObserveCommand("query", telemetry.OutcomeSkip, 0)
		return nil, nil
	}

	var rows Rows
	err := db.run(ctx, "query", cmd, func(ctx context.Context) error {
		var err error
		rows, err = q.Query(ctx, cmd.Text, cmd.Args...)
		return err
	})
	return rows, err
}

func (db *Database) run(ctx context.Context, operation string, cmd Command, op func(context.Context) error) error {
	start := time.Now()
	err := db.retry(ctx, operation, op)
	if err != nil {
		db.metrics.ObserveCommand(operation, telemetry.OutcomeError, time.Since(start))
		return &Error{Kind: ErrCommandExecution, Statement: cmd.Text, Err: err}
	}
	db.metrics.ObserveCommand(operation, telemetry.OutcomeOK, time.Since(start))
	return nil
}

// scalar reads the first column of the first row.
func scalar(ctx context.Context, q Queryer, cmd Command) (any, error) {
	rows, err := q.Query(ctx, cmd.Text, cmd.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}
	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	return values[0], rows.Err()
}
