package fedds

import "context"

// applyDefaultContext switches conn into the handle's own target with
// filtering on. An All handle outside of fan-out lands on the member that
// holds its key, or the first member when it has none.
func (db *Database) applyDefaultContext(ctx context.Context, conn Conn) error {
	key := db.target.Key
	if db.target.Type == FederationAll && key == nil {
		key = int64(0)
	}
	return db.applyContext(ctx, conn, db.target.Type, key, true)
}

// applyContext issues the USE FEDERATION statement for scope and key on
// conn. It does nothing for a non-federated handle.
func (db *Database) applyContext(ctx context.Context, conn Conn, scope FederationType, key any, filterOn bool) error {
	if db.target.Type == FederationNone {
		return nil
	}

	stmt := db.target.Statement(scope, key, filterOn)
	err := db.retry(ctx, "federation", func(ctx context.Context) error {
		_, err := conn.Exec(ctx, stmt)
		return err
	})
	if err != nil {
		return &Error{Kind: ErrFederationSwitch, Statement: stmt, Err: err}
	}
	db.log.Debug().Str("statement", stmt).Msg("federation context applied")
	return nil
}
