package fedds

import "context"

// ---------- Query results ----------

type Rows interface {
	Close() error
	Err() error
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
}

type ExecResult interface {
	RowsAffected() int64
}

// ---------- Connections ----------

// Queryer is anything a command can be bound to: a connection or a
// transaction opened on one.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (ExecResult, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Conn is one physical connection leased from a backend.
// Close returns it to the backend and must be called exactly once.
type Conn interface {
	Queryer
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

type Tx interface {
	Queryer
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ---------- Backends ----------

// Opener opens physical connections. An implementation may return a
// non-nil Conn together with an error when the connection was created
// but could not be brought up; the caller closes it.
type Opener interface {
	Open(ctx context.Context) (Conn, error)
}

// TransientDetector is implemented by backends that know which of their
// driver errors are worth retrying.
type TransientDetector interface {
	IsTransient(err error) bool
}
