package pgds

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dronm/fedds"
)

const ENV_PG_CONN = "PG_CONN"

type fakeDB struct {
	acquireErr error
	closed     bool
}

func (f *fakeDB) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	return nil, f.acquireErr
}

func (f *fakeDB) close() error {
	f.closed = true
	return nil
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New("postgres://"); err == nil {
		t.Fatal("expected error for non *Config")
	}
	if _, err := New(&Config{}); err == nil {
		t.Fatal("expected error for empty ConnStr")
	}
	if _, err := fedds.NewProvider(ProviderID, &Config{ConnStr: "postgres://localhost/db"}); err != nil {
		t.Fatalf("NewProvider() failed: %v", err)
	}
}

func TestOpenSurfacesAcquireError(t *testing.T) {
	fake := &fakeDB{acquireErr: errors.New("no db")}
	p := &Provider{db: fake}

	conn, err := p.Open(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if conn != nil {
		t.Fatal("expected no connection")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !fake.closed {
		t.Fatal("expected db to be closed")
	}
}

func TestDatabaseWrapsAcquireError(t *testing.T) {
	p := &Provider{db: &fakeDB{acquireErr: &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}}}
	db, err := fedds.New(p)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, err = db.Exec(context.Background(), fedds.NewCommand("SELECT 1"))
	if !errors.Is(err, fedds.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "28P01" {
		t.Fatalf("expected the pg error to be kept, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("update: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecScalarQuery_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	connStr := os.Getenv(ENV_PG_CONN)
	if connStr == "" {
		t.Skipf("%s environment variable is not set", ENV_PG_CONN)
	}

	prov, err := fedds.NewProvider(ProviderID, &Config{ConnStr: connStr})
	if err != nil {
		t.Fatalf("NewProvider() failed: %v", err)
	}
	defer prov.Close()

	db, err := fedds.New(prov)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	ctx := context.Background()

	if _, err := db.Exec(ctx, fedds.NewCommand("SELECT pg_sleep(0)")); err != nil {
		t.Fatalf("Exec() failed: %v", err)
	}

	v, err := db.Scalar(ctx, fedds.NewCommand("SELECT $1::bigint + 1", int64(41)))
	if err != nil {
		t.Fatalf("Scalar() failed: %v", err)
	}
	if v != int64(42) {
		t.Errorf("Expected 42, got %v", v)
	}

	rows, err := db.Query(ctx, fedds.NewCommand("SELECT generate_series(1, 3)"))
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	count := 0
	for rows.Next() {
		count++
	}
	if err := rows.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 rows, got %d", count)
	}
}
