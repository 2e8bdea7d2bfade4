// Package sqliteds implements a SQLite data storage provider on top of
// sqlds. It works with either github.com/mattn/go-sqlite3 (driver
// "sqlite3", needs cgo) or the pure Go modernc.org/sqlite (driver
// "sqlite"). SQLite has no federations; the provider is meant for
// non-federated handles and local testing.
package sqliteds

import (
	"context"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/dronm/fedds"
	"github.com/dronm/fedds/sqlds"
)

const ProviderID = "sqlite"

const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"

	DefaultDriver = DriverCGO
)

var defaultPragmas = []string{
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

type Config struct {
	Path   string
	Driver string
	// Pragmas run on every opened connection. Nil means foreign keys on
	// and a 5s busy timeout.
	Pragmas    []string
	DisableWAL bool
}

func init() {
	fedds.Register(ProviderID, func(cfg any) (fedds.Provider, error) {
		c, ok := cfg.(*Config)
		if !ok {
			return nil, errors.New("sqliteds: config must be *sqliteds.Config")
		}
		return New(c)
	})
}

// Provider serialises access through a single pooled connection.
type Provider struct {
	*sqlds.Provider
	pragmas []string
}

func New(c *Config) (*Provider, error) {
	if c.Path == "" {
		return nil, errors.New("sqliteds: Path is required")
	}
	driver := c.Driver
	if driver == "" {
		driver = DefaultDriver
	}

	base, err := sqlds.New(&sqlds.Config{
		Driver:       driver,
		DSN:          c.Path,
		MaxOpenConns: 1,
		Transient:    IsTransient,
	})
	if err != nil {
		return nil, fmt.Errorf("sqliteds: open database: %w", err)
	}

	if !c.DisableWAL {
		if _, err := base.DB().ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			base.Close()
			return nil, fmt.Errorf("sqliteds: enable WAL mode: %w", err)
		}
	}

	pragmas := c.Pragmas
	if pragmas == nil {
		pragmas = defaultPragmas
	}
	return &Provider{Provider: base, pragmas: pragmas}, nil
}

// Open returns a connection with the configured pragmas applied. When a
// pragma fails the connection is returned along with the error.
func (p *Provider) Open(ctx context.Context) (fedds.Conn, error) {
	conn, err := p.Provider.Open(ctx)
	if err != nil {
		return nil, err
	}
	for _, pragma := range p.pragmas {
		if _, err := conn.Exec(ctx, pragma); err != nil {
			return conn, fmt.Errorf("sqliteds: %s: %w", pragma, err)
		}
	}
	return conn, nil
}

// IsTransient reports busy and locked databases.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlitelib.SQLITE_BUSY || code == sqlitelib.SQLITE_LOCKED
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
