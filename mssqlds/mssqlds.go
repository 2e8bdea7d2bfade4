// Package mssqlds implements a SQL Server / Azure SQL Database provider,
// the dialect USE FEDERATION statements belong to. It runs on sqlds with
// the go-mssqldb driver and knows which Azure SQL error numbers are
// transient.
package mssqlds

import (
	"errors"
	"time"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/dronm/fedds"
	"github.com/dronm/fedds/sqlds"
)

const (
	ProviderID = "mssql"
	DriverName = "sqlserver"
)

// transientErrors are the server error numbers Azure SQL returns for
// throttling, failover and dropped sessions.
var transientErrors = map[int32]bool{
	20:    true, // instance does not support encryption
	64:    true, // connection dropped during login
	233:   true, // connection initialization error
	4060:  true, // cannot open database
	4221:  true, // login to read-secondary failed
	10053: true, // transport-level error receiving results
	10054: true, // transport-level error sending request
	10060: true, // network error while establishing connection
	10928: true, // resource limit reached
	10929: true, // resource minimum guarantee not met
	40143: true, // connection could not be initialized
	40197: true, // error processing request
	40501: true, // service busy
	40540: true, // service encountered an error
	40613: true, // database unavailable
	49918: true, // not enough resources to process request
	49919: true, // too many create or update operations
	49920: true, // too many operations in progress
}

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func init() {
	fedds.Register(ProviderID, func(cfg any) (fedds.Provider, error) {
		c, ok := cfg.(*Config)
		if !ok {
			return nil, errors.New("mssqlds: config must be *mssqlds.Config")
		}
		return New(c)
	})
}

func New(c *Config) (*sqlds.Provider, error) {
	if c.DSN == "" {
		return nil, errors.New("mssqlds: DSN is required")
	}
	return sqlds.New(&sqlds.Config{
		Driver:          DriverName,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		Transient:       IsTransient,
	})
}

// IsTransient reports Azure SQL throttling and availability errors.
func IsTransient(err error) bool {
	var sqlErr mssql.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	if transientErrors[sqlErr.Number] {
		return true
	}
	for _, e := range sqlErr.All {
		if transientErrors[e.Number] {
			return true
		}
	}
	return false
}
