package main

import (
	"fmt"
	"strings"

	"github.com/dronm/fedds"
	"github.com/dronm/fedds/config"
	"github.com/dronm/fedds/mssqlds"
	"github.com/dronm/fedds/pgds"
	"github.com/dronm/fedds/sqlds"
	"github.com/dronm/fedds/sqliteds"
)

// newProvider builds the registered provider named in cfg with its own
// config type.
func newProvider(cfg config.DatabaseConfig) (fedds.Provider, error) {
	var provCfg any
	switch cfg.Provider {
	case mssqlds.ProviderID:
		provCfg = &mssqlds.Config{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime.Duration,
		}
	case pgds.ProviderID:
		provCfg = &pgds.Config{ConnStr: cfg.DSN, MaxConns: int32(cfg.MaxOpenConns)}
	case sqliteds.ProviderID:
		provCfg = &sqliteds.Config{Path: cfg.DSN, Driver: cfg.Driver}
	case sqlds.ProviderID:
		provCfg = &sqlds.Config{
			Driver:          cfg.Driver,
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime.Duration,
		}
	default:
		return nil, fmt.Errorf("unsupported provider %q (registered: %s)", cfg.Provider, strings.Join(fedds.Providers(), ", "))
	}
	return fedds.NewProvider(cfg.Provider, provCfg)
}
