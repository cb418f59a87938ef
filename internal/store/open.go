package store

import (
	"context"
	"fmt"
)

// Drivers accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Driver    string
	DataFile  string // json
	DBPath    string // sqlite
	Redis     RedisConfig
	DefaultTZ string // timezone given to records that lack one
}

// Open returns the Repo for opts.Driver.
func Open(ctx context.Context, opts Options) (Repo, error) {
	switch opts.Driver {
	case DriverJSON, "":
		return OpenJSON(opts.DataFile, opts.DefaultTZ)
	case DriverSQLite:
		return OpenSQLite(ctx, opts.DBPath, opts.DefaultTZ)
	case DriverRedis:
		return OpenRedis(ctx, opts.Redis, opts.DefaultTZ)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
