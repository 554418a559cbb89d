package types

import (
	"errors"
	"time"
)

// Config holds the parameters for opening a store.
type Config struct {
	DataDir     string        `json:"data_dir" yaml:"data_dir"`
	DBName      string        `json:"db_name" yaml:"db_name"`
	BusyTimeout time.Duration `json:"busy_timeout" yaml:"busy_timeout"`
}

// DefaultDBName is used when Config.DBName is empty.
const DefaultDBName = "spellbook.db"

// DefaultBusyTimeout is used when Config.BusyTimeout is zero.
const DefaultBusyTimeout = 5 * time.Second

// Config validation errors.
var (
	ErrDBNameInvalid      = errors.New("database name must not contain a path separator")
	ErrBusyTimeoutInvalid = errors.New("busy timeout must not be negative")
)

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	for _, r := range c.DBName {
		if r == '/' || r == '\\' {
			return ErrDBNameInvalid
		}
	}
	if c.BusyTimeout < 0 {
		return ErrBusyTimeoutInvalid
	}
	return nil
}

// DatabaseName returns DBName or the default.
func (c Config) DatabaseName() string {
	if c.DBName == "" {
		return DefaultDBName
	}
	return c.DBName
}

// Timeout returns BusyTimeout or the default.
func (c Config) Timeout() time.Duration {
	if c.BusyTimeout == 0 {
		return DefaultBusyTimeout
	}
	return c.BusyTimeout
}
