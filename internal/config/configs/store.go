package configs

import (
	"strings"

	"meta-ads/internal/pkg/errs"
)

// Store selects the record store backend.
type Store struct {
	// Driver is one of "memory", "postgres" or "sqlite".
	Driver string `env:"DRIVER" envDefault:"memory"`
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Kind normalises Driver and rejects unknown backends.
func (c Store) Kind() (string, error) {
	switch d := strings.ToLower(strings.TrimSpace(c.Driver)); d {
	case StoreMemory, StorePostgres, StoreSQLite:
		return d, nil
	default:
		return "", errs.Newf("unknown store driver %q", c.Driver)
	}
}
