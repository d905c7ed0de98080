package configs

import (
	"strings"
	"time"

	"meta-ads/internal/pkg/errs"
)

// Ledger selects where payouts are delivered and how often the outbox is
// drained.
type Ledger struct {
	// Driver is "log" or "redis".
	Driver           string        `env:"DRIVER" envDefault:"log"`
	DispatchInterval time.Duration `env:"DISPATCH_INTERVAL" envDefault:"5s"`
	BatchSize        int           `env:"BATCH_SIZE" envDefault:"100"`
}

const (
	LedgerLog   = "log"
	LedgerRedis = "redis"
)

// Kind normalises Driver and rejects unknown ledgers.
func (c Ledger) Kind() (string, error) {
	switch d := strings.ToLower(strings.TrimSpace(c.Driver)); d {
	case LedgerLog, LedgerRedis:
		return d, nil
	default:
		return "", errs.Newf("unknown ledger driver %q", c.Driver)
	}
}
