// Package ledger holds the outbound adapters that move escrowed funds to
// their recipients.
package ledger

import (
	"context"
	"log/slog"
	"sync"

	"meta-ads/internal/core/domain"
)

// LogLedger only records transfers in the log. It is meant for local runs
// where no payment backend exists. Keys are remembered for the lifetime of
// the process so a redelivery is logged once.
type LogLedger struct {
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewLogLedger returns a ledger that writes to logger.
func NewLogLedger(logger *slog.Logger) *LogLedger {
	return &LogLedger{logger: logger, seen: make(map[string]struct{})}
}

// Transfer logs t the first time its key is seen.
func (l *LogLedger) Transfer(ctx context.Context, t domain.Transfer) error {
	l.mu.Lock()
	_, dup := l.seen[t.Key]
	l.seen[t.Key] = struct{}{}
	l.mu.Unlock()
	if dup {
		l.logger.DebugContext(ctx, "duplicate transfer ignored", slog.String("key", t.Key))
		return nil
	}
	l.logger.InfoContext(ctx, "transfer executed",
		slog.String("key", t.Key),
		slog.String("recipient", t.Recipient),
		slog.String("amount", t.Amount.String()),
	)
	return nil
}
