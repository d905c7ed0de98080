package usecase

import (
	"context"
	"log/slog"
	"time"

	"meta-ads/internal/core/port"
	"meta-ads/internal/metrics"
	"meta-ads/internal/pkg/clock"
)

// Dispatcher delivers pending payout transfers from the store outbox to the
// ledger. Transfers stay pending until the ledger accepts them, so a crash
// between commit and delivery only delays the payout.
type Dispatcher struct {
	logger      *slog.Logger
	outbox      port.TransferOutbox
	ledger      port.Ledger
	clock       clock.Clock
	metrics     *metrics.Metrics
	interval    time.Duration
	batchSize   int
	warnAttempt int
	wake        chan struct{}
}

// NewDispatcher constructs the delivery loop with sane defaults.
func NewDispatcher(
	logger *slog.Logger,
	outbox port.TransferOutbox,
	ledger port.Ledger,
	clk clock.Clock,
	m *metrics.Metrics,
	interval time.Duration,
	batchSize int,
) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{
		logger:      logger,
		outbox:      outbox,
		ledger:      ledger,
		clock:       clk,
		metrics:     m,
		interval:    interval,
		batchSize:   batchSize,
		warnAttempt: 5,
		wake:        make(chan struct{}, 1),
	}
}

// Notify asks for a dispatch pass without waiting for the next tick. It
// never blocks.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run dispatches on every tick and notification until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchOnce(ctx); err != nil {
			d.logger.ErrorContext(ctx, "dispatch iteration failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// DispatchOnce hands one batch of pending transfers to the ledger and
// returns how many were delivered.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		d.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}()

	pending, err := d.outbox.PendingTransfers(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}
	d.metrics.TransfersPending.Set(float64(len(pending)))

	sent := 0
	for _, t := range pending {
		if err = d.ledger.Transfer(ctx, t); err != nil {
			d.metrics.TransfersDispatch.WithLabelValues(metrics.ResultFailed).Inc()
			level := slog.LevelWarn
			if t.Attempts+1 >= d.warnAttempt {
				level = slog.LevelError
			}
			d.logger.Log(ctx, level, "transfer delivery failed; retry scheduled",
				slog.String("key", t.Key),
				slog.String("recipient", t.Recipient),
				slog.Int("attempts", t.Attempts+1),
				slog.Any("error", err),
			)
			if err = d.outbox.RecordTransferAttempt(ctx, t.Key); err != nil {
				return sent, err
			}
			continue
		}
		if err = d.outbox.MarkTransferSent(ctx, t.Key, clock.Unix(d.clock)); err != nil {
			// The ledger deduplicates by key, so the next pass is harmless.
			return sent, err
		}
		sent++
		d.metrics.TransfersDispatch.WithLabelValues(metrics.ResultOK).Inc()
		d.logger.InfoContext(ctx, "publisher received funds",
			slog.String("publisher", t.Recipient),
			slog.String("amount", t.Amount.String()),
			slog.Int64("agreement_id", t.AgreementID),
		)
	}
	if len(pending) > 0 {
		d.logger.InfoContext(ctx, "transfer batch processed",
			slog.Int("batch_size", len(pending)),
			slog.Int("sent_count", sent),
			slog.Int("failed_count", len(pending)-sent),
		)
	}
	return sent, nil
}
