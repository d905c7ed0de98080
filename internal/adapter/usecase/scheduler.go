package usecase

import (
	"context"
	"log/slog"
	"time"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/core/port"
	"meta-ads/internal/pkg/clock"
	"meta-ads/internal/pkg/errs"
)

// Scheduler settles agreements automatically once their display window has
// ended. It acts as the platform account, the same principal that deployed
// the contract.
type Scheduler struct {
	logger    *slog.Logger
	svc       port.EscrowUseCase
	store     port.AgreementStore
	clock     clock.Clock
	caller    domain.Caller
	interval  time.Duration
	batchSize int
}

// NewScheduler builds a scheduler that reads due agreements from store and
// settles them through svc as platform. A non-positive interval means one
// minute.
func NewScheduler(logger *slog.Logger, svc port.EscrowUseCase, store port.AgreementStore, clk clock.Clock, platform string, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		logger:    logger,
		svc:       svc,
		store:     store,
		clock:     clk,
		caller:    domain.Caller{Principal: platform, Contract: platform},
		interval:  interval,
		batchSize: 100,
	}
}

// Run settles due agreements on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SettleDue(ctx); err != nil {
			s.logger.ErrorContext(ctx, "settle iteration failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SettleDue settles every unsettled agreement whose end time has passed,
// oldest first, and returns how many it settled. Agreements are read in
// batches; it stops early when a whole batch fails. Losing a race against a
// manual settlement is not an error.
func (s *Scheduler) SettleDue(ctx context.Context) (int, error) {
	now := clock.Unix(s.clock)
	settled := 0
	for {
		due, err := s.store.DueAgreements(ctx, now, s.batchSize)
		if err != nil {
			return settled, err
		}

		progress := 0
		for _, a := range due {
			ok, err := s.svc.Settle(ctx, s.caller, a.ID)
			switch {
			case errs.Is(err, domain.ErrAlreadySettled):
				progress++
			case err != nil:
				s.logger.WarnContext(ctx, "auto settlement failed", slog.Int64("agreement_id", a.ID), slog.Any("error", err))
			case ok:
				settled++
				progress++
			}
		}
		if len(due) < s.batchSize || progress == 0 {
			return settled, nil
		}
	}
}
