package usecase

import (
	"context"
	"log/slog"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/metrics"
	"meta-ads/internal/pkg/clock"
	"meta-ads/internal/pkg/errs"
)

// Settle releases the escrow of a finished agreement. The agreement is
// marked settled and its payout enqueued in one store step; delivery to
// the ledger happens later in the Dispatcher. An unknown id yields false
// without an error.
func (u *EscrowUseCase) Settle(ctx context.Context, caller domain.Caller, agreementID int64) (bool, error) {
	ok, err := u.settle(ctx, caller, agreementID)
	switch {
	case err != nil:
		u.metrics.Settlements.WithLabelValues(metrics.ResultRejected).Inc()
	case !ok:
		u.metrics.Settlements.WithLabelValues(metrics.ResultUnknown).Inc()
	default:
		u.metrics.Settlements.WithLabelValues(metrics.ResultOK).Inc()
	}
	return ok, err
}

func (u *EscrowUseCase) settle(ctx context.Context, caller domain.Caller, agreementID int64) (bool, error) {
	if !caller.MaySettle() {
		return false, errs.Wrapf(domain.ErrUnauthorized, "%q may not settle agreements", caller.Principal)
	}
	if agreementID <= 0 {
		return false, errs.Wrap(domain.ErrInvalidInput, "agreement id must be positive")
	}
	a, err := u.store.GetAgreement(ctx, agreementID)
	if errs.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	settled, transfer, err := a.Settle(u.now())
	if err != nil {
		return false, err
	}
	if err = u.store.CommitSettlement(ctx, settled, transfer); err != nil {
		return false, err
	}
	u.logger.Info("payout enqueued",
		slog.String("key", transfer.Key),
		slog.String("publisher", transfer.Recipient),
		slog.String("amount", transfer.Amount.String()),
		slog.Int64("agreement_id", a.ID),
		slog.String("platform_fee", a.PlatformFee.String()),
	)
	u.onSettled()
	return true, nil
}

func (u *EscrowUseCase) now() int64 {
	return clock.Unix(u.clock)
}
