package usecase

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/pkg/errs"
)

// FormAgreement books b.SpotID for the caller's creative, holding deposit
// in escrow. Checks run in a fixed order and the first failure wins:
// booking fields, creative, spot, deposit, ownership, id uniqueness.
func (u *EscrowUseCase) FormAgreement(ctx context.Context, caller domain.Caller, b domain.Booking, deposit decimal.Decimal) (domain.Agreement, error) {
	a, err := u.formAgreement(ctx, caller, b, deposit)
	if err != nil {
		u.metrics.AgreementsRejected.WithLabelValues(rejectReason(err)).Inc()
		return domain.Agreement{}, err
	}
	u.metrics.AgreementsFormed.Inc()
	u.metrics.EscrowedUnits.Add(a.AdvertiserCost.InexactFloat64())
	u.logger.Info("agreement signed",
		slog.Int64("id", a.ID),
		slog.Int64("spot_id", a.SpotID),
		slog.Int64("creative_id", a.CreativeID),
		slog.String("advertiser", a.Advertiser),
		slog.String("deposit", a.AdvertiserCost.String()),
	)
	return a, nil
}

func (u *EscrowUseCase) formAgreement(ctx context.Context, caller domain.Caller, b domain.Booking, deposit decimal.Decimal) (domain.Agreement, error) {
	if err := b.Validate(u.policy, u.now()); err != nil {
		return domain.Agreement{}, err
	}
	creative, err := u.store.GetCreative(ctx, b.CreativeID)
	if err != nil {
		return domain.Agreement{}, err
	}
	spot, err := u.store.GetAdSpot(ctx, b.SpotID)
	if err != nil {
		return domain.Agreement{}, err
	}
	a, err := domain.NewAgreement(b, creative, spot, deposit, caller)
	if err != nil {
		return domain.Agreement{}, err
	}
	return u.store.InsertAgreement(ctx, a)
}

// rejectReason is the metrics label of a failed request.
func rejectReason(err error) string {
	switch {
	case errs.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errs.Is(err, domain.ErrNotFound):
		return "not_found"
	case errs.Is(err, domain.ErrInsufficientDeposit):
		return "insufficient_deposit"
	case errs.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errs.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
