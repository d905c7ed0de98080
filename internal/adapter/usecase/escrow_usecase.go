package usecase

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/core/port"
	"meta-ads/internal/metrics"
	"meta-ads/internal/pkg/clock"
	"meta-ads/internal/pkg/errs"
)

// Options tune the escrow core. The zero value uses caller supplied ids,
// the default unit scale and no settlement notifications.
type Options struct {
	IDPolicy  domain.IDPolicy
	UnitScale decimal.Decimal
	// OnSettled is called after a settlement has been committed, typically
	// to wake the transfer dispatcher. It must not block.
	OnSettled func()
}

// EscrowUseCase implements port.EscrowUseCase on top of a record store.
// Every operation validates fully before its single store write, so a
// rejected call leaves the store untouched.
type EscrowUseCase struct {
	store   port.RecordStore
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	policy    domain.IDPolicy
	unitScale decimal.Decimal
	onSettled func()
}

// NewEscrowUseCase wires the core to its collaborators.
func NewEscrowUseCase(store port.RecordStore, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics, opts Options) *EscrowUseCase {
	u := &EscrowUseCase{
		store:     store,
		clock:     clk,
		logger:    logger,
		metrics:   m,
		policy:    opts.IDPolicy,
		unitScale: opts.UnitScale,
		onSettled: opts.OnSettled,
	}
	if u.policy == "" {
		u.policy = domain.IDPolicyCaller
	}
	if u.unitScale.IsZero() {
		u.unitScale = domain.DefaultUnitScale
	}
	if u.onSettled == nil {
		u.onSettled = func() {}
	}
	return u
}

// Deploy records caller.Contract as the platform account. It runs once per
// store.
func (u *EscrowUseCase) Deploy(ctx context.Context, caller domain.Caller) (domain.ContractState, error) {
	if caller.Contract == "" {
		return domain.ContractState{}, errs.Wrap(domain.ErrInvalidInput, "platform account is empty")
	}
	state := domain.ContractState{
		Platform:      caller.Contract,
		InitializedAt: clock.Unix(u.clock),
	}
	if err := u.store.Initialize(ctx, state); err != nil {
		return domain.ContractState{}, err
	}
	u.logger.Info("contract initialized", slog.String("platform", state.Platform))
	return state, nil
}

// RegisterCreative stores a creative owned by the caller.
func (u *EscrowUseCase) RegisterCreative(ctx context.Context, caller domain.Caller, req port.CreativeReq) (domain.Creative, error) {
	if caller.Anonymous() {
		return domain.Creative{}, errs.Wrap(domain.ErrUnauthorized, "caller is anonymous")
	}
	c, err := domain.NewCreative(u.policy, req.ID, req.Name, req.Content, req.NFTReference, caller.Principal)
	if err != nil {
		return domain.Creative{}, err
	}
	c, err = u.store.InsertCreative(ctx, c)
	if err != nil {
		return domain.Creative{}, err
	}
	u.metrics.RecordsRegistered.WithLabelValues(string(domain.KindCreative)).Inc()
	u.logger.Debug("creative registered", slog.Int64("id", c.ID), slog.String("owner", c.Owner))
	return c, nil
}

// RegisterAdSpot stores an ad spot owned by the caller. The price is
// scaled into smallest units first.
func (u *EscrowUseCase) RegisterAdSpot(ctx context.Context, caller domain.Caller, req port.AdSpotReq) (domain.AdSpot, error) {
	if caller.Anonymous() {
		return domain.AdSpot{}, errs.Wrap(domain.ErrUnauthorized, "caller is anonymous")
	}
	sp, err := domain.NewAdSpot(u.policy, req.ID, req.Price, u.unitScale, req.Name, req.PublisherEarn, req.ShowKind, caller.Principal)
	if err != nil {
		return domain.AdSpot{}, err
	}
	sp, err = u.store.InsertAdSpot(ctx, sp)
	if err != nil {
		return domain.AdSpot{}, err
	}
	u.metrics.RecordsRegistered.WithLabelValues(string(domain.KindAdSpot)).Inc()
	u.logger.Debug("ad spot registered", slog.Int64("id", sp.ID), slog.String("owner", sp.Owner), slog.String("price", sp.Price.String()))
	return sp, nil
}

// GetCreative returns domain.ErrCreativeNotFound for an unknown id. The
// other readers behave the same for their kinds.
func (u *EscrowUseCase) GetCreative(ctx context.Context, id int64) (domain.Creative, error) {
	return u.store.GetCreative(ctx, id)
}

// ListCreatives returns every creative keyed by id.
func (u *EscrowUseCase) ListCreatives(ctx context.Context) (map[int64]domain.Creative, error) {
	return u.store.ListCreatives(ctx)
}

func (u *EscrowUseCase) GetAdSpot(ctx context.Context, id int64) (domain.AdSpot, error) {
	return u.store.GetAdSpot(ctx, id)
}

func (u *EscrowUseCase) ListAdSpots(ctx context.Context) (map[int64]domain.AdSpot, error) {
	return u.store.ListAdSpots(ctx)
}

func (u *EscrowUseCase) GetAgreement(ctx context.Context, id int64) (domain.Agreement, error) {
	return u.store.GetAgreement(ctx, id)
}

// ListAgreements returns settled and unsettled agreements alike.
func (u *EscrowUseCase) ListAgreements(ctx context.Context) (map[int64]domain.Agreement, error) {
	return u.store.ListAgreements(ctx)
}

var _ port.EscrowUseCase = (*EscrowUseCase)(nil)
