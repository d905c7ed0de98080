package port

import (
	"context"

	"github.com/shopspring/decimal"

	"meta-ads/internal/core/domain"
)

// EscrowUseCase is the primary port of the escrow core. Every write runs to
// completion atomically: either all checks pass and exactly one record is
// written, or nothing changes.
type EscrowUseCase interface {
	// Deploy initializes the contract state for caller.Contract. It fails
	// with domain.ErrAlreadyInitialized on a second call.
	Deploy(ctx context.Context, caller domain.Caller) (domain.ContractState, error)

	RegisterCreative(ctx context.Context, caller domain.Caller, req CreativeReq) (domain.Creative, error)
	RegisterAdSpot(ctx context.Context, caller domain.Caller, req AdSpotReq) (domain.AdSpot, error)

	// FormAgreement books a spot for the caller's creative. deposit is the
	// amount attached to the call, in smallest units.
	FormAgreement(ctx context.Context, caller domain.Caller, b domain.Booking, deposit decimal.Decimal) (domain.Agreement, error)

	// Settle releases the escrow of a finished agreement to its publisher.
	// It returns false, nil when the agreement does not exist.
	Settle(ctx context.Context, caller domain.Caller, agreementID int64) (bool, error)

	GetCreative(ctx context.Context, id int64) (domain.Creative, error)
	ListCreatives(ctx context.Context) (map[int64]domain.Creative, error)
	GetAdSpot(ctx context.Context, id int64) (domain.AdSpot, error)
	ListAdSpots(ctx context.Context) (map[int64]domain.AdSpot, error)
	GetAgreement(ctx context.Context, id int64) (domain.Agreement, error)
	ListAgreements(ctx context.Context) (map[int64]domain.Agreement, error)
}

// CreativeReq carries the caller supplied fields of a new creative.
type CreativeReq struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Content      string  `json:"content"`
	NFTReference *string `json:"nft_reference,omitempty"`
}

// AdSpotReq carries the caller supplied fields of a new ad spot. Price is
// in whole currency units and is scaled on registration.
type AdSpotReq struct {
	ID            int64           `json:"id"`
	Price         decimal.Decimal `json:"price"`
	Name          string          `json:"name"`
	PublisherEarn *int64          `json:"publisher_earn,omitempty"`
	ShowKind      *string         `json:"show_kind,omitempty"`
}
