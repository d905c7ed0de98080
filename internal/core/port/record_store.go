package port

import (
	"context"

	"meta-ads/internal/core/domain"
)

// ContractStore holds the one-time deployment state of the escrow.
type ContractStore interface {
	// Initialize records the deployment. It fails with
	// domain.ErrAlreadyInitialized when state already exists.
	Initialize(ctx context.Context, state domain.ContractState) error
	// ContractState returns domain.ErrContractNotFound before Initialize.
	ContractState(ctx context.Context) (domain.ContractState, error)
}

// CreativeStore persists creatives. Insert assigns the next counter value
// when c.ID is zero and fails with domain.ErrConflict on a taken id.
type CreativeStore interface {
	InsertCreative(ctx context.Context, c domain.Creative) (domain.Creative, error)
	GetCreative(ctx context.Context, id int64) (domain.Creative, error)
	ListCreatives(ctx context.Context) (map[int64]domain.Creative, error)
}

// AdSpotStore persists ad spots with the same id semantics as
// CreativeStore.
type AdSpotStore interface {
	InsertAdSpot(ctx context.Context, s domain.AdSpot) (domain.AdSpot, error)
	GetAdSpot(ctx context.Context, id int64) (domain.AdSpot, error)
	ListAdSpots(ctx context.Context) (map[int64]domain.AdSpot, error)
}

// AgreementStore persists agreements. CommitSettlement is the only
// mutation: it replaces the agreement if and only if the stored copy is
// still unsettled, and enqueues the payout transfer in the same atomic
// step. A lost race yields domain.ErrAlreadySettled.
type AgreementStore interface {
	InsertAgreement(ctx context.Context, a domain.Agreement) (domain.Agreement, error)
	GetAgreement(ctx context.Context, id int64) (domain.Agreement, error)
	ListAgreements(ctx context.Context) (map[int64]domain.Agreement, error)
	// DueAgreements returns at most limit unsettled agreements whose end
	// time is at or before now, ordered by end time then id. A limit of
	// zero or less means no limit.
	DueAgreements(ctx context.Context, now int64, limit int) ([]domain.Agreement, error)
	CommitSettlement(ctx context.Context, settled domain.Agreement, t domain.Transfer) error
}

// TransferOutbox exposes the payouts awaiting delivery to the ledger.
type TransferOutbox interface {
	// PendingTransfers returns at most limit pending transfers, oldest
	// first.
	PendingTransfers(ctx context.Context, limit int) ([]domain.Transfer, error)
	GetTransfer(ctx context.Context, key string) (domain.Transfer, error)
	MarkTransferSent(ctx context.Context, key string, at int64) error
	// RecordTransferAttempt counts a failed delivery.
	RecordTransferAttempt(ctx context.Context, key string) error
}

// RecordStore is the single shared mutable resource of the escrow core.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	ContractStore
	CreativeStore
	AdSpotStore
	AgreementStore
	TransferOutbox
	Close() error
}
