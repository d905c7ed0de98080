package port

import (
	"context"

	"meta-ads/internal/core/domain"
)

// Ledger moves funds out of the escrow's custody. Delivery is fire and
// forget from the core's point of view, but implementations must treat
// t.Key as an idempotency key: delivering the same key twice pays once.
type Ledger interface {
	Transfer(ctx context.Context, t domain.Transfer) error
}
