package db

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meta-ads/internal/adapter/memory"
	"meta-ads/internal/adapter/usecase"
	"meta-ads/internal/core/domain"
	"meta-ads/internal/metrics"
	"meta-ads/internal/pkg/clock"
)

func TestSeed(t *testing.T) {
	for _, policy := range []domain.IDPolicy{domain.IDPolicyCaller, domain.IDPolicyAuto} {
		t.Run(string(policy), func(t *testing.T) {
			ctx := context.Background()
			clk := clock.NewMockClock(time.Unix(1_700_000_000, 0))
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			svc := usecase.NewEscrowUseCase(memory.NewRecordStore(), clk, logger, metrics.New(), usecase.Options{IDPolicy: policy})

			require.NoError(t, Seed(ctx, svc, clk, policy, "metaads.near"))
			// second run is a no-op
			require.NoError(t, Seed(ctx, svc, clk, policy, "metaads.near"))

			creatives, err := svc.ListCreatives(ctx)
			require.NoError(t, err)
			require.Len(t, creatives, 5)
			spots, err := svc.ListAdSpots(ctx)
			require.NoError(t, err)
			require.Len(t, spots, 6)

			agreements, err := svc.ListAgreements(ctx)
			require.NoError(t, err)
			require.Len(t, agreements, 5)
			for _, a := range agreements {
				require.Equal(t, "metaads.near", a.Platform)
				require.False(t, a.Settled)
				require.Equal(t, creatives[a.CreativeID].Owner, a.Advertiser)
			}
		})
	}
}
