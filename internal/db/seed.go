package db

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/core/port"
	"meta-ads/internal/pkg/clock"
)

// Seed registers demo creatives, ad spots and agreements through svc. It
// does nothing when creatives already exist, so it is safe on every start.
func Seed(ctx context.Context, svc port.EscrowUseCase, clk clock.Clock, policy domain.IDPolicy, platform string) error {
	existing, err := svc.ListCreatives(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	id := func(n int) int64 {
		if policy == domain.IDPolicyAuto {
			return 0
		}
		return int64(n)
	}

	// publishers and their spots
	var spots []domain.AdSpot
	for i := 1; i <= 3; i++ {
		pub := domain.Caller{Principal: fmt.Sprintf("publisher%d.near", i), Contract: platform}
		for j := 1; j <= 2; j++ {
			n := (i-1)*2 + j
			earn := int64(60 + r.Intn(30))
			kind := []string{"banner", "video", "native"}[r.Intn(3)]
			sp, err := svc.RegisterAdSpot(ctx, pub, port.AdSpotReq{
				ID:            id(n),
				Price:         decimal.NewFromInt(int64(1 + r.Intn(10))),
				Name:          fmt.Sprintf("Spot %d of publisher %d", j, i),
				PublisherEarn: &earn,
				ShowKind:      &kind,
			})
			if err != nil {
				return err
			}
			spots = append(spots, sp)
		}
	}

	// advertisers, one creative and one booking each
	now := clock.Unix(clk)
	for i := 1; i <= 5; i++ {
		adv := domain.Caller{Principal: fmt.Sprintf("advertiser%d.near", i), Contract: platform}
		cr, err := svc.RegisterCreative(ctx, adv, port.CreativeReq{
			ID:      id(i),
			Name:    fmt.Sprintf("Creative %d", i),
			Content: fmt.Sprintf("https://example.com/creative/%s.png", uuid.NewString()),
		})
		if err != nil {
			return err
		}

		spot := spots[r.Intn(len(spots))]
		start := now + int64(60+r.Intn(3600))
		_, err = svc.FormAgreement(ctx, adv, domain.Booking{
			ID:         id(i),
			SpotID:     spot.ID,
			CreativeID: cr.ID,
			StartTime:  start,
			EndTime:    start + int64(3600*(1+r.Intn(24))),
		}, spot.Price)
		if err != nil {
			return err
		}
	}
	return nil
}
