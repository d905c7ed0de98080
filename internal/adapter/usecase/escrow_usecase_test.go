package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"meta-ads/internal/adapter/memory"
	"meta-ads/internal/core/domain"
	"meta-ads/internal/core/port"
	"meta-ads/internal/metrics"
	"meta-ads/internal/pkg/clock"
)

const platformAccount = "metaads.near"

var (
	advertiser = domain.Caller{Principal: "ad.near", Contract: platformAccount}
	publisher  = domain.Caller{Principal: "pub.near", Contract: platformAccount}
	platform   = domain.Caller{Principal: platformAccount, Contract: platformAccount}

	// 5 whole units at the default scale.
	spotPrice = decimal.RequireFromString("5000000000000000000000000")
)

type fixture struct {
	svc     *EscrowUseCase
	store   *memory.RecordStore
	clock   *clock.MockClock
	metrics *metrics.Metrics
	settled atomic.Int32
}

func newFixture(t *testing.T, policy domain.IDPolicy) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewRecordStore(),
		clock:   clock.NewMockClock(time.Unix(1_000, 0)),
		metrics: metrics.New(),
	}
	f.svc = NewEscrowUseCase(f.store, f.clock, discardLogger(), f.metrics, Options{
		IDPolicy:  policy,
		OnSettled: func() { f.settled.Add(1) },
	})
	_, err := f.svc.Deploy(context.Background(), platform)
	require.NoError(t, err)
	return f
}

// seed registers creative 1 for the advertiser and spot 1 for the
// publisher.
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.RegisterCreative(ctx, advertiser, port.CreativeReq{ID: 1, Name: "Summer sale", Content: "ipfs://creative"})
	require.NoError(t, err)
	_, err = f.svc.RegisterAdSpot(ctx, publisher, port.AdSpotReq{ID: 1, Price: decimal.NewFromInt(5), Name: "Homepage banner"})
	require.NoError(t, err)
}

func (f *fixture) agreementCount(t *testing.T) int {
	t.Helper()
	all, err := f.svc.ListAgreements(context.Background())
	require.NoError(t, err)
	return len(all)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func booking(id int64) domain.Booking {
	return domain.Booking{ID: id, SpotID: 1, CreativeID: 1, StartTime: 1_000, EndTime: 2_000}
}

func TestDeployOnce(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)

	_, err := f.svc.Deploy(context.Background(), platform)
	require.ErrorIs(t, err, domain.ErrAlreadyInitialized)

	state, err := f.store.ContractState(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.ContractState{Platform: platformAccount, InitializedAt: 1_000}, state)
}

func TestRegisterCreativeRoundTrip(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	ctx := context.Background()
	ref := "nft.near:42"

	created, err := f.svc.RegisterCreative(ctx, advertiser, port.CreativeReq{ID: 3, Name: "Launch", Content: "<img>", NFTReference: &ref})
	require.NoError(t, err)

	got, err := f.svc.GetCreative(ctx, 3)
	require.NoError(t, err)
	want := domain.Creative{ID: 3, Name: "Launch", Content: "<img>", NFTReference: &ref, Owner: "ad.near"}
	require.Empty(t, cmp.Diff(want, got))
	require.Empty(t, cmp.Diff(created, got))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RecordsRegistered.WithLabelValues("creative")))
}

func TestRegisterConflictKeepsOriginal(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	f.seed(t)
	ctx := context.Background()

	_, err := f.svc.RegisterCreative(ctx, publisher, port.CreativeReq{ID: 1, Name: "Other", Content: "x"})
	require.ErrorIs(t, err, domain.ErrConflict)
	_, err = f.svc.RegisterAdSpot(ctx, advertiser, port.AdSpotReq{ID: 1, Price: decimal.NewFromInt(1), Name: "Other"})
	require.ErrorIs(t, err, domain.ErrConflict)

	c, err := f.svc.GetCreative(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "Summer sale", c.Name)
	require.Equal(t, "ad.near", c.Owner)

	sp, err := f.svc.GetAdSpot(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "pub.near", sp.Owner)
	require.True(t, sp.Price.Equal(spotPrice))
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	ctx := context.Background()

	_, err := f.svc.RegisterCreative(ctx, domain.Caller{Contract: platformAccount}, port.CreativeReq{ID: 1, Name: "a", Content: "b"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.RegisterCreative(ctx, advertiser, port.CreativeReq{ID: -1, Name: "a", Content: "b"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.RegisterAdSpot(ctx, publisher, port.AdSpotReq{ID: 1, Price: decimal.Zero, Name: "a"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	all, err := f.svc.ListCreatives(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestAutoIDPolicy(t *testing.T) {
	f := newFixture(t, domain.IDPolicyAuto)
	ctx := context.Background()

	first, err := f.svc.RegisterCreative(ctx, advertiser, port.CreativeReq{Name: "a", Content: "b"})
	require.NoError(t, err)
	second, err := f.svc.RegisterCreative(ctx, advertiser, port.CreativeReq{Name: "c", Content: "d"})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.ID)
	require.Equal(t, int64(2), second.ID)

	_, err = f.svc.RegisterCreative(ctx, advertiser, port.CreativeReq{ID: 9, Name: "e", Content: "f"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	spot, err := f.svc.RegisterAdSpot(ctx, publisher, port.AdSpotReq{Price: decimal.NewFromInt(5), Name: "slot"})
	require.NoError(t, err)
	require.Equal(t, int64(1), spot.ID)

	a, err := f.svc.FormAgreement(ctx, advertiser, domain.Booking{SpotID: 1, CreativeID: 1, StartTime: 1_000, EndTime: 2_000}, spotPrice)
	require.NoError(t, err)
	require.Equal(t, int64(1), a.ID)
}

func TestFormAgreementHappyPath(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	f.seed(t)
	ctx := context.Background()

	a, err := f.svc.FormAgreement(ctx, advertiser, booking(1), spotPrice)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSigned, a.Status)
	require.False(t, a.Settled)
	require.Equal(t, "ad.near", a.Advertiser)
	require.Equal(t, "pub.near", a.Publisher)
	require.Equal(t, platformAccount, a.Platform)
	require.Equal(t, "Homepage banner", a.SpotName)
	require.True(t, a.PlatformFee.Equal(decimal.RequireFromString("500000000000000000000000")))
	require.True(t, a.PlatformFee.Add(a.PublisherPayout()).Equal(a.AdvertiserCost))

	stored, err := f.svc.GetAgreement(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(a, stored))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.AgreementsFormed))
}

func TestFormAgreementRejections(t *testing.T) {
	short := spotPrice.Sub(decimal.NewFromInt(1))
	huge := decimal.New(1, 89)

	tests := []struct {
		name    string
		caller  domain.Caller
		booking domain.Booking
		deposit decimal.Decimal
		wantErr error
	}{
		{"zero id", advertiser, domain.Booking{ID: 0, SpotID: 1, CreativeID: 1, StartTime: 1_000, EndTime: 2_000}, spotPrice, domain.ErrInvalidInput},
		{"start in the past", advertiser, domain.Booking{ID: 2, SpotID: 1, CreativeID: 1, StartTime: 999, EndTime: 2_000}, spotPrice, domain.ErrInvalidInput},
		{"end before start", advertiser, domain.Booking{ID: 2, SpotID: 1, CreativeID: 1, StartTime: 1_500, EndTime: 1_200}, spotPrice, domain.ErrInvalidInput},
		{"unknown creative checked before deposit", advertiser, domain.Booking{ID: 2, SpotID: 1, CreativeID: 7, StartTime: 1_000, EndTime: 2_000}, short, domain.ErrCreativeNotFound},
		{"unknown spot", advertiser, domain.Booking{ID: 2, SpotID: 7, CreativeID: 1, StartTime: 1_000, EndTime: 2_000}, spotPrice, domain.ErrAdSpotNotFound},
		{"insufficient deposit checked before owner", publisher, booking(2), short, domain.ErrInsufficientDeposit},
		{"wrong advertiser", publisher, booking(2), spotPrice, domain.ErrUnauthorizedCreativeUse},
		{"duplicate id", advertiser, booking(1), spotPrice, domain.ErrConflict},
		{"deposit above the maximum amount", advertiser, booking(2), huge, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, domain.IDPolicyCaller)
			f.seed(t)
			_, err := f.svc.FormAgreement(context.Background(), advertiser, booking(1), spotPrice)
			require.NoError(t, err)
			before := f.agreementCount(t)

			_, err = f.svc.FormAgreement(context.Background(), tt.caller, tt.booking, tt.deposit)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, before, f.agreementCount(t))
		})
	}
}

func TestFormAgreementInsufficientDepositDetails(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	f.seed(t)

	_, err := f.svc.FormAgreement(context.Background(), advertiser, booking(1), decimal.NewFromInt(1))
	var depErr *domain.InsufficientDepositError
	require.ErrorAs(t, err, &depErr)
	require.True(t, depErr.Attached.Equal(decimal.NewFromInt(1)))
	require.True(t, depErr.Required.Equal(spotPrice))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.AgreementsRejected.WithLabelValues("insufficient_deposit")))
}

func TestFormAgreementSnapshotsSpot(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	ctx := context.Background()
	earn := int64(70)
	kind := "banner"
	_, err := f.svc.RegisterCreative(ctx, advertiser, port.CreativeReq{ID: 1, Name: "c", Content: "x"})
	require.NoError(t, err)
	_, err = f.svc.RegisterAdSpot(ctx, publisher, port.AdSpotReq{ID: 1, Price: decimal.NewFromInt(5), Name: "s", PublisherEarn: &earn, ShowKind: &kind})
	require.NoError(t, err)

	a, err := f.svc.FormAgreement(ctx, advertiser, booking(1), spotPrice)
	require.NoError(t, err)
	earn, kind = 0, "changed"
	require.Equal(t, int64(70), *a.PublisherEarn)
	require.Equal(t, "banner", *a.ShowKind)
}

func TestConcurrentFormAgreementSameID(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	f.seed(t)

	var (
		wg      sync.WaitGroup
		success atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.FormAgreement(context.Background(), advertiser, booking(5), spotPrice); err == nil {
				success.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), success.Load())
	require.Equal(t, 1, f.agreementCount(t))
}
