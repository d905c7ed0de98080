package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/core/port/mocks"
)

func TestSettleHappyPath(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	f.seed(t)
	ctx := context.Background()
	a, err := f.svc.FormAgreement(ctx, advertiser, booking(1), spotPrice)
	require.NoError(t, err)

	var logs bytes.Buffer
	f.svc.logger = slog.New(slog.NewTextHandler(&logs, nil))

	f.clock.Set(time.Unix(2_000, 0))
	ok, err := f.svc.Settle(ctx, platform, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(1), f.settled.Load())
	require.Contains(t, logs.String(), "payout enqueued")
	require.NotContains(t, logs.String(), "publisher received funds")

	got, err := f.svc.GetAgreement(ctx, 1)
	require.NoError(t, err)
	require.True(t, got.Settled)
	require.Equal(t, domain.StatusSuccess, got.Status)

	tr, err := f.store.GetTransfer(ctx, domain.TransferKey(1))
	require.NoError(t, err)
	require.Equal(t, "pub.near", tr.Recipient)
	require.Equal(t, domain.TransferPending, tr.Status)
	require.True(t, tr.Amount.Equal(decimal.RequireFromString("4500000000000000000000000")))
	require.True(t, tr.Amount.Add(a.PlatformFee).Equal(a.AdvertiserCost))
}

func TestSettleRejections(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	f.seed(t)
	ctx := context.Background()
	_, err := f.svc.FormAgreement(ctx, advertiser, booking(1), spotPrice)
	require.NoError(t, err)

	t.Run("window not elapsed", func(t *testing.T) {
		f.clock.Set(time.Unix(1_999, 0))
		_, err := f.svc.Settle(ctx, platform, 1)
		require.ErrorIs(t, err, domain.ErrWindowNotElapsed)
	})
	t.Run("advertiser may not settle", func(t *testing.T) {
		f.clock.Set(time.Unix(3_000, 0))
		_, err := f.svc.Settle(ctx, advertiser, 1)
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})
	t.Run("non positive id", func(t *testing.T) {
		_, err := f.svc.Settle(ctx, platform, 0)
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})
	t.Run("unknown id", func(t *testing.T) {
		ok, err := f.svc.Settle(ctx, platform, 42)
		require.NoError(t, err)
		require.False(t, ok)
	})

	got, err := f.svc.GetAgreement(ctx, 1)
	require.NoError(t, err)
	require.False(t, got.Settled)
	pending, err := f.store.PendingTransfers(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, pending)
	require.Equal(t, int32(0), f.settled.Load())
}

func TestSettleTrustedTrigger(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	f.seed(t)
	ctx := context.Background()
	_, err := f.svc.FormAgreement(ctx, advertiser, booking(1), spotPrice)
	require.NoError(t, err)
	f.clock.Set(time.Unix(2_500, 0))

	operator := domain.Caller{Principal: "ops.near", Contract: platformAccount, Trusted: true}
	ok, err := f.svc.Settle(ctx, operator, 1)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSettleTwicePaysOnce(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	f.seed(t)
	ctx := context.Background()
	_, err := f.svc.FormAgreement(ctx, advertiser, booking(1), spotPrice)
	require.NoError(t, err)
	f.clock.Set(time.Unix(2_000, 0))

	ok, err := f.svc.Settle(ctx, platform, 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Settle(ctx, platform, 1)
	require.ErrorIs(t, err, domain.ErrAlreadySettled)

	pending, err := f.store.PendingTransfers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Settlements.WithLabelValues("ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Settlements.WithLabelValues("rejected")))
}

func TestConcurrentSettle(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	f.seed(t)
	ctx := context.Background()
	_, err := f.svc.FormAgreement(ctx, advertiser, booking(1), spotPrice)
	require.NoError(t, err)
	f.clock.Set(time.Unix(2_000, 0))

	var (
		wg      sync.WaitGroup
		success atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.svc.Settle(ctx, platform, 1)
			if err == nil && ok {
				success.Add(1)
				return
			}
			if err != nil && !errors.Is(err, domain.ErrAlreadySettled) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), success.Load())

	pending, err := f.store.PendingTransfers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestDispatcherDeliversAndRetries(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	f.seed(t)
	ctx := context.Background()
	_, err := f.svc.FormAgreement(ctx, advertiser, booking(1), spotPrice)
	require.NoError(t, err)
	f.clock.Set(time.Unix(2_000, 0))
	_, err = f.svc.Settle(ctx, platform, 1)
	require.NoError(t, err)

	ledger := mocks.NewMockLedger(t)
	isPayout := mock.MatchedBy(func(tr domain.Transfer) bool {
		return tr.Key == "agreement-1" && tr.Recipient == "pub.near" &&
			tr.Amount.Equal(decimal.RequireFromString("4500000000000000000000000"))
	})
	ledger.EXPECT().Transfer(mock.Anything, isPayout).Return(errors.New("ledger unavailable")).Once()
	ledger.EXPECT().Transfer(mock.Anything, isPayout).Return(nil).Once()

	var logs bytes.Buffer
	d := NewDispatcher(slog.New(slog.NewTextHandler(&logs, nil)), f.store, ledger, f.clock, f.metrics, time.Second, 10)

	sent, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, sent)
	require.NotContains(t, logs.String(), "publisher received funds")
	tr, err := f.store.GetTransfer(ctx, "agreement-1")
	require.NoError(t, err)
	require.Equal(t, domain.TransferPending, tr.Status)
	require.Equal(t, 1, tr.Attempts)

	f.clock.Add(time.Minute)
	sent, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sent)
	tr, err = f.store.GetTransfer(ctx, "agreement-1")
	require.NoError(t, err)
	require.Equal(t, domain.TransferSent, tr.Status)
	require.Equal(t, int64(2_060), *tr.SentAt)
	require.Equal(t, 1, strings.Count(logs.String(), "publisher received funds"))

	// nothing left to deliver; the mock fails on any extra call
	sent, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, sent)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.TransfersDispatch.WithLabelValues("failed")))
}

func TestDispatcherRunWakesOnNotify(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	f.seed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	delivered := make(chan domain.Transfer, 1)
	ledger := mocks.NewMockLedger(t)
	ledger.EXPECT().Transfer(mock.Anything, mock.Anything).
		Run(func(_ context.Context, tr domain.Transfer) { delivered <- tr }).
		Return(nil).Once()

	// hour-long ticks: only Notify can trigger the second pass
	d := NewDispatcher(discardLogger(), f.store, ledger, f.clock, f.metrics, time.Hour, 10)
	f.svc.onSettled = d.Notify

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	_, err := f.svc.FormAgreement(ctx, advertiser, booking(1), spotPrice)
	require.NoError(t, err)
	f.clock.Set(time.Unix(2_000, 0))
	_, err = f.svc.Settle(ctx, platform, 1)
	require.NoError(t, err)

	select {
	case tr := <-delivered:
		require.Equal(t, "agreement-1", tr.Key)
	case <-time.After(5 * time.Second):
		t.Fatal("transfer was not dispatched")
	}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestSchedulerSettlesDueAgreements(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	f.seed(t)
	ctx := context.Background()
	_, err := f.svc.FormAgreement(ctx, advertiser, booking(1), spotPrice)
	require.NoError(t, err)
	_, err = f.svc.FormAgreement(ctx, advertiser, domain.Booking{ID: 2, SpotID: 1, CreativeID: 1, StartTime: 1_000, EndTime: 5_000}, spotPrice)
	require.NoError(t, err)

	s := NewScheduler(discardLogger(), f.svc, f.store, f.clock, platformAccount, time.Minute)
	f.clock.Set(time.Unix(2_000, 0))

	n, err := s.SettleDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = s.SettleDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	first, err := f.svc.GetAgreement(ctx, 1)
	require.NoError(t, err)
	require.True(t, first.Settled)
	second, err := f.svc.GetAgreement(ctx, 2)
	require.NoError(t, err)
	require.False(t, second.Settled)
}

func TestSchedulerSettlesAcrossBatches(t *testing.T) {
	f := newFixture(t, domain.IDPolicyCaller)
	f.seed(t)
	ctx := context.Background()
	for id := int64(1); id <= 5; id++ {
		b := booking(id)
		b.EndTime = 1_500 + id
		_, err := f.svc.FormAgreement(ctx, advertiser, b, spotPrice)
		require.NoError(t, err)
	}
	// already settled by hand before the scheduler runs
	f.clock.Set(time.Unix(1_600, 0))
	_, err := f.svc.Settle(ctx, platform, 2)
	require.NoError(t, err)

	s := NewScheduler(discardLogger(), f.svc, f.store, f.clock, platformAccount, time.Minute)
	s.batchSize = 2

	n, err := s.SettleDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	due, err := f.store.DueAgreements(ctx, 1_600, 0)
	require.NoError(t, err)
	require.Empty(t, due)

	pending, err := f.store.PendingTransfers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 5)
}
