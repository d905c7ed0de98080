// Package storetest is a behavioural suite every port.RecordStore
// implementation must pass. Each backend calls Run from its own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/core/port"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) port.RecordStore

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s port.RecordStore)
	}{
		{"ContractState", testContractState},
		{"CreativeRoundTrip", testCreativeRoundTrip},
		{"AdSpotRoundTrip", testAdSpotRoundTrip},
		{"AgreementRoundTrip", testAgreementRoundTrip},
		{"ConflictKeepsOriginal", testConflictKeepsOriginal},
		{"AutoIDs", testAutoIDs},
		{"ConcurrentInsert", testConcurrentInsert},
		{"Settlement", testSettlement},
		{"ConcurrentSettlement", testConcurrentSettlement},
		{"DueAgreements", testDueAgreements},
		{"TransferOutbox", testTransferOutbox},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

// decimalEqual lets cmp compare decimals by value.
var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func ptr[T any](v T) *T { return &v }

func agreement(id int64, endTime int64) domain.Agreement {
	return domain.Agreement{
		ID:             id,
		SpotID:         1,
		CreativeID:     1,
		AdvertiserCost: decimal.RequireFromString("5000000000000000000000007"),
		StartTime:      100,
		EndTime:        endTime,
		Advertiser:     "ad.near",
		Publisher:      "pub.near",
		SpotName:       "Homepage banner",
		PublisherEarn:  ptr(int64(70)),
		ShowKind:       ptr("banner"),
		Platform:       "metaads.near",
		PlatformFee:    decimal.RequireFromString("500000000000000000000000"),
		Status:         domain.StatusSigned,
	}
}

func testContractState(t *testing.T, s port.RecordStore) {
	ctx := context.Background()

	_, err := s.ContractState(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Initialize(ctx, domain.ContractState{Platform: "metaads.near", InitializedAt: 10}))
	require.ErrorIs(t, s.Initialize(ctx, domain.ContractState{Platform: "other.near", InitializedAt: 11}), domain.ErrAlreadyInitialized)

	st, err := s.ContractState(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ContractState{Platform: "metaads.near", InitializedAt: 10}, st)
}

func testCreativeRoundTrip(t *testing.T, s port.RecordStore) {
	ctx := context.Background()
	in := []domain.Creative{
		{ID: 1, Name: "Summer sale", Content: "ipfs://a", NFTReference: ptr("nft.near:1"), Owner: "ad.near"},
		{ID: 2, Name: "Приветствие", Content: "<img>", Owner: "ad2.near"},
	}
	for _, c := range in {
		out, err := s.InsertCreative(ctx, c)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(c, out))
	}

	got, err := s.GetCreative(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(in[0], got))

	all, err := s.ListCreatives(ctx)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(map[int64]domain.Creative{1: in[0], 2: in[1]}, all))

	_, err = s.GetCreative(ctx, 3)
	require.ErrorIs(t, err, domain.ErrCreativeNotFound)
}

func testAdSpotRoundTrip(t *testing.T, s port.RecordStore) {
	ctx := context.Background()
	in := domain.AdSpot{
		ID:            4,
		Owner:         "pub.near",
		Price:         decimal.RequireFromString("123456789012345678901234567890"),
		Name:          "Sidebar",
		PublisherEarn: ptr(int64(55)),
		ShowKind:      ptr("native"),
	}
	_, err := s.InsertAdSpot(ctx, in)
	require.NoError(t, err)

	got, err := s.GetAdSpot(ctx, 4)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(in, got, decimalEqual))
	require.Equal(t, "123456789012345678901234567890", got.Price.String())

	all, err := s.ListAdSpots(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = s.GetAdSpot(ctx, 5)
	require.ErrorIs(t, err, domain.ErrAdSpotNotFound)
}

func testAgreementRoundTrip(t *testing.T, s port.RecordStore) {
	ctx := context.Background()
	in := agreement(1, 200)
	plain := agreement(2, 300)
	plain.PublisherEarn, plain.ShowKind = nil, nil

	for _, a := range []domain.Agreement{in, plain} {
		_, err := s.InsertAgreement(ctx, a)
		require.NoError(t, err)
	}

	got, err := s.GetAgreement(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(in, got, decimalEqual))

	all, err := s.ListAgreements(ctx)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(map[int64]domain.Agreement{1: in, 2: plain}, all, decimalEqual))

	_, err = s.GetAgreement(ctx, 9)
	require.ErrorIs(t, err, domain.ErrAgreementNotFound)
}

func testConflictKeepsOriginal(t *testing.T, s port.RecordStore) {
	ctx := context.Background()
	orig := domain.Creative{ID: 1, Name: "first", Content: "a", Owner: "ad.near"}
	_, err := s.InsertCreative(ctx, orig)
	require.NoError(t, err)

	_, err = s.InsertCreative(ctx, domain.Creative{ID: 1, Name: "second", Content: "b", Owner: "evil.near"})
	require.ErrorIs(t, err, domain.ErrConflict)

	got, err := s.GetCreative(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(orig, got))

	_, err = s.InsertAgreement(ctx, agreement(1, 200))
	require.NoError(t, err)
	_, err = s.InsertAgreement(ctx, agreement(1, 900))
	require.ErrorIs(t, err, domain.ErrConflict)
	a, err := s.GetAgreement(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(200), a.EndTime)
}

func testAutoIDs(t *testing.T, s port.RecordStore) {
	ctx := context.Background()
	spot := func(id int64) domain.AdSpot {
		return domain.AdSpot{ID: id, Owner: "pub.near", Price: decimal.NewFromInt(1), Name: "s"}
	}

	first, err := s.InsertAdSpot(ctx, spot(0))
	require.NoError(t, err)
	require.Equal(t, int64(1), first.ID)

	_, err = s.InsertAdSpot(ctx, spot(10))
	require.NoError(t, err)

	next, err := s.InsertAdSpot(ctx, spot(0))
	require.NoError(t, err)
	require.Equal(t, int64(11), next.ID)

	// a conflicting insert does not consume an id
	_, err = s.InsertAdSpot(ctx, spot(11))
	require.ErrorIs(t, err, domain.ErrConflict)
	last, err := s.InsertAdSpot(ctx, spot(0))
	require.NoError(t, err)
	require.Equal(t, int64(12), last.ID)

	// counters are per kind
	c, err := s.InsertCreative(ctx, domain.Creative{Name: "c", Content: "x", Owner: "ad.near"})
	require.NoError(t, err)
	require.Equal(t, int64(1), c.ID)
}

func testConcurrentInsert(t *testing.T, s port.RecordStore) {
	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		success atomic.Int32
		other   atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.InsertAgreement(ctx, agreement(7, 200))
			switch {
			case err == nil:
				success.Add(1)
			case !errors.Is(err, domain.ErrConflict):
				other.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), success.Load())
	require.Zero(t, other.Load())
}

func testSettlement(t *testing.T, s port.RecordStore) {
	ctx := context.Background()
	a, err := s.InsertAgreement(ctx, agreement(3, 200))
	require.NoError(t, err)

	settled, tr, err := a.Settle(250)
	require.NoError(t, err)
	require.NoError(t, s.CommitSettlement(ctx, settled, tr))
	require.ErrorIs(t, s.CommitSettlement(ctx, settled, tr), domain.ErrAlreadySettled)

	got, err := s.GetAgreement(ctx, 3)
	require.NoError(t, err)
	require.True(t, got.Settled)
	require.Equal(t, domain.StatusSuccess, got.Status)

	stored, err := s.GetTransfer(ctx, tr.Key)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(tr, stored, decimalEqual))
	require.Equal(t, "4500000000000000000000007", stored.Amount.String())

	missing := agreement(404, 200)
	missing.Settled = true
	err = s.CommitSettlement(ctx, missing, domain.Transfer{Key: domain.TransferKey(404), AgreementID: 404, Amount: decimal.NewFromInt(1), Status: domain.TransferPending})
	require.ErrorIs(t, err, domain.ErrAgreementNotFound)
}

func testConcurrentSettlement(t *testing.T, s port.RecordStore) {
	ctx := context.Background()
	a, err := s.InsertAgreement(ctx, agreement(5, 200))
	require.NoError(t, err)
	settled, tr, err := a.Settle(300)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		success atomic.Int32
		other   atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CommitSettlement(ctx, settled, tr)
			switch {
			case err == nil:
				success.Add(1)
			case !errors.Is(err, domain.ErrAlreadySettled):
				other.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), success.Load())
	require.Zero(t, other.Load())

	pending, err := s.PendingTransfers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func testDueAgreements(t *testing.T, s port.RecordStore) {
	ctx := context.Background()
	for _, a := range []domain.Agreement{agreement(1, 300), agreement(2, 200), agreement(3, 200), agreement(4, 900)} {
		_, err := s.InsertAgreement(ctx, a)
		require.NoError(t, err)
	}
	a, err := s.GetAgreement(ctx, 2)
	require.NoError(t, err)
	settled, tr, err := a.Settle(250)
	require.NoError(t, err)
	require.NoError(t, s.CommitSettlement(ctx, settled, tr))

	ids := func(list []domain.Agreement) []int64 {
		out := []int64{}
		for _, a := range list {
			out = append(out, a.ID)
		}
		return out
	}

	due, err := s.DueAgreements(ctx, 300, 0)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 1}, ids(due))
	require.Empty(t, cmp.Diff(agreement(3, 200), due[0], decimalEqual))

	due, err = s.DueAgreements(ctx, 300, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{3}, ids(due))

	due, err = s.DueAgreements(ctx, 199, 10)
	require.NoError(t, err)
	require.Empty(t, due)
}

func testTransferOutbox(t *testing.T, s port.RecordStore) {
	ctx := context.Background()
	// settle in reverse id order with increasing times
	for i, id := range []int64{3, 2, 1} {
		a, err := s.InsertAgreement(ctx, agreement(id, 200))
		require.NoError(t, err)
		settled, tr, err := a.Settle(int64(300 + i))
		require.NoError(t, err)
		require.NoError(t, s.CommitSettlement(ctx, settled, tr))
	}

	pending, err := s.PendingTransfers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "agreement-3", pending[0].Key)
	require.Equal(t, "agreement-2", pending[1].Key)

	require.NoError(t, s.RecordTransferAttempt(ctx, "agreement-3"))
	require.NoError(t, s.RecordTransferAttempt(ctx, "agreement-3"))
	require.NoError(t, s.MarkTransferSent(ctx, "agreement-3", 400))

	sent, err := s.GetTransfer(ctx, "agreement-3")
	require.NoError(t, err)
	require.Equal(t, domain.TransferSent, sent.Status)
	require.Equal(t, 2, sent.Attempts)
	require.NotNil(t, sent.SentAt)
	require.Equal(t, int64(400), *sent.SentAt)

	pending, err = s.PendingTransfers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "agreement-2", pending[0].Key)

	require.ErrorIs(t, s.MarkTransferSent(ctx, "agreement-99", 1), domain.ErrNotFound)
	require.ErrorIs(t, s.RecordTransferAttempt(ctx, "agreement-99"), domain.ErrNotFound)
	_, err = s.GetTransfer(ctx, "agreement-99")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
