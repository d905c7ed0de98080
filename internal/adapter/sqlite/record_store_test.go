package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"meta-ads/internal/adapter/storetest"
	"meta-ads/internal/config/configs"
	"meta-ads/internal/core/domain"
	"meta-ads/internal/core/port"
	"meta-ads/internal/db"
)

func openStore(t *testing.T, path string) *RecordStore {
	t.Helper()
	handle, err := db.NewSQLite(context.Background(), configs.SQLite{Path: path, MaxOpenConns: 4})
	require.NoError(t, err)
	return NewRecordStore(handle)
}

func TestRecordStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) port.RecordStore {
		return openStore(t, filepath.Join(t.TempDir(), "escrow.db"))
	})
}

func TestStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "escrow.db")

	s := openStore(t, path)
	require.NoError(t, s.Initialize(ctx, domain.ContractState{Platform: "metaads.near", InitializedAt: 1}))
	_, err := s.InsertCreative(ctx, domain.Creative{Name: "c", Content: "x", Owner: "ad.near"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// reopening applies migrations again, which must be a no-op
	s = openStore(t, path)
	defer s.Close()

	st, err := s.ContractState(ctx)
	require.NoError(t, err)
	require.Equal(t, "metaads.near", st.Platform)

	c, err := s.InsertCreative(ctx, domain.Creative{Name: "d", Content: "y", Owner: "ad.near"})
	require.NoError(t, err)
	require.Equal(t, int64(2), c.ID)
}
