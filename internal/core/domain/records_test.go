package domain

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewCreativeValidation(t *testing.T) {
	long := strings.Repeat("x", MaxNameLength+1)
	tests := []struct {
		name    string
		id      int64
		cName   string
		content string
		msg     string
	}{
		{"zero id", 0, "n", "c", "creative id must be positive"},
		{"empty name", 1, "", "c", "name is empty"},
		{"long name", 1, long, "c", "name is longer than 100 characters"},
		{"empty content", 1, "n", "", "content is empty"},
		// id is checked before name
		{"order", -1, "", "", "creative id must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCreative(IDPolicyCaller, tt.id, tt.cName, tt.content, nil, "ad.near")
			require.ErrorIs(t, err, ErrInvalidInput)
			require.Contains(t, err.Error(), tt.msg)
		})
	}

	// multi-byte names are measured in characters
	cr, err := NewCreative(IDPolicyCaller, 1, strings.Repeat("ж", MaxNameLength), "c", ptr("cid"), "ad.near")
	require.NoError(t, err)
	require.Equal(t, "ad.near", cr.Owner)
	require.Equal(t, "cid", *cr.NFTReference)
}

func TestNewAdSpotScalesPrice(t *testing.T) {
	spot, err := NewAdSpot(IDPolicyCaller, 3, decimal.NewFromInt(5), DefaultUnitScale, "Footer", nil, nil, "pub.near")
	require.NoError(t, err)
	require.Equal(t, "5000000000000000000000000", spot.Price.String())

	spot, err = NewAdSpot(IDPolicyCaller, 3, decimal.RequireFromString("0.25"), decimal.NewFromInt(100), "Footer", nil, nil, "pub.near")
	require.NoError(t, err)
	require.True(t, spot.Price.Equal(decimal.NewFromInt(25)))
}

func TestNewAdSpotValidation(t *testing.T) {
	scale := decimal.NewFromInt(100)
	_, err := NewAdSpot(IDPolicyCaller, 0, decimal.NewFromInt(1), scale, "n", nil, nil, "p")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewAdSpot(IDPolicyCaller, 1, decimal.Zero, scale, "n", nil, nil, "p")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewAdSpot(IDPolicyCaller, 1, decimal.NewFromInt(1), scale, "", nil, nil, "p")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewAdSpot(IDPolicyCaller, 1, decimal.RequireFromString("0.001"), scale, "n", nil, nil, "p")
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Contains(t, err.Error(), "finer than the smallest unit")

	tests := []struct {
		name    string
		price   decimal.Decimal
		wantErr bool
	}{
		{"far above the bound", decimal.New(1, 60), true},
		{"one unit above the bound", MaxAmount.Add(decimal.NewFromInt(1)), true},
		{"at the bound", MaxAmount, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spot, err := NewAdSpot(IDPolicyCaller, 1, tt.price, decimal.NewFromInt(1), "n", nil, nil, "p")
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidInput)
				require.Contains(t, err.Error(), "exceeds the maximum amount")
				return
			}
			require.NoError(t, err)
			require.True(t, spot.Price.Equal(MaxAmount))
		})
	}

	// 1e15 whole units at the default scale is 1e39 smallest units
	_, err = NewAdSpot(IDPolicyCaller, 1, decimal.New(1, 15), DefaultUnitScale, "n", nil, nil, "p")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("5000000000000000000000000")
	require.NoError(t, err)
	require.True(t, d.Equal(decimal.New(5, 24)))

	d, err = ParseAmount(MaxAmount.String())
	require.NoError(t, err)
	require.True(t, d.Equal(MaxAmount))

	for _, bad := range []string{
		"",
		"abc",
		"-1",
		"1.5",
		"340282366920938463463374607431768211456",
		strings.Repeat("9", 90),
	} {
		_, err = ParseAmount(bad)
		require.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

func TestCallerMaySettle(t *testing.T) {
	require.True(t, Caller{Principal: "metaads.near", Contract: "metaads.near"}.MaySettle())
	require.True(t, Caller{Principal: "ops.near", Contract: "metaads.near", Trusted: true}.MaySettle())
	require.False(t, Caller{Principal: "ad.near", Contract: "metaads.near"}.MaySettle())
	require.False(t, Caller{Contract: "metaads.near", Trusted: true}.MaySettle())
}

func TestParseIDPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    IDPolicy
		wantErr bool
	}{
		{" AUTO ", IDPolicyAuto, false},
		{"caller", IDPolicyCaller, false},
		{"", IDPolicyCaller, false},
		{"atuo", "", true},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		got, err := ParseIDPolicy(tt.in)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrInvalidInput, tt.in)
			require.Contains(t, err.Error(), "unknown id policy")
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}
