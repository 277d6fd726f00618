package lending

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualTermsOracleResolvesByPair(t *testing.T) {
	oracle := NewManualTermsOracle()
	account := makeAddress(0x20)
	oracle.Set(account, "rwa-pool-1", Terms{Approved: true, MaxLTVBps: 6_000, RateBps: 500, Expiry: 100})

	// Asset lookup is case-insensitive.
	terms, err := oracle.Terms(account, "RWA-POOL-1")
	require.NoError(t, err)
	require.True(t, terms.Approved)
	require.Equal(t, uint64(6_000), terms.MaxLTVBps)

	other, err := oracle.Terms(makeAddress(0x21), "RWA-POOL-1")
	require.NoError(t, err)
	require.False(t, other.Approved)
}

func TestTermsApprovalExpiresExclusively(t *testing.T) {
	terms := Terms{Approved: true, Expiry: 100}
	require.True(t, terms.CurrentlyApproved(99))
	require.False(t, terms.CurrentlyApproved(100))
	require.False(t, Terms{Approved: false, Expiry: 200}.CurrentlyApproved(99))
}

func TestManualValuationOracleFreshnessWindow(t *testing.T) {
	now := int64(1_700_000_000)
	oracle := NewManualValuationOracle(5 * time.Minute)
	oracle.SetNowFunc(func() int64 { return now })

	require.False(t, oracle.IsFresh("RWA-POOL-1"))

	oracle.Set("RWA-POOL-1", big.NewInt(42), now)
	require.True(t, oracle.IsFresh("RWA-POOL-1"))

	now += 301
	require.False(t, oracle.IsFresh("RWA-POOL-1"))
}

func TestManualValuationOracleHashesReportPayload(t *testing.T) {
	oracle := NewManualValuationOracle(0)
	oracle.Set("RWA-POOL-1", big.NewInt(42), 1_700_000_000)

	first, err := oracle.NAVData("RWA-POOL-1")
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, first.SourceHash)

	oracle.Set("RWA-POOL-1", big.NewInt(43), 1_700_000_000)
	second, err := oracle.NAVData("RWA-POOL-1")
	require.NoError(t, err)
	require.NotEqual(t, first.SourceHash, second.SourceHash)
}

func TestManualCashflowSourceOutage(t *testing.T) {
	source := NewManualCashflowSource()
	source.Set("RWA-POOL-1", CashflowLate)

	status, err := source.Health("RWA-POOL-1")
	require.NoError(t, err)
	require.Equal(t, CashflowLate, status)

	source.SetFailing(true)
	_, err = source.Health("RWA-POOL-1")
	require.Error(t, err)

	_, err = source.Health("UNKNOWN")
	require.Error(t, err)
}
