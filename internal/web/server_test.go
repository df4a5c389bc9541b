package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/msv/internal/types"
)

// stubVault serves a fixed snapshot.
type stubVault struct {
	snapshot types.VaultSnapshot
}

func (s *stubVault) Snapshot() types.VaultSnapshot {
	return s.snapshot
}

func testSnapshot() types.VaultSnapshot {
	return types.VaultSnapshot{
		Timestamp:         time.Unix(1_700_000_000, 0).UTC(),
		Asset:             "uusdc",
		TotalSupply:       sdkmath.NewInt(1_000),
		TotalAssets:       sdkmath.NewInt(1_100),
		IdleAssets:        sdkmath.NewInt(200),
		TotalAllocated:    sdkmath.NewInt(900),
		TotalAllocBPS:     9_000,
		LockedProfit:      sdkmath.ZeroInt(),
		PricePerFullShare: "1.100000000000000000",
		WithdrawalQueue:   []string{"strat-a"},
		Strategies: []types.StrategySnapshot{{
			Address:   "strat-a",
			AllocBPS:  9_000,
			Allocated: sdkmath.NewInt(900),
			Gains:     sdkmath.NewInt(100),
			Losses:    sdkmath.ZeroInt(),
		}},
	}
}

func serve(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	ws := NewWebServer("8080", &stubVault{snapshot: testSnapshot()})
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, req)
	return rec
}

func TestVaultStateEndpoint(t *testing.T) {
	rec := serve(t, "/api/vault/state")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap types.VaultSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, "uusdc", snap.Asset)
	require.Equal(t, sdkmath.NewInt(1_100), snap.TotalAssets)
	require.Equal(t, []string{"strat-a"}, snap.WithdrawalQueue)
}

func TestStrategiesEndpoint(t *testing.T) {
	rec := serve(t, "/api/strategies")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "900", body["total_allocated"])
	require.Len(t, body["strategies"], 1)
}

func TestHealthDegradedWithoutDatabase(t *testing.T) {
	rec := serve(t, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "DEGRADED", body["status"])
}

func TestReportsEndpointFailsWithoutDatabase(t *testing.T) {
	rec := serve(t, "/api/reports")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	ws := NewWebServer("8080", &stubVault{snapshot: testSnapshot()})
	req := httptest.NewRequest(http.MethodOptions, "/api/vault/state", nil)
	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
