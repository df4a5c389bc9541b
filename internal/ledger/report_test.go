package ledger

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestReportCreditsUpToTargetAllocation(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_500)
	f.deposit("alice", 1_000)
	f.addStrategy("strat-a", 9_000, 0)

	debt := f.harvest("strat-a")
	require.True(t, debt.IsZero())

	params, err := f.vault.StrategyParams("strat-a")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(900), params.Allocated)
	require.Equal(t, sdkmath.NewInt(900), f.bank.BalanceOf(testAsset, "strat-a"))
	require.Equal(t, sdkmath.NewInt(100), f.bank.BalanceOf(testAsset, vaultAddr))

	// More deposits raise the target; the next report tops the strategy up.
	f.deposit("alice", 500)
	f.harvest("strat-a")

	params, err = f.vault.StrategyParams("strat-a")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(1_350), params.Allocated)
	require.Equal(t, sdkmath.NewInt(150), f.bank.BalanceOf(testAsset, vaultAddr))
}

func TestReportCreditLimitedByIdleLiquidity(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)
	f.addStrategy("strat-a", 5_000, 0)
	f.addStrategy("strat-b", 5_000, 0)
	f.harvest("strat-a")

	// Drain most idle funds before strat-b reports.
	_, err := f.vault.Withdraw("alice", "alice", "alice", sdkmath.NewInt(400))
	require.NoError(t, err)

	f.harvest("strat-b")
	params, err := f.vault.StrategyParams("strat-b")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), params.Allocated, "credit capped by on-hand liquidity")
}

func TestReportLossShrinksAllocationProportionally(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)
	f.addStrategy("strat-a", 5_000, 0)
	f.addStrategy("strat-b", 3_000, 0)
	f.harvest("strat-a")
	f.harvest("strat-b")
	// 500 and 300 allocated, 8000 bps aggregate.

	debt, err := f.vault.Report("strat-a", sdkmath.NewInt(-100), sdkmath.ZeroInt())
	require.NoError(t, err)

	a, err := f.vault.StrategyParams("strat-a")
	require.NoError(t, err)
	// Cut = loss * totalAllocBPS / totalAllocated = 100 * 8000 / 800.
	require.Equal(t, uint64(4_000), a.AllocBPS)
	require.Equal(t, sdkmath.NewInt(100), a.Losses)
	require.Equal(t, sdkmath.NewInt(400), a.Allocated)

	b, err := f.vault.StrategyParams("strat-b")
	require.NoError(t, err)
	require.Equal(t, uint64(3_000), b.AllocBPS, "other strategies keep their target")

	// The loss lowered total assets, so the shrunk target now sits below the
	// remaining allocation and the difference is owed back.
	require.Equal(t, sdkmath.NewInt(40), debt)
}

func TestReportFullLossZeroesTarget(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)
	f.addStrategy("strat-a", 1_000, 0)
	f.addStrategy("strat-b", 7_000, 0)
	f.harvest("strat-a")
	f.harvest("strat-b")
	// 100 and 700 allocated, 8000 bps aggregate.

	// Losing the entire allocation cuts the target to exactly zero; the cut
	// never exceeds the strategy's own target.
	_, err := f.vault.Report("strat-a", sdkmath.NewInt(-100), sdkmath.ZeroInt())
	require.NoError(t, err)

	a, err := f.vault.StrategyParams("strat-a")
	require.NoError(t, err)
	require.Equal(t, uint64(0), a.AllocBPS)
	require.True(t, a.Allocated.IsZero())

	b, err := f.vault.StrategyParams("strat-b")
	require.NoError(t, err)
	require.Equal(t, uint64(7_000), b.AllocBPS)
}

func TestReportLossExceedingAllocationRejected(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)
	f.addStrategy("strat-a", 5_000, 0)
	f.harvest("strat-a")

	_, err := f.vault.Report("strat-a", sdkmath.NewInt(-501), sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrLossTooHigh)

	params, err := f.vault.StrategyParams("strat-a")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(500), params.Allocated, "rejected report left no trace")
	require.Equal(t, uint64(5_000), params.AllocBPS)
}

func TestReportRepaysDebtAfterTargetCut(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)
	f.addStrategy("strat-a", 9_000, 0)
	f.harvest("strat-a") // 900 allocated

	require.NoError(t, f.vault.UpdateStrategyAllocBPS(ownerAddr, "strat-a", 4_000))

	owed, err := f.vault.AvailableCapital("strat-a")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(-500), owed)

	debt, err := f.vault.Report("strat-a", sdkmath.ZeroInt(), sdkmath.NewInt(300))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(200), debt, "repayment covers part of the debt")

	params, err := f.vault.StrategyParams("strat-a")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(600), params.Allocated)
	require.Equal(t, sdkmath.NewInt(400), f.bank.BalanceOf(testAsset, vaultAddr))
}

func TestShutdownSignalsFullLiquidation(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)
	f.addStrategy("strat-a", 9_000, 0)
	f.harvest("strat-a")

	require.NoError(t, f.vault.SetEmergencyShutdown(ownerAddr, true))

	owed, err := f.vault.AvailableCapital("strat-a")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(-900), owed)

	remaining, err := f.vault.Report("strat-a", sdkmath.ZeroInt(), sdkmath.NewInt(900))
	require.NoError(t, err)
	require.True(t, remaining.IsZero(), "liquidation signal: nothing left to return")

	params, err := f.vault.StrategyParams("strat-a")
	require.NoError(t, err)
	require.True(t, params.Allocated.IsZero())
	require.Equal(t, sdkmath.NewInt(1_000), f.bank.BalanceOf(testAsset, vaultAddr))
}

func TestRevokedStrategyOwesEverything(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)
	f.addStrategy("strat-a", 9_000, 0)
	f.harvest("strat-a")

	require.NoError(t, f.vault.RevokeStrategy("strat-a", "strat-a"))

	remaining, err := f.vault.Report("strat-a", sdkmath.ZeroInt(), sdkmath.NewInt(900))
	require.NoError(t, err)
	require.True(t, remaining.IsZero())
	require.Equal(t, sdkmath.NewInt(1_000), f.bank.BalanceOf(testAsset, vaultAddr))
}

func TestReportGainLocksProfitAndDecaysLinearly(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.LockedProfitDegradation = DegradationForWindow(100 * time.Second)
	})
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)
	f.addStrategy("strat-a", 10_000, 0)
	f.harvest("strat-a") // 1000 allocated

	// The strategy earned 100 and reports it.
	f.fund("strat-a", 100)
	_, err := f.vault.Report("strat-a", sdkmath.NewInt(100), sdkmath.ZeroInt())
	require.NoError(t, err)

	// Gain arrives locked: the share price has not moved yet.
	require.Equal(t, sdkmath.NewInt(1_000), f.vault.TotalAssets())
	require.Equal(t, sdkmath.LegacyOneDec(), f.vault.GetPricePerFullShare())

	f.clock.Advance(50 * time.Second)
	require.Equal(t, sdkmath.NewInt(1_050), f.vault.TotalAssets())

	f.clock.Advance(50 * time.Second)
	require.Equal(t, sdkmath.NewInt(1_100), f.vault.TotalAssets())
	require.Equal(t, sdkmath.LegacyNewDecWithPrec(11, 1), f.vault.GetPricePerFullShare())

	// Fully unlocked profit stays unlocked.
	f.clock.Advance(time.Hour)
	require.Equal(t, sdkmath.NewInt(1_100), f.vault.TotalAssets())
}

func TestReportLossConsumesLockedProfitFirst(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.LockedProfitDegradation = DegradationForWindow(100 * time.Second)
	})
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)
	f.addStrategy("strat-a", 10_000, 0)
	f.harvest("strat-a")

	f.fund("strat-a", 100)
	_, err := f.vault.Report("strat-a", sdkmath.NewInt(100), sdkmath.ZeroInt())
	require.NoError(t, err)

	// A loss right after the gain eats the locked buffer, not the price.
	_, err = f.vault.Report("strat-a", sdkmath.NewInt(-60), sdkmath.ZeroInt())
	require.NoError(t, err)

	require.Equal(t, sdkmath.NewInt(1_000), f.vault.TotalAssets())
	f.clock.Advance(200 * time.Second)
	require.Equal(t, sdkmath.NewInt(1_040), f.vault.TotalAssets())
}

func TestReportFromUnregisteredStrategyRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Report("ghost", sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrNotRegistered)

	_, err = f.vault.AvailableCapital("ghost")
	require.ErrorIs(t, err, ErrNotRegistered)
}
