package ledger

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestFirstDepositorMintsOneToOne(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)

	shares := f.deposit("alice", 1_000)
	require.Equal(t, sdkmath.NewInt(1_000), shares)
	require.Equal(t, sdkmath.NewInt(1_000), f.vault.TotalSupply())
	require.Equal(t, sdkmath.LegacyOneDec(), f.vault.GetPricePerFullShare())
}

func TestConvertToAssetsZeroSupplyIsZero(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.vault.ConvertToAssets(sdkmath.NewInt(500)).IsZero())
	require.True(t, f.vault.PreviewRedeem(sdkmath.NewInt(500)).IsZero())
	require.True(t, f.vault.PreviewWithdraw(sdkmath.NewInt(500)).IsZero())
}

func TestConversionsFloorTowardVault(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)

	// Unsolicited transfer raises the exchange rate above 1:1.
	f.fund(vaultAddr, 333)

	require.Equal(t, sdkmath.NewInt(75), f.vault.ConvertToShares(sdkmath.NewInt(100)))
	require.Equal(t, sdkmath.NewInt(133), f.vault.ConvertToAssets(sdkmath.NewInt(100)))

	// Previews that charge the caller round the other way.
	require.Equal(t, sdkmath.NewInt(134), f.vault.PreviewMint(sdkmath.NewInt(100)))
	require.Equal(t, sdkmath.NewInt(76), f.vault.PreviewWithdraw(sdkmath.NewInt(100)))
}

func TestRoundTripCannotCreateValue(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)
	f.fund(vaultAddr, 333)

	f.fund("bob", 100)
	shares, err := f.vault.Deposit("bob", "bob", sdkmath.NewInt(100))
	require.NoError(t, err)

	assets, err := f.vault.Redeem("bob", "bob", "bob", shares)
	require.NoError(t, err)
	require.True(t, assets.LTE(sdkmath.NewInt(100)),
		"redeemed %s from a 100 deposit", assets)
}

func TestPricePerFullShareTracksGains(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)

	before := f.vault.GetPricePerFullShare()
	f.fund(vaultAddr, 500)
	after := f.vault.GetPricePerFullShare()

	require.True(t, after.GT(before))
	require.Equal(t, sdkmath.LegacyNewDecWithPrec(15, 1), after) // 1.5
}

func TestApproveAndSpendAllowance(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)

	require.NoError(t, f.vault.Approve("alice", "bob", sdkmath.NewInt(300)))
	require.Equal(t, sdkmath.NewInt(300), f.vault.Allowance("alice", "bob"))

	shares, err := f.vault.Withdraw("bob", "bob", "alice", sdkmath.NewInt(200))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(200), shares)
	require.Equal(t, sdkmath.NewInt(100), f.vault.Allowance("alice", "bob"))
	require.Equal(t, sdkmath.NewInt(200), f.bank.BalanceOf(testAsset, "bob"))

	_, err = f.vault.Withdraw("bob", "bob", "alice", sdkmath.NewInt(150))
	require.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestOwnerNeedsNoAllowance(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)

	_, err := f.vault.Withdraw("alice", "alice", "alice", sdkmath.NewInt(400))
	require.NoError(t, err)
}

func TestMaxDepositRespectsCapAndShutdown(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.TvlCap = sdkmath.NewInt(1_500)
	})
	f.fund("alice", 2_000)
	f.deposit("alice", 1_000)

	require.Equal(t, sdkmath.NewInt(500), f.vault.MaxDeposit())
	require.Equal(t, sdkmath.NewInt(500), f.vault.MaxMint())

	require.NoError(t, f.vault.SetEmergencyShutdown(ownerAddr, true))
	require.True(t, f.vault.MaxDeposit().IsZero())
	require.True(t, f.vault.MaxMint().IsZero())
}

func TestMaxDepositUnlimitedByDefault(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, UnlimitedTvlCap, f.vault.MaxDeposit())
	require.Equal(t, UnlimitedTvlCap, f.vault.MaxMint())
}

func TestMaxWithdrawAndRedeem(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)
	f.fund(vaultAddr, 500)

	require.Equal(t, sdkmath.NewInt(1_500), f.vault.MaxWithdraw("alice"))
	require.Equal(t, sdkmath.NewInt(1_000), f.vault.MaxRedeem("alice"))
	require.True(t, f.vault.MaxWithdraw("stranger").IsZero())
}
