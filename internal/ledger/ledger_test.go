package ledger

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/msv/internal/bank"
)

const (
	testAsset = "uusdc"
	vaultAddr = "msv-vault"
	ownerAddr = "msv-owner"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fixture struct {
	t     *testing.T
	bank  *bank.Ledger
	vault *Ledger
	clock *fakeClock
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()

	b := bank.NewLedger()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cfg := Config{
		Bank:    b,
		Address: vaultAddr,
		Owner:   ownerAddr,
		Asset:   testAsset,
		Now:     clock.Now,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	v, err := New(cfg)
	require.NoError(t, err)

	return &fixture{t: t, bank: b, vault: v, clock: clock}
}

func (f *fixture) fund(account string, amount int64) {
	f.t.Helper()
	require.NoError(f.t, f.bank.Mint(testAsset, account, sdkmath.NewInt(amount)))
}

func (f *fixture) deposit(user string, amount int64) sdkmath.Int {
	f.t.Helper()
	shares, err := f.vault.Deposit(user, user, sdkmath.NewInt(amount))
	require.NoError(f.t, err)
	return shares
}

// addStrategy registers a controllable test strategy at the given target.
func (f *fixture) addStrategy(address string, allocBPS uint64, lossBPS int64) *testStrategy {
	f.t.Helper()
	s := &testStrategy{
		bank:    f.bank,
		address: address,
		want:    testAsset,
		vault:   vaultAddr,
		lossBPS: lossBPS,
	}
	require.NoError(f.t, f.vault.AddStrategy(ownerAddr, s, allocBPS))
	return s
}

// harvest reconciles a strategy with zero roi and zero repayment, letting the
// vault push credit out or book debt.
func (f *fixture) harvest(address string) sdkmath.Int {
	f.t.Helper()
	debt, err := f.vault.Report(address, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.NoError(f.t, err)
	return debt
}

// testStrategy holds allocated capital in its bank account and applies a
// configurable haircut to every withdrawal.
type testStrategy struct {
	bank    *bank.Ledger
	address string
	want    string
	vault   string
	lossBPS int64
	sticky  bool // refuse to return capital, reporting no loss
}

func (s *testStrategy) Address() string { return s.address }
func (s *testStrategy) Want() string    { return s.want }
func (s *testStrategy) Vault() string   { return s.vault }

func (s *testStrategy) BalanceOf() sdkmath.Int {
	return s.bank.BalanceOf(s.want, s.address)
}

func (s *testStrategy) Withdraw(amount sdkmath.Int) (sdkmath.Int, error) {
	if s.sticky {
		return sdkmath.ZeroInt(), nil
	}
	held := s.BalanceOf()
	sendable := sdkmath.MinInt(amount, held)
	haircut := sendable.MulRaw(s.lossBPS).QuoRaw(10_000)
	if haircut.IsPositive() {
		if err := s.bank.Burn(s.want, s.address, haircut); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	send := sendable.Sub(haircut)
	if send.IsPositive() {
		if _, err := s.bank.Transfer(s.want, s.address, s.vault, send); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	return haircut.Add(amount.Sub(sendable)), nil
}

// reentrantStrategy attempts a deposit from inside the withdrawal waterfall.
type reentrantStrategy struct {
	testStrategy
	ledger *Ledger
}

func (s *reentrantStrategy) Withdraw(amount sdkmath.Int) (sdkmath.Int, error) {
	if _, err := s.ledger.Deposit(s.address, s.address, sdkmath.NewInt(1)); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return s.testStrategy.Withdraw(amount)
}

func TestNewValidatesConfig(t *testing.T) {
	b := bank.NewLedger()

	_, err := New(Config{Address: vaultAddr, Owner: ownerAddr, Asset: testAsset})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{Bank: b, Owner: ownerAddr, Asset: testAsset})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{Bank: b, Address: vaultAddr, Owner: ownerAddr, Asset: testAsset, WithdrawMaxLoss: 10_001})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{
		Bank: b, Address: vaultAddr, Owner: ownerAddr, Asset: testAsset,
		LockedProfitDegradation: DegradationCoefficient.AddRaw(1),
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSnapshotReflectsState(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 1_000)
	f.deposit("alice", 1_000)
	f.addStrategy("strat-a", 5_000, 0)
	f.harvest("strat-a")

	snap := f.vault.Snapshot()
	require.Equal(t, testAsset, snap.Asset)
	require.Equal(t, sdkmath.NewInt(1_000), snap.TotalSupply)
	require.Equal(t, sdkmath.NewInt(1_000), snap.TotalAssets)
	require.Equal(t, sdkmath.NewInt(500), snap.IdleAssets)
	require.Equal(t, sdkmath.NewInt(500), snap.TotalAllocated)
	require.Equal(t, uint64(5_000), snap.TotalAllocBPS)
	require.Equal(t, []string{"strat-a"}, snap.WithdrawalQueue)
	require.Len(t, snap.Strategies, 1)
	require.Equal(t, "strat-a", snap.Strategies[0].Address)
	require.False(t, snap.EmergencyShutdown)
}
