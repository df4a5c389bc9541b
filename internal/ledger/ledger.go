/*

Vault accounting core. A single Ledger owns share issuance and burn, the
strategy registry, allocation bookkeeping, the withdrawal waterfall, and the
locked-profit buffer. Every public operation runs to completion atomically:
on any error the ledger and bank are restored to their pre-call state.

Execution is single-threaded per state transition, matching the host-ledger
model the vault is designed for. The only concurrency primitive is the
reentrancy flag around the user-facing entry points, which rejects a nested
call immediately instead of blocking.

*/

package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/msv/internal/bank"
	"github.com/elys-network/msv/internal/logger"
	"github.com/elys-network/msv/internal/strategy"
	"github.com/elys-network/msv/internal/types"
)

const (
	// PercentDivisor is the basis-point denominator for allocation targets
	// and slippage tolerances.
	PercentDivisor = 10_000

	// DefaultWithdrawMaxLossBPS is the default slippage tolerance for
	// withdrawals that must pull from strategies: 0.01%.
	DefaultWithdrawMaxLossBPS = 1
)

// DegradationCoefficient scales the locked-profit unlock rate: a rate equal
// to the coefficient unlocks everything in one second.
var DegradationCoefficient = sdkmath.NewIntFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// UnlimitedTvlCap is the sentinel for "no TVL cap".
var UnlimitedTvlCap = sdkmath.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)))

// strategyState pairs a registered strategy's capability handle with the
// vault-side bookkeeping for it.
type strategyState struct {
	capability strategy.Capability
	params     types.StrategyParams
}

// Ledger is the vault's accounting state machine.
type Ledger struct {
	log zerolog.Logger

	bank    *bank.Ledger
	address string // Vault's own bank account
	owner   string
	asset   string // Denom of the single accepted asset

	totalSupply sdkmath.Int
	balances    map[string]sdkmath.Int            // Share holder -> balance
	allowances  map[string]map[string]sdkmath.Int // Owner -> spender -> shares

	tvlCap            sdkmath.Int
	emergencyShutdown bool
	withdrawMaxLoss   uint64 // Basis points

	strategies      map[string]*strategyState
	withdrawalQueue []string
	totalAllocBPS   uint64
	totalAllocated  sdkmath.Int

	lockedProfit            sdkmath.Int
	lockedProfitDegradation sdkmath.Int // Unlock rate per second, DegradationCoefficient-scaled
	lastReport              time.Time

	cumulativeDeposits    map[string]sdkmath.Int
	cumulativeWithdrawals map[string]sdkmath.Int

	entered bool             // Reentrancy flag, not part of rollback state
	now     func() time.Time // Injectable clock
}

// Config holds the dependencies and policy for a new Ledger.
type Config struct {
	Bank    *bank.Ledger
	Address string // Vault's bank account
	Owner   string // Admin account
	Asset   string // Managed denom

	TvlCap          sdkmath.Int // Zero-value Int means unlimited
	WithdrawMaxLoss uint64      // Basis points; 0 means DefaultWithdrawMaxLossBPS

	// LockedProfitDegradation is the per-second unlock rate, scaled by
	// DegradationCoefficient. Zero disables profit locking entirely.
	LockedProfitDegradation sdkmath.Int

	Now func() time.Time // Defaults to time.Now
}

// New creates a vault ledger with validated configuration.
func New(cfg Config) (*Ledger, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	tvlCap := cfg.TvlCap
	if tvlCap.IsNil() || tvlCap.IsZero() {
		tvlCap = UnlimitedTvlCap
	}
	maxLoss := cfg.WithdrawMaxLoss
	if maxLoss == 0 {
		maxLoss = DefaultWithdrawMaxLossBPS
	}
	degradation := cfg.LockedProfitDegradation
	if degradation.IsNil() {
		degradation = sdkmath.ZeroInt()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	l := &Ledger{
		log:                     logger.GetForComponent("vault_ledger"),
		bank:                    cfg.Bank,
		address:                 cfg.Address,
		owner:                   cfg.Owner,
		asset:                   cfg.Asset,
		totalSupply:             sdkmath.ZeroInt(),
		balances:                make(map[string]sdkmath.Int),
		allowances:              make(map[string]map[string]sdkmath.Int),
		tvlCap:                  tvlCap,
		withdrawMaxLoss:         maxLoss,
		strategies:              make(map[string]*strategyState),
		totalAllocated:          sdkmath.ZeroInt(),
		lockedProfit:            sdkmath.ZeroInt(),
		lockedProfitDegradation: degradation,
		lastReport:              now(),
		cumulativeDeposits:      make(map[string]sdkmath.Int),
		cumulativeWithdrawals:   make(map[string]sdkmath.Int),
		now:                     now,
	}

	l.log.Info().
		Str("asset", l.asset).
		Str("address", l.address).
		Str("tvlCap", l.tvlCap.String()).
		Uint64("withdrawMaxLossBPS", l.withdrawMaxLoss).
		Msg("Vault ledger initialized")

	return l, nil
}

func validateConfig(cfg Config) error {
	if cfg.Bank == nil {
		return errors.Join(ErrInvalidConfig, errors.New("bank cannot be nil"))
	}
	if cfg.Address == "" {
		return errors.Join(ErrInvalidConfig, errors.New("vault address cannot be empty"))
	}
	if cfg.Owner == "" {
		return errors.Join(ErrInvalidConfig, errors.New("owner cannot be empty"))
	}
	if cfg.Asset == "" {
		return errors.Join(ErrInvalidConfig, errors.New("asset denom cannot be empty"))
	}
	if cfg.WithdrawMaxLoss > PercentDivisor {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("withdraw max loss %d exceeds %d bps", cfg.WithdrawMaxLoss, PercentDivisor))
	}
	if !cfg.LockedProfitDegradation.IsNil() && cfg.LockedProfitDegradation.GT(DegradationCoefficient) {
		return errors.Join(ErrInvalidConfig, errors.New("locked profit degradation exceeds coefficient"))
	}
	return nil
}

// Asset returns the managed denom.
func (l *Ledger) Asset() string { return l.asset }

// Address returns the vault's bank account.
func (l *Ledger) Address() string { return l.address }

// IsShutdown reports whether emergency shutdown is active.
func (l *Ledger) IsShutdown() bool { return l.emergencyShutdown }

// idleBalance is the vault's on-hand balance of the managed asset.
func (l *Ledger) idleBalance() sdkmath.Int {
	return l.bank.BalanceOf(l.asset, l.address)
}

// totalBalance is the raw managed value: on-hand plus allocated. The TVL cap
// applies to this figure.
func (l *Ledger) totalBalance() sdkmath.Int {
	return l.idleBalance().Add(l.totalAllocated)
}

// TotalAssets is the value backing the share supply: raw managed value minus
// the still-locked portion of recently reported profit.
func (l *Ledger) TotalAssets() sdkmath.Int {
	return l.totalBalance().Sub(l.calculateLockedProfit())
}

// calculateLockedProfit returns the portion of lockedProfit that has not yet
// decayed. Profit unlocks linearly at lockedProfitDegradation per second
// since the last report.
func (l *Ledger) calculateLockedProfit() sdkmath.Int {
	if l.lockedProfit.IsZero() {
		return sdkmath.ZeroInt()
	}
	if l.lockedProfitDegradation.IsZero() {
		// Locking disabled: profit is never withheld.
		return sdkmath.ZeroInt()
	}
	elapsed := int64(l.now().Sub(l.lastReport).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	ratio := sdkmath.NewInt(elapsed).Mul(l.lockedProfitDegradation)
	if ratio.GTE(DegradationCoefficient) {
		return sdkmath.ZeroInt()
	}
	unlocked := ratio.Mul(l.lockedProfit).Quo(DegradationCoefficient)
	return l.lockedProfit.Sub(unlocked)
}

// ledgerState is a deep copy of everything rollback must restore. The
// reentrancy flag and clock are deliberately excluded.
type ledgerState struct {
	totalSupply           sdkmath.Int
	balances              map[string]sdkmath.Int
	allowances            map[string]map[string]sdkmath.Int
	tvlCap                sdkmath.Int
	emergencyShutdown     bool
	withdrawMaxLoss       uint64
	strategies            map[string]*strategyState
	withdrawalQueue       []string
	totalAllocBPS         uint64
	totalAllocated        sdkmath.Int
	lockedProfit          sdkmath.Int
	lockedProfitDegr      sdkmath.Int
	lastReport            time.Time
	cumulativeDeposits    map[string]sdkmath.Int
	cumulativeWithdrawals map[string]sdkmath.Int
}

func copyIntMap(src map[string]sdkmath.Int) map[string]sdkmath.Int {
	dst := make(map[string]sdkmath.Int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (l *Ledger) snapshotState() ledgerState {
	allowances := make(map[string]map[string]sdkmath.Int, len(l.allowances))
	for owner, spenders := range l.allowances {
		allowances[owner] = copyIntMap(spenders)
	}
	strategies := make(map[string]*strategyState, len(l.strategies))
	for addr, s := range l.strategies {
		cp := *s
		strategies[addr] = &cp
	}
	return ledgerState{
		totalSupply:           l.totalSupply,
		balances:              copyIntMap(l.balances),
		allowances:            allowances,
		tvlCap:                l.tvlCap,
		emergencyShutdown:     l.emergencyShutdown,
		withdrawMaxLoss:       l.withdrawMaxLoss,
		strategies:            strategies,
		withdrawalQueue:       append([]string(nil), l.withdrawalQueue...),
		totalAllocBPS:         l.totalAllocBPS,
		totalAllocated:        l.totalAllocated,
		lockedProfit:          l.lockedProfit,
		lockedProfitDegr:      l.lockedProfitDegradation,
		lastReport:            l.lastReport,
		cumulativeDeposits:    copyIntMap(l.cumulativeDeposits),
		cumulativeWithdrawals: copyIntMap(l.cumulativeWithdrawals),
	}
}

func (l *Ledger) restoreState(s ledgerState) {
	l.totalSupply = s.totalSupply
	l.balances = s.balances
	l.allowances = s.allowances
	l.tvlCap = s.tvlCap
	l.emergencyShutdown = s.emergencyShutdown
	l.withdrawMaxLoss = s.withdrawMaxLoss
	l.strategies = s.strategies
	l.withdrawalQueue = s.withdrawalQueue
	l.totalAllocBPS = s.totalAllocBPS
	l.totalAllocated = s.totalAllocated
	l.lockedProfit = s.lockedProfit
	l.lockedProfitDegradation = s.lockedProfitDegr
	l.lastReport = s.lastReport
	l.cumulativeDeposits = s.cumulativeDeposits
	l.cumulativeWithdrawals = s.cumulativeWithdrawals
}

// atomically runs fn with all-or-nothing semantics over ledger and bank
// state. Any error unwinds every mutation fn made, including nested bank
// transfers and strategy-side balance movements.
func (l *Ledger) atomically(fn func() error) error {
	state := l.snapshotState()
	bankSnap := l.bank.Snapshot()
	if err := fn(); err != nil {
		l.restoreState(state)
		l.bank.RevertToSnapshot(bankSnap)
		return err
	}
	return nil
}

// enter acquires the reentrancy guard. A nested call into a guarded entry
// point fails immediately rather than corrupting in-flight state.
func (l *Ledger) enter() error {
	if l.entered {
		return ErrReentrantCall
	}
	l.entered = true
	return nil
}

func (l *Ledger) exit() {
	l.entered = false
}

// registered returns the state for an active strategy.
func (l *Ledger) registered(addr string) (*strategyState, error) {
	s, ok := l.strategies[addr]
	if !ok || s.params.Activation.IsZero() {
		return nil, errors.Join(ErrNotRegistered, fmt.Errorf("strategy %q", addr))
	}
	return s, nil
}

// StrategyParams returns a copy of the bookkeeping record for a strategy.
func (l *Ledger) StrategyParams(addr string) (types.StrategyParams, error) {
	s, err := l.registered(addr)
	if err != nil {
		return types.StrategyParams{}, err
	}
	return s.params, nil
}

// WithdrawalQueue returns a copy of the current waterfall order.
func (l *Ledger) WithdrawalQueue() []string {
	return append([]string(nil), l.withdrawalQueue...)
}

// CumulativeDeposits returns the lifetime deposit total recorded for a user.
func (l *Ledger) CumulativeDeposits(user string) sdkmath.Int {
	if v, ok := l.cumulativeDeposits[user]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

// CumulativeWithdrawals returns the lifetime withdrawal total recorded for a user.
func (l *Ledger) CumulativeWithdrawals(user string) sdkmath.Int {
	if v, ok := l.cumulativeWithdrawals[user]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

// Snapshot captures the full accounting state for persistence and the API.
func (l *Ledger) Snapshot() types.VaultSnapshot {
	strategies := make([]types.StrategySnapshot, 0, len(l.withdrawalQueue))
	for _, addr := range l.withdrawalQueue {
		s, ok := l.strategies[addr]
		if !ok {
			continue
		}
		strategies = append(strategies, types.StrategySnapshot{
			Address:    addr,
			AllocBPS:   s.params.AllocBPS,
			Allocated:  s.params.Allocated,
			Gains:      s.params.Gains,
			Losses:     s.params.Losses,
			LastReport: s.params.LastReport,
		})
	}
	return types.VaultSnapshot{
		Timestamp:         l.now(),
		Asset:             l.asset,
		TotalSupply:       l.totalSupply,
		TotalAssets:       l.TotalAssets(),
		IdleAssets:        l.idleBalance(),
		TotalAllocated:    l.totalAllocated,
		TotalAllocBPS:     l.totalAllocBPS,
		LockedProfit:      l.calculateLockedProfit(),
		PricePerFullShare: l.GetPricePerFullShare().String(),
		EmergencyShutdown: l.emergencyShutdown,
		WithdrawalQueue:   l.WithdrawalQueue(),
		Strategies:        strategies,
	}
}
