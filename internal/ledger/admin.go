/*

Administrative surface. Owner-gated policy knobs with validation-first
precondition checks; none of these touch the share accounting directly.

*/

package ledger

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/msv/internal/strategy"
	"github.com/elys-network/msv/internal/types"
)

func (l *Ledger) requireOwner(caller string) error {
	if caller != l.owner {
		return errors.Join(ErrUnauthorized, fmt.Errorf("caller %q is not the vault owner", caller))
	}
	return nil
}

// AddStrategy registers a strategy, asserts mutual vault/asset agreement,
// and appends it to the withdrawal queue.
func (l *Ledger) AddStrategy(caller string, strat strategy.Capability, allocBPS uint64) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if l.emergencyShutdown {
		return ErrShutdown
	}
	if strat == nil {
		return errors.Join(ErrInvalidStrategy, errors.New("strategy cannot be nil"))
	}
	addr := strat.Address()
	if addr == "" {
		return errors.Join(ErrInvalidStrategy, errors.New("strategy address cannot be empty"))
	}
	if s, ok := l.strategies[addr]; ok && !s.params.Activation.IsZero() {
		return errors.Join(ErrAlreadyRegistered, fmt.Errorf("strategy %q", addr))
	}
	if strat.Vault() != l.address {
		return errors.Join(ErrInvalidStrategy,
			fmt.Errorf("strategy %q serves vault %q, not %q", addr, strat.Vault(), l.address))
	}
	if strat.Want() != l.asset {
		return errors.Join(ErrInvalidStrategy,
			fmt.Errorf("strategy %q wants %q, vault manages %q", addr, strat.Want(), l.asset))
	}
	if l.totalAllocBPS+allocBPS > PercentDivisor {
		return errors.Join(ErrAllocationOverflow,
			fmt.Errorf("adding %d bps to %d exceeds %d", allocBPS, l.totalAllocBPS, PercentDivisor))
	}

	now := l.now()
	l.strategies[addr] = &strategyState{
		capability: strat,
		params: types.StrategyParams{
			Activation: now,
			AllocBPS:   allocBPS,
			Allocated:  sdkmath.ZeroInt(),
			Gains:      sdkmath.ZeroInt(),
			Losses:     sdkmath.ZeroInt(),
			LastReport: now,
		},
	}
	l.totalAllocBPS += allocBPS
	l.withdrawalQueue = append(l.withdrawalQueue, addr)

	l.log.Info().
		Str("strategy", addr).
		Uint64("allocBPS", allocBPS).
		Uint64("totalAllocBPS", l.totalAllocBPS).
		Msg("Strategy registered")

	return nil
}

// UpdateStrategyAllocBPS changes a strategy's target allocation.
func (l *Ledger) UpdateStrategyAllocBPS(caller, stratAddr string, allocBPS uint64) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	s, err := l.registered(stratAddr)
	if err != nil {
		return err
	}
	newTotal := l.totalAllocBPS - s.params.AllocBPS + allocBPS
	if newTotal > PercentDivisor {
		return errors.Join(ErrAllocationOverflow,
			fmt.Errorf("updating %q to %d bps would make aggregate %d", stratAddr, allocBPS, newTotal))
	}
	l.totalAllocBPS = newTotal
	s.params.AllocBPS = allocBPS

	l.log.Info().
		Str("strategy", stratAddr).
		Uint64("allocBPS", allocBPS).
		Uint64("totalAllocBPS", l.totalAllocBPS).
		Msg("Strategy allocation updated")

	return nil
}

// RevokeStrategy zeroes a strategy's target allocation, removing it from
// future capital allocation. Its record and any outstanding allocation are
// retained; capital returns through subsequent reports. Callable by the
// owner or by the strategy itself.
func (l *Ledger) RevokeStrategy(caller, stratAddr string) error {
	if caller != l.owner && caller != stratAddr {
		return errors.Join(ErrUnauthorized,
			fmt.Errorf("caller %q may not revoke strategy %q", caller, stratAddr))
	}
	s, err := l.registered(stratAddr)
	if err != nil {
		return err
	}
	l.totalAllocBPS -= s.params.AllocBPS
	s.params.AllocBPS = 0

	l.log.Warn().
		Str("strategy", stratAddr).
		Str("allocated", s.params.Allocated.String()).
		Msg("Strategy revoked")

	return nil
}

// SetWithdrawalQueue replaces the waterfall order. Every entry must be a
// registered strategy, listed at most once; the queue cannot be empty.
func (l *Ledger) SetWithdrawalQueue(caller string, queue []string) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if len(queue) == 0 {
		return errors.Join(ErrInvalidQueue, errors.New("queue cannot be empty"))
	}
	seen := make(map[string]bool, len(queue))
	for _, addr := range queue {
		if _, err := l.registered(addr); err != nil {
			return errors.Join(ErrInvalidQueue, err)
		}
		if seen[addr] {
			return errors.Join(ErrInvalidQueue, fmt.Errorf("duplicate entry %q", addr))
		}
		seen[addr] = true
	}
	l.withdrawalQueue = append([]string(nil), queue...)

	l.log.Info().Strs("queue", queue).Msg("Withdrawal queue updated")
	return nil
}

// SetEmergencyShutdown toggles shutdown mode. While active, deposits and new
// strategies are blocked and every strategy's next report signals full
// liquidation.
func (l *Ledger) SetEmergencyShutdown(caller string, active bool) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	l.emergencyShutdown = active
	if active {
		l.log.Warn().Msg("EMERGENCY SHUTDOWN ACTIVATED")
	} else {
		l.log.Warn().Msg("Emergency shutdown lifted")
	}
	return nil
}

// SetTvlCap sets the maximum managed value deposits may grow the vault to.
func (l *Ledger) SetTvlCap(caller string, cap sdkmath.Int) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if cap.IsNil() || cap.IsNegative() {
		return errors.Join(ErrZeroAmount, errors.New("tvl cap must be non-negative"))
	}
	l.tvlCap = cap
	l.log.Info().Str("tvlCap", cap.String()).Msg("TVL cap updated")
	return nil
}

// RemoveTvlCap lifts the deposit limit entirely.
func (l *Ledger) RemoveTvlCap(caller string) error {
	return l.SetTvlCap(caller, UnlimitedTvlCap)
}

// SetWithdrawMaxLoss sets the slippage tolerance, in basis points, for
// withdrawals that pull from strategies.
func (l *Ledger) SetWithdrawMaxLoss(caller string, bps uint64) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if bps > PercentDivisor {
		return errors.Join(ErrInvalidBPS, fmt.Errorf("%d bps exceeds %d", bps, PercentDivisor))
	}
	l.withdrawMaxLoss = bps
	l.log.Info().Uint64("withdrawMaxLossBPS", bps).Msg("Withdraw max loss updated")
	return nil
}

// SetLockedProfitDegradation sets the per-second profit unlock rate, scaled
// by DegradationCoefficient.
func (l *Ledger) SetLockedProfitDegradation(caller string, rate sdkmath.Int) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if rate.IsNil() || rate.IsNegative() || rate.GT(DegradationCoefficient) {
		return errors.Join(ErrInvalidBPS, errors.New("degradation rate must be within [0, coefficient]"))
	}
	l.lockedProfitDegradation = rate
	l.log.Info().Str("degradation", rate.String()).Msg("Locked profit degradation updated")
	return nil
}

// DegradationForWindow returns the rate that fully unlocks reported profit
// over the given window.
func DegradationForWindow(window time.Duration) sdkmath.Int {
	secs := int64(window.Seconds())
	if secs <= 0 {
		return DegradationCoefficient
	}
	return DegradationCoefficient.QuoRaw(secs)
}

// Sweep transfers the vault's full balance of an unrelated denom to the
// owner. Sweeping the managed asset is forbidden.
func (l *Ledger) Sweep(caller, denom string) (sdkmath.Int, error) {
	if err := l.requireOwner(caller); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if denom == l.asset {
		return sdkmath.ZeroInt(), ErrProtectedAsset
	}
	amount := l.bank.BalanceOf(denom, l.address)
	if amount.IsPositive() {
		if _, err := l.bank.Transfer(denom, l.address, l.owner, amount); err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("sweep transfer failed: %w", err)
		}
	}
	l.log.Info().Str("denom", denom).Str("amount", amount.String()).Msg("Stray token swept")
	return amount, nil
}
